package watchlist

import (
	"fmt"
	"time"
)

// CacheDocument is the durable per-user list mirror.
type CacheDocument struct {
	UserID    int64                     `json:"user_id"`
	Kind      Kind                      `json:"kind,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
	Groups    map[Status][]TrackedEntry `json:"data"`
}

// NewDocument groups entries by their status.
func NewDocument(userID int64, kind Kind, entries []TrackedEntry) *CacheDocument {
	doc := &CacheDocument{UserID: userID, Kind: kind, Groups: make(map[Status][]TrackedEntry)}
	for _, entry := range entries {
		doc.Groups[entry.Status] = append(doc.Groups[entry.Status], entry)
	}
	return doc
}

// Entries flattens the groups in display order, followed by any unknown status keys.
func (d *CacheDocument) Entries() []TrackedEntry {
	if d == nil {
		return nil
	}
	out := make([]TrackedEntry, 0, d.Count())
	seen := make(map[Status]struct{}, len(Statuses))
	for _, status := range Statuses {
		seen[status] = struct{}{}
		out = append(out, d.Groups[status]...)
	}
	for status, entries := range d.Groups {
		if _, ok := seen[status]; !ok {
			out = append(out, entries...)
		}
	}
	return out
}

// Count returns the number of entries across all groups.
func (d *CacheDocument) Count() int {
	if d == nil {
		return 0
	}
	total := 0
	for _, entries := range d.Groups {
		total += len(entries)
	}
	return total
}

// Counts returns the number of entries per status.
func (d *CacheDocument) Counts() map[Status]int {
	counts := make(map[Status]int, len(d.Groups))
	for status, entries := range d.Groups {
		counts[status] = len(entries)
	}
	return counts
}

// Find locates an entry by rate ID.
func (d *CacheDocument) Find(rateID int64) (Status, int, bool) {
	for status, entries := range d.Groups {
		for i := range entries {
			if entries[i].RateID == rateID {
				return status, i, true
			}
		}
	}
	return "", -1, false
}

// Validate enforces rate ID uniqueness across groups.
func (d *CacheDocument) Validate() error {
	seen := make(map[int64]Status, d.Count())
	for status, entries := range d.Groups {
		for _, entry := range entries {
			if prev, dup := seen[entry.RateID]; dup {
				return fmt.Errorf("rate %d present in both %q and %q", entry.RateID, prev, status)
			}
			seen[entry.RateID] = status
		}
	}
	return nil
}

// Update applies f to the entry with rateID. When the status changes, the entry
// moves to the end of its new group. It returns the updated entry.
func (d *CacheDocument) Update(rateID int64, f Fields) (TrackedEntry, bool) {
	status, idx, ok := d.Find(rateID)
	if !ok {
		return TrackedEntry{}, false
	}
	entry := d.Groups[status][idx]
	entry.Apply(f)
	if entry.Status == "" {
		entry.Status = status
	}
	if entry.Status == status {
		d.Groups[status][idx] = entry
		return entry, true
	}
	group := d.Groups[status]
	d.Groups[status] = append(group[:idx:idx], group[idx+1:]...)
	d.Groups[entry.Status] = append(d.Groups[entry.Status], entry)
	return entry, true
}

// Insert appends entry to the group matching its status.
func (d *CacheDocument) Insert(entry TrackedEntry) error {
	if _, _, exists := d.Find(entry.RateID); exists {
		return fmt.Errorf("rate %d already tracked", entry.RateID)
	}
	if entry.Status == "" {
		entry.Status = StatusPlanned
	}
	if d.Groups == nil {
		d.Groups = make(map[Status][]TrackedEntry)
	}
	d.Groups[entry.Status] = append(d.Groups[entry.Status], entry)
	return nil
}
