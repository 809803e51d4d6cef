package synonyms

import (
	"context"
	"sort"
	"time"

	"shikiwatch/internal/logging"
)

// DefaultRefreshInterval is the cadence of RefreshPeriodically.
const DefaultRefreshInterval = time.Hour

// RefreshPeriodically re-fetches unfinished items on every tick until ctx is done.
func (c *Cache) RefreshPeriodically(ctx context.Context, userID int64, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RefreshNow(ctx, userID)
		}
	}
}

// RefreshNow re-fetches every cached item whose airing status is not final and
// returns how many records were updated.
func (c *Cache) RefreshNow(ctx context.Context, userID int64) int {
	c.loadFromDisk(userID)

	c.mu.RLock()
	var ids []int64
	for id, info := range c.details {
		if !info.Final() {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()
	if len(ids) == 0 {
		return 0
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	updated := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		previous, _ := c.Detail(id)
		info, err := c.fetcher.GetItemDetails(ctx, c.kind, id)
		if err != nil {
			c.logger.Debug("detail refresh failed", logging.Int64(logging.FieldItemID, id), logging.Error(err))
			continue
		}
		if previous.Status != info.Status {
			c.logger.Info("airing status changed",
				logging.String(logging.FieldEventType, "airing_status_changed"),
				logging.Int64(logging.FieldItemID, id),
				logging.String("name", info.Name),
				logging.String("from", previous.Status),
				logging.String("to", info.Status),
			)
		}
		c.put(id, info)
		updated++
		if updated%refreshSaveEvery == 0 {
			c.save(userID)
		}
	}
	if updated > 0 {
		c.save(userID)
	}
	c.logger.Debug("detail refresh finished",
		logging.Int("candidates", len(ids)),
		logging.Int("updated", updated),
	)
	return updated
}
