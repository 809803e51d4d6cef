package watchlist

import (
	"encoding/json"
	"testing"
)

func anime(rateID, itemID int64, name string, status Status, progress, total int) TrackedEntry {
	return TrackedEntry{
		RateID:   rateID,
		Status:   status,
		Episodes: progress,
		Anime:    &Item{ID: itemID, Name: name, Episodes: total},
	}
}

func TestDocumentUpdateMovesEntryOnStatusChange(t *testing.T) {
	doc := NewDocument(1, KindAnime, []TrackedEntry{
		anime(10, 100, "Attack on Titan", StatusWatching, 24, 25),
		anime(11, 101, "Frieren", StatusWatching, 3, 28),
		anime(12, 102, "Mushishi", StatusCompleted, 26, 26),
	})
	before := doc.Count()

	updated, ok := doc.Update(10, Fields{}.WithProgress(25).WithStatus(StatusCompleted))
	if !ok {
		t.Fatal("expected entry to be found")
	}
	if updated.Episodes != 25 || updated.Status != StatusCompleted {
		t.Fatalf("unexpected updated entry %+v", updated)
	}
	if doc.Count() != before {
		t.Fatalf("entry count changed: %d -> %d", before, doc.Count())
	}
	if len(doc.Groups[StatusWatching]) != 1 || doc.Groups[StatusWatching][0].RateID != 11 {
		t.Fatalf("entry not removed from old group: %+v", doc.Groups[StatusWatching])
	}
	completed := doc.Groups[StatusCompleted]
	if len(completed) != 2 || completed[1].RateID != 10 {
		t.Fatalf("entry not appended to new group: %+v", completed)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("document invalid after move: %v", err)
	}
}

func TestDocumentUpdateInPlace(t *testing.T) {
	doc := NewDocument(1, KindAnime, []TrackedEntry{anime(10, 100, "A", StatusWatching, 4, 25)})
	if _, ok := doc.Update(10, Fields{}.WithProgress(5)); !ok {
		t.Fatal("expected update")
	}
	if got := doc.Groups[StatusWatching][0].Episodes; got != 5 {
		t.Fatalf("expected progress 5, got %d", got)
	}
	if _, ok := doc.Update(99, Fields{}.WithProgress(1)); ok {
		t.Fatal("expected missing rate to report false")
	}
}

func TestDocumentValidateDetectsDuplicates(t *testing.T) {
	doc := &CacheDocument{Groups: map[Status][]TrackedEntry{
		StatusWatching:  {anime(10, 100, "A", StatusWatching, 1, 2)},
		StatusCompleted: {anime(10, 100, "A", StatusCompleted, 2, 2)},
	}}
	if err := doc.Validate(); err == nil {
		t.Fatal("expected duplicate rate error")
	}
}

func TestDocumentInsert(t *testing.T) {
	doc := NewDocument(1, KindAnime, nil)
	if err := doc.Insert(TrackedEntry{RateID: 5, Anime: &Item{ID: 50}}); err != nil {
		t.Fatal(err)
	}
	if len(doc.Groups[StatusPlanned]) != 1 {
		t.Fatalf("expected entry in planned group, got %+v", doc.Groups)
	}
	if err := doc.Insert(TrackedEntry{RateID: 5, Status: StatusWatching}); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
}

func TestEntryDecodesAPIPayload(t *testing.T) {
	payload := `{"id":7,"score":8,"status":"watching","episodes":4,"rewatches":1,
		"anime":{"id":16498,"name":"Shingeki no Kyojin","russian":"Атака титанов","episodes":25,"aired_on":"2013-04-07","kind":"tv"}}`
	var entry TrackedEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Kind() != KindAnime || entry.Progress() != 4 || entry.Total() != 25 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Item().Year() != 2013 {
		t.Fatalf("unexpected year %d", entry.Item().Year())
	}
	if names := entry.Item().LocalizedNames(); len(names) != 1 || names[0] != "Атака титанов" {
		t.Fatalf("unexpected localized names %v", names)
	}
}

func TestMangaEntryUsesChapters(t *testing.T) {
	entry := TrackedEntry{RateID: 1, Chapters: 10, Manga: &Item{ID: 2, Chapters: 120}}
	if entry.Kind() != KindManga || entry.Progress() != 10 || entry.Total() != 120 {
		t.Fatalf("unexpected manga accessors %+v", entry)
	}
	entry.Apply(Fields{}.WithProgress(11))
	if entry.Chapters != 11 || entry.Episodes != 0 {
		t.Fatalf("progress should land on chapters: %+v", entry)
	}
}

func TestDetailAltNames(t *testing.T) {
	d := DetailedInfo{
		Synonyms: []string{"AoT", "  "},
		English:  []string{"Attack on Titan", ""},
		Japanese: []string{"進撃の巨人"},
		Russian:  "AoT",
		Status:   "Released",
	}
	names := d.AltNames()
	want := []string{"AoT", "Attack on Titan", "進撃の巨人"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
	if !d.Final() {
		t.Fatal("released detail should be final")
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{"watching": StatusWatching, "On-Hold": StatusOnHold, "ptw": StatusPlanned, " completed ": StatusCompleted}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		if err != nil || got != want {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseStatus("binge"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
