package main

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	"shikiwatch/internal/services"
	"shikiwatch/internal/watchlist"
)

func brotherhood() watchlist.Item {
	return watchlist.Item{ID: 5114, Name: "Fullmetal Alchemist: Brotherhood", Russian: "Стальной алхимик: Братство", Episodes: 64}
}

func TestSearchAddRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.SetCatalog(brotherhood())
	env.fake.SetDetails(watchlist.DetailedInfo{ItemID: 5114, Name: "Fullmetal Alchemist: Brotherhood", Episodes: 64, English: []string{"Fullmetal Alchemist: Brotherhood"}})

	out, _, err := runCLI(t, []string{"--json", "search", "alchemist"}, env.configPath)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var results []searchResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(results) != 1 || results[0].Item.ID != 5114 || results[0].RateID != 0 {
		t.Fatalf("unexpected search results: %+v", results)
	}

	out, _, err = runCLI(t, []string{"search", "Mushishi"}, env.configPath)
	if err != nil {
		t.Fatalf("search listed: %v", err)
	}
	requireContains(t, out, "completed (rate 12)")

	out, _, err = runCLI(t, []string{"add", "5114", "--status", "watching"}, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Added Fullmetal Alchemist: Brotherhood as watching (rate 14)")

	out, _, err = runCLI(t, []string{"--json", "list", "--status", "watching"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var entries []watchlist.TrackedEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if !slices.ContainsFunc(entries, func(e watchlist.TrackedEntry) bool { return e.RateID == 14 && e.ItemID() == 5114 }) {
		t.Fatalf("added entry missing from cached list: %+v", entries)
	}

	out, _, err = runCLI(t, []string{"remove", "12"}, env.configPath)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, out, "Removed rate 12; 3 entries remain")
	if deleted := env.fake.Deleted(); len(deleted) != 1 || deleted[0] != 12 {
		t.Fatalf("deleted rates = %v", deleted)
	}
	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list after remove: %v", err)
	}
	if strings.Contains(out, "Mushishi") {
		t.Fatalf("removed entry still listed:\n%s", out)
	}
}

func TestAddWithoutCachedListReloads(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.SetCatalog(brotherhood())

	out, _, err := runCLI(t, []string{"--json", "add", "5114"}, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	var entry watchlist.TrackedEntry
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("decode add: %v", err)
	}
	if entry.Status != watchlist.StatusPlanned || entry.ItemID() != 5114 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	out, _, err = runCLI(t, []string{"cache", "info"}, env.configPath)
	if err != nil {
		t.Fatalf("cache info: %v", err)
	}
	requireContains(t, out, "Entries:  4")
}

func TestAddAndRemoveRejectBadIDs(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, args := range [][]string{{"add", "abc"}, {"add", "0"}, {"remove", "0"}} {
		if _, _, err := runCLI(t, args, env.configPath); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%v: err = %v", args, err)
		}
	}
}

func TestConfigValidateRemote(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate", "--remote"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate --remote: %v", err)
	}
	requireContains(t, out, "Account:     tester (4242)")

	env.cfg.Shikimori.UserID = 999
	writeTestConfig(t, env.configPath, env.cfg)
	_, _, err = runCLI(t, []string{"config", "validate", "--remote"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("mismatched user err = %v", err)
	}
}
