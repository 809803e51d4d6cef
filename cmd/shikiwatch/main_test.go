package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shikiwatch/internal/api"
	"shikiwatch/internal/watchlist"
)

func TestParseCommand(t *testing.T) {
	out, _, err := runCLI(t, []string{"parse", "[SubsPlease] Sousou no Frieren - 07 (1080p) [ABCD1234].mkv", "readme.txt"}, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	requireContains(t, out, "Sousou no Frieren")
	requireContains(t, out, "no match")

	out, _, err = runCLI(t, []string{"--json", "parse", "Mushishi - 03.mkv"}, "")
	if err != nil {
		t.Fatalf("parse --json: %v", err)
	}
	var parsed []struct {
		Matched   bool           `json:"matched"`
		Candidate *api.Candidate `json:"candidate"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(parsed) != 1 || !parsed[0].Matched || parsed[0].Candidate.Episode != 3 {
		t.Fatalf("unexpected parse output: %s", out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
}

func TestScrobbleInProcess(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"scrobble", "[Erai-raws] Shingeki no Kyojin - 05 [1080p].mkv"}, env.configPath)
	if err != nil {
		t.Fatalf("scrobble: %v", err)
	}
	requireContains(t, out, "Updated Shingeki no Kyojin to episode 5")
	patches := env.fake.Patches()
	if len(patches) != 1 || patches[0].RateID != 11 || *patches[0].Episodes != 5 {
		t.Fatalf("unexpected patches: %+v", patches)
	}

	_, _, err = runCLI(t, []string{"scrobble", "--name", "Shingeki no Kyojin", "--episode", "9", "x"}, env.configPath)
	if err == nil {
		t.Fatal("skipping ahead should report an error")
	}
	if len(env.fake.Patches()) != 1 {
		t.Fatal("rejected scrobble must not reach Shikimori")
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "rejected")
	requireContains(t, out, "Total 2")
}

func TestScrobbleThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.startDaemon(t)

	out, _, err := runCLI(t, []string{"--json", "scrobble", "Shingeki no Kyojin", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("scrobble: %v", err)
	}
	var result api.ScrobbleResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.RateID != 11 || result.Progress != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}

	out, _, err = runCLI(t, []string{"--json", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.LastScrobble == nil || status.LastScrobble.Progress != 5 {
		t.Fatalf("unexpected status: %+v", status)
	}

	out, _, err = runCLI(t, []string{"cancel"}, env.configPath)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "No playback sessions")
}

func TestStatusOffline(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "Not cached")
}

func TestListAndCacheCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Mushishi")
	requireContains(t, out, "4/25")

	out, _, err = runCLI(t, []string{"--json", "list", "--status", "planned"}, env.configPath)
	if err != nil {
		t.Fatalf("list --status: %v", err)
	}
	var entries []watchlist.TrackedEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(entries) != 1 || entries[0].RateID != 13 {
		t.Fatalf("unexpected planned entries: %+v", entries)
	}

	out, _, err = runCLI(t, []string{"cache", "info"}, env.configPath)
	if err != nil {
		t.Fatalf("cache info: %v", err)
	}
	requireContains(t, out, "Entries:  3")

	out, _, err = runCLI(t, []string{"cache", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Removed")
	out, _, err = runCLI(t, []string{"cache", "info"}, env.configPath)
	if err != nil {
		t.Fatalf("cache info after clear: %v", err)
	}
	requireContains(t, out, "not cached")
}

func TestSuggestInProcess(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"--json", "suggest", "Shingeki"}, env.configPath)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	var resp api.SuggestResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Suggestions) == 0 || resp.Suggestions[0].RateID != 11 {
		t.Fatalf("unexpected suggestions: %+v", resp)
	}
}

func TestFilterEntries(t *testing.T) {
	entries := testRates()

	all := filterEntries(entries, "", "")
	if len(all) != 3 || all[0].Name() != "Mushishi" {
		t.Fatalf("expected alphabetical order, got %v", names(all))
	}
	watching := filterEntries(entries, watchlist.StatusWatching, "")
	if len(watching) != 1 || watching[0].RateID != 11 {
		t.Fatalf("status filter = %v", names(watching))
	}
	found := filterEntries(entries, "", "frieren")
	if len(found) != 1 || found[0].RateID != 13 {
		t.Fatalf("fuzzy filter = %v", names(found))
	}
	if none := filterEntries(entries, "", "zzzz"); len(none) != 0 {
		t.Fatalf("expected no matches, got %v", names(none))
	}
}

func names(entries []watchlist.TrackedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name()
	}
	return out
}

func TestBuildScrobbleRequest(t *testing.T) {
	req, err := buildScrobbleRequest("Mushishi - 07.mkv", "", 0)
	if err != nil || req.Episode != 7 {
		t.Fatalf("parsed episode = %+v, %v", req, err)
	}
	req, err = buildScrobbleRequest("Mushishi - 07.mkv", "Mushi-shi", 8)
	if err != nil || req.Episode != 8 || req.Name != "Mushi-shi" {
		t.Fatalf("override = %+v, %v", req, err)
	}
	if _, err := buildScrobbleRequest("Mushishi", "", 0); err == nil {
		t.Fatal("expected error without an episode")
	}
	if _, err := buildScrobbleRequest("", "", 3); err == nil {
		t.Fatal("expected error without a title")
	}
}

func TestRenderStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := renderStatus(api.DaemonStatus{
		Running:    true,
		PID:        99,
		UserID:     4242,
		StartedAt:  now.Add(-2 * time.Hour).Format(time.RFC3339),
		Monitoring: true,
		NowPlaying: &api.NowPlaying{
			Candidate:   api.Candidate{Series: "Mushishi", Episode: 4},
			InList:      true,
			MatchedName: "Mushishi",
		},
		LastScrobble: &api.ScrobbleResult{Kind: "updated", Success: true, Message: "Updated Mushishi to episode 3"},
		Cache:        api.CacheInfo{Exists: true, Total: 3, SizeBytes: 2048},
		SynonymCount: 1200,
	}, false, now)

	for _, want := range []string{"Running (pid 99, up since 2 hours ago)", "Mushishi episode 4 → Mushishi", "Updated Mushishi to episode 3", "3 entries", "1,200 titles"} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatal("colour codes emitted without a terminal")
	}
}
