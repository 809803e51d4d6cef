package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"shikiwatch/internal/watchlist"
)

// Patch is a user rate update received by FakeShikimori.
type Patch struct {
	RateID    int64
	Episodes  *int
	Status    *watchlist.Status
	Rewatches *int
}

// FakeShikimori serves the subset of the Shikimori API shikiwatch calls. The
// rate list is mutated by PATCH requests the way the real service does.
type FakeShikimori struct {
	server *httptest.Server

	mu       sync.Mutex
	userID   int64
	rates    []watchlist.TrackedEntry
	details  map[int64]watchlist.DetailedInfo
	catalog  map[int64]watchlist.Item
	patches  []Patch
	deleted  []int64
	failList bool
	delay    time.Duration
	nextRate int64
}

// NewFakeShikimori starts a fake server for userID seeded with rates.
func NewFakeShikimori(t testing.TB, userID int64, rates ...watchlist.TrackedEntry) *FakeShikimori {
	t.Helper()
	f := &FakeShikimori{
		userID:  userID,
		rates:   slices.Clone(rates),
		details: make(map[int64]watchlist.DetailedInfo),
		catalog: make(map[int64]watchlist.Item),
	}
	for _, rate := range rates {
		f.nextRate = max(f.nextRate, rate.RateID)
		if rate.Anime != nil {
			f.catalog[rate.Anime.ID] = *rate.Anime
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/whoami", f.handleWhoAmI)
	mux.HandleFunc("GET /api/users/{id}/anime_rates", f.handleRates)
	mux.HandleFunc("GET /api/animes", f.handleSearch)
	mux.HandleFunc("GET /api/animes/{id}", f.handleDetails)
	mux.HandleFunc("POST /api/user_rates", f.handleCreate)
	mux.HandleFunc("PATCH /api/user_rates/{id}", f.handlePatch)
	mux.HandleFunc("DELETE /api/user_rates/{id}", f.handleDelete)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// BaseURL is the API root to configure the client with.
func (f *FakeShikimori) BaseURL() string { return f.server.URL + "/api" }

// OAuthURL is the OAuth root to configure the client with.
func (f *FakeShikimori) OAuthURL() string { return f.server.URL + "/oauth" }

// SetDetails registers a detail record for an item.
func (f *FakeShikimori) SetDetails(info watchlist.DetailedInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[info.ItemID] = info
}

// SetCatalog registers items served by catalogue search and rate creation.
func (f *FakeShikimori) SetCatalog(items ...watchlist.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		f.catalog[item.ID] = item
	}
}

// SetDetailDelay makes every detail request wait d before answering.
func (f *FakeShikimori) SetDetailDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Rates returns the current rate list.
func (f *FakeShikimori) Rates() []watchlist.TrackedEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.rates)
}

// Deleted returns the rate ids removed so far.
func (f *FakeShikimori) Deleted() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deleted)
}

// FailList makes list requests return 503.
func (f *FakeShikimori) FailList(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failList = fail
}

// Patches returns the rate updates received so far.
func (f *FakeShikimori) Patches() []Patch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.patches)
}

func (f *FakeShikimori) handleWhoAmI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"id": f.userID, "nickname": "tester"})
}

func (f *FakeShikimori) handleRates(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64); id != f.userID {
		writeJSON(w, http.StatusOK, []watchlist.TrackedEntry{})
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page > 1 {
		writeJSON(w, http.StatusOK, []watchlist.TrackedEntry{})
		return
	}
	status := watchlist.Status(r.URL.Query().Get("status"))
	out := make([]watchlist.TrackedEntry, 0, len(f.rates))
	for _, rate := range f.rates {
		if status == "" || rate.Status == status {
			out = append(out, rate)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeShikimori) handleDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	info, ok := f.details[id]
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (f *FakeShikimori) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	var body struct {
		UserRate struct {
			Episodes  *int              `json:"episodes"`
			Status    *watchlist.Status `json:"status"`
			Rewatches *int              `json:"rewatches"`
		} `json:"user_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	idx := slices.IndexFunc(f.rates, func(e watchlist.TrackedEntry) bool { return e.RateID == id })
	if idx < 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	f.patches = append(f.patches, Patch{RateID: id, Episodes: body.UserRate.Episodes, Status: body.UserRate.Status, Rewatches: body.UserRate.Rewatches})
	rate := &f.rates[idx]
	if body.UserRate.Episodes != nil {
		rate.Episodes = *body.UserRate.Episodes
	}
	if body.UserRate.Status != nil {
		rate.Status = *body.UserRate.Status
	}
	if body.UserRate.Rewatches != nil {
		rate.Rewatches = *body.UserRate.Rewatches
	}
	writeJSON(w, http.StatusOK, rate)
}

func (f *FakeShikimori) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("q"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]watchlist.Item, 0)
	for _, item := range f.catalog {
		if strings.Contains(strings.ToLower(item.Name), query) || strings.Contains(strings.ToLower(item.Russian), query) {
			out = append(out, item)
		}
	}
	slices.SortFunc(out, func(a, b watchlist.Item) int { return int(a.ID - b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeShikimori) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserRate struct {
			UserID     int64            `json:"user_id"`
			TargetID   int64            `json:"target_id"`
			TargetType string           `json:"target_type"`
			Status     watchlist.Status `json:"status"`
		} `json:"user_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if body.UserRate.UserID != f.userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	item, ok := f.catalog[body.UserRate.TargetID]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if slices.ContainsFunc(f.rates, func(e watchlist.TrackedEntry) bool { return e.ItemID() == item.ID }) {
		http.Error(w, "already exists", http.StatusUnprocessableEntity)
		return
	}
	f.nextRate++
	rate := watchlist.TrackedEntry{RateID: f.nextRate, Status: body.UserRate.Status, UpdatedAt: time.Now()}
	stored := rate
	stored.Anime = &item
	f.rates = append(f.rates, stored)
	writeJSON(w, http.StatusCreated, rate)
}

func (f *FakeShikimori) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := slices.IndexFunc(f.rates, func(e watchlist.TrackedEntry) bool { return e.RateID == id })
	if idx < 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	f.rates = slices.Delete(f.rates, idx, idx+1)
	f.deleted = append(f.deleted, id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
