package shikimori_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"shikiwatch/internal/services"
	"shikiwatch/internal/shikimori"
	"shikiwatch/internal/watchlist"
)

func newClient(t *testing.T, baseURL string, opts ...shikimori.Option) *shikimori.Client {
	t.Helper()
	opts = append([]shikimori.Option{shikimori.WithRetryDelay(time.Millisecond)}, opts...)
	client, err := shikimori.New(baseURL, "", shikimori.Credentials{AccessToken: "token"}, opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestNewRequiresAccessToken(t *testing.T) {
	if _, err := shikimori.New("https://example.com/api", "", shikimori.Credentials{}); err == nil {
		t.Fatal("expected error when access token missing")
	}
	if _, err := shikimori.New("", "", shikimori.Credentials{AccessToken: "x"}); err == nil {
		t.Fatal("expected error when base url missing")
	}
}

func TestGetUserListPaginates(t *testing.T) {
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/7/anime_rates" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "shikiwatch-test" {
			t.Errorf("User-Agent = %q", got)
		}
		q := r.URL.Query()
		if q.Get("limit") != "100" || q.Get("status") != "watching" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		pages = append(pages, q.Get("page"))
		page, _ := strconv.Atoi(q.Get("page"))
		count := 100
		if page == 2 {
			count = 3
		}
		batch := make([]watchlist.TrackedEntry, 0, count)
		for i := range count {
			id := int64(page*1000 + i)
			batch = append(batch, watchlist.TrackedEntry{
				RateID: id,
				Status: watchlist.StatusWatching,
				Anime:  &watchlist.Item{ID: id, Name: "Show " + strconv.FormatInt(id, 10)},
			})
		}
		writeJSON(t, w, http.StatusOK, batch)
	}))
	t.Cleanup(server.Close)

	client := newClient(t, server.URL, shikimori.WithUserAgent("shikiwatch-test"))
	entries, err := client.GetUserList(context.Background(), 7, watchlist.KindAnime, watchlist.StatusWatching)
	if err != nil {
		t.Fatalf("GetUserList returned error: %v", err)
	}
	if len(entries) != 103 {
		t.Fatalf("expected 103 entries, got %d", len(entries))
	}
	if len(pages) != 2 || pages[0] != "1" || pages[1] != "2" {
		t.Fatalf("unexpected pages requested: %v", pages)
	}
	if entries[0].Anime == nil || entries[0].Name() == "" {
		t.Fatalf("expected embedded anime, got %+v", entries[0])
	}
}

func TestFetchDocumentUsesMangaRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/7/manga_rates" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Has("status") {
			t.Errorf("full fetch must not filter by status: %q", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `[
			{"id":1,"status":"watching","chapters":12,"manga":{"id":10,"name":"Berserk","chapters":0}},
			{"id":2,"status":"completed","chapters":40,"manga":{"id":11,"name":"Dorohedoro","chapters":167}}
		]`)
	}))
	t.Cleanup(server.Close)

	doc, err := newClient(t, server.URL).FetchDocument(context.Background(), 7, watchlist.KindManga)
	if err != nil {
		t.Fatalf("FetchDocument returned error: %v", err)
	}
	if doc.UserID != 7 || doc.Kind != watchlist.KindManga || doc.Timestamp.IsZero() {
		t.Fatalf("unexpected document header: %+v", doc)
	}
	if doc.Count() != 2 || len(doc.Groups[watchlist.StatusCompleted]) != 1 {
		t.Fatalf("unexpected grouping: %+v", doc.Groups)
	}
	entry := doc.Groups[watchlist.StatusWatching][0]
	if entry.Kind() != watchlist.KindManga || entry.Progress() != 12 {
		t.Fatalf("unexpected manga entry: %+v", entry)
	}
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"id":5,"name":"Mushishi","status":"released","synonyms":["Mushi-Shi"]}`)
	}))
	t.Cleanup(server.Close)

	info, err := newClient(t, server.URL).GetItemDetails(context.Background(), watchlist.KindAnime, 5)
	if err != nil {
		t.Fatalf("GetItemDetails returned error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if !info.Final() || len(info.Synonyms) != 1 || info.FetchedAt.IsZero() {
		t.Fatalf("unexpected details: %+v", info)
	}
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	_, err := newClient(t, server.URL).GetItemDetails(context.Background(), watchlist.KindAnime, 5)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestUpdateProgressSendsOnlySetFields(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPatch || r.URL.Path != "/user_rates/42" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		rate := body["user_rate"]
		if rate["episodes"] != float64(0) || rate["status"] != "rewatching" {
			t.Errorf("unexpected rate body: %v", rate)
		}
		if _, ok := rate["score"]; ok {
			t.Errorf("score must be omitted: %v", rate)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(server.Close)

	fields := watchlist.Fields{}.WithProgress(0).WithStatus(watchlist.StatusRewatching)
	if err := newClient(t, server.URL).UpdateProgress(context.Background(), watchlist.KindAnime, 42, fields); err != nil {
		t.Fatalf("UpdateProgress returned error: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", calls.Load())
	}
}

func TestUpdateProgressDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	err := newClient(t, server.URL).UpdateProgress(context.Background(), watchlist.KindAnime, 42, watchlist.Fields{}.WithProgress(3))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("writes must not be retried, got %d calls", calls.Load())
	}
}

func TestUpdateProgressRejectsEmptyFields(t *testing.T) {
	client := newClient(t, "http://127.0.0.1:1")
	err := client.UpdateProgress(context.Background(), watchlist.KindAnime, 42, watchlist.Fields{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRefreshesTokenOnUnauthorized(t *testing.T) {
	var apiCalls, oauthCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/whoami", func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"id":7,"nickname":"viewer"}`)
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		oauthCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "refresh-1" {
			t.Errorf("unexpected oauth form: %v", r.PostForm)
		}
		_, _ = io.WriteString(w, `{"access_token":"fresh","refresh_token":"refresh-2","expires_in":86400}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	var savedAccess, savedRefresh string
	sink := func(access, refresh string) error {
		savedAccess, savedRefresh = access, refresh
		return nil
	}
	client, err := shikimori.New(server.URL+"/api", server.URL+"/oauth/token", shikimori.Credentials{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ClientID:     "id",
		ClientSecret: "secret",
	}, shikimori.WithTokenSink(sink))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	user, err := client.WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("WhoAmI returned error: %v", err)
	}
	if user.ID != 7 || user.Nickname != "viewer" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if apiCalls.Load() != 2 || oauthCalls.Load() != 1 {
		t.Fatalf("expected 2 api calls and 1 refresh, got %d/%d", apiCalls.Load(), oauthCalls.Load())
	}
	if savedAccess != "fresh" || savedRefresh != "refresh-2" || client.AccessToken() != "fresh" {
		t.Fatalf("tokens not propagated: sink=%q/%q client=%q", savedAccess, savedRefresh, client.AccessToken())
	}
}

func TestUnauthorizedWithoutRefreshCredentials(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	_, err := newClient(t, server.URL).WhoAmI(context.Background())
	if !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestAddAndDeleteRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/user_rates":
			var body map[string]map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			rate := body["user_rate"]
			if rate["target_type"] != "Anime" || rate["target_id"] != float64(99) || rate["status"] != "planned" {
				t.Errorf("unexpected create body: %v", rate)
			}
			writeJSON(t, w, http.StatusCreated, map[string]any{"id": 500, "status": "planned", "episodes": 0})
		case r.Method == http.MethodDelete && r.URL.Path == "/user_rates/500":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete && r.URL.Path == "/user_rates/501":
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	t.Cleanup(server.Close)

	client := newClient(t, server.URL)
	created, err := client.AddToList(context.Background(), 7, watchlist.KindAnime, 99, "")
	if err != nil {
		t.Fatalf("AddToList returned error: %v", err)
	}
	if created.RateID != 500 || created.Status != watchlist.StatusPlanned {
		t.Fatalf("unexpected created rate: %+v", created)
	}
	if err := client.DeleteFromList(context.Background(), 500); err != nil {
		t.Fatalf("DeleteFromList returned error: %v", err)
	}
	if err := client.DeleteFromList(context.Background(), 501); err != nil {
		t.Fatalf("deleting a missing rate should succeed, got %v", err)
	}
}

func TestSearchItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/animes" || q.Get("q") != "frieren" || q.Get("order") != "popularity" || q.Get("limit") != "5" {
			t.Errorf("unexpected search request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `[{"id":52991,"name":"Sousou no Frieren","russian":"Провожающая в последний путь Фрирен","episodes":28,"aired_on":"2023-09-29"}]`)
	}))
	t.Cleanup(server.Close)

	items, err := newClient(t, server.URL).SearchItems(context.Background(), watchlist.KindAnime, " frieren ", 5)
	if err != nil {
		t.Fatalf("SearchItems returned error: %v", err)
	}
	if len(items) != 1 || items[0].Year() != 2023 || items[0].Episodes != 28 {
		t.Fatalf("unexpected items: %+v", items)
	}
	if _, err := newClient(t, server.URL).SearchItems(context.Background(), watchlist.KindAnime, "  ", 5); err == nil {
		t.Fatal("expected error for empty query")
	}
}
