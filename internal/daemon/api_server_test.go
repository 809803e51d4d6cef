package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shikiwatch/internal/api"
	"shikiwatch/internal/logging"
	"shikiwatch/internal/matcher"
	"shikiwatch/internal/scrobble"
	"shikiwatch/internal/services"
	"shikiwatch/internal/watchlist"
)

type stubBackend struct {
	requests    []api.ScrobbleRequest
	result      scrobble.Result
	scrobbleErr error
	cancelled   int
	refreshErr  error
	suggestQ    string
	suggestN    int
	historyN    int
	historyErr  error
}

func (s *stubBackend) Status(context.Context) api.DaemonStatus {
	return api.DaemonStatus{Running: true, PID: 77, UserID: 4242}
}

func (s *stubBackend) Scrobble(_ context.Context, req api.ScrobbleRequest) (scrobble.Result, error) {
	s.requests = append(s.requests, req)
	return s.result, s.scrobbleErr
}

func (s *stubBackend) CancelScrobble() int { return s.cancelled }

func (s *stubBackend) Refresh(context.Context) (int, error) { return 3, s.refreshErr }

func (s *stubBackend) InvalidateSynonyms(context.Context) (int, error) { return 12, nil }

func (s *stubBackend) Suggest(_ context.Context, q string, limit int) ([]matcher.Match, error) {
	s.suggestQ, s.suggestN = q, limit
	return []matcher.Match{{
		Entry: watchlist.TrackedEntry{
			RateID:   1,
			Status:   watchlist.StatusWatching,
			Episodes: 2,
			Anime:    &watchlist.Item{ID: 10, Name: "Mushishi", Episodes: 26},
		},
		Score:       0.55,
		MatchedName: "Mushishi",
	}}, nil
}

func (s *stubBackend) History(_ context.Context, limit int) (api.HistoryResponse, error) {
	s.historyN = limit
	return api.HistoryResponse{Total: 4, Counts: map[string]int{"updated": 4}}, s.historyErr
}

func (s *stubBackend) TestNotification(context.Context) (bool, string, error) {
	return false, "ntfy topic not configured", nil
}

func newTestRouter(t *testing.T, token string, b backend) http.Handler {
	t.Helper()
	return newAPIServer("127.0.0.1:0", token, b, logging.NewNop()).router
}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func TestAPIStatus(t *testing.T) {
	h := newTestRouter(t, "", &stubBackend{})
	rec := do(t, h, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	status := decode[api.DaemonStatus](t, rec)
	if !status.Running || status.PID != 77 || status.UserID != 4242 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestAPIAuth(t *testing.T) {
	h := newTestRouter(t, "secret", &stubBackend{})

	if rec := do(t, h, http.MethodGet, "/api/status", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token code = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/status", "", "Authorization", "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token code = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/status", "", "Authorization", "Basic secret"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme code = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/status", "", "Authorization", "Bearer secret"); rec.Code != http.StatusOK {
		t.Fatalf("valid token code = %d", rec.Code)
	}
}

func TestAPIScrobble(t *testing.T) {
	b := &stubBackend{result: scrobble.Result{
		Kind:      scrobble.ResultUpdated,
		Success:   true,
		Candidate: watchlist.EpisodeCandidate{SeriesNameRaw: "Mushishi", Episode: 3},
		Message:   "Updated Mushishi to episode 3",
	}}
	h := newTestRouter(t, "", b)

	rec := do(t, h, http.MethodPost, "/api/scrobble", `{"title":"[Grp] Mushishi - 03.mkv","episode":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}
	got := decode[api.ScrobbleResult](t, rec)
	if !got.Success || got.Kind != "updated" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(b.requests) != 1 || b.requests[0].Episode != 3 {
		t.Fatalf("backend requests = %+v", b.requests)
	}
}

func TestAPIScrobbleValidation(t *testing.T) {
	b := &stubBackend{}
	h := newTestRouter(t, "", b)

	cases := map[string]string{
		"missing title":   `{"episode":3}`,
		"missing episode": `{"title":"Mushishi"}`,
		"unknown field":   `{"title":"Mushishi","episode":3,"extra":true}`,
		"malformed":       `{"title":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/scrobble", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("code = %d", rec.Code)
			}
			if resp := decode[api.ErrorResponse](t, rec); resp.Error == "" {
				t.Fatal("expected error message")
			}
		})
	}
	if len(b.requests) != 0 {
		t.Fatalf("backend should not be called, got %d", len(b.requests))
	}
}

func TestAPIServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrValidation, "daemon", "scrobble", "bad", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrTransient, "shikimori", "update", "down", nil), http.StatusBadGateway},
		{services.Wrap(services.ErrConfiguration, "daemon", "history", "disabled", nil), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		h := newTestRouter(t, "", &stubBackend{scrobbleErr: tc.err})
		rec := do(t, h, http.MethodPost, "/api/scrobble", `{"name":"Mushishi","episode":1}`)
		if rec.Code != tc.want {
			t.Fatalf("%v: code = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestAPIMethodAndRouteErrors(t *testing.T) {
	h := newTestRouter(t, "", &stubBackend{})
	if rec := do(t, h, http.MethodGet, "/api/scrobble", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET scrobble code = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route code = %d", rec.Code)
	}
}

func TestAPISuggest(t *testing.T) {
	b := &stubBackend{}
	h := newTestRouter(t, "", b)

	if rec := do(t, h, http.MethodGet, "/api/suggest", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing q code = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/suggest?q=mushi&limit=zero", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit code = %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/suggest?q=mushi", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	resp := decode[api.SuggestResponse](t, rec)
	if resp.Query != "mushi" || len(resp.Suggestions) != 1 || resp.Suggestions[0].RateID != 1 {
		t.Fatalf("unexpected suggestions: %+v", resp)
	}
	if b.suggestN != defaultSuggestions {
		t.Fatalf("default limit = %d", b.suggestN)
	}
}

func TestAPIHistory(t *testing.T) {
	b := &stubBackend{}
	h := newTestRouter(t, "", b)

	rec := do(t, h, http.MethodGet, "/api/history?limit=7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	resp := decode[api.HistoryResponse](t, rec)
	if resp.Total != 4 || b.historyN != 7 {
		t.Fatalf("unexpected history: %+v limit=%d", resp, b.historyN)
	}

	b.historyErr = services.Wrap(services.ErrConfiguration, "daemon", "history", "history journal is disabled", nil)
	if rec := do(t, h, http.MethodGet, "/api/history", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled history code = %d", rec.Code)
	}
}

func TestAPIMaintenanceEndpoints(t *testing.T) {
	b := &stubBackend{cancelled: 2}
	h := newTestRouter(t, "", b)

	if resp := decode[api.CancelResponse](t, do(t, h, http.MethodPost, "/api/cancel_scrobble", "")); resp.Cancelled != 2 {
		t.Fatalf("cancelled = %d", resp.Cancelled)
	}
	if resp := decode[api.RefreshResponse](t, do(t, h, http.MethodPost, "/api/refresh", "")); resp.Entries != 3 {
		t.Fatalf("refresh entries = %d", resp.Entries)
	}
	if resp := decode[api.InvalidateResponse](t, do(t, h, http.MethodPost, "/api/synonyms/invalidate", "")); resp.Synonyms != 12 {
		t.Fatalf("synonyms = %d", resp.Synonyms)
	}
	if resp := decode[api.NotificationTestResponse](t, do(t, h, http.MethodPost, "/api/notifications/test", "")); resp.Sent {
		t.Fatalf("unexpected notification response: %+v", resp)
	}

	b.refreshErr = services.Wrap(services.ErrTransient, "shikimori", "list", "unavailable", nil)
	if rec := do(t, h, http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("refresh failure code = %d", rec.Code)
	}
}
