package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimburion/docstream/pkg/resilience"
	"github.com/nimburion/docstream/pkg/transport"
)

// fakeChannel serves a single channel's messages the way the real API does.
type fakeChannel struct {
	mu       sync.Mutex
	seq      int
	messages []wireMessage
	token    string
}

func (f *fakeChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bot "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "channels" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"id": parts[1]})
	case len(parts) == 3 && r.Method == http.MethodPost:
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.seq++
		m := wireMessage{ID: strconv.Itoa(f.seq), Content: body["content"], Timestamp: time.Unix(int64(f.seq), 0).UTC()}
		f.messages = append(f.messages, m)
		writeJSON(w, http.StatusOK, m)
	case len(parts) == 3 && r.Method == http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		before, _ := strconv.Atoi(r.URL.Query().Get("before"))
		out := []wireMessage{}
		for i := len(f.messages) - 1; i >= 0 && len(out) < limit; i-- {
			id, _ := strconv.Atoi(f.messages[i].ID)
			if before > 0 && id >= before {
				continue
			}
			out = append(out, f.messages[i])
		}
		writeJSON(w, http.StatusOK, out)
	case len(parts) == 4 && r.Method == http.MethodPatch:
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		for i := range f.messages {
			if f.messages[i].ID == parts[3] {
				f.messages[i].Content = body["content"]
				writeJSON(w, http.StatusOK, f.messages[i])
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	case len(parts) == 4 && r.Method == http.MethodDelete:
		for i := range f.messages {
			if f.messages[i].ID == parts[3] {
				f.messages = append(f.messages[:i], f.messages[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, handler http.Handler, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := Config{BaseURL: srv.URL, ChannelID: "c1", Token: "secret"}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	cases := []Config{
		{ChannelID: "c", Token: "t"},
		{BaseURL: "http://x", Token: "t"},
		{BaseURL: "http://x", ChannelID: "c"},
	}
	for i, cfg := range cases {
		if _, err := New(cfg, nil); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestClient_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &fakeChannel{token: "secret"}, nil)

	if !c.TestConnection(ctx) {
		t.Fatal("expected connection test to pass")
	}
	first, err := c.Create(ctx, `{"_id":"a"}`)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := c.Create(ctx, `{"_id":"b"}`); err != nil {
		t.Fatalf("Create: %v", err)
	}
	edited, err := c.Edit(ctx, first.ID, `{"_id":"a","v":2}`)
	if err != nil || edited.Content != `{"_id":"a","v":2}` {
		t.Fatalf("Edit: %+v %v", edited, err)
	}
	all, err := c.ListAll(ctx, 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListAll: %v %v", all, err)
	}
	if all[0].Content != `{"_id":"b"}` {
		t.Errorf("expected newest first, got %q", all[0].Content)
	}
	if err := c.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(ctx, first.ID); !errors.Is(err, transport.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_PaginatesWithBeforeCursor(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &fakeChannel{token: "secret"}, nil)
	for i := 0; i < transport.DefaultPageSize+5; i++ {
		if _, err := c.Create(ctx, strconv.Itoa(i)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	all, err := c.ListAll(ctx, 0)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != transport.DefaultPageSize+5 {
		t.Fatalf("expected %d messages, got %d", transport.DefaultPageSize+5, len(all))
	}
	capped, err := c.ListAll(ctx, 7)
	if err != nil || len(capped) != 7 {
		t.Fatalf("capped ListAll: %d %v", len(capped), err)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, transport.ErrAuthentication},
		{http.StatusForbidden, transport.ErrAuthentication},
		{http.StatusNotFound, transport.ErrNotFound},
		{http.StatusTooManyRequests, transport.ErrRateLimited},
		{http.StatusBadGateway, transport.ErrNetwork},
	}
	for _, tc := range cases {
		status := tc.status
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if status == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "2.5")
			}
			w.WriteHeader(status)
		}), nil)
		_, err := c.List(ctx, 10, "")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: expected %v, got %v", status, tc.want, err)
		}
		var rl *transport.RateLimitError
		if status == http.StatusTooManyRequests && (!errors.As(err, &rl) || rl.RetryAfter != 2500*time.Millisecond) {
			t.Errorf("expected retry after 2.5s, got %v", err)
		}
	}
}

func TestClient_RetriesRateLimited(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, rateLimitBody{RetryAfter: 0.01})
			return
		}
		writeJSON(w, http.StatusOK, []wireMessage{})
	}), func(cfg *Config) { cfg.MaxRetries = 2 })

	if _, err := c.List(context.Background(), 10, ""); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestClient_RejectsOversizedContent(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}), nil)
	_, err := c.Create(context.Background(), strings.Repeat("x", transport.MaxContentLength+1))
	if !errors.Is(err, transport.ErrContentTooLarge) {
		t.Fatalf("expected ErrContentTooLarge, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("oversized content must not reach the server")
	}
}

func TestClient_CircuitBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), func(cfg *Config) {
		cfg.Breaker = resilience.Config{MaxFailures: 2, OpenTimeout: time.Minute}
	})
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := c.List(ctx, 1, ""); !errors.Is(err, transport.ErrNetwork) {
			t.Fatalf("call %d: expected ErrNetwork, got %v", i, err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("expected breaker to stop calls after 2 failures, server saw %d", calls.Load())
	}
}

func TestClient_TestConnectionBadToken(t *testing.T) {
	c := newTestClient(t, &fakeChannel{token: "other"}, nil)
	if c.TestConnection(context.Background()) {
		t.Error("expected connection test to fail with a bad token")
	}
}
