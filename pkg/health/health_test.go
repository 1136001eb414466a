package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nimburion/docstream/pkg/docstore"
	"github.com/nimburion/docstream/pkg/transport"
)

type mockChecker struct {
	name   string
	status Status
	calls  int
	wait   bool
}

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	m.calls++
	if m.wait {
		<-ctx.Done()
		return CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
	}
	return CheckResult{Status: m.status}
}

func (m *mockChecker) Name() string { return m.name }

type panicChecker struct{}

func (panicChecker) Check(context.Context) CheckResult { panic("boom") }

func (panicChecker) Name() string { return "panics" }

type stubReloader struct {
	err   error
	stats docstore.CacheStats
}

func (s *stubReloader) Reload(ctx context.Context) error { return s.err }

func (s *stubReloader) CacheStats() docstore.CacheStats { return s.stats }

func TestRegistry_AggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{name: "empty", want: StatusHealthy},
		{name: "all healthy", statuses: []Status{StatusHealthy, StatusHealthy}, want: StatusHealthy},
		{name: "degraded", statuses: []Status{StatusHealthy, StatusDegraded}, want: StatusDegraded},
		{name: "unhealthy wins", statuses: []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(0)
			for i, s := range tt.statuses {
				r.Register(&mockChecker{name: fmt.Sprintf("check-%d", i), status: s})
			}
			res := r.Check(context.Background())
			if res.Status != tt.want {
				t.Errorf("status = %s, want %s", res.Status, tt.want)
			}
			if len(res.Checks) != len(tt.statuses) {
				t.Fatalf("got %d results, want %d", len(res.Checks), len(tt.statuses))
			}
			for i, c := range res.Checks {
				if want := fmt.Sprintf("check-%d", i); c.Name != want {
					t.Errorf("result %d = %s, want %s", i, c.Name, want)
				}
				if c.Timestamp.IsZero() {
					t.Errorf("result %d has no timestamp", i)
				}
			}
			if res.Healthy() != (tt.want == StatusHealthy) {
				t.Errorf("Healthy mismatch for %s", res.Status)
			}
		})
	}
}

func TestRegistry_RegisterReplacesInPlace(t *testing.T) {
	r := NewRegistry(0)
	r.Register(&mockChecker{name: "b", status: StatusUnhealthy})
	r.Register(&mockChecker{name: "a", status: StatusHealthy})
	r.Register(&mockChecker{name: "b", status: StatusHealthy})

	if names := r.Names(); len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Errorf("unexpected names %v", names)
	}
	if res := r.Check(context.Background()); !res.Healthy() {
		t.Errorf("replaced check still unhealthy: %+v", res)
	}
}

func TestRegistry_SkipsDependents(t *testing.T) {
	down := &mockChecker{name: "transport", status: StatusUnhealthy}
	dependent := &mockChecker{name: "collection", status: StatusHealthy}
	independent := &mockChecker{name: "other", status: StatusHealthy}

	r := NewRegistry(0)
	r.Register(down)
	r.Register(dependent, "transport")
	r.Register(independent)
	res := r.Check(context.Background())

	if dependent.calls != 0 {
		t.Error("dependent check ran although its dependency failed")
	}
	if independent.calls != 1 {
		t.Error("independent check did not run")
	}
	skipped := res.Checks[1]
	if skipped.Status != StatusUnhealthy || skipped.Message != "skipped" || skipped.Error != "depends on transport" {
		t.Errorf("unexpected skipped result %+v", skipped)
	}
}

func TestRegistry_TimeoutAndPanic(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	r.Register(&mockChecker{name: "slow", wait: true})
	r.Register(panicChecker{})
	r.Register(&mockChecker{name: "blank"})

	res := r.Check(context.Background())
	if res.Status != StatusUnhealthy || len(res.Checks) != 3 {
		t.Fatalf("unexpected report %+v", res)
	}
	if !strings.Contains(res.Checks[0].Error, "deadline") {
		t.Errorf("slow check error = %q", res.Checks[0].Error)
	}
	if res.Checks[1].Name != "panics" || !strings.Contains(res.Checks[1].Error, "boom") {
		t.Errorf("panic not reported: %+v", res.Checks[1])
	}
	if res.Checks[2].Status != StatusUnhealthy {
		t.Errorf("check without status should be unhealthy, got %+v", res.Checks[2])
	}
}

func TestTransportChecker(t *testing.T) {
	mem := transport.NewMemory(0)
	c := NewTransportChecker("transport", mem)
	if res := c.Check(context.Background()); res.Status != StatusHealthy || res.Name != "transport" {
		t.Errorf("unexpected result %+v", res)
	}
	_ = mem.Close()
	if res := c.Check(context.Background()); res.Status != StatusUnhealthy || res.Error == "" {
		t.Errorf("closed transport should be unhealthy, got %+v", res)
	}
}

func TestCollectionChecker(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{name: "reload ok", want: StatusHealthy},
		{name: "rate limited", err: fmt.Errorf("%w: slow down", transport.ErrRateLimited), want: StatusDegraded},
		{name: "missing key", err: docstore.ErrNoKey, want: StatusUnhealthy},
		{name: "network", err: errors.New("connection reset"), want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollectionChecker("users", &stubReloader{err: tt.err, stats: docstore.CacheStats{Documents: 3}})
			res := c.Check(context.Background())
			if res.Status != tt.want {
				t.Errorf("status = %s, want %s", res.Status, tt.want)
			}
			if tt.err == nil && res.Metadata["documents"] != 3 {
				t.Errorf("expected document count metadata, got %v", res.Metadata)
			}
			if tt.err != nil && res.Error != tt.err.Error() {
				t.Errorf("error = %q, want %q", res.Error, tt.err.Error())
			}
		})
	}
}

func TestCollectionChecker_AgainstStore(t *testing.T) {
	ctx := context.Background()
	mem := transport.NewMemory(0)
	writer, err := docstore.New(docstore.Config{Collection: "users", EncryptionKey: "k"}, mem, nil)
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	if _, err := writer.InsertOne(ctx, map[string]any{"_id": "a"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	reader, err := docstore.New(docstore.Config{Collection: "users"}, mem, nil)
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}

	r := NewRegistry(0)
	r.Register(NewTransportChecker("transport", reader))
	r.Register(NewCollectionChecker("collection", reader), "transport")
	res := r.Check(ctx)
	if res.Status != StatusUnhealthy {
		t.Fatalf("store without key should be unhealthy, got %+v", res)
	}
	if res.Checks[0].Status != StatusHealthy || res.Checks[1].Name != "collection" || res.Checks[1].Error == "" {
		t.Errorf("unexpected checks %+v", res.Checks)
	}
}
