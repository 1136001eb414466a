// Package health aggregates readiness checks of a docstream deployment.
package health

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// DefaultTimeout bounds a single check when none is given.
const DefaultTimeout = 5 * time.Second

// Status is the outcome of a check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// CheckResult is the outcome of one named check. Timestamp and Duration are
// filled in by the registry.
type CheckResult struct {
	Name      string         `json:"name" yaml:"name"`
	Status    Status         `json:"status" yaml:"status"`
	Message   string         `json:"message,omitempty" yaml:"message,omitempty"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration  `json:"duration" yaml:"duration"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Checker reports the health of one component.
type Checker interface {
	Check(ctx context.Context) CheckResult
	Name() string
}

type entry struct {
	checker   Checker
	dependsOn []string
}

// Registry runs checks in registration order. A check is skipped, and
// reported unhealthy, when one of its dependencies is unhealthy.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	timeout time.Duration
}

// NewRegistry creates a registry bounding each check by timeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{timeout: timeout}
}

// Register adds a check. A check with the same name is replaced in place.
func (r *Registry) Register(c Checker, dependsOn ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := entry{checker: c, dependsOn: dependsOn}
	for i := range r.entries {
		if r.entries[i].checker.Name() == c.Name() {
			r.entries[i] = e
			return
		}
	}
	r.entries = append(r.entries, e)
}

// Names lists the registered checks in run order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.checker.Name()
	}
	return names
}

// Check runs every check. The report status is the worst check status.
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.Lock()
	entries := slices.Clone(r.entries)
	r.mu.Unlock()

	start := time.Now()
	report := Report{Status: StatusHealthy, Checks: make([]CheckResult, 0, len(entries))}
	unhealthy := map[string]bool{}
	for _, e := range entries {
		var res CheckResult
		if dep := firstFailed(e.dependsOn, unhealthy); dep != "" {
			res = CheckResult{
				Name:      e.checker.Name(),
				Status:    StatusUnhealthy,
				Message:   "skipped",
				Error:     fmt.Sprintf("depends on %s", dep),
				Timestamp: time.Now(),
			}
		} else {
			res = r.run(ctx, e.checker)
		}
		if res.Status == StatusUnhealthy {
			unhealthy[res.Name] = true
		}
		if res.Status.severity() > report.Status.severity() {
			report.Status = res.Status
		}
		report.Checks = append(report.Checks, res)
	}
	report.Timestamp = time.Now()
	report.Duration = time.Since(start)
	return report
}

func (r *Registry) run(ctx context.Context, c Checker) (res CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = CheckResult{Status: StatusUnhealthy, Error: fmt.Sprintf("check panicked: %v", p)}
		}
		res.Name = c.Name()
		if res.Status == "" {
			res.Status = StatusUnhealthy
		}
		res.Timestamp = start
		res.Duration = time.Since(start)
	}()
	return c.Check(ctx)
}

func firstFailed(deps []string, unhealthy map[string]bool) string {
	for _, d := range deps {
		if unhealthy[d] {
			return d
		}
	}
	return ""
}

// Report aggregates one run of the registry.
type Report struct {
	Status    Status        `json:"status" yaml:"status"`
	Checks    []CheckResult `json:"checks" yaml:"checks"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}
