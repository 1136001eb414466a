package health

import (
	"context"
	"errors"

	"github.com/nimburion/docstream/pkg/docstore"
	"github.com/nimburion/docstream/pkg/transport"
)

// Pinger reports whether a message log is reachable.
type Pinger interface {
	TestConnection(ctx context.Context) bool
}

// Reloader reloads a collection and reports its cache.
type Reloader interface {
	Reload(ctx context.Context) error
	CacheStats() docstore.CacheStats
}

// TransportChecker checks that the message log answers.
type TransportChecker struct {
	name   string
	pinger Pinger
}

// NewTransportChecker creates a checker that pings p.
func NewTransportChecker(name string, p Pinger) *TransportChecker {
	return &TransportChecker{name: name, pinger: p}
}

// Check reports unhealthy when the log does not answer.
func (c *TransportChecker) Check(ctx context.Context) CheckResult {
	if !c.pinger.TestConnection(ctx) {
		return CheckResult{Status: StatusUnhealthy, Error: "transport unreachable"}
	}
	return CheckResult{Status: StatusHealthy, Message: "OK"}
}

// Name returns the name of the health check.
func (c *TransportChecker) Name() string { return c.name }

// CollectionChecker reloads a collection, which proves every stored entry
// can be read and decrypted with the configured key. Rate limiting is
// reported as degraded.
type CollectionChecker struct {
	name     string
	reloader Reloader
}

// NewCollectionChecker creates a checker that reloads r.
func NewCollectionChecker(name string, r Reloader) *CollectionChecker {
	return &CollectionChecker{name: name, reloader: r}
}

// Check reloads the collection and reports the cached document count.
func (c *CollectionChecker) Check(ctx context.Context) CheckResult {
	err := c.reloader.Reload(ctx)
	switch {
	case err == nil:
		st := c.reloader.CacheStats()
		return CheckResult{
			Status:   StatusHealthy,
			Message:  "OK",
			Metadata: map[string]any{"documents": st.Documents, "reloads": st.Reloads},
		}
	case errors.Is(err, transport.ErrRateLimited):
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	default:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
}

// Name returns the name of the health check.
func (c *CollectionChecker) Name() string { return c.name }
