// Package factory builds the configured message log backend.
package factory

import (
	"fmt"
	"strings"

	"github.com/nimburion/docstream/pkg/config"
	"github.com/nimburion/docstream/pkg/observability/logger"
	"github.com/nimburion/docstream/pkg/resilience"
	"github.com/nimburion/docstream/pkg/transport"
	"github.com/nimburion/docstream/pkg/transport/mongodb"
	"github.com/nimburion/docstream/pkg/transport/redis"
	"github.com/nimburion/docstream/pkg/transport/rest"
)

// NewTransport selects and initializes the transport named by cfg.Type.
// Remote backends verify connectivity before returning.
func NewTransport(cfg config.TransportConfig, maxContentLength int, log logger.Logger) (transport.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.TransportTypeMemory, "":
		return transport.NewMemory(maxContentLength), nil
	case config.TransportTypeREST:
		return rest.New(rest.Config{
			BaseURL:           cfg.REST.BaseURL,
			ChannelID:         cfg.REST.ChannelID,
			Token:             cfg.REST.Token,
			AuthScheme:        cfg.REST.AuthScheme,
			OperationTimeout:  cfg.REST.OperationTimeout,
			RequestsPerSecond: cfg.REST.RequestsPerSecond,
			Burst:             cfg.REST.Burst,
			MaxRetries:        cfg.REST.MaxRetries,
			MaxRetryWait:      cfg.REST.MaxRetryWait,
			MaxContentLength:  maxContentLength,
			Breaker: resilience.Config{
				MaxFailures: cfg.REST.BreakerMaxFailures,
				OpenTimeout: cfg.REST.BreakerOpenTimeout,
			},
		}, log)
	case config.TransportTypeRedis:
		return redis.New(redis.Config{
			URL:              cfg.Redis.URL,
			Channel:          cfg.Redis.Channel,
			KeyPrefix:        cfg.Redis.KeyPrefix,
			MaxConns:         cfg.Redis.MaxConns,
			OperationTimeout: cfg.Redis.OperationTimeout,
			MaxContentLength: maxContentLength,
		}, log)
	case config.TransportTypeMongoDB:
		return mongodb.New(mongodb.Config{
			URL:              cfg.MongoDB.URL,
			Database:         cfg.MongoDB.Database,
			Collection:       cfg.MongoDB.Collection,
			ConnectTimeout:   cfg.MongoDB.ConnectTimeout,
			OperationTimeout: cfg.MongoDB.OperationTimeout,
			MaxContentLength: maxContentLength,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported transport.type %q (supported: memory, rest, redis, mongodb)", cfg.Type)
	}
}
