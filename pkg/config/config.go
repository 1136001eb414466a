package config

import "time"

// Transport type constants
const (
	// TransportTypeMemory keeps the log in process memory.
	TransportTypeMemory = "memory"
	// TransportTypeREST talks to a chat-channel REST API.
	TransportTypeREST = "rest"
	// TransportTypeRedis stores the log in Redis.
	TransportTypeRedis = "redis"
	// TransportTypeMongoDB stores the log in a MongoDB collection.
	TransportTypeMongoDB = "mongodb"
)

// Config is the root configuration of a docstream process.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	Store         StoreConfig         `mapstructure:"store"`
	Transport     TransportConfig     `mapstructure:"transport"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServiceConfig identifies the process in logs, metrics and traces.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StoreConfig configures the document store.
type StoreConfig struct {
	Collection string `mapstructure:"collection"`
	// EncryptionKey enables payload encryption when set. Belongs in the secrets file.
	EncryptionKey string `mapstructure:"encryption_key" secret:"true"`
	// CacheTTL is the snapshot staleness threshold; negative disables caching.
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	MaxContentLength int           `mapstructure:"max_content_length"`
	MaxDocuments     int           `mapstructure:"max_documents"`
}

// TransportConfig selects and configures the message log backend.
type TransportConfig struct {
	Type    string                 `mapstructure:"type"`
	REST    RESTTransportConfig    `mapstructure:"rest"`
	Redis   RedisTransportConfig   `mapstructure:"redis"`
	MongoDB MongoDBTransportConfig `mapstructure:"mongodb"`
}

// RESTTransportConfig configures the channel REST API client.
type RESTTransportConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	ChannelID          string        `mapstructure:"channel_id"`
	Token              string        `mapstructure:"token" secret:"true"`
	AuthScheme         string        `mapstructure:"auth_scheme"`
	OperationTimeout   time.Duration `mapstructure:"operation_timeout"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
	Burst              int           `mapstructure:"burst"`
	MaxRetries         int           `mapstructure:"max_retries"`
	MaxRetryWait       time.Duration `mapstructure:"max_retry_wait"`
	BreakerMaxFailures int           `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`
}

// RedisTransportConfig configures the Redis backend.
type RedisTransportConfig struct {
	URL              string        `mapstructure:"url"`
	Channel          string        `mapstructure:"channel"`
	KeyPrefix        string        `mapstructure:"key_prefix"`
	MaxConns         int           `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// MongoDBTransportConfig configures the MongoDB backend.
type MongoDBTransportConfig struct {
	URL              string        `mapstructure:"url"`
	Database         string        `mapstructure:"database"`
	Collection       string        `mapstructure:"collection"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level"`
	LogFormat         string  `mapstructure:"log_format"` // json, text
	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate"`
}

// DefaultConfig returns a configuration that runs against the in-memory log.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "docstream",
			Environment: "development",
		},
		Store: StoreConfig{
			Collection:       "default",
			CacheTTL:         time.Minute,
			MaxContentLength: 2000,
			MaxDocuments:     10000,
		},
		Transport: TransportConfig{
			Type: TransportTypeMemory,
			REST: RESTTransportConfig{
				AuthScheme:         "Bot",
				OperationTimeout:   10 * time.Second,
				RequestsPerSecond:  5,
				Burst:              5,
				MaxRetries:         2,
				MaxRetryWait:       30 * time.Second,
				BreakerMaxFailures: 5,
				BreakerOpenTimeout: 30 * time.Second,
			},
			Redis: RedisTransportConfig{
				KeyPrefix:        "docstream",
				MaxConns:         10,
				OperationTimeout: 5 * time.Second,
			},
			MongoDB: MongoDBTransportConfig{
				Database:         "docstream",
				ConnectTimeout:   5 * time.Second,
				OperationTimeout: 5 * time.Second,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			TracingEndpoint:   "localhost:4317",
			TracingSampleRate: 1.0,
		},
	}
}
