package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper.
type ViperLoader struct {
	configFile string
	envPrefix  string
	flags      *pflag.FlagSet
}

// flagKeys maps command-line flags to the settings they override.
var flagKeys = map[string]string{
	"collection": "store.collection",
	"transport":  "transport.type",
	"log-level":  "observability.log_level",
	"log-format": "observability.log_format",
}

// NewViperLoader creates a new ViperLoader.
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "DOCSTREAM")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithFlags lets changed flags override every other source.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	l.flags = flags
	return l
}

// Load loads configuration with precedence: flags > ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	cfg, _, err := l.load(false)
	return cfg, err
}

func (l *ViperLoader) load(withSecrets bool) (*Config, *Config, error) {
	v := viper.New()
	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	var secrets *Config
	if withSecrets {
		var err error
		if secrets, err = l.mergeSecrets(v); err != nil {
			return nil, nil, err
		}
	}

	v.SetEnvPrefix(l.envPrefix)
	l.bindEnvVars(v)
	if err := l.bindFlags(v); err != nil {
		return nil, nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, secrets, nil
}

// bindEnvVars explicitly binds environment variables for nested keys.
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	v.BindEnv("store.collection", l.prefixedEnv("STORE_COLLECTION"))
	v.BindEnv("store.encryption_key", l.prefixedEnv("STORE_ENCRYPTION_KEY"), l.prefixedEnv("ENCRYPTION_KEY"))
	v.BindEnv("store.cache_ttl", l.prefixedEnv("STORE_CACHE_TTL"))
	v.BindEnv("store.max_content_length", l.prefixedEnv("STORE_MAX_CONTENT_LENGTH"))
	v.BindEnv("store.max_documents", l.prefixedEnv("STORE_MAX_DOCUMENTS"))

	v.BindEnv("transport.type", l.prefixedEnv("TRANSPORT_TYPE"))
	v.BindEnv("transport.rest.base_url", l.prefixedEnv("TRANSPORT_REST_BASE_URL"))
	v.BindEnv("transport.rest.channel_id", l.prefixedEnv("TRANSPORT_REST_CHANNEL_ID"))
	v.BindEnv("transport.rest.token", l.prefixedEnv("TRANSPORT_REST_TOKEN"))
	v.BindEnv("transport.rest.auth_scheme", l.prefixedEnv("TRANSPORT_REST_AUTH_SCHEME"))
	v.BindEnv("transport.rest.operation_timeout", l.prefixedEnv("TRANSPORT_REST_OPERATION_TIMEOUT"))
	v.BindEnv("transport.rest.requests_per_second", l.prefixedEnv("TRANSPORT_REST_REQUESTS_PER_SECOND"))
	v.BindEnv("transport.rest.burst", l.prefixedEnv("TRANSPORT_REST_BURST"))
	v.BindEnv("transport.rest.max_retries", l.prefixedEnv("TRANSPORT_REST_MAX_RETRIES"))
	v.BindEnv("transport.rest.max_retry_wait", l.prefixedEnv("TRANSPORT_REST_MAX_RETRY_WAIT"))
	v.BindEnv("transport.rest.breaker_max_failures", l.prefixedEnv("TRANSPORT_REST_BREAKER_MAX_FAILURES"))
	v.BindEnv("transport.rest.breaker_open_timeout", l.prefixedEnv("TRANSPORT_REST_BREAKER_OPEN_TIMEOUT"))

	v.BindEnv("transport.redis.url", l.prefixedEnv("TRANSPORT_REDIS_URL"), l.prefixedEnv("REDIS_URL"))
	v.BindEnv("transport.redis.channel", l.prefixedEnv("TRANSPORT_REDIS_CHANNEL"))
	v.BindEnv("transport.redis.key_prefix", l.prefixedEnv("TRANSPORT_REDIS_KEY_PREFIX"))
	v.BindEnv("transport.redis.max_conns", l.prefixedEnv("TRANSPORT_REDIS_MAX_CONNS"))
	v.BindEnv("transport.redis.operation_timeout", l.prefixedEnv("TRANSPORT_REDIS_OPERATION_TIMEOUT"))

	v.BindEnv("transport.mongodb.url", l.prefixedEnv("TRANSPORT_MONGODB_URL"), l.prefixedEnv("MONGODB_URL"))
	v.BindEnv("transport.mongodb.database", l.prefixedEnv("TRANSPORT_MONGODB_DATABASE"))
	v.BindEnv("transport.mongodb.collection", l.prefixedEnv("TRANSPORT_MONGODB_COLLECTION"))
	v.BindEnv("transport.mongodb.connect_timeout", l.prefixedEnv("TRANSPORT_MONGODB_CONNECT_TIMEOUT"))
	v.BindEnv("transport.mongodb.operation_timeout", l.prefixedEnv("TRANSPORT_MONGODB_OPERATION_TIMEOUT"))

	v.BindEnv("observability.log_level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.metrics_enabled", l.prefixedEnv("METRICS_ENABLED"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := l.flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = "DOCSTREAM"
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("store.collection", cfg.Store.Collection)
	v.SetDefault("store.encryption_key", cfg.Store.EncryptionKey)
	v.SetDefault("store.cache_ttl", cfg.Store.CacheTTL)
	v.SetDefault("store.max_content_length", cfg.Store.MaxContentLength)
	v.SetDefault("store.max_documents", cfg.Store.MaxDocuments)

	v.SetDefault("transport.type", cfg.Transport.Type)
	v.SetDefault("transport.rest.base_url", cfg.Transport.REST.BaseURL)
	v.SetDefault("transport.rest.channel_id", cfg.Transport.REST.ChannelID)
	v.SetDefault("transport.rest.token", cfg.Transport.REST.Token)
	v.SetDefault("transport.rest.auth_scheme", cfg.Transport.REST.AuthScheme)
	v.SetDefault("transport.rest.operation_timeout", cfg.Transport.REST.OperationTimeout)
	v.SetDefault("transport.rest.requests_per_second", cfg.Transport.REST.RequestsPerSecond)
	v.SetDefault("transport.rest.burst", cfg.Transport.REST.Burst)
	v.SetDefault("transport.rest.max_retries", cfg.Transport.REST.MaxRetries)
	v.SetDefault("transport.rest.max_retry_wait", cfg.Transport.REST.MaxRetryWait)
	v.SetDefault("transport.rest.breaker_max_failures", cfg.Transport.REST.BreakerMaxFailures)
	v.SetDefault("transport.rest.breaker_open_timeout", cfg.Transport.REST.BreakerOpenTimeout)

	v.SetDefault("transport.redis.url", cfg.Transport.Redis.URL)
	v.SetDefault("transport.redis.channel", cfg.Transport.Redis.Channel)
	v.SetDefault("transport.redis.key_prefix", cfg.Transport.Redis.KeyPrefix)
	v.SetDefault("transport.redis.max_conns", cfg.Transport.Redis.MaxConns)
	v.SetDefault("transport.redis.operation_timeout", cfg.Transport.Redis.OperationTimeout)

	v.SetDefault("transport.mongodb.url", cfg.Transport.MongoDB.URL)
	v.SetDefault("transport.mongodb.database", cfg.Transport.MongoDB.Database)
	v.SetDefault("transport.mongodb.collection", cfg.Transport.MongoDB.Collection)
	v.SetDefault("transport.mongodb.connect_timeout", cfg.Transport.MongoDB.ConnectTimeout)
	v.SetDefault("transport.mongodb.operation_timeout", cfg.Transport.MongoDB.OperationTimeout)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
}

// Validate validates the configuration and returns every problem found.
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.Transport.Type = strings.ToLower(strings.TrimSpace(cfg.Transport.Type))
	if strings.TrimSpace(cfg.Store.Collection) == "" {
		errs = append(errs, errors.New("store.collection is required"))
	}
	if cfg.Store.MaxContentLength <= 0 {
		errs = append(errs, fmt.Errorf("store.max_content_length must be > 0, got %d", cfg.Store.MaxContentLength))
	}
	if cfg.Store.MaxDocuments < 0 {
		errs = append(errs, fmt.Errorf("store.max_documents must be >= 0, got %d", cfg.Store.MaxDocuments))
	}

	switch cfg.Transport.Type {
	case TransportTypeMemory:
	case TransportTypeREST:
		rest := cfg.Transport.REST
		if rest.BaseURL == "" {
			errs = append(errs, errors.New("transport.rest.base_url is required for the rest transport"))
		}
		if rest.ChannelID == "" {
			errs = append(errs, errors.New("transport.rest.channel_id is required for the rest transport"))
		}
		if rest.Token == "" {
			errs = append(errs, errors.New("transport.rest.token is required for the rest transport"))
		}
		if rest.RequestsPerSecond < 0 {
			errs = append(errs, fmt.Errorf("transport.rest.requests_per_second must be >= 0, got %v", rest.RequestsPerSecond))
		}
		if rest.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("transport.rest.max_retries must be >= 0, got %d", rest.MaxRetries))
		}
	case TransportTypeRedis:
		if cfg.Transport.Redis.URL == "" {
			errs = append(errs, errors.New("transport.redis.url is required for the redis transport"))
		}
	case TransportTypeMongoDB:
		if cfg.Transport.MongoDB.URL == "" {
			errs = append(errs, errors.New("transport.mongodb.url is required for the mongodb transport"))
		}
		if cfg.Transport.MongoDB.Database == "" {
			errs = append(errs, errors.New("transport.mongodb.database is required for the mongodb transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid transport.type: %s (must be one of: %v)", cfg.Transport.Type,
			[]string{TransportTypeMemory, TransportTypeREST, TransportTypeRedis, TransportTypeMongoDB}))
	}

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	if !contains(validLevels, strings.ToLower(cfg.Observability.LogLevel)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_level: %s (must be one of: %v)", cfg.Observability.LogLevel, validLevels))
	}
	validFormats := []string{"json", "text", "console"}
	if !contains(validFormats, strings.ToLower(cfg.Observability.LogFormat)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: %v)", cfg.Observability.LogFormat, validFormats))
	}
	if cfg.Observability.TracingSampleRate < 0 || cfg.Observability.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing_sample_rate must be within [0,1], got %v", cfg.Observability.TracingSampleRate))
	}

	return errors.Join(errs...)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
