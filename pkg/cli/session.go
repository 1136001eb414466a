package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimburion/docstream/pkg/config"
	"github.com/nimburion/docstream/pkg/docstore"
	"github.com/nimburion/docstream/pkg/observability/logger"
	"github.com/nimburion/docstream/pkg/observability/metrics"
	"github.com/nimburion/docstream/pkg/observability/tracing"
	"github.com/nimburion/docstream/pkg/version"
)

type app struct {
	opts  Options
	flags *globalFlags
}

// session holds everything a document command needs.
type session struct {
	cfg     *config.Config
	log     logger.Logger
	store   *docstore.Store
	tracer  *tracing.TracerProvider
	metrics *metrics.Registry
	sync    func() error
}

// loadConfig resolves configuration with precedence flags > ENV > secrets file > config file > defaults.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, *config.Config, error) {
	loader := config.NewViperLoader(a.flags.configPath, a.opts.EnvPrefix).WithFlags(cmd.Flags())
	cfg, secrets, err := loader.LoadWithSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, secrets, nil
}

func (a *app) newLogger(cfg *config.Config) (*logger.ZapLogger, error) {
	level, err := logger.ParseLogLevel(cfg.Observability.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseLogFormat(cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}
	out := a.opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	log, err := logger.NewZapLogger(logger.Config{Level: level, Format: format, Output: out})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}

// open wires configuration, logging, tracing, metrics, transport and store.
// forceMetrics enables the metrics registry regardless of configuration.
func (a *app) open(cmd *cobra.Command, forceMetrics bool) (*session, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, _, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	zl, err := a.newLogger(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, sync: zl.Sync}
	s.log = zl.With("service", cfg.Service.Name, "transport", cfg.Transport.Type)

	s.tracer, err = tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: version.Current(a.opts.Name).Version,
		Environment:    cfg.Service.Environment,
		Collection:     cfg.Store.Collection,
		Transport:      cfg.Transport.Type,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	var storeOpts []docstore.Option
	if cfg.Observability.MetricsEnabled || forceMetrics {
		s.metrics = metrics.NewRegistry()
		m, err := metrics.NewStoreMetrics(s.metrics.Registerer())
		if err != nil {
			s.close(ctx)
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		storeOpts = append(storeOpts, docstore.WithMetrics(m))
	}

	tr, err := a.opts.NewTransport(cfg.Transport, cfg.Store.MaxContentLength, s.log)
	if err != nil {
		s.close(ctx)
		return nil, fmt.Errorf("create transport: %w", err)
	}
	s.store, err = docstore.New(docstore.Config{
		Collection:       cfg.Store.Collection,
		EncryptionKey:    cfg.Store.EncryptionKey,
		CacheTTL:         cfg.Store.CacheTTL,
		MaxContentLength: cfg.Store.MaxContentLength,
		MaxDocuments:     cfg.Store.MaxDocuments,
	}, tr, s.log, storeOpts...)
	if err != nil {
		_ = tr.Close()
		s.close(ctx)
		return nil, err
	}
	s.log.Debug("store opened", "collection", cfg.Store.Collection, "encrypted", s.store.Encrypted())
	return s, nil
}

func (s *session) close(ctx context.Context) {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.tracer != nil {
		errs = append(errs, s.tracer.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil && s.log != nil {
		s.log.Warn("shutdown incomplete", "error", err)
	}
	if s.sync != nil {
		_ = s.sync()
	}
}

// withSession runs fn against an opened store and closes it afterwards.
func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := a.open(cmd, false)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.close(ctx)
	return fn(ctx, s)
}
