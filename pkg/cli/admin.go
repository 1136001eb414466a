package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimburion/docstream/pkg/health"
	"github.com/nimburion/docstream/pkg/observability/metrics"
)

func (a *app) pingCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the message log is reachable and the collection readable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				registry := health.NewRegistry(timeout)
				registry.Register(health.NewTransportChecker("transport", s.store))
				registry.Register(health.NewCollectionChecker("collection", s.store), "transport")
				res := registry.Check(ctx)
				if err := a.print(cmd, res); err != nil {
					return err
				}
				if res.Status == health.StatusUnhealthy {
					return errors.New("health check failed")
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", health.DefaultTimeout, "timeout of each check")
	return cmd
}

type statsView struct {
	Collection string `json:"collection" yaml:"collection"`
	Encrypted  bool   `json:"encrypted" yaml:"encrypted"`
	Documents  int    `json:"documents" yaml:"documents"`
	LoadedAt   string `json:"loaded_at" yaml:"loaded_at"`
	CacheTTL   string `json:"cache_ttl" yaml:"cache_ttl"`
	Reloads    int64  `json:"reloads" yaml:"reloads"`
}

func (a *app) statsCommand() *cobra.Command {
	var showMetrics bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Reload the collection and report cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd, showMetrics)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer s.close(ctx)

			if err := s.store.Reload(ctx); err != nil {
				return err
			}
			st := s.store.CacheStats()
			if err := a.print(cmd, statsView{
				Collection: s.store.Collection(),
				Encrypted:  s.store.Encrypted(),
				Documents:  st.Documents,
				LoadedAt:   st.LoadedAt.UTC().Format(time.RFC3339Nano),
				CacheTTL:   st.TTL.String(),
				Reloads:    st.Reloads,
			}); err != nil {
				return err
			}
			if !showMetrics {
				return nil
			}
			return s.metrics.WriteText(cmd.OutOrStdout(), metrics.Namespace+"_")
		},
	}
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "also print metrics in the Prometheus text format")
	return cmd
}

func (a *app) configCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := a.loadConfig(cmd); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	})

	var showSecrets bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, secrets, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			if !showSecrets {
				cfg = cfg.Redacted(secrets)
			}
			return a.print(cmd, cfg.Settings())
		},
	}
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")
	configCmd.AddCommand(showCmd)
	return configCmd
}
