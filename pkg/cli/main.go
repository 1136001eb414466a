// Package cli implements the docstream command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nimburion/docstream/pkg/config"
	"github.com/nimburion/docstream/pkg/observability/logger"
	"github.com/nimburion/docstream/pkg/transport"
	"github.com/nimburion/docstream/pkg/transport/factory"
	"github.com/nimburion/docstream/pkg/version"
)

// TransportFactory creates the message log backend from configuration.
type TransportFactory func(cfg config.TransportConfig, maxContentLength int, log logger.Logger) (transport.Transport, error)

// Options configures the command tree.
type Options struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string
	// Optional: override the transport factory (useful for tests/custom backends).
	NewTransport TransportFactory
	// Optional: log destination, defaults to stderr.
	LogOutput io.Writer
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	output     string
}

// NewRootCommand creates the docstream CLI with document, cache, config and version commands.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "docstream"
	}
	if opts.Description == "" {
		opts.Description = "Document store on top of a message log"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "DOCSTREAM"
	}
	if opts.NewTransport == nil {
		opts.NewTransport = factory.NewTransport
	}

	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config-file", "c", opts.ConfigPath, "config file path")
	pf.StringVarP(&flags.output, "output", "o", string(formatJSON), "output format: json or yaml")
	pf.String("collection", "", "collection name")
	pf.String("transport", "", "transport type: memory, rest, redis or mongodb")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: json or text")

	app := &app{opts: opts, flags: flags}

	rootCmd.AddCommand(
		app.insertCommand(),
		app.findCommand(),
		app.getCommand(),
		app.updateCommand(),
		app.deleteCommand(),
		app.countCommand(),
		app.pingCommand(),
		app.statsCommand(),
		app.configCommand(),
		app.versionCommand(),
	)
	rootCmd.CompletionOptions.DisableDefaultCmd = false
	rootCmd.InitDefaultCompletionCmd()
	return rootCmd
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(cmd, version.Current(a.opts.Name))
		},
	}
}

// Execute runs the command and returns the process exit code.
func Execute(ctx context.Context, cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}
