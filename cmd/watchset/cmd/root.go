// Package cmd provides the CLI commands for watchset.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/watchset/internal/config"
	"github.com/Aman-CERP/watchset/internal/logging"
	"github.com/Aman-CERP/watchset/pkg/version"
)

// globalOptions holds flags shared by every subcommand.
type globalOptions struct {
	debug      bool
	configPath string
	logLevel   string

	logger         *slog.Logger
	loggingCleanup func()
}

// NewRootCmd creates the root command for the watchset CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "watchset",
		Short: "Watch a set of files and react when they change",
		Long: `watchset watches a list of files for content changes and reports one
coalesced notification per burst of writes, optionally running a command.

The list comes from arguments, an inventory file, or both. Editing the
inventory file while watching re-applies it.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("watchset version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.watchset/logs/")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: .watchset.yaml in the project root)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.PersistentPreRunE = opts.startLogging
	cmd.PersistentPostRunE = opts.stopLogging

	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the logger for the command run.
func (o *globalOptions) startLogging(cmd *cobra.Command, _ []string) error {
	if o.debug {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		o.logger = logger
		o.loggingCleanup = cleanup
		o.logger.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
		return nil
	}

	level := o.logLevel
	if level == "" {
		level = logging.DefaultConfig().Level
	}
	o.logger = logging.NewLogger(cmd.ErrOrStderr(), level)
	return nil
}

// stopLogging flushes and closes the debug log file.
func (o *globalOptions) stopLogging(_ *cobra.Command, _ []string) error {
	if o.loggingCleanup != nil {
		o.logger.Info("Debug logging stopped")
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	return nil
}

// loadConfig resolves the effective configuration: --config if given,
// otherwise the project config found from the working directory.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		root, rerr := config.FindProjectRoot(".")
		if rerr != nil {
			root, _ = os.Getwd()
		}
		cfg, err = config.Load(root)
	}
	if err != nil {
		return nil, err
	}

	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, formatError(err))
		return err
	}
	return nil
}
