// Package cli defines the rush command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rushsh/rush/config"
	"github.com/rushsh/rush/host"
	"github.com/rushsh/rush/internal/console"
	"github.com/rushsh/rush/internal/logging"
	"github.com/rushsh/rush/state"
	"github.com/spf13/cobra"
)

// ExitError carries a shell exit status out of Execute.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

type globalFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	pluginPaths []string
}

// NewRootCommand builds the rush command tree. Running it without a
// subcommand starts an interactive shell.
func NewRootCommand(version string) *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "rush",
		Short: "A shell extensible with WebAssembly plugins",
		Long: `rush is an interactive shell. Plugins are WebAssembly modules found in the
configured plugin paths; they are told about every command through hooks and
can print, read and change the environment through host bindings.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractive(cmd, g, version)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/rush/config.yaml)")
	flags.StringVar(&g.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	flags.StringVar(&g.logFormat, "log-format", "", "override the configured log format (text, json)")
	flags.StringArrayVarP(&g.pluginPaths, "plugin-path", "p", nil, "additional directory or file to load plugins from")

	rootCmd.AddCommand(newPluginsCommand(g, version))
	rootCmd.AddCommand(newHookCommand(g, version))
	rootCmd.AddCommand(newCompleteCommand(g, version))
	rootCmd.AddCommand(newABICommand())

	return rootCmd
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	var exitErr *ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "rush: %v\n", err)
		return 1
	}
}

func (g *globalFlags) load() (*config.Config, error) {
	path := g.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		cfg.LogFormat = g.logFormat
	}
	cfg.PluginPaths = append(cfg.PluginPaths, g.pluginPaths...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env is what every command that runs plugins needs.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	state   *state.Shell
	console *console.Console
	host    *host.Host
	exec    *host.Executor
}

func (g *globalFlags) start(cmd *cobra.Command, version string, out io.Writer) (*env, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	st, err := state.FromProcess(state.WithHistoryLimit(cfg.HistoryLimit))
	if err != nil {
		return nil, err
	}
	con := console.New(out, cmd.ErrOrStderr())

	h, exec, err := host.Start(cmd.Context(), cfg, st, out,
		host.WithLogger(logger),
		host.WithCrashHandler(con.PluginCrashed),
		host.WithStartArgs(host.InitParams{RushVersion: version}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start plugin host: %w", err)
	}
	return &env{cfg: cfg, logger: logger, state: st, console: con, host: h, exec: exec}, nil
}

func (e *env) close(ctx context.Context) error {
	err := e.host.Close(ctx)
	return errors.Join(err, e.exec.Close(ctx))
}
