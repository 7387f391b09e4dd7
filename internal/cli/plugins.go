package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushsh/rush/shell"
	"github.com/spf13/cobra"
)

func newPluginsCommand(g *globalFlags, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the plugins that load and start",
		Long: `Load every plugin from the configured plugin paths, run their start hook and
print the name of each one still alive afterwards. Plugins that fail to load
or crash are reported on stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			e, err := g.start(cmd, version, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := e.close(context.WithoutCancel(cmd.Context())); err == nil {
					err = cerr
				}
			}()

			if _, err := e.host.Started().Wait(cmd.Context()); err != nil {
				return err
			}
			names, err := e.host.Plugins(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newHookCommand(g *globalFlags, version string) *cobra.Command {
	var collect bool
	cmd := &cobra.Command{
		Use:   "hook <name> [json-arg...]",
		Short: "Broadcast a hook to every plugin",
		Long: `Broadcast a hook once and exit. Each argument is passed as JSON; an argument
that is not valid JSON is passed as a JSON string. With --collect, every
plugin's answer is printed as one JSON object per line.`,
		Example: `  rush hook pre_command '"ls -la"'
  rush hook --collect provide_autocomplete 'git st'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			e, err := g.start(cmd, version, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := e.close(context.WithoutCancel(cmd.Context())); err == nil {
					err = cerr
				}
			}()

			hookArgs := make([]any, 0, len(args)-1)
			for _, a := range args[1:] {
				hookArgs = append(hookArgs, jsonArg(a))
			}

			if !collect {
				_, err := e.host.RunHook(args[0], hookArgs...).Wait(cmd.Context())
				return err
			}
			responses, err := e.host.RunHookWithReturn(args[0], hookArgs...).Wait(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range responses {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&collect, "collect", false, "collect and print each plugin's return value")
	return cmd
}

// jsonArg passes valid JSON through untouched and quotes anything else.
func jsonArg(s string) any {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}

func newCompleteCommand(g *globalFlags, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <line>",
		Short: "Ask plugins to complete a command line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			e, err := g.start(cmd, version, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := e.close(context.WithoutCancel(cmd.Context())); err == nil {
					err = cerr
				}
			}()

			session := shell.New(e.state, e.cfg, e.host, e.console, shell.WithLogger(e.logger))
			suggestion, ok, err := session.Complete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return &ExitError{Code: 1}
			}
			fmt.Fprintln(cmd.OutOrStdout(), args[0]+suggestion)
			return nil
		},
	}
}
