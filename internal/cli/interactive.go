package cli

import (
	"context"

	"github.com/rushsh/rush/shell"
	"github.com/spf13/cobra"
)

func runInteractive(cmd *cobra.Command, g *globalFlags, version string) (err error) {
	e, err := g.start(cmd, version, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.close(context.WithoutCancel(cmd.Context())); err == nil {
			err = cerr
		}
	}()

	session := shell.New(e.state, e.cfg, e.host, e.console,
		shell.WithIO(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
		shell.WithLogger(e.logger),
	)
	code, err := session.Run(cmd.Context(), cmd.InOrStdin())
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
