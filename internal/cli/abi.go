package cli

import (
	"encoding/json"
	"fmt"

	rushwazero "github.com/rushsh/rush/infrastructure/wazero"
	"github.com/rushsh/rush/schema"
	"github.com/spf13/cobra"
)

func newABICommand() *cobra.Command {
	var binding string
	cmd := &cobra.Command{
		Use:   "abi",
		Short: "Print the JSON Schemas of the host bindings",
		Long: `Print the host module plugins import: its name, the binding signature, and
the JSON Schema of every binding's request and response.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc := schema.ABI(rushwazero.DefaultModuleName)

			var data []byte
			var err error
			if binding == "" {
				data, err = doc.JSON()
			} else {
				b, ok := doc.Lookup(binding)
				if !ok {
					return fmt.Errorf("unknown binding %q", binding)
				}
				data, err = json.MarshalIndent(b, "", "  ")
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	cmd.Flags().StringVar(&binding, "binding", "", "print only this binding")
	return cmd
}
