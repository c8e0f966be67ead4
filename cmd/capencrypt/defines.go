package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ezrec/capencrypt/internal"
	"github.com/ezrec/capencrypt/machine"
)

// NewDefinesCommand creates the defines command.
func NewDefinesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defines",
		Short: "List the constants usable in scenario expressions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := rootOpts.HarnessConfig()
			if err != nil {
				return
			}

			m := machine.NewMachine(cfg.KeyTableSize, cfg.PerformEncrypt)
			for key, value := range internal.IterSeq2Sorted(m.Defines()) {
				fmt.Fprintf(cmd.OutOrStdout(), "%v %v\n", key, value)
			}
			return
		},
	}

	return cmd
}
