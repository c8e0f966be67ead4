package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ezrec/capencrypt/perm"
)

// NewPermsCommand creates the perms command.
func NewPermsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perms <word>",
		Short: "Decode a permission word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			value, err := parseUint32(args[0])
			if err != nil {
				return
			}

			word := perm.Word(value)
			state := "not permitted"
			if perm.IsEncryptPermitted(word) {
				state = "permitted"
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%v encrypt %v\n", word, state)
			return
		},
	}

	return cmd
}
