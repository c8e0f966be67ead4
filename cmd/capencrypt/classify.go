package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ezrec/capencrypt/cause"
	"github.com/ezrec/capencrypt/machine"
)

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <status> | classify <mcause> <xccsr>",
		Short: "Classify a fault status",
		Long: `Classify a packed status word, or an mcause and xccsr register pair.

Prints the encryption cause name, 'no-match' for an exception outside of
the capability class, or 'unrecognized' with the capability sub-code.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			values := make([]uint32, len(args))
			for n, arg := range args {
				values[n], err = parseUint32(arg)
				if err != nil {
					return
				}
			}

			var code cause.Code
			if len(values) == 1 {
				code, err = cause.Classify(values[0])
			} else {
				code, err = cause.ClassifyRegisters(values[0], values[1])
			}

			fmt.Fprintln(cmd.OutOrStdout(), describe(code, err))
			return nil
		},
	}

	return cmd
}

// describe formats a classification.
func describe(code cause.Code, err error) string {
	var unknown cause.ErrCauseUnknown
	switch {
	case err == nil:
		return code.String()
	case errors.As(err, &unknown):
		return fmt.Sprintf("unrecognized 0x%02x (%v)", uint8(unknown), machine.CauseName(cause.Code(unknown)))
	default:
		return "no-match"
	}
}
