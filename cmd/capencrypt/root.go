package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ezrec/capencrypt/harness"
)

// RootOptions holds the global flags.
type RootOptions struct {
	Verbose bool   // Verbose machine and harness logging.
	Config  string // Harness configuration file.
}

// HarnessConfig returns the harness configuration selected by the flags.
func (opts *RootOptions) HarnessConfig() (cfg harness.Config, err error) {
	cfg = harness.DefaultConfig()
	if opts.Config != "" {
		cfg, err = harness.LoadConfig(opts.Config)
		if err != nil {
			return
		}
	}

	if opts.Verbose {
		cfg.Verbose = true
	}
	return
}

// NewRootCommand creates the capencrypt command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "capencrypt",
		Short: "Capability encryption test harness",
		Long: `Runs capability encryption scenarios against the simulated machine,
and decodes fault status words and permission words.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "harness configuration file")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewClassifyCommand(opts))
	cmd.AddCommand(NewPermsCommand(opts))
	cmd.AddCommand(NewDefinesCommand(opts))

	return cmd
}

// parseUint32 parses a command argument in any Go integer base.
func parseUint32(arg string) (value uint32, err error) {
	v64, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		err = ErrNumber(arg)
		return
	}
	value = uint32(v64)
	return
}
