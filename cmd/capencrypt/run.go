package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ezrec/capencrypt/harness"
)

// RunOptions holds the flags of the run command.
type RunOptions struct {
	*RootOptions
	Trace bool // Print the trace of every scenario.
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenarios",
		Long: `Run scenario files as test cases.

Prints a run identifier, then one PASS or FAIL line per scenario.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, cmd, args)
		},
	}

	cmd.Flags().BoolVarP(&opts.Trace, "trace", "t", false, "print scenario traces")

	return cmd
}

func runScenarios(opts *RunOptions, cmd *cobra.Command, paths []string) (err error) {
	w := cmd.OutOrStdout()

	cfg, err := opts.HarnessConfig()
	if err != nil {
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		return
	}
	fmt.Fprintf(w, "run %v\n", id)

	failed := 0
	for _, path := range paths {
		s, lerr := harness.LoadScenario(path)
		if lerr != nil {
			fmt.Fprintf(w, "FAIL %v: %v\n", path, lerr)
			failed++
			continue
		}

		result := s.Run(cfg)
		if result.Pass {
			fmt.Fprintf(w, "PASS %v\n", result.Name)
		} else {
			fmt.Fprintf(w, "FAIL %v: %v\n", result.Name, result.Err)
			failed++
		}

		if opts.Trace {
			for _, line := range result.Trace {
				fmt.Fprintf(w, "    %v\n", line)
			}
		}
	}

	fmt.Fprintf(w, "%v passed, %v failed\n", len(paths)-failed, failed)

	if failed > 0 {
		err = ErrScenariosFailed
	}
	return
}
