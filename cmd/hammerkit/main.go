// Command hammerkit drives a Rowhammer fault-characterization experiment
// from a single config file argument: it wires together memory allocation,
// row discovery, and the hammering pipeline, then maps the outcome to a
// process exit code for scripting.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/google/hammer-kit/internal/config"
	"github.com/google/hammer-kit/internal/experiment"
	"github.com/google/hammer-kit/internal/hammerpool"
	"github.com/google/hammer-kit/internal/memprovider"
	"github.com/google/hammer-kit/internal/output"
	"github.com/google/hammer-kit/internal/physaddr"
	"github.com/google/hammer-kit/internal/telemetry"
)

var verboseFlag bool

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hammerkit config_file",
		Short:         "Rowhammer DRAM fault-characterization harness",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	cmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Emit per-probe discovery timing")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	telemetry.SetVerbose(verboseFlag)

	p, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	region, err := memprovider.Allocate(p)
	if err != nil {
		return fmt.Errorf("allocating memory: %w", err)
	}
	defer region.Close()

	oracle, err := physaddr.New(p.Pagemap)
	if err != nil {
		return fmt.Errorf("opening pagemap: %w", err)
	}
	defer oracle.Close()

	region, err = memprovider.Linearize(p, oracle, region)
	if err != nil {
		return fmt.Errorf("linearizing memory: %w", err)
	}
	telemetry.Info("Allocated %d bytes", p.Size)

	if err := hammerpool.PinSelf(p.CPUs[0], p.SchedFifo); err != nil {
		return fmt.Errorf("pinning main thread: %w", err)
	}

	pool, err := hammerpool.New(p)
	if err != nil {
		return fmt.Errorf("starting hammer pool: %w", err)
	}
	defer pool.Close()

	driver := experiment.New(p, region, oracle, pool)
	if err := driver.Run(context.Background(), uintptr(p.SrcOffset), uintptr(p.Size), 0); err != nil {
		return fmt.Errorf("running experiment: %w", err)
	}

	if driver.TotalFlips() > 0 {
		os.Exit(output.ExitFlips)
	}
	os.Exit(output.ExitNoFlips)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(output.ExitAbort)
	}
}
