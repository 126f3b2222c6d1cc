package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ddtlab/distance-cli/internal/batch"
	"github.com/ddtlab/distance-cli/internal/fetcher"
)

var (
	runInput     string
	runOutput    string
	runSessionID string
	runSheet     string
	runSkipRows  int
	runOriginCol int
	runDestCol   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute distances for an address-pair file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		sessionID := runSessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		return runSession(ctx, env, sessionID, runInput, runOutput)
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "input file (.xlsx or .csv)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "report file (default <input>-distances.xlsx)")
	runCmd.Flags().StringVar(&runSessionID, "session", "", "session id (default random)")
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	runCmd.Flags().IntVar(&runSkipRows, "skip-rows", 1, "header rows to skip")
	runCmd.Flags().IntVar(&runOriginCol, "origin-col", 0, "origin address column index")
	runCmd.Flags().IntVar(&runDestCol, "dest-col", 1, "destination address column index")
	runCmd.MarkFlagRequired("input") //nolint:errcheck
	rootCmd.AddCommand(runCmd)
}

// runSession reads the input, processes it under the given session, and
// writes the report. Shared by run and resume.
func runSession(ctx context.Context, env *env, sessionID, input, output string) error {
	pairs, err := fetcher.ReadPairs(input, fetcher.Options{
		SheetName: runSheet,
		SkipRows:  runSkipRows,
		OriginCol: runOriginCol,
		DestCol:   runDestCol,
	})
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return eris.Errorf("no address pairs found in %s", input)
	}

	zap.L().Info("starting run",
		zap.String("session", sessionID),
		zap.String("input", input),
		zap.Int("rows", len(pairs)),
	)

	bar := progressbar.NewOptions(len(pairs),
		progressbar.OptionSetDescription("computing distances"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	rows, err := env.Processor.Run(ctx, sessionID, pairs, func(completed, total int) {
		bar.Set(completed) //nolint:errcheck
	})
	if err != nil {
		fmt.Fprintln(os.Stderr)
		if ctx.Err() != nil {
			fmt.Fprintf(os.Stderr, "interrupted: %d of %d rows durable; resume with:\n  distance-cli resume --session %s --input %s\n",
				len(rows), len(pairs), sessionID, input)
			return nil
		}
		return err
	}
	fmt.Fprintln(os.Stderr)

	if output == "" {
		output = strings.TrimSuffix(input, ".xlsx")
		output = strings.TrimSuffix(output, ".csv") + "-distances.xlsx"
	}
	if err := fetcher.WriteReport(output, rows, env.Cache.Stats()); err != nil {
		return err
	}

	s := batch.Summarize(rows)
	fmt.Printf("done: %d rows (%d averaged, %d minimum, %d single-source, %d rejected, %d failed)\n",
		s.Total, s.Averaged, s.MinimumPicked, s.SingleSource, s.Rejected, s.BothFailed)
	fmt.Printf("report written to %s\n", output)
	return nil
}
