package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	resumeSessionID string
	resumeInput     string
	resumeOutput    string
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an interrupted run from its last checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		manifest, err := env.Sessions.LoadManifest(ctx, resumeSessionID)
		if err != nil {
			return err
		}
		if manifest == nil {
			return eris.Errorf("unknown session %q (use 'distance-cli sessions' to list resumable sessions)", resumeSessionID)
		}

		return runSession(ctx, env, resumeSessionID, resumeInput, resumeOutput)
	},
}

func init() {
	resumeCmd.Flags().StringVar(&resumeSessionID, "session", "", "session id to resume")
	resumeCmd.Flags().StringVar(&resumeInput, "input", "", "original input file")
	resumeCmd.Flags().StringVar(&resumeOutput, "output", "", "report file (default <input>-distances.xlsx)")
	resumeCmd.Flags().StringVar(&runSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	resumeCmd.Flags().IntVar(&runSkipRows, "skip-rows", 1, "header rows to skip")
	resumeCmd.Flags().IntVar(&runOriginCol, "origin-col", 0, "origin address column index")
	resumeCmd.Flags().IntVar(&runDestCol, "dest-col", 1, "destination address column index")
	resumeCmd.MarkFlagRequired("session") //nolint:errcheck
	resumeCmd.MarkFlagRequired("input")   //nolint:errcheck
	rootCmd.AddCommand(resumeCmd)
}
