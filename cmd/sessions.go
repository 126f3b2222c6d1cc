package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ddtlab/distance-cli/internal/fetcher"
	"github.com/ddtlab/distance-cli/internal/model"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List incomplete sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		manifests, err := env.Sessions.ListIncomplete(cmd.Context())
		if err != nil {
			return err
		}
		if len(manifests) == 0 {
			fmt.Println("no incomplete sessions")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tCREATED\tROWS\tBATCHES DONE")
		for _, m := range manifests {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\n",
				m.SessionID,
				m.CreatedAt.Format("2006-01-02 15:04"),
				m.TotalRows,
				len(m.Completed), m.TotalBatches(),
			)
		}
		return w.Flush()
	},
}

var sessionsExportOutput string

var sessionsExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session's partial results to an XLSX report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		sessionID := args[0]
		records, err := env.Sessions.LoadPartialResults(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return eris.Errorf("session %q has no completed batches", sessionID)
		}

		var rows []model.RowResult
		for _, rec := range records {
			rows = append(rows, rec.Rows...)
		}

		output := sessionsExportOutput
		if output == "" {
			output = sessionID + "-partial.xlsx"
		}
		if err := fetcher.WriteReport(output, rows, env.Cache.Stats()); err != nil {
			return err
		}
		fmt.Printf("exported %d rows to %s\n", len(rows), output)
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its checkpoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Sessions.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted session %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsExportCmd.Flags().StringVar(&sessionsExportOutput, "output", "", "report file (default <session>-partial.xlsx)")
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
