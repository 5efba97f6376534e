package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sdloader/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent generations and model handles",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "l", 10, "number of records to show")
	historyCmd.Flags().Bool("handles", false, "list model handles instead of generations")
	historyCmd.Flags().Int("prune-days", -1, "delete finished records older than this many days first")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		return fmt.Errorf("history is disabled: --db is empty")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	showHandles, _ := cmd.Flags().GetBool("handles")
	pruneDays, _ := cmd.Flags().GetInt("prune-days")

	database, err := db.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer database.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	if pruneDays >= 0 {
		result, err := database.CleanupWithContext(ctx, pruneDays)
		if err != nil {
			return err
		}
		color.New(color.FgHiBlack).Fprintf(w, "pruned %d records in %v\n",
			result.TotalDeleted, result.Duration.Round(time.Millisecond))
	}

	history := db.NewHistory(database, nil)
	if showHandles {
		records, err := history.RecentHandles(ctx, limit)
		if err != nil {
			return err
		}
		printHandles(w, records)
		return nil
	}

	records, err := history.RecentGenerations(ctx, limit)
	if err != nil {
		return err
	}
	printGenerations(w, records)
	return nil
}

func printGenerations(w io.Writer, records []db.GenerationRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no generations recorded")
		return
	}

	dim := color.New(color.FgHiBlack)
	for _, rec := range records {
		statusColor(rec.Status).Fprintf(w, "%-8s", rec.Status)
		fmt.Fprintf(w, " %s %dx%d steps=%d cfg=%g seed=%d",
			rec.CreatedAt.Format(time.DateTime), rec.Width, rec.Height, rec.Steps, rec.Guidance, rec.Seed)
		dim.Fprintf(w, " %v %s\n", rec.Duration, rec.Token)
		fmt.Fprintf(w, "         %q\n", truncate(rec.Prompt, 72))
		if rec.ErrorMessage != "" {
			color.New(color.FgRed).Fprintf(w, "         %s\n", rec.ErrorMessage)
		}
	}
}

func printHandles(w io.Writer, records []db.HandleRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no model handles recorded")
		return
	}

	dim := color.New(color.FgHiBlack)
	for _, rec := range records {
		statusColor(rec.Status).Fprintf(w, "%-8s", rec.Status)
		fmt.Fprintf(w, " %s %s %s", rec.CreatedAt.Format(time.DateTime), rec.Token, rec.ModelPath)
		if !rec.ReleasedAt.IsZero() {
			dim.Fprintf(w, " released %s", rec.ReleasedAt.Format(time.DateTime))
		}
		fmt.Fprintln(w)
	}
}

func statusColor(status string) *color.Color {
	switch status {
	case db.StatusSuccess, db.StatusLive:
		return color.New(color.FgGreen)
	case db.StatusError, db.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgHiBlack)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
