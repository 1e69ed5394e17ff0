package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var backfillReset bool

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run the resumable historical backfill",
	Long: `Run the historical backfill from the earliest published date (2012-07-01)
to the present in half-year chunks. Progress is checkpointed after every
chunk, so an interrupted run resumes where it stopped.

Examples:
  # Start or resume the backfill
  electricity-backend backfill

  # Discard the checkpoint and start over
  electricity-backend backfill --reset

  # Show where the backfill stands
  electricity-backend backfill status`,
	RunE: runBackfill,
}

var backfillStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backfill progress",
	RunE:  runBackfillStatus,
}

func init() {
	backfillCmd.Flags().BoolVar(&backfillReset, "reset", false, "Discard the checkpoint and start from the earliest date")

	backfillCmd.AddCommand(backfillStatusCmd)
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	engine, db, logger, _, err := newEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	if backfillReset {
		if err := engine.ResetInitialSync(ctx); err != nil {
			return fmt.Errorf("failed to reset backfill: %w", err)
		}
		logger.Info("Backfill checkpoint cleared")
	}

	status, err := engine.InitialStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to read backfill status: %w", err)
	}
	if status.Completed {
		fmt.Printf("Backfill already completed at %s, nothing to do\n", status.CompletedAt)
		return nil
	}

	fmt.Printf("Backfilling from %s, this may take a while\n", status.ResumeFrom)

	result, err := engine.RunInitialSync(ctx)
	if err != nil {
		return fmt.Errorf("backfill failed, run again to resume: %w", err)
	}

	fmt.Printf("Processed %d records (%d created, %d updated) in %d chunk(s), took %s\n",
		result.RecordsProcessed, result.RecordsCreated, result.RecordsUpdated, result.Chunks, result.Duration)
	return nil
}

func runBackfillStatus(cmd *cobra.Command, args []string) error {
	engine, db, _, _, err := newEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := engine.InitialStatus(context.Background())
	if err != nil {
		return fmt.Errorf("failed to read backfill status: %w", err)
	}

	if status.Completed {
		fmt.Printf("Backfill completed at %s\n", status.CompletedAt)
		return nil
	}
	if status.LastChunk == "" {
		fmt.Println("Backfill not started")
		return nil
	}
	fmt.Printf("Backfill in progress, last chunk ended %s, resumes from %s\n",
		status.LastChunk, status.ResumeFrom)
	return nil
}
