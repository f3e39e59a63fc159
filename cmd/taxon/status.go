package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taxon/internal/storage"
)

var statusRepo string

func init() {
	statusCmd.Flags().StringVar(&statusRepo, "repo", "", "Only count one repository (owner/name)")
	resetCmd.Flags().StringVar(&statusRepo, "repo", "", "Only reset one repository (owner/name)")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue, cache and last run statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		_, store, err := initStore()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := repoID(ctx, store, statusRepo)
		if err != nil {
			return err
		}
		counts, err := store.StatusCounts(ctx, id)
		if err != nil {
			return err
		}

		fmt.Println("📋 Queue")
		fmt.Printf("  -> %-22s %d\n", "pending", counts[storage.StatusPending])
		for _, st := range storage.Statuses {
			fmt.Printf("  -> %-22s %d\n", st, counts[st])
		}

		classes, functions, err := store.CacheCounts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("🧠 Cache: %d classes, %d functions\n", classes, functions)

		run, ok, err := store.LastRun(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("🕒 No runs yet.")
			return nil
		}
		fmt.Printf("🕒 Last run %s (%s) started %s\n", run.ID, run.Scope, run.StartedAt.Local().Format("2006-01-02 15:04:05"))
		if run.FinishedAt.IsZero() {
			fmt.Println("  -> did not finish")
			return nil
		}
		fmt.Printf("  -> %d deferred, %d failed, %d cache hits, %d classifier calls\n", run.Deferred, run.Failed, run.CacheHits, run.Calls)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <status>",
	Short: "Return every unit with the given status to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status, err := storage.ParseStatus(args[0])
		if err != nil {
			return err
		}

		_, store, err := initStore()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := repoID(ctx, store, statusRepo)
		if err != nil {
			return err
		}
		n, err := store.ResetStatus(ctx, status, id)
		if err != nil {
			return err
		}
		fmt.Printf("🔄 %d %s units queued again.\n", n, status)
		return nil
	},
}
