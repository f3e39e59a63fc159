package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taxon/internal/changes"
	"taxon/internal/git"
)

var (
	enqueueRepo  string
	enqueueRange string
)

func init() {
	enqueueCmd.PersistentFlags().StringVar(&enqueueRepo, "repo", "", "Repository the changes belong to (owner/name)")
	_ = enqueueCmd.MarkPersistentFlagRequired("repo")
	enqueueGitCmd.Flags().StringVar(&enqueueRange, "range", "", "Revision range passed to git log (default: full history)")

	enqueueCmd.AddCommand(enqueueGitCmd)
	enqueueCmd.AddCommand(enqueuePRsCmd)
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Add file changes to the processing queue",
}

var enqueueGitCmd = &cobra.Command{
	Use:   "git <dir>",
	Short: "Queue the files added or modified by each commit of a local clone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		_, store, err := initStore()
		if err != nil {
			return err
		}
		defer store.Close()

		repo, err := store.AllocateRepository(ctx, enqueueRepo)
		if err != nil {
			return err
		}

		files, err := git.CommitChanges(ctx, args[0], enqueueRange)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		n, err := store.EnqueueChanges(ctx, changes.CommitUnits(files, repo))
		if err != nil {
			return fmt.Errorf("failed to enqueue: %w", err)
		}
		fmt.Printf("📝 %d file changes found, %d new in the queue for %s.\n", len(files), n, repo.FullName())
		return nil
	},
}

var enqueuePRsCmd = &cobra.Command{
	Use:   "prs <file>",
	Short: "Queue the files changed by merged pull requests from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		_, store, err := initStore()
		if err != nil {
			return err
		}
		defer store.Close()

		repo, err := store.AllocateRepository(ctx, enqueueRepo)
		if err != nil {
			return err
		}

		prs, err := changes.LoadPullRequests(args[0])
		if err != nil {
			return err
		}
		meta, units := changes.PullRequestUnits(prs, repo)
		for _, pr := range meta {
			if err := store.SavePullRequest(ctx, pr); err != nil {
				return fmt.Errorf("failed to save pull request %d: %w", pr.Number, err)
			}
		}
		n, err := store.EnqueueChanges(ctx, units)
		if err != nil {
			return fmt.Errorf("failed to enqueue: %w", err)
		}
		fmt.Printf("📝 %d pull requests, %d file changes, %d new in the queue for %s.\n", len(meta), len(units), n, repo.FullName())
		return nil
	},
}
