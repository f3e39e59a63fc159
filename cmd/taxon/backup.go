package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taxon/internal/backup"
	"taxon/internal/config"
	"taxon/internal/storage"
)

func init() {
	backupCmd.AddCommand(backupFlushCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Synchronise the classification cache with the backup database",
}

// openBackup opens the primary store and the configured backup.
func openBackup() (*storage.SQLiteStore, *backup.Store, error) {
	cfg, store, err := initStore()
	if err != nil {
		return nil, nil, err
	}
	b, err := openBackupStore(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, b, nil
}

func openBackupStore(cfg *config.Config) (*backup.Store, error) {
	if cfg.Store.Backup == "" {
		return nil, fmt.Errorf("store.backup is not configured")
	}
	b, err := backup.Open(cfg.Store.Backup)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	return b, nil
}

var backupFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Copy cache rows not yet backed up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, b, err := openBackup()
		if err != nil {
			return err
		}
		defer store.Close()
		defer b.Close()

		res, err := backup.FlushNew(cmd.Context(), store, b)
		if err != nil {
			return err
		}
		fmt.Printf("💾 %d classes and %d functions pending, %d and %d new in the backup.\n",
			res.Classes, res.Functions, res.InsertedClasses, res.InsertedFunctions)
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Copy backup rows missing from the local cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, b, err := openBackup()
		if err != nil {
			return err
		}
		defer store.Close()
		defer b.Close()

		res, err := backup.Rehydrate(cmd.Context(), b, store)
		if err != nil {
			return err
		}
		fmt.Printf("♻️  %d classes and %d functions restored from %d and %d backed up.\n",
			res.InsertedClasses, res.InsertedFunctions, res.Classes, res.Functions)
		return nil
	},
}
