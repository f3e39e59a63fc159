package backup

import (
	"context"
	"fmt"
	"log/slog"

	"taxon/internal/storage"
)

// Primary is the side of the primary store that takes part in a sync.
type Primary interface {
	PendingClasses(ctx context.Context) ([]storage.ClassRecord, error)
	PendingFunctions(ctx context.Context) ([]storage.FunctionRecord, error)
	MarkTransferred(ctx context.Context, classes []storage.ClassRecord, functions []storage.FunctionRecord) error
	ImportCache(ctx context.Context, classes []storage.ClassRecord, functions []storage.FunctionRecord) (int, int, error)
}

// Result counts rows examined and rows actually inserted by a sync.
type Result struct {
	Classes           int
	Functions         int
	InsertedClasses   int
	InsertedFunctions int
}

// FlushNew copies cache rows not yet transferred into the backup, then marks
// them transferred. Conflicting rows keep the backup's value.
func FlushNew(ctx context.Context, primary Primary, b *Store) (Result, error) {
	classes, err := primary.PendingClasses(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list pending classes: %w", err)
	}
	functions, err := primary.PendingFunctions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list pending functions: %w", err)
	}

	nc, nf, err := b.insert(ctx, classes, functions)
	if err != nil {
		return Result{}, fmt.Errorf("failed to write backup: %w", err)
	}
	if err := primary.MarkTransferred(ctx, classes, functions); err != nil {
		return Result{}, fmt.Errorf("failed to mark transferred: %w", err)
	}

	res := Result{Classes: len(classes), Functions: len(functions), InsertedClasses: nc, InsertedFunctions: nf}
	slog.Info("backup.flush", "classes", res.Classes, "functions", res.Functions, "inserted_classes", nc, "inserted_functions", nf)
	return res, nil
}

// Rehydrate copies every backup row missing from the primary. Existing primary
// rows are left alone and new ones arrive already marked transferred.
func Rehydrate(ctx context.Context, b *Store, primary Primary) (Result, error) {
	classes, err := b.Classes(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read backup classes: %w", err)
	}
	functions, err := b.Functions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read backup functions: %w", err)
	}

	nc, nf, err := primary.ImportCache(ctx, classes, functions)
	if err != nil {
		return Result{}, fmt.Errorf("failed to import backup: %w", err)
	}

	res := Result{Classes: len(classes), Functions: len(functions), InsertedClasses: nc, InsertedFunctions: nf}
	slog.Info("backup.rehydrate", "classes", res.Classes, "functions", res.Functions, "inserted_classes", nc, "inserted_functions", nf)
	return res, nil
}
