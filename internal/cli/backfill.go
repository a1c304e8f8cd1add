package cli

import (
	"context"
	"fmt"

	"github.com/eshaffer321/discount-allocator/internal/application/backfill"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/config"
)

// RunBackfill runs one back-fill batch, or batches until none remain with -all.
func RunBackfill(ctx context.Context, cfg *config.Config, flags *BackfillFlags) error {
	if flags.Cutoff != "" {
		cfg.Backfill.Cutoff = flags.Cutoff
	}

	app, err := NewApp(cfg, "backfill", flags.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if flags.RetryFailed {
		cleared, err := app.Store.ClearBackfillFailures()
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d parked orders\n", cleared)
	}

	return runBatches(ctx, app.Runner, flags.PageSize, flags.All)
}

func runBatches(ctx context.Context, runner *backfill.Runner, pageSize int, all bool) error {
	previous := -1
	for {
		result, err := runner.RunBatch(ctx, pageSize)
		if err != nil {
			return err
		}
		PrintBatchResult(result)

		if all && result.Remaining == 0 && result.Failed > 0 {
			return fmt.Errorf("backfill: %d orders failed and were parked, fix them and rerun with -retry-failed", result.Failed)
		}
		if !all || result.Remaining == 0 || ctx.Err() != nil {
			return nil
		}
		// Failed orders that could not be parked are selected again
		if previous >= 0 && result.Remaining >= previous {
			return fmt.Errorf("backfill: no progress, %d orders remaining", result.Remaining)
		}
		previous = result.Remaining
	}
}
