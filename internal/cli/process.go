package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/eshaffer321/discount-allocator/internal/application/allocation"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/config"
)

// RunProcess allocates discounts for each order id. Every order is attempted;
// the returned error reports how many failed.
func RunProcess(ctx context.Context, cfg *config.Config, flags *ProcessFlags) error {
	if len(flags.OrderIDs) == 0 {
		return errors.New("process: at least one order id is required")
	}

	app, err := NewApp(cfg, "cli", flags.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	return processOrders(ctx, app.Orchestrator, flags.OrderIDs)
}

func processOrders(ctx context.Context, orch *allocation.Orchestrator, orderIDs []string) error {
	failed := 0
	for _, id := range orderIDs {
		result, err := orch.Process(ctx, id)
		if err != nil {
			fmt.Printf("%s: %v\n", id, err)
			failed++
			continue
		}
		PrintProcessResult(result)
	}

	if failed > 0 {
		return fmt.Errorf("process: %d of %d orders failed", failed, len(orderIDs))
	}
	return nil
}
