package cli

import (
	"fmt"
	"strings"

	"github.com/eshaffer321/discount-allocator/internal/application/allocation"
	"github.com/eshaffer321/discount-allocator/internal/application/backfill"
)

// PrintProcessResult prints the per-item allocations of one order
func PrintProcessResult(result *allocation.ProcessingResult) {
	fmt.Printf("Order %s: allocated=%s unallocated=%s sources=%d\n",
		result.OrderID,
		result.TotalAllocated.StringFixed(2),
		result.TotalUnallocated.StringFixed(2),
		len(result.Sources))

	for _, rec := range result.ItemRecords {
		fmt.Printf("  item %-12s %8s\n", rec.ItemID, rec.Total.StringFixed(2))
		for _, a := range rec.Allocations {
			fmt.Printf("    %-10s %-24s %8s (%s)\n", a.SourceType, a.SourceName, a.Amount.StringFixed(2), a.Method)
		}
	}

	for _, issue := range result.ClassificationIssues {
		fmt.Printf("  warning: %s\n", issue)
	}
}

// PrintBatchResult prints the back-fill batch summary
func PrintBatchResult(result *backfill.BatchResult) {
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Backfill run %d: Selected=%d Migrated=%d Errors=%d Remaining=%d Parked=%d\n",
		result.RunID,
		result.Selected,
		result.Migrated,
		len(result.Errors),
		result.Remaining,
		result.Failed)

	if len(result.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range result.Errors {
			fmt.Printf("  - %s: %s\n", e.OrderID, e.Message)
		}
	}
}
