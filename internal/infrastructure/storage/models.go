package storage

import (
	"time"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05Z"

// Back-fill run statuses
const (
	RunStatusRunning             = "running"
	RunStatusCompleted           = "completed"
	RunStatusCompletedWithErrors = "completed_with_errors"
)

// BackfillRun represents one back-fill batch
type BackfillRun struct {
	ID              int64  `json:"id"`
	Label           string `json:"label"`
	Cutoff          string `json:"cutoff"`
	PageSize        int    `json:"page_size"`
	StartedAt       string `json:"started_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
	OrdersSelected  int    `json:"orders_selected"`
	OrdersMigrated  int    `json:"orders_migrated"`
	OrdersErrored   int    `json:"orders_errored"`
	OrdersRemaining int    `json:"orders_remaining"`
	Status          string `json:"status"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// normalizeQuantity stores a missing quantity as a single unit
func normalizeQuantity(q int) int {
	if q == 0 {
		return 1
	}
	return q
}

func runStatus(errored int) string {
	if errored > 0 {
		return RunStatusCompletedWithErrors
	}
	return RunStatusCompleted
}
