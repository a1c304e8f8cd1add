package discount

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOrderNotFound is returned by an order source when the id cannot be resolved.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPersistence marks a failed write to the persistence sink.
	ErrPersistence = errors.New("persistence failure")
)

// Processing stages reported in ProcessingError.
const (
	StageLoad     = "load"
	StagePersist  = "persist"
	StageClassify = "classify"
)

// ProcessingError wraps a failure of a single order's processing run.
type ProcessingError struct {
	OrderID string
	Stage   string
	Err     error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("process order %s: %s: %v", e.OrderID, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ClassificationError reports malformed snapshot data. It is never fatal:
// callers continue with whatever sources were classified.
type ClassificationError struct {
	OrderID string
	// Structural is set when the snapshot itself is unusable and no
	// sources were produced.
	Structural bool
	Issues     []string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify order %s: %s", e.OrderID, strings.Join(e.Issues, "; "))
}
