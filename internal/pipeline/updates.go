package pipeline

import (
	"fmt"

	"github.com/crosschart/crosschart/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	Resolve Phase = iota
	Aggregate
	Persist
)

func (p Phase) String() string {
	switch p {
	case Resolve:
		return "resolve"
	case Aggregate:
		return "aggregate"
	case Persist:
		return "persist"
	default:
		return ""
	}
}

func resolveUpdate(step, total int, service models.Service, genre string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving %s %s...", step, total, service, genre),
	}
}

func aggregateUpdate(step, total int, genre string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Aggregate,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Aggregating %s...", step, total, genre),
	}
}

func persistUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Persist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Persisting results...", step, total),
	}
}
