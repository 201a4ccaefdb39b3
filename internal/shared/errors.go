package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig   = fmt.Errorf("configuration not found")
	ErrInvalidConfig   = fmt.Errorf("invalid configuration")
	ErrUnknownService  = fmt.Errorf("unknown service")
	ErrUnknownSource   = fmt.Errorf("unknown popularity source")
	ErrInvalidPriority = fmt.Errorf("invalid service priority list")

	// Batch errors
	ErrValidation   = fmt.Errorf("batch validation failed")
	ErrBatchAborted = fmt.Errorf("batch aborted")

	// Lookup errors
	ErrNotFound = fmt.Errorf("not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
