package underwriting

import "errors"

// Errors returned by the model and the solver. Callers classify failures with errors.Is;
// the wrapped message names the offending field or quantity.
var (
	// ErrInvalidInput is returned when an assumption is outside its domain or a
	// required solver target is missing.
	ErrInvalidInput = errors.New("invalid input")

	// ErrComputation is returned when a computation produces NaN or an infinity.
	ErrComputation = errors.New("computation error")
)
