package engine

import "errors"

// Validation failures are rejected synchronously at write time; runtime
// failures during dispatch are recorded on the log row and never thrown
// back into the event-ingestion path.
var (
	ErrValidation         = errors.New("invalid rule definition")
	ErrResponseGeneration = errors.New("response generation failed")
)
