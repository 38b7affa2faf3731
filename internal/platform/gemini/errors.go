package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrInvalidConfig is returned when the API key or model name is missing.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrInvalidResponse is returned when the model answers with no usable text.
	ErrInvalidResponse = errors.New("invalid response from gemini")

	// ErrContentBlocked is returned when safety filters block the answer.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrTransientFailure is returned when every retry of a transient failure
	// has been used up.
	ErrTransientFailure = errors.New("transient gemini failure")

	// ErrIncompleteReading is returned when asked to interpret a reading that
	// still has empty slots.
	ErrIncompleteReading = errors.New("reading has empty slots")
)
