package llm

import "errors"

var (
	// ErrMissingCredential means no API key is configured.
	ErrMissingCredential = errors.New("gemini api key missing")

	ErrTimeout = errors.New("llm request timed out")

	// ErrUpstream covers transport failures and non-2xx provider responses.
	ErrUpstream = errors.New("llm provider error")

	// ErrInvalidOutput indicates the response could not be parsed into the
	// expected structure.
	ErrInvalidOutput = errors.New("invalid llm output format")
)
