package relay

import "errors"

var (
	// ErrInvalidIdentity reports operator input that did not parse as a
	// positive integer identity. Surfaced to the operator, never mutates
	// state.
	ErrInvalidIdentity = errors.New("identity must be a positive integer")

	// ErrMissingBody reports a reply command with no message content.
	ErrMissingBody = errors.New("reply body is empty")
)
