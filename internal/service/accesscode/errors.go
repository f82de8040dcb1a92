package accesscode

import "errors"

var (
	// ErrGenerationExhausted means every attempt produced a code that was
	// already taken in the namespace.
	ErrGenerationExhausted = errors.New("access code generation exhausted")
	// ErrNotFound covers malformed, unknown and orphaned codes alike.
	ErrNotFound         = errors.New("access code not found")
	ErrStoreUnavailable = errors.New("access code store unavailable")
	ErrInvalidSubject   = errors.New("invalid subject id")
	ErrInvalidKind      = errors.New("invalid subject kind")
)
