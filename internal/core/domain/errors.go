package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEvidenceNotFound = errors.New("evidence not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrInvalidInput     = errors.New("invalid input")

	// Stage error kinds. The orchestrator maps all three to a FAILED job
	// but keeps the distinction in the recorded error for observability.
	ErrUnsupportedInput = errors.New("unsupported input")
	ErrMalformedInput   = errors.New("malformed input")
	ErrTimeout          = errors.New("external dependency timeout")

	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
