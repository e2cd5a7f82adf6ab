package domain

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. ErrServiceOverloaded is the only class that is
// ever retried; everything else propagates to the orchestrator's single
// failure path.
var (
	ErrStoryNotFound     = errors.New("story not found")
	ErrInvalidStoryState = errors.New("story is not in generating status")
	ErrServiceOverloaded = errors.New("service overloaded")
	ErrStoryTooShort     = errors.New("generated story is too short")
	ErrUpstreamFailure   = errors.New("upstream provider failure")
	ErrStorageFailure    = errors.New("storage failure")
)

// ErrInvalidRequest marks a malformed story request.
type ErrInvalidRequest string

func (e ErrInvalidRequest) Error() string {
	return fmt.Sprintf("invalid story request: %s", string(e))
}

// IsRetryable reports whether the error is a transient capacity failure that
// the text generator's retry policy may retry in place.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceOverloaded)
}
