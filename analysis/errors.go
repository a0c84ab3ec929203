package analysis

import "fmt"

// TokenError means no usable bearer token could be resolved. The HTTP layer
// surfaces this as an authentication failure; it is never retried here.
type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string {
	return "token error: " + e.Reason
}

// FightSelectionError means a fight filter matched zero pulls, or a
// cross-report merge failed validation. Surfaced as not-found/conflict.
type FightSelectionError struct {
	Reason string
}

func (e *FightSelectionError) Error() string {
	return "fight selection error: " + e.Reason
}

func newFightSelectionError(format string, args ...interface{}) error {
	return &FightSelectionError{Reason: fmt.Sprintf(format, args...)}
}
