package server

import "fmt"

// ValidationError marks a request the caller can fix. Handlers map it
// to a 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
