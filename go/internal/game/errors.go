// Package game holds the pieces shared by the session engine: error values and the
// subpackages that mirror, advance and score a session.
package game

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted is returned when no unused question matches the active filters.
	ErrExhausted = errors.New("question pool exhausted")

	// ErrConflict is returned when a question start or scoring pass targets a question
	// number the store already played or scored. Callers treat it as a no-op.
	ErrConflict = errors.New("question already handled")

	// ErrSubmission is returned when the store rejects a duplicate answer or vote.
	ErrSubmission = errors.New("already submitted")

	// ErrEnrichmentTimeout is returned when generation does not finish within the cap.
	ErrEnrichmentTimeout = errors.New("enrichment timed out")

	// ErrTransport wraps channel failures.
	ErrTransport = errors.New("transport error")

	// ErrReconnectExhausted is returned when the channel gave up reconnecting.
	ErrReconnectExhausted = fmt.Errorf("%w: reconnect attempts exhausted", ErrTransport)

	ErrIllegalTransition = errors.New("illegal phase transition")
	ErrNoAnswers         = errors.New("no answers submitted")
	ErrNotFound          = errors.New("not found")
)

// ConfirmationError asks the host to confirm advancing before everyone has responded.
type ConfirmationError struct {
	Stage     string
	Responded int
	Expected  int
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("only %d of %d participants have %s", e.Responded, e.Expected, e.Stage)
}

// NeedsConfirmation reports whether err is a ConfirmationError.
func NeedsConfirmation(err error) bool {
	var ce *ConfirmationError
	return errors.As(err, &ce)
}
