package agent

import (
	"errors"
	"fmt"
)

// ErrBusy is returned synchronously when Act, Compact or Clear is invoked
// while another operation is still in flight. The caller serializes; the
// agent never queues.
var ErrBusy = errors.New("agent is busy: another operation is in flight")

// Limit kinds carried by ConversationLimitError.
const (
	LimitMaxTurns = "max_turns"
	LimitMaxPrice = "max_price"
)

// ConversationLimitError reports that a budget stopped the turn before the
// next round trip. Content holds the latest assistant text so callers can
// still show or save the partial output. History stays intact.
type ConversationLimitError struct {
	Kind    string
	Content string
}

func (e *ConversationLimitError) Error() string {
	return fmt.Sprintf("conversation limit reached (%s)", e.Kind)
}

// IsConversationLimit reports whether err is a budget stop and returns the
// typed error when it is.
func IsConversationLimit(err error) (*ConversationLimitError, bool) {
	var cle *ConversationLimitError
	if errors.As(err, &cle) {
		return cle, true
	}
	return nil, false
}
