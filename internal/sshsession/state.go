package sshsession

import (
	"fmt"
	"time"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := StateConnecting; st <= StateFailed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// Terminal reports whether no further transitions can follow s.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// transitionBufferSize bounds the per-session history. A session normally
// makes at most three transitions.
const transitionBufferSize = 16

// StateTransition records a single state change.
type StateTransition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// stateHistory is a fixed-size ring buffer of transitions.
type stateHistory struct {
	transitions [transitionBufferSize]StateTransition
	head        int
	count       int
}

func (h *stateHistory) record(from, to State, reason string, at time.Time) {
	h.transitions[h.head] = StateTransition{
		From:      from,
		To:        to,
		Timestamp: at,
		Reason:    reason,
	}
	h.head = (h.head + 1) % transitionBufferSize
	if h.count < transitionBufferSize {
		h.count++
	}
}

// list returns the transitions oldest first.
func (h *stateHistory) list() []StateTransition {
	if h.count == 0 {
		return nil
	}
	result := make([]StateTransition, h.count)
	if h.count < transitionBufferSize {
		copy(result, h.transitions[:h.count])
	} else {
		n := copy(result, h.transitions[h.head:])
		copy(result[n:], h.transitions[:h.head])
	}
	return result
}
