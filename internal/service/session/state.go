// Package session implements the bidirectional streaming session against
// the remote speech model: connection setup, paced audio send with the
// end-of-stream trailer handshake, receive-side transcript assembly, and
// coordinated shutdown.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a session.
type State int

const (
	// StateConnecting - Websocket dial in progress, nothing sent yet.
	StateConnecting State = iota
	// StateStreaming - Both sender and receiver running.
	StateStreaming
	// StateDraining - Source exhausted or cancelled, trailer in flight.
	StateDraining
	// StateClosing - Trailer acknowledged, close handshake in progress.
	StateClosing
	// StateClosed - Connection closed. Terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateStreaming:
		return "STREAMING"
	case StateDraining:
		return "DRAINING"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// ErrInvalidTransition is returned when a lifecycle transition would move
// backwards or skip the close handshake.
var ErrInvalidTransition = errors.New("invalid session state transition")

// Lifecycle manages the state machine for a single session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	CONNECTING → STREAMING → DRAINING → CLOSING → CLOSED
//
// Cancellation is orthogonal: Cancel() latches a flag and, if the session
// has not yet begun draining, forces the transition to DRAINING so the
// trailer handshake still runs exactly once.
type Lifecycle struct {
	mu        sync.RWMutex
	sessionId string
	state     State
	cancelled bool
}

// NewLifecycle creates a new session lifecycle in CONNECTING state.
func NewLifecycle(sessionId string) *Lifecycle {
	return &Lifecycle{
		sessionId: sessionId,
		state:     StateConnecting,
	}
}

// SessionId returns the session ID.
func (l *Lifecycle) SessionId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Cancelled returns true if the session was cancelled externally.
func (l *Lifecycle) Cancelled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cancelled
}

// IsClosed returns true if the session reached the terminal state.
func (l *Lifecycle) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// Advance moves the lifecycle to the next state. Transitions only move
// forward; re-entering the current state is a no-op so that independent
// goroutines can report the same progress without coordination.
func (l *Lifecycle) Advance(next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if next == l.state {
		return nil
	}
	if next < l.state {
		return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, l.state, next)
	}
	l.state = next
	return nil
}

// Cancel latches the cancelled flag. If the session has not yet begun
// draining it is forced into DRAINING so shutdown proceeds through the
// normal trailer and close handshake. Idempotent.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cancelled = true
	if l.state < StateDraining {
		l.state = StateDraining
	}
}
