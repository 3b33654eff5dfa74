package mesh

import (
	"sync"

	"google.golang.org/grpc"
)

// State describes the lifecycle of a managed service connection.
type State int32

const (
	// StateUninitialized is the zero value before any channel exists.
	StateUninitialized State = iota

	// StateConnecting means the channel exists but no probe has
	// confirmed the service yet.
	StateConnecting

	// StateReady means the last health probe succeeded.
	StateReady

	// StateDegraded means the last health probe failed. Calls are
	// still dispatched; the circuit breaker decides when to stop.
	StateDegraded

	// StateClosed is terminal.
	StateClosed
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// serviceConn pairs a logical service with its client channel and
// tracks where the channel currently points.
type serviceConn struct {
	service string

	mu     sync.RWMutex
	target string
	cc     *grpc.ClientConn
	state  State
}

// conn returns the current client channel.
func (s *serviceConn) conn() *grpc.ClientConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cc
}

// currentTarget returns the address the channel points at.
func (s *serviceConn) currentTarget() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// currentState returns the connection state.
func (s *serviceConn) currentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// setState moves the connection to next. Closed is terminal; any
// transition out of it is ignored.
func (s *serviceConn) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = next
}

// swap points the connection at a new target and returns the previous
// channel so the caller can close it outside the lock.
func (s *serviceConn) swap(target string, cc *grpc.ClientConn) *grpc.ClientConn {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cc
	s.target = target
	s.cc = cc
	s.state = StateConnecting
	return old
}

// close shuts down the channel and marks the connection closed.
func (s *serviceConn) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateClosed
	if s.cc == nil {
		return nil
	}

	err := s.cc.Close()
	s.cc = nil
	return err
}
