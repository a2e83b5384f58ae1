package stream

import (
	"fmt"
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Session.
type Option func(*Session) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		s.logger = logger
		return nil
	}
}

// WithReconnectDelay sets the fixed delay between a transport close and the
// next connection attempt.
func WithReconnectDelay(d time.Duration) Option {
	return func(s *Session) error {
		if d <= 0 {
			return fmt.Errorf("reconnect delay must be positive, got %v", d)
		}
		s.reconnectDelay = d
		return nil
	}
}

// WithEscalationTTL sets how long an escalation stays active before it
// auto-clears, unless a newer escalation supersedes it first.
func WithEscalationTTL(d time.Duration) Option {
	return func(s *Session) error {
		if d <= 0 {
			return fmt.Errorf("escalation ttl must be positive, got %v", d)
		}
		s.escalationTTL = d
		return nil
	}
}

// WithDialer replaces the transport dialer. Tests use this to drive the
// session without a real websocket server.
func WithDialer(dial DialFunc) Option {
	return func(s *Session) error {
		if dial == nil {
			return fmt.Errorf("dialer cannot be nil")
		}
		s.dial = dial
		return nil
	}
}

// WithRecorder attaches a persistence hook for observed events.
func WithRecorder(r Recorder) Option {
	return func(s *Session) error {
		s.recorder = r
		return nil
	}
}
