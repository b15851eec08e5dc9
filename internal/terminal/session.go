package terminal

import (
	"errors"

	"github.com/ably-labs/webcli/internal/actor"
	"github.com/ably-labs/webcli/internal/handshake"
)

// Session ties a connection state machine to its runtime. It is the only
// writer of the machine's state; embedders observe it through callbacks.
type Session struct {
	cfg     Config
	runtime *Runtime
	act     *actor.Actor[State]
}

// NewSession validates the embedding configuration and assembles the state
// machine. The signed config is parsed once up front: a credential that
// cannot produce a handshake payload must never open a transport.
func NewSession(cfg Config, cb Callbacks) (*Session, error) {
	return newSession(cfg, cb, nil, nil)
}

// newSession allows tests to inject a dialer and clock.
func newSession(cfg Config, cb Callbacks, dialer Dialer, clock actor.Clock) (*Session, error) {
	cfg = cfg.withDefaults()
	if cfg.WebsocketURL == "" {
		return nil, errors.New("websocket url is required")
	}
	if cfg.Credential.SignedConfig == "" || cfg.Credential.Signature == "" {
		return nil, errors.New("signed credential is required")
	}
	if _, err := handshake.BuildPayload("", cfg.Credential.SignedConfig, cfg.Credential.Signature); err != nil {
		return nil, err
	}

	runtime := NewRuntime(cfg.WebsocketURL, cfg.Credential, dialer, clock, cb)
	return &Session{
		cfg:     cfg,
		runtime: runtime,
		act:     actor.New(initialState(cfg), Reduce, runtime),
	}, nil
}

// Start launches the actor loop and requests the first connect attempt.
func (s *Session) Start() {
	s.act.Start()
	s.act.Enqueue(cmdStart{})
}

// Close requests teardown. Teardown wins from any state: it cancels pending
// retries and the in-flight attempt, and the session-end callback fires
// exactly once.
func (s *Session) Close(reason string) {
	s.act.Enqueue(cmdTeardown{Reason: reason})
}

// Stop halts the actor loop and releases runtime resources. Call after
// Close; pending mailbox items are dropped.
func (s *Session) Stop() {
	s.act.Stop()
}

// Done closes when the actor loop has exited.
func (s *Session) Done() <-chan struct{} { return s.act.Done() }

// Send writes terminal input to the shell over the current transport.
func (s *Session) Send(p []byte) error {
	return s.runtime.Write(p)
}

// Snapshot returns the current machine state, for observability and tests.
func (s *Session) Snapshot() State {
	return s.act.State()
}
