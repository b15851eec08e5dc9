// Package terminal owns the connection lifecycle of a web CLI terminal
// session: the initial authenticated handshake, reconnection with session
// resumption, the retry budget, and teardown.
//
// The lifecycle is a pure reducer over an explicit state value, executed by
// the actor loop in internal/actor. The runtime performs the actual side
// effects (websocket dialing, timers, embedder callbacks) and feeds resulting
// events back in, so every transition is unit-testable without a network.
package terminal

import (
	"time"

	"github.com/ably-labs/webcli/internal/actor"
	"github.com/ably-labs/webcli/internal/credential"
)

// Phase is the externally visible connection state.
type Phase string

const (
	PhaseInitial      Phase = "initial"
	PhaseConnecting   Phase = "connecting"
	PhaseConnected    Phase = "connected"
	PhaseReconnecting Phase = "reconnecting"
	PhaseDisconnected Phase = "disconnected"
	PhaseError        Phase = "error"
)

// DefaultMaxReconnectAttempts bounds a reconnection episode unless the
// embedder overrides it.
const DefaultMaxReconnectAttempts = 15

// DefaultHandshakeTimeout bounds how long a connect attempt may wait for the
// host's acknowledgement before it consumes a unit of the retry budget.
const DefaultHandshakeTimeout = 10 * time.Second

// Named timers used by the reducer.
const (
	timerRetry     = "reconnect-retry"
	timerHandshake = "handshake-timeout"
)

// Config is the embedding configuration consumed by the session core.
type Config struct {
	// WebsocketURL is the session host endpoint.
	WebsocketURL string

	// Credential is the signed bundle produced by the credential signer. The
	// SignedConfig bytes are sent verbatim on every handshake.
	Credential credential.SignedCredential

	// SessionID optionally seeds resumption across a full page reload, from
	// an identity persisted by the embedder.
	SessionID string

	// DisableResume makes resumption refusals terminal instead of falling
	// back to a fresh session, and suppresses the reload seed above.
	DisableResume bool

	// EnableSplitScreen is an orthogonal UI feature carried through to the
	// embedder; it does not affect the connection lifecycle.
	EnableSplitScreen bool

	// MaxReconnectAttempts bounds a reconnection episode. Zero means
	// DefaultMaxReconnectAttempts.
	MaxReconnectAttempts int

	// HandshakeTimeout is the acknowledgement window per attempt. Zero means
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.DisableResume {
		c.SessionID = ""
	}
	return c
}

// Status is the snapshot delivered to the embedder on every transition.
type Status struct {
	Phase     Phase
	Attempt   int
	SessionID string
	LastError string
	// Reason is human-readable and set for terminal phases.
	Reason string
}

// State is the reducer-owned connection state.
type State struct {
	Phase Phase

	// Gen increments for every connect attempt and on teardown; runtime
	// events carrying a stale generation are discarded. This is what keeps a
	// late transport event from reviving a torn-down machine.
	Gen int64

	// Attempt counts connect attempts within the current episode. It resets
	// only on reaching PhaseConnected.
	Attempt int

	// InFlight is true while exactly one handshake attempt is outstanding.
	InFlight bool

	// SessionID is the identity issued by the host; reused on every
	// resumption attempt.
	SessionID string

	// SessionIDAnnounced guards the exactly-once session-id callback.
	SessionIDAnnounced bool

	// Ended guards the exactly-once session-end callback.
	Ended bool

	MaxAttempts   int
	HandshakeMs   int64
	DisableResume bool
	LastError     string
}

func initialState(cfg Config) State {
	return State{
		Phase:         PhaseInitial,
		SessionID:     cfg.SessionID,
		MaxAttempts:   cfg.MaxReconnectAttempts,
		HandshakeMs:   cfg.HandshakeTimeout.Milliseconds(),
		DisableResume: cfg.DisableResume,
	}
}

func (s State) status(reason string) Status {
	return Status{
		Phase:     s.Phase,
		Attempt:   s.Attempt,
		SessionID: s.SessionID,
		LastError: s.LastError,
		Reason:    reason,
	}
}

// Inputs

// Event is consumed by the reducer; emitted by the runtime.
type Event interface {
	actor.Input
	isTerminalEvent()
}

// Command is consumed by the reducer; enqueued by the session facade.
type Command interface {
	actor.Input
	isTerminalCommand()
}

// cmdStart requests the first connect attempt.
type cmdStart struct {
	actor.InputBase
}

func (cmdStart) isTerminalCommand() {}

// cmdTeardown requests explicit teardown. It wins from any state and cancels
// pending retries and the in-flight attempt.
type cmdTeardown struct {
	actor.InputBase
	Reason string
}

func (cmdTeardown) isTerminalCommand() {}

// evHandshakeAck reports that the host accepted the handshake.
type evHandshakeAck struct {
	actor.InputBase
	Gen       int64
	SessionID string
}

func (evHandshakeAck) isTerminalEvent() {}

// evAuthRejected reports a signature mismatch. Not retryable.
type evAuthRejected struct {
	actor.InputBase
	Gen    int64
	Reason string
}

func (evAuthRejected) isTerminalEvent() {}

// evStartFresh reports that the host refused resumption and invited a fresh
// handshake.
type evStartFresh struct {
	actor.InputBase
	Gen int64
}

func (evStartFresh) isTerminalEvent() {}

// evTransportDown reports a dial failure or a transport drop.
type evTransportDown struct {
	actor.InputBase
	Gen int64
	Err string
}

func (evTransportDown) isTerminalEvent() {}

// evConnectFatal reports a pre-transport failure (e.g. the signed config
// failed to parse). Never retried.
type evConnectFatal struct {
	actor.InputBase
	Gen int64
	Err string
}

func (evConnectFatal) isTerminalEvent() {}

// evTimerFired reports a named timer expiry.
type evTimerFired struct {
	actor.InputBase
	Name string
}

func (evTimerFired) isTerminalEvent() {}

// Effects

// Effect is emitted by the reducer and interpreted by the runtime.
type Effect interface {
	actor.Effect
	isTerminalEffect()
}

// effConnect opens a transport and performs one handshake attempt, reusing
// the given session identity to request resumption when non-empty.
type effConnect struct {
	actor.EffectBase
	Gen       int64
	SessionID string
}

func (effConnect) isTerminalEffect() {}

// effCloseTransport closes the transport belonging to the given generation.
type effCloseTransport struct {
	actor.EffectBase
	Gen int64
}

func (effCloseTransport) isTerminalEffect() {}

type effStartTimer struct {
	actor.EffectBase
	Name    string
	AfterMs int64
}

func (effStartTimer) isTerminalEffect() {}

type effCancelTimer struct {
	actor.EffectBase
	Name string
}

func (effCancelTimer) isTerminalEffect() {}

// effStatus delivers a status snapshot to the embedder callback.
type effStatus struct {
	actor.EffectBase
	Status Status
}

func (effStatus) isTerminalEffect() {}

// effSessionID announces the session identity, exactly once.
type effSessionID struct {
	actor.EffectBase
	SessionID string
}

func (effSessionID) isTerminalEffect() {}

// effSessionEnd announces terminal teardown, exactly once.
type effSessionEnd struct {
	actor.EffectBase
	Reason string
}

func (effSessionEnd) isTerminalEffect() {}
