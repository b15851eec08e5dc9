// Package sdk is the embedder-facing surface of the web CLI terminal. It
// wraps the connection state machine with the embedding options and
// callbacks a hosting application works with.
package sdk

import (
	"github.com/ably-labs/webcli/internal/credential"
	"github.com/ably-labs/webcli/internal/terminal"
)

// ConnectionStatus values reported to OnConnectionStatusChange.
const (
	StatusInitial      = "initial"
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
	StatusReconnecting = "reconnecting"
	StatusDisconnected = "disconnected"
	StatusError        = "error"
)

// ConnectionStatus is a snapshot of the terminal's connection state.
type ConnectionStatus struct {
	// Status is one of the Status* constants.
	Status string

	// Attempt is the reconnect attempt in progress, zero outside a
	// reconnection episode.
	Attempt int

	// SessionID is the host-issued identity, once known.
	SessionID string

	// Reason is set for terminal states (disconnected, error).
	Reason string
}

// SessionStore persists the session identity across embedder restarts so a
// reload can resume instead of starting over.
type SessionStore interface {
	LoadSessionID() string
	SaveSessionID(id string)
	ClearSessionID()
}

// Options configures a Terminal.
type Options struct {
	// WebsocketURL is the session host endpoint. Required.
	WebsocketURL string

	// SignedConfig and Signature form the credential bundle, obtained from
	// the sign endpoint or a local Signer.
	SignedConfig string
	Signature    string

	// ResumeOnReload seeds the connection from SessionStore and keeps the
	// store current, so a full embedder restart reattaches to the same
	// shell. Without it, sessions resume only across network drops.
	ResumeOnReload bool

	// SessionStore backs ResumeOnReload. Ignored when ResumeOnReload is
	// false.
	SessionStore SessionStore

	// DisableResume turns a host's resumption refusal into a terminal error
	// instead of silently starting a fresh session.
	DisableResume bool

	// EnableSplitScreen is carried to the embedder UI; it does not affect
	// the connection lifecycle.
	EnableSplitScreen bool

	// MaxReconnectAttempts bounds a reconnection episode. Zero means the
	// default budget.
	MaxReconnectAttempts int

	OnConnectionStatusChange func(ConnectionStatus)
	OnSessionID              func(string)
	OnSessionEnd             func(string)
	OnData                   func([]byte)
}

// Terminal is one embedded terminal instance.
type Terminal struct {
	opts Options
	sess *terminal.Session
}

// New validates the options and assembles a terminal. The connection is not
// opened until Start.
func New(opts Options) (*Terminal, error) {
	t := &Terminal{opts: opts}

	cfg := terminal.Config{
		WebsocketURL: opts.WebsocketURL,
		Credential: credential.SignedCredential{
			SignedConfig: opts.SignedConfig,
			Signature:    opts.Signature,
		},
		DisableResume:        opts.DisableResume,
		EnableSplitScreen:    opts.EnableSplitScreen,
		MaxReconnectAttempts: opts.MaxReconnectAttempts,
	}
	if opts.ResumeOnReload && opts.SessionStore != nil {
		cfg.SessionID = opts.SessionStore.LoadSessionID()
	}

	sess, err := terminal.NewSession(cfg, terminal.Callbacks{
		OnConnectionStatusChange: t.onStatus,
		OnSessionID:              t.onSessionID,
		OnSessionEnd:             t.onSessionEnd,
		OnData:                   opts.OnData,
	})
	if err != nil {
		return nil, err
	}
	t.sess = sess
	return t, nil
}

// Start opens the connection.
func (t *Terminal) Start() { t.sess.Start() }

// Close requests an orderly teardown; OnSessionEnd fires exactly once.
func (t *Terminal) Close(reason string) { t.sess.Close(reason) }

// Stop halts the terminal's event loop. Call after Close.
func (t *Terminal) Stop() { t.sess.Stop() }

// Write sends terminal input (keystrokes) to the shell.
func (t *Terminal) Write(p []byte) error { return t.sess.Send(p) }

// Status returns the current connection status snapshot.
func (t *Terminal) Status() ConnectionStatus {
	s := t.sess.Snapshot()
	return ConnectionStatus{
		Status:    string(s.Phase),
		Attempt:   s.Attempt,
		SessionID: s.SessionID,
		Reason:    s.LastError,
	}
}

func statusFromStatus(s terminal.Status) ConnectionStatus {
	return ConnectionStatus{
		Status:    string(s.Phase),
		Attempt:   s.Attempt,
		SessionID: s.SessionID,
		Reason:    s.Reason,
	}
}

func (t *Terminal) onStatus(s terminal.Status) {
	if t.opts.ResumeOnReload && t.opts.SessionStore != nil {
		if s.Phase == terminal.PhaseDisconnected || s.Phase == terminal.PhaseError {
			t.opts.SessionStore.ClearSessionID()
		}
	}
	if cb := t.opts.OnConnectionStatusChange; cb != nil {
		cb(statusFromStatus(s))
	}
}

func (t *Terminal) onSessionID(id string) {
	if t.opts.ResumeOnReload && t.opts.SessionStore != nil {
		t.opts.SessionStore.SaveSessionID(id)
	}
	if cb := t.opts.OnSessionID; cb != nil {
		cb(id)
	}
}

func (t *Terminal) onSessionEnd(reason string) {
	if cb := t.opts.OnSessionEnd; cb != nil {
		cb(reason)
	}
}
