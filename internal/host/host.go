// Package host is a reference session host for the web CLI terminal: it
// verifies signed handshakes, spawns a shell per session under a PTY, and
// keeps sessions alive across client drops so they can be resumed.
package host

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ably-labs/webcli/internal/credential"
	"github.com/ably-labs/webcli/internal/handshake"
	"github.com/ably-labs/webcli/internal/wire"
	"github.com/ably-labs/webcli/pkg/logger"
)

// Defaults applied by NewHost.
const (
	defaultHandshakeWindow = 10 * time.Second
	defaultResumeWindow    = 5 * time.Minute
)

// Options configures a Host.
type Options struct {
	// SigningSecret verifies handshake signatures. Required.
	SigningSecret string

	// Shell is the command spawned per session. Defaults to $SHELL, then
	// /bin/bash.
	Shell string

	// HandshakeWindow bounds how long a fresh connection may take to present
	// its handshake frame.
	HandshakeWindow time.Duration

	// ResumeWindow is how long a detached session stays alive waiting for
	// the client to resume.
	ResumeWindow time.Duration

	// RateLimit / RateWindow bound connection attempts per API key. Signed
	// configs carrying bypassRateLimit skip the limiter.
	RateLimit  int
	RateWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.Shell == "" {
		o.Shell = os.Getenv("SHELL")
	}
	if o.Shell == "" {
		o.Shell = "/bin/bash"
	}
	if o.HandshakeWindow <= 0 {
		o.HandshakeWindow = defaultHandshakeWindow
	}
	if o.ResumeWindow <= 0 {
		o.ResumeWindow = defaultResumeWindow
	}
	return o
}

// Host accepts terminal websocket connections.
type Host struct {
	opts     Options
	upgrader websocket.Upgrader
	limiter  *connLimiter

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewHost returns a Host ready to accept connections.
func NewHost(opts Options) *Host {
	opts = opts.withDefaults()
	return &Host{
		opts: opts,
		upgrader: websocket.Upgrader{
			// The signed handshake is the authentication boundary; origin
			// checks would only break self-hosted embedding.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		limiter:  newConnLimiter(opts.RateLimit, opts.RateWindow),
		sessions: make(map[string]*session),
	}
}

// conn is one websocket connection; writes are serialized.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) writeData(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, p)
}

func (c *conn) writeControl(msg wire.ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, msg.Encode())
}

// sayBye sends an orderly goodbye and closes the connection.
func (c *conn) sayBye(reason string) {
	_ = c.writeControl(wire.ServerMessage{Type: wire.MessageBye, Reason: reason})
	_ = c.ws.Close()
}

// HandleConnection upgrades the request and runs the connection until the
// client drops or the session ends. Mount it on the terminal route.
func (h *Host) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debugf("host: upgrade failed: %v", err)
		return
	}
	c := &conn{ws: ws}

	payload, ok := h.acceptHandshake(c)
	if !ok {
		return
	}

	sess, ok := h.resolveSession(c, payload)
	if !ok {
		return
	}

	if err := sess.attach(c); err != nil {
		logger.Warnf("host: attach %s: %v", sess.id, err)
		c.sayBye("session unavailable")
		return
	}
	if err := c.writeControl(wire.ServerMessage{Type: wire.MessageHello, SessionID: sess.id}); err != nil {
		_ = ws.Close()
		return
	}
	logger.Infof("host: session %s attached (resume=%t)", sess.id, payload.SessionID != "")

	h.serve(c, sess)
}

// acceptHandshake reads and authenticates the mandatory first frame.
func (h *Host) acceptHandshake(c *conn) (handshake.Payload, bool) {
	_ = c.ws.SetReadDeadline(time.Now().Add(h.opts.HandshakeWindow))
	kind, data, err := c.ws.ReadMessage()
	if err != nil || kind != websocket.TextMessage {
		logger.Debugf("host: no handshake frame: %v", err)
		_ = c.ws.Close()
		return handshake.Payload{}, false
	}
	_ = c.ws.SetReadDeadline(time.Time{})

	var hs wire.Handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		c.reject("malformed handshake")
		return handshake.Payload{}, false
	}
	if h.opts.SigningSecret == "" || !credential.Verify(hs.Config, hs.Signature, h.opts.SigningSecret) {
		c.reject("signature mismatch")
		return handshake.Payload{}, false
	}

	payload, err := handshake.BuildPayload(hs.SessionID, hs.Config, hs.Signature)
	if err != nil {
		c.reject("malformed config")
		return handshake.Payload{}, false
	}

	if !payload.BypassRateLimit {
		key := payload.APIKey
		if key == "" {
			key = c.ws.RemoteAddr().String()
		}
		if !h.limiter.Allow(key, time.Now()) {
			logger.Warnf("host: rate limited connection for key %q", key)
			c.sayBye("rate limited")
			return handshake.Payload{}, false
		}
	}
	return payload, true
}

func (c *conn) reject(reason string) {
	_ = c.writeControl(wire.ServerMessage{Type: wire.MessageAuthRejected, Reason: reason})
	_ = c.ws.Close()
}

// resolveSession maps the handshake to a live session: resumption when the
// id is known, start-fresh when it is not, a new shell otherwise.
func (h *Host) resolveSession(c *conn, payload handshake.Payload) (*session, bool) {
	if payload.SessionID != "" {
		h.mu.Lock()
		sess := h.sessions[payload.SessionID]
		h.mu.Unlock()
		if sess == nil {
			// Unknown id: invite a fresh handshake on a new connection.
			_ = c.writeControl(wire.ServerMessage{Type: wire.MessageStartFresh})
			_ = c.ws.Close()
			return nil, false
		}
		return sess, true
	}

	sess, err := spawnSession(h.opts.Shell, payload.EnvironmentVariables)
	if err != nil {
		logger.Errorf("host: spawn shell: %v", err)
		c.sayBye("shell unavailable")
		return nil, false
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sess.close()
		c.sayBye("host shutting down")
		return nil, false
	}
	h.sessions[sess.id] = sess
	h.mu.Unlock()

	// Reap the session when the shell exits on its own.
	go func() {
		<-sess.done
		h.dropSession(sess)
	}()
	return sess, true
}

// serve pumps client frames into the shell until the connection drops.
func (h *Host) serve(c *conn, sess *session) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			sess.detach(c, h.opts.ResumeWindow, func() {
				logger.Infof("host: session %s expired unresumed", sess.id)
				h.dropSession(sess)
			})
			return
		}
		if kind != websocket.BinaryMessage {
			// Only terminal bytes flow client-to-host after the handshake.
			continue
		}
		if err := sess.write(data); err != nil {
			c.sayBye("session closed")
			h.dropSession(sess)
			return
		}
	}
}

func (h *Host) dropSession(sess *session) {
	h.mu.Lock()
	delete(h.sessions, sess.id)
	h.mu.Unlock()
	sess.close()
}

// SessionCount reports live sessions, attached or detached.
func (h *Host) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close tears down every session. New connections are refused afterwards.
func (h *Host) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for id, s := range h.sessions {
		sessions = append(sessions, s)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
