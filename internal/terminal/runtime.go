package terminal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ably-labs/webcli/internal/actor"
	"github.com/ably-labs/webcli/internal/credential"
	"github.com/ably-labs/webcli/internal/handshake"
	"github.com/ably-labs/webcli/internal/wire"
	"github.com/ably-labs/webcli/pkg/logger"
)

// Callbacks are the embedder-facing observers. Status, session-id, and
// session-end callbacks run on the actor loop, in transition order, never
// reentrant. OnData runs on the transport read goroutine.
type Callbacks struct {
	OnConnectionStatusChange func(Status)
	OnSessionID              func(string)
	OnSessionEnd             func(string)
	OnData                   func([]byte)
}

// Runtime interprets connection effects: it dials transports, performs the
// handshake, schedules named timers, and delivers embedder callbacks.
//
// Runtime never mutates reducer state; it only emits events back into the
// actor mailbox.
type Runtime struct {
	url       string
	cred      credential.SignedCredential
	dialer    Dialer
	clock     actor.Clock
	callbacks Callbacks

	mu        sync.Mutex
	timers    map[string]*time.Timer
	conns     map[int64]Transport
	curGen    int64
	closedGen int64
}

// NewRuntime returns a Runtime for the given host URL and signed credential.
func NewRuntime(url string, cred credential.SignedCredential, dialer Dialer, clock actor.Clock, cb Callbacks) *Runtime {
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	if clock == nil {
		clock = actor.RealClock{}
	}
	return &Runtime{
		url:       url,
		cred:      cred,
		dialer:    dialer,
		clock:     clock,
		callbacks: cb,
		timers:    make(map[string]*time.Timer),
		conns:     make(map[int64]Transport),
	}
}

// HandleEffects implements actor.Runtime.
func (r *Runtime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	for _, eff := range effects {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch e := eff.(type) {
		case effConnect:
			r.connect(ctx, e, emit)
		case effCloseTransport:
			r.closeTransport(e.Gen)
		case effStartTimer:
			r.startTimer(ctx, e, emit)
		case effCancelTimer:
			r.cancelTimer(e.Name)
		case effStatus:
			if cb := r.callbacks.OnConnectionStatusChange; cb != nil {
				cb(e.Status)
			}
		case effSessionID:
			if cb := r.callbacks.OnSessionID; cb != nil {
				cb(e.SessionID)
			}
		case effSessionEnd:
			if cb := r.callbacks.OnSessionEnd; cb != nil {
				cb(e.Reason)
			}
		}
	}
}

// Stop implements actor.Runtime.
func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range r.timers {
		t.Stop()
		delete(r.timers, name)
	}
	for gen, conn := range r.conns {
		_ = conn.Close()
		delete(r.conns, gen)
		if gen > r.closedGen {
			r.closedGen = gen
		}
	}
	if r.curGen > r.closedGen {
		r.closedGen = r.curGen
	}
	r.curGen = 0
}

// Write sends terminal input over the current transport.
func (r *Runtime) Write(p []byte) error {
	r.mu.Lock()
	conn := r.conns[r.curGen]
	r.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}
	return conn.WriteData(p)
}

// connect performs one handshake attempt asynchronously. The payload is
// rebuilt fresh for every attempt so it always carries the current session
// identity.
func (r *Runtime) connect(ctx context.Context, eff effConnect, emit func(actor.Input)) {
	payload, err := handshake.BuildPayload(eff.SessionID, r.cred.SignedConfig, r.cred.Signature)
	if err != nil {
		// Malformed config: never open a transport.
		emit(evConnectFatal{Gen: eff.Gen, Err: err.Error()})
		return
	}

	if payload.AccessToken != "" {
		if soon, err := credential.IsTokenExpiringSoon(payload.AccessToken, r.clock.Now(), time.Minute); err == nil && soon {
			logger.Warnf("access token expires within a minute; the host may reject this session")
		}
	}

	go func() {
		conn, err := r.dialer.Dial(ctx, r.url)
		if err != nil {
			emit(evTransportDown{Gen: eff.Gen, Err: err.Error()})
			return
		}

		r.mu.Lock()
		if eff.Gen <= r.closedGen {
			// This generation was torn down while the dial was in flight;
			// the reducer will never address it again.
			r.mu.Unlock()
			_ = conn.Close()
			return
		}
		r.conns[eff.Gen] = conn
		if eff.Gen > r.curGen {
			r.curGen = eff.Gen
		}
		r.mu.Unlock()

		hs := wire.Handshake{
			SessionID: payload.SessionID,
			Config:    payload.Config,
			Signature: payload.Signature,
		}
		if err := conn.WriteJSON(hs); err != nil {
			_ = conn.Close()
			emit(evTransportDown{Gen: eff.Gen, Err: err.Error()})
			return
		}

		logger.Debugf("handshake sent (gen=%d resume=%t)", eff.Gen, payload.SessionID != "")
		r.readLoop(ctx, eff.Gen, conn, emit)
	}()
}

func (r *Runtime) readLoop(ctx context.Context, gen int64, conn Transport, emit func(actor.Input)) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			emit(evTransportDown{Gen: gen, Err: err.Error()})
			return
		}

		switch kind {
		case frameText:
			msg, ok := wire.DecodeServerMessage(data)
			if !ok {
				continue
			}
			switch msg.Type {
			case wire.MessageHello:
				emit(evHandshakeAck{Gen: gen, SessionID: msg.SessionID})
			case wire.MessageAuthRejected:
				emit(evAuthRejected{Gen: gen, Reason: msg.Reason})
			case wire.MessageStartFresh:
				emit(evStartFresh{Gen: gen})
			case wire.MessageBye:
				emit(evTransportDown{Gen: gen, Err: "session host closed the connection"})
				return
			}
		case frameBinary:
			if cb := r.callbacks.OnData; cb != nil {
				cb(data)
			}
		}
	}
}

func (r *Runtime) closeTransport(gen int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn := r.conns[gen]; conn != nil {
		_ = conn.Close()
		delete(r.conns, gen)
	}
	if gen > r.closedGen {
		r.closedGen = gen
	}
	if gen == r.curGen {
		r.curGen = 0
	}
}

// startTimer schedules a single named timer; scheduling an existing name
// replaces it.
func (r *Runtime) startTimer(ctx context.Context, eff effStartTimer, emit func(actor.Input)) {
	if eff.Name == "" || eff.AfterMs <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev := r.timers[eff.Name]; prev != nil {
		prev.Stop()
	}
	r.timers[eff.Name] = time.AfterFunc(time.Duration(eff.AfterMs)*time.Millisecond, func() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		emit(evTimerFired{Name: eff.Name})
	})
}

func (r *Runtime) cancelTimer(name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t := r.timers[name]; t != nil {
		t.Stop()
	}
	delete(r.timers, name)
}
