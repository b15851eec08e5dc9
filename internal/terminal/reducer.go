package terminal

import (
	"fmt"

	"github.com/ably-labs/webcli/internal/actor"
)

// Reconnect backoff policy: capped exponential, 1s doubling up to 15s. The
// attempt ceiling is what the embedder observes; the interval between
// attempts is a deliberate local choice.
const (
	retryBaseMs = int64(1000)
	retryCapMs  = int64(15000)
)

func backoffMs(attempt int) int64 {
	if attempt < 1 {
		attempt = 1
	}
	// Shift overflow is impossible within the ceiling; cap well before it.
	if attempt > 5 {
		return retryCapMs
	}
	ms := retryBaseMs << (attempt - 1)
	if ms > retryCapMs {
		ms = retryCapMs
	}
	return ms
}

// Reduce is the connection state machine. It is pure: all side effects are
// returned as data for the runtime to execute.
func Reduce(state State, input actor.Input) (State, []actor.Effect) {
	switch in := input.(type) {
	case cmdStart:
		return reduceStart(state)
	case cmdTeardown:
		return reduceTeardown(state, in)
	case evHandshakeAck:
		return reduceHandshakeAck(state, in)
	case evAuthRejected:
		return reduceAuthRejected(state, in)
	case evStartFresh:
		return reduceStartFresh(state, in)
	case evTransportDown:
		return reduceTransportDown(state, in)
	case evConnectFatal:
		return reduceConnectFatal(state, in)
	case evTimerFired:
		return reduceTimerFired(state, in)
	default:
		return state, nil
	}
}

func reduceStart(state State) (State, []actor.Effect) {
	if state.Phase != PhaseInitial {
		return state, nil
	}
	state.Phase = PhaseConnecting
	return startAttempt(state)
}

// startAttempt begins exactly one handshake attempt: a fresh generation, the
// attempt counter consumed, and the acknowledgement window armed.
func startAttempt(state State) (State, []actor.Effect) {
	state.Gen++
	state.Attempt++
	state.InFlight = true
	return state, []actor.Effect{
		effStatus{Status: state.status("")},
		effConnect{Gen: state.Gen, SessionID: state.SessionID},
		effStartTimer{Name: timerHandshake, AfterMs: state.HandshakeMs},
	}
}

func reduceTeardown(state State, cmd cmdTeardown) (State, []actor.Effect) {
	if state.Phase == PhaseDisconnected {
		return state, nil
	}
	reason := cmd.Reason
	if reason == "" {
		reason = "session closed"
	}

	prevGen := state.Gen
	state.Gen++
	state.Phase = PhaseDisconnected
	state.InFlight = false

	effects := []actor.Effect{
		effCancelTimer{Name: timerRetry},
		effCancelTimer{Name: timerHandshake},
		effCloseTransport{Gen: prevGen},
		effStatus{Status: state.status(reason)},
	}
	if !state.Ended {
		state.Ended = true
		effects = append(effects, effSessionEnd{Reason: reason})
	}
	return state, effects
}

func reduceHandshakeAck(state State, ev evHandshakeAck) (State, []actor.Effect) {
	if ev.Gen != state.Gen || !attemptPhase(state.Phase) || !state.InFlight {
		return state, nil
	}

	state.Phase = PhaseConnected
	state.Attempt = 0
	state.InFlight = false
	state.LastError = ""
	if ev.SessionID != "" {
		state.SessionID = ev.SessionID
	}

	effects := []actor.Effect{
		effCancelTimer{Name: timerHandshake},
		effStatus{Status: state.status("")},
	}
	if !state.SessionIDAnnounced && state.SessionID != "" {
		state.SessionIDAnnounced = true
		effects = append(effects, effSessionID{SessionID: state.SessionID})
	}
	return state, effects
}

func reduceAuthRejected(state State, ev evAuthRejected) (State, []actor.Effect) {
	if ev.Gen != state.Gen || !attemptPhase(state.Phase) {
		return state, nil
	}
	reason := "authentication rejected"
	if ev.Reason != "" {
		reason += ": " + ev.Reason
	}
	state.LastError = reason
	return toError(state, reason)
}

func reduceStartFresh(state State, ev evStartFresh) (State, []actor.Effect) {
	if ev.Gen != state.Gen || !attemptPhase(state.Phase) || !state.InFlight {
		return state, nil
	}
	if state.DisableResume {
		reason := "session resumption refused by host"
		state.LastError = reason
		return toError(state, reason)
	}

	// Drop the stale identity and handshake again as a brand-new session on
	// the same attempt.
	prevGen := state.Gen
	state.Gen++
	state.SessionID = ""
	return state, []actor.Effect{
		effCloseTransport{Gen: prevGen},
		effConnect{Gen: state.Gen, SessionID: ""},
		effStartTimer{Name: timerHandshake, AfterMs: state.HandshakeMs},
	}
}

func reduceTransportDown(state State, ev evTransportDown) (State, []actor.Effect) {
	if ev.Gen != state.Gen {
		return state, nil
	}

	switch {
	case state.Phase == PhaseConnected:
		state.Phase = PhaseReconnecting
		state.Attempt = 0
		state.LastError = ev.Err
		return state, []actor.Effect{
			effCloseTransport{Gen: ev.Gen},
			effStatus{Status: state.status("")},
			effStartTimer{Name: timerRetry, AfterMs: backoffMs(1)},
		}
	case attemptPhase(state.Phase) && state.InFlight:
		if ev.Err != "" {
			state.LastError = ev.Err
		}
		return failAttempt(state)
	default:
		return state, nil
	}
}

func reduceConnectFatal(state State, ev evConnectFatal) (State, []actor.Effect) {
	if ev.Gen != state.Gen || !attemptPhase(state.Phase) {
		return state, nil
	}
	reason := "connection failed"
	if ev.Err != "" {
		reason += ": " + ev.Err
	}
	state.LastError = reason
	return toError(state, reason)
}

func reduceTimerFired(state State, ev evTimerFired) (State, []actor.Effect) {
	switch ev.Name {
	case timerRetry:
		if !attemptPhase(state.Phase) || state.InFlight {
			return state, nil
		}
		return startAttempt(state)
	case timerHandshake:
		if !attemptPhase(state.Phase) || !state.InFlight {
			return state, nil
		}
		state.LastError = "handshake timeout"
		return failAttempt(state)
	default:
		return state, nil
	}
}

// failAttempt consumes one unit of the retry budget. With budget remaining it
// schedules the next attempt; otherwise the episode is over.
func failAttempt(state State) (State, []actor.Effect) {
	state.InFlight = false
	if state.Attempt >= state.MaxAttempts {
		reason := fmt.Sprintf("connection failed after %d attempts", state.Attempt)
		if state.LastError != "" {
			reason += ": " + state.LastError
		}
		return toError(state, reason)
	}

	prevGen := state.Gen
	state.Gen++
	return state, []actor.Effect{
		effCancelTimer{Name: timerHandshake},
		effCloseTransport{Gen: prevGen},
		effStartTimer{Name: timerRetry, AfterMs: backoffMs(state.Attempt)},
	}
}

// toError is the single terminal-failure transition. The generation bump
// makes any late transport event stale.
func toError(state State, reason string) (State, []actor.Effect) {
	prevGen := state.Gen
	state.Gen++
	state.Phase = PhaseError
	state.InFlight = false

	effects := []actor.Effect{
		effCancelTimer{Name: timerRetry},
		effCancelTimer{Name: timerHandshake},
		effCloseTransport{Gen: prevGen},
		effStatus{Status: state.status(reason)},
	}
	if !state.Ended {
		state.Ended = true
		effects = append(effects, effSessionEnd{Reason: reason})
	}
	return state, effects
}

func attemptPhase(p Phase) bool {
	return p == PhaseConnecting || p == PhaseReconnecting
}
