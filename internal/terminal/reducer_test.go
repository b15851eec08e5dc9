package terminal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ably-labs/webcli/internal/actor"
)

func step(state State, input actor.Input) (State, []actor.Effect) {
	return actor.Step(state, input, Reduce)
}

func testConfig() Config {
	return Config{
		WebsocketURL:     "wss://host.example.com/term",
		HandshakeTimeout: 10 * time.Second,
	}.withDefaults()
}

func connectEffects(effects []actor.Effect) []effConnect {
	var out []effConnect
	for _, eff := range effects {
		if c, ok := eff.(effConnect); ok {
			out = append(out, c)
		}
	}
	return out
}

func statusEffects(effects []actor.Effect) []Status {
	var out []Status
	for _, eff := range effects {
		if s, ok := eff.(effStatus); ok {
			out = append(out, s.Status)
		}
	}
	return out
}

func hasEffect[T actor.Effect](effects []actor.Effect) bool {
	for _, eff := range effects {
		if _, ok := eff.(T); ok {
			return true
		}
	}
	return false
}

func TestReduceStart_BeginsFirstAttempt(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	next, effects := step(state, cmdStart{})

	require.Equal(t, PhaseConnecting, next.Phase)
	require.Equal(t, 1, next.Attempt)
	require.True(t, next.InFlight)
	require.EqualValues(t, 1, next.Gen)

	conns := connectEffects(effects)
	require.Len(t, conns, 1)
	require.EqualValues(t, 1, conns[0].Gen)

	statuses := statusEffects(effects)
	require.Len(t, statuses, 1)
	require.Equal(t, PhaseConnecting, statuses[0].Phase)
	require.True(t, hasEffect[effStartTimer](effects))
}

func TestReduceStart_IgnoredOutsideInitial(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseConnected
	next, effects := step(state, cmdStart{})
	require.Equal(t, state, next)
	require.Empty(t, effects)
}

func TestReduceHandshakeAck_Connects(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseConnecting
	state.Gen = 3
	state.Attempt = 2
	state.InFlight = true

	next, effects := step(state, evHandshakeAck{Gen: 3, SessionID: "sess-1"})

	require.Equal(t, PhaseConnected, next.Phase)
	require.Zero(t, next.Attempt)
	require.False(t, next.InFlight)
	require.Equal(t, "sess-1", next.SessionID)
	require.True(t, next.SessionIDAnnounced)

	var announced []string
	for _, eff := range effects {
		if e, ok := eff.(effSessionID); ok {
			announced = append(announced, e.SessionID)
		}
	}
	require.Equal(t, []string{"sess-1"}, announced)
}

func TestReduceHandshakeAck_SessionIDAnnouncedOnlyOnce(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseReconnecting
	state.Gen = 5
	state.InFlight = true
	state.SessionID = "sess-1"
	state.SessionIDAnnounced = true

	_, effects := step(state, evHandshakeAck{Gen: 5, SessionID: "sess-1"})
	require.False(t, hasEffect[effSessionID](effects))
}

func TestReduceHandshakeAck_StaleGenerationDiscarded(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseConnecting
	state.Gen = 7
	state.InFlight = true

	next, effects := step(state, evHandshakeAck{Gen: 6, SessionID: "old"})
	require.Equal(t, state, next)
	require.Empty(t, effects)
}

func TestReduceAuthRejected_Terminal(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseConnecting
	state.Gen = 1
	state.InFlight = true

	next, effects := step(state, evAuthRejected{Gen: 1, Reason: "signature mismatch"})

	require.Equal(t, PhaseError, next.Phase)
	require.True(t, next.Ended)

	statuses := statusEffects(effects)
	require.Len(t, statuses, 1)
	require.Contains(t, statuses[0].Reason, "authentication rejected")
	require.True(t, hasEffect[effSessionEnd](effects))
	require.True(t, hasEffect[effCloseTransport](effects))
}

func TestReduceTransportDown_FromConnectedSchedulesRetry(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseConnected
	state.Gen = 2
	state.SessionID = "sess-1"

	next, effects := step(state, evTransportDown{Gen: 2, Err: "connection reset"})

	require.Equal(t, PhaseReconnecting, next.Phase)
	require.Zero(t, next.Attempt)
	require.Equal(t, "connection reset", next.LastError)
	require.Empty(t, connectEffects(effects), "retry goes through the timer, not a direct connect")

	var closes []effCloseTransport
	for _, eff := range effects {
		if e, ok := eff.(effCloseTransport); ok {
			closes = append(closes, e)
		}
	}
	require.Len(t, closes, 1, "the dead transport must be released")
	require.EqualValues(t, 2, closes[0].Gen)

	var timers []effStartTimer
	for _, eff := range effects {
		if e, ok := eff.(effStartTimer); ok {
			timers = append(timers, e)
		}
	}
	require.Len(t, timers, 1)
	require.Equal(t, timerRetry, timers[0].Name)
	require.EqualValues(t, 1000, timers[0].AfterMs)
}

func TestReduceRetryTimer_ReusesSessionIdentity(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseReconnecting
	state.Gen = 2
	state.SessionID = "sess-1"

	next, effects := step(state, evTimerFired{Name: timerRetry})

	require.Equal(t, 1, next.Attempt)
	require.True(t, next.InFlight)

	conns := connectEffects(effects)
	require.Len(t, conns, 1)
	require.Equal(t, "sess-1", conns[0].SessionID, "every attempt requests resumption")
}

func TestReduceHandshakeTimeout_ConsumesBudget(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseReconnecting
	state.Gen = 3
	state.Attempt = 1
	state.InFlight = true

	next, effects := step(state, evTimerFired{Name: timerHandshake})

	require.False(t, next.InFlight)
	require.Equal(t, "handshake timeout", next.LastError)
	require.True(t, hasEffect[effCloseTransport](effects))
	require.True(t, hasEffect[effStartTimer](effects))
	require.Greater(t, next.Gen, state.Gen, "late events from the timed-out attempt must be stale")
}

func TestReduceAttemptFailure_BudgetExhausted(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseReconnecting
	state.Gen = 20
	state.Attempt = state.MaxAttempts
	state.InFlight = true

	next, effects := step(state, evTransportDown{Gen: 20, Err: "refused"})

	require.Equal(t, PhaseError, next.Phase)
	statuses := statusEffects(effects)
	require.Len(t, statuses, 1)
	require.Contains(t, statuses[0].Reason, "after 15 attempts")
	require.Contains(t, statuses[0].Reason, "refused")
	require.True(t, hasEffect[effSessionEnd](effects))
}

func TestReduceStartFresh_ClearsIdentityAndRetriesSameAttempt(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseReconnecting
	state.Gen = 4
	state.Attempt = 2
	state.InFlight = true
	state.SessionID = "sess-1"

	next, effects := step(state, evStartFresh{Gen: 4})

	require.Empty(t, next.SessionID)
	require.Equal(t, 2, next.Attempt, "start-fresh does not consume budget")
	require.True(t, next.InFlight)

	conns := connectEffects(effects)
	require.Len(t, conns, 1)
	require.Empty(t, conns[0].SessionID)
}

func TestReduceStartFresh_TerminalWhenResumeDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.DisableResume = true
	state := initialState(cfg)
	state.Phase = PhaseReconnecting
	state.Gen = 4
	state.InFlight = true

	next, effects := step(state, evStartFresh{Gen: 4})

	require.Equal(t, PhaseError, next.Phase)
	require.True(t, hasEffect[effSessionEnd](effects))
}

func TestReduceTeardown_WinsFromAnyState(t *testing.T) {
	t.Parallel()

	phases := []Phase{PhaseInitial, PhaseConnecting, PhaseConnected, PhaseReconnecting, PhaseError}
	for _, phase := range phases {
		phase := phase
		t.Run(string(phase), func(t *testing.T) {
			t.Parallel()

			state := initialState(testConfig())
			state.Phase = phase
			state.Gen = 9
			state.InFlight = phase == PhaseConnecting || phase == PhaseReconnecting
			state.Ended = phase == PhaseError

			next, effects := step(state, cmdTeardown{Reason: "user closed tab"})

			require.Equal(t, PhaseDisconnected, next.Phase)
			require.False(t, next.InFlight)

			cancels := 0
			for _, eff := range effects {
				if _, ok := eff.(effCancelTimer); ok {
					cancels++
				}
			}
			require.Equal(t, 2, cancels, "both retry and handshake timers are canceled")
			require.True(t, hasEffect[effCloseTransport](effects))

			// Session end fires exactly once across the machine's lifetime.
			require.Equal(t, !state.Ended, hasEffect[effSessionEnd](effects))
		})
	}
}

func TestReduceTeardown_Idempotent(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseConnected
	state.Gen = 2

	next, _ := step(state, cmdTeardown{})
	again, effects := step(next, cmdTeardown{})
	require.Equal(t, next, again)
	require.Empty(t, effects)
}

func TestReduce_LateEventsAfterTeardownAreInert(t *testing.T) {
	t.Parallel()

	state := initialState(testConfig())
	state.Phase = PhaseConnecting
	state.Gen = 3
	state.InFlight = true

	down, _ := step(state, cmdTeardown{})

	inputs := []actor.Input{
		evHandshakeAck{Gen: 3, SessionID: "late"},
		evTransportDown{Gen: 3, Err: "late close"},
		evAuthRejected{Gen: 3},
		evTimerFired{Name: timerRetry},
		evTimerFired{Name: timerHandshake},
	}
	for _, in := range inputs {
		next, effects := step(down, in)
		require.Equal(t, down, next, "input %T revived the machine", in)
		require.Empty(t, effects, "input %T produced effects", in)
	}
}

func TestBackoffMs_CappedExponential(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		want    int64
	}{
		{attempt: 1, want: 1000},
		{attempt: 2, want: 2000},
		{attempt: 3, want: 4000},
		{attempt: 4, want: 8000},
		{attempt: 5, want: 15000},
		{attempt: 14, want: 15000},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, backoffMs(tt.attempt), "attempt %d", tt.attempt)
	}
}
