package monitor

import (
	"math"
	"time"

	"gametunnel/internal/probe"
)

// EngineConfig holds the scoring and selection parameters.
type EngineConfig struct {
	// EWMA smoothing factor: ewma = alpha*latest + (1-alpha)*prev.
	Alpha float64
	// EWMA latency above which an Online endpoint becomes Degraded.
	DegradedThresholdMS float64
	// EWMA latency below which a Degraded endpoint recovers to Online.
	// Kept below DegradedThresholdMS so the pair forms a hysteresis band.
	RecoverThresholdMS float64
	// Score penalty applied per unit of failure ratio over the window.
	FailurePenaltyMS float64
	// Consecutive successes required to go (back) Online.
	SuccessesUp int
	// Consecutive failures required to go Offline.
	FailuresDown int
	// Relative score improvement a challenger needs before it can take over.
	SwitchMargin float64
	// Consecutive qualifying rounds the challenger must sustain.
	SwitchRounds int
}

// DefaultEngineConfig returns the stock scoring parameters.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Alpha:               0.3,
		DegradedThresholdMS: 100,
		RecoverThresholdMS:  80,
		FailurePenaltyMS:    1000,
		SuccessesUp:         2,
		FailuresDown:        3,
		SwitchMargin:        0.10,
		SwitchRounds:        2,
	}
}

// Engine converts probe outcomes into endpoint states and the active
// selection. It is the only writer of both; the Monitor serializes calls to
// Apply, so the engine itself carries no locking.
type Engine struct {
	config EngineConfig

	states    map[string]*EndpointState
	selection Selection

	// Challenger streak for selection hysteresis.
	challengerID     string
	challengerRounds int
}

// NewEngine creates an engine with the given parameters; zero values fall
// back to the defaults.
func NewEngine(cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = def.Alpha
	}
	if cfg.DegradedThresholdMS <= 0 {
		cfg.DegradedThresholdMS = def.DegradedThresholdMS
	}
	if cfg.RecoverThresholdMS <= 0 || cfg.RecoverThresholdMS > cfg.DegradedThresholdMS {
		cfg.RecoverThresholdMS = math.Min(def.RecoverThresholdMS, cfg.DegradedThresholdMS)
	}
	if cfg.FailurePenaltyMS <= 0 {
		cfg.FailurePenaltyMS = def.FailurePenaltyMS
	}
	if cfg.SuccessesUp <= 0 {
		cfg.SuccessesUp = def.SuccessesUp
	}
	if cfg.FailuresDown <= 0 {
		cfg.FailuresDown = def.FailuresDown
	}
	if cfg.SwitchMargin <= 0 {
		cfg.SwitchMargin = def.SwitchMargin
	}
	if cfg.SwitchRounds <= 0 {
		cfg.SwitchRounds = def.SwitchRounds
	}
	return &Engine{
		config: cfg,
		states: make(map[string]*EndpointState),
	}
}

// Apply scores one completed probe round: every outcome updates its
// endpoint's state, then the active selection is re-evaluated once. windows
// must already contain the round's samples.
func (e *Engine) Apply(outcomes []probe.Outcome, windows *Windows, now time.Time) {
	for i := range outcomes {
		e.applyOutcome(&outcomes[i], windows, now)
	}
	e.reselect(now)
}

func (e *Engine) applyOutcome(o *probe.Outcome, windows *Windows, now time.Time) {
	st := e.state(o.Endpoint.ID)
	st.LastChecked = now

	if o.Succeeded() {
		st.ConsecutiveSuccesses++
		st.ConsecutiveFailures = 0

		if st.hasEWMA {
			st.EWMALatencyMS = e.config.Alpha*o.LatencyMS + (1-e.config.Alpha)*st.EWMALatencyMS
		} else {
			st.EWMALatencyMS = o.LatencyMS
			st.hasEWMA = true
		}

		switch st.Status {
		case StatusUnknown, StatusOffline:
			if st.ConsecutiveSuccesses >= e.config.SuccessesUp {
				st.Status = StatusOnline
			}
		}
		// Degradation band is evaluated on the smoothed latency only, so a
		// single spiky sample cannot flip the status.
		switch st.Status {
		case StatusOnline:
			if st.EWMALatencyMS > e.config.DegradedThresholdMS {
				st.Status = StatusDegraded
			}
		case StatusDegraded:
			if st.EWMALatencyMS < e.config.RecoverThresholdMS {
				st.Status = StatusOnline
			}
		}
	} else {
		st.ConsecutiveFailures++
		st.ConsecutiveSuccesses = 0

		if st.ConsecutiveFailures >= e.config.FailuresDown {
			st.Status = StatusOffline
		}
	}

	if st.Status == StatusOffline || !st.hasEWMA {
		st.Score = math.Inf(1)
	} else {
		st.Score = st.EWMALatencyMS + windows.FailureRatio(st.EndpointID)*e.config.FailurePenaltyMS
	}
}

// reselect decides the active endpoint for the round just scored. A switch
// away from a still-eligible active endpoint requires the challenger to beat
// it by SwitchMargin for SwitchRounds consecutive rounds.
func (e *Engine) reselect(now time.Time) {
	e.selection.RoundsSinceSwitch++

	best := e.bestCandidate()
	if best == nil {
		if !e.selection.None() {
			e.switchTo("", now)
		}
		return
	}

	active, activeEligible := e.states[e.selection.ActiveEndpointID]
	if e.selection.None() || !activeEligible || !active.Status.Candidate() {
		// Nothing to defend: adopt the best candidate immediately.
		e.switchTo(best.EndpointID, now)
		return
	}

	if best.EndpointID == active.EndpointID {
		e.resetChallenger()
		return
	}

	if best.Score <= active.Score*(1-e.config.SwitchMargin) {
		if e.challengerID == best.EndpointID {
			e.challengerRounds++
		} else {
			e.challengerID = best.EndpointID
			e.challengerRounds = 1
		}
		if e.challengerRounds >= e.config.SwitchRounds {
			e.switchTo(best.EndpointID, now)
		}
		return
	}

	e.resetChallenger()
}

// bestCandidate returns the eligible endpoint with the lowest score,
// breaking ties by the lexicographically smallest ID.
func (e *Engine) bestCandidate() *EndpointState {
	var best *EndpointState
	for _, st := range e.states {
		if !st.Status.Candidate() {
			continue
		}
		if best == nil ||
			st.Score < best.Score ||
			(st.Score == best.Score && st.EndpointID < best.EndpointID) {
			best = st
		}
	}
	return best
}

func (e *Engine) switchTo(endpointID string, now time.Time) {
	e.selection = Selection{
		ActiveEndpointID: endpointID,
		Since:            now,
	}
	e.resetChallenger()
}

func (e *Engine) resetChallenger() {
	e.challengerID = ""
	e.challengerRounds = 0
}

func (e *Engine) state(endpointID string) *EndpointState {
	st, ok := e.states[endpointID]
	if !ok {
		st = &EndpointState{EndpointID: endpointID, Status: StatusUnknown}
		e.states[endpointID] = st
	}
	return st
}

// State returns a copy of one endpoint's state; ok is false if the endpoint
// has never been probed.
func (e *Engine) State(endpointID string) (EndpointState, bool) {
	st, ok := e.states[endpointID]
	if !ok {
		return EndpointState{EndpointID: endpointID, Status: StatusUnknown}, false
	}
	return *st, true
}

// Selection returns the current selection cell.
func (e *Engine) Selection() Selection {
	return e.selection
}
