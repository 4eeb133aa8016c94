package monitor

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gametunnel/internal/probe"
	"gametunnel/internal/storage/models"
)

type roundResult struct {
	latencyMS float64
	ok        bool
}

func up(ms float64) roundResult { return roundResult{latencyMS: ms, ok: true} }
func down() roundResult         { return roundResult{ok: false} }

// playRound feeds one probe round (endpoint id -> result) through the
// windows and the engine, the way the monitor does.
func playRound(e *Engine, w *Windows, results map[string]roundResult, at time.Time) {
	outcomes := make([]probe.Outcome, 0, len(results))
	for id, r := range results {
		o := probe.Outcome{
			Endpoint:  &models.Endpoint{ID: id, Name: id, Host: "127.0.0.1", Port: 1},
			LatencyMS: r.latencyMS,
			At:        at,
		}
		if !r.ok {
			o.Err = assert.AnError
		}
		outcomes = append(outcomes, o)
		w.Record(id, Sample{Timestamp: at, LatencyMS: r.latencyMS, Succeeded: r.ok})
	}
	e.Apply(outcomes, w, at)
}

func newTestEngine() (*Engine, *Windows) {
	return NewEngine(DefaultEngineConfig()), NewWindows(60)
}

func TestOnlineRequiresConsecutiveSuccesses(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	playRound(e, w, map[string]roundResult{"a": up(20)}, at)
	st, _ := e.State("a")
	assert.Equal(t, StatusUnknown, st.Status, "one success must not reach Online")

	playRound(e, w, map[string]roundResult{"a": up(20)}, at)
	st, _ = e.State("a")
	assert.Equal(t, StatusOnline, st.Status)
}

func TestSuccessStreakResetsOnFailure(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	playRound(e, w, map[string]roundResult{"a": up(20)}, at)
	playRound(e, w, map[string]roundResult{"a": down()}, at)
	playRound(e, w, map[string]roundResult{"a": up(20)}, at)
	st, _ := e.State("a")
	assert.Equal(t, StatusUnknown, st.Status, "streak was broken, one success is not enough")

	playRound(e, w, map[string]roundResult{"a": up(20)}, at)
	st, _ = e.State("a")
	assert.Equal(t, StatusOnline, st.Status)
}

func TestOfflineOnThirdFailureAndRecovery(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	playRound(e, w, map[string]roundResult{"a": up(20)}, at)
	playRound(e, w, map[string]roundResult{"a": up(20)}, at)
	st, _ := e.State("a")
	require.Equal(t, StatusOnline, st.Status)

	playRound(e, w, map[string]roundResult{"a": down()}, at)
	st, _ = e.State("a")
	assert.Equal(t, StatusOnline, st.Status, "1st failure must not go Offline")

	playRound(e, w, map[string]roundResult{"a": down()}, at)
	st, _ = e.State("a")
	assert.Equal(t, StatusOnline, st.Status, "2nd failure must not go Offline")

	playRound(e, w, map[string]roundResult{"a": down()}, at)
	st, _ = e.State("a")
	assert.Equal(t, StatusOffline, st.Status, "3rd failure goes Offline")

	playRound(e, w, map[string]roundResult{"a": up(20)}, at)
	st, _ = e.State("a")
	assert.Equal(t, StatusOffline, st.Status, "1st success must not recover")

	playRound(e, w, map[string]roundResult{"a": up(20)}, at)
	st, _ = e.State("a")
	assert.Equal(t, StatusOnline, st.Status, "2nd consecutive success recovers")
}

func TestEWMASmoothing(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	playRound(e, w, map[string]roundResult{"a": up(100)}, at)
	st, _ := e.State("a")
	assert.InDelta(t, 100, st.EWMALatencyMS, 1e-9, "first sample seeds the EWMA")

	playRound(e, w, map[string]roundResult{"a": up(50)}, at)
	st, _ = e.State("a")
	assert.InDelta(t, 0.3*50+0.7*100, st.EWMALatencyMS, 1e-9)
}

func TestOscillatingLatencyDoesNotFlipStatus(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	// Alternating 15ms/90ms crosses the raw degraded threshold every other
	// round but the EWMA stays well below 100ms, so the status never flips.
	values := []float64{15, 90, 15, 90, 15, 90, 15, 90, 15, 90, 15, 90}
	for i, v := range values {
		playRound(e, w, map[string]roundResult{"a": up(v)}, at)
		st, _ := e.State("a")
		if i >= 1 {
			assert.Equal(t, StatusOnline, st.Status, "round %d (latency %.0f)", i, v)
		}
	}
}

func TestDegradedHysteresisBand(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	// Sustained 150ms: Online is reached with a high EWMA and immediately
	// classified Degraded.
	playRound(e, w, map[string]roundResult{"a": up(150)}, at)
	playRound(e, w, map[string]roundResult{"a": up(150)}, at)
	st, _ := e.State("a")
	require.Equal(t, StatusDegraded, st.Status)

	// Raw latency drops to 20ms but the EWMA recovers slowly; the status
	// stays Degraded until the EWMA is below the 80ms recover threshold.
	playRound(e, w, map[string]roundResult{"a": up(20)}, at) // ewma 111
	st, _ = e.State("a")
	assert.Equal(t, StatusDegraded, st.Status)

	playRound(e, w, map[string]roundResult{"a": up(20)}, at) // ewma 83.7
	st, _ = e.State("a")
	assert.Equal(t, StatusDegraded, st.Status)

	playRound(e, w, map[string]roundResult{"a": up(20)}, at) // ewma 64.6
	st, _ = e.State("a")
	assert.Equal(t, StatusOnline, st.Status)
}

func TestSelectionSettlesOnLowestScore(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	for i := 0; i < 5; i++ {
		playRound(e, w, map[string]roundResult{"a": up(20), "b": up(150)}, at)
	}

	sel := e.Selection()
	assert.Equal(t, "a", sel.ActiveEndpointID)

	// B is slow but succeeding, so it stays a candidate.
	st, _ := e.State("b")
	assert.Equal(t, StatusDegraded, st.Status)
	assert.True(t, st.Status.Candidate())
}

func TestSelectionHysteresisMarginTooSmall(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	// A (50ms) wins initially; B converges to 48ms, which is better but not
	// by the 10% margin, so the selection must never move.
	playRound(e, w, map[string]roundResult{"a": up(50), "b": up(100)}, at)
	playRound(e, w, map[string]roundResult{"a": up(50), "b": up(100)}, at)
	require.Equal(t, "a", e.Selection().ActiveEndpointID)

	for i := 0; i < 30; i++ {
		playRound(e, w, map[string]roundResult{"a": up(50), "b": up(48)}, at)
		assert.Equal(t, "a", e.Selection().ActiveEndpointID, "round %d", i)
	}
}

func TestSelectionHysteresisRequiresSustainedRounds(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	playRound(e, w, map[string]roundResult{"a": up(50), "b": up(100)}, at)
	playRound(e, w, map[string]roundResult{"a": up(50), "b": up(100)}, at)
	require.Equal(t, "a", e.Selection().ActiveEndpointID)

	// B improves to 20ms. Its EWMA needs a few rounds to cross the margin
	// (ewma: 76, 59.2, 47.4, 39.2 vs A's 50ms * 0.9 = 45).
	playRound(e, w, map[string]roundResult{"a": up(50), "b": up(20)}, at)
	playRound(e, w, map[string]roundResult{"a": up(50), "b": up(20)}, at)
	playRound(e, w, map[string]roundResult{"a": up(50), "b": up(20)}, at)
	assert.Equal(t, "a", e.Selection().ActiveEndpointID, "no qualifying round yet")

	// First qualifying round: still held back by the K=2 streak.
	playRound(e, w, map[string]roundResult{"a": up(50), "b": up(20)}, at)
	assert.Equal(t, "a", e.Selection().ActiveEndpointID, "one qualifying round is not enough")

	// Second consecutive qualifying round commits the switch.
	playRound(e, w, map[string]roundResult{"a": up(50), "b": up(20)}, at)
	assert.Equal(t, "b", e.Selection().ActiveEndpointID)
	assert.Equal(t, 0, e.Selection().RoundsSinceSwitch)
}

func TestSelectionTieBreakIsLexicographic(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	playRound(e, w, map[string]roundResult{"b": up(30), "a": up(30)}, at)
	playRound(e, w, map[string]roundResult{"b": up(30), "a": up(30)}, at)

	assert.Equal(t, "a", e.Selection().ActiveEndpointID)
}

func TestActiveOfflineSwitchesImmediately(t *testing.T) {
	// A tiny failure penalty keeps B outside the switch margin while A is
	// failing, so the only way off A is the Offline transition itself.
	cfg := DefaultEngineConfig()
	cfg.FailurePenaltyMS = 1
	e := NewEngine(cfg)
	w := NewWindows(60)
	at := time.Now()

	playRound(e, w, map[string]roundResult{"a": up(50), "b": up(52)}, at)
	playRound(e, w, map[string]roundResult{"a": up(50), "b": up(52)}, at)
	require.Equal(t, "a", e.Selection().ActiveEndpointID)

	// Two failures: A is still a candidate, so the selection holds.
	playRound(e, w, map[string]roundResult{"a": down(), "b": up(52)}, at)
	playRound(e, w, map[string]roundResult{"a": down(), "b": up(52)}, at)
	assert.Equal(t, "a", e.Selection().ActiveEndpointID)

	// Third failure: A goes Offline, is excluded from candidacy, and the
	// selection moves without any margin/streak requirement.
	playRound(e, w, map[string]roundResult{"a": down(), "b": up(52)}, at)
	assert.Equal(t, "b", e.Selection().ActiveEndpointID)
}

func TestAllOfflineSelectsNone(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	playRound(e, w, map[string]roundResult{"a": up(20)}, at)
	playRound(e, w, map[string]roundResult{"a": up(20)}, at)
	require.False(t, e.Selection().None())

	for i := 0; i < 3; i++ {
		playRound(e, w, map[string]roundResult{"a": down()}, at)
	}
	assert.True(t, e.Selection().None())

	st, _ := e.State("a")
	assert.True(t, math.IsInf(st.Score, 1), "offline endpoints are excluded from candidacy")
}

func TestNoEndpointsIsSteadyState(t *testing.T) {
	e, w := newTestEngine()

	e.Apply(nil, w, time.Now())
	assert.True(t, e.Selection().None())
}

func TestScorePenalizesFailureRatio(t *testing.T) {
	e, w := newTestEngine()
	at := time.Now()

	// Half of B's window failed; its score must carry the penalty even when
	// its EWMA beats A's.
	playRound(e, w, map[string]roundResult{"b": down()}, at)
	playRound(e, w, map[string]roundResult{"b": down()}, at)
	playRound(e, w, map[string]roundResult{"b": up(10)}, at)
	playRound(e, w, map[string]roundResult{"b": up(10)}, at)

	st, _ := e.State("b")
	require.Equal(t, StatusOnline, st.Status)
	assert.InDelta(t, 10+0.5*1000, st.Score, 1e-9)
}
