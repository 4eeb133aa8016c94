package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"gametunnel/internal/config"
	"gametunnel/internal/probe"
	"gametunnel/internal/storage"
	"gametunnel/internal/storage/models"
	gterrors "gametunnel/pkg/errors"
)

// EndpointView pairs an endpoint with its state and sample window as of one
// completed round.
type EndpointView struct {
	Endpoint *models.Endpoint
	State    EndpointState
	Window   []Sample
}

// View is a round-consistent copy of all monitor state, ordered by endpoint
// ID. It never mixes samples from two different rounds for one endpoint.
type View struct {
	At        time.Time
	Endpoints []EndpointView
	Selection Selection
}

// Monitor owns the probe loop: it schedules rounds, feeds samples into the
// store, lets the engine score and select, and persists results best-effort.
type Monitor struct {
	registry *config.Registry
	prober   *probe.Prober
	windows  *Windows
	engine   *Engine
	store    storage.Storage
	logger   *zap.Logger

	probeInterval time.Duration

	// mu serializes round application against view reads. The engine and
	// windows are only written while holding it.
	mu        sync.RWMutex
	scheduler gocron.Scheduler
	running   bool
	cancel    context.CancelFunc
}

// New creates a monitor for the registered endpoints. store may be nil to
// disable persistence.
func New(registry *config.Registry, cfg config.MonitorConfig, store storage.Storage, logger *zap.Logger) (*Monitor, error) {
	strategy, err := probe.NewStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Monitor{
		registry: registry,
		prober: probe.NewProber(probe.ProberConfig{
			Workers:  cfg.Workers,
			Timeout:  cfg.ProbeTimeout.Duration(),
			Strategy: strategy,
		}),
		windows: NewWindows(cfg.WindowSize),
		engine: NewEngine(EngineConfig{
			Alpha:               cfg.EWMAAlpha,
			DegradedThresholdMS: cfg.DegradedThresholdMS,
			RecoverThresholdMS:  cfg.RecoverThresholdMS,
			FailurePenaltyMS:    cfg.FailurePenaltyMS,
			SuccessesUp:         cfg.SuccessesUp,
			FailuresDown:        cfg.FailuresDown,
			SwitchMargin:        cfg.SwitchMargin,
			SwitchRounds:        cfg.SwitchRounds,
		}),
		store:         store,
		logger:        logger.Named("monitor"),
		probeInterval: cfg.ProbeInterval.Duration(),
	}, nil
}

// Start launches the periodic probe rounds and the hourly sample prune job.
// The first round runs immediately in the background.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return gterrors.ErrMonitorAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		cancel()
		return err
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(m.probeInterval),
		gocron.NewTask(func() { m.RunRound(runCtx) }),
	); err != nil {
		cancel()
		return err
	}

	if m.store != nil {
		if _, err := scheduler.NewJob(
			gocron.DurationJob(time.Hour),
			gocron.NewTask(func() { m.pruneStored(runCtx) }),
		); err != nil {
			cancel()
			return err
		}
	}

	scheduler.Start()
	m.scheduler = scheduler
	m.cancel = cancel
	m.running = true

	m.logger.Info("monitor started",
		zap.Int("endpoints", m.registry.Len()),
		zap.Duration("probe_interval", m.probeInterval),
		zap.String("strategy", m.prober.StrategyName()))

	// Initial round so the first snapshot isn't empty for a full interval.
	go m.RunRound(runCtx)

	return nil
}

// Stop cancels in-flight probes and shuts the scheduler down. No round is
// applied once the cancellation is visible. The scheduler shutdown happens
// outside the mutex: a round blocked on it must be able to acquire the lock,
// observe the cancellation and discard itself.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return gterrors.ErrMonitorNotRunning
	}
	scheduler := m.scheduler
	m.scheduler = nil
	m.running = false
	m.cancel()
	m.mu.Unlock()

	err := scheduler.Shutdown()
	m.logger.Info("monitor stopped")
	return err
}

// RunRound executes one synchronized probe round: probe every endpoint,
// wait for the round to resolve, then apply samples and scoring atomically.
func (m *Monitor) RunRound(ctx context.Context) {
	endpoints := m.registry.All()
	if len(endpoints) == 0 {
		return
	}

	outcomes := m.prober.Run(ctx, endpoints)

	now := time.Now()

	m.mu.Lock()
	// Shutdown discards the round: the check runs under the mutex so a round
	// that was blocked on the lock while Stop cancelled still sees it.
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	before := m.engine.Selection()
	for _, o := range outcomes {
		m.windows.Record(o.Endpoint.ID, Sample{
			Timestamp: o.At,
			LatencyMS: o.LatencyMS,
			Succeeded: o.Succeeded(),
		})
	}
	m.engine.Apply(outcomes, m.windows, now)
	after := m.engine.Selection()
	m.mu.Unlock()

	if before.ActiveEndpointID != after.ActiveEndpointID {
		m.logger.Info("selection changed",
			zap.String("from", before.ActiveEndpointID),
			zap.String("to", after.ActiveEndpointID))
		if m.store != nil {
			if err := m.store.SetSetting(ctx, "last_selected_endpoint", after.ActiveEndpointID); err != nil {
				m.logger.Warn("failed to persist selection", zap.Error(err))
			}
		}
	}

	m.persistRound(ctx, outcomes)
}

// persistRound writes the round's samples through to storage. Best-effort: a
// storage failure is logged and never affects the probe loop.
func (m *Monitor) persistRound(ctx context.Context, outcomes []probe.Outcome) {
	if m.store == nil {
		return
	}
	strategy := m.prober.StrategyName()
	for i := range outcomes {
		o := &outcomes[i]
		record := &models.SampleRecord{
			EndpointID: o.Endpoint.ID,
			Success:    o.Succeeded(),
			Strategy:   strategy,
			ProbedAt:   o.At,
		}
		if o.Succeeded() {
			latency := o.LatencyMS
			record.LatencyMS = &latency
		} else {
			record.ErrorMessage = o.Err.Error()
		}
		if err := m.store.RecordSample(ctx, record); err != nil {
			m.logger.Warn("failed to persist sample",
				zap.String("endpoint", o.Endpoint.ID), zap.Error(err))
		}
	}
}

func (m *Monitor) pruneStored(ctx context.Context) {
	// Keep ten windows of history per endpoint on disk.
	keep := m.windows.Capacity() * 10
	if err := m.store.PruneSamples(ctx, keep); err != nil {
		m.logger.Warn("failed to prune samples", zap.Error(err))
	}
}

// View returns a round-consistent copy of all endpoint states, windows and
// the current selection.
func (m *Monitor) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()

	endpoints := m.registry.All()
	views := make([]EndpointView, 0, len(endpoints))
	for _, ep := range endpoints {
		state, _ := m.engine.State(ep.ID)
		views = append(views, EndpointView{
			Endpoint: ep,
			State:    state,
			Window:   m.windows.Window(ep.ID),
		})
	}

	return View{
		At:        time.Now(),
		Endpoints: views,
		Selection: m.engine.Selection(),
	}
}

// ActiveEndpointID returns the currently selected endpoint ID, empty when no
// endpoint is eligible.
func (m *Monitor) ActiveEndpointID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engine.Selection().ActiveEndpointID
}

// Registry returns the endpoint registry the monitor probes.
func (m *Monitor) Registry() *config.Registry { return m.registry }
