// Package app wires the device monitor, router, event queue and judgment
// engine into one runnable pipeline.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkanda/typerace/internal/adapters/mq/queue"
	"github.com/mkanda/typerace/internal/device/monitor"
	"github.com/mkanda/typerace/internal/device/router"
	"github.com/mkanda/typerace/internal/domain/model"
	"github.com/mkanda/typerace/internal/domain/scoring"
	"github.com/mkanda/typerace/internal/domain/types"
	"github.com/mkanda/typerace/internal/judge"
	"github.com/mkanda/typerace/pkg/logger"
)

// Default pipeline configuration constants.
const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultQueueSize      = 4096
	dispatcherStopTimeout = 5 * time.Second
)

// DeviceConnectedFunc observes device arrivals.
type DeviceConnectedFunc func(model.Device)

// DeviceDisconnectedFunc observes device departures.
type DeviceDisconnectedFunc func(model.DeviceID)

// Service owns the full key-press-to-standings pipeline.
type Service struct {
	mu sync.Mutex

	snapshotter monitor.Snapshotter
	opener      router.Opener

	monitor    *monitor.Monitor
	router     *router.Router
	queue      *queue.InMemoryQueue
	engine     *judge.Engine
	dispatcher *judge.Dispatcher
	binder     *router.TimingBinder

	pollInterval time.Duration
	queueSize    int
	scorer       scoring.Scorer

	connectSubs    []DeviceConnectedFunc
	disconnectSubs []DeviceDisconnectedFunc

	roundID string
	started bool
	log     logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSnapshotter sets the device snapshot source.
func WithSnapshotter(snap monitor.Snapshotter) Option {
	return func(s *Service) { s.snapshotter = snap }
}

// WithOpener sets the report stream opener.
func WithOpener(op router.Opener) Option {
	return func(s *Service) { s.opener = op }
}

// WithPollInterval sets the monitor tick interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithQueueSize bounds the routed event queue.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithScorer sets the scorer used for standings.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithHeuristicBinder enables the degraded timing-based device attribution for
// events injected without a hardware device identity.
func WithHeuristicBinder(burst, idle time.Duration) Option {
	return func(s *Service) {
		s.binder = router.NewTimingBinder(router.WithWindows(burst, idle))
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		pollInterval: defaultPollInterval,
		queueSize:    defaultQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("app")
	}
	return s
}

// OnDeviceConnected registers a device arrival observer. Must be called before
// Start.
func (s *Service) OnDeviceConnected(fn DeviceConnectedFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectSubs = append(s.connectSubs, fn)
}

// OnDeviceDisconnected registers a device departure observer.
func (s *Service) OnDeviceDisconnected(fn DeviceDisconnectedFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectSubs = append(s.disconnectSubs, fn)
}

// SubscribeProgress registers a per-keystroke progress observer.
func (s *Service) SubscribeProgress(fn judge.ProgressFunc) {
	s.ensureEngine()
	s.engine.SubscribeProgress(fn)
}

// SubscribeCompletion registers a completion observer.
func (s *Service) SubscribeCompletion(fn judge.CompletionFunc) {
	s.ensureEngine()
	s.engine.SubscribeCompletion(fn)
}

func (s *Service) ensureEngine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		var opts []judge.Option
		if s.scorer != nil {
			opts = append(opts, judge.WithScorer(s.scorer))
		}
		s.engine = judge.New(opts...)
	}
}

// Start brings the pipeline up: dispatcher first, then the router, then the
// monitor so that the first snapshot already has somewhere to send devices.
func (s *Service) Start(ctx context.Context) error {
	s.ensureEngine()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.dispatcher = judge.NewDispatcher(s.queue, s.engine)
	go s.dispatcher.Run(ctx)

	s.router = router.New(s.opener)
	s.router.Start(ctx, nil, s.handleEvent(ctx), s.handleStreamError(ctx))

	s.monitor = monitor.New(s.snapshotter,
		monitor.WithOnConnect(func(dev model.Device) {
			s.router.Listen(ctx, dev)
			for _, fn := range s.connectSubs {
				fn(dev)
			}
		}),
		monitor.WithOnDisconnect(func(id model.DeviceID) {
			s.router.CloseDevice(id)
			for _, fn := range s.disconnectSubs {
				fn(id)
			}
		}),
	)
	if err := s.monitor.Start(ctx, s.pollInterval); err != nil {
		return err
	}

	s.started = true
	s.log.Info(ctx, "pipeline started",
		logger.Duration("pollInterval", s.pollInterval),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

func (s *Service) handleEvent(ctx context.Context) router.EventFunc {
	return func(ev model.KeyEvent) {
		if !s.queue.Enqueue(ctx, ev) {
			s.log.Warn(ctx, "key event dropped",
				logger.String("device", string(ev.Device)),
			)
		}
	}
}

func (s *Service) handleStreamError(ctx context.Context) router.ErrorFunc {
	return func(id model.DeviceID, err error) {
		s.log.Warn(ctx, "device stream error",
			logger.String("device", string(id)),
			logger.Error(err),
		)
	}
}

// InjectEvent feeds one event into the pipeline from outside the hardware
// path, e.g. the degraded mode where device identity is unknown. Events
// without a device id are attributed by the heuristic binder when enabled.
func (s *Service) InjectEvent(ctx context.Context, ev model.KeyEvent) bool {
	s.mu.Lock()
	binder := s.binder
	q := s.queue
	s.mu.Unlock()

	if q == nil {
		return false
	}
	if ev.Device == "" && binder != nil {
		ev = binder.Bind(ev)
	}
	return q.Enqueue(ctx, ev)
}

// Stop shuts the pipeline down: producers first, then the queue so the
// dispatcher drains what is already in flight. Progress state is retained so
// a paused session can resume.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.monitor.Stop()
	s.router.Stop()
	_ = s.queue.Close()

	stopCtx, cancel := context.WithTimeout(ctx, dispatcherStopTimeout)
	defer cancel()
	if err := s.dispatcher.Shutdown(stopCtx); err != nil {
		s.log.Warn(ctx, "dispatcher stop timed out", logger.Error(err))
	}

	s.started = false
	s.log.Info(ctx, "pipeline stopped")
}

// AssignRound installs the next round's assignment and returns its id.
// Progress for the named phrases starts fresh.
func (s *Service) AssignRound(phrases map[string]string, bindings map[model.DeviceID]string, teams map[string][]string) string {
	s.ensureEngine()
	s.engine.AssignRound(phrases, bindings, teams)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.roundID = uuid.NewString()
	s.log.Info(context.Background(), "round assigned",
		logger.String("round", s.roundID),
		logger.Int("contestants", len(phrases)),
		logger.Int("teams", len(teams)),
	)
	return s.roundID
}

// Devices returns a snapshot of the device registry.
func (s *Service) Devices() []model.Device {
	s.mu.Lock()
	m := s.monitor
	s.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Devices()
}

// Rankings returns current standings for a phrase.
func (s *Service) Rankings(phrase string) []types.Standing {
	s.ensureEngine()
	return s.engine.Rankings(phrase)
}

// Winner returns the first contestant to complete the phrase.
func (s *Service) Winner(phrase string) (string, bool) {
	s.ensureEngine()
	return s.engine.Winner(phrase)
}

// TeamResult returns the rollup for one team on a phrase.
func (s *Service) TeamResult(phrase, team string) (types.TeamResult, bool) {
	s.ensureEngine()
	return s.engine.TeamResult(phrase, team)
}

// WinningTeam returns the fastest fully complete team for a phrase.
func (s *Service) WinningTeam(phrase string) (types.TeamResult, bool) {
	s.ensureEngine()
	return s.engine.WinningTeam(phrase)
}

// PlayerStats returns one contestant's live statistics for a phrase.
func (s *Service) PlayerStats(phrase, contestant string) (types.PlayerStats, bool) {
	s.ensureEngine()
	return s.engine.PlayerStats(phrase, contestant)
}

// GetStats returns pipeline statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"started": s.started,
		"round":   s.roundID,
	}
	if s.queue != nil {
		stats["queueLength"] = s.queue.Len()
	}
	if s.monitor != nil {
		stats["devices"] = len(s.monitor.Devices())
	}
	return stats
}
