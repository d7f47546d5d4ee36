// Package monitor keeps a live, de-duplicated registry of attached keyboard
// devices and emits edge-triggered connect/disconnect notifications.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkanda/typerace/internal/domain/model"
	"github.com/mkanda/typerace/pkg/logger"
	"github.com/mkanda/typerace/pkg/metrics"
)

// Keyboard usage classification (HID usage tables: generic desktop / keyboard).
const (
	usagePageGenericDesktop = 0x01
	usageKeyboard           = 0x06
)

// Snapshotter is the platform primitive returning the current device list.
type Snapshotter interface {
	ListDevices(ctx context.Context) ([]model.Device, error)
}

// ConnectFunc is invoked once per newly observed device.
type ConnectFunc func(model.Device)

// DisconnectFunc is invoked once per device that left the snapshot.
type DisconnectFunc func(model.DeviceID)

// Monitor periodically diffs device snapshots against the previous tick.
// Registry entries are retained across disconnects so in-flight contestant
// bindings stay resolvable.
type Monitor struct {
	snap  Snapshotter
	log   logger.Logger
	clock func() time.Time

	onConnect    ConnectFunc
	onDisconnect DisconnectFunc

	mu        sync.RWMutex
	registry  map[model.DeviceID]model.Device
	lastPaths map[string]struct{}
	running   bool
	stopCh    chan struct{}

	tickBusy atomic.Bool
}

// Option applies a configuration option to the Monitor.
type Option func(*Monitor)

// WithOnConnect registers the connect callback.
func WithOnConnect(fn ConnectFunc) Option {
	return func(m *Monitor) { m.onConnect = fn }
}

// WithOnDisconnect registers the disconnect callback.
func WithOnDisconnect(fn DisconnectFunc) Option {
	return func(m *Monitor) { m.onDisconnect = fn }
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Monitor) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// New creates a Monitor over the given snapshot source.
func New(snap Snapshotter, opts ...Option) *Monitor {
	m := &Monitor{
		snap:      snap,
		clock:     time.Now,
		registry:  make(map[model.DeviceID]model.Device),
		lastPaths: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Get().Named("monitor")
	}
	return m
}

// Start begins periodic snapshotting. It fails with ErrAlreadyMonitoring while
// a previous Start is still active.
func (m *Monitor) Start(ctx context.Context, pollInterval time.Duration) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyMonitoring
	}
	m.running = true
	stopCh := make(chan struct{})
	m.stopCh = stopCh
	m.mu.Unlock()

	go m.loop(ctx, pollInterval, stopCh)
	return nil
}

func (m *Monitor) loop(ctx context.Context, pollInterval time.Duration, stopCh chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// Prime the registry before the first tick fires.
	m.refreshTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.refreshTick(ctx)
		}
	}
}

// refreshTick runs one refresh off the tick loop. Keeping the loop free to
// receive ticks is what makes the overlap check real: a tick that fires while
// a refresh is still running is skipped, not queued, so slow snapshot reads
// never build a backlog.
func (m *Monitor) refreshTick(ctx context.Context) {
	if !m.tickBusy.CompareAndSwap(false, true) {
		metrics.RecordTickSkipped()
		return
	}
	go func() {
		defer m.tickBusy.Store(false)
		m.Refresh(ctx)
	}()
}

// Stop halts the periodic tick and clears transient snapshot state. Idempotent
// and safe to call at any time, including from within a callback.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.stopCh)
	m.running = false
	m.lastPaths = make(map[string]struct{})
}

// Refresh takes one snapshot and applies the diff against the previous tick.
// A failed snapshot read is logged and skipped; the previous registry state is
// retained rather than treated as a mass disconnect.
func (m *Monitor) Refresh(ctx context.Context) {
	devices, err := m.snap.ListDevices(ctx)
	if err != nil {
		metrics.RecordSnapshotFailure()
		m.log.Warn(ctx, "device snapshot failed; keeping previous state", logger.Error(err))
		return
	}

	keyboards := filterKeyboards(devices)

	m.mu.Lock()

	current := make(map[string]struct{}, len(keyboards))
	var connected []model.Device
	for _, dev := range keyboards {
		// The same physical device can surface under several logical
		// sub-interfaces; the first path wins.
		if _, dup := current[dev.Path]; dup {
			continue
		}
		current[dev.Path] = struct{}{}

		if _, seen := m.lastPaths[dev.Path]; seen {
			continue
		}
		dev.ID = model.NewDeviceID(dev.Path)
		dev.State = model.StateConnected
		m.registry[dev.ID] = dev
		connected = append(connected, dev)
	}

	var disconnected []model.DeviceID
	for path := range m.lastPaths {
		if _, still := current[path]; still {
			continue
		}
		id := model.NewDeviceID(path)
		if entry, ok := m.registry[id]; ok {
			entry.State = model.StateDisconnected
			m.registry[id] = entry
		}
		disconnected = append(disconnected, id)
	}

	m.lastPaths = current
	live := 0
	for _, dev := range m.registry {
		if dev.State == model.StateConnected {
			live++
		}
	}
	m.mu.Unlock()

	metrics.UpdateDevicesConnected(live)

	// Callbacks run outside the lock so they may call back into the monitor.
	for _, dev := range connected {
		metrics.RecordDeviceConnect()
		m.log.Info(ctx, "keyboard connected",
			logger.String("path", dev.Path),
			logger.String("product", dev.Product),
		)
		if m.onConnect != nil {
			m.onConnect(dev)
		}
	}
	for _, id := range disconnected {
		metrics.RecordDeviceDisconnect()
		m.log.Info(ctx, "keyboard disconnected", logger.String("device", string(id)))
		if m.onDisconnect != nil {
			m.onDisconnect(id)
		}
	}
}

// Devices returns a snapshot copy of the registry.
func (m *Monitor) Devices() []model.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Device, 0, len(m.registry))
	for _, dev := range m.registry {
		out = append(out, dev)
	}
	return out
}

// Device looks up a registry entry by id. Disconnected devices remain
// resolvable.
func (m *Monitor) Device(id model.DeviceID) (model.Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dev, ok := m.registry[id]
	return dev, ok
}

// Running reports whether the periodic tick is active.
func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func filterKeyboards(devices []model.Device) []model.Device {
	out := devices[:0:0]
	for _, dev := range devices {
		if dev.UsagePage == usagePageGenericDesktop && dev.Usage == usageKeyboard {
			out = append(out, dev)
		}
	}
	return out
}
