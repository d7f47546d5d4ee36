package router

import (
	"fmt"
	"time"

	"github.com/mkanda/typerace/internal/domain/model"
	"github.com/mkanda/typerace/pkg/metrics"
)

// Default timing windows for the degraded attribution mode. Empirically tuned
// policy, replaceable via options.
const (
	defaultBurstWindow = 300 * time.Millisecond
	defaultIdleWindow  = 800 * time.Millisecond
)

// TimingBinder attributes un-tagged key events to synthetic device identities
// using inter-key timing, for platforms where true per-device report streams
// are unavailable. It is a best-effort degraded mode: events that fall within
// the burst window of the previous one are assumed to come from the same
// typist, while a gap beyond the idle window opens a new attribution slot.
// Every event it emits carries low confidence so downstream consumers can
// discount it in telemetry; the judgment engine is agnostic either way.
type TimingBinder struct {
	burstWindow time.Duration
	idleWindow  time.Duration

	lastAt   time.Time
	lastID   model.DeviceID
	nextSlot int
}

// BinderOption applies a configuration option to the TimingBinder.
type BinderOption func(*TimingBinder)

// WithWindows sets the burst and idle windows. Ignored unless burst < idle.
func WithWindows(burst, idle time.Duration) BinderOption {
	return func(b *TimingBinder) {
		if burst > 0 && idle > burst {
			b.burstWindow = burst
			b.idleWindow = idle
		}
	}
}

// NewTimingBinder creates a binder with configuration options applied.
func NewTimingBinder(opts ...BinderOption) *TimingBinder {
	b := &TimingBinder{
		burstWindow: defaultBurstWindow,
		idleWindow:  defaultIdleWindow,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind assigns a synthetic device identity to ev and marks it low confidence.
// Events arriving faster than the burst window stick to the current identity;
// a pause beyond the idle window rotates to a fresh one.
func (b *TimingBinder) Bind(ev model.KeyEvent) model.KeyEvent {
	gap := ev.At.Sub(b.lastAt)
	switch {
	case b.lastAt.IsZero() || gap > b.idleWindow:
		b.nextSlot++
		b.lastID = model.NewDeviceID(fmt.Sprintf("heuristic/%d", b.nextSlot))
	case gap <= b.burstWindow:
		// Same typist, keep the current identity.
	default:
		// Between the windows: ambiguous, keep the current identity but the
		// low confidence flag already tells consumers not to trust it much.
	}
	b.lastAt = ev.At

	ev.Device = b.lastID
	ev.Confidence = model.ConfidenceHeuristic
	metrics.RecordHeuristicEvent()
	return ev
}
