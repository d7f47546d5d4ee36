// Package router opens raw report streams for registered devices and decodes
// them into device-tagged key events.
package router

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mkanda/typerace/internal/domain/model"
	"github.com/mkanda/typerace/pkg/logger"
	"github.com/mkanda/typerace/pkg/metrics"
)

// Boot-protocol keyboard report layout:
// byte 0 modifiers, byte 1 reserved, bytes 2..7 active key slots.
const (
	reportSize      = 8
	firstKeySlot    = 2
	restingScanCode = 0x00
)

// Opener opens the raw report stream of one device.
type Opener interface {
	OpenStream(ctx context.Context, path string) (io.ReadCloser, error)
}

// EventFunc receives decoded events synchronously, in per-device arrival order.
type EventFunc func(model.KeyEvent)

// ErrorFunc receives per-device stream failures. A failing device never stops
// listening on the others.
type ErrorFunc func(model.DeviceID, error)

// Router owns one reader goroutine per listened device.
type Router struct {
	opener Opener
	log    logger.Logger
	clock  func() time.Time

	mu      sync.Mutex
	streams map[model.DeviceID]io.ReadCloser
	stopped bool

	onEvent EventFunc
	onError ErrorFunc
}

// Option applies a configuration option to the Router.
type Option func(*Router)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides the capture timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(r *Router) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// New creates a Router over the given stream opener.
func New(opener Opener, opts ...Option) *Router {
	r := &Router{
		opener:  opener,
		clock:   time.Now,
		streams: make(map[model.DeviceID]io.ReadCloser),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("router")
	}
	return r
}

// Start opens one stream per device. Open failures surface through onError
// scoped to the failing device; the remaining devices keep listening.
func (r *Router) Start(ctx context.Context, devices []model.Device, onEvent EventFunc, onError ErrorFunc) {
	r.mu.Lock()
	r.stopped = false
	r.onEvent = onEvent
	r.onError = onError
	r.mu.Unlock()

	for _, dev := range devices {
		r.Listen(ctx, dev)
	}
}

// Listen opens the report stream for a single device and starts decoding it.
// Used by Start and again whenever the monitor reports a new connection.
func (r *Router) Listen(ctx context.Context, dev model.Device) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	if _, open := r.streams[dev.ID]; open {
		r.mu.Unlock()
		return
	}
	onEvent, onError := r.onEvent, r.onError
	r.mu.Unlock()

	stream, err := r.opener.OpenStream(ctx, dev.Path)
	if err != nil {
		metrics.RecordStreamError(string(dev.ID))
		r.log.Warn(ctx, "opening report stream failed",
			logger.String("device", string(dev.ID)),
			logger.Error(err),
		)
		if onError != nil {
			onError(dev.ID, err)
		}
		return
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		_ = stream.Close()
		return
	}
	r.streams[dev.ID] = stream
	r.mu.Unlock()

	go r.readLoop(ctx, dev.ID, stream, onEvent, onError)
}

func (r *Router) readLoop(ctx context.Context, id model.DeviceID, stream io.ReadCloser, onEvent EventFunc, onError ErrorFunc) {
	defer r.drop(id)

	// Reads deliver one report at a time; oversized buffer tolerates devices
	// reporting more than the boot-protocol minimum.
	buf := make([]byte, 64)
	for {
		n, err := stream.Read(buf)
		if err != nil {
			if r.closed(id) || errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return
			}
			metrics.RecordStreamError(string(id))
			r.log.Warn(ctx, "report stream read failed",
				logger.String("device", string(id)),
				logger.Error(err),
			)
			if onError != nil {
				onError(id, err)
			}
			return
		}
		if n < reportSize {
			metrics.RecordReportDiscarded()
			continue
		}

		// A report whose primary key slot rests at null is a key release.
		code := buf[firstKeySlot]
		if code == restingScanCode {
			metrics.RecordReportDiscarded()
			continue
		}

		// Only the first active key slot is translated; chords are out of
		// scope for typing input.
		kind, char := decodeScanCode(code)
		ev := model.KeyEvent{
			Device:     id,
			Rune:       char,
			Kind:       kind,
			ScanCode:   code,
			Confidence: model.ConfidenceHardware,
			At:         r.clock(),
		}
		metrics.RecordEventRouted()
		if onEvent != nil {
			onEvent(ev)
		}
	}
}

// Stop closes all open streams. Tolerant of streams the platform already
// closed on disconnect, and safe to call from within an event callback: the
// reader goroutines exit on their next read instead of being joined here.
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, stream := range r.streams {
		_ = stream.Close()
		delete(r.streams, id)
	}
}

// CloseDevice shuts the stream of a single device, e.g. after a disconnect.
func (r *Router) CloseDevice(id model.DeviceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stream, ok := r.streams[id]; ok {
		_ = stream.Close()
		delete(r.streams, id)
	}
}

func (r *Router) drop(id model.DeviceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stream, ok := r.streams[id]; ok {
		_ = stream.Close()
		delete(r.streams, id)
	}
}

func (r *Router) closed(id model.DeviceID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return true
	}
	_, open := r.streams[id]
	return !open
}
