package monitor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mkanda/typerace/internal/device/monitor"
	"github.com/mkanda/typerace/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeSnapshotter returns scripted snapshots, one per call.
type fakeSnapshotter struct {
	mu    sync.Mutex
	snaps [][]model.Device
	errs  []error
	calls int
}

func (f *fakeSnapshotter) ListDevices(_ context.Context) ([]model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.snaps) {
		return f.snaps[i], nil
	}
	if len(f.snaps) == 0 {
		return nil, nil
	}
	return f.snaps[len(f.snaps)-1], nil
}

func keyboard(path string) model.Device {
	return model.Device{Path: path, Product: "Test Keyboard", UsagePage: 0x01, Usage: 0x06}
}

func mouse(path string) model.Device {
	return model.Device{Path: path, Product: "Test Mouse", UsagePage: 0x01, Usage: 0x02}
}

func TestMonitor_Refresh(t *testing.T) {
	ctx := context.Background()

	Convey("Given a monitor over a scripted snapshot source", t, func() {
		var connects []model.Device
		var disconnects []model.DeviceID

		newMonitor := func(snap *fakeSnapshotter) *monitor.Monitor {
			connects = nil
			disconnects = nil
			return monitor.New(snap,
				monitor.WithOnConnect(func(dev model.Device) { connects = append(connects, dev) }),
				monitor.WithOnDisconnect(func(id model.DeviceID) { disconnects = append(disconnects, id) }),
			)
		}

		Convey("When a new keyboard appears in a snapshot", func() {
			m := newMonitor(&fakeSnapshotter{snaps: [][]model.Device{
				{keyboard("/dev/hidraw0")},
			}})
			m.Refresh(ctx)

			Convey("Then exactly one connect fires and the registry holds it", func() {
				So(connects, ShouldHaveLength, 1)
				So(connects[0].ID, ShouldEqual, model.NewDeviceID("/dev/hidraw0"))
				So(connects[0].State, ShouldEqual, model.StateConnected)

				dev, found := m.Device(model.NewDeviceID("/dev/hidraw0"))
				So(found, ShouldBeTrue)
				So(dev.State, ShouldEqual, model.StateConnected)
			})

			Convey("And an unchanged snapshot fires no duplicate events", func() {
				m.Refresh(ctx)
				So(connects, ShouldHaveLength, 1)
				So(disconnects, ShouldBeEmpty)
			})

		})

		Convey("When a device disappears from the snapshot", func() {
			m := newMonitor(&fakeSnapshotter{snaps: [][]model.Device{
				{keyboard("/dev/hidraw0")},
				{},
			}})
			m.Refresh(ctx)
			m.Refresh(ctx)

			Convey("Then the registry entry survives marked disconnected", func() {
				So(disconnects, ShouldHaveLength, 1)
				So(disconnects[0], ShouldEqual, model.NewDeviceID("/dev/hidraw0"))

				dev, found := m.Device(model.NewDeviceID("/dev/hidraw0"))
				So(found, ShouldBeTrue)
				So(dev.State, ShouldEqual, model.StateDisconnected)
			})
		})

		Convey("When the snapshot contains non-keyboard devices", func() {
			m := newMonitor(&fakeSnapshotter{snaps: [][]model.Device{
				{keyboard("/dev/hidraw0"), mouse("/dev/hidraw1")},
			}})
			m.Refresh(ctx)

			Convey("Then only keyboards are tracked", func() {
				So(connects, ShouldHaveLength, 1)
				So(m.Devices(), ShouldHaveLength, 1)
			})
		})

		Convey("When the same device surfaces under two sub-interface paths", func() {
			dup := keyboard("/dev/hidraw0")
			m := newMonitor(&fakeSnapshotter{snaps: [][]model.Device{
				{dup, dup},
			}})
			m.Refresh(ctx)

			Convey("Then only one connect fires", func() {
				So(connects, ShouldHaveLength, 1)
			})
		})

		Convey("When one snapshot read fails mid-session", func() {
			m := newMonitor(&fakeSnapshotter{
				snaps: [][]model.Device{
					{keyboard("/dev/hidraw0")},
					nil, // consumed by the failing call
					{keyboard("/dev/hidraw0")},
				},
				errs: []error{nil, errors.New("usb stack hiccup"), nil},
			})
			m.Refresh(ctx)
			m.Refresh(ctx) // fails
			m.Refresh(ctx)

			Convey("Then no false disconnect storm occurs", func() {
				So(connects, ShouldHaveLength, 1)
				So(disconnects, ShouldBeEmpty)

				dev, _ := m.Device(model.NewDeviceID("/dev/hidraw0"))
				So(dev.State, ShouldEqual, model.StateConnected)
			})
		})
	})
}

// slowSnapshotter stalls every read and records when each one ran.
type slowSnapshotter struct {
	delay time.Duration

	mu     sync.Mutex
	starts []time.Time
	ends   []time.Time
}

func (s *slowSnapshotter) ListDevices(_ context.Context) ([]model.Device, error) {
	s.mu.Lock()
	s.starts = append(s.starts, time.Now())
	s.mu.Unlock()

	time.Sleep(s.delay)

	s.mu.Lock()
	s.ends = append(s.ends, time.Now())
	s.mu.Unlock()
	return nil, nil
}

func (s *slowSnapshotter) times() (starts, ends []time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.starts...), append([]time.Time(nil), s.ends...)
}

func TestMonitor_TickOverlap(t *testing.T) {
	ctx := context.Background()

	Convey("Given snapshot reads slower than the poll interval", t, func() {
		snap := &slowSnapshotter{delay: 250 * time.Millisecond}
		m := monitor.New(snap)

		So(m.Start(ctx, 100*time.Millisecond), ShouldBeNil)
		time.Sleep(700 * time.Millisecond)
		m.Stop()
		// Let an in-flight refresh finish before reading the record.
		time.Sleep(300 * time.Millisecond)

		Convey("Then overlapping ticks are skipped instead of queued", func() {
			starts, ends := snap.times()
			So(len(starts), ShouldBeGreaterThanOrEqualTo, 2)
			// Roughly one refresh per 300ms; a queued tick would double that.
			So(len(starts), ShouldBeLessThanOrEqualTo, 4)

			// A buffered tick would start the next refresh immediately after
			// the previous one returns; a skipped tick leaves a gap until the
			// next tick actually fires.
			for i := 1; i < len(starts) && i <= len(ends); i++ {
				So(starts[i].Sub(ends[i-1]), ShouldBeGreaterThan, 20*time.Millisecond)
			}
		})
	})
}

func TestMonitor_Lifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a monitor", t, func() {
		m := monitor.New(&fakeSnapshotter{})

		Convey("When Start is called twice", func() {
			So(m.Start(ctx, 50*time.Millisecond), ShouldBeNil)

			Convey("Then the second call reports it is already monitoring", func() {
				So(m.Start(ctx, 50*time.Millisecond), ShouldEqual, monitor.ErrAlreadyMonitoring)
				m.Stop()
			})
		})

		Convey("When Stop is called repeatedly", func() {
			So(m.Start(ctx, 50*time.Millisecond), ShouldBeNil)
			m.Stop()

			Convey("Then it is idempotent and allows a fresh Start", func() {
				m.Stop()
				So(m.Running(), ShouldBeFalse)
				So(m.Start(ctx, 50*time.Millisecond), ShouldBeNil)
				m.Stop()
			})
		})

		Convey("When Stop is called without Start", func() {
			Convey("Then nothing happens", func() {
				m.Stop()
				So(m.Running(), ShouldBeFalse)
			})
		})
	})
}
