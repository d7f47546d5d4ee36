package app_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mkanda/typerace/internal/app"
	"github.com/mkanda/typerace/internal/domain/model"
	"github.com/mkanda/typerace/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeEnumerator plays both snapshot source and stream opener, backed by
// scripted reports per device path.
type fakeEnumerator struct {
	mu      sync.Mutex
	devices []model.Device
	reports map[string][][]byte
}

func (f *fakeEnumerator) ListDevices(_ context.Context) ([]model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Device(nil), f.devices...), nil
}

func (f *fakeEnumerator) OpenStream(_ context.Context, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &replayStream{reports: f.reports[path]}, nil
}

// replayStream hands out one report per Read, then blocks until closed so the
// reader goroutine stays parked like it would on a real device.
type replayStream struct {
	mu      sync.Mutex
	reports [][]byte
	done    chan struct{}
}

func (s *replayStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.done == nil {
		s.done = make(chan struct{})
	}
	if len(s.reports) > 0 {
		r := s.reports[0]
		s.reports = s.reports[1:]
		s.mu.Unlock()
		return copy(p, r), nil
	}
	done := s.done
	s.mu.Unlock()
	<-done
	return 0, io.EOF
}

func (s *replayStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		s.done = make(chan struct{})
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

func report(code byte) []byte {
	r := make([]byte, 8)
	r[2] = code
	return r
}

// "neko" in boot-protocol scan codes, with releases between the presses.
func typed(codes ...byte) [][]byte {
	var out [][]byte
	for _, c := range codes {
		out = append(out, report(c), report(0x00))
	}
	return out
}

func keyboard(path string) model.Device {
	return model.Device{ID: model.NewDeviceID(path), Path: path, Product: "Test Keyboard", UsagePage: 0x01, Usage: 0x06}
}

func TestService_Pipeline(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running pipeline with one keyboard typing neko", t, func() {
		enum := &fakeEnumerator{
			devices: []model.Device{keyboard("/dev/hidraw0")},
			reports: map[string][][]byte{
				"/dev/hidraw0": typed(0x11, 0x08, 0x0e, 0x12), // n e k o
			},
		}

		svc := app.New(
			app.WithSnapshotter(enum),
			app.WithOpener(enum),
			app.WithPollInterval(10*time.Millisecond),
			app.WithQueueSize(64),
		)

		connected := make(chan model.Device, 1)
		svc.OnDeviceConnected(func(dev model.Device) { connected <- dev })

		completions := make(chan types.PlayerStats, 1)
		svc.SubscribeCompletion(func(stats types.PlayerStats) { completions <- stats })

		svc.AssignRound(
			map[string]string{"alice": "neko"},
			map[model.DeviceID]string{model.NewDeviceID("/dev/hidraw0"): "alice"},
			map[string][]string{"solo": {"alice"}},
		)

		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then the device connects and the phrase completes end to end", func() {
			select {
			case dev := <-connected:
				So(dev.Path, ShouldEqual, "/dev/hidraw0")
			case <-time.After(2 * time.Second):
				So("connect timeout", ShouldBeEmpty)
			}

			select {
			case stats := <-completions:
				So(stats.ContestantID, ShouldEqual, "alice")
				So(stats.Buffer, ShouldEqual, "neko")
				So(stats.Winner, ShouldBeTrue)
			case <-time.After(2 * time.Second):
				So("completion timeout", ShouldBeEmpty)
			}

			winner, found := svc.Winner("neko")
			So(found, ShouldBeTrue)
			So(winner, ShouldEqual, "alice")

			standings := svc.Rankings("neko")
			So(standings, ShouldHaveLength, 1)
			So(standings[0].Completed, ShouldBeTrue)

			result, ok := svc.TeamResult("neko", "solo")
			So(ok, ShouldBeTrue)
			So(result.Complete, ShouldBeTrue)

			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["devices"], ShouldEqual, 1)
		})

		Convey("And stopping twice is safe", func() {
			svc.Stop()
			svc.Stop()
			So(svc.GetStats()["started"], ShouldBeFalse)
		})
	})
}

func TestService_InjectEvent(t *testing.T) {
	ctx := context.Background()
	t0 := time.Unix(100, 0)

	Convey("Given a pipeline in degraded attribution mode", t, func() {
		enum := &fakeEnumerator{}
		svc := app.New(
			app.WithSnapshotter(enum),
			app.WithOpener(enum),
			app.WithPollInterval(10*time.Millisecond),
			app.WithHeuristicBinder(300*time.Millisecond, 800*time.Millisecond),
		)

		completions := make(chan types.PlayerStats, 1)
		svc.SubscribeCompletion(func(stats types.PlayerStats) { completions <- stats })

		// First injected event opens attribution slot 1.
		svc.AssignRound(
			map[string]string{"solo": "ab"},
			map[model.DeviceID]string{model.NewDeviceID("heuristic/1"): "solo"},
			nil,
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When untagged events are injected within the burst window", func() {
			press := func(r rune, at time.Time) model.KeyEvent {
				return model.KeyEvent{Rune: r, Kind: model.KindRune, At: at}
			}
			So(svc.InjectEvent(ctx, press('a', t0)), ShouldBeTrue)
			So(svc.InjectEvent(ctx, press('b', t0.Add(100*time.Millisecond))), ShouldBeTrue)

			Convey("Then they attribute to one synthetic device and complete the phrase", func() {
				select {
				case stats := <-completions:
					So(stats.ContestantID, ShouldEqual, "solo")
					So(stats.Completed, ShouldBeTrue)
				case <-time.After(2 * time.Second):
					So("completion timeout", ShouldBeEmpty)
				}
			})
		})

		Convey("When injecting before the pipeline starts", func() {
			fresh := app.New(app.WithSnapshotter(enum), app.WithOpener(enum))

			Convey("Then the event is rejected", func() {
				So(fresh.InjectEvent(ctx, model.KeyEvent{Rune: 'a', Kind: model.KindRune}), ShouldBeFalse)
			})
		})
	})
}
