package ws_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkanda/typerace/internal/adapters/ws"
	. "github.com/smartystreets/goconvey/convey"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestHub(t *testing.T) {
	Convey("Given a hub with connected spectators", t, func() {
		hub := ws.NewHub(nil)
		server := httptest.NewServer(hub)
		defer server.Close()
		defer hub.Close()

		first := dial(t, server)
		defer first.Close()
		second := dial(t, server)
		defer second.Close()

		// Give the hub a beat to register both pumps.
		time.Sleep(50 * time.Millisecond)

		Convey("When a message is broadcast", func() {
			hub.Broadcast("progress", map[string]string{"contestant": "alice"})

			Convey("Then every spectator receives the envelope", func() {
				for _, conn := range []*websocket.Conn{first, second} {
					_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
					_, data, err := conn.ReadMessage()
					So(err, ShouldBeNil)

					var msg ws.Message
					So(json.Unmarshal(data, &msg), ShouldBeNil)
					So(msg.Type, ShouldEqual, "progress")

					payload, ok := msg.Payload.(map[string]interface{})
					So(ok, ShouldBeTrue)
					So(payload["contestant"], ShouldEqual, "alice")
				}
			})
		})

		Convey("When a spectator disconnects", func() {
			first.Close()
			time.Sleep(50 * time.Millisecond)

			Convey("Then broadcasting still reaches the remaining client", func() {
				hub.Broadcast("completion", map[string]string{"contestant": "bob"})

				_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, data, err := second.ReadMessage()
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, "bob")
			})
		})

		Convey("When a payload cannot be marshalled", func() {
			Convey("Then the broadcast is skipped without panicking", func() {
				So(func() { hub.Broadcast("bad", func() {}) }, ShouldNotPanic)
			})
		})
	})
}
