package comms

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CodedInternet/gofoc/onboard"
)

var testUpgrader = websocket.Upgrader{}

func dial(t *testing.T, handler func(*websocket.Conn)) *websocket.Conn {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServeCommands(t *testing.T) {
	Convey("Given a command socket", t, func() {
		c, sp, _, _ := newTestConductor()
		conn := dial(t, func(conn *websocket.Conn) {
			c.ServeCommands(conn, onboard.SourceSocket)
		})
		conn.SetReadDeadline(time.Now().Add(time.Second))

		Convey("each command gets a reply", func() {
			So(conn.WriteJSON(Cmd{Cmd: "line", Line: "0.25"}), ShouldBeNil)

			var reply Reply
			So(conn.ReadJSON(&reply), ShouldBeNil)
			So(reply.Error, ShouldBeEmpty)
			So(reply.Lines, ShouldResemble, []string{"[SERIAL] motor_target set to 0.2500 rad", "[SERIAL] target=0.2500 rad, out_deg=2.39°"})
			So(sp.Value(), ShouldEqual, 0.25)
		})

		Convey("invalid json is answered and the socket stays open", func() {
			So(conn.WriteMessage(websocket.TextMessage, []byte("{nope")), ShouldBeNil)

			var reply Reply
			So(conn.ReadJSON(&reply), ShouldBeNil)
			So(reply.Error, ShouldEqual, "invalid json")

			So(conn.WriteJSON(Cmd{Cmd: "line", Line: "run"}), ShouldBeNil)
			So(conn.ReadJSON(&reply), ShouldBeNil)
			So(reply.Error, ShouldBeEmpty)
		})
	})
}

func TestServeTelemetry(t *testing.T) {
	Convey("a telemetry socket receives published snapshots", t, func() {
		c, _, _, _ := newTestConductor()
		registered := make(chan struct{})
		conn := dial(t, func(conn *websocket.Conn) {
			close(registered)
			c.ServeTelemetry(conn)
		})
		<-registered

		stop := make(chan struct{})
		defer close(stop)
		go func() {
			// keep publishing until the sink is registered and fed
			tick := time.NewTicker(5 * time.Millisecond)
			defer tick.Stop()
			for {
				select {
				case <-stop:
					return
				case <-tick.C:
					c.Publish(onboard.Snapshot{Cycle: 3})
				}
			}
		}()
		go c.UpdateClients(contextUntil(stop))

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var payload StatePayload
		So(conn.ReadJSON(&payload), ShouldBeNil)
		So(payload.Type, ShouldEqual, "telemetry")
		So(payload.Cycle, ShouldEqual, 3)
	})
}
