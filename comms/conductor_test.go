package comms

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/CodedInternet/gofoc/onboard"
)

func newTestConductor() (*Conductor, *onboard.Setpoint, *onboard.ModeState, *onboard.Inbox) {
	sp := new(onboard.Setpoint)
	mode := new(onboard.ModeState)
	inbox := new(onboard.Inbox)
	interp := onboard.NewInterpreter(nil, sp, mode, onboard.GearRatio(6), onboard.InterpreterOptions{LineLimit: 64})
	return NewConductor(interp, inbox), sp, mode, inbox
}

func TestProcessCommand(t *testing.T) {
	Convey("Given a conductor in front of an interpreter", t, func() {
		c, sp, mode, inbox := newTestConductor()

		Convey("set_out_deg goes through the inbox", func() {
			reply, err := c.ProcessCommand(onboard.SourceSocket, Cmd{Cmd: "set_out_deg", Value: 45})
			So(err, ShouldBeNil)
			So(reply.Error, ShouldBeEmpty)
			So(reply.Lines, ShouldHaveLength, 1)

			v, ok := inbox.Take()
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 45)
			So(sp.Value(), ShouldEqual, 0)
		})

		Convey("line commands are dispatched with their output returned", func() {
			reply, err := c.ProcessCommand(onboard.SourceHTTP, Cmd{Cmd: "line", Line: "mode=run"})
			So(err, ShouldBeNil)
			So(mode.Mode(), ShouldEqual, onboard.RUN)
			So(reply.Lines[0], ShouldEqual, "[SERIAL] Mode -> RUN")

			_, err = c.ProcessCommand(onboard.SourceHTTP, Cmd{Cmd: "line", Line: "1.5"})
			So(err, ShouldBeNil)
			So(sp.Value(), ShouldEqual, 1.5)
		})

		Convey("interpreter errors are reported in the reply", func() {
			reply, err := c.ProcessCommand(onboard.SourceHTTP, Cmd{Cmd: "line", Line: "JUMP"})
			So(err, ShouldNotBeNil)
			So(reply.Error, ShouldEqual, err.Error())
			So(reply.Lines, ShouldNotBeEmpty)
		})

		Convey("unknown commands and non-finite values are refused", func() {
			reply, err := c.ProcessCommand(onboard.SourceHTTP, Cmd{Cmd: "explode"})
			So(err, ShouldNotBeNil)
			So(reply.Lines, ShouldBeEmpty)

			_, err = c.ProcessCommand(onboard.SourceHTTP, Cmd{Cmd: "set_out_deg", Value: math.Inf(1)})
			So(err, ShouldNotBeNil)
			_, ok := inbox.Take()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestUpdateClients(t *testing.T) {
	Convey("Given two sinks", t, func() {
		c, _, _, _ := newTestConductor()
		a := c.AddSink()
		b := c.AddSink()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go c.UpdateClients(ctx)

		Convey("a published snapshot reaches both as JSON", func() {
			c.Publish(onboard.Snapshot{Cycle: 7, Mode: onboard.RUN, OutDeg: 12.5})

			for _, sink := range []Sink{a, b} {
				var msg []byte
				select {
				case msg = <-sink:
				case <-time.After(time.Second):
				}
				So(msg, ShouldNotBeNil)

				var decoded map[string]interface{}
				So(json.Unmarshal(msg, &decoded), ShouldBeNil)
				So(decoded["type"], ShouldEqual, "telemetry")
				So(decoded["cycle"], ShouldEqual, float64(7))
				So(decoded["mode"], ShouldEqual, "RUN")
				So(decoded["out_deg"], ShouldEqual, 12.5)
			}
		})

		Convey("a removed sink gets nothing", func() {
			c.RemoveSink(b)
			c.Publish(onboard.Snapshot{Cycle: 1})

			select {
			case <-a:
			case <-time.After(time.Second):
				t.Error("no telemetry")
			}
			So(b, ShouldBeEmpty)
		})
	})

	Convey("publishing never blocks", t, func() {
		c, _, _, _ := newTestConductor()
		for i := 0; i < UPDATE_BUFFER*4; i++ {
			c.Publish(onboard.Snapshot{Cycle: uint64(i)})
		}
		So(c.updates, ShouldHaveLength, UPDATE_BUFFER)
	})
}
