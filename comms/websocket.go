package comms

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/CodedInternet/gofoc/onboard"
)

const WRITE_WAIT = time.Second

// ServeTelemetry streams telemetry to conn until the peer goes away.
func (c *Conductor) ServeTelemetry(conn *websocket.Conn) {
	sink := c.AddSink()
	defer c.RemoveSink(sink)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg := <-sink:
			conn.SetWriteDeadline(time.Now().Add(WRITE_WAIT))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Msg("telemetry client gone")
				return
			}
		}
	}
}

// ServeCommands answers every Cmd read from conn with a Reply.
func (c *Conductor) ServeCommands(conn *websocket.Conn, source onboard.Source) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("command socket closed")
			}
			return
		}

		var reply Reply
		var cmd Cmd
		if err = json.Unmarshal(msg, &cmd); err != nil {
			reply = Reply{Lines: []string{}, Error: "invalid json"}
		} else {
			reply, _ = c.ProcessCommand(source, cmd)
		}

		conn.SetWriteDeadline(time.Now().Add(WRITE_WAIT))
		if err = conn.WriteJSON(reply); err != nil {
			return
		}
	}
}
