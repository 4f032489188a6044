package main

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/CodedInternet/gofoc/onboard"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// only one remote controller at a time
var controller xMutex

// TelemetryHandler streams telemetry snapshots to any number of viewers.
func TelemetryHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("telemetry upgrade failed")
		return
	}
	defer conn.Close()

	ENV.Conductor.ServeTelemetry(conn)
}

// CommandHandler accepts commands from a single controlling client.
func CommandHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache")
	if err := controller.Lock(); err != nil {
		render.Render(w, r, ErrConflict(err))
		return
	}
	defer controller.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("command upgrade failed")
		return
	}
	defer conn.Close()

	log.Info().Str("remote", r.RemoteAddr).Msg("controller connected")
	ENV.Conductor.ServeCommands(conn, onboard.SourceSocket)
	log.Info().Str("remote", r.RemoteAddr).Msg("controller disconnected")
}
