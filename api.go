package main

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/CodedInternet/gofoc/comms"
	"github.com/CodedInternet/gofoc/journal"
	"github.com/CodedInternet/gofoc/onboard"
)

const (
	JOURNAL_DEFAULT = 20
	JOURNAL_MAX     = 500
)

type StateResponse struct {
	Mode      onboard.Mode      `json:"mode"`
	Setpoint  float64           `json:"setpoint_rad"`
	OutDeg    float64           `json:"out_deg"`
	GearRatio float64           `json:"gear_ratio"`
	Telemetry *onboard.Snapshot `json:"telemetry,omitempty"`
}

func currentState() StateResponse {
	a := ENV.Actuator
	setpoint := a.Setpoint.Value()
	state := StateResponse{
		Mode:      a.Mode.Mode(),
		Setpoint:  setpoint,
		OutDeg:    a.Config.Gear().OutputDeg(setpoint),
		GearRatio: a.Config.GearRatio,
	}
	if snap, ok := a.Runner.Latest(); ok {
		state.Telemetry = &snap
	}
	return state
}

func GetState(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, currentState())
}

func GetJournal(w http.ResponseWriter, r *http.Request) {
	limit := JOURNAL_DEFAULT
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > JOURNAL_MAX {
			render.Render(w, r, ErrInvalidRequest(errors.New("limit must be between 1 and 500")))
			return
		}
		limit = n
	}

	entries, err := ENV.Journal.Recent(limit)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}

	render.JSON(w, r, struct {
		Entries []journal.Entry `json:"entries"`
	}{entries})
}

type TargetPayload struct {
	OutDeg *float64 `json:"out_deg"`
}

func (p *TargetPayload) Bind(r *http.Request) error {
	if p.OutDeg == nil {
		return errors.New("out_deg is required")
	}
	if math.IsNaN(*p.OutDeg) || math.IsInf(*p.OutDeg, 0) {
		return errors.New("out_deg must be finite")
	}
	return nil
}

// PostTarget queues an output shaft angle on the remote target path.
func PostTarget(w http.ResponseWriter, r *http.Request) {
	data := &TargetPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	reply, err := ENV.Conductor.ProcessCommand(onboard.SourceHTTP, comms.Cmd{Cmd: "set_out_deg", Value: *data.OutDeg})
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, reply)
}

type CommandPayload struct {
	Line string `json:"line"`
}

func (p *CommandPayload) Bind(r *http.Request) error {
	if p.Line == "" {
		return errors.New("line is required")
	}
	return nil
}

// PostCommand runs one command line and returns the interpreter output.
func PostCommand(w http.ResponseWriter, r *http.Request) {
	data := &CommandPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	reply, err := ENV.Conductor.ProcessCommand(onboard.SourceHTTP, comms.Cmd{Cmd: "line", Line: data.Line})
	if err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
	}
	render.JSON(w, r, reply)
}
