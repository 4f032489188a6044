package comms

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/CodedInternet/gofoc/onboard"
	"github.com/CodedInternet/gofoc/onboard/hardware"
)

const (
	UPDATE_BUFFER = 4
	SINK_BUFFER   = 16
)

// Dispatcher executes a single command line. *onboard.Interpreter satisfies it.
type Dispatcher interface {
	Dispatch(source onboard.Source, line string, out hardware.LineWriter) error
}

// Sink receives every telemetry message as JSON.
type Sink chan []byte

// Conductor routes remote commands into the actuator and fans telemetry out
// to every connected sink.
type Conductor struct {
	dispatcher Dispatcher
	inbox      *onboard.Inbox
	updates    chan onboard.Snapshot

	lock  sync.Mutex
	sinks map[Sink]struct{}
}

func NewConductor(dispatcher Dispatcher, inbox *onboard.Inbox) *Conductor {
	return &Conductor{
		dispatcher: dispatcher,
		inbox:      inbox,
		updates:    make(chan onboard.Snapshot, UPDATE_BUFFER),
		sinks:      make(map[Sink]struct{}),
	}
}

// Publish hands a snapshot to UpdateClients. It never blocks; a snapshot is
// dropped if the previous ones have not been sent yet.
func (c *Conductor) Publish(snap onboard.Snapshot) {
	select {
	case c.updates <- snap:
	default:
	}
}

// UpdateClients sends published snapshots to every sink until ctx is done.
func (c *Conductor) UpdateClients(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-c.updates:
			msg, err := json.Marshal(StatePayload{Type: "telemetry", Snapshot: snap})
			if err != nil {
				log.Error().Err(err).Msg("unable to marshal telemetry")
				continue
			}

			c.lock.Lock()
			for sink := range c.sinks {
				select {
				case sink <- msg:
				default:
					// slow consumer, it gets the next one
				}
			}
			c.lock.Unlock()
		}
	}
}

func (c *Conductor) AddSink() Sink {
	sink := make(Sink, SINK_BUFFER)
	c.lock.Lock()
	c.sinks[sink] = struct{}{}
	c.lock.Unlock()
	return sink
}

func (c *Conductor) RemoveSink(sink Sink) {
	c.lock.Lock()
	delete(c.sinks, sink)
	c.lock.Unlock()
}

// ProcessCommand applies cmd on behalf of source and returns what the
// interpreter wrote back.
func (c *Conductor) ProcessCommand(source onboard.Source, cmd Cmd) (reply Reply, err error) {
	var lines Lines

	switch cmd.Cmd {
	case "set_out_deg":
		if math.IsNaN(cmd.Value) || math.IsInf(cmd.Value, 0) {
			err = fmt.Errorf("invalid output angle %v", cmd.Value)
			break
		}
		c.inbox.Deliver(cmd.Value)
		lines.WriteLine(fmt.Sprintf("[%s] out_deg %.2f° queued", source, cmd.Value))

	case "line":
		err = c.dispatcher.Dispatch(source, cmd.Line, &lines)

	default:
		err = fmt.Errorf("unable to process command %q", cmd.Cmd)
	}

	reply.Lines = lines
	if reply.Lines == nil {
		reply.Lines = []string{}
	}
	if err != nil {
		reply.Error = err.Error()
		log.Info().Err(err).Str("source", string(source)).Str("cmd", cmd.Cmd).Msg("command failed")
	}

	return reply, err
}
