package comms

import (
	"github.com/CodedInternet/gofoc/onboard"
)

// Cmd is a command received from a remote client.
//
//	{"cmd": "set_out_deg", "value": 45}
//	{"cmd": "line", "line": "RUN"}
type Cmd struct {
	Cmd   string  `json:"cmd"`
	Line  string  `json:"line,omitempty"`
	Value float64 `json:"value,omitempty"`
}

type StatePayload struct {
	Type string `json:"type"`
	onboard.Snapshot
}

// Reply carries the interpreter output for one command.
type Reply struct {
	Lines []string `json:"lines"`
	Error string   `json:"error,omitempty"`
}

// Lines collects written lines in memory.
type Lines []string

func (l *Lines) WriteLine(text string) error {
	*l = append(*l, text)
	return nil
}
