package onboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	oerrors "github.com/CodedInternet/gofoc/onboard/errors"
	"github.com/CodedInternet/gofoc/onboard/hardware"
)

const (
	DEFAULT_LINE_LIMIT = 128
	outDegPrefix       = "OUT_DEG="
)

var helpText = []string{
	"=== Serial control help ===",
	"Commands:",
	"  RUN | MODE RUN | MODE=RUN             switch to run mode",
	"  STANDBY | MODE STANDBY | MODE=STANDBY switch to standby mode",
	"  OUT_DEG=<deg>                         set the output shaft angle (degrees)",
	"  <rad>                                 set the motor shaft target (radians)",
	"  HELP | ? | H                          show this help",
	"The gear ratio is set in the actuator configuration.",
}

type InterpreterOptions struct {
	// LineLimit bounds the command line buffer. Longer lines are discarded.
	LineLimit int
	// LooseNumbers reads the longest numeric prefix of a payload and falls
	// back to zero instead of rejecting it.
	LooseNumbers bool
}

// Interpreter reads newline terminated commands from a byte transport and
// applies them to the setpoint and mode. Without a transport only Dispatch is
// useful.
type Interpreter struct {
	transport hardware.ByteTransport
	setpoint  *Setpoint
	mode      ModeSwitch
	gear      GearRatio
	opts      InterpreterOptions

	buf      []byte
	overflow bool
}

func NewInterpreter(transport hardware.ByteTransport, setpoint *Setpoint, mode ModeSwitch, gear GearRatio, opts InterpreterOptions) *Interpreter {
	if opts.LineLimit <= 0 {
		opts.LineLimit = DEFAULT_LINE_LIMIT
	}

	return &Interpreter{
		transport: transport,
		setpoint:  setpoint,
		mode:      mode,
		gear:      gear,
		opts:      opts,
		buf:       make([]byte, 0, opts.LineLimit),
	}
}

// PollLine drains the bytes already available on the transport. It stops at
// the first line terminator, dispatches that line and returns it untrimmed;
// anything after the terminator is left for the next call. ok is false when
// no terminator was seen, in which case the partial line stays buffered.
func (in *Interpreter) PollLine() (line string, ok bool) {
	if in.transport == nil {
		return "", false
	}

	for in.transport.ByteAvailable() {
		c, err := in.transport.ReadByte()
		if err != nil {
			log.Warn().Err(err).Msg("serial read failed")
			return "", false
		}

		if c == '\n' || c == '\r' {
			line = string(in.buf)
			in.buf = in.buf[:0]

			if in.overflow {
				in.overflow = false
				err := oerrors.LineOverflowError{Limit: in.opts.LineLimit}
				in.transport.WriteLine("[SERIAL] " + err.Error())
				log.Warn().Err(err).Msg("serial line discarded")
				return "", true
			}

			if err := in.Dispatch(SourceSerial, line, in.transport); err != nil {
				log.Info().Err(err).Str("line", line).Msg("serial command not applied")
			}
			return line, true
		}

		if in.overflow {
			continue
		}
		if len(in.buf) >= in.opts.LineLimit {
			in.overflow = true
			in.buf = in.buf[:0]
			continue
		}
		in.buf = append(in.buf, c)
	}

	return "", false
}

// Dispatch applies one command line and writes its replies to out. It only
// touches the setpoint and mode, so any line source may call it.
func (in *Interpreter) Dispatch(source Source, line string, out hardware.LineWriter) error {
	cmd := strings.TrimSpace(line)
	if len(cmd) == 0 {
		return nil
	}
	upper := strings.ToUpper(cmd)

	switch {
	case upper == "HELP" || upper == "?" || upper == "H":
		for _, l := range helpText {
			out.WriteLine(l)
		}
		in.echo(out)
		return nil

	case upper == "RUN" || upper == "MODE RUN" || upper == "MODE=RUN":
		in.mode.EnterRun()
		out.WriteLine("[SERIAL] Mode -> RUN")
		in.echo(out)
		return nil

	case upper == "STANDBY" || upper == "MODE STANDBY" || upper == "MODE=STANDBY":
		in.mode.EnterStandby()
		out.WriteLine("[SERIAL] Mode -> STANDBY")
		in.echo(out)
		return nil

	case strings.HasPrefix(upper, outDegPrefix):
		payload := strings.TrimSpace(cmd[strings.IndexByte(cmd, '=')+1:])
		outDeg, err := in.parseNumber(payload)
		if err != nil {
			out.WriteLine("[SERIAL] " + err.Error())
			return err
		}

		target := in.gear.MotorRad(outDeg)
		if err := in.setpoint.Commit(source, target); err != nil {
			out.WriteLine("[SERIAL] " + err.Error())
			return err
		}
		out.WriteLine(fmt.Sprintf("[SERIAL] out_deg %.2f° -> motor_target %.4f rad", outDeg, target))
		out.WriteLine(fmt.Sprintf("[SERIAL] target=%.4f rad, out_deg=%.2f°", target, outDeg))
		return nil

	case upper[0] == '-' || (upper[0] >= '0' && upper[0] <= '9'):
		target, err := in.parseNumber(cmd)
		if err != nil {
			out.WriteLine("[SERIAL] " + err.Error())
			return err
		}

		if err := in.setpoint.Commit(source, target); err != nil {
			out.WriteLine("[SERIAL] " + err.Error())
			return err
		}
		out.WriteLine(fmt.Sprintf("[SERIAL] motor_target set to %.4f rad", target))
		in.echo(out)
		return nil
	}

	out.WriteLine("[SERIAL] Unknown command: " + cmd)
	out.WriteLine("Type 'HELP' or '?' for command help")
	return oerrors.UnknownCommandError{Line: cmd}
}

func (in *Interpreter) echo(out hardware.LineWriter) {
	target := in.setpoint.Value()
	out.WriteLine(fmt.Sprintf("[SERIAL] target=%.4f rad, out_deg=%.2f°", target, in.gear.OutputDeg(target)))
}

func (in *Interpreter) parseNumber(payload string) (float64, error) {
	if in.opts.LooseNumbers {
		return looseFloat(payload), nil
	}

	v, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		return 0, oerrors.ParseError{Payload: payload}
	}
	return v, nil
}

// looseFloat reads the longest numeric prefix of s, or zero if there is none.
func looseFloat(s string) float64 {
	end := 0
	for end < len(s) && strings.IndexByte("0123456789+-.eE", s[end]) >= 0 {
		end++
	}

	for ; end > 0; end-- {
		// out of range values come back as ±Inf and are refused on commit
		if v, err := strconv.ParseFloat(s[:end], 64); err == nil || errors.Is(err, strconv.ErrRange) {
			return v
		}
	}
	return 0
}
