package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell/v2"
	"github.com/pkg/errors"

	"github.com/CodedInternet/gofoc/onboard"
	"github.com/CodedInternet/gofoc/onboard/hardware"
)

const JOURNAL_SHELL_DEFAULT = 10

type shellWriter struct {
	c *ishell.Context
}

func (w shellWriter) WriteLine(text string) error {
	w.c.Println(text)
	return nil
}

func newShell() *ishell.Shell {
	shell := ishell.New()
	shell.Println("gofoc actuator shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "createoperator",
		Help: "createoperator <email> <password>",
		Func: func(c *ishell.Context) {
			// disable the '>>>' for cleaner same line input.
			c.ShowPrompt(false)
			defer c.ShowPrompt(true) // yes, revert when done.

			var email string
			if len(c.Args) >= 1 {
				email = c.Args[0]
			} else {
				c.Print("Email: ")
				email = c.ReadLine()
			}

			var password string
			if len(c.Args) >= 2 {
				password = c.Args[1]
			} else {
				c.Print("Password: ")
				password = c.ReadPassword()
			}

			if err := createOperator(email, password); err != nil {
				c.Err(err)
				return
			}
			c.Println("Operator created")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "send",
		Help: "send <line>, run a command as if typed on the serial line",
		Func: func(c *ishell.Context) {
			if err := sendLine(c.Args, shellWriter{c}); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "state",
		Help: "show mode, setpoint and the latest telemetry",
		Func: func(c *ishell.Context) {
			for _, line := range stateLines() {
				c.Println(line)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "journal",
		Help: "journal [n], show the last n setpoint changes",
		Func: func(c *ishell.Context) {
			lines, err := journalLines(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			for _, line := range lines {
				c.Println(line)
			}
		},
	})

	return shell
}

func createOperator(email, password string) error {
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}

	operator := &Operator{
		Email: email,
		Name:  email,
		Admin: true,
	}
	if err := operator.SetPassword([]byte(password)); err != nil {
		return err
	}
	return errors.Wrap(ENV.DB.Save(operator), "unable to save operator")
}

func sendLine(args []string, out hardware.LineWriter) error {
	return ENV.Actuator.Interpreter.Dispatch(onboard.SourceShell, strings.Join(args, " "), out)
}

func stateLines() []string {
	state := currentState()
	lines := []string{
		fmt.Sprintf("mode:     %s", state.Mode),
		fmt.Sprintf("setpoint: %.4f rad (out %.2f°, ratio %g)", state.Setpoint, state.OutDeg, state.GearRatio),
	}
	if t := state.Telemetry; t != nil {
		lines = append(lines,
			fmt.Sprintf("angle:    %.4f rad  velocity: %.3f rad/s", t.Angle, t.Velocity),
			fmt.Sprintf("current:  %.3f A (ref %.3f A)  drive: %.3f", t.Current, t.CurrentRef, t.Drive),
			fmt.Sprintf("cycle:    %d  avg %.1fµs  overruns %d  faults %d", t.Cycle, t.AvgCycleUs, t.Overruns, t.Faults),
		)
	}
	return lines
}

func journalLines(args []string) ([]string, error) {
	n := JOURNAL_SHELL_DEFAULT
	if len(args) > 0 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil || n <= 0 {
			return nil, errors.Errorf("invalid count %q", args[0])
		}
	}

	entries, err := ENV.Journal.Recent(n)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s  %-9s %.4f -> %.4f rad (out %.2f°)",
			e.At.Format("15:04:05.000"), e.Source, e.Previous, e.Value, e.OutDeg))
	}
	return lines, nil
}
