package errors

import (
	"fmt"
	"strconv"
)

// UnknownCommandError is reported for a non-empty line that matches no command.
type UnknownCommandError struct {
	Line string
}

func (err UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", err.Line)
}

// ParseError is reported when a numeric payload cannot be read as a float.
type ParseError struct {
	Payload string
}

func (err ParseError) Error() string {
	if len(err.Payload) == 0 {
		return "empty numeric payload"
	}

	return fmt.Sprintf("unable to parse %q as a number", err.Payload)
}

// NonFiniteError rejects NaN and infinite values before they reach the setpoint.
type NonFiniteError struct {
	Value float64
}

func (err NonFiniteError) Error() string {
	return "refusing non-finite setpoint " + strconv.FormatFloat(err.Value, 'g', -1, 64)
}

type LineOverflowError struct {
	Limit int
}

func (err LineOverflowError) Error() string {
	return fmt.Sprintf("command line exceeded %d bytes and was discarded", err.Limit)
}
