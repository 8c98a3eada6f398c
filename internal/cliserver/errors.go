package cliserver

import (
	"errors"
	"strings"
)

var (
	// ErrCommandInFlight is returned when Channel.Execute is entered while
	// another command is running. Only the Queue may call Execute.
	ErrCommandInFlight = errors.New("cli-server: a command is already in flight")

	// ErrNoDistribution is returned when the codeql version cannot be determined.
	ErrNoDistribution = errors.New("no distribution found")

	// ErrServerClosed is returned for commands submitted after Close.
	ErrServerClosed = errors.New("cli-server: closed")
)

// CommandError reports a failed codeql invocation.
type CommandError struct {
	Description string
	Args        []string
	Stderr      string
	Err         error
}

func (e *CommandError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Description)
	sb.WriteString(" failed with args:\n    ")
	sb.WriteString(strings.Join(e.Args, " "))
	sb.WriteByte('\n')
	switch {
	case e.Stderr != "":
		sb.WriteString(e.Stderr)
	case e.Err != nil:
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
