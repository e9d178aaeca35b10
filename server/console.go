package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"mumpsdb/command"
)

// Console is the interactive REPL on stdin/stdout. It shares the executor
// with the socket server but owns its own session state.
type Console struct {
	executor *command.Executor
	in       io.Reader
	out      io.Writer
	log      *logrus.Entry
}

// NewConsole creates a console bound to the given streams
func NewConsole(executor *command.Executor, in io.Reader, out io.Writer, log *logrus.Entry) *Console {
	return &Console{
		executor: executor,
		in:       in,
		out:      out,
		log:      log,
	}
}

// Run processes console input until EOF, EXIT, or context cancellation.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "MUMPS-like Database Console Mode")
	fmt.Fprintln(c.out, "Type 'HELP' for available commands, 'EXIT' to quit")

	sess := command.NewSession()
	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, "MUMPS> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		response, exit := c.executor.Execute(sess, line)
		fmt.Fprintln(c.out, response)
		if exit {
			return nil
		}
	}
}
