package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
)

type handler func(ctx context.Context, args []string) error

type commands map[string]handler

// repl reads one command per line from in until quit, end of input or ctx ends.
func repl(ctx context.Context, in io.Reader, out io.Writer, cmds commands) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := cmds.run(ctx, out, line); quit {
				return nil
			}
		}
	}
}

// run executes one line and reports whether the user asked to quit.
func (c commands) run(ctx context.Context, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintf(out, "commands: %s, help, quit\n", strings.Join(c.names(), ", "))
		return false
	}

	h, ok := c[name]
	if !ok {
		fmt.Fprintf(out, "unknown command %q, try help\n", name)
		return false
	}
	if err := h(ctx, args); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
	return false
}

func (c commands) names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
