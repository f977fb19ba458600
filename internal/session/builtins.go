package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/itsmostafa/goprobe/internal/evaluator"
)

// DefaultRegistry returns a Registry with the built-in commands.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, cmd := range builtins() {
		if err := r.Register(cmd); err != nil {
			panic(err)
		}
	}
	return r
}

func builtins() []Command {
	return []Command{
		{
			Name:        "cd",
			Description: "Move into an object (cd <expr>), up one level (cd ..) or to the start (cd /)",
			Action:      cdAction,
		},
		{
			Name:        "exit",
			Description: "Leave the current context; ends the session at the start context",
			Action:      exitAction,
		},
		{
			Name:        "exit-all",
			Pattern:     `exit-all|!!@`,
			Description: "End the session from any depth",
			Action:      exitAllAction,
		},
		{
			Name:        "exit-program",
			Pattern:     `exit-program|!!!`,
			Description: "Exit the whole process with an optional status code",
			Action:      exitProgramAction,
		},
		{
			Name:        "nesting",
			Description: "Show the context stack",
			Action:      nestingAction,
		},
		{
			Name:        "jump-to",
			Description: "Return to the given nesting level",
			Action:      jumpToAction,
		},
		{
			Name:        "!",
			Description: "Clear the input buffer",
			Action:      clearAction,
		},
		{
			Name:        "show-input",
			Description: "Show the pending input buffer",
			Action:      showInputAction,
		},
		{
			Name:        "history",
			Description: "Show input history (history [n] for the last n entries)",
			Action:      historyAction,
		},
		{
			Name:        "ls",
			Description: "List the names visible in the current context",
			Action:      lsAction,
		},
		{
			Name:        "help",
			Description: "Show this list of commands",
			Action:      helpAction,
		},
	}
}

// evalArgs evaluates args in the current context.
func evalArgs(ctx context.Context, s *Session, args string) (any, error) {
	return s.ev.Evaluate(ctx, s.stack.Current(), filename, args)
}

func cdAction(ctx context.Context, s *Session, args string) (Outcome, error) {
	switch args {
	case "", "/":
		s.stack.Truncate(0)
		return NoResult(), nil
	case "..":
		if s.stack.Depth() > 0 {
			s.stack.Pop()
		}
		return NoResult(), nil
	}

	v, err := evalArgs(ctx, s, args)
	if err != nil {
		return NoResult(), err
	}
	s.stack.Push(s.ev.ContextFor(v))
	return NoResult(), nil
}

func exitAction(ctx context.Context, s *Session, args string) (Outcome, error) {
	var v any
	if args != "" {
		var err error
		if v, err = evalArgs(ctx, s, args); err != nil {
			return NoResult(), err
		}
	}
	s.stack.Pop()
	if s.stack.Len() == 0 {
		s.End(v)
	}
	return NoResult(), nil
}

func exitAllAction(ctx context.Context, s *Session, args string) (Outcome, error) {
	var v any
	if args != "" {
		var err error
		if v, err = evalArgs(ctx, s, args); err != nil {
			return NoResult(), err
		}
	}
	s.stack.Clear()
	s.End(v)
	return NoResult(), nil
}

func exitProgramAction(_ context.Context, _ *Session, args string) (Outcome, error) {
	code := 0
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil {
			return NoResult(), fmt.Errorf("invalid exit status %q", args)
		}
		code = n
	}
	return NoResult(), &evaluator.ExitError{Code: code}
}

func nestingAction(_ context.Context, s *Session, _ string) (Outcome, error) {
	s.Printf("Nesting status:\n--\n")
	for i, c := range s.stack.Contexts() {
		label := s.ev.Label(c)
		if i == 0 {
			label += " (goprobe top level)"
		}
		s.Printf("%d. %s\n", i, label)
	}
	return NoResult(), nil
}

func jumpToAction(_ context.Context, s *Session, args string) (Outcome, error) {
	level, err := strconv.Atoi(args)
	if err != nil {
		return NoResult(), fmt.Errorf("jump-to needs a nesting level, got %q", args)
	}
	if level < 0 || level > s.stack.Depth() {
		return NoResult(), fmt.Errorf("invalid nest level: must be between 0 and %d, got %d", s.stack.Depth(), level)
	}
	s.stack.Truncate(level)
	return NoResult(), nil
}

func clearAction(_ context.Context, s *Session, _ string) (Outcome, error) {
	s.ClearBuffer()
	s.Printf("Input buffer cleared!\n")
	return NoResult(), nil
}

func showInputAction(_ context.Context, s *Session, _ string) (Outcome, error) {
	lines := strings.Split(strings.TrimSuffix(s.buffer, "\n"), "\n")
	if s.buffer == "" {
		lines = nil
	}
	for i, line := range lines {
		s.Printf("%s %s\n", s.styles.render(s.styles.dim, fmt.Sprintf("%d:", i+1)), line)
	}
	return NoResult(), nil
}

func historyAction(_ context.Context, s *Session, args string) (Outcome, error) {
	if s.inputs.Len() == 0 {
		return NoResult(), nil
	}
	from := s.inputs.First()
	last := from + s.inputs.Len() - 1
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n <= 0 {
			return NoResult(), fmt.Errorf("history needs a positive count, got %q", args)
		}
		from = max(from, last-n+1)
	}

	entries, err := s.inputs.Slice(from, last)
	if err != nil {
		return NoResult(), err
	}
	for i, entry := range entries {
		num := s.styles.render(s.styles.dim, fmt.Sprintf("%d:", from+i))
		s.Printf("%s %s\n", num, strings.ReplaceAll(strings.TrimRight(entry, "\n"), "\n", "\n   "))
	}
	return NoResult(), nil
}

func lsAction(_ context.Context, s *Session, _ string) (Outcome, error) {
	lister, ok := s.ev.(evaluator.Lister)
	if !ok {
		return NoResult(), errors.New("ls is not supported by the " + s.ev.Language() + " evaluator")
	}
	names, err := lister.Names(s.stack.Current())
	if err != nil {
		return NoResult(), err
	}
	if len(names) > 0 {
		s.Printf("%s\n", strings.Join(names, "  "))
	}
	return NoResult(), nil
}

func helpAction(_ context.Context, s *Session, _ string) (Outcome, error) {
	cmds := s.commands.Commands()
	width := 0
	for _, cmd := range cmds {
		width = max(width, len(cmd.Name))
	}
	for _, cmd := range cmds {
		name := fmt.Sprintf("%-*s", width, cmd.Name)
		s.Printf("%s  %s\n", s.styles.render(s.styles.name, name), cmd.Description)
	}
	return NoResult(), nil
}
