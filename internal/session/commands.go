package session

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Action runs a command. args is the text after the command name, trimmed.
type Action func(ctx context.Context, s *Session, args string) (Outcome, error)

// Command is a line the session handles itself instead of evaluating.
type Command struct {
	// Name identifies the command for registration and help
	Name string

	// Pattern is a regexp matching the command word (default: the quoted name)
	Pattern string

	// Description is shown by help
	Description string

	// KeepRetval publishes a returned value as the last result
	KeepRetval bool

	Action Action
}

type outcomeKind int

const (
	outcomeNone outcomeKind = iota
	outcomeReturn
	outcomeRewrite
)

// Outcome is what a command hands back to the session.
type Outcome struct {
	kind  outcomeKind
	value any
	src   string
}

// NoResult reports that the command produced nothing to publish.
func NoResult() Outcome {
	return Outcome{kind: outcomeNone}
}

// Return hands v back to the session. It is published only when the command
// has KeepRetval set.
func Return(v any) Outcome {
	return Outcome{kind: outcomeReturn, value: v}
}

// Rewrite asks the session to evaluate src in place of the command line.
func Rewrite(src string) Outcome {
	return Outcome{kind: outcomeRewrite, src: src}
}

type registered struct {
	cmd     Command
	re      *regexp.Regexp
	argsIdx int
}

// Registry holds the commands a session recognises.
type Registry struct {
	entries []*registered
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds cmd. A command with the same name is replaced in place.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("command name must not be empty")
	}
	if cmd.Action == nil {
		return fmt.Errorf("command %s has no action", cmd.Name)
	}
	pattern := cmd.Pattern
	if pattern == "" {
		pattern = regexp.QuoteMeta(cmd.Name)
	}
	re, err := regexp.Compile(`^\s*(?:` + pattern + `)(?:\s+(?P<args>.*?))?\s*$`)
	if err != nil {
		return fmt.Errorf("invalid pattern for command %s: %w", cmd.Name, err)
	}

	entry := &registered{cmd: cmd, re: re, argsIdx: re.SubexpIndex("args")}
	for i, e := range r.entries {
		if e.cmd.Name == cmd.Name {
			r.entries[i] = entry
			return nil
		}
	}
	r.entries = append(r.entries, entry)
	return nil
}

// Unregister removes the named command and reports whether it existed.
func (r *Registry) Unregister(name string) bool {
	for i, e := range r.entries {
		if e.cmd.Name == name {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Lookup finds a command by name.
func (r *Registry) Lookup(name string) (Command, bool) {
	for _, e := range r.entries {
		if e.cmd.Name == name {
			return e.cmd, true
		}
	}
	return Command{}, false
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []Command {
	cmds := make([]Command, len(r.entries))
	for i, e := range r.entries {
		cmds[i] = e.cmd
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Match finds the command for line and its argument text. Later
// registrations win when patterns overlap. A line that assigns to a variable
// named like a command ("ls = 1") is not a match.
func (r *Registry) Match(line string) (Command, string, bool) {
	line = strings.TrimRight(line, "\r\n")
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		m := e.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		args := ""
		if e.argsIdx >= 0 {
			args = strings.TrimSpace(m[e.argsIdx])
		}
		if strings.HasPrefix(args, "=") && !strings.HasPrefix(args, "==") {
			continue
		}
		return e.cmd, args, true
	}
	return Command{}, "", false
}
