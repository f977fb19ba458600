// Package stareval hosts Starlark sessions.
//
// Starlark has no receivers, so a nested context only rebinds the predeclared
// name "self"; all contexts share one set of globals.
package stareval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/itsmostafa/goprobe/internal/evaluator"
	"github.com/itsmostafa/goprobe/internal/evaluator/lexscan"
)

// selfName is the global that holds the current context's target.
const selfName = "self"

// fileOptions enables the dialect features a REPL needs.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Evaluator runs Starlark chunks against a persistent set of globals.
type Evaluator struct {
	globals starlark.StringDict
	stdout  io.Writer
	top     *evaluator.Context
}

// New creates an Evaluator whose print() writes to stdout (default os.Stdout).
func New(stdout io.Writer) *Evaluator {
	if stdout == nil {
		stdout = os.Stdout
	}
	e := &Evaluator{
		globals: starlark.StringDict{},
		stdout:  stdout,
		top:     &evaluator.Context{Target: starlark.None, Name: "main"},
	}
	e.globals["exit"] = starlark.NewBuiltin("exit", exitBuiltin)
	e.globals[selfName] = starlark.None
	return e
}

// exitBuiltin asks the process to exit; the error is fatal to the session.
func exitBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	code := 0
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0, &code); err != nil {
		return nil, err
	}
	return nil, &evaluator.ExitError{Code: code}
}

// Language returns "starlark".
func (e *Evaluator) Language() string {
	return "starlark"
}

// TopLevel returns the context whose self is None.
func (e *Evaluator) TopLevel() *evaluator.Context {
	return e.top
}

// ContextFor returns a context whose self is v.
func (e *Evaluator) ContextFor(v any) *evaluator.Context {
	val := toStarlark(v)
	if val == starlark.None {
		return e.top
	}
	return &evaluator.Context{Target: val, Name: label(val)}
}

// Label returns the prompt label for c.
func (e *Evaluator) Label(c *evaluator.Context) string {
	if c == nil || c == e.top {
		return "main"
	}
	return c.Name
}

// Evaluate runs src with self bound to c's target. A sole expression yields
// its value; statements yield None.
func (e *Evaluator) Evaluate(ctx context.Context, c *evaluator.Context, filename, src string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", evaluator.ErrTerminated, context.Cause(ctx))
	}

	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(e.stdout, msg)
		},
	}
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel("terminated")
	})
	defer stop()

	target := starlark.Value(starlark.None)
	if c != nil {
		target = toStarlark(c.Target)
	}
	e.globals[selfName] = target

	f, err := fileOptions.Parse(filename, src, 0)
	if err != nil {
		return nil, convertError(ctx, err)
	}

	if expr := soleExpr(f); expr != nil {
		v, err := starlark.EvalExprOptions(fileOptions, thread, expr, e.globals)
		if err != nil {
			return nil, convertError(ctx, err)
		}
		return v, nil
	}

	if err := starlark.ExecREPLChunk(f, thread, e.globals); err != nil {
		return nil, convertError(ctx, err)
	}
	return starlark.None, nil
}

func soleExpr(f *syntax.File) syntax.Expr {
	if len(f.Stmts) == 1 {
		if stmt, ok := f.Stmts[0].(*syntax.ExprStmt); ok {
			return stmt.X
		}
	}
	return nil
}

// convertError maps Starlark failures onto the evaluator error taxonomy.
func convertError(ctx context.Context, err error) error {
	var exit *evaluator.ExitError
	if errors.As(err, &exit) {
		return exit
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", evaluator.ErrTerminated, context.Cause(ctx))
	}

	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return &evaluator.Error{Name: "Error", Message: evalErr.Msg, Value: starlark.String(evalErr.Msg), Cause: err}
	}
	var resolveErrs resolve.ErrorList
	if errors.As(err, &resolveErrs) && len(resolveErrs) > 0 {
		msg := resolveErrs[0].Msg
		return &evaluator.Error{Name: "NameError", Message: msg, Value: starlark.String(msg), Cause: err}
	}
	var syntaxErr syntax.Error
	if errors.As(err, &syntaxErr) {
		return &evaluator.Error{Name: "SyntaxError", Message: syntaxErr.Msg, Value: starlark.String(syntaxErr.Msg), Cause: err}
	}
	return &evaluator.Error{Name: "Error", Message: err.Error(), Value: starlark.String(err.Error()), Cause: err}
}

// IsComplete reports whether src can be parsed as a unit. Compound statements
// (a first line ending in ':') are closed by a blank line.
func (e *Evaluator) IsComplete(src string) bool {
	if strings.TrimSpace(src) == "" {
		return true
	}
	res := lexscan.Scan(src, lexscan.Starlark)
	if res.Open || res.Depth > 0 || res.Continued {
		return false
	}

	lines := strings.Split(strings.TrimSuffix(src, "\n"), "\n")
	first := lexscan.Scan(lines[0], lexscan.Starlark)
	if first.Last == ':' && first.Depth == 0 {
		return len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == ""
	}
	return true
}

// Suppressed reports whether src ends in ';' outside strings and comments.
func (e *Evaluator) Suppressed(src string) bool {
	return lexscan.Scan(src, lexscan.Starlark).Last == ';'
}

// Bind sets a global. Errors are bound as their raised value.
func (e *Evaluator) Bind(name string, v any) error {
	if x, ok := v.(*evaluator.Error); ok {
		if val, ok := x.Value.(starlark.Value); ok {
			e.globals[name] = val
			return nil
		}
	}
	e.globals[name] = toStarlark(v)
	return nil
}

// Inspect formats a value for display.
func (e *Evaluator) Inspect(v any) string {
	return toStarlark(v).String()
}

// Export converts a Starlark value into a Go value.
func (e *Evaluator) Export(v any) any {
	val, ok := v.(starlark.Value)
	if !ok {
		return v
	}
	return fromStarlark(val)
}

// Names lists globals at the top level and attributes elsewhere.
func (e *Evaluator) Names(c *evaluator.Context) ([]string, error) {
	if c == nil || c == e.top {
		names := make([]string, 0, len(e.globals))
		for name := range e.globals {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}
	if attrs, ok := toStarlark(c.Target).(starlark.HasAttrs); ok {
		names := attrs.AttrNames()
		sort.Strings(names)
		return names, nil
	}
	return nil, nil
}

func label(v starlark.Value) string {
	switch v.(type) {
	case starlark.Int, starlark.Float, starlark.String, starlark.Bool:
		return v.String()
	}
	return "#<" + v.Type() + ">"
}
