// Package jseval hosts JavaScript sessions on a goja runtime.
package jseval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"

	"github.com/itsmostafa/goprobe/internal/evaluator"
	"github.com/itsmostafa/goprobe/internal/evaluator/lexscan"
)

// Config holds configuration for a JavaScript evaluator.
type Config struct {
	// Stdout receives print() and console.log() output (default: os.Stdout)
	Stdout io.Writer

	// MaxStringChars truncates long strings when inspecting (default: 1000)
	MaxStringChars int

	// MaxArrayItems truncates long arrays when inspecting (default: 20)
	MaxArrayItems int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Stdout:         os.Stdout,
		MaxStringChars: 1000,
		MaxArrayItems:  20,
	}
}

// Evaluator runs JavaScript in a single goja runtime shared by every context.
type Evaluator struct {
	vm     *goja.Runtime
	config Config
	top    *evaluator.Context
	scoped goja.Callable
}

// New creates an Evaluator with the builtins installed.
func New(config Config) (*Evaluator, error) {
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if config.MaxStringChars <= 0 {
		config.MaxStringChars = 1000
	}
	if config.MaxArrayItems <= 0 {
		config.MaxArrayItems = 20
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	e := &Evaluator{
		vm:     vm,
		config: config,
		top:    &evaluator.Context{Target: vm.GlobalObject(), Name: "main"},
	}

	if err := e.setupEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to setup environment: %w", err)
	}
	return e, nil
}

// setupEnvironment installs print, console.log, exit and the scoped runner.
func (e *Evaluator) setupEnvironment() error {
	printFunc := func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.String()
		}
		fmt.Fprintln(e.config.Stdout, strings.Join(args, " "))
		return goja.Undefined()
	}
	if err := e.vm.Set("print", printFunc); err != nil {
		return fmt.Errorf("failed to set print: %w", err)
	}

	console := e.vm.NewObject()
	if err := console.Set("log", printFunc); err != nil {
		return fmt.Errorf("failed to set console.log: %w", err)
	}
	if err := e.vm.Set("console", console); err != nil {
		return fmt.Errorf("failed to set console: %w", err)
	}

	// exit() interrupts the runtime so the request cannot be caught by try/catch
	exitFunc := func(call goja.FunctionCall) goja.Value {
		code := 0
		if len(call.Arguments) > 0 {
			code = int(call.Arguments[0].ToInteger())
		}
		e.vm.Interrupt(&evaluator.ExitError{Code: code})
		return goja.Undefined()
	}
	if err := e.vm.Set("exit", exitFunc); err != nil {
		return fmt.Errorf("failed to set exit: %w", err)
	}

	// Direct eval inside a sloppy-mode function sees the bound receiver as this,
	// and with() makes its properties resolve as plain names.
	fn, err := e.vm.RunString(`(function (__src) { with (this) { return eval(__src); } })`)
	if err != nil {
		return fmt.Errorf("failed to compile scoped runner: %w", err)
	}
	scoped, ok := goja.AssertFunction(fn)
	if !ok {
		return errors.New("scoped runner is not callable")
	}
	e.scoped = scoped
	return nil
}

// Language returns "javascript".
func (e *Evaluator) Language() string {
	return "javascript"
}

// TopLevel returns the context bound to the global object.
func (e *Evaluator) TopLevel() *evaluator.Context {
	return e.top
}

// ContextFor returns a context whose receiver is v.
func (e *Evaluator) ContextFor(v any) *evaluator.Context {
	val := e.toValue(v)
	if obj, ok := val.(*goja.Object); ok && obj == e.vm.GlobalObject() {
		return e.top
	}
	return &evaluator.Context{Target: val, Name: e.label(val)}
}

// Label returns the prompt label for c.
func (e *Evaluator) Label(c *evaluator.Context) string {
	if c == nil || c == e.top {
		return "main"
	}
	return c.Name
}

// Evaluate runs src with c's target as the receiver. Top-level code runs as a
// global script so declarations persist between inputs.
func (e *Evaluator) Evaluate(ctx context.Context, c *evaluator.Context, filename, src string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", evaluator.ErrTerminated, context.Cause(ctx))
	}
	e.vm.ClearInterrupt()

	stop := context.AfterFunc(ctx, func() {
		e.vm.Interrupt(evaluator.ErrTerminated)
	})
	defer stop()

	var (
		val goja.Value
		err error
	)
	if c == nil || c == e.top {
		val, err = e.vm.RunScript(filename, src)
	} else {
		val, err = e.scoped(e.toValue(c.Target), e.vm.ToValue(src))
	}
	if err != nil {
		return nil, e.convertError(ctx, err)
	}
	return val, nil
}

// convertError maps goja failures onto the evaluator error taxonomy.
func (e *Evaluator) convertError(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		e.vm.ClearInterrupt()
		switch v := interrupted.Value().(type) {
		case *evaluator.ExitError:
			return v
		case error:
			if errors.Is(v, evaluator.ErrTerminated) {
				return fmt.Errorf("%w: %v", evaluator.ErrTerminated, context.Cause(ctx))
			}
			return v
		default:
			return fmt.Errorf("%w: %v", evaluator.ErrTerminated, v)
		}
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		name, msg := e.describeError(ex.Value())
		return &evaluator.Error{Name: name, Message: msg, Value: ex.Value(), Cause: err}
	}
	return &evaluator.Error{Message: err.Error(), Cause: err}
}

// describeError splits a thrown value into class name and message.
func (e *Evaluator) describeError(v goja.Value) (string, string) {
	obj, ok := v.(*goja.Object)
	if !ok || !e.isError(obj) {
		if v == nil {
			return "", "undefined"
		}
		return "Uncaught", v.String()
	}
	name := "Error"
	if n := obj.Get("name"); n != nil && !goja.IsUndefined(n) {
		name = n.String()
	}
	msg := ""
	if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
		msg = m.String()
	}
	return name, msg
}

func (e *Evaluator) isError(obj *goja.Object) bool {
	ctor, ok := e.vm.Get("Error").(*goja.Object)
	if !ok {
		return false
	}
	return e.vm.InstanceOf(obj, ctor)
}

// IsComplete asks the goja parser whether src stops early.
func (e *Evaluator) IsComplete(src string) bool {
	if strings.TrimSpace(src) == "" {
		return true
	}
	_, err := parser.ParseFile(nil, "", src, 0)
	if err == nil {
		return true
	}
	if strings.Contains(err.Error(), "Unexpected end of input") {
		return false
	}
	// template literals and block comments may legitimately span lines
	return !lexscan.Scan(src, lexscan.JavaScript).Open
}

// Suppressed reports whether src ends in ';' outside strings and comments.
func (e *Evaluator) Suppressed(src string) bool {
	return lexscan.Scan(src, lexscan.JavaScript).Last == ';'
}

// Bind sets a global variable. Errors raised by user code are bound as the
// thrown value.
func (e *Evaluator) Bind(name string, v any) error {
	var val any
	switch x := v.(type) {
	case nil:
		val = goja.Undefined()
	case *evaluator.Error:
		if thrown, ok := x.Value.(goja.Value); ok {
			val = thrown
		} else {
			val = e.vm.NewGoError(x)
		}
	case error:
		val = e.vm.NewGoError(x)
	default:
		val = x
	}
	if err := e.vm.Set(name, val); err != nil {
		return fmt.Errorf("failed to bind %s: %w", name, err)
	}
	return nil
}

// Export converts a goja value into a Go value.
func (e *Evaluator) Export(v any) any {
	if val, ok := v.(goja.Value); ok {
		if val == nil {
			return nil
		}
		return val.Export()
	}
	return v
}

// Names lists the enumerable properties visible from c.
func (e *Evaluator) Names(c *evaluator.Context) ([]string, error) {
	target := e.toValue(c.Target)
	if goja.IsUndefined(target) || goja.IsNull(target) {
		return nil, nil
	}
	obj := target.ToObject(e.vm)
	keys := obj.Keys()
	sort.Strings(keys)
	return keys, nil
}

func (e *Evaluator) toValue(v any) goja.Value {
	if val, ok := v.(goja.Value); ok && val != nil {
		return val
	}
	return e.vm.ToValue(v)
}

// label names a receiver for the prompt.
func (e *Evaluator) label(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return e.inspect(v)
	}
	if _, isFunc := goja.AssertFunction(obj); isFunc {
		if n := obj.Get("name"); n != nil && n.String() != "" {
			return n.String()
		}
		return "Function"
	}
	if ctor, ok := obj.Get("constructor").(*goja.Object); ok {
		if n := ctor.Get("name"); n != nil && n.String() != "" {
			return "#<" + n.String() + ">"
		}
	}
	return "#<" + obj.ClassName() + ">"
}
