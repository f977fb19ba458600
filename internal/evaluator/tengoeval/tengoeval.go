// Package tengoeval hosts Tengo sessions.
//
// Every input compiles to a fresh Tengo script. Globals are carried between
// scripts as objects, except functions: compiled functions are tied to the
// script that produced them, so top-level function literals are kept as
// source and redeclared ahead of each input.
package tengoeval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/parser"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/d5/tengo/v2/token"

	"github.com/itsmostafa/goprobe/internal/evaluator"
	"github.com/itsmostafa/goprobe/internal/evaluator/lexscan"
)

const (
	selfName   = "self"
	resultName = "__res__"

	// maxAllocs bounds the objects a single input may allocate
	maxAllocs = 1000000
)

// Evaluator runs Tengo inputs against a persistent set of globals.
type Evaluator struct {
	globals  map[string]tengo.Object
	defs     map[string]string
	defOrder []string
	builtins map[string]*tengo.UserFunction
	modules  *tengo.ModuleMap
	stdout   io.Writer
	top      *evaluator.Context
}

// New creates an Evaluator whose print functions write to stdout (default
// os.Stdout).
func New(stdout io.Writer) *Evaluator {
	if stdout == nil {
		stdout = os.Stdout
	}
	e := &Evaluator{
		globals: map[string]tengo.Object{},
		defs:    map[string]string{},
		modules: stdlib.GetModuleMap(stdlib.AllModuleNames()...),
		stdout:  stdout,
		top:     &evaluator.Context{Target: tengo.UndefinedValue, Name: "main"},
	}
	e.builtins = e.builtinFunctions()
	return e
}

// Language returns "tengo".
func (e *Evaluator) Language() string {
	return "tengo"
}

// TopLevel returns the context whose self is undefined.
func (e *Evaluator) TopLevel() *evaluator.Context {
	return e.top
}

// ContextFor returns a context whose self is v.
func (e *Evaluator) ContextFor(v any) *evaluator.Context {
	obj := toObject(v)
	if obj == tengo.UndefinedValue {
		return e.top
	}
	return &evaluator.Context{Target: obj, Name: label(obj)}
}

// Label returns the prompt label for c.
func (e *Evaluator) Label(c *evaluator.Context) string {
	if c == nil || c == e.top {
		return "main"
	}
	return c.Name
}

// chunk is a parsed input ready to compile.
type chunk struct {
	code    string
	defined map[string]bool
	defs    map[string]string
	order   []string
	dropped map[string]bool
	expr    bool
}

// Evaluate runs src with self bound to c's target. A sole expression yields
// its value; statements yield undefined.
func (e *Evaluator) Evaluate(ctx context.Context, c *evaluator.Context, filename, src string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", evaluator.ErrTerminated, context.Cause(ctx))
	}

	ch, err := e.prepare(filename, src)
	if err != nil {
		return nil, convertError(ctx, err)
	}

	script := tengo.NewScript([]byte(e.prelude() + ch.code))
	script.SetImports(e.modules)
	script.SetMaxAllocs(maxAllocs)

	for name, obj := range e.globals {
		if _, isDef := e.defs[name]; isDef || ch.defined[name] {
			continue
		}
		if err := script.Add(name, obj); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
	}
	for name, fn := range e.builtins {
		if ch.defined[name] {
			continue
		}
		if err := script.Add(name, fn); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
	}
	target := tengo.Object(tengo.UndefinedValue)
	if c != nil {
		target = toObject(c.Target)
	}
	if !ch.defined[selfName] {
		if err := script.Add(selfName, target); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", selfName, err)
		}
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, convertError(ctx, err)
	}
	if err := compiled.RunContext(ctx); err != nil {
		return nil, convertError(ctx, err)
	}

	e.persist(compiled, ch)
	if ch.expr {
		return compiled.Get(resultName).Object(), nil
	}
	return tengo.UndefinedValue, nil
}

// prepare parses src and rewrites it for a long-lived session: a sole
// expression is captured into resultName, and := on a name that already
// exists becomes plain assignment.
func (e *Evaluator) prepare(filename, src string) (*chunk, error) {
	fileSet := parser.NewFileSet()
	file := fileSet.AddFile(filename, -1, len(src))
	p := parser.NewParser(file, []byte(src), nil)
	f, err := p.ParseFile()
	if err != nil {
		return nil, err
	}

	ch := &chunk{
		defined: map[string]bool{},
		defs:    map[string]string{},
		dropped: map[string]bool{},
	}

	if len(f.Stmts) == 1 {
		if stmt, ok := f.Stmts[0].(*parser.ExprStmt); ok {
			expr := src[file.Offset(stmt.Expr.Pos()):file.Offset(stmt.Expr.End())]
			ch.code = resultName + " := (" + expr + ")"
			ch.expr = true
			return ch, nil
		}
	}

	buf := []byte(src)
	for _, stmt := range f.Stmts {
		assign, ok := stmt.(*parser.AssignStmt)
		if !ok || len(assign.LHS) != 1 || len(assign.RHS) != 1 {
			continue
		}
		ident, ok := assign.LHS[0].(*parser.Ident)
		if !ok {
			continue
		}
		if assign.Token == token.Define {
			if e.known(ident.Name) {
				// ":=" and "= " have the same width, so positions stay valid
				off := file.Offset(assign.TokenPos)
				copy(buf[off:off+2], "= ")
			} else {
				ch.defined[ident.Name] = true
			}
		}
		if assign.Token != token.Define && assign.Token != token.Assign {
			continue
		}
		def, isDef := "", false
		switch rhs := assign.RHS[0].(type) {
		case *parser.FuncLit:
			def, isDef = src[file.Offset(rhs.Pos()):file.Offset(rhs.End())], true
		case *parser.Ident:
			// g := f copies f's definition so g survives the script
			def, isDef = e.lookupDef(ch, rhs.Name)
		}
		if isDef {
			if _, seen := ch.defs[ident.Name]; !seen {
				ch.order = append(ch.order, ident.Name)
			}
			ch.defs[ident.Name] = def
			delete(ch.dropped, ident.Name)
		} else {
			ch.dropped[ident.Name] = true
			if _, seen := ch.defs[ident.Name]; seen {
				delete(ch.defs, ident.Name)
				ch.order = removeName(ch.order, ident.Name)
			}
		}
	}
	ch.code = string(buf)
	return ch, nil
}

// lookupDef returns the function source bound to name as of the current
// statement of ch.
func (e *Evaluator) lookupDef(ch *chunk, name string) (string, bool) {
	if def, ok := ch.defs[name]; ok {
		return def, true
	}
	if ch.dropped[name] {
		return "", false
	}
	def, ok := e.defs[name]
	return def, ok
}

func (e *Evaluator) known(name string) bool {
	if _, ok := e.globals[name]; ok {
		return true
	}
	if _, ok := e.defs[name]; ok {
		return true
	}
	_, ok := e.builtins[name]
	return ok || name == selfName
}

// prelude redeclares the session's functions in definition order.
func (e *Evaluator) prelude() string {
	var sb strings.Builder
	for _, name := range e.defOrder {
		sb.WriteString(name)
		sb.WriteString(" := ")
		sb.WriteString(e.defs[name])
		sb.WriteString("\n")
	}
	return sb.String()
}

// persist copies the script's globals back into the session.
func (e *Evaluator) persist(compiled *tengo.Compiled, ch *chunk) {
	for name := range ch.dropped {
		if _, ok := e.defs[name]; ok {
			delete(e.defs, name)
			e.defOrder = removeName(e.defOrder, name)
		}
	}
	for _, name := range ch.order {
		if _, ok := e.defs[name]; !ok {
			e.defOrder = append(e.defOrder, name)
		}
		e.defs[name] = ch.defs[name]
		delete(e.globals, name)
	}

	for _, v := range compiled.GetAll() {
		name := v.Name()
		if name == resultName || name == selfName {
			continue
		}
		if _, ok := e.builtins[name]; ok {
			continue
		}
		if _, ok := e.defs[name]; ok {
			continue
		}
		obj := v.Object()
		if _, isFunc := obj.(*tengo.CompiledFunction); isFunc {
			delete(e.globals, name)
			continue
		}
		e.globals[name] = obj
	}
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// convertError maps Tengo failures onto the evaluator error taxonomy.
func convertError(ctx context.Context, err error) error {
	var exit *evaluator.ExitError
	if errors.As(err, &exit) {
		return exit
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", evaluator.ErrTerminated, context.Cause(ctx))
	}

	var parseErrs parser.ErrorList
	if errors.As(err, &parseErrs) && len(parseErrs) > 0 {
		return userError("SyntaxError", parseErrs[0].Msg, err)
	}
	var compileErr *tengo.CompilerError
	if errors.As(err, &compileErr) {
		msg := compileErr.Err.Error()
		if strings.HasPrefix(msg, "unresolved reference") {
			return userError("NameError", msg, err)
		}
		return userError("CompileError", msg, err)
	}
	return userError("RuntimeError", innermost(err).Error(), err)
}

func userError(name, msg string, cause error) error {
	return &evaluator.Error{Name: name, Message: msg, Value: &tengo.String{Value: msg}, Cause: cause}
}

// innermost strips the VM's stack position wrappers.
func innermost(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// IsComplete reports whether src stops inside a string, comment or block.
func (e *Evaluator) IsComplete(src string) bool {
	if strings.TrimSpace(src) == "" {
		return true
	}
	res := lexscan.Scan(src, lexscan.Tengo)
	return !res.Open && res.Depth == 0
}

// Suppressed reports whether src ends in ';' outside strings and comments.
func (e *Evaluator) Suppressed(src string) bool {
	return lexscan.Scan(src, lexscan.Tengo).Last == ';'
}

// Bind sets a global. Errors are bound as error values. Compiled functions
// cannot outlive their script and are bound as undefined.
func (e *Evaluator) Bind(name string, v any) error {
	obj := toObject(v)
	if _, isFunc := obj.(*tengo.CompiledFunction); isFunc {
		obj = tengo.UndefinedValue
	}
	if _, ok := e.defs[name]; ok {
		delete(e.defs, name)
		e.defOrder = removeName(e.defOrder, name)
	}
	e.globals[name] = obj
	return nil
}

// Inspect formats a value for display.
func (e *Evaluator) Inspect(v any) string {
	return toObject(v).String()
}

// Export converts a Tengo object into a Go value.
func (e *Evaluator) Export(v any) any {
	obj, ok := v.(tengo.Object)
	if !ok {
		return v
	}
	return tengo.ToInterface(obj)
}

// Names lists globals and functions at the top level and map keys elsewhere.
func (e *Evaluator) Names(c *evaluator.Context) ([]string, error) {
	var names []string
	if c == nil || c == e.top {
		for name := range e.globals {
			names = append(names, name)
		}
		names = append(names, e.defOrder...)
		for name := range e.builtins {
			names = append(names, name)
		}
	} else {
		switch m := toObject(c.Target).(type) {
		case *tengo.Map:
			for key := range m.Value {
				names = append(names, key)
			}
		case *tengo.ImmutableMap:
			for key := range m.Value {
				names = append(names, key)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func label(obj tengo.Object) string {
	switch obj.(type) {
	case *tengo.Int, *tengo.Float, *tengo.String, *tengo.Bool, *tengo.Char:
		return obj.String()
	}
	return "#<" + obj.TypeName() + ">"
}
