package jseval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// Inspect formats a value for display in REPL output.
func (e *Evaluator) Inspect(v any) string {
	return e.inspect(e.toValue(v))
}

func (e *Evaluator) inspect(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) {
		return "undefined"
	}
	if goja.IsNull(val) {
		return "null"
	}

	obj, isObj := val.(*goja.Object)
	if !isObj {
		if s, ok := val.Export().(string); ok {
			// Truncate very long strings
			if len(s) > e.config.MaxStringChars {
				return fmt.Sprintf("%s... (truncated, total %d chars)", strconv.Quote(s[:e.config.MaxStringChars]), len(s))
			}
			return strconv.Quote(s)
		}
		return val.String()
	}

	if _, ok := goja.AssertFunction(obj); ok {
		name := obj.Get("name")
		if name == nil || name.String() == "" {
			return "[Function (anonymous)]"
		}
		return "[Function: " + name.String() + "]"
	}

	if e.isError(obj) {
		name, msg := e.describeError(obj)
		return "#<" + name + ": " + msg + ">"
	}

	if obj.ClassName() == "Array" {
		return e.inspectArray(obj)
	}

	if s, ok := e.stringify(obj); ok {
		return s
	}
	return obj.String()
}

// inspectArray formats arrays, truncating large ones.
func (e *Evaluator) inspectArray(obj *goja.Object) string {
	n := int(obj.Get("length").ToInteger())
	if n == 0 {
		return "[]"
	}

	limit := n
	if n > e.config.MaxArrayItems {
		limit = e.config.MaxArrayItems
	}
	items := make([]string, 0, limit+1)
	for i := range limit {
		items = append(items, e.inspect(obj.Get(strconv.Itoa(i))))
	}
	if n > limit {
		items = append(items, fmt.Sprintf("... (%d more items)", n-limit))
	}
	return "[" + strings.Join(items, ", ") + "]"
}

// stringify renders plain objects as JSON, falling back when the object is
// cyclic or not serialisable.
func (e *Evaluator) stringify(obj *goja.Object) (string, bool) {
	jsonObj, ok := e.vm.Get("JSON").(*goja.Object)
	if !ok {
		return "", false
	}
	fn, ok := goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return "", false
	}
	out, err := fn(jsonObj, obj)
	if err != nil || out == nil || goja.IsUndefined(out) {
		return "", false
	}
	return out.String(), true
}
