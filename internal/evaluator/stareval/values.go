package stareval

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/itsmostafa/goprobe/internal/history"
)

// toStarlark converts Go values to Starlark values.
func toStarlark(v any) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case starlark.Value:
		return x
	case string:
		return starlark.String(x)
	case bool:
		return starlark.Bool(x)
	case int:
		return starlark.MakeInt(x)
	case int64:
		return starlark.MakeInt64(x)
	case float64:
		return starlark.Float(x)
	case []string:
		elems := make([]starlark.Value, len(x))
		for i, s := range x {
			elems[i] = starlark.String(s)
		}
		return starlark.NewList(elems)
	case []any:
		elems := make([]starlark.Value, len(x))
		for i, item := range x {
			elems[i] = toStarlark(item)
		}
		return starlark.NewList(elems)
	case history.Indexed:
		return &historyValue{h: x}
	case error:
		return starlark.String(x.Error())
	default:
		return starlark.String(fmt.Sprintf("%v", x))
	}
}

// fromStarlark converts Starlark values to Go values.
func fromStarlark(v starlark.Value) any {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(x)
	case starlark.Int:
		if n, ok := x.Int64(); ok {
			return n
		}
		return x.String()
	case starlark.Float:
		return float64(x)
	case starlark.String:
		return string(x)
	case *starlark.List:
		out := make([]any, x.Len())
		for i := range x.Len() {
			out[i] = fromStarlark(x.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = fromStarlark(item)
		}
		return out
	case *starlark.Dict:
		out := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			out[keyString(item[0])] = fromStarlark(item[1])
		}
		return out
	default:
		return v.String()
	}
}

func keyString(v starlark.Value) string {
	if s, ok := v.(starlark.String); ok {
		return string(s)
	}
	return v.String()
}

// historyValue exposes a history array to Starlark. Plain indexing follows
// Starlark rules over the retained values; get() takes logical indices.
type historyValue struct {
	h history.Indexed
}

var (
	_ starlark.Indexable = (*historyValue)(nil)
	_ starlark.HasAttrs  = (*historyValue)(nil)
)

func (v *historyValue) String() string {
	return fmt.Sprintf("<history len=%d max_size=%d>", v.h.Len(), v.h.MaxSize())
}

func (v *historyValue) Type() string         { return "history" }
func (v *historyValue) Freeze()              {}
func (v *historyValue) Truth() starlark.Bool { return v.h.Len() > 0 }

func (v *historyValue) Hash() (uint32, error) {
	return 0, errors.New("unhashable type: history")
}

func (v *historyValue) Len() int { return v.h.Len() }

func (v *historyValue) Index(i int) starlark.Value {
	val, err := v.h.Value(i - v.h.Len())
	if err != nil {
		return starlark.None
	}
	return toStarlark(val)
}

func (v *historyValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "max_size":
		return starlark.MakeInt(v.h.MaxSize()), nil
	case "get":
		return starlark.NewBuiltin("get", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var index int
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &index); err != nil {
				return nil, err
			}
			val, err := v.h.Value(index)
			if err != nil {
				return nil, err
			}
			return toStarlark(val), nil
		}), nil
	}
	return nil, nil
}

func (v *historyValue) AttrNames() []string {
	return []string{"get", "max_size"}
}
