package tengoeval

import (
	"fmt"

	"github.com/d5/tengo/v2"

	"github.com/itsmostafa/goprobe/internal/evaluator"
	"github.com/itsmostafa/goprobe/internal/history"
)

// toObject converts Go values to Tengo objects.
func toObject(v any) tengo.Object {
	switch x := v.(type) {
	case nil:
		return tengo.UndefinedValue
	case tengo.Object:
		return x
	case *evaluator.Error:
		if obj, ok := x.Value.(tengo.Object); ok {
			return &tengo.Error{Value: obj}
		}
		return &tengo.Error{Value: &tengo.String{Value: x.Error()}}
	case history.Indexed:
		return &historyObject{h: x}
	case []string:
		return stringArray(x)
	}
	obj, err := tengo.FromInterface(v)
	if err != nil {
		return &tengo.String{Value: fmt.Sprintf("%v", v)}
	}
	return obj
}

// objectToString converts a Tengo object to its string representation
func objectToString(obj tengo.Object) string {
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Undefined:
		return "undefined"
	default:
		return obj.String()
	}
}

// historyObject exposes a history array to Tengo. Integer indices are
// logical; len and max_size are available as selectors.
type historyObject struct {
	tengo.ObjectImpl
	h history.Indexed
}

func (o *historyObject) TypeName() string {
	return "history"
}

func (o *historyObject) String() string {
	return fmt.Sprintf("<history len=%d max_size=%d>", o.h.Len(), o.h.MaxSize())
}

func (o *historyObject) IsFalsy() bool {
	return o.h.Len() == 0
}

func (o *historyObject) Copy() tengo.Object {
	return &historyObject{h: o.h}
}

func (o *historyObject) Equals(x tengo.Object) bool {
	other, ok := x.(*historyObject)
	return ok && other.h == o.h
}

func (o *historyObject) IndexGet(index tengo.Object) (tengo.Object, error) {
	switch idx := index.(type) {
	case *tengo.Int:
		v, err := o.h.Value(int(idx.Value))
		if err != nil {
			return nil, err
		}
		return toObject(v), nil
	case *tengo.String:
		switch idx.Value {
		case "len":
			return &tengo.Int{Value: int64(o.h.Len())}, nil
		case "max_size":
			return &tengo.Int{Value: int64(o.h.MaxSize())}, nil
		}
		return tengo.UndefinedValue, nil
	}
	return nil, tengo.ErrInvalidIndexType
}
