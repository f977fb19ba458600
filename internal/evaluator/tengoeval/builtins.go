package tengoeval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/d5/tengo/v2"

	"github.com/itsmostafa/goprobe/internal/evaluator"
)

// builtinFunctions returns the functions added to every script.
func (e *Evaluator) builtinFunctions() map[string]*tengo.UserFunction {
	fns := []*tengo.UserFunction{
		{Name: "println", Value: e.printFunc("\n")},
		{Name: "print", Value: e.printFunc("")},
		{Name: "exit", Value: exitFunc},
		{Name: "contains", Value: containsFunc},
		{Name: "split", Value: splitFunc},
		{Name: "join", Value: joinFunc},
		{Name: "find_all", Value: findAllFunc},
		{Name: "replace", Value: replaceFunc},
	}
	out := make(map[string]*tengo.UserFunction, len(fns))
	for _, fn := range fns {
		out[fn.Name] = fn
	}
	return out
}

func (e *Evaluator) printFunc(end string) tengo.CallableFunc {
	return func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = objectToString(arg)
		}
		fmt.Fprint(e.stdout, strings.Join(parts, " ")+end)
		return tengo.UndefinedValue, nil
	}
}

// exitFunc asks the process to exit; the error is fatal to the session.
func exitFunc(args ...tengo.Object) (tengo.Object, error) {
	code := 0
	if len(args) > 0 {
		n, ok := tengo.ToInt(args[0])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "first", Expected: "int", Found: args[0].TypeName()}
		}
		code = n
	}
	return nil, &evaluator.ExitError{Code: code}
}

func containsFunc(args ...tengo.Object) (tengo.Object, error) {
	if len(args) < 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	s, substr, err := twoStrings(args)
	if err != nil {
		return nil, err
	}
	if strings.Contains(s, substr) {
		return tengo.TrueValue, nil
	}
	return tengo.FalseValue, nil
}

func splitFunc(args ...tengo.Object) (tengo.Object, error) {
	if len(args) < 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	s, sep, err := twoStrings(args)
	if err != nil {
		return nil, err
	}
	return stringArray(strings.Split(s, sep)), nil
}

func joinFunc(args ...tengo.Object) (tengo.Object, error) {
	if len(args) < 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	arr, ok := args[0].(*tengo.Array)
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "first", Expected: "array", Found: args[0].TypeName()}
	}
	sep, ok := tengo.ToString(args[1])
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "second", Expected: "string", Found: args[1].TypeName()}
	}
	strs := make([]string, len(arr.Value))
	for i, v := range arr.Value {
		strs[i] = objectToString(v)
	}
	return &tengo.String{Value: strings.Join(strs, sep)}, nil
}

func findAllFunc(args ...tengo.Object) (tengo.Object, error) {
	if len(args) < 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	pattern, text, err := twoStrings(args)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %v", err)
	}
	return stringArray(re.FindAllString(text, -1)), nil
}

func replaceFunc(args ...tengo.Object) (tengo.Object, error) {
	if len(args) < 3 {
		return nil, tengo.ErrWrongNumArguments
	}
	s, old, err := twoStrings(args)
	if err != nil {
		return nil, err
	}
	repl, ok := tengo.ToString(args[2])
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "third", Expected: "string", Found: args[2].TypeName()}
	}
	return &tengo.String{Value: strings.ReplaceAll(s, old, repl)}, nil
}

func twoStrings(args []tengo.Object) (string, string, error) {
	a, ok := tengo.ToString(args[0])
	if !ok {
		return "", "", tengo.ErrInvalidArgumentType{Name: "first", Expected: "string", Found: args[0].TypeName()}
	}
	b, ok := tengo.ToString(args[1])
	if !ok {
		return "", "", tengo.ErrInvalidArgumentType{Name: "second", Expected: "string", Found: args[1].TypeName()}
	}
	return a, b, nil
}

func stringArray(items []string) *tengo.Array {
	arr := make([]tengo.Object, len(items))
	for i, s := range items {
		arr[i] = &tengo.String{Value: s}
	}
	return &tengo.Array{Value: arr}
}
