package session

// EvalResult is the outcome of one evaluation: a value or an error.
type EvalResult struct {
	value any
	err   error
}

// ValueResult wraps a value produced by the evaluator.
func ValueResult(v any) EvalResult {
	return EvalResult{value: v}
}

// ErroredResult wraps an error raised by user code.
func ErroredResult(err error) EvalResult {
	return EvalResult{err: err}
}

// Errored reports whether the evaluation raised.
func (r EvalResult) Errored() bool {
	return r.err != nil
}

// Value returns the produced value (nil when errored).
func (r EvalResult) Value() any {
	return r.value
}

// Err returns the raised error (nil on success).
func (r EvalResult) Err() error {
	return r.err
}

// Retained returns what the result contributes as "the last result": the
// value, or the error itself.
func (r EvalResult) Retained() any {
	if r.err != nil {
		return r.err
	}
	return r.value
}
