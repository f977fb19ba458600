package session

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itsmostafa/goprobe/internal/evaluator"
)

func TestStylePrinter_Format(t *testing.T) {
	p := NewStylePrinter(&bytes.Buffer{}, func(v any) string { return fmt.Sprintf("<%v>", v) }, false)

	tests := []struct {
		name   string
		result EvalResult
		want   string
	}{
		{name: "value", result: ValueResult(42), want: "=> <42>"},
		{name: "multi-line value", result: ValueResult("a\nbb"), want: "=> <a\nbb>"},
		{name: "host error", result: ErroredResult(&evaluator.Error{Name: "RangeError", Message: "bad"}), want: "RangeError: bad"},
		{name: "plain error", result: ErroredResult(errors.New("oops")), want: "Error: oops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Format(tt.result))
		})
	}
}

func TestEvalResult_Retained(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, 1, ValueResult(1).Retained())
	assert.Equal(t, err, ErroredResult(err).Retained())
	assert.True(t, ErroredResult(err).Errored())
	assert.False(t, ValueResult(nil).Errored())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "reading", StateReading.String())
	assert.Equal(t, "exited", StateExited.String())
	assert.Equal(t, "State(99)", State(99).String())
}
