package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmostafa/goprobe/internal/config"
	"github.com/itsmostafa/goprobe/internal/evaluator"
	"github.com/itsmostafa/goprobe/internal/evaluator/jseval"
	"github.com/itsmostafa/goprobe/internal/evaluator/stareval"
	"github.com/itsmostafa/goprobe/internal/evaluator/tengoeval"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ShouldLoadRC = false
	cfg.Color = false
	return cfg
}

func newEvaluator(t *testing.T, out io.Writer) *jseval.Evaluator {
	t.Helper()
	cfg := jseval.DefaultConfig()
	cfg.Stdout = out
	ev, err := jseval.New(cfg)
	require.NoError(t, err)
	return ev
}

type harness struct {
	session *Session
	input   *LinesInput
	out     *bytes.Buffer
	ev      evaluator.Evaluator
}

func newHarness(t *testing.T, lines ...string) *harness {
	t.Helper()
	out := &bytes.Buffer{}
	return newHarnessWith(t, Options{Evaluator: newEvaluator(t, out), Output: out, Config: testConfig()}, lines...)
}

func newHarnessWith(t *testing.T, opts Options, lines ...string) *harness {
	t.Helper()
	in := NewLinesInput(lines...)
	opts.Input = in
	if opts.Process == nil {
		opts.Process = NewProcess()
	}
	out, _ := opts.Output.(*bytes.Buffer)
	s, err := New(opts)
	require.NoError(t, err)
	return &harness{session: s, input: in, out: out, ev: opts.Evaluator}
}

func (h *harness) run(t *testing.T) any {
	t.Helper()
	v, err := h.session.Run(context.Background())
	require.NoError(t, err)
	return v
}

func (h *harness) last() any {
	return h.ev.Export(h.session.LastResult())
}

const outOfInput = "Error: goprobe ran out of things to read; ending session\n"

func TestRun_LastResult(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  any
	}{
		{name: "underscore holds the last value", lines: []string{"2", "_ + 82"}, want: int64(84)},
		{name: "empty line keeps the last value", lines: []string{"2 + 2", "", "   ", "_ + 92"}, want: int64(96)},
		{name: "error becomes the last result", lines: []string{"null.x", "_.name"}, want: "TypeError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.lines...)
			h.run(t)
			assert.Equal(t, tt.want, h.last())
		})
	}
}

func TestRun_CommandWithoutKeepRetvalLeavesLastResult(t *testing.T) {
	h := newHarness(t, "2 + 2", "noop", "_ + 96")
	require.NoError(t, h.session.Commands().Register(Command{
		Name: "noop",
		Action: func(context.Context, *Session, string) (Outcome, error) {
			return Return(42), nil
		},
	}))

	h.run(t)
	assert.Equal(t, int64(100), h.last())
	assert.Equal(t, 2, h.session.Inputs().Len())
}

func TestRun_CommandWithKeepRetvalPublishes(t *testing.T) {
	h := newHarness(t, "seven", "_ + 1")
	require.NoError(t, h.session.Commands().Register(Command{
		Name:       "seven",
		KeepRetval: true,
		Action: func(context.Context, *Session, string) (Outcome, error) {
			return Return(7), nil
		},
	}))

	h.run(t)
	assert.Equal(t, int64(8), h.last())
	assert.Equal(t, "=> 7\n=> 8\n"+outOfInput, h.out.String())
}

func TestRun_Suppression(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "terminator suppresses", line: "x = 5;", want: outOfInput},
		{name: "value is shown", line: "x = 5", want: "=> 5\n" + outOfInput},
		{name: "terminator in a string", line: `"a;"`, want: `=> "a;"` + "\n" + outOfInput},
		{name: "quote in a regex", line: `s = "a'b".replace(/'/g, "");`, want: outOfInput},
		{name: "division is not a regex", line: `s = 6 / 3 / 2`, want: "=> 1\n" + outOfInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.line)
			h.run(t)
			assert.Equal(t, tt.want, h.out.String())
		})
	}
}

func TestRun_ErrorsAreAlwaysShown(t *testing.T) {
	h := newHarness(t, "null.x;")
	h.run(t)
	assert.True(t, strings.HasPrefix(h.out.String(), "TypeError: "))
	assert.True(t, strings.HasSuffix(h.out.String(), outOfInput))
}

func TestRun_UserErrorIsRecorded(t *testing.T) {
	h := newHarness(t, "undefined_function()", "_ex_.name", "1 + 1")
	h.run(t)

	first, err := h.session.Outputs().Get(1)
	require.NoError(t, err)
	assert.True(t, first.Errored())
	assert.Contains(t, first.Err().Error(), "ReferenceError")

	second, err := h.session.Outputs().Get(2)
	require.NoError(t, err)
	assert.Equal(t, "ReferenceError", h.ev.Export(second.Value()))

	assert.Equal(t, int64(2), h.last())
	assert.Error(t, h.session.LastException())
}

func TestRun_FatalErrorPropagates(t *testing.T) {
	process := NewProcess()
	out := &bytes.Buffer{}
	h := newHarnessWith(t, Options{Evaluator: newEvaluator(t, out), Output: out, Config: testConfig(), Process: process}, "1", "exit(3)", "2")

	_, err := h.session.Run(context.Background())
	var exit *evaluator.ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 3, exit.Code)

	assert.False(t, process.Critical.Active())
	assert.Equal(t, StateExited, h.session.State())
	assert.Len(t, h.input.Prompts, 2)
}

func TestRun_ExitProgramCommand(t *testing.T) {
	h := newHarness(t, "!!! 5")
	_, err := h.session.Run(context.Background())

	var exit *evaluator.ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 5, exit.Code)
}

func TestRun_CancelledContextIsFatal(t *testing.T) {
	process := NewProcess()
	out := &bytes.Buffer{}
	h := newHarnessWith(t, Options{Evaluator: newEvaluator(t, out), Output: out, Config: testConfig(), Process: process}, "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.session.Run(ctx)
	assert.ErrorIs(t, err, evaluator.ErrTerminated)
	assert.False(t, process.Critical.Active())
}

func TestRun_AlreadyRunning(t *testing.T) {
	process := NewProcess()
	require.True(t, process.Critical.Enter())

	out := &bytes.Buffer{}
	h := newHarnessWith(t, Options{Evaluator: newEvaluator(t, out), Output: out, Config: testConfig(), Process: process}, "1")
	v, err := h.session.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Equal(t, "Error: goprobe session already running in this process\n", out.String())
	assert.Empty(t, h.input.Prompts)
	assert.True(t, process.Critical.Active())
}

func TestRun_NestedStartReturnsImmediately(t *testing.T) {
	process := NewProcess()
	out := &bytes.Buffer{}
	ev := newEvaluator(t, out)
	h := newHarnessWith(t, Options{Evaluator: ev, Output: out, Config: testConfig(), Process: process}, "nested")

	var (
		nestedInput = NewLinesInput("1")
		wasActive   bool
	)
	require.NoError(t, h.session.Commands().Register(Command{
		Name: "nested",
		Action: func(ctx context.Context, s *Session, _ string) (Outcome, error) {
			wasActive = process.Critical.Active()
			_, err := Start(ctx, Options{Evaluator: ev, Input: nestedInput, Output: s.Output(), Config: testConfig(), Process: process})
			return NoResult(), err
		},
	}))

	h.run(t)
	assert.True(t, wasActive)
	assert.Empty(t, nestedInput.Prompts)
	assert.Contains(t, out.String(), "already running")
	assert.False(t, process.Critical.Active())
}

func TestRun_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Disabled = true
	out := &bytes.Buffer{}
	process := NewProcess()
	h := newHarnessWith(t, Options{Evaluator: newEvaluator(t, out), Output: out, Config: cfg, Process: process}, "1")

	v, err := h.session.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Empty(t, out.String())
	assert.Empty(t, h.input.Prompts)
	assert.Equal(t, StateIdle, h.session.State())
}

func TestRun_CdAndExit(t *testing.T) {
	h := newHarness(t, "var o = {a: {b: 1}};", "cd o", "cd a", "b", "exit", "exit", "2")
	h.run(t)

	assert.Equal(t, []string{
		"[1] goprobe(main)> ",
		"[2] goprobe(main)> ",
		"[2] goprobe(#<Object>:1)> ",
		"[2] goprobe(#<Object>:2)> ",
		"[3] goprobe(#<Object>:2)> ",
		"[3] goprobe(#<Object>:1)> ",
		"[3] goprobe(main)> ",
		"[4] goprobe(main)> ",
	}, h.input.Prompts)
	assert.Equal(t, int64(2), h.last())
}

func TestRun_CdNavigation(t *testing.T) {
	var depths []int
	h := newHarness(t, "var o = {a: {}};", "cd o", "cd a", "d", "cd ..", "d", "cd a", "cd /", "d", "cd o", "cd a", "jump-to 1", "d", "cd ..", "cd ..", "d")
	require.NoError(t, h.session.Commands().Register(Command{
		Name: "d",
		Action: func(_ context.Context, s *Session, _ string) (Outcome, error) {
			depths = append(depths, s.Stack().Depth())
			return NoResult(), nil
		},
	}))

	h.run(t)
	assert.Equal(t, []int{2, 1, 0, 1, 0}, depths)
}

func TestRun_ExitAllFromDepth(t *testing.T) {
	h := newHarness(t, "var o = {};", "cd o", "cd o", "cd o", "exit-all", "1 + 1")
	v := h.run(t)

	assert.Nil(t, v)
	assert.Len(t, h.input.Prompts, 5)
	assert.Equal(t, 0, h.session.Stack().Len())
	assert.NotContains(t, h.out.String(), "ran out of things to read")
}

func TestRun_ExitValue(t *testing.T) {
	tests := []struct {
		line string
		want any
	}{
		{line: "exit 40 + 2", want: int64(42)},
		{line: "!!@ 'bye'", want: "bye"},
		{line: "exit", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			h := newHarness(t, tt.line, "1")
			assert.Equal(t, tt.want, h.run(t))
			assert.Len(t, h.input.Prompts, 1)
		})
	}
}

func TestRun_MultilineInput(t *testing.T) {
	h := newHarness(t, "function f() {", "  return 5", "}", "f()")
	h.run(t)

	assert.Equal(t, []string{
		"[1] goprobe(main)> ",
		"[1] goprobe(main)* ",
		"[1] goprobe(main)* ",
		"[2] goprobe(main)> ",
		"[3] goprobe(main)> ",
	}, h.input.Prompts)
	assert.Equal(t, int64(5), h.last())

	first, err := h.session.Inputs().Get(1)
	require.NoError(t, err)
	assert.Equal(t, "function f() {\n  return 5\n}\n", first)
}

func TestRun_ClearBuffer(t *testing.T) {
	h := newHarness(t, "[1,", "!", "3")
	h.run(t)
	assert.Equal(t, int64(3), h.last())
	assert.Contains(t, h.out.String(), "Input buffer cleared!\n")
}

func TestRun_ShowInput(t *testing.T) {
	h := newHarness(t, "[1,", "2,", "show-input", "3]")
	h.run(t)
	assert.Contains(t, h.out.String(), "1: [1,\n2: 2,\n")
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, h.last())
}

func TestRun_RewriteCommand(t *testing.T) {
	h := newHarness(t, "double 21")
	require.NoError(t, h.session.Commands().Register(Command{
		Name: "double",
		Action: func(_ context.Context, _ *Session, args string) (Outcome, error) {
			return Rewrite("2 * (" + args + ")"), nil
		},
	}))

	h.run(t)
	assert.Equal(t, int64(42), h.last())
	first, err := h.session.Inputs().Get(-1)
	require.NoError(t, err)
	assert.Equal(t, "2 * (21)\n", first)
}

func TestRun_CommandErrorsAreReported(t *testing.T) {
	h := newHarness(t, "jump-to 9", "cd nope", "1")
	h.run(t)

	assert.Contains(t, h.out.String(), "Error: invalid nest level: must be between 0 and 0, got 9\n")
	assert.Contains(t, h.out.String(), "nope is not defined")
	assert.Equal(t, int64(1), h.last())
}

func TestRun_AssignmentToCommandNameEvaluates(t *testing.T) {
	h := newHarness(t, "ls = 5", "ls+1")
	h.run(t)
	assert.Equal(t, int64(6), h.last())
}

func TestRun_ExceptionHandler(t *testing.T) {
	var handled []error
	out := &bytes.Buffer{}
	h := newHarnessWith(t, Options{
		Evaluator: newEvaluator(t, out),
		Output:    out,
		Config:    testConfig(),
		ExceptionHandler: func(w io.Writer, err error, _ *Session) {
			handled = append(handled, err)
		},
	}, `throw new Error("messin with ya")`)

	h.run(t)
	require.Len(t, handled, 1)
	assert.Equal(t, "messin with ya", evaluator.Message(handled[0]))
	assert.NotContains(t, out.String(), "messin with ya")
}

func TestRun_HistoryBindings(t *testing.T) {
	cfg := testConfig()
	cfg.MemorySize = 2
	out := &bytes.Buffer{}
	h := newHarnessWith(t, Options{Evaluator: newEvaluator(t, out), Output: out, Config: cfg}, "1", "2", "_in_.get(-1)", "_out_.get(-2)")

	h.run(t)
	assert.Equal(t, int64(2), h.last())
	assert.Equal(t, 2, h.session.Inputs().MaxSize())
	assert.Equal(t, 2, h.session.Outputs().Len())
	assert.Equal(t, 4, h.session.Inputs().Count())

	third, err := h.session.Outputs().Get(3)
	require.NoError(t, err)
	assert.Equal(t, "2\n", h.ev.Export(third.Value()))

	_, err = h.session.Outputs().Get(1)
	assert.Error(t, err)
}

func TestRun_StartupScripts(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.js")
	good := filepath.Join(dir, "good.js")
	require.NoError(t, os.WriteFile(bad, []byte(`throw new Error("boom")`), 0o644))
	require.NoError(t, os.WriteFile(good, []byte("var loads = (typeof loads === 'undefined' ? 0 : loads) + 1;"), 0o644))

	cfg := testConfig()
	cfg.ShouldLoadRC = true
	cfg.HomeRC = bad
	cfg.LocalRC = good

	out := &bytes.Buffer{}
	ev := newEvaluator(t, out)
	process := NewProcess()

	first := newHarnessWith(t, Options{Evaluator: ev, Output: out, Config: cfg, Process: process}, "loads")
	first.run(t)
	assert.True(t, strings.HasPrefix(out.String(), "Error loading "+bad+": boom\n"))
	assert.Equal(t, int64(1), first.last())

	out.Reset()
	second := newHarnessWith(t, Options{Evaluator: ev, Output: out, Config: cfg, Process: process}, "loads")
	second.run(t)
	assert.NotContains(t, out.String(), "Error loading")
	assert.Equal(t, int64(1), second.last())
}

func TestRun_InputExhaustedMidBuffer(t *testing.T) {
	h := newHarness(t, "[1,")
	v := h.run(t)
	assert.Nil(t, v)
	assert.Equal(t, outOfInput, h.out.String())
	assert.Equal(t, 0, h.session.Inputs().Len())
}

func TestRun_ReadError(t *testing.T) {
	out := &bytes.Buffer{}
	process := NewProcess()
	s, err := New(Options{
		Evaluator: newEvaluator(t, out),
		Input: InputFunc(func(string) (string, error) {
			return "", errors.New("tty gone")
		}),
		Output:  out,
		Config:  testConfig(),
		Process: process,
	})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	assert.ErrorContains(t, err, "tty gone")
	assert.False(t, process.Critical.Active())
}

func TestRun_InfoCommands(t *testing.T) {
	h := newHarness(t, "var zzz = 1;", "ls", "help", "var o = {};", "cd o", "nesting", "history 1")
	h.run(t)

	out := h.out.String()
	assert.Contains(t, out, "zzz")
	assert.Contains(t, out, "exit-all")
	assert.Contains(t, out, "Show the context stack")
	assert.Contains(t, out, "0. main (goprobe top level)\n1. #<Object>\n")
	assert.Contains(t, out, "2: var o = {};\n")
	assert.NotContains(t, out, "1: var zzz")
}

func TestRun_Starlark(t *testing.T) {
	out := &bytes.Buffer{}
	ev := stareval.New(out)
	h := newHarnessWith(t, Options{Evaluator: ev, Output: out, Config: testConfig()},
		"def f(n):", "  return n * 2", "", "f(21)", "x = 1;", "_in_.get(-2)")

	h.run(t)
	assert.Equal(t, "f(21)\n", h.last())
	assert.Equal(t, []string{
		"[1] goprobe(main)> ",
		"[1] goprobe(main)* ",
		"[1] goprobe(main)* ",
		"[2] goprobe(main)> ",
		"[3] goprobe(main)> ",
		"[4] goprobe(main)> ",
		"[5] goprobe(main)> ",
	}, h.input.Prompts)
	assert.Contains(t, out.String(), "=> 42\n")
}

func TestRun_Tengo(t *testing.T) {
	out := &bytes.Buffer{}
	ev := tengoeval.New(out)
	h := newHarnessWith(t, Options{Evaluator: ev, Output: out, Config: testConfig()},
		"double := func(n) {", "  return n * 2", "}", "double(21)", "x := 1;", "_in_[-2]")

	h.run(t)
	assert.Equal(t, "double(21)\n", h.last())
	assert.Equal(t, []string{
		"[1] goprobe(main)> ",
		"[1] goprobe(main)* ",
		"[1] goprobe(main)* ",
		"[2] goprobe(main)> ",
		"[3] goprobe(main)> ",
		"[4] goprobe(main)> ",
		"[5] goprobe(main)> ",
	}, h.input.Prompts)
	assert.Contains(t, out.String(), "=> 42\n")
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{Input: NewLinesInput()})
	assert.Error(t, err)

	_, err = New(Options{Evaluator: newEvaluator(t, io.Discard)})
	assert.Error(t, err)
}

func TestNew_TargetSeedsStack(t *testing.T) {
	out := &bytes.Buffer{}
	ev := newEvaluator(t, out)
	target, err := ev.Evaluate(context.Background(), ev.TopLevel(), "(test)", "({n: 3})")
	require.NoError(t, err)

	h := newHarnessWith(t, Options{Evaluator: ev, Output: out, Config: testConfig(), Target: target}, "this.n", "exit")
	h.run(t)
	assert.Equal(t, int64(3), h.last())
	assert.Equal(t, "[1] goprobe(#<Object>)> ", h.input.Prompts[0])
}
