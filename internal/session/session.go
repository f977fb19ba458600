// Package session runs the read-eval-print loop: it reads lines, dispatches
// commands, hands code to an evaluator and publishes results to history.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/itsmostafa/goprobe/internal/config"
	"github.com/itsmostafa/goprobe/internal/evaluator"
	"github.com/itsmostafa/goprobe/internal/history"
	"github.com/itsmostafa/goprobe/internal/rc"
)

// Diagnostics written to the output
const (
	msgAlreadyRunning = "goprobe session already running in this process"
	msgOutOfInput     = "goprobe ran out of things to read; ending session"
)

// filename is passed to the evaluator for interactive input.
const filename = "(goprobe)"

// State is a step of the session loop.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateReading
	StateClassifying
	StateCommandExecuting
	StateEvaluating
	StatePublishing
	StateExited
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateReading:
		return "reading"
	case StateClassifying:
		return "classifying"
	case StateCommandExecuting:
		return "command"
	case StateEvaluating:
		return "evaluating"
	case StatePublishing:
		return "publishing"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ExceptionHandler is called with every error raised by user code. It
// replaces the default of printing the error.
type ExceptionHandler func(w io.Writer, err error, s *Session)

// Options configures a Session.
type Options struct {
	// Evaluator runs host code (required)
	Evaluator evaluator.Evaluator

	// Target is the host value to start in (default: the top level)
	Target any

	// Input supplies lines (required)
	Input InputSource

	// Output receives results and diagnostics (default: os.Stdout)
	Output io.Writer

	// Printer formats results (default: a StylePrinter on Output)
	Printer Printer

	// Commands is the command registry (default: DefaultRegistry())
	Commands *Registry

	// ExceptionHandler replaces printing of user errors
	ExceptionHandler ExceptionHandler

	// Config is the configuration snapshot, normally config.Default() with
	// overrides applied
	Config config.Config

	// Process holds the process-wide guards (default: DefaultProcess)
	Process *Process

	// HomeDir resolves ~ in startup script paths (default: os.UserHomeDir)
	HomeDir func() (string, error)

	// Logger receives debug records (default: slog.Default())
	Logger *slog.Logger
}

// Session is one read-eval-print loop.
type Session struct {
	ID string

	ev       evaluator.Evaluator
	start    *evaluator.Context
	input    InputSource
	output   io.Writer
	printer  Printer
	commands *Registry
	handler  ExceptionHandler
	cfg      config.Config
	process  *Process
	homeDir  func() (string, error)
	logger   *slog.Logger
	styles   styles

	stack         *ContextStack
	inputs        *history.Array[string]
	outputs       *history.Array[EvalResult]
	lastResult    any
	lastException error
	buffer        string
	state         State
	exited        bool
	exitValue     any
}

// New creates a Session. Nothing runs until Run is called.
func New(opts Options) (*Session, error) {
	if opts.Evaluator == nil {
		return nil, errors.New("session requires an evaluator")
	}
	if opts.Input == nil {
		return nil, errors.New("session requires an input source")
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Commands == nil {
		opts.Commands = DefaultRegistry()
	}
	if opts.Process == nil {
		opts.Process = DefaultProcess
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Printer == nil {
		opts.Printer = NewStylePrinter(opts.Output, opts.Evaluator.Inspect, opts.Config.Color)
	}

	start := opts.Evaluator.TopLevel()
	if opts.Target != nil {
		start = opts.Evaluator.ContextFor(opts.Target)
	}

	id := uuid.New().String()
	return &Session{
		ID:       id,
		ev:       opts.Evaluator,
		start:    start,
		input:    opts.Input,
		output:   opts.Output,
		printer:  opts.Printer,
		commands: opts.Commands,
		handler:  opts.ExceptionHandler,
		cfg:      opts.Config,
		process:  opts.Process,
		homeDir:  opts.HomeDir,
		logger:   opts.Logger.With(slog.String("session", id)),
		styles:   newStyles(opts.Output, opts.Config.Color),
		stack:    NewContextStack(start),
		inputs:   history.New[string](opts.Config.MemorySize),
		outputs:  history.New[EvalResult](opts.Config.MemorySize),
	}, nil
}

// Start creates a session and runs it.
func Start(ctx context.Context, opts Options) (any, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}

// Run loops until the session exits and returns the exit value. Errors
// raised by user code are published and the loop continues; only fatal
// evaluator errors (see evaluator.IsFatal) and input failures are returned.
//
// A disabled session returns immediately. A session started while another
// one is active in the same Process writes a diagnostic and returns nil.
func (s *Session) Run(ctx context.Context) (any, error) {
	if s.cfg.Disabled {
		s.logger.Debug("session disabled")
		return nil, nil
	}
	if !s.process.Critical.Enter() {
		s.diagnose(msgAlreadyRunning)
		return nil, nil
	}
	defer s.process.Critical.Exit()
	defer s.setState(StateExited)

	s.setState(StateStarting)
	s.logger.Debug("session starting", slog.String("language", s.ev.Language()))

	loader := &rc.Loader{
		State:   s.process.RC,
		Paths:   rc.Paths(s.cfg),
		HomeDir: s.homeDir,
		Logger:  s.logger,
	}
	if err := loader.Load(ctx, s.ev, s.output); err != nil {
		return nil, err
	}

	s.stack.Reset(s.start)
	s.exited = false
	s.exitValue = nil
	s.bind("_in_", s.inputs)
	s.bind("_out_", history.Map(s.outputs, EvalResult.Retained))

	for !s.exited {
		if err := s.step(ctx); err != nil {
			s.logger.Debug("session aborted", slog.String("error", err.Error()))
			return nil, err
		}
	}
	s.logger.Debug("session ended", slog.Int("inputs", s.inputs.Count()))
	return s.ev.Export(s.exitValue), nil
}

// step reads one line and acts on it.
func (s *Session) step(ctx context.Context) error {
	s.setState(StateReading)
	line, err := s.input.ReadLine(s.Prompt())
	if errors.Is(err, io.EOF) {
		s.diagnose(msgOutOfInput)
		s.End(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	s.setState(StateClassifying)
	if cmd, args, ok := s.commands.Match(line); ok {
		return s.runCommand(ctx, cmd, args, line)
	}
	return s.accept(ctx, line)
}

// accept adds line to the buffer and evaluates the buffer once complete.
func (s *Session) accept(ctx context.Context, line string) error {
	s.buffer += line + "\n"
	if strings.TrimSpace(s.buffer) == "" {
		s.buffer = ""
		return nil
	}
	if !s.ev.IsComplete(s.buffer) {
		return nil
	}
	src := s.buffer
	s.buffer = ""
	return s.evaluate(ctx, src)
}

func (s *Session) runCommand(ctx context.Context, cmd Command, args, line string) error {
	s.setState(StateCommandExecuting)
	s.logger.Debug("running command", slog.String("command", cmd.Name))

	out, err := cmd.Action(ctx, s, args)
	if err != nil {
		if evaluator.IsFatal(err) {
			return err
		}
		s.diagnose(evaluator.Message(err))
		return nil
	}

	switch out.kind {
	case outcomeRewrite:
		return s.accept(ctx, out.src)
	case outcomeReturn:
		if cmd.KeepRetval {
			s.publish(line, ValueResult(out.value))
		}
	}
	return nil
}

func (s *Session) evaluate(ctx context.Context, src string) error {
	s.setState(StateEvaluating)
	v, err := s.ev.Evaluate(ctx, s.stack.Current(), filename, src)
	if err != nil {
		if evaluator.IsFatal(err) {
			return err
		}
		s.publish(src, ErroredResult(err))
		return nil
	}
	s.publish(src, ValueResult(v))
	return nil
}

// publish records a result and shows it unless the input was suppressed.
// Errors are always shown.
func (s *Session) publish(src string, r EvalResult) {
	s.setState(StatePublishing)
	s.inputs.Push(src)
	s.outputs.Push(r)
	s.lastResult = r.Retained()
	s.bind("_", s.lastResult)

	if r.Errored() {
		s.lastException = r.Err()
		s.bind("_ex_", s.lastException)
		if s.handler != nil {
			s.handler(s.output, r.Err(), s)
			return
		}
		fmt.Fprintln(s.output, s.printer.Format(r))
		return
	}

	if s.ev.Suppressed(src) {
		return
	}
	fmt.Fprintln(s.output, s.printer.Format(r))
}

func (s *Session) bind(name string, v any) {
	if err := s.ev.Bind(name, v); err != nil {
		s.logger.Warn("failed to bind", slog.String("name", name), slog.String("error", err.Error()))
	}
}

func (s *Session) setState(state State) {
	s.state = state
}

// diagnose writes an "Error: " line to the output.
func (s *Session) diagnose(msg string) {
	fmt.Fprintln(s.output, s.styles.render(s.styles.errorText, "Error: "+msg))
}

// Prompt returns the prompt for the next line: the input number, the
// current context label with its depth, and '*' while input is pending.
func (s *Session) Prompt() string {
	label := s.ev.Label(s.stack.Current())
	if depth := s.stack.Depth(); depth > 0 {
		label = fmt.Sprintf("%s:%d", label, depth)
	}
	sep := ">"
	if s.buffer != "" {
		sep = "*"
	}
	prompt := fmt.Sprintf("[%d] goprobe(%s)%s ", s.inputs.Count()+1, label, sep)
	return s.styles.render(s.styles.prompt, prompt)
}

// End stops the loop after the current line; Run returns v.
func (s *Session) End(v any) {
	s.exited = true
	s.exitValue = v
}

// Printf writes formatted text to the session output.
func (s *Session) Printf(format string, args ...any) {
	fmt.Fprintf(s.output, format, args...)
}

// Output returns the session output writer.
func (s *Session) Output() io.Writer { return s.output }

// Evaluator returns the host evaluator.
func (s *Session) Evaluator() evaluator.Evaluator { return s.ev }

// Stack returns the context stack.
func (s *Session) Stack() *ContextStack { return s.stack }

// Commands returns the command registry.
func (s *Session) Commands() *Registry { return s.commands }

// Inputs returns the input history.
func (s *Session) Inputs() *history.Array[string] { return s.inputs }

// Outputs returns the output history.
func (s *Session) Outputs() *history.Array[EvalResult] { return s.outputs }

// LastResult returns the most recent result: a value or an error.
func (s *Session) LastResult() any { return s.lastResult }

// LastException returns the most recent error raised by user code.
func (s *Session) LastException() error { return s.lastException }

// Buffer returns the pending multi-line input.
func (s *Session) Buffer() string { return s.buffer }

// ClearBuffer discards the pending input.
func (s *Session) ClearBuffer() { s.buffer = "" }

// State returns the current loop state.
func (s *Session) State() State { return s.state }

// Config returns the configuration snapshot.
func (s *Session) Config() config.Config { return s.cfg }
