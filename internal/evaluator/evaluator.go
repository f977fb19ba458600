// Package evaluator defines the contract between the session engine and a
// host-language interpreter. The engine never evaluates code itself; it hands
// source text and an evaluation context to an Evaluator.
package evaluator

import "context"

// Context is an evaluation target: the object or scope code runs against, plus
// the label shown in prompts. Contexts are created only by an Evaluator.
type Context struct {
	// Target is the host value acting as the receiver ("this" / "self")
	Target any

	// Name is the display label, e.g. "main" for the top level
	Name string
}

// Evaluator runs host-language code for a session.
type Evaluator interface {
	// Language returns the host language name for display purposes
	Language() string

	// TopLevel returns the top-level context. Repeated calls return the same pointer.
	TopLevel() *Context

	// ContextFor returns a context whose target is v. The top-level target
	// maps back to TopLevel().
	ContextFor(v any) *Context

	// Label returns the prompt label for c.
	Label(c *Context) string

	// Evaluate runs src against c. User-code failures are returned as *Error;
	// process-termination requests are returned as errors for which IsFatal is true.
	Evaluate(ctx context.Context, c *Context, filename, src string) (any, error)

	// IsComplete reports whether src forms a complete unit that can be evaluated.
	// It must not treat syntax errors other than premature end of input as incomplete.
	IsComplete(src string) bool

	// Suppressed reports whether src ends in the host's display-suppression terminator.
	Suppressed(src string) bool

	// Bind makes v visible to user code under name.
	Bind(name string, v any) error

	// Inspect renders a value produced by this evaluator for display.
	Inspect(v any) string

	// Export converts a host value into a plain Go value.
	Export(v any) any
}

// Lister is implemented by evaluators that can enumerate the names visible
// from a context.
type Lister interface {
	Names(c *Context) ([]string, error)
}
