package session

import "github.com/itsmostafa/goprobe/internal/evaluator"

// ContextStack holds the nested evaluation contexts of a session. The bottom
// entry is the context the session started in; the top is current.
type ContextStack struct {
	contexts []*evaluator.Context
}

// NewContextStack creates a stack seeded with base.
func NewContextStack(base *evaluator.Context) *ContextStack {
	s := &ContextStack{}
	s.Reset(base)
	return s
}

// Push makes c the current context.
func (s *ContextStack) Push(c *evaluator.Context) {
	s.contexts = append(s.contexts, c)
}

// Pop removes the current context. It reports false when the stack was
// already empty.
func (s *ContextStack) Pop() (*evaluator.Context, bool) {
	if len(s.contexts) == 0 {
		return nil, false
	}
	c := s.contexts[len(s.contexts)-1]
	s.contexts = s.contexts[:len(s.contexts)-1]
	return c, true
}

// Current returns the top context, or nil when the stack is empty.
func (s *ContextStack) Current() *evaluator.Context {
	if len(s.contexts) == 0 {
		return nil
	}
	return s.contexts[len(s.contexts)-1]
}

// Depth is the number of contexts above the base.
func (s *ContextStack) Depth() int {
	if len(s.contexts) == 0 {
		return 0
	}
	return len(s.contexts) - 1
}

// Len returns the number of contexts.
func (s *ContextStack) Len() int {
	return len(s.contexts)
}

// Truncate drops every context above level.
func (s *ContextStack) Truncate(level int) {
	if level < 0 {
		level = 0
	}
	if level+1 < len(s.contexts) {
		s.contexts = s.contexts[:level+1]
	}
}

// Clear empties the stack.
func (s *ContextStack) Clear() {
	s.contexts = nil
}

// Reset replaces the stack contents with base.
func (s *ContextStack) Reset(base *evaluator.Context) {
	s.contexts = []*evaluator.Context{base}
}

// Contexts returns a copy of the stack, bottom first.
func (s *ContextStack) Contexts() []*evaluator.Context {
	out := make([]*evaluator.Context, len(s.contexts))
	copy(out, s.contexts)
	return out
}
