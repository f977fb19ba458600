// Package history implements the bounded, index-stable buffers that back a
// session's input and output history.
package history

import (
	"errors"
	"fmt"
)

// DefaultSize is the capacity used when a non-positive size is requested.
const DefaultSize = 100

// ErrIndex is matched by every IndexError via errors.Is.
var ErrIndex = errors.New("history index out of range")

// IndexError reports an access outside the retained window.
type IndexError struct {
	// Index is the index as requested by the caller
	Index int
	// First and Last are the logical indices currently retained (0 when empty)
	First int
	Last  int
}

func (e *IndexError) Error() string {
	if e.Last == 0 {
		return fmt.Sprintf("history index %d out of range (history is empty)", e.Index)
	}
	return fmt.Sprintf("history index %d out of range (retained %d..%d)", e.Index, e.First, e.Last)
}

// Is reports whether target is ErrIndex.
func (e *IndexError) Is(target error) bool {
	return target == ErrIndex
}

// Indexed is the untyped read surface shared by arrays and views. Host
// evaluators use it to expose history without knowing the element type.
type Indexed interface {
	Len() int
	MaxSize() int
	Value(index int) (any, error)
}

// Array is a bounded FIFO buffer. Values are numbered from 1 in push order and
// keep their number until evicted; negative indices count back from the most
// recent value.
type Array[T any] struct {
	items []T
	head  int // position of the oldest value once the buffer has wrapped
	count int // total values ever pushed
	max   int
}

// New creates an Array holding at most maxSize values.
func New[T any](maxSize int) *Array[T] {
	if maxSize <= 0 {
		maxSize = DefaultSize
	}
	return &Array[T]{
		items: make([]T, 0, min(maxSize, 64)),
		max:   maxSize,
	}
}

// Push appends v, evicting the oldest value when the array is full.
func (a *Array[T]) Push(v T) {
	a.count++
	if len(a.items) < a.max {
		a.items = append(a.items, v)
		return
	}
	a.items[a.head] = v
	a.head = (a.head + 1) % a.max
}

// Len returns the number of retained values.
func (a *Array[T]) Len() int {
	return len(a.items)
}

// MaxSize returns the capacity fixed at construction.
func (a *Array[T]) MaxSize() int {
	return a.max
}

// Count returns how many values were ever pushed, including evicted ones.
func (a *Array[T]) Count() int {
	return a.count
}

// First returns the logical index of the oldest retained value, or 0 if empty.
func (a *Array[T]) First() int {
	if len(a.items) == 0 {
		return 0
	}
	return a.count - len(a.items) + 1
}

// Get returns the value at a logical index.
func (a *Array[T]) Get(index int) (T, error) {
	pos, err := a.resolve(index)
	if err != nil {
		var zero T
		return zero, err
	}
	return a.at(pos), nil
}

// Last returns the most recent value.
func (a *Array[T]) Last() (T, bool) {
	if len(a.items) == 0 {
		var zero T
		return zero, false
	}
	return a.at(len(a.items) - 1), true
}

// Slice returns the values from..to inclusive as a plain slice. Both bounds
// accept the same forms as Get. A reversed range yields an empty slice.
func (a *Array[T]) Slice(from, to int) ([]T, error) {
	start, err := a.resolve(from)
	if err != nil {
		return nil, err
	}
	end, err := a.resolve(to)
	if err != nil {
		return nil, err
	}
	if start > end {
		return []T{}, nil
	}
	out := make([]T, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, a.at(i))
	}
	return out, nil
}

// Values returns all retained values, oldest first.
func (a *Array[T]) Values() []T {
	out := make([]T, len(a.items))
	for i := range a.items {
		out[i] = a.at(i)
	}
	return out
}

// Value implements Indexed.
func (a *Array[T]) Value(index int) (any, error) {
	return a.Get(index)
}

// resolve maps a logical index to a position counted from the oldest value.
func (a *Array[T]) resolve(index int) (int, error) {
	n := len(a.items)
	logical := index
	if index < 0 {
		logical = a.count + 1 + index
	}
	first := a.First()
	if index == 0 || n == 0 || logical < first || logical > a.count {
		return 0, &IndexError{Index: index, First: first, Last: a.lastIndex()}
	}
	return logical - first, nil
}

func (a *Array[T]) lastIndex() int {
	if len(a.items) == 0 {
		return 0
	}
	return a.count
}

// at returns the value at position pos counted from the oldest.
func (a *Array[T]) at(pos int) T {
	return a.items[(a.head+pos)%len(a.items)]
}
