package history

// View is a read-only projection of an Array that converts values on access.
type View[T any] struct {
	src *Array[T]
	fn  func(T) any
}

// Map returns a View of a whose values are passed through fn.
func Map[T any](a *Array[T], fn func(T) any) *View[T] {
	return &View[T]{src: a, fn: fn}
}

// Get returns the converted value at a logical index.
func (v *View[T]) Get(index int) (any, error) {
	raw, err := v.src.Get(index)
	if err != nil {
		return nil, err
	}
	return v.fn(raw), nil
}

// Slice returns converted values from..to inclusive.
func (v *View[T]) Slice(from, to int) ([]any, error) {
	raw, err := v.src.Slice(from, to)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(raw))
	for i, r := range raw {
		out[i] = v.fn(r)
	}
	return out, nil
}

// Len returns the number of retained values.
func (v *View[T]) Len() int { return v.src.Len() }

// MaxSize returns the capacity of the underlying array.
func (v *View[T]) MaxSize() int { return v.src.MaxSize() }

// Value implements Indexed.
func (v *View[T]) Value(index int) (any, error) { return v.Get(index) }
