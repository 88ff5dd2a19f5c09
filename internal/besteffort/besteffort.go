// Package besteffort applies a per-element transformation that may fail
// without failing the batch. Failed elements are reported and dropped.
package besteffort

import (
	"fmt"
)

// Map runs fn over items in order and collects every produced value.
// An element whose fn returns an error or panics contributes nothing; onErr
// (when non-nil) is called with its index and the error.
func Map[T, R any](items []T, fn func(T) ([]R, error), onErr func(int, error)) []R {
	out := make([]R, 0, len(items))
	for i, it := range items {
		vals, err := call(fn, it)
		if err != nil {
			if onErr != nil {
				onErr(i, err)
			}
			continue
		}
		out = append(out, vals...)
	}
	return out
}

func call[T, R any](fn func(T) ([]R, error), it T) (vals []R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			vals = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(it)
}
