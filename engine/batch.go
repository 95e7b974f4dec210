package engine

import "fmt"

// Batch splits items into chunks of at most size elements, preserving input
// order. The final chunk may be shorter. size < 1 is a programming error and
// panics.
func Batch[T any](items []T, size int) [][]T {
	if size < 1 {
		panic(fmt.Sprintf("batch size must be >= 1, got %d", size))
	}

	if len(items) == 0 {
		return nil
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
