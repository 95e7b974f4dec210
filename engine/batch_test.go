package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchPreservesOrder(t *testing.T) {
	batches := Batch([]int{1, 2, 3, 4, 5, 6, 7}, 3)

	require.Len(t, batches, 3)
	assert.Equal(t, []int{1, 2, 3}, batches[0])
	assert.Equal(t, []int{4, 5, 6}, batches[1])
	assert.Equal(t, []int{7}, batches[2], "final batch may be shorter")
}

func TestBatchExactMultiple(t *testing.T) {
	batches := Batch([]string{"a", "b", "c", "d"}, 2)

	require.Len(t, batches, 2)
	assert.Equal(t, []string{"a", "b"}, batches[0])
	assert.Equal(t, []string{"c", "d"}, batches[1])
}

func TestBatchSizeLargerThanInput(t *testing.T) {
	batches := Batch([]int{1, 2}, 10)

	require.Len(t, batches, 1)
	assert.Equal(t, []int{1, 2}, batches[0])
}

func TestBatchEmptyInput(t *testing.T) {
	assert.Nil(t, Batch([]int{}, 3))
}

func TestBatchInvalidSizePanics(t *testing.T) {
	assert.Panics(t, func() { Batch([]int{1}, 0) })
	assert.Panics(t, func() { Batch([]int{1}, -2) })
}
