package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBuf(t *testing.T) {
	rb := New[int](3)
	for i := 0; i < 3; i++ {
		_, dropped := rb.PushBack(i)
		require.False(t, dropped)
	}
	require.Equal(t, []int{0, 1, 2}, rb.Slice())

	x, dropped := rb.PushBack(3)
	require.True(t, dropped)
	require.Equal(t, 0, x)
	require.Equal(t, []int{1, 2, 3}, rb.Slice())
	require.Equal(t, 3, rb.Len())

	require.Equal(t, 1, rb.PopFront())
	require.Equal(t, 2, rb.Len())
	require.Panics(t, func() { rb.At(2) })

	rb.Clear()
	require.Equal(t, 0, rb.Len())
	require.Equal(t, []int{}, rb.Slice())
}
