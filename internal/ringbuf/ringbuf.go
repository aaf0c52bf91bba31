// package ringbuf provides a fixed capacity FIFO which forgets its oldest element when full.
package ringbuf

type RingBuf[T any] struct {
	buf        []T
	head, tail int
}

func New[T any](n int) RingBuf[T] {
	if n < 1 {
		panic("ringbuf: capacity must be positive")
	}
	return RingBuf[T]{buf: make([]T, n)}
}

func (rb *RingBuf[T]) MaxLen() int {
	return len(rb.buf)
}

// PushBack appends val. If the buffer is full the front element is dropped and returned.
func (rb *RingBuf[T]) PushBack(val T) (dropped T, ok bool) {
	if rb.Len() == len(rb.buf) {
		dropped, ok = rb.PopFront(), true
	}
	rb.buf[rb.tail%len(rb.buf)] = val
	rb.tail++
	return dropped, ok
}

func (rb *RingBuf[T]) PopFront() T {
	val := rb.At(0)
	var zero T
	rb.buf[rb.head%len(rb.buf)] = zero
	rb.head++
	return val
}

func (rb *RingBuf[T]) At(i int) T {
	if i < 0 || i >= rb.Len() {
		panic(i)
	}
	return rb.buf[(rb.head+i)%len(rb.buf)]
}

func (rb *RingBuf[T]) Len() int {
	return rb.tail - rb.head
}

func (rb *RingBuf[T]) Clear() {
	clear(rb.buf)
	rb.head, rb.tail = 0, 0
}

// Slice returns the elements oldest first.
func (rb *RingBuf[T]) Slice() []T {
	ret := make([]T, rb.Len())
	for i := range ret {
		ret[i] = rb.At(i)
	}
	return ret
}
