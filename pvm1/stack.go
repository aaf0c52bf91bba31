package pvm1

import (
	"fmt"
	"strings"

	"plcvm.org/plcvm/internal/bytebuf"
)

// Stack is a fixed capacity LIFO of bytes.
// It stores no type information; the width of every push and pop is chosen by the caller.
// A push or pop which faults leaves the Stack unchanged.
type Stack struct {
	buf bytebuf.Buf
	sp  int
}

// NewStack panics if capacity is negative.
func NewStack(capacity int) *Stack {
	if capacity < 0 {
		panic(fmt.Sprintf("pvm1: negative stack capacity %d", capacity))
	}
	return &Stack{buf: bytebuf.New(capacity)}
}

// Len returns the number of bytes on the stack.
func (s *Stack) Len() int {
	return s.sp
}

// Cap returns the capacity of the stack in bytes.
func (s *Stack) Cap() int {
	return s.buf.Len()
}

func (s *Stack) free() int {
	return s.buf.Len() - s.sp
}

// Clear empties the stack.
func (s *Stack) Clear() {
	s.buf.Zero(0, s.sp)
	s.sp = 0
}

// Bytes returns a copy of the bytes on the stack, bottom first.
func (s *Stack) Bytes() []byte {
	ret := make([]byte, s.sp)
	copy(ret, s.buf.Bytes())
	return ret
}

// String renders the stack as hex bytes, bottom first.
func (s *Stack) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < s.sp; i++ {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%02X", s.buf.Get8(i))
	}
	sb.WriteString("]")
	return sb.String()
}

// Push pushes x, taking exactly SizeOf[T]() bytes.
func Push[T Scalar](s *Stack, x T) RuntimeError {
	n := SizeOf[T]()
	if s.free() < n {
		return StackOverflow
	}
	putScalar(s.buf, s.sp, x)
	s.sp += n
	return Success
}

// Pop removes and returns the top SizeOf[T]() bytes as a T.
func Pop[T Scalar](s *Stack) (T, RuntimeError) {
	x, rte := Peek[T](s)
	if rte != Success {
		return x, rte
	}
	s.drop(SizeOf[T]())
	return x, Success
}

// Peek returns the top SizeOf[T]() bytes as a T without removing them.
func Peek[T Scalar](s *Stack) (T, RuntimeError) {
	if s.sp < SizeOf[T]() {
		var zero T
		return zero, StackUnderflow
	}
	return peekAt[T](s, 0), Success
}

// peekAt reads the T which ends off bytes below the top of the stack.
// The caller must have checked the depth.
func peekAt[T Scalar](s *Stack, off int) T {
	return getScalar[T](s.buf, s.sp-off-SizeOf[T]())
}

// drop discards n bytes. The caller must have checked the depth.
func (s *Stack) drop(n int) {
	s.sp -= n
	s.buf.Zero(s.sp, s.sp+n)
}

func (s *Stack) pushBytes(data []byte) RuntimeError {
	if s.free() < len(data) {
		return StackOverflow
	}
	copy(s.buf.Bytes()[s.sp:], data)
	s.sp += len(data)
	return Success
}

// top returns the top n bytes without copying.
// The caller must have checked the depth.
func (s *Stack) top(n int) []byte {
	return s.buf.Bytes()[s.sp-n : s.sp]
}

func (s *Stack) PushBool(x bool) RuntimeError  { return Push(s, x) }
func (s *Stack) PushU8(x uint8) RuntimeError    { return Push(s, x) }
func (s *Stack) PushU16(x uint16) RuntimeError  { return Push(s, x) }
func (s *Stack) PushU32(x uint32) RuntimeError  { return Push(s, x) }
func (s *Stack) PushU64(x uint64) RuntimeError  { return Push(s, x) }
func (s *Stack) PushS8(x int8) RuntimeError     { return Push(s, x) }
func (s *Stack) PushS16(x int16) RuntimeError   { return Push(s, x) }
func (s *Stack) PushS32(x int32) RuntimeError   { return Push(s, x) }
func (s *Stack) PushS64(x int64) RuntimeError   { return Push(s, x) }
func (s *Stack) PushF32(x float32) RuntimeError { return Push(s, x) }
func (s *Stack) PushF64(x float64) RuntimeError { return Push(s, x) }

func (s *Stack) PopBool() (bool, RuntimeError)   { return Pop[bool](s) }
func (s *Stack) PopU8() (uint8, RuntimeError)    { return Pop[uint8](s) }
func (s *Stack) PopU16() (uint16, RuntimeError)  { return Pop[uint16](s) }
func (s *Stack) PopU32() (uint32, RuntimeError)  { return Pop[uint32](s) }
func (s *Stack) PopU64() (uint64, RuntimeError)  { return Pop[uint64](s) }
func (s *Stack) PopS8() (int8, RuntimeError)     { return Pop[int8](s) }
func (s *Stack) PopS16() (int16, RuntimeError)   { return Pop[int16](s) }
func (s *Stack) PopS32() (int32, RuntimeError)   { return Pop[int32](s) }
func (s *Stack) PopS64() (int64, RuntimeError)   { return Pop[int64](s) }
func (s *Stack) PopF32() (float32, RuntimeError) { return Pop[float32](s) }
func (s *Stack) PopF64() (float64, RuntimeError) { return Pop[float64](s) }

func (s *Stack) PeekBool() (bool, RuntimeError)   { return Peek[bool](s) }
func (s *Stack) PeekU8() (uint8, RuntimeError)    { return Peek[uint8](s) }
func (s *Stack) PeekU16() (uint16, RuntimeError)  { return Peek[uint16](s) }
func (s *Stack) PeekU32() (uint32, RuntimeError)  { return Peek[uint32](s) }
func (s *Stack) PeekU64() (uint64, RuntimeError)  { return Peek[uint64](s) }
func (s *Stack) PeekS8() (int8, RuntimeError)     { return Peek[int8](s) }
func (s *Stack) PeekS16() (int16, RuntimeError)   { return Peek[int16](s) }
func (s *Stack) PeekS32() (int32, RuntimeError)   { return Peek[int32](s) }
func (s *Stack) PeekS64() (int64, RuntimeError)   { return Peek[int64](s) }
func (s *Stack) PeekF32() (float32, RuntimeError) { return Peek[float32](s) }
func (s *Stack) PeekF64() (float64, RuntimeError) { return Peek[float64](s) }
