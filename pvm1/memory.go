package pvm1

import "plcvm.org/plcvm/internal/bytebuf"

// Memory is the byte addressable region holding retained state.
// It is separate from the Stack and is not cleared between runs.
type Memory struct {
	buf bytebuf.Buf
}

// NewMemory uses data as the backing storage for the region.
// The caller keeps ownership of data, and sees every write made by the VM.
func NewMemory(data []byte) Memory {
	return Memory{buf: bytebuf.FromBytes(data)}
}

func (m Memory) Len() int {
	return m.buf.Len()
}

// Bytes returns the backing storage.
func (m Memory) Bytes() []byte {
	return m.buf.Bytes()
}

// Clear zeros the region.
func (m Memory) Clear() {
	m.buf.Zero(0, m.buf.Len())
}

// Load reads a T at addr.
func Load[T Scalar](m Memory, addr int) (T, RuntimeError) {
	if !m.buf.InBounds(addr, SizeOf[T]()) {
		var zero T
		return zero, MemoryOutOfBounds
	}
	return getScalar[T](m.buf, addr), Success
}

// Store writes x at addr.
func Store[T Scalar](m Memory, addr int, x T) RuntimeError {
	if !m.buf.InBounds(addr, SizeOf[T]()) {
		return MemoryOutOfBounds
	}
	putScalar(m.buf, addr, x)
	return Success
}

// span returns the n bytes at addr without copying.
func (m Memory) span(addr, n int) ([]byte, RuntimeError) {
	if !m.buf.InBounds(addr, n) {
		return nil, MemoryOutOfBounds
	}
	return m.buf.Bytes()[addr : addr+n], Success
}
