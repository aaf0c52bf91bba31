// package bytebuf provides fixed width big-endian access to a byte slice.
//
// Values are always stored most significant byte first, which is the byte order
// of program immediates, the operand stack and the memory region.
package bytebuf

import (
	"encoding/binary"
	"fmt"
)

type Buf struct {
	// offset is the offset in bytes from the start of d
	offset int
	// l is the length of the buffer.  The end is offset + l
	l int
	d []byte
}

func New(l int) Buf {
	return Buf{l: l, d: make([]byte, l)}
}

// FromBytes wraps d without copying.
func FromBytes(d []byte) Buf {
	return Buf{d: d, l: len(d)}
}

func (b Buf) Len() int {
	return b.l
}

func (b Buf) Bytes() []byte {
	return b.d[b.offset : b.offset+b.l]
}

func (b Buf) Slice(beg, end int) Buf {
	if beg < 0 || end < beg || end > b.l {
		panic(fmt.Sprintf("bytebuf: out of bounds slice. beg=%v end=%v len=%d", beg, end, b.l))
	}
	return Buf{
		offset: b.offset + beg,
		l:      end - beg,
		d:      b.d,
	}
}

// InBounds returns true if n bytes starting at i are inside the buffer.
func (b Buf) InBounds(i, n int) bool {
	return i >= 0 && n >= 0 && i+n <= b.l
}

func (b Buf) Put8(i int, x uint8) {
	b.d[b.at(i, 1)] = x
}

func (b Buf) Put16(i int, x uint16) {
	binary.BigEndian.PutUint16(b.d[b.at(i, 2):], x)
}

func (b Buf) Put32(i int, x uint32) {
	binary.BigEndian.PutUint32(b.d[b.at(i, 4):], x)
}

func (b Buf) Put64(i int, x uint64) {
	binary.BigEndian.PutUint64(b.d[b.at(i, 8):], x)
}

func (b Buf) Get8(i int) uint8 {
	return b.d[b.at(i, 1)]
}

func (b Buf) Get16(i int) uint16 {
	return binary.BigEndian.Uint16(b.d[b.at(i, 2):])
}

func (b Buf) Get32(i int) uint32 {
	return binary.BigEndian.Uint32(b.d[b.at(i, 4):])
}

func (b Buf) Get64(i int) uint64 {
	return binary.BigEndian.Uint64(b.d[b.at(i, 8):])
}

// PutUint writes the low n bytes of x at i. n must be 1, 2, 4 or 8.
func (b Buf) PutUint(i, n int, x uint64) {
	switch n {
	case 1:
		b.Put8(i, uint8(x))
	case 2:
		b.Put16(i, uint16(x))
	case 4:
		b.Put32(i, uint32(x))
	case 8:
		b.Put64(i, x)
	default:
		panic(fmt.Sprintf("bytebuf: invalid width %d", n))
	}
}

// GetUint reads n bytes at i, zero extended. n must be 1, 2, 4 or 8.
func (b Buf) GetUint(i, n int) uint64 {
	switch n {
	case 1:
		return uint64(b.Get8(i))
	case 2:
		return uint64(b.Get16(i))
	case 4:
		return uint64(b.Get32(i))
	case 8:
		return b.Get64(i)
	default:
		panic(fmt.Sprintf("bytebuf: invalid width %d", n))
	}
}

func (b Buf) Zero(beg, end int) {
	clear(b.d[b.at(beg, end-beg) : b.offset+end])
}

// at translates i into an index into d, after checking that n bytes fit.
func (b Buf) at(i, n int) int {
	if !b.InBounds(i, n) {
		panic(fmt.Sprintf("bytebuf: access out of bounds. i=%d n=%d len=%d", i, n, b.l))
	}
	return b.offset + i
}
