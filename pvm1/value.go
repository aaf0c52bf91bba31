package pvm1

import (
	"fmt"
	"math"

	"plcvm.org/plcvm/internal/bytebuf"
	"plcvm.org/plcvm/isa"
)

// Scalar is the set of Go types which correspond to a TypeTag.
type Scalar interface {
	bool | uint8 | uint16 | uint32 | uint64 | int8 | int16 | int32 | int64 | float32 | float64
}

// number is every Scalar except bool.
type number interface {
	uint8 | uint16 | uint32 | uint64 | int8 | int16 | int32 | int64 | float32 | float64
}

type integer interface {
	uint8 | uint16 | uint32 | uint64 | int8 | int16 | int32 | int64
}

// TagOf returns the TypeTag for T.
func TagOf[T Scalar]() isa.TypeTag {
	var zero T
	switch any(zero).(type) {
	case bool:
		return isa.BOOL
	case uint8:
		return isa.U8
	case uint16:
		return isa.U16
	case uint32:
		return isa.U32
	case uint64:
		return isa.U64
	case int8:
		return isa.S8
	case int16:
		return isa.S16
	case int32:
		return isa.S32
	case int64:
		return isa.S64
	case float32:
		return isa.F32
	case float64:
		return isa.F64
	}
	panic("unreachable")
}

// SizeOf returns the encoded size of T in bytes.
func SizeOf[T Scalar]() int {
	return TagOf[T]().Size()
}

// putScalar writes x at i in the big-endian encoding of its TypeTag.
func putScalar[T Scalar](b bytebuf.Buf, i int, x T) {
	switch x := any(x).(type) {
	case bool:
		var v uint8
		if x {
			v = 1
		}
		b.Put8(i, v)
	case uint8:
		b.Put8(i, x)
	case uint16:
		b.Put16(i, x)
	case uint32:
		b.Put32(i, x)
	case uint64:
		b.Put64(i, x)
	case int8:
		b.Put8(i, uint8(x))
	case int16:
		b.Put16(i, uint16(x))
	case int32:
		b.Put32(i, uint32(x))
	case int64:
		b.Put64(i, uint64(x))
	case float32:
		b.Put32(i, math.Float32bits(x))
	case float64:
		b.Put64(i, math.Float64bits(x))
	}
}

// getScalar reads a T at i.
// Any non-zero byte is a true Bool.
func getScalar[T Scalar](b bytebuf.Buf, i int) T {
	var ret T
	switch p := any(&ret).(type) {
	case *bool:
		*p = b.Get8(i) != 0
	case *uint8:
		*p = b.Get8(i)
	case *uint16:
		*p = b.Get16(i)
	case *uint32:
		*p = b.Get32(i)
	case *uint64:
		*p = b.Get64(i)
	case *int8:
		*p = int8(b.Get8(i))
	case *int16:
		*p = int16(b.Get16(i))
	case *int32:
		*p = int32(b.Get32(i))
	case *int64:
		*p = int64(b.Get64(i))
	case *float32:
		*p = math.Float32frombits(b.Get32(i))
	case *float64:
		*p = math.Float64frombits(b.Get64(i))
	}
	return ret
}

func isFloat[T number]() bool {
	var zero T
	switch any(zero).(type) {
	case float32, float64:
		return true
	default:
		return false
	}
}

// FormatScalar renders the value of type t encoded in data.
// data must be exactly t.Size() bytes.
func FormatScalar(t isa.TypeTag, data []byte) string {
	b := bytebuf.FromBytes(data)
	switch t {
	case isa.BOOL:
		return fmtAny(getScalar[bool](b, 0))
	case isa.U8:
		return fmtAny(getScalar[uint8](b, 0))
	case isa.U16:
		return fmtAny(getScalar[uint16](b, 0))
	case isa.U32:
		return fmtAny(getScalar[uint32](b, 0))
	case isa.U64:
		return fmtAny(getScalar[uint64](b, 0))
	case isa.S8:
		return fmtAny(getScalar[int8](b, 0))
	case isa.S16:
		return fmtAny(getScalar[int16](b, 0))
	case isa.S32:
		return fmtAny(getScalar[int32](b, 0))
	case isa.S64:
		return fmtAny(getScalar[int64](b, 0))
	case isa.F32:
		return fmtAny(getScalar[float32](b, 0))
	case isa.F64:
		return fmtAny(getScalar[float64](b, 0))
	default:
		return "?"
	}
}

func fmtAny(x any) string {
	return fmt.Sprint(x)
}
