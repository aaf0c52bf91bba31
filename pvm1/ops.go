package pvm1

import (
	"plcvm.org/plcvm/isa"
)

// exec performs in, which was decoded from p. next is the offset after in.
// It returns the new cursor.
// Every check is made before anything is mutated.
func (vm *VM) exec(in Instr, next int, p *Program) (int, RuntimeError) {
	s := vm.stack
	switch {
	case in.Op.IsPush():
		return next, s.pushBytes(in.Imm)
	case in.Op.IsBitwise():
		return next, bitwise(s, in.Op)
	}

	switch in.Op {
	case isa.NOP:
		return next, Success
	case isa.EXIT:
		return next, ProgramExited

	case isa.COPY:
		n := in.Type.Size()
		if s.Len() < n {
			return next, StackUnderflow
		}
		return next, s.pushBytes(s.top(n))
	case isa.DROP:
		n := in.Type.Size()
		if s.Len() < n {
			return next, StackUnderflow
		}
		s.drop(n)
		return next, Success
	case isa.SWAP:
		n := in.Type.Size()
		if s.Len() < 2*n {
			return next, StackUnderflow
		}
		top := s.top(2 * n)
		var tmp [8]byte
		copy(tmp[:n], top[n:])
		copy(top[n:], top[:n])
		copy(top[:n], tmp[:n])
		return next, Success

	case isa.GET:
		src, rte := vm.mem.span(int(in.Addr()), in.Type.Size())
		if rte != Success {
			return next, rte
		}
		return next, s.pushBytes(src)
	case isa.PUT:
		n := in.Type.Size()
		if s.Len() < n {
			return next, StackUnderflow
		}
		dst, rte := vm.mem.span(int(in.Addr()), n)
		if rte != Success {
			return next, rte
		}
		copy(dst, s.top(n))
		s.drop(n)
		return next, Success

	case isa.ADD, isa.SUB, isa.MUL, isa.DIV, isa.NEG:
		return next, arith(s, in.Op, in.Type)
	case isa.CMP_EQ, isa.CMP_NEQ, isa.CMP_GT, isa.CMP_GTE, isa.CMP_LT, isa.CMP_LTE:
		return next, compare(s, in.Op, in.Type)
	case isa.LOGIC_AND, isa.LOGIC_OR, isa.LOGIC_XOR, isa.LOGIC_NOT:
		return next, logic(s, in.Op)

	case isa.JMP, isa.JMP_IF, isa.JMP_IF_NOT:
		return jump(s, in, next, p)
	}
	return next, UnknownInstruction
}

// jump faults on a taken jump to anywhere but an instruction start or the end of p.
func jump(s *Stack, in Instr, next int, p *Program) (int, RuntimeError) {
	target := int(in.Addr())
	taken := true
	if in.Op != isa.JMP {
		cond, rte := Peek[bool](s)
		if rte != Success {
			return next, rte
		}
		taken = cond == (in.Op == isa.JMP_IF)
	}
	if taken && !p.isJumpTarget(target) {
		return next, InvalidJumpAddress
	}
	if in.Op != isa.JMP {
		s.drop(1)
	}
	if taken {
		return target, Success
	}
	return next, Success
}

func arith(s *Stack, op isa.Op, t isa.TypeTag) RuntimeError {
	switch t {
	case isa.U8:
		return arithT[uint8](s, op)
	case isa.U16:
		return arithT[uint16](s, op)
	case isa.U32:
		return arithT[uint32](s, op)
	case isa.U64:
		return arithT[uint64](s, op)
	case isa.S8:
		return arithT[int8](s, op)
	case isa.S16:
		return arithT[int16](s, op)
	case isa.S32:
		return arithT[int32](s, op)
	case isa.S64:
		return arithT[int64](s, op)
	case isa.F32:
		return arithT[float32](s, op)
	case isa.F64:
		return arithT[float64](s, op)
	}
	return InvalidType
}

// arithT pops the right operand, then the left operand, and pushes the result.
// NEG has a single operand.
func arithT[T number](s *Stack, op isa.Op) RuntimeError {
	n := SizeOf[T]()
	if op == isa.NEG {
		if s.Len() < n {
			return StackUnderflow
		}
		x := peekAt[T](s, 0)
		putScalar(s.buf, s.sp-n, -x)
		return Success
	}
	if s.Len() < 2*n {
		return StackUnderflow
	}
	b := peekAt[T](s, 0)
	a := peekAt[T](s, n)
	var c T
	switch op {
	case isa.ADD:
		c = a + b
	case isa.SUB:
		c = a - b
	case isa.MUL:
		c = a * b
	case isa.DIV:
		if b == 0 && !isFloat[T]() {
			return DivisionByZero
		}
		c = a / b
	}
	s.drop(n)
	putScalar(s.buf, s.sp-n, c)
	return Success
}

func compare(s *Stack, op isa.Op, t isa.TypeTag) RuntimeError {
	switch t {
	case isa.BOOL:
		return equalBool(s, op)
	case isa.U8:
		return compareT[uint8](s, op)
	case isa.U16:
		return compareT[uint16](s, op)
	case isa.U32:
		return compareT[uint32](s, op)
	case isa.U64:
		return compareT[uint64](s, op)
	case isa.S8:
		return compareT[int8](s, op)
	case isa.S16:
		return compareT[int16](s, op)
	case isa.S32:
		return compareT[int32](s, op)
	case isa.S64:
		return compareT[int64](s, op)
	case isa.F32:
		return compareT[float32](s, op)
	case isa.F64:
		return compareT[float64](s, op)
	}
	return InvalidType
}

func compareT[T number](s *Stack, op isa.Op) RuntimeError {
	n := SizeOf[T]()
	if s.Len() < 2*n {
		return StackUnderflow
	}
	b := peekAt[T](s, 0)
	a := peekAt[T](s, n)
	var c bool
	switch op {
	case isa.CMP_EQ:
		c = a == b
	case isa.CMP_NEQ:
		c = a != b
	case isa.CMP_GT:
		c = a > b
	case isa.CMP_GTE:
		c = a >= b
	case isa.CMP_LT:
		c = a < b
	case isa.CMP_LTE:
		c = a <= b
	default:
		return InvalidType
	}
	s.drop(2 * n)
	return Push(s, c)
}

// equalBool compares Bools, which only support equality.
func equalBool(s *Stack, op isa.Op) RuntimeError {
	if s.Len() < 2 {
		return StackUnderflow
	}
	b := peekAt[bool](s, 0)
	a := peekAt[bool](s, 1)
	var c bool
	switch op {
	case isa.CMP_EQ:
		c = a == b
	case isa.CMP_NEQ:
		c = a != b
	default:
		return InvalidType
	}
	s.drop(2)
	return Push(s, c)
}

func logic(s *Stack, op isa.Op) RuntimeError {
	if op == isa.LOGIC_NOT {
		x, rte := Pop[bool](s)
		if rte != Success {
			return rte
		}
		return Push(s, !x)
	}
	if s.Len() < 2 {
		return StackUnderflow
	}
	b, _ := Pop[bool](s)
	a, _ := Pop[bool](s)
	var c bool
	switch op {
	case isa.LOGIC_AND:
		c = a && b
	case isa.LOGIC_OR:
		c = a || b
	case isa.LOGIC_XOR:
		c = a != b
	}
	return Push(s, c)
}

// bitwise operates on unsigned values of the width encoded in the op.
func bitwise(s *Stack, op isa.Op) RuntimeError {
	w := op.BitwiseWidth()
	kind := (op - isa.BW_AND_X8) / 4
	if kind == 3 {
		// NOT
		if s.Len() < w {
			return StackUnderflow
		}
		at := s.sp - w
		s.buf.PutUint(at, w, ^s.buf.GetUint(at, w))
		return Success
	}
	if s.Len() < 2*w {
		return StackUnderflow
	}
	b := s.buf.GetUint(s.sp-w, w)
	a := s.buf.GetUint(s.sp-2*w, w)
	var c uint64
	switch kind {
	case 0:
		c = a & b
	case 1:
		c = a | b
	case 2:
		c = a ^ b
	}
	s.drop(w)
	s.buf.PutUint(s.sp-w, w, c)
	return Success
}
