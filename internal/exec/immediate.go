package exec

import (
	"github.com/mossheim/a64sim/internal/bitfield"
	"github.com/mossheim/a64sim/internal/ir"
	"github.com/mossheim/a64sim/internal/machine"
)

func executeImmediate(m *machine.Machine, v ir.Immediate) {
	switch v.Kind {
	case ir.ImmArithmetic:
		executeImmediateArithmetic(m, v)
	case ir.ImmWideMove:
		executeImmediateWideMove(m, v)
	}
}

func executeImmediateArithmetic(m *machine.Machine, v ir.Immediate) {
	bits := widthBits(v.Width)
	shift := 0
	if v.ShiftBy12 {
		shift = 12
	}
	op2 := bitfield.Truncate(uint64(v.Imm12)<<uint(shift), bits)
	rn := m.ReadReg(int(v.Rn), mWidth(v.Width))

	sub := v.ArithOp == ir.ArithSUB || v.ArithOp == ir.ArithSUBS
	result, flags := arithWithFlags(rn, op2, bits, sub)
	m.WriteReg(int(v.Rd), mWidth(v.Width), result)
	if v.ArithOp == ir.ArithADDS || v.ArithOp == ir.ArithSUBS {
		m.WriteFlags(flags)
	}
}

func executeImmediateWideMove(m *machine.Machine, v ir.Immediate) {
	bits := widthBits(v.Width)
	laneShift := uint(v.HW) * 16
	op := bitfield.Truncate(uint64(v.Imm16)<<laneShift, bits)

	var result uint64
	switch v.MoveOp {
	case ir.MOVZ:
		result = op
	case ir.MOVN:
		result = bitfield.Truncate(^op, bits)
	case ir.MOVK:
		cur := m.ReadReg(int(v.Rd), mWidth(v.Width))
		laneMask := uint64(0xFFFF) << laneShift
		result = (cur &^ laneMask) | op
	}
	m.WriteReg(int(v.Rd), mWidth(v.Width), result)
}
