package exec

import (
	"github.com/mossheim/a64sim/internal/bitfield"
	"github.com/mossheim/a64sim/internal/ir"
	"github.com/mossheim/a64sim/internal/machine"
)

func executeRegister(m *machine.Machine, v ir.Register) {
	switch v.Group {
	case ir.GroupArithmetic:
		executeRegisterArithmetic(m, v)
	case ir.GroupBitLogic:
		executeRegisterBitLogic(m, v)
	case ir.GroupMultiply:
		executeMultiply(m, v)
	}
}

// applyShift shifts value (already truncated to bits) by amount
// according to shift, per LSL/LSR/ASR/ROR semantics.
func applyShift(value uint64, bits int, shift ir.ShiftType, amount uint8) uint64 {
	value = bitfield.Truncate(value, bits)
	amt := uint(amount) % uint(bits)
	switch shift {
	case ir.LSL:
		return bitfield.Truncate(value<<amt, bits)
	case ir.LSR:
		return value >> amt
	case ir.ASR:
		signed := bitfield.SignExtend(value, bits)
		return bitfield.Truncate(uint64(signed>>amt), bits)
	case ir.ROR:
		if amt == 0 {
			return value
		}
		return bitfield.Truncate((value>>amt)|(value<<(uint(bits)-amt)), bits)
	default:
		return value
	}
}

func executeRegisterArithmetic(m *machine.Machine, v ir.Register) {
	bits := widthBits(v.Width)
	rm := m.ReadReg(int(v.Rm), mWidth(v.Width))
	rn := m.ReadReg(int(v.Rn), mWidth(v.Width))
	op2 := applyShift(rm, bits, v.Shift, v.Imm6)

	sub := v.ArithOp == ir.ArithSUB || v.ArithOp == ir.ArithSUBS
	result, flags := arithWithFlags(rn, op2, bits, sub)
	m.WriteReg(int(v.Rd), mWidth(v.Width), result)
	if v.ArithOp == ir.ArithADDS || v.ArithOp == ir.ArithSUBS {
		m.WriteFlags(flags)
	}
}

func executeRegisterBitLogic(m *machine.Machine, v ir.Register) {
	bits := widthBits(v.Width)
	rm := m.ReadReg(int(v.Rm), mWidth(v.Width))
	rn := m.ReadReg(int(v.Rn), mWidth(v.Width))
	op2 := applyShift(rm, bits, v.Shift, v.Imm6)
	if v.Negated {
		op2 = bitfield.Truncate(^op2, bits)
	}

	var result uint64
	switch v.BitLogicOp {
	case ir.AND, ir.ANDS:
		result = rn & op2
	case ir.ORR:
		result = rn | op2
	case ir.EOR:
		result = rn ^ op2
	}
	m.WriteReg(int(v.Rd), mWidth(v.Width), result)

	if v.BitLogicOp == ir.ANDS {
		signBit := uint(bits - 1)
		m.WriteFlags(machine.PState{
			N: (result>>signBit)&1 == 1,
			Z: result == 0,
			C: false,
			V: false,
		})
	}
}

func executeMultiply(m *machine.Machine, v ir.Register) {
	bits := widthBits(v.Width)
	rn := m.ReadReg(int(v.Rn), mWidth(v.Width))
	rm := m.ReadReg(int(v.Rm), mWidth(v.Width))
	ra := m.ReadReg(int(v.Ra), mWidth(v.Width))

	product := rn * rm
	var res uint64
	if v.MulOp == ir.MSUB {
		res = ra - product
	} else {
		res = ra + product
	}
	m.WriteReg(int(v.Rd), mWidth(v.Width), bitfield.Truncate(res, bits))
}
