// Package codec is the translator (C4): the bijection between a 32-bit
// instruction word and the shared ir.Instr representation. Decode and
// Encode must be exact inverses of each other for every instruction this
// subset supports, per spec's round-trip invariant.
package codec

import (
	"fmt"

	"github.com/mossheim/a64sim/internal/bitfield"
	"github.com/mossheim/a64sim/internal/ir"
)

// Decode parses a 32-bit instruction word into its IR. Any instruction
// class, sub-opcode, or field value this subset doesn't recognize is a
// fatal decode error — there is no silent fallback.
func Decode(word uint32) (ir.Instr, error) {
	op0 := bitfield.Field(word, 28, 25)

	switch {
	case op0&0b1110 == 0b1000:
		return decodeImmediate(word)
	case op0&0b0111 == 0b0101:
		return decodeRegister(word)
	case op0&0b0101 == 0b0100:
		return decodeLoadStore(word)
	case op0&0b1110 == 0b1010:
		return decodeBranch(word)
	default:
		return ir.Instr{}, fmt.Errorf("codec: unrecognized instruction class, op0=%04b in word %#08x", op0, word)
	}
}

func decodeWidth(word uint32) ir.Width {
	if bitfield.Field(word, 31, 31) == 1 {
		return ir.Width64
	}
	return ir.Width32
}

func decodeImmediate(word uint32) (ir.Instr, error) {
	sf := decodeWidth(word)
	opc := bitfield.Field(word, 30, 29)
	opi := bitfield.Field(word, 25, 23)
	rd := ir.Reg(bitfield.Field(word, 4, 0))

	switch opi {
	case 0b010: // arithmetic
		imm := ir.Immediate{
			Width:     sf,
			Kind:      ir.ImmArithmetic,
			Rd:        rd,
			ArithOp:   ir.ArithOp(opc),
			ShiftBy12: bitfield.Field(word, 22, 22) == 1,
			Imm12:     uint16(bitfield.Field(word, 21, 10)),
			Rn:        ir.Reg(bitfield.Field(word, 9, 5)),
		}
		return ir.FromImmediate(imm), nil

	case 0b101: // wide-move
		hw := uint8(bitfield.Field(word, 22, 21))
		if sf == ir.Width32 && hw > 1 {
			return ir.Instr{}, fmt.Errorf("codec: wide-move hw=%d invalid for sf=0 in word %#08x", hw, word)
		}
		moveOp := ir.WideMoveOp(opc)
		if moveOp != ir.MOVN && moveOp != ir.MOVZ && moveOp != ir.MOVK {
			return ir.Instr{}, fmt.Errorf("codec: reserved wide-move opc=%d in word %#08x", opc, word)
		}
		imm := ir.Immediate{
			Width:  sf,
			Kind:   ir.ImmWideMove,
			Rd:     rd,
			MoveOp: moveOp,
			HW:     hw,
			Imm16:  uint16(bitfield.Field(word, 20, 5)),
		}
		return ir.FromImmediate(imm), nil

	default:
		return ir.Instr{}, fmt.Errorf("codec: reserved opi=%03b in word %#08x", opi, word)
	}
}

func decodeRegister(word uint32) (ir.Instr, error) {
	sf := decodeWidth(word)
	opc := bitfield.Field(word, 30, 29)
	m := bitfield.Field(word, 28, 28)
	opr := bitfield.Field(word, 24, 21)
	rm := ir.Reg(bitfield.Field(word, 20, 16))
	rn := ir.Reg(bitfield.Field(word, 9, 5))
	rd := ir.Reg(bitfield.Field(word, 4, 0))
	shift := ir.ShiftType(bitfield.Field(word, 23, 22))

	switch {
	case m == 0 && opr&0b1001 == 0b1000:
		reg := ir.Register{
			Width:   sf,
			Group:   ir.GroupArithmetic,
			Shift:   shift,
			Rm:      rm,
			Rn:      rn,
			Rd:      rd,
			ArithOp: ir.ArithOp(opc),
			Imm6:    uint8(bitfield.Field(word, 15, 10)),
		}
		return ir.FromRegister(reg), nil

	case m == 0 && opr&0b1000 == 0b0000:
		negated := bitfield.Field(word, 21, 21) == 1
		reg := ir.Register{
			Width:      sf,
			Group:      ir.GroupBitLogic,
			Shift:      shift,
			Negated:    negated,
			Rm:         rm,
			Rn:         rn,
			Rd:         rd,
			BitLogicOp: ir.BitLogicOp(opc),
			Imm6:       uint8(bitfield.Field(word, 15, 10)),
		}
		return ir.FromRegister(reg), nil

	case m == 1 && opr == 0b1000:
		x := bitfield.Field(word, 15, 15) == 1
		mulOp := ir.MADD
		if x {
			mulOp = ir.MSUB
		}
		reg := ir.Register{
			Width:         sf,
			Group:         ir.GroupMultiply,
			Rm:            rm,
			Rn:            rn,
			Rd:            rd,
			MulOp:         mulOp,
			NegateProduct: x,
			Ra:            ir.Reg(bitfield.Field(word, 14, 10)),
		}
		return ir.FromRegister(reg), nil

	default:
		return ir.Instr{}, fmt.Errorf("codec: unrecognized register-group M=%d opr=%04b in word %#08x", m, opr, word)
	}
}

func decodeLoadStore(word uint32) (ir.Instr, error) {
	// Unlike the Immediate and Register families, the load/store class
	// reserves bit 31 as the single-data-transfer/load-literal
	// discriminator; the width bit (sf) sits at bit 30 instead.
	sf := ir.Width32
	if bitfield.Field(word, 30, 30) == 1 {
		sf = ir.Width64
	}
	bit31 := bitfield.Field(word, 31, 31)
	bit29 := bitfield.Field(word, 29, 29)
	bit28 := bitfield.Field(word, 28, 28)
	bit26 := bitfield.Field(word, 26, 26)
	rt := ir.Reg(bitfield.Field(word, 4, 0))

	switch {
	case bit31 == 1 && bit29 == 1 && bit28 == 1 && bit26 == 0:
		return decodeSingleDataTransfer(word, sf, rt)
	case bit31 == 0 && bit29 == 0 && bit28 == 1 && bit26 == 0:
		simm19 := bitfield.SignExtend(uint64(bitfield.Field(word, 23, 5)), 19)
		ls := ir.LoadStore{
			Width:   sf,
			Rt:      rt,
			Variant: ir.LSLoadLiteral,
			Literal: ir.Literal{Value: simm19},
		}
		return ir.FromLoadStore(ls), nil
	default:
		return ir.Instr{}, fmt.Errorf("codec: unrecognized load/store form in word %#08x", word)
	}
}

func decodeSingleDataTransfer(word uint32, sf ir.Width, rt ir.Reg) (ir.Instr, error) {
	u := bitfield.Field(word, 24, 24) == 1
	l := bitfield.Field(word, 22, 22) == 1
	xn := ir.Reg(bitfield.Field(word, 9, 5))
	offset := bitfield.Field(word, 21, 10)

	base := ir.LoadStore{
		Width:    sf,
		Rt:       rt,
		Variant:  ir.LSSingleDataTransfer,
		Unsigned: u,
		Load:     l,
		Xn:       xn,
	}

	switch {
	case u:
		base.Mode = ir.AddrUnsignedOffset
		base.UOffset = uint16(offset)
		return ir.FromLoadStore(base), nil

	case offset&0b100000111111 == 0b100000011010:
		base.Mode = ir.AddrRegisterOffset
		base.Xm = ir.Reg(bitfield.Field(word, 20, 16))
		return ir.FromLoadStore(base), nil

	case offset&0b100000000001 == 0b000000000001:
		simm9 := bitfield.SignExtend(uint64(bitfield.Extract(offset, bitfield.Mask(10, 2))), 9)
		base.SImm9 = int16(simm9)
		base.Mode = ir.AddrPreIndexed
		if bitfield.Field(offset, 1, 1) == 0 {
			base.Mode = ir.AddrPostIndexed
		}
		return ir.FromLoadStore(base), nil

	default:
		return ir.Instr{}, fmt.Errorf("codec: malformed addressing-mode offset %012b in word %#08x", offset, word)
	}
}

func decodeBranch(word uint32) (ir.Instr, error) {
	top7 := bitfield.Field(word, 31, 25)
	switch {
	case top7&0b1111110 == 0b0001010:
		// Unconditional: bits31..26 = 000101, simm26 = bits25..0.
		simm26 := bitfield.SignExtend(uint64(bitfield.Field(word, 25, 0)), 26)
		b := ir.Branch{Tag: ir.BranchUnconditional, Literal: ir.Literal{Value: simm26}}
		return ir.FromBranch(b), nil

	case bitfield.Field(word, 31, 10) == 0b1101011000011111000000:
		if bitfield.Field(word, 4, 0) != 0 {
			return ir.Instr{}, fmt.Errorf("codec: register branch must have zero low bits, word %#08x", word)
		}
		b := ir.Branch{Tag: ir.BranchRegister, Xn: ir.Reg(bitfield.Field(word, 9, 5))}
		return ir.FromBranch(b), nil

	case bitfield.Field(word, 31, 24) == 0b01010100:
		if bitfield.Field(word, 4, 4) != 0 {
			return ir.Instr{}, fmt.Errorf("codec: conditional branch bit4 must be zero, word %#08x", word)
		}
		condVal := ir.Cond(bitfield.Field(word, 3, 0))
		if !validCond(condVal) {
			return ir.Instr{}, fmt.Errorf("codec: invalid condition code %d in word %#08x", condVal, word)
		}
		simm19 := bitfield.SignExtend(uint64(bitfield.Field(word, 23, 5)), 19)
		b := ir.Branch{Tag: ir.BranchConditional, Literal: ir.Literal{Value: simm19}, Cond: condVal}
		return ir.FromBranch(b), nil

	default:
		return ir.Instr{}, fmt.Errorf("codec: unrecognized branch form in word %#08x", word)
	}
}

func validCond(c ir.Cond) bool {
	switch c {
	case ir.CondEQ, ir.CondNE, ir.CondGE, ir.CondLT, ir.CondGT, ir.CondLE, ir.CondAL:
		return true
	default:
		return false
	}
}
