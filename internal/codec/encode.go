package codec

import (
	"fmt"

	"github.com/mossheim/a64sim/internal/bitfield"
	"github.com/mossheim/a64sim/internal/ir"
)

// Symbols resolves a label to its emit address. The assembler's symbol
// table implements this; Encode needs nothing more from it.
type Symbols interface {
	Resolve(label string) (address uint64, ok bool)
}

// Encode is the inverse of Decode: it turns an ir.Instr back into its
// 32-bit word. currentAddress is the address the word will be emitted
// at, needed to resolve any label-bearing Literal into a PC-relative
// field value. symbols may be nil for instructions that carry no Literal.
func Encode(instr ir.Instr, currentAddress uint64, symbols Symbols) (uint32, error) {
	switch instr.Kind() {
	case ir.KindImmediate:
		return encodeImmediate(instr.Immediate())
	case ir.KindRegister:
		return encodeRegister(instr.Register())
	case ir.KindLoadStore:
		return encodeLoadStore(instr.LoadStore(), currentAddress, symbols)
	case ir.KindBranch:
		return encodeBranch(instr.Branch(), currentAddress, symbols)
	case ir.KindDirective:
		return instr.Directive().Value, nil
	default:
		return 0, fmt.Errorf("codec: unknown instr kind %v", instr.Kind())
	}
}

func encodeImmediate(v ir.Immediate) (uint32, error) {
	word := uint32(0)
	word = bitfield.Put(word, 31, 31, uint32(v.Width))
	word = bitfield.Put(word, 28, 28, 1)
	word = bitfield.Put(word, 27, 27, 0)
	word = bitfield.Put(word, 26, 26, 0)
	word = bitfield.Put(word, 4, 0, uint32(v.Rd))

	switch v.Kind {
	case ir.ImmArithmetic:
		word = bitfield.Put(word, 30, 29, uint32(v.ArithOp))
		word = bitfield.Put(word, 25, 23, 0b010)
		if v.ShiftBy12 {
			word = bitfield.Put(word, 22, 22, 1)
		}
		word = bitfield.Put(word, 21, 10, uint32(v.Imm12))
		word = bitfield.Put(word, 9, 5, uint32(v.Rn))
		return word, nil

	case ir.ImmWideMove:
		if v.Width == ir.Width32 && v.HW > 1 {
			return 0, fmt.Errorf("codec: wide-move hw=%d invalid for 32-bit destination", v.HW)
		}
		if v.MoveOp != ir.MOVN && v.MoveOp != ir.MOVZ && v.MoveOp != ir.MOVK {
			return 0, fmt.Errorf("codec: reserved wide-move opcode %d", v.MoveOp)
		}
		word = bitfield.Put(word, 30, 29, uint32(v.MoveOp))
		word = bitfield.Put(word, 25, 23, 0b101)
		word = bitfield.Put(word, 22, 21, uint32(v.HW))
		word = bitfield.Put(word, 20, 5, uint32(v.Imm16))
		return word, nil

	default:
		return 0, fmt.Errorf("codec: unknown immediate kind %d", v.Kind)
	}
}

func encodeRegister(v ir.Register) (uint32, error) {
	word := uint32(0)
	word = bitfield.Put(word, 31, 31, uint32(v.Width))
	word = bitfield.Put(word, 27, 27, 1)
	word = bitfield.Put(word, 26, 26, 0)
	word = bitfield.Put(word, 20, 16, uint32(v.Rm))
	word = bitfield.Put(word, 9, 5, uint32(v.Rn))
	word = bitfield.Put(word, 4, 0, uint32(v.Rd))

	switch v.Group {
	case ir.GroupArithmetic:
		word = bitfield.Put(word, 30, 29, uint32(v.ArithOp))
		word = bitfield.Put(word, 28, 28, 0)
		word = bitfield.Put(word, 25, 25, 1)
		word = bitfield.Put(word, 24, 24, 1)
		word = bitfield.Put(word, 23, 22, uint32(v.Shift))
		word = bitfield.Put(word, 21, 21, 0)
		word = bitfield.Put(word, 15, 10, uint32(v.Imm6))
		return word, nil

	case ir.GroupBitLogic:
		word = bitfield.Put(word, 30, 29, uint32(v.BitLogicOp))
		word = bitfield.Put(word, 28, 28, 0)
		word = bitfield.Put(word, 25, 25, 1)
		word = bitfield.Put(word, 24, 24, 0)
		word = bitfield.Put(word, 23, 22, uint32(v.Shift))
		if v.Negated {
			word = bitfield.Put(word, 21, 21, 1)
		}
		word = bitfield.Put(word, 15, 10, uint32(v.Imm6))
		return word, nil

	case ir.GroupMultiply:
		word = bitfield.Put(word, 28, 28, 1)
		word = bitfield.Put(word, 25, 25, 1)
		word = bitfield.Put(word, 24, 21, 0b1000)
		x := uint32(0)
		if v.NegateProduct {
			x = 1
		}
		word = bitfield.Put(word, 15, 15, x)
		word = bitfield.Put(word, 14, 10, uint32(v.Ra))
		return word, nil

	default:
		return 0, fmt.Errorf("codec: unknown register group %d", v.Group)
	}
}

func encodeLoadStore(v ir.LoadStore, currentAddress uint64, symbols Symbols) (uint32, error) {
	word := uint32(0)
	word = bitfield.Put(word, 30, 30, uint32(v.Width))
	word = bitfield.Put(word, 27, 27, 1)
	word = bitfield.Put(word, 25, 25, 0)
	word = bitfield.Put(word, 4, 0, uint32(v.Rt))

	switch v.Variant {
	case ir.LSSingleDataTransfer:
		word = bitfield.Put(word, 31, 31, 1)
		word = bitfield.Put(word, 29, 29, 1)
		word = bitfield.Put(word, 28, 28, 1)
		word = bitfield.Put(word, 26, 26, 0)
		if v.Load {
			word = bitfield.Put(word, 22, 22, 1)
		}
		word = bitfield.Put(word, 9, 5, uint32(v.Xn))

		switch v.Mode {
		case ir.AddrUnsignedOffset:
			word = bitfield.Put(word, 24, 24, 1)
			word = bitfield.Put(word, 21, 10, uint32(v.UOffset))
		case ir.AddrRegisterOffset:
			word = bitfield.Put(word, 21, 21, 1)
			word = bitfield.Put(word, 20, 16, uint32(v.Xm))
			word = bitfield.Put(word, 15, 10, 0b011010)
		case ir.AddrPreIndexed, ir.AddrPostIndexed:
			offsetBits := bitfield.Truncate(uint64(v.SImm9), 9)
			word = bitfield.Put(word, 20, 12, uint32(offsetBits))
			word = bitfield.Put(word, 10, 10, 1)
			if v.Mode == ir.AddrPreIndexed {
				word = bitfield.Put(word, 11, 11, 1)
			}
		default:
			return 0, fmt.Errorf("codec: unknown addressing mode %d", v.Mode)
		}
		return word, nil

	case ir.LSLoadLiteral:
		word = bitfield.Put(word, 31, 31, 0)
		word = bitfield.Put(word, 29, 29, 0)
		word = bitfield.Put(word, 28, 28, 1)
		word = bitfield.Put(word, 26, 26, 0)
		simm19, err := resolveLiteral(v.Literal, currentAddress, symbols, 19)
		if err != nil {
			return 0, err
		}
		word = bitfield.Put(word, 23, 5, uint32(bitfield.Truncate(uint64(simm19), 19)))
		return word, nil

	default:
		return 0, fmt.Errorf("codec: unknown load/store variant %d", v.Variant)
	}
}

func encodeBranch(v ir.Branch, currentAddress uint64, symbols Symbols) (uint32, error) {
	switch v.Tag {
	case ir.BranchUnconditional:
		word := bitfield.Put(0, 31, 26, 0b000101)
		simm26, err := resolveLiteral(v.Literal, currentAddress, symbols, 26)
		if err != nil {
			return 0, err
		}
		word = bitfield.Put(word, 25, 0, uint32(bitfield.Truncate(uint64(simm26), 26)))
		return word, nil

	case ir.BranchRegister:
		word := bitfield.Put(0, 31, 10, 0b1101011000011111000000)
		word = bitfield.Put(word, 9, 5, uint32(v.Xn))
		return word, nil

	case ir.BranchConditional:
		if !validCond(v.Cond) {
			return 0, fmt.Errorf("codec: invalid condition code %d", v.Cond)
		}
		word := bitfield.Put(0, 31, 24, 0b01010100)
		simm19, err := resolveLiteral(v.Literal, currentAddress, symbols, 19)
		if err != nil {
			return 0, err
		}
		word = bitfield.Put(word, 23, 5, uint32(bitfield.Truncate(uint64(simm19), 19)))
		word = bitfield.Put(word, 3, 0, uint32(v.Cond))
		return word, nil

	default:
		return 0, fmt.Errorf("codec: unknown branch tag %d", v.Tag)
	}
}

// resolveLiteral returns the signed field value (in 4-byte instruction
// units) for a Literal. A numeric literal is used verbatim, matching
// what Decode would have produced. A label literal is resolved against
// symbols as (target - currentAddress) / 4; an unresolved label is fatal.
func resolveLiteral(lit ir.Literal, currentAddress uint64, symbols Symbols, width int) (int64, error) {
	if !lit.IsLabel {
		return lit.Value, nil
	}
	if symbols == nil {
		return 0, fmt.Errorf("codec: label %q referenced with no symbol table", lit.Label)
	}
	target, ok := symbols.Resolve(lit.Label)
	if !ok {
		return 0, fmt.Errorf("codec: undefined label %q", lit.Label)
	}
	delta := int64(target) - int64(currentAddress)
	if delta%4 != 0 {
		return 0, fmt.Errorf("codec: label %q at %#x is not word-aligned relative to %#x", lit.Label, target, currentAddress)
	}
	offset := delta / 4
	return bitfield.SignExtend(uint64(offset)&((1<<uint(width))-1), width), nil
}
