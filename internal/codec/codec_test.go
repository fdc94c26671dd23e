package codec

import (
	"testing"

	"github.com/mossheim/a64sim/internal/bitfield"
	"github.com/mossheim/a64sim/internal/ir"
)

type fakeSymbols map[string]uint64

func (f fakeSymbols) Resolve(label string) (uint64, bool) {
	v, ok := f[label]
	return v, ok
}

func roundTrip(t *testing.T, word uint32) ir.Instr {
	t.Helper()
	instr, err := Decode(word)
	if err != nil {
		t.Fatalf("Decode(%#08x): %v", word, err)
	}
	got, err := Encode(instr, 0, nil)
	if err != nil {
		t.Fatalf("Encode after decoding %#08x: %v", word, err)
	}
	if got != word {
		t.Errorf("round trip %#08x -> %#08x, want %#08x", word, got, word)
	}
	return instr
}

func immArith(sf, opc uint32, shift12 uint32, imm12, rn, rd uint32) uint32 {
	w := bitfield.Put(0, 31, 31, sf)
	w = bitfield.Put(w, 30, 29, opc)
	w = bitfield.Put(w, 28, 26, 0b100)
	w = bitfield.Put(w, 25, 23, 0b010)
	w = bitfield.Put(w, 22, 22, shift12)
	w = bitfield.Put(w, 21, 10, imm12)
	w = bitfield.Put(w, 9, 5, rn)
	w = bitfield.Put(w, 4, 0, rd)
	return w
}

func immWideMove(sf, opc, hw, imm16, rd uint32) uint32 {
	w := bitfield.Put(0, 31, 31, sf)
	w = bitfield.Put(w, 30, 29, opc)
	w = bitfield.Put(w, 28, 26, 0b100)
	w = bitfield.Put(w, 25, 23, 0b101)
	w = bitfield.Put(w, 22, 21, hw)
	w = bitfield.Put(w, 20, 5, imm16)
	w = bitfield.Put(w, 4, 0, rd)
	return w
}

func regArith(sf, opc, shift, rm, imm6, rn, rd uint32) uint32 {
	w := bitfield.Put(0, 31, 31, sf)
	w = bitfield.Put(w, 30, 29, opc)
	w = bitfield.Put(w, 28, 28, 0)
	w = bitfield.Put(w, 27, 27, 1)
	w = bitfield.Put(w, 26, 26, 0)
	w = bitfield.Put(w, 25, 25, 1)
	w = bitfield.Put(w, 24, 24, 1)
	w = bitfield.Put(w, 23, 22, shift)
	w = bitfield.Put(w, 21, 21, 0)
	w = bitfield.Put(w, 20, 16, rm)
	w = bitfield.Put(w, 15, 10, imm6)
	w = bitfield.Put(w, 9, 5, rn)
	w = bitfield.Put(w, 4, 0, rd)
	return w
}

func regBitLogic(sf, opc, shift, negated, rm, imm6, rn, rd uint32) uint32 {
	w := bitfield.Put(0, 31, 31, sf)
	w = bitfield.Put(w, 30, 29, opc)
	w = bitfield.Put(w, 28, 28, 0)
	w = bitfield.Put(w, 27, 27, 1)
	w = bitfield.Put(w, 26, 26, 0)
	w = bitfield.Put(w, 25, 25, 1)
	w = bitfield.Put(w, 24, 24, 0)
	w = bitfield.Put(w, 23, 22, shift)
	w = bitfield.Put(w, 21, 21, negated)
	w = bitfield.Put(w, 20, 16, rm)
	w = bitfield.Put(w, 15, 10, imm6)
	w = bitfield.Put(w, 9, 5, rn)
	w = bitfield.Put(w, 4, 0, rd)
	return w
}

func regMultiply(sf, x, rm, ra, rn, rd uint32) uint32 {
	w := bitfield.Put(0, 31, 31, sf)
	w = bitfield.Put(w, 28, 28, 1)
	w = bitfield.Put(w, 27, 27, 1)
	w = bitfield.Put(w, 26, 26, 0)
	w = bitfield.Put(w, 25, 25, 1)
	w = bitfield.Put(w, 24, 21, 0b1000)
	w = bitfield.Put(w, 20, 16, rm)
	w = bitfield.Put(w, 15, 15, x)
	w = bitfield.Put(w, 14, 10, ra)
	w = bitfield.Put(w, 9, 5, rn)
	w = bitfield.Put(w, 4, 0, rd)
	return w
}

func branchUnconditional(simm26 uint32) uint32 {
	w := bitfield.Put(0, 31, 26, 0b000101)
	return bitfield.Put(w, 25, 0, simm26)
}

func branchRegister(rn uint32) uint32 {
	w := bitfield.Put(0, 31, 10, 0b1101011000011111000000)
	return bitfield.Put(w, 9, 5, rn)
}

func branchConditional(simm19, cond uint32) uint32 {
	w := bitfield.Put(0, 31, 24, 0b01010100)
	w = bitfield.Put(w, 23, 5, simm19)
	return bitfield.Put(w, 3, 0, cond)
}

func loadStoreUnsignedOffset(sf, l, uoffset, xn, rt uint32) uint32 {
	w := bitfield.Put(0, 31, 31, 1)
	w = bitfield.Put(w, 30, 30, sf)
	w = bitfield.Put(w, 29, 29, 1)
	w = bitfield.Put(w, 28, 28, 1)
	w = bitfield.Put(w, 27, 27, 1)
	w = bitfield.Put(w, 26, 26, 0)
	w = bitfield.Put(w, 25, 25, 0)
	w = bitfield.Put(w, 24, 24, 1)
	w = bitfield.Put(w, 22, 22, l)
	w = bitfield.Put(w, 21, 10, uoffset)
	w = bitfield.Put(w, 9, 5, xn)
	w = bitfield.Put(w, 4, 0, rt)
	return w
}

func loadLiteral(sf, simm19, rt uint32) uint32 {
	w := bitfield.Put(0, 31, 31, 0)
	w = bitfield.Put(w, 30, 30, sf)
	w = bitfield.Put(w, 29, 29, 0)
	w = bitfield.Put(w, 28, 28, 1)
	w = bitfield.Put(w, 27, 27, 1)
	w = bitfield.Put(w, 26, 26, 0)
	w = bitfield.Put(w, 25, 25, 0)
	w = bitfield.Put(w, 23, 5, simm19)
	return bitfield.Put(w, 4, 0, rt)
}

func TestRoundTripImmediateArithmetic(t *testing.T) {
	roundTrip(t, immArith(1, uint32(ir.ArithADD), 0, 0x10, 2, 1))
	roundTrip(t, immArith(1, uint32(ir.ArithADDS), 1, 0x1, 2, 1))
	roundTrip(t, immArith(0, uint32(ir.ArithSUBS), 0, 0xFFF, 3, 0))
}

func TestRoundTripImmediateWideMove(t *testing.T) {
	roundTrip(t, immWideMove(1, uint32(ir.MOVZ), 0, 0xBEEF, 1))
	roundTrip(t, immWideMove(1, uint32(ir.MOVK), 2, 0x1234, 5))
	roundTrip(t, immWideMove(0, uint32(ir.MOVN), 1, 0x0, 0))
}

func TestWideMoveHW32BitRejectsHighLanes(t *testing.T) {
	word := immWideMove(0, uint32(ir.MOVZ), 3, 0, 0)
	if _, err := Decode(word); err == nil {
		t.Error("expected decode error for hw=3 with sf=0")
	}
}

func TestImmediateReservedOpiRejected(t *testing.T) {
	w := bitfield.Put(0, 25, 23, 0b001)
	w = bitfield.Put(w, 28, 25, 0b1000) // keep op0 in Immediate class
	if _, err := Decode(w); err == nil {
		t.Error("expected decode error for reserved opi=001")
	}
}

func TestRoundTripRegisterArithmetic(t *testing.T) {
	roundTrip(t, regArith(1, uint32(ir.ArithADD), uint32(ir.LSL), 2, 0, 1, 0))
	roundTrip(t, regArith(1, uint32(ir.ArithSUBS), uint32(ir.ASR), 3, 5, 2, 1))
}

func TestRoundTripRegisterBitLogic(t *testing.T) {
	roundTrip(t, regBitLogic(1, uint32(ir.AND), uint32(ir.LSL), 0, 2, 0, 1, 0))
	roundTrip(t, regBitLogic(1, uint32(ir.AND), uint32(ir.LSL), 1, 2, 0, 1, 0)) // BIC
	roundTrip(t, regBitLogic(0, uint32(ir.ANDS), uint32(ir.ROR), 1, 3, 4, 2, 1))
}

func TestRoundTripRegisterMultiply(t *testing.T) {
	roundTrip(t, regMultiply(1, 0, 2, 31, 1, 0)) // MADD, Ra=zero register
	roundTrip(t, regMultiply(1, 1, 2, 3, 1, 0))  // MSUB
}

func TestRoundTripBranch(t *testing.T) {
	roundTrip(t, branchUnconditional(2))
	roundTrip(t, branchRegister(1))
	roundTrip(t, branchConditional(3, uint32(ir.CondEQ)))
}

func TestRoundTripLoadStore(t *testing.T) {
	roundTrip(t, loadStoreUnsignedOffset(1, 1, 0, 1, 0))
	roundTrip(t, loadLiteral(1, 1, 0))
}

func TestInvalidConditionRejected(t *testing.T) {
	if _, err := Decode(branchConditional(0, 2)); err == nil {
		t.Error("expected decode error for unsupported condition code")
	}
}

func TestRegisterBranchRejectsNonzeroLowBits(t *testing.T) {
	w := branchRegister(1) | 1
	if _, err := Decode(w); err == nil {
		t.Error("expected decode error for nonzero low bits on register branch")
	}
}

func TestEncodeBranchResolvesLabel(t *testing.T) {
	b := ir.FromBranch(ir.Branch{
		Tag:     ir.BranchUnconditional,
		Literal: ir.Literal{Label: "loop", IsLabel: true},
	})
	symbols := fakeSymbols{"loop": 0x10}
	word, err := Encode(b, 0x20, symbols)
	if err != nil {
		t.Fatal(err)
	}
	instr, err := Decode(word)
	if err != nil {
		t.Fatal(err)
	}
	if got := instr.Branch().Literal.Value; got != -4 {
		t.Errorf("resolved simm26 = %d, want -4 (target 0x10 from pc 0x20)", got)
	}
}

func TestEncodeBranchUndefinedLabelFails(t *testing.T) {
	b := ir.FromBranch(ir.Branch{
		Tag:     ir.BranchUnconditional,
		Literal: ir.Literal{Label: "nowhere", IsLabel: true},
	})
	if _, err := Encode(b, 0, fakeSymbols{}); err == nil {
		t.Error("expected error for undefined label")
	}
}
