package asm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mossheim/a64sim/internal/ir"
)

// mnemonicEntry pairs a canonical mnemonic with its operand parser.
// The table is kept sorted by name so the assembler can dispatch with
// a binary search instead of a chain of string comparisons.
type mnemonicEntry struct {
	name  string
	parse func(sub string, operands []string) (ir.Instr, error)
}

var mnemonicTable = buildMnemonicTable()

func buildMnemonicTable() []mnemonicEntry {
	t := []mnemonicEntry{
		{"add", parseAddSub(ir.ArithADD)},
		{"adds", parseAddSub(ir.ArithADDS)},
		{"sub", parseAddSub(ir.ArithSUB)},
		{"subs", parseAddSub(ir.ArithSUBS)},
		{"movz", parseWideMove(ir.MOVZ)},
		{"movn", parseWideMove(ir.MOVN)},
		{"movk", parseWideMove(ir.MOVK)},
		{"and", parseBitLogic(ir.AND, false)},
		{"bic", parseBitLogic(ir.AND, true)},
		{"orr", parseBitLogic(ir.ORR, false)},
		{"orn", parseBitLogic(ir.ORR, true)},
		{"eor", parseBitLogic(ir.EOR, false)},
		{"eon", parseBitLogic(ir.EOR, true)},
		{"ands", parseBitLogic(ir.ANDS, false)},
		{"bics", parseBitLogic(ir.ANDS, true)},
		{"madd", parseMultiply(ir.MADD)},
		{"msub", parseMultiply(ir.MSUB)},
		{"ldr", parseLoadStore(true)},
		{"str", parseLoadStore(false)},
		{"b", parseBranch},
		{"br", parseBranchRegister},
		{"cmp", aliasCompare(ir.ArithSUBS)},
		{"cmn", aliasCompare(ir.ArithADDS)},
		{"neg", aliasNegate(ir.ArithSUB)},
		{"negs", aliasNegate(ir.ArithSUBS)},
		{"tst", aliasTst},
		{"mvn", aliasMvn},
		{"mov", aliasMov},
		{"mul", aliasMul(ir.MADD)},
		{"mneg", aliasMul(ir.MSUB)},
	}
	sort.Slice(t, func(i, j int) bool { return t[i].name < t[j].name })
	return t
}

// lookupMnemonic binary-searches the sorted dispatch table.
func lookupMnemonic(name string) (mnemonicEntry, bool) {
	i := sort.Search(len(mnemonicTable), func(i int) bool { return mnemonicTable[i].name >= name })
	if i < len(mnemonicTable) && mnemonicTable[i].name == name {
		return mnemonicTable[i], true
	}
	return mnemonicEntry{}, false
}

func requireOperands(op string, operands []string, n int) error {
	if len(operands) != n {
		return fmt.Errorf("%s: expected %d operands, got %d", op, n, len(operands))
	}
	return nil
}

// parseAddSub handles add/adds/sub/subs, dispatching to the Immediate or
// Register family depending on whether the third operand is an immediate.
func parseAddSub(op ir.ArithOp) func(string, []string) (ir.Instr, error) {
	return func(_ string, operands []string) (ir.Instr, error) {
		if len(operands) == 4 {
			// A shift ("#imm, lsl #12" or "rm, lsl #n") arrives as its own operand.
			operands = []string{operands[0], operands[1], operands[2] + ", " + operands[3]}
		}
		if err := requireOperands("add/sub", operands, 3); err != nil {
			return ir.Instr{}, err
		}
		rd, err := parseRegister(operands[0])
		if err != nil {
			return ir.Instr{}, err
		}
		rn, err := parseRegister(operands[1])
		if err != nil {
			return ir.Instr{}, err
		}
		if rn.width != rd.width {
			return ir.Instr{}, fmt.Errorf("mismatched register widths in %q", strings.Join(operands, ", "))
		}
		third := strings.TrimSpace(operands[2])
		if strings.HasPrefix(third, "#") {
			imm12, shiftBy12, err := parseShiftedImm12(third)
			if err != nil {
				return ir.Instr{}, err
			}
			return ir.FromImmediate(ir.Immediate{
				Width: rd.width, Kind: ir.ImmArithmetic, Rd: rd.reg,
				ArithOp: op, ShiftBy12: shiftBy12, Imm12: imm12, Rn: rn.reg,
			}), nil
		}
		rm, shift, imm6, err := parseRegisterOperand(third)
		if err != nil {
			return ir.Instr{}, err
		}
		if rm.width != rd.width {
			return ir.Instr{}, fmt.Errorf("mismatched register widths in %q", strings.Join(operands, ", "))
		}
		return ir.FromRegister(ir.Register{
			Width: rd.width, Group: ir.GroupArithmetic, Shift: shift,
			Rm: rm.reg, Rn: rn.reg, Rd: rd.reg, ArithOp: op, Imm6: imm6,
		}), nil
	}
}

// parseShiftedImm12 parses "#imm" or "#imm, lsl #12".
func parseShiftedImm12(operandTail string) (imm12 uint16, shiftBy12 bool, err error) {
	fields := strings.Fields(strings.ReplaceAll(operandTail, ",", " "))
	v, err := parseImmediate(fields[0], 12, false)
	if err != nil {
		return 0, false, err
	}
	if len(fields) > 1 {
		if len(fields) != 3 || strings.ToLower(fields[1]) != "lsl" || fields[2] != "#12" {
			return 0, false, fmt.Errorf("unsupported immediate shift: %q", operandTail)
		}
		shiftBy12 = true
	}
	return uint16(v), shiftBy12, nil
}

// parseRegisterOperand parses "rm" or "rm, <shift> #n".
func parseRegisterOperand(tail string) (register, ir.ShiftType, uint8, error) {
	fields := strings.Fields(strings.ReplaceAll(tail, ",", " "))
	if len(fields) == 0 {
		return register{}, 0, 0, fmt.Errorf("missing register operand")
	}
	rm, err := parseRegister(fields[0])
	if err != nil {
		return register{}, 0, 0, err
	}
	if len(fields) == 1 {
		return rm, ir.LSL, 0, nil
	}
	if len(fields) != 3 {
		return register{}, 0, 0, fmt.Errorf("malformed shift operand: %q", tail)
	}
	shift, err := parseShiftType(fields[1])
	if err != nil {
		return register{}, 0, 0, err
	}
	amount, err := parseImmediate(fields[2], 6, false)
	if err != nil {
		return register{}, 0, 0, err
	}
	return rm, shift, uint8(amount), nil
}

func parseShiftType(tok string) (ir.ShiftType, error) {
	switch strings.ToLower(tok) {
	case "lsl":
		return ir.LSL, nil
	case "lsr":
		return ir.LSR, nil
	case "asr":
		return ir.ASR, nil
	case "ror":
		return ir.ROR, nil
	default:
		return 0, fmt.Errorf("unknown shift type: %q", tok)
	}
}

func parseWideMove(op ir.WideMoveOp) func(string, []string) (ir.Instr, error) {
	return func(_ string, operands []string) (ir.Instr, error) {
		if len(operands) == 3 {
			// "#imm, lsl #n": the shift arrives as its own operand.
			operands = []string{operands[0], operands[1] + ", " + operands[2]}
		}
		if err := requireOperands(wideMoveOpName(op), operands, 2); err != nil {
			return ir.Instr{}, err
		}
		rd, err := parseRegister(operands[0])
		if err != nil {
			return ir.Instr{}, err
		}
		fields := strings.Fields(strings.ReplaceAll(operands[1], ",", " "))
		if len(fields) == 0 {
			return ir.Instr{}, fmt.Errorf("missing immediate operand")
		}
		imm16, err := parseImmediate(fields[0], 16, false)
		if err != nil {
			return ir.Instr{}, err
		}
		hw := uint8(0)
		if len(fields) > 1 {
			if len(fields) != 3 || strings.ToLower(fields[1]) != "lsl" {
				return ir.Instr{}, fmt.Errorf("malformed wide-move shift: %q", operands[1])
			}
			shiftAmt, err := strconv.Atoi(strings.TrimPrefix(fields[2], "#"))
			if err != nil || shiftAmt%16 != 0 || shiftAmt/16 > 3 {
				return ir.Instr{}, fmt.Errorf("invalid wide-move shift amount: %q", fields[2])
			}
			hw = uint8(shiftAmt / 16)
		}
		if rd.width == ir.Width32 && hw > 1 {
			return ir.Instr{}, fmt.Errorf("hw=%d invalid for a 32-bit destination", hw)
		}
		return ir.FromImmediate(ir.Immediate{
			Width: rd.width, Kind: ir.ImmWideMove, Rd: rd.reg,
			MoveOp: op, HW: hw, Imm16: uint16(imm16),
		}), nil
	}
}

func parseBitLogic(op ir.BitLogicOp, negated bool) func(string, []string) (ir.Instr, error) {
	return func(_ string, operands []string) (ir.Instr, error) {
		if len(operands) == 4 {
			// "rm, <shift> #n": the shift arrives as its own operand.
			operands = []string{operands[0], operands[1], operands[2] + ", " + operands[3]}
		}
		if err := requireOperands(bitLogicOpName(op), operands, 3); err != nil {
			return ir.Instr{}, err
		}
		rd, err := parseRegister(operands[0])
		if err != nil {
			return ir.Instr{}, err
		}
		rn, err := parseRegister(operands[1])
		if err != nil {
			return ir.Instr{}, err
		}
		rm, shift, imm6, err := parseRegisterOperand(operands[2])
		if err != nil {
			return ir.Instr{}, err
		}
		if rn.width != rd.width || rm.width != rd.width {
			return ir.Instr{}, fmt.Errorf("mismatched register widths in %q", strings.Join(operands, ", "))
		}
		return ir.FromRegister(ir.Register{
			Width: rd.width, Group: ir.GroupBitLogic, Shift: shift, Negated: negated,
			Rm: rm.reg, Rn: rn.reg, Rd: rd.reg, BitLogicOp: op, Imm6: imm6,
		}), nil
	}
}

func parseMultiply(op ir.MultiplyOp) func(string, []string) (ir.Instr, error) {
	return func(_ string, operands []string) (ir.Instr, error) {
		if err := requireOperands(multiplyOpName(op), operands, 4); err != nil {
			return ir.Instr{}, err
		}
		regs := make([]register, 4)
		for i, tok := range operands {
			r, err := parseRegister(tok)
			if err != nil {
				return ir.Instr{}, err
			}
			regs[i] = r
		}
		rd, rn, rm, ra := regs[0], regs[1], regs[2], regs[3]
		if rn.width != rd.width || rm.width != rd.width || ra.width != rd.width {
			return ir.Instr{}, fmt.Errorf("mismatched register widths in %q", strings.Join(operands, ", "))
		}
		return ir.FromRegister(ir.Register{
			Width: rd.width, Group: ir.GroupMultiply,
			Rm: rm.reg, Rn: rn.reg, Rd: rd.reg, Ra: ra.reg,
			MulOp: op, NegateProduct: op == ir.MSUB,
		}), nil
	}
}

func parseLoadStore(load bool) func(string, []string) (ir.Instr, error) {
	return func(_ string, operands []string) (ir.Instr, error) {
		if len(operands) < 2 {
			return ir.Instr{}, fmt.Errorf("ldr/str: expected at least 2 operands, got %d", len(operands))
		}
		rt, err := parseRegister(operands[0])
		if err != nil {
			return ir.Instr{}, err
		}

		if !strings.HasPrefix(strings.TrimSpace(operands[1]), "[") {
			if len(operands) != 2 {
				return ir.Instr{}, fmt.Errorf("ldr literal form takes exactly 2 operands")
			}
			if !load {
				return ir.Instr{}, fmt.Errorf("str has no load-literal form")
			}
			lit, err := parseLiteral(operands[1])
			if err != nil {
				return ir.Instr{}, err
			}
			return ir.FromLoadStore(ir.LoadStore{Width: rt.width, Rt: rt.reg, Variant: ir.LSLoadLiteral, Literal: lit}), nil
		}

		mem, err := parseMemOperand(operands[1:])
		if err != nil {
			return ir.Instr{}, err
		}
		ls := ir.LoadStore{
			Width: rt.width, Rt: rt.reg, Variant: ir.LSSingleDataTransfer,
			Unsigned: mem.mode == ir.AddrUnsignedOffset, Load: load, Xn: mem.xn.reg, Mode: mem.mode,
		}
		switch mem.mode {
		case ir.AddrUnsignedOffset:
			scale := int64(4)
			if rt.width == ir.Width64 {
				scale = 8
			}
			if mem.uoffset%scale != 0 {
				return ir.Instr{}, fmt.Errorf("unsigned offset %d is not a multiple of the %d-byte access size", mem.uoffset, scale)
			}
			scaled := mem.uoffset / scale
			if scaled < 0 || scaled > 0xFFF {
				return ir.Instr{}, fmt.Errorf("unsigned offset %d out of range", mem.uoffset)
			}
			ls.UOffset = uint16(scaled)
		case ir.AddrPreIndexed, ir.AddrPostIndexed:
			ls.SImm9 = int16(mem.simm9)
		case ir.AddrRegisterOffset:
			ls.Xm = mem.xm.reg
		}
		return ir.FromLoadStore(ls), nil
	}
}

func parseBranch(sub string, operands []string) (ir.Instr, error) {
	if err := requireOperands("b", operands, 1); err != nil {
		return ir.Instr{}, err
	}
	lit, err := parseLiteral(operands[0])
	if err != nil {
		return ir.Instr{}, err
	}
	if sub == "" {
		return ir.FromBranch(ir.Branch{Tag: ir.BranchUnconditional, Literal: lit}), nil
	}
	cond, err := parseCond(sub)
	if err != nil {
		return ir.Instr{}, err
	}
	return ir.FromBranch(ir.Branch{Tag: ir.BranchConditional, Literal: lit, Cond: cond}), nil
}

func parseBranchRegister(_ string, operands []string) (ir.Instr, error) {
	if err := requireOperands("br", operands, 1); err != nil {
		return ir.Instr{}, err
	}
	xn, err := parseRegister(operands[0])
	if err != nil {
		return ir.Instr{}, err
	}
	if xn.width != ir.Width64 {
		return ir.Instr{}, fmt.Errorf("br requires a 64-bit register operand")
	}
	return ir.FromBranch(ir.Branch{Tag: ir.BranchRegister, Xn: xn.reg}), nil
}

func parseCond(tok string) (ir.Cond, error) {
	switch strings.ToLower(tok) {
	case "eq":
		return ir.CondEQ, nil
	case "ne":
		return ir.CondNE, nil
	case "ge":
		return ir.CondGE, nil
	case "lt":
		return ir.CondLT, nil
	case "gt":
		return ir.CondGT, nil
	case "le":
		return ir.CondLE, nil
	case "al":
		return ir.CondAL, nil
	default:
		return 0, fmt.Errorf("unsupported condition code: %q", tok)
	}
}

// --- Aliases: rewritten in terms of the canonical mnemonics above. ---

func aliasCompare(op ir.ArithOp) func(string, []string) (ir.Instr, error) {
	return func(sub string, operands []string) (ir.Instr, error) {
		if err := requireOperands("cmp/cmn", operands, 2); err != nil {
			return ir.Instr{}, err
		}
		zr, err := zeroRegLike(operands[0])
		if err != nil {
			return ir.Instr{}, err
		}
		return parseAddSub(op)(sub, []string{zr, operands[0], operands[1]})
	}
}

func aliasNegate(op ir.ArithOp) func(string, []string) (ir.Instr, error) {
	return func(sub string, operands []string) (ir.Instr, error) {
		if err := requireOperands("neg/negs", operands, 2); err != nil {
			return ir.Instr{}, err
		}
		zr, err := zeroRegLike(operands[0])
		if err != nil {
			return ir.Instr{}, err
		}
		return parseAddSub(op)(sub, []string{operands[0], zr, operands[1]})
	}
}

func aliasTst(sub string, operands []string) (ir.Instr, error) {
	if err := requireOperands("tst", operands, 2); err != nil {
		return ir.Instr{}, err
	}
	zr, err := zeroRegLike(operands[0])
	if err != nil {
		return ir.Instr{}, err
	}
	return parseBitLogic(ir.ANDS, false)(sub, []string{zr, operands[0], operands[1]})
}

func aliasMvn(sub string, operands []string) (ir.Instr, error) {
	if err := requireOperands("mvn", operands, 2); err != nil {
		return ir.Instr{}, err
	}
	zr, err := zeroRegLike(operands[0])
	if err != nil {
		return ir.Instr{}, err
	}
	return parseBitLogic(ir.ORR, true)(sub, []string{operands[0], zr, operands[1]})
}

func aliasMov(sub string, operands []string) (ir.Instr, error) {
	if err := requireOperands("mov", operands, 2); err != nil {
		return ir.Instr{}, err
	}
	zr, err := zeroRegLike(operands[0])
	if err != nil {
		return ir.Instr{}, err
	}
	return parseBitLogic(ir.ORR, false)(sub, []string{operands[0], zr, operands[1]})
}

func aliasMul(op ir.MultiplyOp) func(string, []string) (ir.Instr, error) {
	return func(sub string, operands []string) (ir.Instr, error) {
		if err := requireOperands("mul/mneg", operands, 3); err != nil {
			return ir.Instr{}, err
		}
		zr, err := zeroRegLike(operands[0])
		if err != nil {
			return ir.Instr{}, err
		}
		return parseMultiply(op)(sub, []string{operands[0], operands[1], operands[2], zr})
	}
}

func arithOpName(op ir.ArithOp) string {
	switch op {
	case ir.ArithADD:
		return "add"
	case ir.ArithADDS:
		return "adds"
	case ir.ArithSUB:
		return "sub"
	case ir.ArithSUBS:
		return "subs"
	default:
		return "arith"
	}
}

func wideMoveOpName(op ir.WideMoveOp) string {
	switch op {
	case ir.MOVZ:
		return "movz"
	case ir.MOVN:
		return "movn"
	case ir.MOVK:
		return "movk"
	default:
		return "movX"
	}
}

func bitLogicOpName(op ir.BitLogicOp) string {
	switch op {
	case ir.AND:
		return "and"
	case ir.ORR:
		return "orr"
	case ir.EOR:
		return "eor"
	case ir.ANDS:
		return "ands"
	default:
		return "bitlogic"
	}
}

func multiplyOpName(op ir.MultiplyOp) string {
	if op == ir.MSUB {
		return "msub"
	}
	return "madd"
}
