// Package disasm is a linear-sweep textual disassembler: every
// instruction in this subset is exactly 4 bytes, so unlike a
// variable-length ISA there is no control-flow-guided sweep needed —
// codec.Decode is simply run over each word in address order.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mossheim/a64sim/internal/codec"
	"github.com/mossheim/a64sim/internal/ir"
)

// Line is one disassembled instruction word.
type Line struct {
	Address uint64
	Word    uint32
	Text    string
}

// Disassemble decodes every 4-byte word in image starting at baseAddress
// and renders it as AArch64-subset assembly text. A word that fails to
// decode is rendered as a ".int" directive rather than aborting the
// whole sweep, since an image may legitimately contain data words
// (load-literal targets) interleaved with code.
func Disassemble(image []byte, baseAddress uint64) ([]Line, error) {
	if len(image)%4 != 0 {
		return nil, fmt.Errorf("disasm: image length %d is not a multiple of 4", len(image))
	}
	lines := make([]Line, 0, len(image)/4)
	for off := 0; off < len(image); off += 4 {
		addr := baseAddress + uint64(off)
		word := binary.LittleEndian.Uint32(image[off:])
		text := render(addr, word)
		lines = append(lines, Line{Address: addr, Word: word, Text: text})
	}
	return lines, nil
}

// render decodes a single word and formats it, falling back to a raw
// .int rendering when the word isn't a valid instruction.
func render(addr uint64, word uint32) string {
	instr, err := codec.Decode(word)
	if err != nil {
		return fmt.Sprintf(".int 0x%08X", word)
	}
	return renderInstr(addr, instr)
}

func renderInstr(addr uint64, instr ir.Instr) string {
	switch instr.Kind() {
	case ir.KindImmediate:
		return renderImmediate(instr.Immediate())
	case ir.KindRegister:
		return renderRegister(instr.Register())
	case ir.KindLoadStore:
		return renderLoadStore(addr, instr.LoadStore())
	case ir.KindBranch:
		return renderBranch(addr, instr.Branch())
	case ir.KindDirective:
		return fmt.Sprintf(".int 0x%08X", instr.Directive().Value)
	default:
		return "<unknown>"
	}
}

func regName(w ir.Width, r ir.Reg) string {
	prefix := "w"
	if w == ir.Width64 {
		prefix = "x"
	}
	if r == 31 {
		return prefix + "zr"
	}
	return fmt.Sprintf("%s%d", prefix, r)
}

func renderImmediate(v ir.Immediate) string {
	switch v.Kind {
	case ir.ImmArithmetic:
		mnemonic := map[ir.ArithOp]string{
			ir.ArithADD: "add", ir.ArithADDS: "adds", ir.ArithSUB: "sub", ir.ArithSUBS: "subs",
		}[v.ArithOp]
		op2 := fmt.Sprintf("#%d", v.Imm12)
		if v.ShiftBy12 {
			op2 += ", lsl #12"
		}
		return fmt.Sprintf("%s %s, %s, %s", mnemonic, regName(v.Width, v.Rd), regName(v.Width, v.Rn), op2)
	case ir.ImmWideMove:
		mnemonic := map[ir.WideMoveOp]string{ir.MOVZ: "movz", ir.MOVN: "movn", ir.MOVK: "movk"}[v.MoveOp]
		op := fmt.Sprintf("#%d", v.Imm16)
		if v.HW != 0 {
			op += fmt.Sprintf(", lsl #%d", int(v.HW)*16)
		}
		return fmt.Sprintf("%s %s, %s", mnemonic, regName(v.Width, v.Rd), op)
	default:
		return "<bad immediate>"
	}
}

func shiftSuffix(shift ir.ShiftType, amount uint8) string {
	if amount == 0 && shift == ir.LSL {
		return ""
	}
	name := map[ir.ShiftType]string{ir.LSL: "lsl", ir.LSR: "lsr", ir.ASR: "asr", ir.ROR: "ror"}[shift]
	return fmt.Sprintf(", %s #%d", name, amount)
}

func renderRegister(v ir.Register) string {
	switch v.Group {
	case ir.GroupArithmetic:
		mnemonic := map[ir.ArithOp]string{
			ir.ArithADD: "add", ir.ArithADDS: "adds", ir.ArithSUB: "sub", ir.ArithSUBS: "subs",
		}[v.ArithOp]
		return fmt.Sprintf("%s %s, %s, %s%s", mnemonic, regName(v.Width, v.Rd), regName(v.Width, v.Rn),
			regName(v.Width, v.Rm), shiftSuffix(v.Shift, v.Imm6))
	case ir.GroupBitLogic:
		names := map[ir.BitLogicOp][2]string{
			ir.AND:  {"and", "bic"},
			ir.ORR:  {"orr", "orn"},
			ir.EOR:  {"eor", "eon"},
			ir.ANDS: {"ands", "bics"},
		}[v.BitLogicOp]
		mnemonic := names[0]
		if v.Negated {
			mnemonic = names[1]
		}
		return fmt.Sprintf("%s %s, %s, %s%s", mnemonic, regName(v.Width, v.Rd), regName(v.Width, v.Rn),
			regName(v.Width, v.Rm), shiftSuffix(v.Shift, v.Imm6))
	case ir.GroupMultiply:
		mnemonic := "madd"
		if v.MulOp == ir.MSUB {
			mnemonic = "msub"
		}
		return fmt.Sprintf("%s %s, %s, %s, %s", mnemonic, regName(v.Width, v.Rd), regName(v.Width, v.Rn),
			regName(v.Width, v.Rm), regName(v.Width, v.Ra))
	default:
		return "<bad register op>"
	}
}

func renderLoadStore(addr uint64, v ir.LoadStore) string {
	rt := regName(v.Width, v.Rt)
	if v.Variant == ir.LSLoadLiteral {
		return fmt.Sprintf("ldr %s, #%d  ; -> 0x%x", rt, v.Literal.Value, addr+uint64(4*v.Literal.Value))
	}
	mnemonic := "str"
	if v.Load {
		mnemonic = "ldr"
	}
	xn := regName(ir.Width64, v.Xn)
	var mode string
	switch v.Mode {
	case ir.AddrUnsignedOffset:
		scale := 4
		if v.Width == ir.Width64 {
			scale = 8
		}
		if v.UOffset == 0 {
			mode = fmt.Sprintf("[%s]", xn)
		} else {
			mode = fmt.Sprintf("[%s, #%d]", xn, int(v.UOffset)*scale)
		}
	case ir.AddrPreIndexed:
		mode = fmt.Sprintf("[%s, #%d]!", xn, v.SImm9)
	case ir.AddrPostIndexed:
		mode = fmt.Sprintf("[%s], #%d", xn, v.SImm9)
	case ir.AddrRegisterOffset:
		mode = fmt.Sprintf("[%s, %s]", xn, regName(ir.Width64, v.Xm))
	}
	return fmt.Sprintf("%s %s, %s", mnemonic, rt, mode)
}

func renderBranch(addr uint64, v ir.Branch) string {
	switch v.Tag {
	case ir.BranchUnconditional:
		target := addr + uint64(4*v.Literal.Value)
		return fmt.Sprintf("b 0x%x", target)
	case ir.BranchRegister:
		return fmt.Sprintf("br %s", regName(ir.Width64, v.Xn))
	case ir.BranchConditional:
		target := addr + uint64(4*v.Literal.Value)
		return fmt.Sprintf("b.%s 0x%x", condName(v.Cond), target)
	default:
		return "<bad branch>"
	}
}

func condName(c ir.Cond) string {
	names := map[ir.Cond]string{
		ir.CondEQ: "eq", ir.CondNE: "ne", ir.CondGE: "ge", ir.CondLT: "lt",
		ir.CondGT: "gt", ir.CondLE: "le", ir.CondAL: "al",
	}
	if n, ok := names[c]; ok {
		return n
	}
	return "?"
}

// Format renders every line as "0xADDR: WORD  TEXT", one per line.
func Format(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "0x%08x: %08x  %s\n", l.Address, l.Word, l.Text)
	}
	return b.String()
}
