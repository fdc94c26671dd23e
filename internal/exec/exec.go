// Package exec is the fetch-decode-execute loop (C5b): it drives
// internal/machine forward one instruction at a time using
// internal/codec.Decode, dispatching each decoded internal/ir.Instr to
// its per-family semantic executor.
package exec

import (
	"fmt"

	"github.com/mossheim/a64sim/internal/bitfield"
	"github.com/mossheim/a64sim/internal/codec"
	"github.com/mossheim/a64sim/internal/ir"
	"github.com/mossheim/a64sim/internal/machine"
)

// HaltWord is the sentinel instruction that stops the loop. The
// assembler produces it from "and x0, x0, x0".
const HaltWord uint32 = 0x8a000000

// Run executes instructions starting at the machine's current PC until
// the word at PC equals HaltWord. It is a plain sequential loop: no
// goroutines, no step limit, no cooperative suspension. A caller that
// wants a runaway guard wraps Run itself (see cmd/a64run's --max-steps).
func Run(m *machine.Machine) error {
	for {
		word, err := m.ReadWord(m.ReadPC())
		if err != nil {
			return fmt.Errorf("exec: fetch at pc=%#x: %w", m.ReadPC(), err)
		}
		if word == HaltWord {
			return nil
		}
		instr, err := codec.Decode(word)
		if err != nil {
			return fmt.Errorf("exec: decode at pc=%#x: %w", m.ReadPC(), err)
		}
		if err := Step(m, instr); err != nil {
			return fmt.Errorf("exec: execute at pc=%#x: %w", m.ReadPC(), err)
		}
	}
}

// Step executes a single already-decoded instruction against m,
// advancing PC appropriately (branch executors set PC themselves;
// every other family falls through to a plain +4 advance).
func Step(m *machine.Machine, instr ir.Instr) error {
	switch instr.Kind() {
	case ir.KindImmediate:
		executeImmediate(m, instr.Immediate())
		m.IncPC()
	case ir.KindRegister:
		executeRegister(m, instr.Register())
		m.IncPC()
	case ir.KindLoadStore:
		if err := executeLoadStore(m, instr.LoadStore()); err != nil {
			return err
		}
		m.IncPC()
	case ir.KindBranch:
		executeBranch(m, instr.Branch())
	case ir.KindDirective:
		return fmt.Errorf("exec: encountered a .int directive at pc=%#x, which is data, not an instruction", m.ReadPC())
	default:
		return fmt.Errorf("exec: unhandled instruction kind %v", instr.Kind())
	}
	return nil
}

func widthBits(w ir.Width) int {
	if w == ir.Width64 {
		return 64
	}
	return 32
}

func mWidth(w ir.Width) machine.Width {
	if w == ir.Width64 {
		return machine.Width64
	}
	return machine.Width32
}

// arithWithFlags computes rn±op2 at the given bit width and the four
// NZCV flags that would result, per the ADDS/SUBS definitions in the
// executor semantics.
func arithWithFlags(rn, op2 uint64, bits int, sub bool) (result uint64, flags machine.PState) {
	mask := bitfield.Truncate(^uint64(0), bits)
	rn &= mask
	op2 &= mask

	var full uint64
	if sub {
		full = rn - op2
	} else {
		full = rn + op2
	}
	result = full & mask

	signBit := uint(bits - 1)
	signRn := (rn>>signBit)&1 == 1
	signOp2 := (op2>>signBit)&1 == 1
	signRes := (result>>signBit)&1 == 1

	flags.N = (result>>signBit)&1 == 1
	flags.Z = result == 0
	if sub {
		flags.C = op2 <= rn
		flags.V = signRn != signOp2 && signRes != signRn
	} else {
		flags.C = op2 > (mask - rn)
		flags.V = signRn == signOp2 && signRes != signRn
	}
	return result, flags
}
