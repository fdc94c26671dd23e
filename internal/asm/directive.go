package asm

import (
	"fmt"

	"github.com/mossheim/a64sim/internal/ir"
)

// parseDirective handles the one directive this assembler supports:
// ".int <value>", a raw 32-bit word emitted verbatim at the current
// address.
func parseDirective(name string, operands []string) (ir.Instr, error) {
	if name != ".int" {
		return ir.Instr{}, fmt.Errorf("unknown directive: %q", name)
	}
	if len(operands) != 1 {
		return ir.Instr{}, fmt.Errorf(".int: expected exactly one operand, got %d", len(operands))
	}
	v, err := parseNumber(operands[0])
	if err != nil {
		return ir.Instr{}, fmt.Errorf(".int: %w", err)
	}
	if v < 0 {
		v = int64(uint32(v))
	}
	if v > 0xFFFFFFFF {
		return ir.Instr{}, fmt.Errorf(".int: value %d does not fit in 32 bits", v)
	}
	return ir.FromDirective(ir.Directive{Value: uint32(v)}), nil
}
