package asm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mossheim/a64sim/internal/ir"
)

var (
	reRegister     = regexp.MustCompile(`(?i)^([xw])(zr|sp|[0-9]+)$`)
	reImmediate    = regexp.MustCompile(`^#(-?0[xX][0-9a-fA-F]+|-?[0-9]+)$`)
	reBareNumber   = regexp.MustCompile(`^(-?0[xX][0-9a-fA-F]+|-?[0-9]+)$`)
	reLabel        = regexp.MustCompile(`(?i)^[a-z_][a-z0-9_]*$`)
	reBracketGroup = regexp.MustCompile(`^\[(.*)\](!)?$`)
)

// register is a parsed register operand: its width prefix (x/w) and index.
type register struct {
	width ir.Width
	reg   ir.Reg
}

// parseRegister accepts x0..x30, w0..w30, xzr, wzr, xsp, wsp.
func parseRegister(tok string) (register, error) {
	m := reRegister.FindStringSubmatch(strings.TrimSpace(tok))
	if m == nil {
		return register{}, fmt.Errorf("not a register operand: %q", tok)
	}
	width := ir.Width32
	if strings.EqualFold(m[1], "x") {
		width = ir.Width64
	}
	if strings.EqualFold(m[2], "zr") || strings.EqualFold(m[2], "sp") {
		return register{width: width, reg: 31}, nil
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n < 0 || n > 30 {
		return register{}, fmt.Errorf("register index out of range: %q", tok)
	}
	return register{width: width, reg: ir.Reg(n)}, nil
}

// zeroRegLike returns the "xzr"/"wzr" token matching tok's width, for
// alias expansions that inject an implicit zero-register operand.
func zeroRegLike(tok string) (string, error) {
	r, err := parseRegister(tok)
	if err != nil {
		return "", err
	}
	if r.width == ir.Width64 {
		return "xzr", nil
	}
	return "wzr", nil
}

// parseNumber parses a decimal or 0x-prefixed hex literal, with or
// without the leading '#'.
func parseNumber(tok string) (int64, error) {
	tok = strings.TrimSpace(tok)
	tok = strings.TrimPrefix(tok, "#")
	neg := false
	if strings.HasPrefix(tok, "-") {
		neg = true
		tok = tok[1:]
	}
	base := 10
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		base = 16
		tok = tok[2:]
	}
	v, err := strconv.ParseUint(tok, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric literal: %q", tok)
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}

// parseImmediate requires the '#' prefix and range-checks against width bits.
func parseImmediate(tok string, width int, signed bool) (int64, error) {
	if !reImmediate.MatchString(tok) {
		return 0, fmt.Errorf("expected immediate operand, got %q", tok)
	}
	v, err := parseNumber(tok)
	if err != nil {
		return 0, err
	}
	if signed {
		lo := -(int64(1) << (width - 1))
		hi := int64(1)<<(width-1) - 1
		if v < lo || v > hi {
			return 0, fmt.Errorf("immediate %d out of range [%d, %d]", v, lo, hi)
		}
	} else {
		if v < 0 || v > int64(1)<<width-1 {
			return 0, fmt.Errorf("immediate %d out of range [0, %d]", v, int64(1)<<width-1)
		}
	}
	return v, nil
}

// parseLiteral parses a branch/load-literal target: a numeric literal
// (field value, not an address) or a bare label name.
func parseLiteral(tok string) (ir.Literal, error) {
	tok = strings.TrimSpace(tok)
	if reBareNumber.MatchString(tok) || reImmediate.MatchString(tok) {
		v, err := parseNumber(tok)
		if err != nil {
			return ir.Literal{}, err
		}
		return ir.Literal{Value: v}, nil
	}
	if reLabel.MatchString(tok) {
		return ir.Literal{Label: strings.ToLower(tok), IsLabel: true}, nil
	}
	return ir.Literal{}, fmt.Errorf("invalid branch/literal target: %q", tok)
}

// memOperand is the parsed contents of a load/store bracket expression.
type memOperand struct {
	xn         register
	mode       ir.AddrMode
	uoffset    int64 // AddrUnsignedOffset, raw byte offset before scaling
	simm9      int64 // AddrPreIndexed / AddrPostIndexed
	xm         register
	hasXm      bool
	postOffset int64 // not set by parseMemOperand; "[xn], #imm" stores its offset in simm9
}

// parseMemOperand parses the addressing-mode operand list that follows
// a load/store mnemonic: "[xn]", "[xn, #imm]", "[xn, #imm]!",
// "[xn], #imm", or "[xn, xm]".
func parseMemOperand(tokens []string) (memOperand, error) {
	if len(tokens) == 0 {
		return memOperand{}, fmt.Errorf("missing addressing-mode operand")
	}
	joined := strings.Join(tokens, ",")
	joined = strings.TrimSpace(joined)

	// Post-indexed: "[xn], #imm" — the bracket closes before the comma.
	if idx := strings.Index(joined, "],"); idx != -1 && !strings.Contains(joined[:idx+1], "!") {
		bracket := joined[:idx+1]
		rest := strings.TrimSpace(joined[idx+2:])
		m := reBracketGroup.FindStringSubmatch(bracket)
		if m == nil {
			return memOperand{}, fmt.Errorf("malformed addressing mode: %q", joined)
		}
		inner := splitCommaTopLevel(m[1])
		if len(inner) != 1 {
			return memOperand{}, fmt.Errorf("post-indexed base must be a single register: %q", joined)
		}
		xn, err := parseRegister(inner[0])
		if err != nil {
			return memOperand{}, err
		}
		off, err := parseImmediate(rest, 9, true)
		if err != nil {
			return memOperand{}, err
		}
		return memOperand{xn: xn, mode: ir.AddrPostIndexed, simm9: off}, nil
	}

	m := reBracketGroup.FindStringSubmatch(joined)
	if m == nil {
		return memOperand{}, fmt.Errorf("malformed addressing mode: %q", joined)
	}
	preIndexed := m[2] == "!"
	parts := splitCommaTopLevel(m[1])
	if len(parts) == 0 {
		return memOperand{}, fmt.Errorf("empty addressing mode: %q", joined)
	}

	xn, err := parseRegister(parts[0])
	if err != nil {
		return memOperand{}, err
	}

	if len(parts) == 1 {
		if preIndexed {
			return memOperand{}, fmt.Errorf("pre-indexed addressing requires an offset: %q", joined)
		}
		return memOperand{xn: xn, mode: ir.AddrUnsignedOffset, uoffset: 0}, nil
	}

	second := strings.TrimSpace(parts[1])
	if xm, err := parseRegister(second); err == nil {
		if preIndexed {
			return memOperand{}, fmt.Errorf("register-offset addressing cannot be pre-indexed: %q", joined)
		}
		return memOperand{xn: xn, mode: ir.AddrRegisterOffset, xm: xm, hasXm: true}, nil
	}

	if preIndexed {
		off, err := parseImmediate(second, 9, true)
		if err != nil {
			return memOperand{}, err
		}
		return memOperand{xn: xn, mode: ir.AddrPreIndexed, simm9: off}, nil
	}

	off, err := parseNumber(second)
	if err != nil {
		return memOperand{}, fmt.Errorf("invalid offset %q: %w", second, err)
	}
	return memOperand{xn: xn, mode: ir.AddrUnsignedOffset, uoffset: off}, nil
}

// splitCommaTopLevel splits on commas; there is no bracket nesting left
// to protect against inside an addressing-mode body, unlike full operand
// splitting, but we still trim consistently.
func splitCommaTopLevel(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
