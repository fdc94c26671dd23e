// Package asm is the two-pass assembler (C5a): it turns AArch64 subset
// source text into a flat binary image, using internal/codec as the
// translator once every label is known.
package asm

import (
	"encoding/binary"
	"fmt"

	"github.com/mossheim/a64sim/internal/codec"
	"github.com/mossheim/a64sim/internal/ir"
)

// SymbolTable maps label names to the emit address they were defined
// at, and implements codec.Symbols so Encode can resolve branch and
// load-literal targets directly.
type SymbolTable map[string]uint64

func (s SymbolTable) Resolve(label string) (uint64, bool) {
	addr, ok := s[label]
	return addr, ok
}

// Assembler holds no state of its own between runs; Assemble is safe to
// call repeatedly with different sources.
type Assembler struct{}

// New returns a ready-to-use Assembler.
func New() *Assembler {
	return &Assembler{}
}

type assembledInstr struct {
	address uint64
	instr   ir.Instr
	lineNo  int
}

// Assemble translates src into a flat little-endian binary image,
// starting at baseAddress. Every line is exactly one 4-byte instruction
// or directive; labels consume no space.
func (a *Assembler) Assemble(src string, baseAddress uint64) ([]byte, error) {
	lines := classifyLines(src)

	symbols := make(SymbolTable)
	var instrs []assembledInstr

	// Pass 1: build the IR list and the symbol table. Addresses are
	// known immediately since every instruction and directive is
	// exactly 4 bytes; no forward-reference placeholder pass is needed
	// for sizing, only for the labels themselves.
	address := baseAddress
	for _, line := range lines {
		switch line.kind {
		case lineLabel:
			if _, exists := symbols[line.label]; exists {
				return nil, fmt.Errorf("line %d: label %q redefined", line.lineNo, line.label)
			}
			symbols[line.label] = address
		case lineDirective:
			instr, err := parseDirective(line.mnemonic, line.operands)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line.lineNo, err)
			}
			instrs = append(instrs, assembledInstr{address: address, instr: instr, lineNo: line.lineNo})
			address += 4
		case lineInstruction:
			instr, err := parseInstruction(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line.lineNo, err)
			}
			instrs = append(instrs, assembledInstr{address: address, instr: instr, lineNo: line.lineNo})
			address += 4
		}
	}

	// Pass 2: every label is now resolved; translate IR to machine words.
	out := make([]byte, 0, len(instrs)*4)
	for _, ai := range instrs {
		word, err := codec.Encode(ai.instr, ai.address, symbols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ai.lineNo, err)
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], word)
		out = append(out, buf[:]...)
	}
	return out, nil
}

func parseInstruction(line sourceLine) (ir.Instr, error) {
	entry, ok := lookupMnemonic(line.mnemonic)
	if !ok {
		return ir.Instr{}, fmt.Errorf("unknown mnemonic: %q", line.mnemonic)
	}
	return entry.parse(line.subMnemonic, line.operands)
}
