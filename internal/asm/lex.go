package asm

import "strings"

type lineKind int

const (
	lineEmpty lineKind = iota
	lineLabel
	lineDirective
	lineInstruction
)

// sourceLine is one classified, tokenized line of input.
type sourceLine struct {
	kind        lineKind
	lineNo      int
	label       string
	mnemonic    string
	subMnemonic string
	operands    []string
	raw         string
}

// classifyLines strips comments, recognizes label definitions, and
// tokenizes the mnemonic and operand list for every remaining line. A
// line may both define a label and carry an instruction ("loop: b loop").
func classifyLines(src string) []sourceLine {
	var out []sourceLine
	for i, raw := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		lineNo := i + 1
		line := raw
		if idx := strings.IndexAny(line, ";"); idx != -1 {
			line = line[:idx]
		}
		if idx := strings.Index(line, "//"); idx != -1 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var label string
		if idx := strings.Index(line, ":"); idx != -1 {
			label = strings.TrimSpace(line[:idx])
			line = strings.TrimSpace(line[idx+1:])
			out = append(out, sourceLine{kind: lineLabel, lineNo: lineNo, label: strings.ToLower(label), raw: raw})
			if line == "" {
				continue
			}
		}

		mnemonic, operandStr := splitMnemonic(line)
		subMnemonic := ""
		kind := lineInstruction
		if strings.HasPrefix(mnemonic, ".") {
			kind = lineDirective
		} else if dot := strings.Index(mnemonic, "."); dot != -1 {
			subMnemonic = mnemonic[dot+1:]
			mnemonic = mnemonic[:dot]
		}

		var operands []string
		if operandStr != "" {
			operands = splitOperands(operandStr)
		}

		out = append(out, sourceLine{
			kind:        kind,
			lineNo:      lineNo,
			mnemonic:    strings.ToLower(mnemonic),
			subMnemonic: strings.ToLower(subMnemonic),
			operands:    operands,
			raw:         raw,
		})
	}
	return out
}

func splitMnemonic(line string) (mnemonic, operands string) {
	idx := strings.IndexAny(line, " \t")
	if idx == -1 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx:])
}

// splitOperands splits an operand string on commas, except commas
// nested inside a "[...]" addressing-mode group.
func splitOperands(s string) []string {
	var result []string
	depth := 0
	last := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				result = append(result, strings.TrimSpace(s[last:i]))
				last = i + 1
			}
		}
	}
	result = append(result, strings.TrimSpace(s[last:]))
	return result
}
