// Command a64run loads an AArch64 subset binary image (assembling it
// first if given source text) and executes it to halt, then prints a
// register and non-zero-memory dump.
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mossheim/a64sim/internal/asm"
	"github.com/mossheim/a64sim/internal/codec"
	"github.com/mossheim/a64sim/internal/exec"
	"github.com/mossheim/a64sim/internal/machine"
	"github.com/spf13/cobra"
)

func main() {
	log.SetFlags(0)

	var (
		baseStr  string
		dumpPath string
		maxSteps int
	)

	root := &cobra.Command{
		Use:   "a64run <image>",
		Short: "Run an AArch64 subset binary image (or assemble and run source) to halt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := parseBase(baseStr)
			if err != nil {
				return err
			}

			code, err := loadCode(args[0], base)
			if err != nil {
				return err
			}

			m := machine.New()
			if err := m.LoadImage(code); err != nil {
				return fmt.Errorf("loading image: %w", err)
			}

			log.Printf("Loaded %d bytes. Execution starts at PC=0x%016x", len(code), m.ReadPC())

			if err := runBounded(m, maxSteps); err != nil {
				return err
			}

			out := os.Stdout
			if dumpPath != "" {
				f, err := os.Create(dumpPath)
				if err != nil {
					return fmt.Errorf("creating dump file: %w", err)
				}
				defer f.Close()
				out = f
			}
			writeDump(out, m)
			return nil
		},
	}
	root.Flags().StringVar(&baseStr, "base", "0x0", "Base address for assembling source input (hex); the image always loads at address 0")
	root.Flags().StringVar(&dumpPath, "dump", "", "Path to write the register/memory dump (default: stdout)")
	root.Flags().IntVar(&maxSteps, "max-steps", 10_000_000, "Maximum instructions to execute before aborting as a host-level safety bound")

	if err := root.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func parseBase(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid --base value %q: %w", s, err)
	}
	return v, nil
}

// loadCode reads filename and, based on its extension, either assembles
// it as source or treats it as an already-assembled flat binary image.
func loadCode(filename string, base uint64) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".s", ".asm":
		src, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("reading source file: %w", err)
		}
		image, err := asm.New().Assemble(string(src), base)
		if err != nil {
			return nil, fmt.Errorf("assembly failed: %w", err)
		}
		return image, nil
	default:
		image, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("reading image file: %w", err)
		}
		return image, nil
	}
}

// runBounded drives the fetch-decode-execute loop exactly as
// internal/exec.Run does, but aborts after maxSteps instructions. This
// bound lives here, not in internal/exec, so the core loop's own
// termination contract (halt sentinel only) stays unchanged.
func runBounded(m *machine.Machine, maxSteps int) error {
	for step := 0; ; step++ {
		if step >= maxSteps {
			return fmt.Errorf("exceeded maximum step count (%d) without reaching the halt sentinel", maxSteps)
		}
		word, err := m.ReadWord(m.ReadPC())
		if err != nil {
			return fmt.Errorf("fetch at pc=%#x: %w", m.ReadPC(), err)
		}
		if word == exec.HaltWord {
			return nil
		}
		instr, err := codec.Decode(word)
		if err != nil {
			return fmt.Errorf("decode at pc=%#x: %w", m.ReadPC(), err)
		}
		if err := exec.Step(m, instr); err != nil {
			return fmt.Errorf("execute at pc=%#x: %w", m.ReadPC(), err)
		}
	}
}

func writeDump(w *os.File, m *machine.Machine) {
	fmt.Fprintln(w, "Registers:")
	for i := 0; i <= 30; i++ {
		fmt.Fprintf(w, "X%02d = %016x\n", i, m.ReadReg(i, machine.Width64))
	}
	fmt.Fprintf(w, "PC = %016x\n", m.ReadPC())
	fmt.Fprintf(w, "PSTATE : %s\n", m.Flags())

	fmt.Fprintln(w, "Non-zero memory:")
	mem := m.Memory()
	for addr := 0; addr+4 <= len(mem); addr += 4 {
		word := binary.LittleEndian.Uint32(mem[addr:])
		if word != 0 {
			fmt.Fprintf(w, "0x%08x: 0x%08x\n", addr, word)
		}
	}
}
