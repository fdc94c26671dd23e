// Command a64dis prints a linear-sweep textual disassembly of a flat
// AArch64 subset binary image.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mossheim/a64sim/internal/disasm"
	"github.com/spf13/cobra"
)

func main() {
	var baseStr string

	root := &cobra.Command{
		Use:   "a64dis <image> [output]",
		Short: "Disassemble a flat AArch64 subset binary image",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := parseBase(baseStr)
			if err != nil {
				return err
			}

			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading input file: %w", err)
			}

			lines, err := disasm.Disassemble(image, base)
			if err != nil {
				return fmt.Errorf("disassembly error: %w", err)
			}
			text := disasm.Format(lines)

			if len(args) == 2 {
				if err := os.WriteFile(args[1], []byte(text), 0o644); err != nil {
					return fmt.Errorf("writing output file: %w", err)
				}
				fmt.Printf("Disassembly written to %s\n", args[1])
				return nil
			}
			fmt.Print(text)
			return nil
		},
	}
	root.Flags().StringVar(&baseStr, "base", "0x0", "Address the first word of the image is located at (hex)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
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
