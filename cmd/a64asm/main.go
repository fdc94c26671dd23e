// Command a64asm assembles AArch64 subset source into a flat binary image.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mossheim/a64sim/internal/asm"
	"github.com/spf13/cobra"
)

func main() {
	var baseStr string

	root := &cobra.Command{
		Use:   "a64asm <source> [output]",
		Short: "Assemble AArch64 subset source into a flat binary image",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := parseBase(baseStr)
			if err != nil {
				return err
			}

			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading source file: %w", err)
			}

			image, err := asm.New().Assemble(string(src), base)
			if err != nil {
				return fmt.Errorf("assembly failed: %w", err)
			}

			if len(args) == 2 {
				if err := os.WriteFile(args[1], image, 0o644); err != nil {
					return fmt.Errorf("writing output file: %w", err)
				}
				fmt.Printf("Assembled binary written to %s\n", args[1])
				return nil
			}

			for i, b := range image {
				fmt.Printf("%02X ", b)
				if (i+1)%16 == 0 {
					fmt.Println()
				}
			}
			fmt.Println()
			return nil
		},
	}
	root.Flags().StringVar(&baseStr, "base", "0x0", "Base address instructions are assembled at (hex)")

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
