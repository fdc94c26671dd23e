package exec_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mossheim/a64sim/internal/asm"
	"github.com/mossheim/a64sim/internal/exec"
	"github.com/mossheim/a64sim/internal/machine"
)

func assembleAndLoad(t *testing.T, src string) *machine.Machine {
	t.Helper()
	image, err := asm.New().Assemble(src, 0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	m := machine.New()
	if err := m.LoadImage(image); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	return m
}

func memWord(t *testing.T, m *machine.Machine, addr uint64) uint32 {
	t.Helper()
	v, err := m.ReadMem(addr, machine.Width32)
	if err != nil {
		t.Fatalf("ReadMem(%#x): %v", addr, err)
	}
	return uint32(v)
}

// S1 — wide move then store.
func TestScenarioWideMoveThenStore(t *testing.T) {
	m := assembleAndLoad(t, "movz x0, #0x1234\nstr x0, [x1]\nand x0, x0, x0\n")
	m.WriteReg(1, machine.Width64, 0x100)
	if err := exec.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.ReadReg(0, machine.Width64); got != 0x1234 {
		t.Fatalf("X0 = %#x, want 0x1234", got)
	}
	want := []byte{0x34, 0x12, 0, 0, 0, 0, 0, 0}
	got := m.Memory()[0x100:0x108]
	if !bytes.Equal(got, want) {
		t.Fatalf("memory at 0x100 = % x, want % x", got, want)
	}
}

// S2 — conditional forward branch.
func TestScenarioConditionalForwardBranch(t *testing.T) {
	src := "movz w0, #1\ncmp w0, #1\nb.eq target\nmovz w0, #99\ntarget:\nand x0, x0, x0\n"
	m := assembleAndLoad(t, src)
	if err := exec.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.ReadReg(0, machine.Width32); got != 1 {
		t.Fatalf("W0 = %d, want 1", got)
	}
	flags := m.Flags()
	if !flags.Z || flags.N {
		t.Fatalf("unexpected flags after cmp: %+v", flags)
	}
}

// S3 — load literal with .int.
func TestScenarioLoadLiteral(t *testing.T) {
	src := "ldr w0, data\nand x0, x0, x0\ndata:\n.int 0xDEADBEEF\n"
	m := assembleAndLoad(t, src)
	if err := exec.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.ReadReg(0, machine.Width32); got != 0xDEADBEEF {
		t.Fatalf("W0 = %#x, want 0xDEADBEEF", got)
	}
	dataAddr := uint64(8) // two 4-byte instructions precede the directive
	if got := memWord(t, m, dataAddr); got != 0xDEADBEEF {
		t.Fatalf("memory at data = %#x, want 0xDEADBEEF", got)
	}
}

// S4 — register multiply-add.
func TestScenarioMultiplyAdd(t *testing.T) {
	m := assembleAndLoad(t, "madd x0, x1, x2, x3\nand x0, x0, x0\n")
	m.WriteReg(1, machine.Width64, 3)
	m.WriteReg(2, machine.Width64, 4)
	m.WriteReg(3, machine.Width64, 5)
	if err := exec.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.ReadReg(0, machine.Width64); got != 17 {
		t.Fatalf("X0 = %d, want 17", got)
	}
}

// S5 — signed overflow flag.
func TestScenarioSignedOverflow(t *testing.T) {
	m := assembleAndLoad(t, "adds w0, w0, #1\nand x0, x0, x0\n")
	m.WriteReg(0, machine.Width32, 0x7FFFFFFF)
	if err := exec.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.ReadReg(0, machine.Width32); got != 0x80000000 {
		t.Fatalf("W0 = %#x, want 0x80000000", got)
	}
	flags := m.Flags()
	if !flags.N || flags.Z || flags.C || !flags.V {
		t.Fatalf("unexpected flags: %+v, want N=1 Z=0 C=0 V=1", flags)
	}
}

// S6 — post-indexed store.
func TestScenarioPostIndexedStore(t *testing.T) {
	m := assembleAndLoad(t, "str x0, [x1], #8\nand x0, x0, x0\n")
	m.WriteReg(0, machine.Width64, 0xFF)
	m.WriteReg(1, machine.Width64, 0x200)
	if err := exec.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []byte{0xFF, 0, 0, 0, 0, 0, 0, 0}
	if got := m.Memory()[0x200:0x208]; !bytes.Equal(got, want) {
		t.Fatalf("memory at 0x200 = % x, want % x", got, want)
	}
	if got := m.ReadReg(1, machine.Width64); got != 0x208 {
		t.Fatalf("X1 = %#x, want 0x208", got)
	}
}

func TestHaltSentinelWordValue(t *testing.T) {
	m := assembleAndLoad(t, "and x0, x0, x0\n")
	if got := binary.LittleEndian.Uint32(m.Memory()[:4]); got != exec.HaltWord {
		t.Fatalf("assembled halt word = %#x, want %#x", got, exec.HaltWord)
	}
}

func TestPreIndexedWritebackBeforeTransfer(t *testing.T) {
	m := assembleAndLoad(t, "str x0, [x1, #-0x100]!\nand x0, x0, x0\n")
	m.WriteReg(0, machine.Width64, 0x42)
	m.WriteReg(1, machine.Width64, 0x300)
	if err := exec.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.ReadReg(1, machine.Width64); got != 0x200 {
		t.Fatalf("X1 = %#x, want 0x200 (writeback)", got)
	}
	if got := memWord(t, m, 0x200); got != 0x42 {
		t.Fatalf("memory at 0x200 = %#x, want 0x42", got)
	}
}

func TestRegisterOffsetLoad(t *testing.T) {
	m := assembleAndLoad(t, "ldr x0, [x1, x2]\nand x0, x0, x0\n")
	m.WriteReg(1, machine.Width64, 0x400)
	m.WriteReg(2, machine.Width64, 0x10)
	if err := m.WriteMem(0x410, machine.Width64, 0xABCDEF); err != nil {
		t.Fatalf("WriteMem: %v", err)
	}
	if err := exec.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.ReadReg(0, machine.Width64); got != 0xABCDEF {
		t.Fatalf("X0 = %#x, want 0xABCDEF", got)
	}
}

func TestBranchRegister(t *testing.T) {
	// movz x5,#12 @0; br x5 @4; movz w0,#7 @8; and x0,x0,x0 (halt) @12.
	// br jumps straight to the halt, skipping the movz at 8.
	src := "movz x5, #12\nbr x5\nmovz w0, #7\nand x0, x0, x0\n"
	m := assembleAndLoad(t, src)
	if err := exec.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.ReadReg(0, machine.Width32); got != 0 {
		t.Fatalf("W0 = %d, want 0 (skipped)", got)
	}
}
