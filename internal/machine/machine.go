// Package machine holds the virtual CPU's register file, PSTATE flags,
// and byte-addressable memory image, plus the width-aware accessors the
// decoder and executor use to read and write them.
package machine

import (
	"encoding/binary"
	"fmt"
)

// MemorySize is the fixed size of the byte-addressable image: 2 MiB.
const MemorySize = 1 << 21

// ZeroReg is the register index that reads as zero and discards writes.
const ZeroReg = 31

// NumGeneralRegs is the count of addressable general registers (0..30);
// index 31 is the zero register and is never stored.
const NumGeneralRegs = 31

// Width selects the operand width of a register or memory access.
type Width int

const (
	// Width32 is a 32-bit access: register writes zero-extend, reads truncate.
	Width32 Width = iota
	// Width64 is a full 64-bit access.
	Width64
)

// PState holds the four condition flags.
type PState struct {
	N, Z, C, V bool
}

// String renders PState as "NZCV" with unset flags replaced by '-',
// matching the emulator dump format.
func (p PState) String() string {
	letter := func(set bool, ch byte) byte {
		if set {
			return ch
		}
		return '-'
	}
	return string([]byte{
		letter(p.N, 'N'),
		letter(p.Z, 'Z'),
		letter(p.C, 'C'),
		letter(p.V, 'V'),
	})
}

// Machine is the virtual CPU: 31 general registers, PC, SP, PSTATE, and
// a 2 MiB memory image. The zero value is not ready for use; call New.
type Machine struct {
	regs [NumGeneralRegs]uint64
	pc   uint64
	sp   uint64
	st   PState
	mem  []byte
}

// New returns a Machine with zeroed registers and memory, PSTATE
// {N:0, Z:1, C:0, V:0}, and PC = 0, per the data model's initial state.
func New() *Machine {
	m := &Machine{mem: make([]byte, MemorySize)}
	m.st = PState{Z: true}
	return m
}

// ReadReg returns the value of register id at the given width. Reading
// register 31 always yields 0. A 32-bit read truncates the stored value.
func (m *Machine) ReadReg(id int, w Width) uint64 {
	if id == ZeroReg {
		return 0
	}
	v := m.regs[id]
	if w == Width32 {
		return v & 0xFFFFFFFF
	}
	return v
}

// WriteReg stores value into register id at the given width. A 32-bit
// write zero-extends into the full 64-bit register. Writes to register
// 31 are silently discarded.
func (m *Machine) WriteReg(id int, w Width, value uint64) {
	if id == ZeroReg {
		return
	}
	if w == Width32 {
		value &= 0xFFFFFFFF
	}
	m.regs[id] = value
}

// ReadPC returns the program counter.
func (m *Machine) ReadPC() uint64 { return m.pc }

// WritePC sets the program counter directly, used by branch executors.
func (m *Machine) WritePC(addr uint64) { m.pc = addr }

// IncPC advances the program counter by one instruction word (4 bytes).
func (m *Machine) IncPC() { m.pc += 4 }

// ReadSP returns the dedicated stack-pointer register. No instruction in
// this subset's IR addresses it; it exists for data-model completeness.
func (m *Machine) ReadSP() uint64 { return m.sp }

// WriteSP sets the dedicated stack-pointer register.
func (m *Machine) WriteSP(value uint64) { m.sp = value }

// Flags returns the current PSTATE.
func (m *Machine) Flags() PState { return m.st }

// WriteFlags replaces PSTATE wholesale.
func (m *Machine) WriteFlags(p PState) { m.st = p }

// ReadMem reads a little-endian unit of the given width from address.
// An out-of-range address is fatal per the resource-error policy.
func (m *Machine) ReadMem(address uint64, w Width) (uint64, error) {
	size := widthBytes(w)
	if err := m.checkRange(address, size); err != nil {
		return 0, err
	}
	switch w {
	case Width32:
		return uint64(binary.LittleEndian.Uint32(m.mem[address:])), nil
	default:
		return binary.LittleEndian.Uint64(m.mem[address:]), nil
	}
}

// WriteMem writes a little-endian unit of the given width to address.
func (m *Machine) WriteMem(address uint64, w Width, value uint64) error {
	size := widthBytes(w)
	if err := m.checkRange(address, size); err != nil {
		return err
	}
	switch w {
	case Width32:
		binary.LittleEndian.PutUint32(m.mem[address:], uint32(value))
	default:
		binary.LittleEndian.PutUint64(m.mem[address:], value)
	}
	return nil
}

// ReadWord reads the raw 32-bit little-endian instruction word at
// address, used by the fetch stage of the executor.
func (m *Machine) ReadWord(address uint64) (uint32, error) {
	if err := m.checkRange(address, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.mem[address:]), nil
}

// WriteWord writes a raw 32-bit little-endian word at address. The
// assembler does not use it; it builds its image as a byte slice.
func (m *Machine) WriteWord(address uint64, word uint32) error {
	if err := m.checkRange(address, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.mem[address:], word)
	return nil
}

// LoadImage copies bytes into memory starting at address 0, as the
// emulator's binary-image loader.
func (m *Machine) LoadImage(bytes []byte) error {
	if len(bytes) > len(m.mem) {
		return fmt.Errorf("machine: image of %d bytes exceeds %d-byte memory", len(bytes), len(m.mem))
	}
	copy(m.mem, bytes)
	return nil
}

// Memory returns the backing byte slice directly, for dumping non-zero
// words without copying the full 2 MiB image.
func (m *Machine) Memory() []byte { return m.mem }

func (m *Machine) checkRange(address uint64, size int) error {
	if address > uint64(len(m.mem)) || uint64(len(m.mem))-address < uint64(size) {
		return fmt.Errorf("machine: address %#x out of range [0, %#x)", address, len(m.mem))
	}
	return nil
}

func widthBytes(w Width) int {
	if w == Width32 {
		return 4
	}
	return 8
}
