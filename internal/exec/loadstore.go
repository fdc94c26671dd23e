package exec

import (
	"fmt"

	"github.com/mossheim/a64sim/internal/ir"
	"github.com/mossheim/a64sim/internal/machine"
)

func executeLoadStore(m *machine.Machine, v ir.LoadStore) error {
	if v.Variant == ir.LSLoadLiteral {
		addr := branchTarget(m.ReadPC(), v.Literal.Value)
		value, err := m.ReadMem(addr, mWidth(v.Width))
		if err != nil {
			return fmt.Errorf("load-literal: %w", err)
		}
		m.WriteReg(int(v.Rt), mWidth(v.Width), value)
		return nil
	}

	xn := m.ReadReg(int(v.Xn), machine.Width64)
	var addr uint64
	switch v.Mode {
	case ir.AddrUnsignedOffset:
		scale := uint64(4)
		if v.Width == ir.Width64 {
			scale = 8
		}
		addr = xn + uint64(v.UOffset)*scale
	case ir.AddrPreIndexed:
		addr = uint64(int64(xn) + int64(v.SImm9))
		m.WriteReg(int(v.Xn), machine.Width64, addr)
	case ir.AddrPostIndexed:
		addr = xn
	case ir.AddrRegisterOffset:
		xm := m.ReadReg(int(v.Xm), machine.Width64)
		addr = xn + xm
	}

	if v.Load {
		value, err := m.ReadMem(addr, mWidth(v.Width))
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		m.WriteReg(int(v.Rt), mWidth(v.Width), value)
	} else {
		value := m.ReadReg(int(v.Rt), mWidth(v.Width))
		if err := m.WriteMem(addr, mWidth(v.Width), value); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}

	if v.Mode == ir.AddrPostIndexed {
		m.WriteReg(int(v.Xn), machine.Width64, uint64(int64(xn)+int64(v.SImm9)))
	}
	return nil
}
