package exec

import (
	"github.com/mossheim/a64sim/internal/ir"
	"github.com/mossheim/a64sim/internal/machine"
)

// executeBranch always sets PC itself, including the "not taken"
// fall-through case, so the caller never auto-advances afterward.
func executeBranch(m *machine.Machine, v ir.Branch) {
	switch v.Tag {
	case ir.BranchUnconditional:
		m.WritePC(branchTarget(m.ReadPC(), v.Literal.Value))
	case ir.BranchRegister:
		m.WritePC(m.ReadReg(int(v.Xn), machine.Width64))
	case ir.BranchConditional:
		if condHolds(v.Cond, m.Flags()) {
			m.WritePC(branchTarget(m.ReadPC(), v.Literal.Value))
		} else {
			m.IncPC()
		}
	}
}

func branchTarget(pc uint64, wordDelta int64) uint64 {
	return uint64(int64(pc) + 4*wordDelta)
}

// condHolds evaluates a condition code against the current PSTATE.
func condHolds(cond ir.Cond, p machine.PState) bool {
	switch cond {
	case ir.CondEQ:
		return p.Z
	case ir.CondNE:
		return !p.Z
	case ir.CondGE:
		return p.N == p.V
	case ir.CondLT:
		return p.N != p.V
	case ir.CondGT:
		return !p.Z && p.N == p.V
	case ir.CondLE:
		return !(!p.Z && p.N == p.V)
	case ir.CondAL:
		return true
	default:
		return false
	}
}
