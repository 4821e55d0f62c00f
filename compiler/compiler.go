// Package compiler lowers a topologically ordered graph.Registry into
// a linear bytecode Program: a struct-of-arrays tape the engine
// package interprets, with storage slots assigned so that instruction
// i always writes slot i and never reads from a slot the same pass
// has not yet produced.
package compiler

import "github.com/tsgraph/tsgraph/graph"

// Opcode is the tape's fixed byte encoding. It intentionally shares
// numeric values with graph.Op for Add/Sub/Mul/Div/Prev and adds
// Identity, a tape-only pseudo-op that never corresponds to a graph
// node.
type Opcode byte

const (
	OpAdd      Opcode = 0
	OpSub      Opcode = 1
	OpMul      Opcode = 2
	OpDiv      Opcode = 3
	OpPrev     Opcode = 4
	OpIdentity Opcode = 5
)

func opcodeOf(op graph.Op) Opcode {
	switch op {
	case graph.OpAdd:
		return OpAdd
	case graph.OpSub:
		return OpSub
	case graph.OpMul:
		return OpMul
	case graph.OpDiv:
		return OpDiv
	case graph.OpPrev:
		return OpPrev
	default:
		return OpIdentity
	}
}

// Program is the struct-of-arrays bytecode tape.
type Program struct {
	Ops []Opcode
	P1  []uint32
	P2  []uint32
	Aux []uint32

	// Layout maps a NodeId to its storage slot index.
	Layout []uint32

	// Order is the topological order the program was compiled from.
	Order []graph.NodeId

	// InputStartIndex is the partition point between computed formula
	// slots [0, InputStartIndex) and input/constant slots
	// [InputStartIndex, len(Layout)).
	InputStartIndex int
}

// StorageLen returns the number of distinct storage slots (== node
// count).
func (p *Program) StorageLen() int {
	return len(p.Layout)
}

// Compile partitions order into formula nodes and input nodes (Scalar,
// Series, SolverVariable), assigns storage slots so formulas occupy
// [0, |formulas|) and inputs occupy [|formulas|, N), and emits one
// instruction per formula in order.
func Compile(r *graph.Registry, order []graph.NodeId) *Program {
	n := len(order)
	layout := make([]uint32, n)

	var formulas, inputs []graph.NodeId
	for _, id := range order {
		if r.Kind(id) == graph.KindFormula {
			formulas = append(formulas, id)
		} else {
			inputs = append(inputs, id)
		}
	}

	for i, id := range formulas {
		layout[id] = uint32(i)
	}
	for i, id := range inputs {
		layout[id] = uint32(len(formulas) + i)
	}

	prog := &Program{
		Ops:             make([]Opcode, len(formulas)),
		P1:              make([]uint32, len(formulas)),
		P2:              make([]uint32, len(formulas)),
		Aux:             make([]uint32, len(formulas)),
		Layout:          layout,
		Order:           order,
		InputStartIndex: len(formulas),
	}

	for i, id := range formulas {
		op := r.Op(id)
		parents := r.Parents(id)
		prog.Ops[i] = opcodeOf(op)
		prog.P1[i] = layout[parents[0]]
		prog.P2[i] = layout[parents[1]]
		if op == graph.OpPrev {
			prog.Aux[i] = r.Lag(id)
		}
	}

	return prog
}
