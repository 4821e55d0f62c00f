// Package trace renders ledger state as human-readable tables using
// go-pretty rather than ad hoc fmt.Printf columns. It covers both a
// single node lookup and capturing every instruction of a whole
// compute call in order, with each instruction's resulting value or
// error. The value a cell held before the instruction is not recorded.
package trace

import (
	"fmt"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tsgraph/tsgraph/compiler"
	"github.com/tsgraph/tsgraph/graph"
	"github.com/tsgraph/tsgraph/ledger"
)

// RenderNode is the trace_node external operation: a table describing
// one node's kind, operator, parents, declared metadata and current
// ledger value.
func RenderNode(r *graph.Registry, ldg *ledger.Ledger, id graph.NodeId) string {
	meta := r.Meta(id)

	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("node %d (%s)", id, meta.Name))
	t.AppendHeader(table.Row{"field", "value"})
	t.AppendRow(table.Row{"kind", r.Kind(id).String()})

	if r.Kind(id) == graph.KindFormula {
		t.AppendRow(table.Row{"op", r.Op(id).String()})
		for i, p := range r.Parents(id) {
			t.AppendRow(table.Row{fmt.Sprintf("parent[%d]", i), fmt.Sprintf("%d (%s)", p, r.Meta(p).Name)})
		}
		if r.Op(id) == graph.OpPrev {
			t.AppendRow(table.Row{"lag", r.Lag(id)})
		}
	}
	if meta.Unit != "" {
		t.AppendRow(table.Row{"unit", meta.Unit})
	}
	if meta.Temporal != graph.TemporalNone {
		t.AppendRow(table.Row{"temporal", meta.Temporal.String()})
	}

	switch v, err, ok := ldg.Get(id); {
	case ok:
		t.AppendRow(table.Row{"value", formatValue(v)})
	case err != nil:
		t.AppendRow(table.Row{"error", err.Error()})
	default:
		t.AppendRow(table.Row{"value", "<uncomputed>"})
	}

	return t.Render()
}

func formatValue(v ledger.Value) string {
	if !v.IsSeries() {
		return fmt.Sprintf("%g", v.Scalar())
	}
	s := v.Series()
	if len(s) > 6 {
		return fmt.Sprintf("[%g, %g, %g, ... +%d]", s[0], s[1], s[2], len(s)-3)
	}
	return fmt.Sprintf("%v", s)
}

// step is one instruction captured during a traced compute call.
type step struct {
	id  graph.NodeId
	op  compiler.Opcode
	v   ledger.Value
	err error
}

// Session captures every formula instruction an engine.Engine runs
// while its OnStep hook is attached. It is safe to attach to an
// Engine used across goroutines (guarded by a mutex) even though the
// engine itself expects single-threaded use per call.
type Session struct {
	mu    sync.Mutex
	steps []step
}

// NewSession returns an empty capture session.
func NewSession() *Session {
	return &Session{}
}

// Hook returns the function to assign to engine.Engine.OnStep.
func (s *Session) Hook() func(graph.NodeId, compiler.Opcode, ledger.Value, error) {
	return func(id graph.NodeId, op compiler.Opcode, v ledger.Value, err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.steps = append(s.steps, step{id: id, op: op, v: v, err: err})
	}
}

// Render prints every captured instruction, in execution order, as an
// aligned table: index, node, opcode, resulting value or error.
func (s *Session) Render(r *graph.Registry) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := table.NewWriter()
	t.SetTitle("compute trace")
	t.AppendHeader(table.Row{"#", "node", "name", "op", "result"})
	for i, st := range s.steps {
		result := ""
		if st.err != nil {
			result = "error: " + st.err.Error()
		} else {
			result = formatValue(st.v)
		}
		t.AppendRow(table.Row{i, st.id, r.Meta(st.id).Name, opcodeName(st.op), result})
	}
	return t.Render()
}

func opcodeName(op compiler.Opcode) string {
	switch op {
	case compiler.OpAdd:
		return "Add"
	case compiler.OpSub:
		return "Sub"
	case compiler.OpMul:
		return "Mul"
	case compiler.OpDiv:
		return "Div"
	case compiler.OpPrev:
		return "Prev"
	case compiler.OpIdentity:
		return "Identity"
	default:
		return fmt.Sprintf("Op(%d)", op)
	}
}
