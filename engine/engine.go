// Package engine is the planner/executor pair: it compiles a fresh
// bytecode Program from the registry's current topology, executes it
// against a Ledger, and supports the incremental-recompute path by
// skipping any node the ledger already holds a value for outside the
// invalidated set.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/tsgraph/tsgraph/compiler"
	"github.com/tsgraph/tsgraph/graph"
	"github.com/tsgraph/tsgraph/kernel"
	"github.com/tsgraph/tsgraph/ledger"
	"github.com/tsgraph/tsgraph/topology"
)

// MismatchError reports a ledger/tape layout violation, fatal for the
// compute call it occurs in.
type MismatchError struct {
	Message string
}

func (e *MismatchError) Error() string {
	return "engine: " + e.Message
}

// UnassignedVariableError reports a SolverVariable node read before a
// value was planted for it. Ordinary compute calls never plant one;
// the solver harness does, before invoking the engine on residuals.
type UnassignedVariableError struct {
	Id   graph.NodeId
	Name string
}

func (e *UnassignedVariableError) Error() string {
	return fmt.Sprintf("engine: solver variable %d (%s) has no assigned value", e.Id, e.Name)
}

// Stats is per-call telemetry: how much of the graph a compute call
// actually touched, which is what incremental-recompute assertions
// observe.
type Stats struct {
	NodesVisited int
	NodesSkipped int
	CacheHits    int
}

// Engine executes compiled programs against a Ledger. It is
// stateless; all mutable state lives in the Registry and Ledger the
// caller passes in.
type Engine struct {
	log *slog.Logger

	// OnStep, if set, is called once per formula instruction that is
	// not a cache hit, after the ledger cell has been written with its
	// value or error (including an upstream error). The trace package uses this to capture a full-compute
	// audit trail beyond the single-node trace_node operation.
	OnStep func(id graph.NodeId, op compiler.Opcode, v ledger.Value, err error)
}

// New returns an Engine logging to the default slog logger.
func New() *Engine {
	return &Engine{log: slog.Default()}
}

// WithLogger returns a copy of e logging to l.
func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	return &Engine{log: l, OnStep: e.OnStep}
}

// Compute runs the full pipeline for one call. If changedInputs is
// non-empty it first invalidates every node downstream of them; it
// then compiles a fresh Program from the
// registry's current topological order and runs it, leaving every
// node's ledger cell either Computed* or Error. targets is accepted to
// match the external operation's signature (a future sparse planner
// could restrict the run to their upstream set); the current planner
// always walks the full order, since skipping is already driven by
// per-cell status.
func (e *Engine) Compute(r *graph.Registry, targets []graph.NodeId, ldg *ledger.Ledger, changedInputs []graph.NodeId) (*Stats, error) {
	order, err := topology.Sort(r)
	if err != nil {
		return nil, err
	}

	ldg.EnsureCapacity(r.Count())

	if len(changedInputs) > 0 {
		dirty := topology.DownstreamFrom(r, changedInputs)
		ldg.Invalidate(dirty)
		e.log.Info("engine invalidate", "changed", len(changedInputs), "dirty", len(dirty))
	}

	prog := compiler.Compile(r, order)
	return e.run(prog, r, ldg)
}

func (e *Engine) run(prog *compiler.Program, r *graph.Registry, ldg *ledger.Ledger) (*Stats, error) {
	if ldg.Len() < prog.StorageLen() {
		return nil, &MismatchError{Message: "ledger capacity smaller than program storage"}
	}
	// Validated once here so the hot loop can index storage without
	// per-instruction bounds checks.
	for i := range prog.Ops {
		if int(prog.P1[i]) >= prog.StorageLen() || int(prog.P2[i]) >= prog.StorageLen() {
			return nil, &MismatchError{Message: fmt.Sprintf("instruction %d reads an out-of-range storage slot", i)}
		}
	}

	modelLen := e.modelLen(r, ldg, prog)
	storage := make([][]float64, prog.StorageLen())

	formulaNode := make([]graph.NodeId, prog.InputStartIndex)
	for _, id := range prog.Order {
		slot := int(prog.Layout[id])
		if slot < prog.InputStartIndex {
			formulaNode[slot] = id
		} else {
			storage[slot] = e.seedInput(r, ldg, id, modelLen)
		}
	}

	stats := &Stats{}

	for i := 0; i < len(prog.Ops); i++ {
		id := formulaNode[i]
		stats.NodesVisited++

		if status := ldg.StatusOf(id); status != ledger.Uncomputed {
			stats.NodesSkipped++
			stats.CacheHits++
			if status == ledger.StatusError {
				storage[i] = make([]float64, modelLen)
			} else {
				v, _, _ := ldg.Get(id)
				storage[i] = ledger.Widen(v, modelLen)
			}
			continue
		}

		if upErr := e.upstreamError(r, ldg, id); upErr != nil {
			ldg.InsertError(id, upErr)
			storage[i] = make([]float64, modelLen)
			if e.OnStep != nil {
				e.OnStep(id, prog.Ops[i], ledger.Value{}, upErr)
			}
			continue
		}

		p1 := storage[prog.P1[i]]
		p2 := storage[prog.P2[i]]
		dest := make([]float64, modelLen)
		if err := kernel.Run(prog.Ops[i], dest, p1, p2, prog.Aux[i]); err != nil {
			ldg.InsertError(id, err)
			storage[i] = make([]float64, modelLen)
			if e.OnStep != nil {
				e.OnStep(id, prog.Ops[i], ledger.Value{}, err)
			}
			continue
		}

		storage[i] = dest
		var v ledger.Value
		if modelLen == 1 {
			v = ledger.NewScalar(dest[0])
		} else {
			v = ledger.NewSeries(dest)
		}
		ldg.InsertValue(id, v)
		if e.OnStep != nil {
			e.OnStep(id, prog.Ops[i], v, nil)
		}
	}

	return stats, nil
}

func (e *Engine) upstreamError(r *graph.Registry, ldg *ledger.Ledger, id graph.NodeId) error {
	for _, p := range r.Parents(id) {
		if ldg.StatusOf(p) == ledger.StatusError {
			return &ledger.UpstreamError{Cause: p, CauseName: r.Meta(p).Name}
		}
	}
	return nil
}

// seedInput installs (and returns, widened) the ledger cell for an
// input node (Scalar, Series, or SolverVariable), computing it from
// the registry's constant if the ledger does not already hold one.
func (e *Engine) seedInput(r *graph.Registry, ldg *ledger.Ledger, id graph.NodeId, modelLen int) []float64 {
	if status := ldg.StatusOf(id); status != ledger.Uncomputed {
		if status == ledger.StatusError {
			return make([]float64, modelLen)
		}
		v, _, _ := ldg.Get(id)
		return ledger.Widen(v, modelLen)
	}

	switch r.Kind(id) {
	case graph.KindScalar:
		v := ledger.NewScalar(r.ScalarValue(id))
		ldg.InsertValue(id, v)
		return ledger.Widen(v, modelLen)
	case graph.KindSeries:
		v := ledger.NewSeries(r.SeriesValue(id))
		ldg.InsertValue(id, v)
		return ledger.Widen(v, modelLen)
	default:
		err := &UnassignedVariableError{Id: id, Name: r.Meta(id).Name}
		ldg.InsertError(id, err)
		return make([]float64, modelLen)
	}
}

// modelLen is the widest constant or already-computed series reachable
// from an input slot; every row in a run is broadcast to this width.
func (e *Engine) modelLen(r *graph.Registry, ldg *ledger.Ledger, prog *compiler.Program) int {
	n := 1
	for _, id := range prog.Order {
		if int(prog.Layout[id]) < prog.InputStartIndex {
			continue
		}
		if r.Kind(id) == graph.KindSeries {
			if l := len(r.SeriesValue(id)); l > n {
				n = l
			}
		}
		if ldg.StatusOf(id) == ledger.ComputedSeries {
			if v, _, ok := ldg.Get(id); ok {
				if l := v.Len(); l > n {
					n = l
				}
			}
		}
	}
	return n
}
