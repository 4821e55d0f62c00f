// Package analyzer implements the static analysis pass: temporal-type
// and unit inference over a topologically sorted graph, followed by
// verification against any type the caller declared explicitly.
// Unlike the engine, the analyzer never short-circuits on the first
// problem — it visits every node and accumulates every issue across
// the whole graph rather than stopping at the first violation.
package analyzer

import (
	"fmt"
	"strings"

	"github.com/tsgraph/tsgraph/graph"
	"github.com/tsgraph/tsgraph/topology"
	"github.com/tsgraph/tsgraph/units"
)

// IssueKind distinguishes the two validation failure families.
type IssueKind uint8

const (
	IssueTemporalMismatch IssueKind = iota
	IssueUnitMismatch
)

func (k IssueKind) String() string {
	if k == IssueUnitMismatch {
		return "UnitMismatch"
	}
	return "TemporalMismatch"
}

// Issue is one accumulated validation failure, carrying the offending
// node and a human-readable message.
type Issue struct {
	Node    graph.NodeId
	Kind    IssueKind
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s at node %d: %s", i.Kind, i.Node, i.Message)
}

// ValidationError aggregates every Issue found across a graph:
// validation either succeeds as a whole or reports all of them.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	lines := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		lines[i] = issue.String()
	}
	return fmt.Sprintf("analyzer: %d validation issue(s):\n%s", len(e.Issues), strings.Join(lines, "\n"))
}

// Result carries the per-node inference the analyzer computed, for
// callers (trace_node, tooling) that want to display it.
type Result struct {
	Order    []graph.NodeId
	Temporal []graph.Temporal
	Unit     []units.Unit
	HasUnit  []bool
}

// Analyze topologically sorts r, infers temporal type and unit for
// every Formula node, verifies declared types against the inference,
// and returns the accumulated result. A cycle is a fatal structural
// error returned immediately; validation problems are collected into a
// single *ValidationError.
func Analyze(r *graph.Registry) (*Result, error) {
	order, err := topology.Sort(r)
	if err != nil {
		return nil, err
	}

	n := r.Count()
	res := &Result{
		Order:    order,
		Temporal: make([]graph.Temporal, n),
		Unit:     make([]units.Unit, n),
		HasUnit:  make([]bool, n),
	}

	var issues []Issue

	for _, id := range order {
		meta := r.Meta(id)

		if r.Kind(id) != graph.KindFormula {
			res.Temporal[id] = meta.Temporal
			if meta.Unit != "" {
				u, perr := units.Parse(meta.Unit)
				if perr == nil {
					res.Unit[id] = u
					res.HasUnit[id] = true
				}
			}
			continue
		}

		inferredTemporal, temporalIssue := inferTemporal(r, res, id)
		inferredUnit, hasUnit, unitIssue := inferUnit(r, res, id)

		res.Temporal[id] = inferredTemporal
		res.Unit[id] = inferredUnit
		res.HasUnit[id] = hasUnit

		if temporalIssue != nil {
			issues = append(issues, *temporalIssue)
		}
		if unitIssue != nil {
			issues = append(issues, *unitIssue)
		}

		if temporalIssue == nil && meta.Temporal != graph.TemporalNone && meta.Temporal != inferredTemporal {
			issues = append(issues, Issue{
				Node:    id,
				Kind:    IssueTemporalMismatch,
				Message: fmt.Sprintf("declared %s but inferred %s", meta.Temporal, inferredTemporal),
			})
		}
		if meta.Unit != "" {
			declared, derr := units.Parse(meta.Unit)
			if derr == nil && (!hasUnit || !declared.Equal(inferredUnit)) {
				issues = append(issues, Issue{
					Node:    id,
					Kind:    IssueUnitMismatch,
					Message: fmt.Sprintf("declared %q but inferred %q", meta.Unit, inferredUnit.Canonical()),
				})
			}
		}
	}

	if len(issues) > 0 {
		return res, &ValidationError{Issues: issues}
	}
	return res, nil
}

// inferTemporal applies the stock/flow combination rules: Stock+Flow
// stays Stock, two Stocks may not combine, a Stock may never appear
// under Mul/Div, and Prev inherits its main parent. Parent temporal
// types are read from res, which already holds them because parents
// precede id in the topological order the caller iterates.
func inferTemporal(r *graph.Registry, res *Result, id graph.NodeId) (graph.Temporal, *Issue) {
	parents := r.Parents(id)
	op := r.Op(id)

	if op == graph.OpPrev {
		main := parents[0]
		return res.Temporal[main], nil
	}

	stocks, flows := 0, 0
	for _, p := range parents {
		switch res.Temporal[p] {
		case graph.Stock:
			stocks++
		case graph.Flow:
			flows++
		}
	}

	switch op {
	case graph.OpAdd, graph.OpSub:
		if stocks >= 2 {
			return graph.TemporalNone, &Issue{
				Node: id, Kind: IssueTemporalMismatch,
				Message: "Stock + Stock is not a valid temporal combination",
			}
		}
		if stocks == 1 {
			return graph.Stock, nil
		}
		if flows > 0 {
			return graph.Flow, nil
		}
		return graph.TemporalNone, nil
	case graph.OpMul, graph.OpDiv:
		if stocks > 0 {
			return graph.TemporalNone, &Issue{
				Node: id, Kind: IssueTemporalMismatch,
				Message: "Stock may not appear as a Mul/Div operand",
			}
		}
		if flows > 0 {
			return graph.Flow, nil
		}
		return graph.TemporalNone, nil
	default:
		return graph.TemporalNone, nil
	}
}

// inferUnit applies the unit-algebra rules: Add/Sub operands must
// agree, Mul multiplies, Div divides, Prev inherits its main parent.
// It consults res, which already holds the inferred/declared unit for
// every parent (parents precede id in the topological order).
func inferUnit(r *graph.Registry, res *Result, id graph.NodeId) (units.Unit, bool, *Issue) {
	parents := r.Parents(id)
	op := r.Op(id)

	if op == graph.OpPrev {
		main := parents[0]
		return res.Unit[main], res.HasUnit[main], nil
	}

	switch op {
	case graph.OpAdd, graph.OpSub:
		var first units.Unit
		have := false
		for _, p := range parents {
			if !res.HasUnit[p] {
				continue
			}
			if !have {
				first = res.Unit[p]
				have = true
				continue
			}
			if !first.Equal(res.Unit[p]) {
				return units.Dimensionless(), false, &Issue{
					Node: id, Kind: IssueUnitMismatch,
					Message: fmt.Sprintf("operand units %q and %q do not match", first.Canonical(), res.Unit[p].Canonical()),
				}
			}
		}
		return first, have, nil
	case graph.OpMul:
		result := units.Dimensionless()
		have := false
		for _, p := range parents {
			if res.HasUnit[p] {
				result = result.Mul(res.Unit[p])
				have = true
			}
		}
		return result, have, nil
	case graph.OpDiv:
		lhs, lok := res.Unit[parents[0]], res.HasUnit[parents[0]]
		rhs, rok := res.Unit[parents[1]], res.HasUnit[parents[1]]
		if !lok && !rok {
			return units.Dimensionless(), false, nil
		}
		if !lok {
			lhs = units.Dimensionless()
		}
		if !rok {
			rhs = units.Dimensionless()
		}
		return lhs.Div(rhs), true, nil
	default:
		return units.Dimensionless(), false, nil
	}
}
