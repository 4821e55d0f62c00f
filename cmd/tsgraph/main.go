// Command tsgraph is a thin CLI over the engine: it loads a scenario
// file, runs compute or solve, and prints the result with the trace
// package's tabular renderer.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tsgraph/tsgraph/engine"
	"github.com/tsgraph/tsgraph/graph"
	"github.com/tsgraph/tsgraph/ledger"
	"github.com/tsgraph/tsgraph/scenario"
	"github.com/tsgraph/tsgraph/snapshot"
	"github.com/tsgraph/tsgraph/solver"
	"github.com/tsgraph/tsgraph/topology"
	"github.com/tsgraph/tsgraph/trace"
)

func main() {
	var (
		scenarioPath = flag.String("scenario", "", "path to a scenario YAML file")
		snapshotOut  = flag.String("snapshot-out", "", "optional path to write a SQLite registry snapshot to")
		solve        = flag.Bool("solve", false, "solve for solver variables instead of a plain compute")
	)
	flag.Parse()

	if err := run(*scenarioPath, *snapshotOut, *solve); err != nil {
		fmt.Fprintln(os.Stderr, "tsgraph:", err)
		os.Exit(1)
	}
}

func run(scenarioPath, snapshotOut string, solve bool) error {
	if scenarioPath == "" {
		return fmt.Errorf("-scenario is required")
	}

	r, err := scenario.LoadFile(scenarioPath)
	if err != nil {
		return err
	}

	if solve {
		return runSolve(r, snapshotOut)
	}
	return runCompute(r, snapshotOut)
}

func runCompute(r *graph.Registry, snapshotOut string) error {
	eng := engine.New().WithLogger(slog.Default())
	ldg := ledger.New()

	sess := trace.NewSession()
	eng.OnStep = sess.Hook()

	all := make([]graph.NodeId, r.Count())
	for i := range all {
		all[i] = graph.NodeId(i)
	}

	if _, err := eng.Compute(r, all, ldg, nil); err != nil {
		return fmt.Errorf("compute: %w", err)
	}

	fmt.Println(sess.Render(r))
	return maybeSnapshot(r, snapshotOut)
}

func runSolve(r *graph.Registry, snapshotOut string) error {
	eng := engine.New()

	var variables, residuals []graph.NodeId
	for id := graph.NodeId(0); int(id) < r.Count(); id++ {
		if r.Kind(id) == graph.KindSolverVariable {
			variables = append(variables, id)
		}
	}
	for _, c := range r.Constraints() {
		residuals = append(residuals, c.Residual)
	}
	if len(variables) == 0 {
		return fmt.Errorf("scenario declares no solver variables")
	}

	// The base ledger holds every node not downstream of any variable,
	// so inner solve iterations never recompute the variable-independent
	// part of the graph.
	nonVariable := nodesExcluding(r, topology.DownstreamFrom(r, variables))
	base := ledger.New()
	if _, err := eng.Compute(r, nonVariable, base, nil); err != nil {
		return fmt.Errorf("base compute: %w", err)
	}

	// The model length is the widest constant reachable upstream of
	// any residual, at least 1.
	modelLen := 1
	for id := range topology.UpstreamFrom(r, residuals) {
		if r.Kind(id) == graph.KindSeries {
			if l := len(r.SeriesValue(id)); l > modelLen {
				modelLen = l
			}
		}
	}

	h := solver.New(r, eng, variables, residuals, modelLen, base)
	result, err := h.Solve(solver.Options{})
	if err != nil {
		return fmt.Errorf("solve: %w", err)
	}

	for _, id := range variables {
		fmt.Println(trace.RenderNode(r, result.Ledger, id))
	}
	return maybeSnapshot(r, snapshotOut)
}

func nodesExcluding(r *graph.Registry, excluded topology.NodeSet) []graph.NodeId {
	var out []graph.NodeId
	for id := graph.NodeId(0); int(id) < r.Count(); id++ {
		if !excluded.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

func maybeSnapshot(r *graph.Registry, path string) error {
	if path == "" {
		return nil
	}
	if err := snapshot.Save(r, path); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}
