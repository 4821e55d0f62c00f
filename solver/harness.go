// Package solver bridges the engine to a nonlinear-programming
// optimizer: it flattens SolverVariable nodes and constraint residuals
// into real vectors and exposes IPOPT-style callbacks (EvalF/EvalGradF/
// EvalG/EvalJacG/EvalH/IntermediateCB) a driving optimizer calls to
// find values making every residual zero.
package solver

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/tsgraph/tsgraph/engine"
	"github.com/tsgraph/tsgraph/graph"
	"github.com/tsgraph/tsgraph/ledger"
	"github.com/tsgraph/tsgraph/topology"
)

const (
	finiteDiffStep = 1e-8
	feasibilityTol = 1e-6
)

// Executor is the subset of engine.Engine the harness drives during a
// solve. It exists so solver tests can substitute a mock (see
// //go:generate below) and exercise Jacobian/history bookkeeping without
// a real graph and engine.
//
//go:generate mockgen -destination=mock_executor_test.go -package=solver_test github.com/tsgraph/tsgraph/solver Executor
type Executor interface {
	Compute(r *graph.Registry, targets []graph.NodeId, ldg *ledger.Ledger, changedInputs []graph.NodeId) (*engine.Stats, error)
}

// Iteration is one intermediate_cb-style record: iteration number,
// objective value, and primal/dual infeasibility.
type Iteration struct {
	Iter     int
	ObjValue float64
	InfPr    float64
	InfDu    float64
}

// ConvergenceError reports that a solve did not reach tolerance.
type ConvergenceError struct {
	Message string
}

func (e *ConvergenceError) Error() string {
	return "solver: did not converge: " + e.Message
}

// ConfigurationError reports a malformed solver problem: no
// variables, or a method applied to a system it can't handle.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "solver: configuration error: " + e.Message
}

// Method selects the numerical method Solve uses.
type Method uint8

const (
	// MethodNLP drives the feasibility objective through the bundled
	// general-purpose optimizer with a quasi-Newton Hessian. Default.
	MethodNLP Method = iota
	// MethodNewton is a plain Newton-Raphson fallback for square,
	// feasibility-only systems.
	MethodNewton
)

// Options configures one Solve call.
type Options struct {
	Method Method
}

// Harness bridges the engine to a numerical solver. One Harness
// targets one fixed (variables, residuals) system; callers rebuild a
// new Harness if the registry's constraint set changes.
type Harness struct {
	log *slog.Logger

	registry   *graph.Registry
	eng        Executor
	variables  []graph.NodeId
	residuals  []graph.NodeId
	modelLen   int
	baseLedger *ledger.Ledger

	// dirty is everything downstream of a variable, including the
	// variables themselves: the cells plant must reset in each cloned
	// ledger so stale results (or the unassigned-variable errors a base
	// compute records) never shadow a trial point's evaluation.
	dirty topology.NodeSet

	historyMu sync.Mutex
	history   []Iteration

	runID xid.ID
}

// New builds a Harness. baseLedger must already hold every node not
// downstream of any variable, typically produced by one engine.Compute
// pass over the variable-independent part of the graph, so inner solve
// iterations never repeat that work.
func New(r *graph.Registry, eng Executor, variables, residuals []graph.NodeId, modelLen int, baseLedger *ledger.Ledger) *Harness {
	if modelLen < 1 {
		modelLen = 1
	}
	h := &Harness{
		log:        slog.Default(),
		registry:   r,
		eng:        eng,
		variables:  variables,
		residuals:  residuals,
		modelLen:   modelLen,
		baseLedger: baseLedger,
		dirty:      topology.DownstreamFrom(r, variables),
		runID:      xid.New(),
	}
	atexit.Register(h.cleanup)
	return h
}

// RunID identifies this harness's solve attempt; the harness attaches
// it to every log record it writes.
func (h *Harness) RunID() string {
	return h.runID.String()
}

func (h *Harness) cleanup() {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	h.history = nil
}

// dim is the flattened problem size |variables| * model_len.
func (h *Harness) dim() int {
	return len(h.variables) * h.modelLen
}

// EvalF is the feasibility objective: always zero.
func (h *Harness) EvalF(x []float64) float64 {
	return 0
}

// EvalGradF is the gradient of EvalF: always zero.
func (h *Harness) EvalGradF(x []float64) []float64 {
	return make([]float64, len(x))
}

// guard is the callback barrier: a panic inside a callback is logged
// and becomes a failure return to the driving optimizer instead of
// unwinding through it.
func (h *Harness) guard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("solver: callback panicked: %v", r)
		h.log.Error("solver callback panic", "run", h.runID.String(), "panic", r)
	}
}

// EvalG clones base_ledger, plants x into the variable cells as
// Series values, runs the engine for the residual set, and flattens
// the computed residuals, broadcasting a Scalar residual to every
// time step.
func (h *Harness) EvalG(x []float64) (g []float64, err error) {
	defer h.guard(&err)
	ldg := h.plant(x)

	if _, err := h.eng.Compute(h.registry, h.residuals, ldg, nil); err != nil {
		h.log.Error("residual evaluation failed", "run", h.runID.String(), "err", err)
		return nil, fmt.Errorf("solver: engine failed evaluating residuals: %w", err)
	}

	g = make([]float64, len(h.residuals)*h.modelLen)
	for i, id := range h.residuals {
		v, err, ok := ldg.Get(id)
		if !ok {
			if err == nil {
				err = fmt.Errorf("solver: residual %d never computed", id)
			}
			h.log.Error("residual unavailable", "run", h.runID.String(), "node", id, "err", err)
			return nil, err
		}
		start := i * h.modelLen
		for t := 0; t < h.modelLen; t++ {
			g[start+t] = v.At(t)
		}
	}
	return g, nil
}

// plant clones the base ledger and writes x into the variable cells
// as freshly allocated Series values, so trial points never alias
// across callbacks.
func (h *Harness) plant(x []float64) *ledger.Ledger {
	ldg := h.baseLedger.Clone()
	ldg.EnsureCapacity(h.registry.Count())
	ldg.Invalidate(h.dirty)
	for i, id := range h.variables {
		start := i * h.modelLen
		values := append([]float64(nil), x[start:start+h.modelLen]...)
		ldg.InsertValue(id, ledger.NewSeries(values))
	}
	return ldg
}

// evalSingleResidual returns the one residual entry a Jacobian entry
// needs, reusing the base ledger. It passes only that residual as the
// engine's target, but the engine's planner walks the full order, so
// every uncomputed node (including the other residuals) is evaluated
// in the same call.
func (h *Harness) evalSingleResidual(residualIdx int, x []float64) (float64, error) {
	ldg := h.plant(x)
	target := h.residuals[residualIdx/h.modelLen]
	if _, err := h.eng.Compute(h.registry, []graph.NodeId{target}, ldg, nil); err != nil {
		return 0, err
	}
	v, err, ok := ldg.Get(target)
	if !ok {
		if err == nil {
			err = fmt.Errorf("solver: residual %d never computed", target)
		}
		return 0, err
	}
	return v.At(residualIdx % h.modelLen), nil
}

// EvalJacG computes the dense (|g|x|x|) Jacobian by central finite
// differences with step h=1e-8. The structure request (values == nil
// in the C interface) is not modeled in Go; callers that only need
// sparsity should read the full dense result.
func (h *Harness) EvalJacG(x []float64) (jacOut [][]float64, err error) {
	defer h.guard(&err)
	n := len(x)
	m := len(h.residuals) * h.modelLen
	jac := make([][]float64, m)
	for i := range jac {
		jac[i] = make([]float64, n)
	}

	xPlus := append([]float64(nil), x...)
	xMinus := append([]float64(nil), x...)

	for j := 0; j < n; j++ {
		orig := x[j]
		xPlus[j] = orig + finiteDiffStep
		xMinus[j] = orig - finiteDiffStep

		for i := 0; i < m; i++ {
			gPlus, err := h.evalSingleResidual(i, xPlus)
			if err != nil {
				h.log.Error("jacobian entry failed", "run", h.runID.String(), "row", i, "col", j, "err", err)
				return nil, err
			}
			gMinus, err := h.evalSingleResidual(i, xMinus)
			if err != nil {
				h.log.Error("jacobian entry failed", "run", h.runID.String(), "row", i, "col", j, "err", err)
				return nil, err
			}
			jac[i][j] = (gPlus - gMinus) / (2 * finiteDiffStep)
		}

		xPlus[j] = orig
		xMinus[j] = orig
	}
	return jac, nil
}

// EvalH is required by the callback surface but unused: the driving
// optimizer is instructed to approximate the Hessian.
func (h *Harness) EvalH() {}

// IntermediateCB records one optimizer iteration into the
// mutex-protected history buffer, tolerating a driving optimizer
// that calls back from more than one goroutine.
func (h *Harness) IntermediateCB(iter Iteration) {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	h.history = append(h.history, iter)
}

// History returns a copy of the captured iteration trace.
func (h *Harness) History() []Iteration {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	return append([]Iteration(nil), h.history...)
}
