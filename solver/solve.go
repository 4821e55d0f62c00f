package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/tsgraph/tsgraph/graph"
	"github.com/tsgraph/tsgraph/ledger"
)

// Result is the outcome of a successful solve: a ledger with every
// variable populated (and, after a final full pass, every downstream
// reporting node too), plus the captured iteration trace.
type Result struct {
	Ledger  *ledger.Ledger
	History []Iteration
}

// Solve finds values for the harness's variables driving every
// constraint residual to zero. gonum/optimize has no native
// equality-constrained interior-point mode the way IPOPT does, so
// MethodNLP collapses the feasibility problem into minimizing
// sum(g(x)^2) with a quasi-Newton method (BFGS), which is zero
// exactly where g(x)=0 holds; MethodNewton is the plain square-system
// fallback.
func (h *Harness) Solve(opts Options) (*Result, error) {
	if h.dim() == 0 {
		return nil, &ConfigurationError{Message: "no solver variables"}
	}
	switch opts.Method {
	case MethodNewton:
		return h.solveNewton()
	default:
		return h.solveNLP()
	}
}

func (h *Harness) solveNLP() (*Result, error) {
	n := h.dim()
	x0 := make([]float64, n)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			g, err := h.EvalG(x)
			if err != nil {
				return math.Inf(1)
			}
			return sumSquares(g)
		},
		Grad: func(grad, x []float64) {
			jac, jerr := h.EvalJacG(x)
			g, gerr := h.EvalG(x)
			if jerr != nil || gerr != nil {
				for i := range grad {
					grad[i] = 0
				}
				return
			}
			for j := range grad {
				sum := 0.0
				for i := range g {
					sum += 2 * jac[i][j] * g[i]
				}
				grad[j] = sum
			}
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: 1e-9,
		FuncEvaluations:   10000,
		Recorder:          &historyRecorder{h: h},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.BFGS{})
	if err != nil && result == nil {
		return nil, &ConvergenceError{Message: err.Error()}
	}

	g, gerr := h.EvalG(result.X)
	if gerr != nil {
		return nil, gerr
	}

	if maxAbs(g) >= feasibilityTol {
		return nil, &ConvergenceError{Message: fmt.Sprintf("residual infeasibility %.3e exceeds tolerance", maxAbs(g))}
	}

	return h.finish(result.X)
}

// solveNewton is plain Newton-Raphson against the same
// finite-difference Jacobian EvalJacG produces, for square
// (|variables|*model_len == |residuals|*model_len) feasibility-only
// systems.
func (h *Harness) solveNewton() (*Result, error) {
	n := h.dim()
	m := len(h.residuals) * h.modelLen
	if n != m {
		return nil, &ConfigurationError{Message: "Newton fallback requires a square system (|variables|*model_len == |residuals|*model_len)"}
	}

	const maxIter = 100
	x := make([]float64, n)

	for iter := 1; iter <= maxIter; iter++ {
		g, err := h.EvalG(x)
		if err != nil {
			return nil, err
		}
		infPr := maxAbs(g)
		h.IntermediateCB(Iteration{Iter: iter, ObjValue: sumSquares(g), InfPr: infPr})
		if infPr < feasibilityTol {
			return h.finish(x)
		}

		jac, err := h.EvalJacG(x)
		if err != nil {
			return nil, err
		}
		delta, err := solveLinear(jac, g)
		if err != nil {
			return nil, &ConvergenceError{Message: err.Error()}
		}
		for i := range x {
			x[i] -= delta[i]
		}
	}

	return nil, &ConvergenceError{Message: "Newton fallback exceeded iteration budget"}
}

// finish unflattens x* into Series Values for the variable nodes,
// writes them into a fresh ledger cloned from the base ledger, and
// runs the engine one more full pass so every downstream reporting
// node is populated.
func (h *Harness) finish(xStar []float64) (*Result, error) {
	ldg := h.plant(xStar)

	all := make([]graph.NodeId, h.registry.Count())
	for i := range all {
		all[i] = graph.NodeId(i)
	}
	if _, err := h.eng.Compute(h.registry, all, ldg, nil); err != nil {
		return nil, err
	}

	return &Result{Ledger: ldg, History: h.History()}, nil
}

// historyRecorder adapts the harness's intermediate_cb-style capture
// to gonum's Recorder hook, one Iteration per major iteration. The
// objective the optimizer minimizes is sum(g(x)^2), so its square root
// is the residual norm reported as primal infeasibility.
type historyRecorder struct {
	h *Harness
}

func (rec *historyRecorder) Init() error { return nil }

func (rec *historyRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op&optimize.MajorIteration == 0 {
		return nil
	}
	rec.h.IntermediateCB(Iteration{
		Iter:     stats.MajorIterations,
		ObjValue: loc.F,
		InfPr:    math.Sqrt(loc.F),
	})
	return nil
}

func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	flat := make([]float64, 0, n*n)
	for _, row := range a {
		flat = append(flat, row...)
	}
	A := mat.NewDense(n, n, flat)
	B := mat.NewVecDense(n, b)

	var x mat.VecDense
	if err := x.SolveVec(A, B); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = x.AtVec(i)
	}
	return out, nil
}

func sumSquares(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return s
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
