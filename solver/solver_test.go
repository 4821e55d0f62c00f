package solver_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/golang/mock/gomock"

	"github.com/tsgraph/tsgraph/engine"
	"github.com/tsgraph/tsgraph/graph"
	"github.com/tsgraph/tsgraph/ledger"
	"github.com/tsgraph/tsgraph/solver"
	"github.com/tsgraph/tsgraph/topology"
)

var _ = Describe("Harness.EvalG", func() {
	var (
		ctrl       *gomock.Controller
		mockEng    *MockExecutor
		r          *graph.Registry
		p, q       graph.NodeId
		sumNode    graph.NodeId
		residual   graph.NodeId
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		mockEng = NewMockExecutor(ctrl)

		r = graph.NewRegistry()
		p = r.AddSolverVariable(graph.NodeMetadata{Name: "p"})
		q = r.AddSolverVariable(graph.NodeMetadata{Name: "q"})
		var err error
		sumNode, err = r.AddFormula(graph.OpAdd, [2]graph.NodeId{p, q}, graph.NodeMetadata{Name: "sum"})
		Expect(err).NotTo(HaveOccurred())
		ten := r.AddScalar(10, graph.NodeMetadata{Name: "ten"})
		residual, err = r.MustEqual(sumNode, ten, "c1")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	It("plants x into the variable cells and reads back the flattened residual", func() {
		mockEng.EXPECT().
			Compute(r, gomock.Any(), gomock.Any(), nil).
			DoAndReturn(func(reg *graph.Registry, targets []graph.NodeId, ldg *ledger.Ledger, changed []graph.NodeId) (*engine.Stats, error) {
				// Simulate the real engine: p + q - 10 for the planted values.
				pv, _, _ := ldg.Get(p)
				qv, _, _ := ldg.Get(q)
				ldg.InsertValue(residual, ledger.NewScalar(pv.At(0)+qv.At(0)-10))
				return &engine.Stats{}, nil
			})

		h := solver.New(r, mockEng, []graph.NodeId{p, q}, []graph.NodeId{residual}, 1, ledger.New())
		g, err := h.EvalG([]float64{7, 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(g).To(HaveLen(1))
		Expect(g[0]).To(BeNumerically("~", 0, 1e-9))
	})

	It("propagates an engine error from EvalG", func() {
		mockEng.EXPECT().
			Compute(r, gomock.Any(), gomock.Any(), nil).
			Return(nil, errBoom)

		h := solver.New(r, mockEng, []graph.NodeId{p, q}, []graph.NodeId{residual}, 1, ledger.New())
		_, err := h.EvalG([]float64{1, 2})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Solve", func() {
	It("finds p,q with p+q=10 and p-q=4 within tolerance, using the Newton fallback", func() {
		r := graph.NewRegistry()
		p := r.AddSolverVariable(graph.NodeMetadata{Name: "p"})
		q := r.AddSolverVariable(graph.NodeMetadata{Name: "q"})

		sumNode, err := r.AddFormula(graph.OpAdd, [2]graph.NodeId{p, q}, graph.NodeMetadata{Name: "sum"})
		Expect(err).NotTo(HaveOccurred())
		ten := r.AddScalar(10, graph.NodeMetadata{Name: "ten"})
		_, err = r.MustEqual(sumNode, ten, "c1")
		Expect(err).NotTo(HaveOccurred())

		diffNode, err := r.AddFormula(graph.OpSub, [2]graph.NodeId{p, q}, graph.NodeMetadata{Name: "diff"})
		Expect(err).NotTo(HaveOccurred())
		four := r.AddScalar(4, graph.NodeMetadata{Name: "four"})
		_, err = r.MustEqual(diffNode, four, "c2")
		Expect(err).NotTo(HaveOccurred())

		variables := []graph.NodeId{p, q}
		var residuals []graph.NodeId
		for _, c := range r.Constraints() {
			residuals = append(residuals, c.Residual)
		}

		eng := engine.New()
		base := ledger.New()
		nonVariable := excluding(r, topology.DownstreamFrom(r, variables))
		_, err = eng.Compute(r, nonVariable, base, nil)
		Expect(err).NotTo(HaveOccurred())

		h := solver.New(r, eng, variables, residuals, 1, base)
		result, err := h.Solve(solver.Options{Method: solver.MethodNewton})
		Expect(err).NotTo(HaveOccurred())

		pv, _, ok := result.Ledger.Get(p)
		Expect(ok).To(BeTrue())
		qv, _, ok := result.Ledger.Get(q)
		Expect(ok).To(BeTrue())

		Expect(pv.At(0)).To(BeNumerically("~", 7, 1e-6))
		Expect(qv.At(0)).To(BeNumerically("~", 3, 1e-6))
	})
})

func excluding(r *graph.Registry, excluded topology.NodeSet) []graph.NodeId {
	var out []graph.NodeId
	for id := graph.NodeId(0); int(id) < r.Count(); id++ {
		if !excluded.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }
