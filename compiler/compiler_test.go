package compiler_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tsgraph/tsgraph/compiler"
	"github.com/tsgraph/tsgraph/graph"
	"github.com/tsgraph/tsgraph/topology"
)

var _ = Describe("Compile", func() {
	var r *graph.Registry
	var a, b, c, d graph.NodeId

	BeforeEach(func() {
		r = graph.NewRegistry()
		a = r.AddScalar(3, graph.NodeMetadata{Name: "A"})
		b = r.AddScalar(4, graph.NodeMetadata{Name: "B"})
		var err error
		c, err = r.AddFormula(graph.OpAdd, [2]graph.NodeId{a, b}, graph.NodeMetadata{Name: "C"})
		Expect(err).NotTo(HaveOccurred())
		two := r.AddScalar(2, graph.NodeMetadata{Name: "two"})
		d, err = r.AddFormula(graph.OpMul, [2]graph.NodeId{c, two}, graph.NodeMetadata{Name: "D"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("partitions formulas before inputs in storage", func() {
		order, err := topology.Sort(r)
		Expect(err).NotTo(HaveOccurred())

		prog := compiler.Compile(r, order)

		Expect(prog.Layout[c]).To(BeNumerically("<", prog.InputStartIndex))
		Expect(prog.Layout[d]).To(BeNumerically("<", prog.InputStartIndex))
		Expect(prog.Layout[a]).To(BeNumerically(">=", prog.InputStartIndex))
		Expect(prog.Layout[b]).To(BeNumerically(">=", prog.InputStartIndex))
	})

	It("emits one instruction per formula, dest == instruction index", func() {
		order, err := topology.Sort(r)
		Expect(err).NotTo(HaveOccurred())
		prog := compiler.Compile(r, order)

		Expect(len(prog.Ops)).To(Equal(2))
		for i, id := range order {
			if r.Kind(id) == graph.KindFormula {
				Expect(int(prog.Layout[id])).To(BeNumerically("<", len(prog.Ops)))
				_ = i
			}
		}
	})

	It("encodes opcode bytes matching the fixed external encoding", func() {
		order, err := topology.Sort(r)
		Expect(err).NotTo(HaveOccurred())
		prog := compiler.Compile(r, order)

		cSlot := prog.Layout[c]
		dSlot := prog.Layout[d]
		Expect(byte(prog.Ops[cSlot])).To(Equal(byte(0))) // Add
		Expect(byte(prog.Ops[dSlot])).To(Equal(byte(2))) // Mul
	})

	It("records the Prev lag in aux", func() {
		r2 := graph.NewRegistry()
		x := r2.AddSeries([]float64{10, 20, 30, 40}, graph.NodeMetadata{Name: "X"})
		def := r2.AddSeries([]float64{-1, -1, -1, -1}, graph.NodeMetadata{Name: "def"})
		y, err := r2.AddPrev(x, def, 2, graph.NodeMetadata{Name: "Y"})
		Expect(err).NotTo(HaveOccurred())

		order, err := topology.Sort(r2)
		Expect(err).NotTo(HaveOccurred())
		prog := compiler.Compile(r2, order)

		Expect(prog.Aux[prog.Layout[y]]).To(Equal(uint32(2)))
		Expect(byte(prog.Ops[prog.Layout[y]])).To(Equal(byte(4))) // Prev
	})
})
