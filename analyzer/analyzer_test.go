package analyzer_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tsgraph/tsgraph/analyzer"
	"github.com/tsgraph/tsgraph/graph"
)

var _ = Describe("Analyze", func() {
	Context("temporal inference", func() {
		It("infers Stock + Flow = Stock", func() {
			r := graph.NewRegistry()
			stock := r.AddScalar(10, graph.NodeMetadata{Name: "stock", Temporal: graph.Stock})
			flow := r.AddScalar(2, graph.NodeMetadata{Name: "flow", Temporal: graph.Flow})
			sum, err := r.AddFormula(graph.OpAdd, [2]graph.NodeId{stock, flow}, graph.NodeMetadata{Name: "sum"})
			Expect(err).NotTo(HaveOccurred())

			res, aerr := analyzer.Analyze(r)
			Expect(aerr).NotTo(HaveOccurred())
			Expect(res.Temporal[sum]).To(Equal(graph.Stock))
		})

		It("infers Flow + Flow = Flow", func() {
			r := graph.NewRegistry()
			f1 := r.AddScalar(1, graph.NodeMetadata{Name: "f1", Temporal: graph.Flow})
			f2 := r.AddScalar(1, graph.NodeMetadata{Name: "f2", Temporal: graph.Flow})
			sum, err := r.AddFormula(graph.OpAdd, [2]graph.NodeId{f1, f2}, graph.NodeMetadata{Name: "sum"})
			Expect(err).NotTo(HaveOccurred())

			res, aerr := analyzer.Analyze(r)
			Expect(aerr).NotTo(HaveOccurred())
			Expect(res.Temporal[sum]).To(Equal(graph.Flow))
		})

		It("rejects Stock + Stock", func() {
			r := graph.NewRegistry()
			s1 := r.AddScalar(1, graph.NodeMetadata{Name: "s1", Temporal: graph.Stock})
			s2 := r.AddScalar(1, graph.NodeMetadata{Name: "s2", Temporal: graph.Stock})
			_, err := r.AddFormula(graph.OpAdd, [2]graph.NodeId{s1, s2}, graph.NodeMetadata{Name: "sum"})
			Expect(err).NotTo(HaveOccurred())

			_, aerr := analyzer.Analyze(r)
			Expect(aerr).To(HaveOccurred())
			var verr *analyzer.ValidationError
			Expect(aerr).To(BeAssignableToTypeOf(verr))
		})

		It("Prev inherits the main parent's temporal type", func() {
			r := graph.NewRegistry()
			main := r.AddSeries([]float64{1, 2, 3, 4}, graph.NodeMetadata{Name: "main", Temporal: graph.Stock})
			def := r.AddSeries([]float64{0, 0, 0, 0}, graph.NodeMetadata{Name: "def"})
			y, err := r.AddPrev(main, def, 1, graph.NodeMetadata{Name: "y"})
			Expect(err).NotTo(HaveOccurred())

			res, aerr := analyzer.Analyze(r)
			Expect(aerr).NotTo(HaveOccurred())
			Expect(res.Temporal[y]).To(Equal(graph.Stock))
		})

		It("fails verification when a declared temporal type disagrees with inference", func() {
			r := graph.NewRegistry()
			f1 := r.AddScalar(1, graph.NodeMetadata{Name: "f1", Temporal: graph.Flow})
			f2 := r.AddScalar(1, graph.NodeMetadata{Name: "f2", Temporal: graph.Flow})
			_, err := r.AddFormula(graph.OpAdd, [2]graph.NodeId{f1, f2}, graph.NodeMetadata{Name: "sum", Temporal: graph.Stock})
			Expect(err).NotTo(HaveOccurred())

			_, aerr := analyzer.Analyze(r)
			Expect(aerr).To(HaveOccurred())
		})
	})

	Context("unit inference", func() {
		It("requires matching units on Add/Sub", func() {
			r := graph.NewRegistry()
			usd := r.AddScalar(1, graph.NodeMetadata{Name: "usd", Unit: "USD"})
			mwh := r.AddScalar(1, graph.NodeMetadata{Name: "mwh", Unit: "MWh"})
			_, err := r.AddFormula(graph.OpAdd, [2]graph.NodeId{usd, mwh}, graph.NodeMetadata{Name: "c"})
			Expect(err).NotTo(HaveOccurred())

			_, aerr := analyzer.Analyze(r)
			Expect(aerr).To(HaveOccurred())
		})

		It("multiplies units for Mul", func() {
			r := graph.NewRegistry()
			price := r.AddScalar(2, graph.NodeMetadata{Name: "price", Unit: "USD/kg"})
			qty := r.AddScalar(3, graph.NodeMetadata{Name: "qty", Unit: "kg"})
			total, err := r.AddFormula(graph.OpMul, [2]graph.NodeId{price, qty}, graph.NodeMetadata{Name: "total"})
			Expect(err).NotTo(HaveOccurred())

			res, aerr := analyzer.Analyze(r)
			Expect(aerr).NotTo(HaveOccurred())
			Expect(res.Unit[total].Canonical()).To(Equal("USD"))
		})
	})

	It("accumulates multiple issues rather than stopping at the first", func() {
		r := graph.NewRegistry()
		s1 := r.AddScalar(1, graph.NodeMetadata{Name: "s1", Temporal: graph.Stock})
		s2 := r.AddScalar(1, graph.NodeMetadata{Name: "s2", Temporal: graph.Stock})
		_, err := r.AddFormula(graph.OpAdd, [2]graph.NodeId{s1, s2}, graph.NodeMetadata{Name: "bad1"})
		Expect(err).NotTo(HaveOccurred())

		usd := r.AddScalar(1, graph.NodeMetadata{Name: "usd", Unit: "USD"})
		mwh := r.AddScalar(1, graph.NodeMetadata{Name: "mwh", Unit: "MWh"})
		_, err = r.AddFormula(graph.OpAdd, [2]graph.NodeId{usd, mwh}, graph.NodeMetadata{Name: "bad2"})
		Expect(err).NotTo(HaveOccurred())

		_, aerr := analyzer.Analyze(r)
		Expect(aerr).To(HaveOccurred())
		verr, ok := aerr.(*analyzer.ValidationError)
		Expect(ok).To(BeTrue())
		Expect(len(verr.Issues)).To(BeNumerically(">=", 2))
	})
})
