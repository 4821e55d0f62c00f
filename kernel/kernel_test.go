package kernel_test

import (
	"testing"

	"github.com/tsgraph/tsgraph/compiler"
	"github.com/tsgraph/tsgraph/kernel"
)

func TestAddSubMulAcrossLengths(t *testing.T) {
	for _, n := range []int{0, 1, 4, 5, 17} {
		a := make([]float64, n)
		b := make([]float64, n)
		for i := range a {
			a[i] = float64(i) + 1
			b[i] = float64(i) * 2
		}

		dest := make([]float64, n)
		if err := kernel.Run(compiler.OpAdd, dest, a, b, 0); err != nil {
			t.Fatalf("Add n=%d: %v", n, err)
		}
		for i := range dest {
			if dest[i] != a[i]+b[i] {
				t.Fatalf("Add n=%d i=%d: got %v want %v", n, i, dest[i], a[i]+b[i])
			}
		}

		if err := kernel.Run(compiler.OpMul, dest, a, b, 0); err != nil {
			t.Fatalf("Mul n=%d: %v", n, err)
		}
		for i := range dest {
			if dest[i] != a[i]*b[i] {
				t.Fatalf("Mul n=%d i=%d: got %v want %v", n, i, dest[i], a[i]*b[i])
			}
		}
	}
}

// TestSIMDScalarParity asserts the chunked (4-lane) path and the scalar
// single-element fast path agree bitwise, across lengths that straddle
// lane boundaries (0,1,4,5,17).
func TestSIMDScalarParity(t *testing.T) {
	lengths := []int{0, 1, 4, 5, 17}
	for _, n := range lengths {
		a := make([]float64, n)
		b := make([]float64, n)
		for i := range a {
			a[i] = float64(i)*0.5 + 0.25
			b[i] = float64(i)*1.5 - 0.75
		}

		chunked := make([]float64, n)
		_ = kernel.Run(compiler.OpAdd, chunked, a, b, 0)

		scalar := make([]float64, n)
		for i := range scalar {
			one := []float64{a[i]}
			two := []float64{b[i]}
			dst := make([]float64, 1)
			_ = kernel.Run(compiler.OpAdd, dst, one, two, 0)
			scalar[i] = dst[0]
		}

		for i := range chunked {
			if chunked[i] != scalar[i] {
				t.Fatalf("n=%d i=%d: chunked %v != scalar %v", n, i, chunked[i], scalar[i])
			}
		}
	}
}

func TestDivideByZeroReportsMathError(t *testing.T) {
	dest := make([]float64, 3)
	a := []float64{1, 2, 3}
	b := []float64{1, 0, 1}
	err := kernel.Run(compiler.OpDiv, dest, a, b, 0)
	if err == nil {
		t.Fatal("expected MathError")
	}
	if _, ok := err.(*kernel.MathError); !ok {
		t.Fatalf("err = %v (%T), want *kernel.MathError", err, err)
	}
}

func TestPrevLagZeroIsIdentity(t *testing.T) {
	main := []float64{10, 20, 30, 40}
	def := []float64{-1, -1, -1, -1}
	dest := make([]float64, 4)
	if err := kernel.Run(compiler.OpPrev, dest, main, def, 0); err != nil {
		t.Fatalf("Prev: %v", err)
	}
	for i := range dest {
		if dest[i] != main[i] {
			t.Fatalf("i=%d: got %v want %v", i, dest[i], main[i])
		}
	}
}

func TestPrevLagBeyondModelLenIsAllDefault(t *testing.T) {
	main := []float64{10, 20, 30, 40}
	def := []float64{-1, -2, -3, -4}
	dest := make([]float64, 4)
	if err := kernel.Run(compiler.OpPrev, dest, main, def, 10); err != nil {
		t.Fatalf("Prev: %v", err)
	}
	for i := range dest {
		if dest[i] != def[i] {
			t.Fatalf("i=%d: got %v want %v", i, dest[i], def[i])
		}
	}
}

func TestPrevLagOneShiftsRight(t *testing.T) {
	main := []float64{10, 20, 30, 40}
	def := []float64{-1, -1, -1, -1}
	dest := make([]float64, 4)
	if err := kernel.Run(compiler.OpPrev, dest, main, def, 1); err != nil {
		t.Fatalf("Prev: %v", err)
	}
	want := []float64{-1, 10, 20, 30}
	for i := range dest {
		if dest[i] != want[i] {
			t.Fatalf("i=%d: got %v want %v", i, dest[i], want[i])
		}
	}
}

func TestIdentityCopies(t *testing.T) {
	src := []float64{1, 2, 3}
	dest := make([]float64, 3)
	if err := kernel.Run(compiler.OpIdentity, dest, src, nil, 0); err != nil {
		t.Fatalf("Identity: %v", err)
	}
	for i := range dest {
		if dest[i] != src[i] {
			t.Fatalf("i=%d: got %v want %v", i, dest[i], src[i])
		}
	}
}
