// Package kernel is the single dispatch site for tape arithmetic. It
// operates on equal-length row slices that never alias a destination
// with one of its sources, and keys dispatch on the opcode byte with
// a switch rather than a dispatch table, so the hot loop stays
// branch-predictable: a table trades predictability for
// extensibility, which matters far less here because the tape kernel
// runs per-element, not per-instruction.
package kernel

import (
	"fmt"

	"github.com/tsgraph/tsgraph/compiler"
)

// MathError reports an arithmetic failure at a specific row offset
// within one instruction's destination.
type MathError struct {
	Op     compiler.Opcode
	Offset int
}

func (e *MathError) Error() string {
	return fmt.Sprintf("kernel: division by zero evaluating row %d", e.Offset)
}

const lanes = 4

// Run dispatches one tape instruction's arithmetic over row slices of
// equal length model_len. For Add/Sub/Mul/Div, src1/src2 are the two
// operands. For Prev, src1 is the main series and src2 is the default
// series, per the parent ordering graph.Registry.AddPrev uses. aux
// carries the Prev lag and is ignored otherwise.
func Run(op compiler.Opcode, dest, src1, src2 []float64, aux uint32) error {
	switch op {
	case compiler.OpAdd:
		binary(dest, src1, src2, func(a, b float64) float64 { return a + b })
		return nil
	case compiler.OpSub:
		binary(dest, src1, src2, func(a, b float64) float64 { return a - b })
		return nil
	case compiler.OpMul:
		binary(dest, src1, src2, func(a, b float64) float64 { return a * b })
		return nil
	case compiler.OpDiv:
		return divide(dest, src1, src2)
	case compiler.OpPrev:
		prev(dest, src1, src2, int(aux))
		return nil
	case compiler.OpIdentity:
		copy(dest, src1)
		return nil
	default:
		return fmt.Errorf("kernel: unknown opcode %d", op)
	}
}

// binary applies f elementwise. A single-element row is the scalar
// fast path; otherwise the row is processed in 4-lane chunks with a
// scalar tail for the remainder. Go has no portable manual SIMD
// intrinsic, so the unrolled form is the stand-in the compiler can
// autovectorize.
func binary(dest, a, b []float64, f func(float64, float64) float64) {
	n := len(dest)
	if n == 1 {
		dest[0] = f(a[0], b[0])
		return
	}
	i := 0
	for ; i+lanes <= n; i += lanes {
		dest[i] = f(a[i], b[i])
		dest[i+1] = f(a[i+1], b[i+1])
		dest[i+2] = f(a[i+2], b[i+2])
		dest[i+3] = f(a[i+3], b[i+3])
	}
	for ; i < n; i++ {
		dest[i] = f(a[i], b[i])
	}
}

// divide matches binary's chunking but must detect a zero divisor
// anywhere in the row and report it as a MathError rather than let
// IEEE-754 produce a silent Inf/NaN; the engine records that error at
// the instruction's destination node.
func divide(dest, a, b []float64) error {
	n := len(dest)
	for i := 0; i < n; i++ {
		if b[i] == 0 {
			return &MathError{Op: compiler.OpDiv, Offset: i}
		}
	}
	binary(dest, a, b, func(x, y float64) float64 { return x / y })
	return nil
}

// prev implements the lag shift: if lag >= model_len, the whole row is
// the default; otherwise the first lag elements come from default and
// the rest shift in from main.
func prev(dest, main, def []float64, lag int) {
	n := len(dest)
	if lag >= n {
		copy(dest, def[:n])
		return
	}
	copy(dest[:lag], def[:lag])
	copy(dest[lag:], main[:n-lag])
}
