package ledger

// Value is one computed cell: either a Scalar or a Series. It is one
// flat struct carrying both variants behind a flag, rather than an
// interface, because the ledger needs cheap structural equality and
// copy semantics, not dispatch.
type Value struct {
	scalar   float64
	series   []float64
	isSeries bool
}

// NewScalar wraps a single float64.
func NewScalar(v float64) Value {
	return Value{scalar: v}
}

// NewSeries wraps a time series. The caller's slice is taken by
// reference — Values are shared, immutable handles; producers must
// allocate a fresh slice rather than mutate one already installed in
// a Value.
func NewSeries(v []float64) Value {
	return Value{series: v, isSeries: true}
}

// IsSeries reports whether the value is a Series rather than a Scalar.
func (v Value) IsSeries() bool {
	return v.isSeries
}

// Len returns 1 for a Scalar and the series length for a Series.
func (v Value) Len() int {
	if v.isSeries {
		return len(v.series)
	}
	return 1
}

// Scalar returns the wrapped float64; valid only if !IsSeries().
func (v Value) Scalar() float64 {
	return v.scalar
}

// Series returns the wrapped slice; valid only if IsSeries(). The
// returned slice must not be mutated.
func (v Value) Series() []float64 {
	return v.series
}

// At returns the value at time step t, broadcasting a Scalar to every
// step and a Series' last element past its own length.
func (v Value) At(t int) float64 {
	if !v.isSeries {
		return v.scalar
	}
	if t >= len(v.series) {
		return v.series[len(v.series)-1]
	}
	return v.series[t]
}

// Equal is structural value equality.
func (v Value) Equal(other Value) bool {
	if v.isSeries != other.isSeries {
		return false
	}
	if !v.isSeries {
		return v.scalar == other.scalar
	}
	if len(v.series) != len(other.series) {
		return false
	}
	for i, x := range v.series {
		if x != other.series[i] {
			return false
		}
	}
	return true
}

// Broadcast returns lhs and rhs widened to the same length: a Scalar
// repeats to the other's width, and a shorter Series repeats its last
// element.
func Broadcast(lhs, rhs Value) (l, r []float64, width int) {
	width = lhs.Len()
	if rhs.Len() > width {
		width = rhs.Len()
	}
	l = widen(lhs, width)
	r = widen(rhs, width)
	return l, r, width
}

func widen(v Value, width int) []float64 {
	return Widen(v, width)
}

// Widen materializes v as a fresh []float64 of the given width,
// broadcasting a Scalar or a Series' trailing element as At does.
func Widen(v Value, width int) []float64 {
	out := make([]float64, width)
	for t := 0; t < width; t++ {
		out[t] = v.At(t)
	}
	return out
}
