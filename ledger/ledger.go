// Package ledger is the hybrid scalar/series value store: a dense,
// per-NodeId cache of computed values and errors that the engine
// reads and writes, persisting across compute calls so incremental
// recompute only touches what invalidation marks dirty.
package ledger

import (
	"fmt"

	"github.com/tsgraph/tsgraph/graph"
)

// Status is the per-cell computation state.
type Status uint8

const (
	Uncomputed Status = iota
	ComputedScalar
	ComputedSeries
	StatusError
)

// UpstreamError wraps a failure that occurred at an ancestor node: a
// node that reads a failed dependency records this rather than
// attempting its own operation.
type UpstreamError struct {
	Cause     graph.NodeId
	CauseName string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ledger: upstream error at node %d (%s)", e.Cause, e.CauseName)
}

// Ledger holds one cell per NodeId. Cells are created lazily by
// EnsureCapacity and never shrink; Invalidate resets status without
// freeing the underlying storage, and Get reports an invalidated cell
// as uncomputed until a new value or error is inserted.
type Ledger struct {
	scalars []float64
	series  [][]float64
	status  []Status
	errs    map[graph.NodeId]error
}

// New returns an empty ledger with no cells.
func New() *Ledger {
	return &Ledger{errs: make(map[graph.NodeId]error)}
}

// EnsureCapacity grows the ledger so ids [0, n) are addressable.
// Already-populated cells are left untouched.
func (l *Ledger) EnsureCapacity(n int) {
	if n <= len(l.status) {
		return
	}
	grow := n - len(l.status)
	l.scalars = append(l.scalars, make([]float64, grow)...)
	l.series = append(l.series, make([][]float64, grow)...)
	l.status = append(l.status, make([]Status, grow)...)
}

// Len returns the number of addressable cells.
func (l *Ledger) Len() int {
	return len(l.status)
}

// InsertValue records a successful computation.
func (l *Ledger) InsertValue(id graph.NodeId, v Value) {
	delete(l.errs, id)
	if v.IsSeries() {
		l.series[id] = v.Series()
		l.status[id] = ComputedSeries
		return
	}
	l.scalars[id] = v.Scalar()
	l.status[id] = ComputedScalar
}

// InsertError records a failed computation.
func (l *Ledger) InsertError(id graph.NodeId, err error) {
	l.status[id] = StatusError
	l.errs[id] = err
}

// Get returns the cell's value, or (zero, err, false) if it errored,
// or (zero, nil, false) if it has not been computed.
func (l *Ledger) Get(id graph.NodeId) (Value, error, bool) {
	switch l.status[id] {
	case ComputedScalar:
		return NewScalar(l.scalars[id]), nil, true
	case ComputedSeries:
		return NewSeries(l.series[id]), nil, true
	case StatusError:
		return Value{}, l.errs[id], false
	default:
		return Value{}, nil, false
	}
}

// StatusOf returns the raw status of a cell.
func (l *Ledger) StatusOf(id graph.NodeId) Status {
	return l.status[id]
}

// ErrorOf returns the recorded error for a cell, if any.
func (l *Ledger) ErrorOf(id graph.NodeId) error {
	return l.errs[id]
}

// Invalidate resets status to Uncomputed for every id in the set,
// without freeing scalar/series storage.
func (l *Ledger) Invalidate(ids map[graph.NodeId]struct{}) {
	for id := range ids {
		l.status[id] = Uncomputed
		delete(l.errs, id)
	}
}

// IsTimeseries reports whether any of ids maps to a Series of length
// greater than 1 in the ledger.
func (l *Ledger) IsTimeseries(ids []graph.NodeId) bool {
	for _, id := range ids {
		if l.status[id] == ComputedSeries && len(l.series[id]) > 1 {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy for solver callbacks: status and
// scalars are copied, and series slices are shared. Values are
// immutable once installed, so sharing the backing array is safe.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		scalars: append([]float64(nil), l.scalars...),
		series:  append([][]float64(nil), l.series...),
		status:  append([]Status(nil), l.status...),
		errs:    make(map[graph.NodeId]error, len(l.errs)),
	}
	for k, v := range l.errs {
		out.errs[k] = v
	}
	return out
}
