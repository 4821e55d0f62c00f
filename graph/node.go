// Package graph implements the columnar node/edge registry that is the
// engine's single long-lived store: every formula, constant and solver
// variable the caller ever adds lives here, addressed by NodeId for the
// lifetime of the registry.
package graph

import "fmt"

// NodeId is an opaque index into the Registry. It is stable for the
// lifetime of the registry; the core never reuses an id after removal
// because removal is not supported.
type NodeId uint32

// Kind tags the variant a node is. It never changes after creation,
// except that update_constant may not turn a Scalar into a Series or
// vice versa (see Registry.UpdateConstant).
type Kind uint8

const (
	KindScalar Kind = iota
	KindSeries
	KindFormula
	KindSolverVariable
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "Scalar"
	case KindSeries:
		return "Series"
	case KindFormula:
		return "Formula"
	case KindSolverVariable:
		return "SolverVariable"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Op is a binary formula operator. The numeric values match the fixed
// bytecode opcode encoding (Add=0, Sub=1, Mul=2, Div=3, Prev=4); the
// compiler package defines Identity=5 as a tape-only pseudo-op that
// never appears on a graph node.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpPrev
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "Add"
	case OpSub:
		return "Sub"
	case OpMul:
		return "Mul"
	case OpDiv:
		return "Div"
	case OpPrev:
		return "Prev"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Temporal classifies a node as a point-in-time Stock or an
// interval-measured Flow.
type Temporal uint8

const (
	TemporalNone Temporal = iota
	Stock
	Flow
)

func (t Temporal) String() string {
	switch t {
	case Stock:
		return "Stock"
	case Flow:
		return "Flow"
	default:
		return ""
	}
}

// ParseTemporal accepts the case-insensitive spellings a caller might
// supply ("stock", "STOCK", "Stock") and normalizes to Title case
// before matching.
func ParseTemporal(s string) (Temporal, error) {
	switch titleCaser.String(lowerCaser.String(s)) {
	case "":
		return TemporalNone, nil
	case "Stock":
		return Stock, nil
	case "Flow":
		return Flow, nil
	default:
		return TemporalNone, fmt.Errorf("graph: invalid temporal type %q", s)
	}
}

// NodeMetadata carries the user-facing identity of a node: a unique,
// non-empty name, an optional unit and an optional declared temporal
// type. Declared units/temporal types are checked against the
// analyzer's inference rather than trusted outright.
type NodeMetadata struct {
	Name     string
	Unit     string // unit expression as supplied, "" if undeclared
	Temporal Temporal
}

// kindData is the fixed-size tagged-union payload for a node. Keeping it
// as one flat struct (rather than an interface per node) is deliberate:
// the kernel is the single site of arithmetic dispatch and the registry
// never needs virtual dispatch over node kinds, only the tag byte.
type kindData struct {
	Tag         Kind
	Scalar      float64
	SeriesIndex int
	Op          Op
	Lag         uint32
	DefaultNode NodeId
}
