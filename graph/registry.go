package graph

import (
	"fmt"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleCaser = cases.Title(language.English)
	lowerCaser = cases.Lower(language.English)
)

const noChild = int32(-1)

// Range is an (offset, count) slice descriptor into a flat array, used
// for the CSR parent adjacency.
type Range struct {
	Offset int
	Count  int
}

// Registry is the columnar node/edge store. Its topology is
// append-only: once a node is added its parents never change, and
// NodeIds are never reused.
type Registry struct {
	kinds []kindData
	meta  []NodeMetadata

	parentsFlat   []NodeId
	parentsRanges []Range

	firstChild   []int32
	childTargets []NodeId
	nextChild    []int32

	seriesData [][]float64

	usedNames  map[string]bool
	nextSuffix map[string]int

	constraints []Constraint
}

// Constraint pairs a synthetic residual node (lhs - rhs) with the name
// the caller gave the equality it encodes.
type Constraint struct {
	Residual NodeId
	Name     string
}

// NewRegistry returns an empty registry ready to accept nodes.
func NewRegistry() *Registry {
	return &Registry{
		usedNames:  make(map[string]bool),
		nextSuffix: make(map[string]int),
	}
}

// Count returns the number of nodes in the registry.
func (r *Registry) Count() int {
	return len(r.kinds)
}

// Constraints returns the append-only list of must_equal constraints.
func (r *Registry) Constraints() []Constraint {
	return r.constraints
}

// disambiguate appends "_<k>" for the smallest k>=1 that makes name
// unique, recording the final name as used. Callers never pass an empty
// name: appendNode substitutes a generated one and SetNodeName rejects it.
func (r *Registry) disambiguate(name string) string {
	if !r.usedNames[name] {
		r.usedNames[name] = true
		return name
	}
	k := r.nextSuffix[name]
	if k == 0 {
		k = 1
	}
	for {
		candidate := name + "_" + strconv.Itoa(k)
		if !r.usedNames[candidate] {
			r.usedNames[candidate] = true
			r.nextSuffix[name] = k + 1
			return candidate
		}
		k++
	}
}

func (r *Registry) appendNode(k kindData, meta NodeMetadata, parents []NodeId) NodeId {
	if meta.Name == "" {
		meta.Name = fmt.Sprintf("node_%d", len(r.kinds))
	}
	meta.Name = r.disambiguate(meta.Name)

	id := NodeId(len(r.kinds))
	r.kinds = append(r.kinds, k)
	r.meta = append(r.meta, meta)
	r.firstChild = append(r.firstChild, noChild)

	offset := len(r.parentsFlat)
	for _, p := range parents {
		r.parentsFlat = append(r.parentsFlat, p)
	}
	r.parentsRanges = append(r.parentsRanges, Range{Offset: offset, Count: len(parents)})

	for _, p := range parents {
		r.addChildEdge(p, id)
	}

	return id
}

func (r *Registry) addChildEdge(parent NodeId, child NodeId) {
	idx := int32(len(r.childTargets))
	r.childTargets = append(r.childTargets, child)
	r.nextChild = append(r.nextChild, r.firstChild[parent])
	r.firstChild[parent] = idx
}

// AddScalar adds a constant scalar node.
func (r *Registry) AddScalar(value float64, meta NodeMetadata) NodeId {
	return r.appendNode(kindData{Tag: KindScalar, Scalar: value}, meta, nil)
}

// AddSeries adds a constant time-series node. The slice is owned by the
// registry from this point on; callers must not mutate it afterward.
func (r *Registry) AddSeries(values []float64, meta NodeMetadata) NodeId {
	idx := len(r.seriesData)
	owned := make([]float64, len(values))
	copy(owned, values)
	r.seriesData = append(r.seriesData, owned)
	return r.appendNode(kindData{Tag: KindSeries, SeriesIndex: idx}, meta, nil)
}

// AddFormula adds a binary-operation node (Add, Sub, Mul, Div). Use
// AddPrev for the temporal-lag operator.
func (r *Registry) AddFormula(op Op, parents [2]NodeId, meta NodeMetadata) (NodeId, error) {
	if op == OpPrev {
		return 0, fmt.Errorf("graph: AddFormula does not accept Prev, use AddPrev")
	}
	if err := r.checkParent(parents[0]); err != nil {
		return 0, err
	}
	if err := r.checkParent(parents[1]); err != nil {
		return 0, err
	}
	return r.appendNode(kindData{Tag: KindFormula, Op: op}, meta, parents[:]), nil
}

// AddPrev adds a temporal-lag node: result[t] = main[t-lag] for t>=lag,
// default[t] otherwise.
func (r *Registry) AddPrev(main, defaultNode NodeId, lag uint32, meta NodeMetadata) (NodeId, error) {
	if err := r.checkParent(main); err != nil {
		return 0, err
	}
	if err := r.checkParent(defaultNode); err != nil {
		return 0, err
	}
	k := kindData{Tag: KindFormula, Op: OpPrev, Lag: lag, DefaultNode: defaultNode}
	return r.appendNode(k, meta, []NodeId{main, defaultNode}), nil
}

// AddSolverVariable adds a placeholder node whose value is determined by
// solving rather than by direct computation.
func (r *Registry) AddSolverVariable(meta NodeMetadata) NodeId {
	return r.appendNode(kindData{Tag: KindSolverVariable}, meta, nil)
}

func (r *Registry) checkParent(id NodeId) error {
	if int(id) >= len(r.kinds) {
		return &InvalidNodeError{Id: id}
	}
	return nil
}

// MustEqual appends a constraint encoding lhs == rhs as a synthetic
// Formula(Sub) residual node.
func (r *Registry) MustEqual(lhs, rhs NodeId, name string) (NodeId, error) {
	residual, err := r.AddFormula(OpSub, [2]NodeId{lhs, rhs}, NodeMetadata{Name: name + "__residual"})
	if err != nil {
		return 0, err
	}
	r.constraints = append(r.constraints, Constraint{Residual: residual, Name: name})
	return residual, nil
}

// UpdateConstant replaces the value(s) of an existing Scalar or Series
// node. It fails if the node is not a constant, or if the update would
// change the node between Scalar and Series.
func (r *Registry) UpdateConstant(id NodeId, values []float64) error {
	if int(id) >= len(r.kinds) {
		return &InvalidNodeError{Id: id}
	}
	k := &r.kinds[id]
	switch k.Tag {
	case KindScalar:
		if len(values) != 1 {
			return &KindMismatchError{Id: id, Message: "cannot change a Scalar constant to a Series"}
		}
		k.Scalar = values[0]
		return nil
	case KindSeries:
		if len(values) < 2 {
			return &KindMismatchError{Id: id, Message: "cannot change a Series constant to a Scalar"}
		}
		owned := make([]float64, len(values))
		copy(owned, values)
		r.seriesData[k.SeriesIndex] = owned
		return nil
	default:
		return &NotAConstantError{Id: id}
	}
}

// SetNodeName renames a node, disambiguating as necessary, and returns
// the old name.
func (r *Registry) SetNodeName(id NodeId, name string) (string, error) {
	if int(id) >= len(r.kinds) {
		return "", &InvalidNodeError{Id: id}
	}
	if name == "" {
		return "", fmt.Errorf("graph: node name must be non-empty")
	}
	old := r.meta[id].Name
	r.meta[id].Name = r.disambiguate(name)
	return old, nil
}

// SetNodeMetadata overwrites a node's unit/temporal declaration (but not
// its name) and returns the old metadata.
func (r *Registry) SetNodeMetadata(id NodeId, unit string, temporal Temporal) (NodeMetadata, error) {
	if int(id) >= len(r.kinds) {
		return NodeMetadata{}, &InvalidNodeError{Id: id}
	}
	old := r.meta[id]
	r.meta[id].Unit = unit
	r.meta[id].Temporal = temporal
	return old, nil
}

// Kind returns the kind tag of a node.
func (r *Registry) Kind(id NodeId) Kind {
	return r.kinds[id].Tag
}

// Meta returns the metadata of a node.
func (r *Registry) Meta(id NodeId) NodeMetadata {
	return r.meta[id]
}

// Op returns the operator of a Formula node.
func (r *Registry) Op(id NodeId) Op {
	return r.kinds[id].Op
}

// Lag returns the lag of a Prev node.
func (r *Registry) Lag(id NodeId) uint32 {
	return r.kinds[id].Lag
}

// DefaultNode returns the default-value parent of a Prev node.
func (r *Registry) DefaultNode(id NodeId) NodeId {
	return r.kinds[id].DefaultNode
}

// ScalarValue returns the constant value of a Scalar node.
func (r *Registry) ScalarValue(id NodeId) float64 {
	return r.kinds[id].Scalar
}

// SeriesValue returns the constant slice of a Series node. The returned
// slice must not be mutated by the caller.
func (r *Registry) SeriesValue(id NodeId) []float64 {
	return r.seriesData[r.kinds[id].SeriesIndex]
}

// Parents returns the ordered parent ids of a node.
func (r *Registry) Parents(id NodeId) []NodeId {
	rg := r.parentsRanges[id]
	return r.parentsFlat[rg.Offset : rg.Offset+rg.Count]
}

// Children iterates a node's children in reverse-insertion order. There
// is no ordering invariant on children beyond that.
func (r *Registry) Children(id NodeId) []NodeId {
	var out []NodeId
	for e := r.firstChild[id]; e != noChild; e = r.nextChild[e] {
		out = append(out, r.childTargets[e])
	}
	return out
}

// ParseOp maps the operator strings an embedding runtime passes to
// AddFormula ("add", "sub", "mul", "div") to an Op.
func ParseOp(s string) (Op, error) {
	switch s {
	case "add":
		return OpAdd, nil
	case "sub":
		return OpSub, nil
	case "mul":
		return OpMul, nil
	case "div":
		return OpDiv, nil
	default:
		return 0, &UnknownOpError{Op: s}
	}
}
