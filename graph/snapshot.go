package graph

// NodeRecord is the serializable form of one node, flattening the
// columnar kinds/meta/parentsFlat storage into a single row. Dump and
// Restore carry everything except the ephemeral name-uniqueness
// cache, which Restore rebuilds.
type NodeRecord struct {
	Kind        Kind
	Name        string
	Unit        string
	Temporal    Temporal
	Op          Op
	Lag         uint32
	DefaultNode NodeId
	Parents     []NodeId
	Scalar      float64
	Series      []float64
}

// Dump flattens the registry into one NodeRecord per node, in NodeId
// order, plus the must_equal constraint list. A snapshot store persists
// these two slices; Restore rebuilds an equivalent registry from them.
func (r *Registry) Dump() ([]NodeRecord, []Constraint) {
	records := make([]NodeRecord, len(r.kinds))
	for id := range r.kinds {
		k := r.kinds[id]
		rec := NodeRecord{
			Kind:        k.Tag,
			Name:        r.meta[id].Name,
			Unit:        r.meta[id].Unit,
			Temporal:    r.meta[id].Temporal,
			Op:          k.Op,
			Lag:         k.Lag,
			DefaultNode: k.DefaultNode,
			Scalar:      k.Scalar,
			Parents:     append([]NodeId(nil), r.Parents(NodeId(id))...),
		}
		if k.Tag == KindSeries {
			rec.Series = append([]float64(nil), r.seriesData[k.SeriesIndex]...)
		}
		records[id] = rec
	}
	return records, append([]Constraint(nil), r.constraints...)
}

// Restore rebuilds a registry from a Dump. Records must be in the
// original NodeId order: parent references and DefaultNode are resolved
// by position, so a record can only reference an index below its own,
// which Dump always produces since the registry is append-only.
func Restore(records []NodeRecord, constraints []Constraint) *Registry {
	r := NewRegistry()
	for _, rec := range records {
		meta := NodeMetadata{Name: rec.Name, Unit: rec.Unit, Temporal: rec.Temporal}
		switch rec.Kind {
		case KindScalar:
			r.restoreNode(kindData{Tag: KindScalar, Scalar: rec.Scalar}, meta, nil)
		case KindSeries:
			idx := len(r.seriesData)
			r.seriesData = append(r.seriesData, append([]float64(nil), rec.Series...))
			r.restoreNode(kindData{Tag: KindSeries, SeriesIndex: idx}, meta, nil)
		case KindFormula:
			r.restoreNode(kindData{Tag: KindFormula, Op: rec.Op, Lag: rec.Lag, DefaultNode: rec.DefaultNode}, meta, rec.Parents)
		case KindSolverVariable:
			r.restoreNode(kindData{Tag: KindSolverVariable}, meta, nil)
		}
	}
	r.constraints = append([]Constraint(nil), constraints...)
	return r
}

// restoreNode is appendNode without name disambiguation: a restored
// name already went through disambiguate once, at original creation
// time, and must come back unchanged.
func (r *Registry) restoreNode(k kindData, meta NodeMetadata, parents []NodeId) NodeId {
	r.usedNames[meta.Name] = true

	id := NodeId(len(r.kinds))
	r.kinds = append(r.kinds, k)
	r.meta = append(r.meta, meta)
	r.firstChild = append(r.firstChild, noChild)

	offset := len(r.parentsFlat)
	r.parentsFlat = append(r.parentsFlat, parents...)
	r.parentsRanges = append(r.parentsRanges, Range{Offset: offset, Count: len(parents)})

	for _, p := range parents {
		r.addChildEdge(p, id)
	}

	return id
}
