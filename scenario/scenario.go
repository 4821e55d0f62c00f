// Package scenario loads a graph-definition file and builds a
// graph.Registry from it: nested structs tagged for gopkg.in/yaml.v3,
// unmarshaled wholesale and then walked to drive the domain's
// constructors. A scenario file declares add_constant/
// add_binary_formula/add_previous/add_solver_variable/must_equal calls
// directly as YAML lists.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tsgraph/tsgraph/graph"
)

// YAMLScenario is the root structure of a scenario file.
type YAMLScenario struct {
	Constants []YAMLConstant `yaml:"constants"`
	Formulas  []YAMLFormula  `yaml:"formulas"`
	Previous  []YAMLPrevious `yaml:"previous"`
	Variables []YAMLVariable `yaml:"variables"`
	Equal     []YAMLEqual    `yaml:"must_equal"`
}

// YAMLConstant declares a Scalar (single-element Values) or Series
// (multi-element Values) constant node.
type YAMLConstant struct {
	Name     string    `yaml:"name"`
	Values   []float64 `yaml:"values"`
	Unit     string    `yaml:"unit"`
	Temporal string    `yaml:"temporal"`
}

// YAMLFormula declares a binary-operation node referencing two other
// declarations by name, wherever they appear in the file.
type YAMLFormula struct {
	Name    string    `yaml:"name"`
	Op      string    `yaml:"op"`
	Parents [2]string `yaml:"parents"`
	Unit    string    `yaml:"unit"`
}

// YAMLPrevious declares a Prev (temporal-lag) node.
type YAMLPrevious struct {
	Name    string `yaml:"name"`
	Main    string `yaml:"main"`
	Default string `yaml:"default"`
	Lag     uint32 `yaml:"lag"`
}

// YAMLVariable declares a SolverVariable placeholder node.
type YAMLVariable struct {
	Name string `yaml:"name"`
	Unit string `yaml:"unit"`
}

// YAMLEqual declares a must_equal constraint between two declarations
// by name; constraints are applied after every node is registered.
type YAMLEqual struct {
	Name string `yaml:"name"`
	LHS  string `yaml:"lhs"`
	RHS  string `yaml:"rhs"`
}

// UndefinedReferenceError reports a formula, previous or must_equal
// entry naming a node no entry in the file declares.
type UndefinedReferenceError struct {
	In  string
	Ref string
}

func (e *UndefinedReferenceError) Error() string {
	return fmt.Sprintf("scenario: %s references undeclared name %q", e.In, e.Ref)
}

// LoadFile reads and parses a scenario YAML file into a fresh
// registry.
func LoadFile(path string) (*graph.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	return Load(data)
}

// Load parses scenario YAML bytes into a fresh registry. Constants
// and variables are registered first; formula and previous entries
// are then added as their references resolve, so they may refer to
// variables and to each other regardless of where they appear in the
// file. must_equal constraints are applied last.
func Load(data []byte) (*graph.Registry, error) {
	var root YAMLScenario
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("scenario: parse yaml: %w", err)
	}

	r := graph.NewRegistry()
	names := make(map[string]graph.NodeId)

	for _, c := range root.Constants {
		temporal, err := graph.ParseTemporal(c.Temporal)
		if err != nil {
			return nil, err
		}
		meta := graph.NodeMetadata{Name: c.Name, Unit: c.Unit, Temporal: temporal}
		var id graph.NodeId
		if len(c.Values) == 1 {
			id = r.AddScalar(c.Values[0], meta)
		} else {
			id = r.AddSeries(c.Values, meta)
		}
		names[c.Name] = id
	}

	for _, v := range root.Variables {
		id := r.AddSolverVariable(graph.NodeMetadata{Name: v.Name, Unit: v.Unit})
		names[v.Name] = id
	}

	if err := resolveNodes(r, names, root.Formulas, root.Previous); err != nil {
		return nil, err
	}

	for _, eq := range root.Equal {
		lhs, ok := names[eq.LHS]
		if !ok {
			return nil, &UndefinedReferenceError{In: eq.Name, Ref: eq.LHS}
		}
		rhs, ok := names[eq.RHS]
		if !ok {
			return nil, &UndefinedReferenceError{In: eq.Name, Ref: eq.RHS}
		}
		if _, err := r.MustEqual(lhs, rhs, eq.Name); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// resolveNodes adds formula and previous entries to r, deferring any
// entry whose references are not registered yet and retrying until a
// whole round makes no progress, at which point the first unresolved
// reference is reported.
func resolveNodes(r *graph.Registry, names map[string]graph.NodeId, formulas []YAMLFormula, previous []YAMLPrevious) error {
	type pending struct {
		formula  *YAMLFormula
		previous *YAMLPrevious
	}
	queue := make([]pending, 0, len(formulas)+len(previous))
	for i := range formulas {
		queue = append(queue, pending{formula: &formulas[i]})
	}
	for i := range previous {
		queue = append(queue, pending{previous: &previous[i]})
	}

	for len(queue) > 0 {
		var deferred []pending
		for _, p := range queue {
			if p.formula != nil {
				f := p.formula
				p0, ok0 := names[f.Parents[0]]
				p1, ok1 := names[f.Parents[1]]
				if !ok0 || !ok1 {
					deferred = append(deferred, p)
					continue
				}
				op, err := graph.ParseOp(f.Op)
				if err != nil {
					return err
				}
				id, err := r.AddFormula(op, [2]graph.NodeId{p0, p1}, graph.NodeMetadata{Name: f.Name, Unit: f.Unit})
				if err != nil {
					return err
				}
				names[f.Name] = id
				continue
			}

			pv := p.previous
			main, ok0 := names[pv.Main]
			def, ok1 := names[pv.Default]
			if !ok0 || !ok1 {
				deferred = append(deferred, p)
				continue
			}
			id, err := r.AddPrev(main, def, pv.Lag, graph.NodeMetadata{Name: pv.Name})
			if err != nil {
				return err
			}
			names[pv.Name] = id
		}

		if len(deferred) == len(queue) {
			p := deferred[0]
			if p.formula != nil {
				ref := p.formula.Parents[0]
				if _, ok := names[ref]; ok {
					ref = p.formula.Parents[1]
				}
				return &UndefinedReferenceError{In: p.formula.Name, Ref: ref}
			}
			ref := p.previous.Main
			if _, ok := names[ref]; ok {
				ref = p.previous.Default
			}
			return &UndefinedReferenceError{In: p.previous.Name, Ref: ref}
		}
		queue = deferred
	}
	return nil
}
