// Package snapshot persists a graph.Registry to a single-file SQLite
// database and reloads it: a straight dump of the columnar node rows
// plus the constraint list, with the name-uniqueness cache rebuilt on
// load by graph.Restore.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tsgraph/tsgraph/graph"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id           INTEGER PRIMARY KEY,
	kind         INTEGER NOT NULL,
	name         TEXT NOT NULL,
	unit         TEXT NOT NULL,
	temporal     INTEGER NOT NULL,
	op           INTEGER NOT NULL,
	lag          INTEGER NOT NULL,
	default_node INTEGER NOT NULL,
	parents      TEXT NOT NULL,
	scalar       REAL NOT NULL,
	series       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS constraints (
	residual INTEGER NOT NULL,
	name     TEXT NOT NULL
);
`

// Save writes r's full node set and constraint list to path,
// replacing any existing file content.
func Save(r *graph.Registry, path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec("DROP TABLE IF EXISTS nodes; DROP TABLE IF EXISTS constraints;"); err != nil {
		return fmt.Errorf("snapshot: reset schema: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("snapshot: create schema: %w", err)
	}

	records, constraints := r.Dump()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("snapshot: begin: %w", err)
	}

	insertNode, err := tx.Prepare(`INSERT INTO nodes
		(id, kind, name, unit, temporal, op, lag, default_node, parents, scalar, series)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("snapshot: prepare node insert: %w", err)
	}
	defer insertNode.Close()

	for id, rec := range records {
		parentsJSON, err := json.Marshal(rec.Parents)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("snapshot: encode parents for node %d: %w", id, err)
		}
		seriesJSON, err := json.Marshal(rec.Series)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("snapshot: encode series for node %d: %w", id, err)
		}
		if _, err := insertNode.Exec(id, rec.Kind, rec.Name, rec.Unit, rec.Temporal, rec.Op,
			rec.Lag, rec.DefaultNode, string(parentsJSON), rec.Scalar, string(seriesJSON)); err != nil {
			tx.Rollback()
			return fmt.Errorf("snapshot: insert node %d: %w", id, err)
		}
	}

	insertConstraint, err := tx.Prepare(`INSERT INTO constraints (residual, name) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("snapshot: prepare constraint insert: %w", err)
	}
	defer insertConstraint.Close()

	for _, c := range constraints {
		if _, err := insertConstraint.Exec(c.Residual, c.Name); err != nil {
			tx.Rollback()
			return fmt.Errorf("snapshot: insert constraint %s: %w", c.Name, err)
		}
	}

	return tx.Commit()
}

// Load rebuilds a registry from a file Save produced. Rows are read back
// in id order, which graph.Restore requires since parent and
// default-node references resolve by position.
func Load(path string) (*graph.Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, kind, name, unit, temporal, op, lag, default_node, parents, scalar, series
		FROM nodes ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query nodes: %w", err)
	}
	defer rows.Close()

	var records []graph.NodeRecord
	for rows.Next() {
		var (
			id                       int
			kind, op, temporal       uint8
			lag                      uint32
			defaultNode              uint32
			name, unit               string
			parentsJSON, seriesJSON  string
			scalar                   float64
		)
		if err := rows.Scan(&id, &kind, &name, &unit, &temporal, &op, &lag, &defaultNode,
			&parentsJSON, &scalar, &seriesJSON); err != nil {
			return nil, fmt.Errorf("snapshot: scan node row: %w", err)
		}

		var parents []graph.NodeId
		if err := json.Unmarshal([]byte(parentsJSON), &parents); err != nil {
			return nil, fmt.Errorf("snapshot: decode parents for node %d: %w", id, err)
		}
		var series []float64
		if err := json.Unmarshal([]byte(seriesJSON), &series); err != nil {
			return nil, fmt.Errorf("snapshot: decode series for node %d: %w", id, err)
		}

		records = append(records, graph.NodeRecord{
			Kind:        graph.Kind(kind),
			Name:        name,
			Unit:        unit,
			Temporal:    graph.Temporal(temporal),
			Op:          graph.Op(op),
			Lag:         lag,
			DefaultNode: graph.NodeId(defaultNode),
			Parents:     parents,
			Scalar:      scalar,
			Series:      series,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: iterate node rows: %w", err)
	}

	crows, err := db.Query(`SELECT residual, name FROM constraints`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query constraints: %w", err)
	}
	defer crows.Close()

	var constraints []graph.Constraint
	for crows.Next() {
		var residual uint32
		var name string
		if err := crows.Scan(&residual, &name); err != nil {
			return nil, fmt.Errorf("snapshot: scan constraint row: %w", err)
		}
		constraints = append(constraints, graph.Constraint{Residual: graph.NodeId(residual), Name: name})
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: iterate constraint rows: %w", err)
	}

	return graph.Restore(records, constraints), nil
}
