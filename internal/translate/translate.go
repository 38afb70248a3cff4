// SPDX-License-Identifier: Apache-2.0

// Package translate implements the SQL-to-Pipeline Translator (C7, §4.2): a pure,
// non-suspending lowering of a validated logicalplan.Node into a Context.
package translate

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/docbridge/docbridge/internal/dbrerr"
	"github.com/docbridge/docbridge/internal/logicalplan"
	"github.com/docbridge/docbridge/internal/pipeline"
	"github.com/docbridge/docbridge/internal/schema"
	"github.com/docbridge/docbridge/internal/sqltype"
)

// Capabilities describes what the target pipeline executor supports. It is threaded
// through every lowering function, but none of them consults it: FULL JOIN lowers like
// LEFT JOIN (see lowerJoin), with neither a $unionWith stage nor a second pipeline.
type Capabilities struct {
	SupportsUnionWith bool
}

// ResultColumn describes one output column of a translated pipeline (§4.2.8).
type ResultColumn struct {
	SQLName   string
	SQLType   sqltype.Type
	Nullable  bool
	TableName string
}

// Context is the translator's output: the collection to run against, the ordered
// pipeline, an optional second pipeline whose results an executor appends to the
// first's (Translate always leaves Union empty), and result metadata.
type Context struct {
	CollectionName string
	Stages         []pipeline.Stage
	Union          []pipeline.Stage
	ResultColumns  []ResultColumn
}

// plan is the intermediate state threaded through lowering: the pipeline built so far
// and the collection it scans.
type plan struct {
	collection string
	stages     []pipeline.Stage
}

// Translate lowers node into a Context against sch (the set of tables the plan's leaves
// reference, typically one collection's full inferred schema).
func Translate(node logicalplan.Node, sch map[string]*schema.Table, caps Capabilities) (*Context, error) {
	p, err := lower(node, sch, caps)
	if err != nil {
		return nil, err
	}
	cols, err := resultColumns(node, sch)
	if err != nil {
		return nil, err
	}
	return &Context{
		CollectionName: p.collection,
		Stages:         p.stages,
		ResultColumns:  cols,
	}, nil
}

func lower(node logicalplan.Node, sch map[string]*schema.Table, caps Capabilities) (*plan, error) {
	switch n := node.(type) {
	case logicalplan.Scan:
		return lowerScan(n)
	case logicalplan.Filter:
		return lowerFilter(n, sch, caps)
	case logicalplan.Project:
		return lowerProject(n, sch, caps)
	case logicalplan.Join:
		return lowerJoin(n, sch, caps)
	case logicalplan.Aggregate:
		return lowerAggregate(n, sch, caps)
	case logicalplan.Sort:
		return lowerSort(n, sch, caps)
	case logicalplan.Limit:
		return lowerLimit(n, sch, caps)
	default:
		return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, fmt.Sprintf("unsupported plan node %T", node), nil)
	}
}

// lowerScan implements §4.2.2: scanning a base table emits no stage; scanning a virtual
// table emits the unwind chain from the base down to it (for array-derived tables), with
// preserve_null true per the literal §4.2.2 form
// Unwind(path=array_path, preserve_null=true, index_as=array_index_lvl_0) — the
// null-padding guard Match that follows is what actually drops the padded rows (P8), not
// the unwind itself. Every virtual-table scan gets that guard, which is also the ONLY
// such filter for document-derived (non-array) virtual tables, since those have no
// unwind stage to drop anything.
func lowerScan(n logicalplan.Scan) (*plan, error) {
	t := n.Table
	if t == nil {
		return nil, dbrerr.New(dbrerr.KindUnknownTable, "scan references a nil table", nil)
	}
	p := &plan{collection: t.CollectionName}
	if t.IsBase() {
		return p, nil
	}

	p.stages = append(p.stages, unwindChainTo(t, true)...)
	if guard := nullPaddingGuard(t); guard != nil {
		p.stages = append(p.stages, pipeline.Match{Predicate: *guard})
	}
	return p, nil
}

// unwindChainTo builds the ordered Unwind stages needed to reach an array-derived
// virtual table, one per array_index_lvl_k column the table's PK carries, in level
// order, each using preserveNull (§4.2.6 uses true for LEFT/FULL-preserving joins).
// Tables derived purely from embedded documents contribute no unwind (§4.2.2).
func unwindChainTo(t *schema.Table, preserveNull bool) []pipeline.Stage {
	var levels []int
	for _, c := range t.Columns() {
		if c.ArrayIndexLevel != nil {
			levels = append(levels, *c.ArrayIndexLevel)
		}
	}
	if len(levels) == 0 {
		return nil
	}
	stages := make([]pipeline.Stage, 0, len(levels))
	for _, lvl := range levels {
		stages = append(stages, pipeline.Unwind{
			Path:         arrayPathForLevel(t, lvl),
			PreserveNull: preserveNull,
			IndexAs:      sqltype.IndexColumnName(lvl),
		})
	}
	return stages
}

// arrayPathForLevel derives the document path the unwind at a given nesting level
// operates on, from the table's own namePath-derived sql_name: for the base array
// directly (level 0) this is the table's field_path rooted at the collection; nested
// levels unwind the already-unwound path again in place.
func arrayPathForLevel(t *schema.Table, level int) string {
	return t.NamePath()
}

// nullPaddingGuard builds the "not every projected field is absent" Match predicate
// (§4.2.2, P8): a logical OR of $exists checks over the virtual table's non-key columns.
// A table with no non-key columns (only PK/FK and synthesized index columns) needs no
// guard.
func nullPaddingGuard(t *schema.Table) *pipeline.Predicate {
	var checks []pipeline.Expr
	for _, c := range t.Columns() {
		if c.PrimaryKeyIndex > 0 || c.ForeignKeyIndex > 0 {
			continue
		}
		checks = append(checks, pipeline.Exists{Field: c.FieldPath})
	}
	if len(checks) == 0 {
		return nil
	}
	var pred pipeline.Predicate = pipeline.Logical{Op: pipeline.LogicalOr, Operands: checks}
	return &pred
}

func lowerLimit(n logicalplan.Limit, sch map[string]*schema.Table, caps Capabilities) (*plan, error) {
	p, err := lower(n.Input, sch, caps)
	if err != nil {
		return nil, err
	}
	p.stages = append(p.stages, pipeline.Limit{N: n.N})
	return p, nil
}

func lowerSort(n logicalplan.Sort, sch map[string]*schema.Table, caps Capabilities) (*plan, error) {
	p, err := lower(n.Input, sch, caps)
	if err != nil {
		return nil, err
	}
	keys := make([]pipeline.SortKey, 0, len(n.Keys))
	for _, k := range n.Keys {
		keys = append(keys, pipeline.SortKey{Path: columnPath(k.Column), Descending: k.Descending})
	}
	p.stages = append(p.stages, pipeline.Sort{Keys: keys})
	return p, nil
}

func columnPath(ref logicalplan.ColumnRef) string {
	return ref.Column
}

// newFlagName returns a field name guaranteed not to collide with a user column: a
// constant prefix plus a randomly generated suffix, unique per translation call (§4.2.3,
// §9 open question 3).
func newFlagName() string {
	return "__docbridge_flag_" + uuid.NewString()
}
