// SPDX-License-Identifier: Apache-2.0

// Package logicalplan defines the minimal plan-node contract the Translator consumes
// (§1): an external relational-algebra provider (SQL parser/validator/planner) is
// assumed to already exist and to emit a validated plan built from these node types.
// Nothing in this package executes a query; it only describes one.
package logicalplan

import "github.com/docbridge/docbridge/internal/schema"

// Node is any plan node. Concrete types are the closed set named in §1: Scan, Filter,
// Project, Join, Aggregate, Sort, Limit.
type Node interface {
	isNode()
}

// Scan reads a table's rows — the only leaf node.
type Scan struct {
	Table *schema.Table
}

func (Scan) isNode() {}

// Filter keeps rows matching Predicate.
type Filter struct {
	Input     Node
	Predicate Expr
}

func (Filter) isNode() {}

// Project computes the output columns, keyed by output name.
type Project struct {
	Input   Node
	Columns []ProjectColumn
}

func (Project) isNode() {}

// ProjectColumn is one output column of a Project node.
type ProjectColumn struct {
	OutputName string
	Expr       Expr
}

// JoinKind is the closed set of join kinds §4.2.6 names.
type JoinKind string

const (
	InnerJoin JoinKind = "inner"
	LeftJoin  JoinKind = "left"
	RightJoin JoinKind = "right"
	FullJoin  JoinKind = "full"
)

// Join combines Left and Right on the equality predicates in On. §4.2.6 restricts this
// to same-collection joins between a base table and its own virtual tables.
type Join struct {
	Left, Right Node
	Kind        JoinKind
	On          []Equality
}

func (Join) isNode() {}

// Equality is one equality conjunct of a join's ON clause.
type Equality struct {
	Left, Right ColumnRef
}

// Aggregate groups Input by GroupBy and computes Aggregates; a non-empty Having is
// applied as a post-group filter (§4.2.7).
type Aggregate struct {
	Input      Node
	GroupBy    []ColumnRef
	Aggregates []AggregateExpr
	Having     Expr
}

func (Aggregate) isNode() {}

// AggregateFunc is the closed set of aggregate functions §4.2.7 names.
type AggregateFunc string

const (
	AggSum   AggregateFunc = "sum"
	AggCount AggregateFunc = "count"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
	AggAvg   AggregateFunc = "avg"
)

// AggregateExpr is one computed aggregate column.
type AggregateExpr struct {
	OutputName string
	Func       AggregateFunc
	Arg        ColumnRef
}

// SortKey is one ORDER BY key; Descending selects reverse order.
type SortKey struct {
	Column     ColumnRef
	Descending bool
}

// Sort orders Input by Keys.
type Sort struct {
	Input Node
	Keys  []SortKey
}

func (Sort) isNode() {}

// Limit caps Input at N rows.
type Limit struct {
	Input Node
	N     int64
}

func (Limit) isNode() {}
