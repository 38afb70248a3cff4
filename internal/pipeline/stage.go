// SPDX-License-Identifier: Apache-2.0

// Package pipeline is the tagged-variant aggregation-pipeline AST (C6, §4.2.1) and its
// document-store wire encoding (§6.4).
package pipeline

// Stage is one aggregation pipeline stage. Concrete types are the closed set §4.2.1
// names: Match, Unwind, Project, Group, Sort, Limit, AddFields.
type Stage interface {
	isStage()
}

// Match filters documents by Predicate.
type Match struct {
	Predicate Predicate
}

func (Match) isStage() {}

// Unwind deconstructs the array field at Path into one document per element (§4.2.2).
// IndexAs, when non-empty, names the generated field that receives the element's array
// index — docbridge always sets it for virtual-table scans (array_index_lvl_k).
type Unwind struct {
	Path          string
	PreserveNull  bool
	IndexAs       string
}

func (Unwind) isStage() {}

// ProjectEntry is one output field of a Project stage; Expr is nil for a plain
// column-to-column rename/copy (§4.2.5 "pure column renames and drops").
type ProjectEntry struct {
	OutputName string
	SourcePath string
	Expr       Expr
	Exclude    bool
}

// Project reshapes documents per Entries (§4.2.5). IncludeID controls the synthetic
// document-store "_id" field: when false the stage explicitly suppresses it (_id: 0).
type Project struct {
	Entries   []ProjectEntry
	IncludeID bool
}

func (Project) isStage() {}

// GroupAggregate is one computed aggregate column of a Group stage.
type GroupAggregate struct {
	OutputName string
	Func       string // "sum", "count", "min", "max", "avg"
	SourcePath string
}

// Group implements GROUP BY (§4.2.7): GroupKey is the set of field paths forming the
// grouping key (empty means "group all documents into one").
type Group struct {
	GroupKey   []string
	Aggregates []GroupAggregate
}

func (Group) isStage() {}

// SortKey is one ORDER BY key; Descending selects reverse order.
type SortKey struct {
	Path       string
	Descending bool
}

// Sort orders documents by Keys (§4.2.7).
type Sort struct {
	Keys []SortKey
}

func (Sort) isStage() {}

// Limit caps the pipeline's output at N documents (§4.2.7).
type Limit struct {
	N int64
}

func (Limit) isStage() {}

// AddFields computes new top-level fields without reshaping existing ones — used by
// expression-mode filter lowering to materialize its boolean flag (§4.2.3).
type AddFields struct {
	Fields map[string]Expr
}

func (AddFields) isStage() {}
