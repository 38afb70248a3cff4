// SPDX-License-Identifier: Apache-2.0

// Package schema implements the relational data model (§3), the Schema Inference
// Engine (§4.1, C4), and the versioned Schema Store (C5).
package schema

import (
	"time"

	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/sqltype"
)

// Column is a single relational column (§3.3).
type Column struct {
	FieldPath        string
	SQLName          string
	SQLType          sqltype.Type
	DBType           document.Kind
	IndexInTable     int // 1-based
	PrimaryKeyIndex  int // 0 = not PK; >=1 = position within the composite key
	ForeignKeyIndex  int // 0 = not FK; >=1 = position
	ForeignKeyTable  string
	ForeignKeyColumn string
	IsGenerated      bool
	ArrayIndexLevel  *int
}

// Table is a relational table descriptor (§3.4): either the base table of a collection
// (SQLName == CollectionName) or a virtual table derived from an embedded document or
// array inside it.
type Table struct {
	SQLName        string
	CollectionName string

	columns  []*Column
	colIndex map[string]int // sql_name -> position in columns

	// arrayLevel is the k used for this table's own synthesized array_index_lvl_k
	// column, when this table was derived from an array (§4.1.1). Meaningless for
	// tables derived from an embedded document or for the base table.
	arrayLevel int

	// namePath is the dotted field path, from the base collection's document root, that
	// this table's OWN virtual tables are named from (C3): a nested field found while
	// walking this table's documents is named collection_<namePath>_<field>. Empty for
	// the base table; an array-of-array table adds no named segment of its own and
	// carries its parent's namePath unchanged.
	namePath string
}

func newTable(sqlName, collectionName string) *Table {
	return &Table{
		SQLName:        sqlName,
		CollectionName: collectionName,
		colIndex:       map[string]int{},
	}
}

// IsBase reports whether t is the base table of its collection.
func (t *Table) IsBase() bool {
	return t.SQLName == t.CollectionName
}

// NamePath returns the dotted field path, from the base collection's document root, that
// this table was derived from — also the document path an Unwind/lookup must target to
// reach this table's rows from the base collection (C3).
func (t *Table) NamePath() string {
	return t.namePath
}

// Columns returns the table's columns in first-appearance order (§3.4, §8.1 P5).
func (t *Table) Columns() []*Column {
	return t.columns
}

// Column returns the column named sqlName, if any.
func (t *Table) Column(sqlName string) (*Column, bool) {
	i, ok := t.colIndex[sqlName]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// PrimaryKey returns the table's PK columns in key order.
func (t *Table) PrimaryKey() []*Column {
	var out []*Column
	for _, c := range t.columns {
		if c.PrimaryKeyIndex > 0 {
			out = append(out, c)
		}
	}
	return out
}

func (t *Table) appendColumn(c *Column) {
	c.IndexInTable = len(t.columns) + 1
	t.colIndex[c.SQLName] = len(t.columns)
	t.columns = append(t.columns, c)
}

// removeColumn deletes the column named sqlName, if present, re-packing the remaining
// columns' positions so IndexInTable and colIndex stay contiguous (§8.1 P5's
// first-appearance ordering applies to whatever survives). A no-op if sqlName is absent.
func (t *Table) removeColumn(sqlName string) {
	i, ok := t.colIndex[sqlName]
	if !ok {
		return
	}
	t.columns = append(t.columns[:i], t.columns[i+1:]...)
	delete(t.colIndex, sqlName)
	for j := i; j < len(t.columns); j++ {
		t.colIndex[t.columns[j].SQLName] = j
		t.columns[j].IndexInTable = j + 1
	}
}

// DatabaseSchema is the top-level, versioned descriptor (§3.5).
type DatabaseSchema struct {
	SchemaName      string
	SQLName         string
	SchemaVersion   int
	ModifiedAt      time.Time
	TableReferences []string // stable table IDs (table sql_name, unique within a schema)
}
