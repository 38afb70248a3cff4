// SPDX-License-Identifier: Apache-2.0

// Package sqltype implements the closed SQL type set (§3.2), the scalar-scalar
// promotion lattice (§4.1.3, C2), and document-path-to-SQL-identifier mangling (C3).
package sqltype

// Type is the closed set of SQL types a schema column can carry. ARRAY and DOCUMENT are
// internal markers only: a column never ends up with either as its final sql_type —
// their presence during inference instead triggers virtual-table creation.
type Type string

const (
	BIGINT    Type = "bigint"
	BOOLEAN   Type = "boolean"
	DECIMAL   Type = "decimal"
	DOUBLE    Type = "double"
	INTEGER   Type = "integer"
	NULLTYPE  Type = "null"
	TIMESTAMP Type = "timestamp"
	VARBINARY Type = "varbinary"
	VARCHAR   Type = "varchar"
	ARRAY     Type = "array"
	DOCUMENT  Type = "document"
)

// IsMarker reports whether t is one of the two internal-only markers.
func (t Type) IsMarker() bool {
	return t == ARRAY || t == DOCUMENT
}

var numeric = map[Type]bool{
	INTEGER: true, BIGINT: true, DOUBLE: true, DECIMAL: true,
}

// IsNumeric reports whether t is one of the four numeric concrete types.
func (t Type) IsNumeric() bool {
	return numeric[t]
}

// integer-ness rank used only to decide widening direction among integer types.
var integerRank = map[Type]int{
	INTEGER: 1,
	BIGINT:  2,
}

var floatingRank = map[Type]int{
	INTEGER: 1,
	DOUBLE:  2,
}
