// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/sqltype"
)

// upsertIDColumn handles the root "_id" field (§4.1.5): a document-typed _id has no
// virtual-table representation of its own and instead forces the column to VARCHAR
// (rendered as extended JSON text, §4.1.5); every other kind promotes normally. The
// column is always the table's sole primary key.
func (e *engine) upsertIDColumn(current *Table, v document.Value) {
	sqlType := sqltype.VARCHAR
	if v.Kind != document.KindDocument {
		sqlType = sqlTypeForKind(v.Kind)
	}

	c, ok := current.Column(idSQLName)
	if !ok {
		current.appendColumn(&Column{
			FieldPath:       idField,
			SQLName:         idSQLName,
			SQLType:         sqlType,
			DBType:          v.Kind,
			PrimaryKeyIndex: 1,
		})
		return
	}
	c.SQLType = sqltype.Promote(c.SQLType, sqlType)
	c.DBType = v.Kind
}

// upsertScalarColumn inserts fieldPath as a new column in first-appearance order, or
// promotes its sql_type in place if already present (§8.1 P5, §4.1.3).
func (e *engine) upsertScalarColumn(table *Table, fieldPath, fieldName string, sqlType sqltype.Type, dbKind document.Kind, isGenerated bool) {
	sqlName := sqltype.SQLIdentifier(fieldName)
	c, ok := table.Column(sqlName)
	if !ok {
		table.appendColumn(&Column{
			FieldPath:   fieldPath,
			SQLName:     sqlName,
			SQLType:     sqlType,
			DBType:      dbKind,
			IsGenerated: isGenerated,
		})
		return
	}
	c.SQLType = sqltype.Promote(c.SQLType, sqlType)
	c.DBType = dbKind
}

// collapseToVarchar handles the scalar-then-complex half of the conflict rule (§4.1.2):
// fieldPath was already a scalar column and is now observed as a document or array.
// Rather than create a virtual table, the column is forced to VARCHAR and the field is
// marked conflicted so every later observation — whatever its shape — renders as VARCHAR
// too, without ever producing a virtual table for it.
func (e *engine) collapseToVarchar(current *Table, key fieldKey, fieldPath, fieldName string) {
	e.conflicted[key] = true
	sqlName := sqltype.SQLIdentifier(fieldName)
	if c, ok := current.Column(sqlName); ok {
		c.SQLType = sqltype.VARCHAR
		return
	}
	current.appendColumn(&Column{
		FieldPath: fieldPath,
		SQLName:   sqlName,
		SQLType:   sqltype.VARCHAR,
	})
}

// discardVirtualTable handles the complex-then-scalar half of the conflict rule
// (§4.1.2): fieldPath already owns a virtual table and is now observed as a (non-null)
// scalar. The virtual table and every descendant virtual table it spawned are dropped,
// and the field collapses to a VARCHAR column on current, exactly as collapseToVarchar
// would have done had the scalar observation come first — the rule is order-independent.
func (e *engine) discardVirtualTable(current *Table, key fieldKey, vtName, fieldPath, fieldName string) {
	e.dropTableCascade(vtName)
	delete(e.fieldVirtual, key)
	e.collapseToVarchar(current, key, fieldPath, fieldName)
}

func (e *engine) dropTableCascade(name string) {
	for _, child := range e.children[name] {
		e.dropTableCascade(child)
	}
	delete(e.tables, name)
	delete(e.children, name)
}
