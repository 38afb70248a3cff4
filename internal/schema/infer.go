// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"context"
	"fmt"

	"github.com/docbridge/docbridge/internal/dbrerr"
	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/sqltype"
)

const idField = "_id"

var idSQLName = sqltype.SQLIdentifier(idField)

// fieldKey identifies one field path on one table, for conflict tracking across the
// whole document stream (§4.1.2).
type fieldKey struct {
	table string
	path  string
}

// engine holds the mutable state of one Generate call.
type engine struct {
	collection string
	tables     map[string]*Table   // sql_name -> table
	children   map[string][]string // parent sql_name -> child sql_names, for cascade delete

	// fieldVirtual tracks which virtual table currently represents a field's complex
	// shape, so a later conflicting scalar observation can discard exactly that table.
	fieldVirtual map[fieldKey]string
	// sawNonNullScalar tracks whether a field has ever been observed as a non-null
	// scalar, the trigger side of the scalar-complex conflict (§4.1.2).
	sawNonNullScalar map[fieldKey]bool
	// conflicted marks a field permanently collapsed to VARCHAR.
	conflicted map[fieldKey]bool
}

// Generate consumes the entire document stream for one collection and returns the
// complete set of tables describing it (§4.1). It is deterministic given the same
// document order; it fails only on a stream I/O error (§4.1.6), discarding the partial
// result.
func Generate(ctx context.Context, collectionName string, stream document.Stream) (map[string]*Table, error) {
	e := &engine{
		collection:       collectionName,
		tables:           map[string]*Table{},
		children:         map[string][]string{},
		fieldVirtual:     map[fieldKey]string{},
		sawNonNullScalar: map[fieldKey]bool{},
		conflicted:       map[fieldKey]bool{},
	}
	base := newTable(collectionName, collectionName)
	e.tables[collectionName] = base

	for {
		doc, ok, err := stream.Next(ctx)
		if err != nil {
			return nil, dbrerr.New(dbrerr.KindIO, fmt.Sprintf("reading documents for collection %q", collectionName), err)
		}
		if !ok {
			break
		}
		e.walkDocument(base, "", doc, true)
	}

	e.propagateIDType()

	return e.tables, nil
}

// walkDocument processes one document's (or sub-document's) fields against the current
// table (§4.1.1). atRoot indicates current is the base table and doc is a top-level
// document, which makes "_id" special (§4.1.5). fieldPathPrefix is current's own
// field_path prefix (resets to "" at every virtual table boundary, since each virtual
// table's columns are named relative to it); current.namePath independently carries the
// full path used for naming any further-nested virtual tables (C3) and does not reset.
func (e *engine) walkDocument(current *Table, fieldPathPrefix string, doc document.Document, atRoot bool) {
	for _, f := range doc {
		fieldPath := sqltype.JoinPath(fieldPathPrefix, f.Name)
		if atRoot && f.Name == idField {
			e.upsertIDColumn(current, f.Value)
			continue
		}
		e.walkField(current, fieldPath, f.Name, f.Value)
	}
}

func (e *engine) walkField(current *Table, fieldPath, fieldName string, v document.Value) {
	key := fieldKey{table: current.SQLName, path: fieldPath}

	if e.conflicted[key] {
		e.upsertScalarColumn(current, fieldPath, fieldName, sqltype.VARCHAR, v.Kind, false)
		return
	}

	switch v.Kind {
	case document.KindDocument:
		if e.sawNonNullScalar[key] {
			e.collapseToVarchar(current, key, fieldPath, fieldName)
			return
		}
		// A prior NULL observation of this field may have left a placeholder scalar
		// column on current; a document/array observation owns the field exclusively
		// from here on (§4.1.2), so that placeholder must not survive alongside vt.
		current.removeColumn(sqltype.SQLIdentifier(fieldName))
		vt := e.ensureVirtualTable(current, fieldName, false, 0)
		e.fieldVirtual[key] = vt.SQLName
		e.walkDocument(vt, "", v.Doc, false)

	case document.KindArray:
		if e.sawNonNullScalar[key] {
			e.collapseToVarchar(current, key, fieldPath, fieldName)
			return
		}
		current.removeColumn(sqltype.SQLIdentifier(fieldName))
		vt := e.ensureVirtualTable(current, fieldName, true, 0)
		e.fieldVirtual[key] = vt.SQLName
		e.walkArray(vt, v.Arr)

	default:
		if vt, ok := e.fieldVirtual[key]; ok {
			if v.Kind != document.KindNull {
				e.discardVirtualTable(current, key, vt, fieldPath, fieldName)
			}
			// KindNull: does not conflict (§4.1.2); field stays virtual-table-only.
			return
		}
		e.upsertScalarColumn(current, fieldPath, fieldName, sqlTypeForKind(v.Kind), v.Kind, false)
		if v.Kind != document.KindNull {
			e.sawNonNullScalar[key] = true
		}
	}
}

// walkArray processes the elements of an array against its virtual table (§4.1.1).
// Each element is a scalar (-> generated "value" column), a document (-> recurse into
// vt), or a nested array (-> another virtual table at arrayLevel+1).
func (e *engine) walkArray(vt *Table, arr document.Array) {
	if len(arr) == 0 {
		e.ensureValueColumnPresent(vt)
		return
	}
	for _, elem := range arr {
		switch elem.Kind {
		case document.KindDocument:
			e.walkDocument(vt, "", elem.Doc, false)
		case document.KindArray:
			nested := e.ensureVirtualTable(vt, "", true, vt.arrayLevel+1)
			e.walkArray(nested, elem.Arr)
		default:
			e.upsertScalarColumn(vt, "value", "value", sqlTypeForKind(elem.Kind), elem.Kind, true)
		}
	}
}

func (e *engine) ensureValueColumnPresent(vt *Table) {
	if _, ok := vt.Column("value"); ok {
		return
	}
	e.upsertScalarColumn(vt, "value", "value", sqltype.NULLTYPE, document.KindNull, true)
}

// ensureVirtualTable returns the existing virtual table owned by (parent, field) or
// creates it, wiring its PK/FK prefix from parent's PK (§4.1.1, §3.6) and, for arrays,
// synthesizing the array_index_lvl_{level} PK column. A nested array re-entering the
// SAME already-created table (two elements of the same outer array that are both
// arrays) reuses it; field=="" is used for that nested-array-of-arrays case, where the
// table is identified purely by (parent, level) instead of a field name, and adds no new
// named segment to the naming path.
func (e *engine) ensureVirtualTable(parent *Table, field string, isArray bool, level int) *Table {
	var name, childNamePath string
	if field == "" {
		name = sqltype.TableIdentifier(e.collection, parent.namePath, fmt.Sprintf("lvl%d", level))
		childNamePath = parent.namePath
	} else {
		name = sqltype.TableIdentifier(e.collection, parent.namePath, field)
		childNamePath = sqltype.JoinPath(parent.namePath, field)
	}
	if existing, ok := e.tables[name]; ok {
		return existing
	}

	vt := newTable(name, e.collection)
	vt.arrayLevel = level
	vt.namePath = childNamePath
	e.tables[name] = vt
	e.children[parent.SQLName] = append(e.children[parent.SQLName], name)

	pos := 0
	for _, pc := range parent.PrimaryKey() {
		pos++
		vt.appendColumn(&Column{
			FieldPath:        pc.FieldPath,
			SQLName:          pc.SQLName,
			SQLType:          pc.SQLType,
			DBType:           pc.DBType,
			PrimaryKeyIndex:  pos,
			ForeignKeyIndex:  pos,
			ForeignKeyTable:  parent.SQLName,
			ForeignKeyColumn: pc.SQLName,
			IsGenerated:      pc.IsGenerated,
		})
	}

	if isArray {
		idxName := sqltype.IndexColumnName(level)
		pos++
		lvl := level
		vt.appendColumn(&Column{
			FieldPath:       idxName,
			SQLName:         idxName,
			SQLType:         sqltype.BIGINT,
			DBType:          document.KindInt64,
			PrimaryKeyIndex: pos,
			IsGenerated:     true,
			ArrayIndexLevel: &lvl,
		})
	}

	return vt
}

// propagateIDType is the §3.6/§4.1.5 finishing pass: once the whole stream has been
// scanned, the base table's _id column has its final, fully-widened SQLType and DBType.
// Every virtual table's inherited PK/FK column referencing _id is updated to match in
// one pass, before the schema is handed back to the caller.
func (e *engine) propagateIDType() {
	base, ok := e.tables[e.collection]
	if !ok {
		return
	}
	idCol, ok := base.Column(idSQLName)
	if !ok {
		return
	}
	for sqlName, t := range e.tables {
		if sqlName == e.collection {
			continue
		}
		if c, ok := t.Column(idSQLName); ok && c.ForeignKeyColumn == idSQLName {
			c.SQLType = idCol.SQLType
			c.DBType = idCol.DBType
		}
	}
}
