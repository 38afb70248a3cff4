// SPDX-License-Identifier: Apache-2.0

package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/schema"
	"github.com/docbridge/docbridge/internal/sqltype"
)

func scalar(t *testing.T, kind document.Kind, goVal any) document.Value {
	t.Helper()
	bt, b, err := bson.MarshalValue(goVal)
	require.NoError(t, err)
	return document.Value{Kind: kind, Raw: bson.RawValue{Type: bt, Value: b}}
}

func str(t *testing.T, s string) document.Value  { return scalar(t, document.KindString, s) }
func i32(t *testing.T, n int32) document.Value    { return scalar(t, document.KindInt32, n) }
func i64(t *testing.T, n int64) document.Value    { return scalar(t, document.KindInt64, n) }
func boolean(t *testing.T, b bool) document.Value { return scalar(t, document.KindBoolean, b) }
func null() document.Value                        { return document.Value{Kind: document.KindNull} }

func doc(fields ...document.Field) document.Value {
	return document.Value{Kind: document.KindDocument, Doc: document.Document(fields)}
}

func arr(vals ...document.Value) document.Value {
	return document.Value{Kind: document.KindArray, Arr: document.Array(vals)}
}

func field(name string, v document.Value) document.Field {
	return document.Field{Name: name, Value: v}
}

func gen(t *testing.T, collection string, docs ...document.Document) map[string]*schema.Table {
	t.Helper()
	tables, err := schema.Generate(context.Background(), collection, document.NewSliceStream(docs))
	require.NoError(t, err)
	return tables
}

// Two-level document: a top-level scalar plus a nested embedded document field, per the
// worked example in §8.2.
func TestGenerateTwoLevelDocument(t *testing.T) {
	docs := []document.Document{
		{
			field("_id", i32(t, 1)),
			field("name", str(t, "widget")),
			field("address", doc(
				field("city", str(t, "Seattle")),
				field("zip", str(t, "98101")),
			)),
		},
	}
	tables := gen(t, "orders", docs[0])

	base, ok := tables["orders"]
	require.True(t, ok)
	nameCol, ok := base.Column("name")
	require.True(t, ok)
	require.Equal(t, sqltype.VARCHAR, nameCol.SQLType)

	vt, ok := tables["orders_address"]
	require.True(t, ok)
	require.False(t, vt.IsBase())

	cityCol, ok := vt.Column("city")
	require.True(t, ok)
	require.Equal(t, sqltype.VARCHAR, cityCol.SQLType)

	idCol, ok := vt.Column("__id")
	require.True(t, ok)
	require.Equal(t, 1, idCol.PrimaryKeyIndex)
	require.Equal(t, 1, idCol.ForeignKeyIndex)
	require.Equal(t, "orders", idCol.ForeignKeyTable)
}

// Scalar-then-complex conflict (§4.1.2): first document sees a scalar "tags", second
// sees an object; the field must collapse to VARCHAR and no virtual table should
// survive, regardless of which shape was observed first.
func TestGenerateScalarThenComplexConflict(t *testing.T) {
	d1 := document.Document{
		field("_id", i32(t, 1)),
		field("tags", str(t, "blue")),
	}
	d2 := document.Document{
		field("_id", i32(t, 2)),
		field("tags", doc(field("color", str(t, "red")))),
	}
	tables := gen(t, "items", d1, d2)

	base := tables["items"]
	col, ok := base.Column("tags")
	require.True(t, ok)
	require.Equal(t, sqltype.VARCHAR, col.SQLType)

	_, ok = tables["items_tags"]
	require.False(t, ok, "virtual table for a collapsed field must not survive")
}

// Complex-then-scalar conflict (§4.1.2), the opposite order: must converge to the same
// VARCHAR-and-no-virtual-table result.
func TestGenerateComplexThenScalarConflict(t *testing.T) {
	d1 := document.Document{
		field("_id", i32(t, 1)),
		field("tags", doc(field("color", str(t, "red")))),
	}
	d2 := document.Document{
		field("_id", i32(t, 2)),
		field("tags", str(t, "blue")),
	}
	tables := gen(t, "items", d1, d2)

	base := tables["items"]
	col, ok := base.Column("tags")
	require.True(t, ok)
	require.Equal(t, sqltype.VARCHAR, col.SQLType)

	_, ok = tables["items_tags"]
	require.False(t, ok)
}

// PK widening (§3.6): when _id is observed first as int32 and later as int64, every
// virtual table's inherited _id-derived PK/FK column must end up widened too, with no
// caller-visible second pass.
func TestGeneratePropagatesWidenedIDType(t *testing.T) {
	d1 := document.Document{
		field("_id", i32(t, 1)),
		field("address", doc(field("city", str(t, "Seattle")))),
	}
	d2 := document.Document{
		field("_id", i64(t, 1<<40)),
		field("address", doc(field("city", str(t, "Boston")))),
	}
	tables := gen(t, "orders", d1, d2)

	base := tables["orders"]
	baseID, ok := base.Column("__id")
	require.True(t, ok)
	require.Equal(t, sqltype.BIGINT, baseID.SQLType)

	vt := tables["orders_address"]
	vtID, ok := vt.Column("__id")
	require.True(t, ok)
	require.Equal(t, sqltype.BIGINT, vtID.SQLType)
}

// Arrays of scalars synthesize a PK index column and a "value" column (§4.1.1).
func TestGenerateArrayOfScalars(t *testing.T) {
	d := document.Document{
		field("_id", i32(t, 1)),
		field("tags", arr(str(t, "a"), str(t, "b"))),
	}
	tables := gen(t, "items", d)

	vt, ok := tables["items_tags"]
	require.True(t, ok)
	_, ok = vt.Column("array_index_lvl_0")
	require.True(t, ok)
	valCol, ok := vt.Column("value")
	require.True(t, ok)
	require.Equal(t, sqltype.VARCHAR, valCol.SQLType)
}

// A document-typed _id (§4.1.5) forces VARCHAR and never produces a virtual table.
func TestGenerateDocumentIDForcesVarchar(t *testing.T) {
	d := document.Document{
		field("_id", doc(field("a", i32(t, 1)))),
	}
	tables := gen(t, "items", d)

	base := tables["items"]
	idCol, ok := base.Column("__id")
	require.True(t, ok)
	require.Equal(t, sqltype.VARCHAR, idCol.SQLType)
	_, ok = tables["items___id"]
	require.False(t, ok)
}

// Nested embedded documents name their virtual tables from the full dotted path, not
// just the immediate field (C3).
func TestGenerateNestedVirtualTableNaming(t *testing.T) {
	d := document.Document{
		field("_id", i32(t, 1)),
		field("address", doc(
			field("geo", doc(field("lat", i32(t, 1)))),
		)),
	}
	tables := gen(t, "orders", d)

	_, ok := tables["orders_address"]
	require.True(t, ok)
	_, ok = tables["orders_address_geo"]
	require.True(t, ok, "nested virtual table must be named from the full dotted path")
}

// A field that is always null and never anything else stays untyped as NULL (§4.1.3).
func TestGenerateAllNullField(t *testing.T) {
	d1 := document.Document{field("_id", i32(t, 1)), field("note", null())}
	d2 := document.Document{field("_id", i32(t, 2)), field("note", null())}
	tables := gen(t, "items", d1, d2)

	col, ok := tables["items"].Column("note")
	require.True(t, ok)
	require.Equal(t, sqltype.NULLTYPE, col.SQLType)
}

// Observing NULL first and an array second yields only the virtual table (§4.1.2): the
// placeholder NULL scalar column the first document produced must not survive alongside
// it.
func TestGenerateNullThenArrayYieldsOnlyVirtualTable(t *testing.T) {
	d1 := document.Document{field("_id", i32(t, 1)), field("items", null())}
	d2 := document.Document{field("_id", i32(t, 2)), field("items", arr(str(t, "a")))}
	tables := gen(t, "orders", d1, d2)

	_, ok := tables["orders"].Column("items")
	require.False(t, ok, "NULL-then-array must not leave a phantom scalar column")

	_, ok = tables["orders_items"]
	require.True(t, ok)
}

// Booleans and numerics widen together (§4.1.3 P3/P4), never collapsing to VARCHAR.
func TestGenerateBooleanNumericWidening(t *testing.T) {
	d1 := document.Document{field("_id", i32(t, 1)), field("flag", boolean(t, true))}
	d2 := document.Document{field("_id", i32(t, 2)), field("flag", i64(t, 5))}
	tables := gen(t, "items", d1, d2)

	col, ok := tables["items"].Column("flag")
	require.True(t, ok)
	require.Equal(t, sqltype.BIGINT, col.SQLType)
}
