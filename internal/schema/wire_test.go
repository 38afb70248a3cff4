// SPDX-License-Identifier: Apache-2.0

package schema_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/schema"
)

func TestMarshalParseJSONRoundTrip(t *testing.T) {
	docs := []document.Document{field0(t)}
	tables := gen(t, "orders", docs...)

	ds := &schema.DatabaseSchema{
		SchemaName:      "shop",
		SQLName:         "shop",
		SchemaVersion:   1,
		ModifiedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TableReferences: tableNames(tables),
	}

	data, err := schema.MarshalJSON(ds, tables)
	require.NoError(t, err)

	gotSchema, gotTables, err := schema.ParseJSON(data)
	require.NoError(t, err)
	require.Equal(t, ds.SchemaName, gotSchema.SchemaName)
	require.Equal(t, ds.SchemaVersion, gotSchema.SchemaVersion)
	require.True(t, ds.ModifiedAt.Equal(gotSchema.ModifiedAt))
	require.ElementsMatch(t, ds.TableReferences, gotSchema.TableReferences)
	require.Len(t, gotTables, len(tables))
	for name, want := range tables {
		got, ok := gotTables[name]
		require.True(t, ok, "missing table %q after round trip", name)
		require.Equal(t, want.SQLName, got.SQLName)
		require.Equal(t, want.CollectionName, got.CollectionName)
		require.Equal(t, len(want.Columns()), len(got.Columns()))
	}
}

func TestParseJSONRejectsDuplicateColumnNames(t *testing.T) {
	bundle := `{
		"schema": {"schemaName":"shop","sqlName":"shop","schemaVersion":1,
			"modifiedAt":"2026-01-01T00:00:00Z","tableReferences":["orders"]},
		"tables": {"orders": {"sqlName":"orders","collectionName":"orders","columns":[
			{"fieldPath":"_id","sqlName":"id","sqlType":"BIGINT","dbType":"int64"},
			{"fieldPath":"other","sqlName":"id","sqlType":"TEXT","dbType":"string"}
		]}}
	}`
	_, _, err := schema.ParseJSON([]byte(bundle))
	require.Error(t, err)
}

func field0(t *testing.T) document.Document {
	t.Helper()
	return document.Document{
		field("_id", i32(t, 1)),
		field("name", str(t, "widget")),
	}
}

func tableNames(tables map[string]*schema.Table) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	return names
}
