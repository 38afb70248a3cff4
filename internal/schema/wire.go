// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/docbridge/docbridge/internal/dbrerr"
	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/sqltype"
)

// wireColumn is the §6.2 JSON shape of one column. isPrimaryKey and a non-empty
// foreignKeyTableName mark PK/FK membership; the composite key POSITION is
// reconstructed from array order on decode,
// since §6.2 does not carry an explicit ordinal.
type wireColumn struct {
	FieldPath             string        `json:"fieldPath"`
	SQLName               string        `json:"sqlName"`
	SQLType               sqltype.Type  `json:"sqlType"`
	DBType                document.Kind `json:"dbType"`
	IsPrimaryKey          bool          `json:"isPrimaryKey,omitempty"`
	IsIndex               bool          `json:"isIndex,omitempty"`
	ForeignKeyTableName   string        `json:"foreignKeyTableName,omitempty"`
	ForeignKeyColumnName  string        `json:"foreignKeyColumnName,omitempty"`
	ArrayIndexLevel       *int          `json:"arrayIndexLevel,omitempty"`
}

type wireTable struct {
	SQLName        string       `json:"sqlName"`
	CollectionName string       `json:"collectionName"`
	Columns        []wireColumn `json:"columns"`
}

func toWireTable(t *Table) wireTable {
	wt := wireTable{SQLName: t.SQLName, CollectionName: t.CollectionName}
	for _, c := range t.Columns() {
		wt.Columns = append(wt.Columns, wireColumn{
			FieldPath:            c.FieldPath,
			SQLName:              c.SQLName,
			SQLType:              c.SQLType,
			DBType:               c.DBType,
			IsPrimaryKey:         c.PrimaryKeyIndex > 0,
			IsIndex:              c.IsGenerated,
			ForeignKeyTableName:  c.ForeignKeyTable,
			ForeignKeyColumnName: c.ForeignKeyColumn,
			ArrayIndexLevel:      c.ArrayIndexLevel,
		})
	}
	return wt
}

// MarshalJSON encodes t in the §6.2 wire format.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWireTable(t))
}

// ParseTableJSON decodes one table from its §6.2 wire form, rejecting duplicate
// sqlName values within the table with a KindSchemaConflict diagnostic naming both
// offenders.
func ParseTableJSON(data []byte) (*Table, error) {
	var wt wireTable
	if err := json.Unmarshal(data, &wt); err != nil {
		return nil, dbrerr.New(dbrerr.KindSchemaConflict, "decode table JSON", err)
	}
	t := newTable(wt.SQLName, wt.CollectionName)

	seen := map[string]int{} // sqlName -> first index, for the duplicate diagnostic
	pkPos, fkPos := 0, 0
	for i, wc := range wt.Columns {
		if first, ok := seen[wc.SQLName]; ok {
			return nil, dbrerr.New(dbrerr.KindSchemaConflict,
				fmt.Sprintf("duplicate column %q: positions %d and %d in table %q", wc.SQLName, first, i, wt.SQLName), nil)
		}
		seen[wc.SQLName] = i

		c := &Column{
			FieldPath: wc.FieldPath,
			SQLName:   wc.SQLName,
			SQLType:   wc.SQLType,
			DBType:    wc.DBType,
			IsGenerated:      wc.IsIndex,
			ForeignKeyTable:  wc.ForeignKeyTableName,
			ForeignKeyColumn: wc.ForeignKeyColumnName,
			ArrayIndexLevel:  wc.ArrayIndexLevel,
		}
		if wc.IsPrimaryKey {
			pkPos++
			c.PrimaryKeyIndex = pkPos
		}
		if wc.ForeignKeyTableName != "" {
			fkPos++
			c.ForeignKeyIndex = fkPos
		}
		t.appendColumn(c)
	}
	return t, nil
}

// wireSchema is the top-level §3.5 database-schema descriptor, serialized alongside its
// tables.
type wireSchema struct {
	SchemaName      string   `json:"schemaName"`
	SQLName         string   `json:"sqlName"`
	SchemaVersion   int      `json:"schemaVersion"`
	ModifiedAt      string   `json:"modifiedAt"`
	TableReferences []string `json:"tableReferences"`
}

func toWireSchema(s *DatabaseSchema) wireSchema {
	refs := append([]string(nil), s.TableReferences...)
	sort.Strings(refs)
	return wireSchema{
		SchemaName:      s.SchemaName,
		SQLName:         s.SQLName,
		SchemaVersion:   s.SchemaVersion,
		ModifiedAt:      s.ModifiedAt.Format(timeLayout),
		TableReferences: refs,
	}
}

func fromWireSchema(ws wireSchema) (*DatabaseSchema, error) {
	modifiedAt, err := time.Parse(timeLayout, ws.ModifiedAt)
	if err != nil {
		return nil, fmt.Errorf("parse modifiedAt: %w", err)
	}
	return &DatabaseSchema{
		SchemaName:      ws.SchemaName,
		SQLName:         ws.SQLName,
		SchemaVersion:   ws.SchemaVersion,
		ModifiedAt:      modifiedAt,
		TableReferences: ws.TableReferences,
	}, nil
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// wireBundle is the §6.2 export/import envelope: one database schema plus every table
// it references, self-contained enough to round-trip through ParseJSON.
type wireBundle struct {
	Schema wireSchema             `json:"schema"`
	Tables map[string]wireTable   `json:"tables"`
}

// MarshalJSON encodes ds and tables together as the §6.2 export bundle, for the
// management CLI's export command.
func MarshalJSON(ds *DatabaseSchema, tables map[string]*Table) ([]byte, error) {
	wb := wireBundle{Schema: toWireSchema(ds), Tables: make(map[string]wireTable, len(tables))}
	for name, t := range tables {
		wb.Tables[name] = toWireTable(t)
	}
	return json.MarshalIndent(wb, "", "  ")
}

// ParseJSON decodes an export bundle back into a DatabaseSchema and its tables,
// rejecting any table whose columns carry a duplicate sqlName (same diagnostic as
// ParseTableJSON), for the management CLI's import command.
func ParseJSON(data []byte) (*DatabaseSchema, map[string]*Table, error) {
	var wb wireBundle
	if err := json.Unmarshal(data, &wb); err != nil {
		return nil, nil, dbrerr.New(dbrerr.KindSchemaConflict, "decode schema bundle JSON", err)
	}
	ds, err := fromWireSchema(wb.Schema)
	if err != nil {
		return nil, nil, dbrerr.New(dbrerr.KindSchemaConflict, "decode schema bundle", err)
	}

	tables := make(map[string]*Table, len(wb.Tables))
	for name, wt := range wb.Tables {
		raw, err := json.Marshal(wt)
		if err != nil {
			return nil, nil, fmt.Errorf("re-encode table %q: %w", name, err)
		}
		t, err := ParseTableJSON(raw)
		if err != nil {
			return nil, nil, err
		}
		tables[name] = t
	}
	return ds, tables, nil
}
