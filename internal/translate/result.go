// SPDX-License-Identifier: Apache-2.0

package translate

import (
	"github.com/docbridge/docbridge/internal/dbrerr"
	"github.com/docbridge/docbridge/internal/logicalplan"
	"github.com/docbridge/docbridge/internal/schema"
	"github.com/docbridge/docbridge/internal/sqltype"
)

// resultColumns derives the ordered (sql_name, sql_type, nullable, table_name) tuples a
// translated pipeline produces (§4.2.8), by walking the plan to whichever node fixes the
// output shape: a Project's columns, an Aggregate's group keys and aggregates, or — for a
// plan with no explicit projection — every column of the scanned table.
func resultColumns(node logicalplan.Node, sch map[string]*schema.Table) ([]ResultColumn, error) {
	switch n := node.(type) {
	case logicalplan.Project:
		out := make([]ResultColumn, 0, len(n.Columns))
		for _, col := range n.Columns {
			out = append(out, resultColumnFor(col.OutputName, col.Expr, sch))
		}
		return out, nil

	case logicalplan.Aggregate:
		out := make([]ResultColumn, 0, len(n.GroupBy)+len(n.Aggregates))
		for _, ref := range n.GroupBy {
			out = append(out, resultColumnFor(ref.Column, ref, sch))
		}
		for _, a := range n.Aggregates {
			out = append(out, ResultColumn{
				SQLName:  a.OutputName,
				SQLType:  aggregateResultType(a.Func, a.Arg, sch),
				Nullable: a.Func == logicalplan.AggMin || a.Func == logicalplan.AggMax || a.Func == logicalplan.AggAvg,
			})
		}
		return out, nil

	case logicalplan.Scan:
		if n.Table == nil {
			return nil, dbrerr.New(dbrerr.KindUnknownTable, "scan references a nil table", nil)
		}
		out := make([]ResultColumn, 0, len(n.Table.Columns()))
		for _, c := range n.Table.Columns() {
			out = append(out, ResultColumn{
				SQLName:   c.SQLName,
				SQLType:   c.SQLType,
				Nullable:  c.PrimaryKeyIndex == 0,
				TableName: n.Table.SQLName,
			})
		}
		return out, nil

	case logicalplan.Filter:
		return resultColumns(n.Input, sch)
	case logicalplan.Join:
		left, err := resultColumns(n.Left, sch)
		if err != nil {
			return nil, err
		}
		right, err := resultColumns(n.Right, sch)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	case logicalplan.Sort:
		return resultColumns(n.Input, sch)
	case logicalplan.Limit:
		return resultColumns(n.Input, sch)

	default:
		return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, "cannot derive result columns for this plan shape", nil)
	}
}

func resultColumnFor(outputName string, expr logicalplan.Expr, sch map[string]*schema.Table) ResultColumn {
	ref, ok := expr.(logicalplan.ColumnRef)
	if !ok {
		return ResultColumn{SQLName: outputName, SQLType: sqltype.VARCHAR, Nullable: true}
	}
	t, ok := sch[ref.Table]
	if !ok {
		return ResultColumn{SQLName: outputName, SQLType: sqltype.VARCHAR, Nullable: true, TableName: ref.Table}
	}
	c, ok := t.Column(ref.Column)
	if !ok {
		return ResultColumn{SQLName: outputName, SQLType: sqltype.VARCHAR, Nullable: true, TableName: ref.Table}
	}
	return ResultColumn{
		SQLName:   outputName,
		SQLType:   c.SQLType,
		Nullable:  c.PrimaryKeyIndex == 0,
		TableName: ref.Table,
	}
}

func aggregateResultType(fn logicalplan.AggregateFunc, arg logicalplan.ColumnRef, sch map[string]*schema.Table) sqltype.Type {
	if fn == logicalplan.AggCount {
		return sqltype.BIGINT
	}
	t, ok := sch[arg.Table]
	if !ok {
		return sqltype.DOUBLE
	}
	c, ok := t.Column(arg.Column)
	if !ok {
		return sqltype.DOUBLE
	}
	return c.SQLType
}
