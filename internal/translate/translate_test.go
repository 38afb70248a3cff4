// SPDX-License-Identifier: Apache-2.0

package translate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/logicalplan"
	"github.com/docbridge/docbridge/internal/pipeline"
	"github.com/docbridge/docbridge/internal/schema"
	"github.com/docbridge/docbridge/internal/sqltype"
	"github.com/docbridge/docbridge/internal/translate"
)

func scalar(t *testing.T, kind document.Kind, goVal any) document.Value {
	t.Helper()
	bt, b, err := bson.MarshalValue(goVal)
	require.NoError(t, err)
	return document.Value{Kind: kind, Raw: bson.RawValue{Type: bt, Value: b}}
}

func str(t *testing.T, s string) document.Value { return scalar(t, document.KindString, s) }
func i32(t *testing.T, n int32) document.Value   { return scalar(t, document.KindInt32, n) }

func doc(fields ...document.Field) document.Value {
	return document.Value{Kind: document.KindDocument, Doc: document.Document(fields)}
}

func arr(vals ...document.Value) document.Value {
	return document.Value{Kind: document.KindArray, Arr: document.Array(vals)}
}

func field(name string, v document.Value) document.Field {
	return document.Field{Name: name, Value: v}
}

func ordersSchema(t *testing.T) map[string]*schema.Table {
	t.Helper()
	docs := []document.Document{
		{
			field("_id", i32(t, 1)),
			field("customer", str(t, "ann")),
			field("items", arr(
				doc(field("sku", str(t, "a")), field("qty", i32(t, 2))),
				doc(field("sku", str(t, "b")), field("qty", i32(t, 1))),
			)),
		},
	}
	tables, err := schema.Generate(context.Background(), "orders", document.NewSliceStream(docs))
	require.NoError(t, err)
	return tables
}

func TestTranslateBaseScanHasNoStages(t *testing.T) {
	sch := ordersSchema(t)
	plan := logicalplan.Scan{Table: sch["orders"]}

	ctx, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.NoError(t, err)
	require.Equal(t, "orders", ctx.CollectionName)
	require.Empty(t, ctx.Stages)
}

func TestTranslateVirtualTableScanUnwindsAndGuards(t *testing.T) {
	sch := ordersSchema(t)
	plan := logicalplan.Scan{Table: sch["orders_items"]}

	ctx, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.NoError(t, err)
	require.Len(t, ctx.Stages, 2)

	unwind, ok := ctx.Stages[0].(pipeline.Unwind)
	require.True(t, ok)
	require.Equal(t, "items", unwind.Path)
	require.True(t, unwind.PreserveNull, "scan unwind must preserve nulls; the guard Match drops padded rows")

	_, ok = ctx.Stages[1].(pipeline.Match)
	require.True(t, ok)
}

func TestTranslateSimpleModeFilter(t *testing.T) {
	sch := ordersSchema(t)
	plan := logicalplan.Filter{
		Input: logicalplan.Scan{Table: sch["orders"]},
		Predicate: logicalplan.Compare{
			Op:    logicalplan.OpEq,
			Left:  logicalplan.ColumnRef{Table: "orders", Column: "customer"},
			Right: logicalplan.Literal{Value: "ann"},
		},
	}

	ctx, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.NoError(t, err)
	require.Len(t, ctx.Stages, 1)
	match, ok := ctx.Stages[0].(pipeline.Match)
	require.True(t, ok)
	cmp, ok := match.Predicate.(pipeline.Compare)
	require.True(t, ok)
	require.Equal(t, pipeline.OpEq, cmp.Op)
}

func TestTranslateExpressionModeFilterUsesAddFieldsFlag(t *testing.T) {
	sch := ordersSchema(t)
	plan := logicalplan.Filter{
		Input: logicalplan.Scan{Table: sch["orders"]},
		Predicate: logicalplan.Logical{
			Op: logicalplan.LogicalNot,
			Operands: []logicalplan.Expr{
				logicalplan.Compare{
					Op:    logicalplan.OpEq,
					Left:  logicalplan.ColumnRef{Table: "orders", Column: "customer"},
					Right: logicalplan.ColumnRef{Table: "orders", Column: "customer"},
				},
			},
		},
	}

	ctx, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.NoError(t, err)
	require.Len(t, ctx.Stages, 3)

	add, ok := ctx.Stages[0].(pipeline.AddFields)
	require.True(t, ok)
	require.Len(t, add.Fields, 1)
	var flagExpr pipeline.Expr
	for _, e := range add.Fields {
		flagExpr = e
	}
	cond, ok := flagExpr.(pipeline.Cond)
	require.True(t, ok, "expression-mode comparison must be guarded by a $cond, got %T", flagExpr)
	_, ok = cond.Else.(pipeline.Literal)
	require.True(t, ok)

	_, ok = ctx.Stages[1].(pipeline.Match)
	require.True(t, ok)

	proj, ok := ctx.Stages[2].(pipeline.Project)
	require.True(t, ok)
	require.Len(t, proj.Entries, 1)
	require.True(t, proj.Entries[0].Exclude, "the generated flag field must be dropped from output")
}

func TestTranslateIsNullUsesNullEquality(t *testing.T) {
	sch := ordersSchema(t)
	plan := logicalplan.Filter{
		Input: logicalplan.Scan{Table: sch["orders"]},
		Predicate: logicalplan.NullTest{
			Operand: logicalplan.ColumnRef{Table: "orders", Column: "customer"},
		},
	}

	ctx, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.NoError(t, err)
	require.Len(t, ctx.Stages, 1)
	match, ok := ctx.Stages[0].(pipeline.Match)
	require.True(t, ok)
	cmp, ok := match.Predicate.(pipeline.Compare)
	require.True(t, ok, "IS NULL must lower to a $eq:null comparison, not $exists")
	require.Equal(t, pipeline.OpEq, cmp.Op)
	lit, ok := cmp.Right.(pipeline.Literal)
	require.True(t, ok)
	require.Nil(t, lit.Value)
}

func TestTranslateNotInGuardsMissingField(t *testing.T) {
	sch := ordersSchema(t)
	plan := logicalplan.Filter{
		Input: logicalplan.Scan{Table: sch["orders"]},
		Predicate: logicalplan.Compare{
			Op:    logicalplan.OpNotIn,
			Left:  logicalplan.ColumnRef{Table: "orders", Column: "customer"},
			Right: logicalplan.Literal{Value: []any{"ann", "bob"}},
		},
	}

	ctx, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.NoError(t, err)
	require.Len(t, ctx.Stages, 1)
	match, ok := ctx.Stages[0].(pipeline.Match)
	require.True(t, ok)
	logical, ok := match.Predicate.(pipeline.Logical)
	require.True(t, ok, "NOT IN must normalize to an $and of per-value $nin checks")
	require.Equal(t, pipeline.LogicalAnd, logical.Op)
	require.Len(t, logical.Operands, 2)
	for _, operand := range logical.Operands {
		cmp, ok := operand.(pipeline.Compare)
		require.True(t, ok)
		require.Equal(t, pipeline.OpNotIn, cmp.Op)
		lit, ok := cmp.Right.(pipeline.Literal)
		require.True(t, ok)
		values, ok := lit.Value.([]any)
		require.True(t, ok)
		require.Nil(t, values[0], "each nin list must be null-prefixed so a missing field isn't matched")
	}
}

func TestTranslateJoinOnNonKeyRejected(t *testing.T) {
	sch := ordersSchema(t)
	plan := logicalplan.Join{
		Left:  logicalplan.Scan{Table: sch["orders"]},
		Right: logicalplan.Scan{Table: sch["orders_items"]},
		Kind:  logicalplan.InnerJoin,
		On: []logicalplan.Equality{{
			Left:  logicalplan.ColumnRef{Table: "orders", Column: "customer"},
			Right: logicalplan.ColumnRef{Table: "orders_items", Column: "sku"},
		}},
	}

	_, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.Error(t, err)
}

func TestTranslateInnerJoinOnParentKey(t *testing.T) {
	sch := ordersSchema(t)
	parent := sch["orders"]
	child := sch["orders_items"]
	parentKey := parent.PrimaryKey()[0].SQLName

	plan := logicalplan.Join{
		Left:  logicalplan.Scan{Table: parent},
		Right: logicalplan.Scan{Table: child},
		Kind:  logicalplan.InnerJoin,
		On: []logicalplan.Equality{{
			Left:  logicalplan.ColumnRef{Table: parent.SQLName, Column: parentKey},
			Right: logicalplan.ColumnRef{Table: child.SQLName, Column: parentKey},
		}},
	}

	ctx, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.NoError(t, err)
	require.Len(t, ctx.Stages, 2)
	unwind, ok := ctx.Stages[0].(pipeline.Unwind)
	require.True(t, ok)
	require.False(t, unwind.PreserveNull)
}

func TestTranslateLeftJoinPreservesChild(t *testing.T) {
	sch := ordersSchema(t)
	parent := sch["orders"]
	child := sch["orders_items"]
	parentKey := parent.PrimaryKey()[0].SQLName

	plan := logicalplan.Join{
		Left:  logicalplan.Scan{Table: parent},
		Right: logicalplan.Scan{Table: child},
		Kind:  logicalplan.LeftJoin,
		On: []logicalplan.Equality{{
			Left:  logicalplan.ColumnRef{Table: parent.SQLName, Column: parentKey},
			Right: logicalplan.ColumnRef{Table: child.SQLName, Column: parentKey},
		}},
	}

	ctx, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.NoError(t, err)
	unwind, ok := ctx.Stages[0].(pipeline.Unwind)
	require.True(t, ok)
	require.True(t, unwind.PreserveNull)
}

func TestTranslateProjectPureRenameAndResultColumns(t *testing.T) {
	sch := ordersSchema(t)
	plan := logicalplan.Project{
		Input: logicalplan.Scan{Table: sch["orders"]},
		Columns: []logicalplan.ProjectColumn{
			{OutputName: "customer_name", Expr: logicalplan.ColumnRef{Table: "orders", Column: "customer"}},
		},
	}

	ctx, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.NoError(t, err)
	require.Len(t, ctx.Stages, 1)
	proj, ok := ctx.Stages[0].(pipeline.Project)
	require.True(t, ok)
	require.False(t, proj.IncludeID)
	require.Len(t, proj.Entries, 1)
	require.Equal(t, "customer", proj.Entries[0].SourcePath)

	require.Len(t, ctx.ResultColumns, 1)
	require.Equal(t, "customer_name", ctx.ResultColumns[0].SQLName)
}

func TestTranslateAggregateCountIsBigint(t *testing.T) {
	sch := ordersSchema(t)
	plan := logicalplan.Aggregate{
		Input:   logicalplan.Scan{Table: sch["orders_items"]},
		GroupBy: []logicalplan.ColumnRef{{Table: "orders_items", Column: "sku"}},
		Aggregates: []logicalplan.AggregateExpr{
			{OutputName: "n", Func: logicalplan.AggCount, Arg: logicalplan.ColumnRef{Table: "orders_items", Column: "sku"}},
		},
	}

	ctx, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.NoError(t, err)
	_, ok := ctx.Stages[len(ctx.Stages)-1].(pipeline.Group)
	require.True(t, ok)

	var countCol *translate.ResultColumn
	for i := range ctx.ResultColumns {
		if ctx.ResultColumns[i].SQLName == "n" {
			countCol = &ctx.ResultColumns[i]
		}
	}
	require.NotNil(t, countCol)
	require.Equal(t, sqltype.BIGINT, countCol.SQLType)
}

func TestTranslateLimitAndSort(t *testing.T) {
	sch := ordersSchema(t)
	plan := logicalplan.Limit{
		Input: logicalplan.Sort{
			Input: logicalplan.Scan{Table: sch["orders"]},
			Keys:  []logicalplan.SortKey{{Column: logicalplan.ColumnRef{Table: "orders", Column: "customer"}, Descending: true}},
		},
		N: 10,
	}

	ctx, err := translate.Translate(plan, sch, translate.Capabilities{})
	require.NoError(t, err)
	require.Len(t, ctx.Stages, 2)
	_, ok := ctx.Stages[0].(pipeline.Sort)
	require.True(t, ok)
	lim, ok := ctx.Stages[1].(pipeline.Limit)
	require.True(t, ok)
	require.Equal(t, int64(10), lim.N)
}
