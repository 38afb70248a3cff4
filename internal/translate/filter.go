// SPDX-License-Identifier: Apache-2.0

package translate

import (
	"github.com/docbridge/docbridge/internal/dbrerr"
	"github.com/docbridge/docbridge/internal/logicalplan"
	"github.com/docbridge/docbridge/internal/pipeline"
	"github.com/docbridge/docbridge/internal/schema"
)

// lowerFilter implements §4.2.3: a predicate expressible entirely as field-vs-literal
// comparisons composed with AND/OR lowers straight to a Match in "simple mode". Anything
// else (field-vs-field comparisons, arithmetic, NOT) lowers in "expression mode": the
// predicate's boolean value is computed into a generated flag field via AddFields, the
// Match stage tests that flag, and a trailing Project drops it again, per the Open
// Question decision to use a collision-free generated name (§9).
func lowerFilter(n logicalplan.Filter, sch map[string]*schema.Table, caps Capabilities) (*plan, error) {
	p, err := lower(n.Input, sch, caps)
	if err != nil {
		return nil, err
	}

	if simple, ok := lowerSimple(n.Predicate); ok {
		p.stages = append(p.stages, pipeline.Match{Predicate: simple})
		return p, nil
	}

	expr, err := lowerExpr(n.Predicate, false)
	if err != nil {
		return nil, err
	}
	p.stages = append(p.stages, expressionModeStages(expr)...)
	return p, nil
}

// expressionModeStages builds the three-stage expression-mode triple (§4.2.3): AddFields
// materializes predicate into a generated flag field, Match tests it, and Project drops
// the flag again so it never leaks into result documents. Used by both WHERE (lowerFilter)
// and HAVING (lowerAggregate).
func expressionModeStages(predicate pipeline.Expr) []pipeline.Stage {
	flag := newFlagName()
	return []pipeline.Stage{
		pipeline.AddFields{Fields: map[string]pipeline.Expr{flag: predicate}},
		pipeline.Match{Predicate: pipeline.Compare{
			Op:    pipeline.OpEq,
			Left:  pipeline.FieldRef{Path: flag},
			Right: pipeline.Literal{Value: true},
		}},
		pipeline.Project{IncludeID: true, Entries: []pipeline.ProjectEntry{{OutputName: flag, Exclude: true}}},
	}
}

// lowerSimple attempts the simple-mode lowering of e (§4.2.3): every leaf comparison
// must be field-vs-literal, combined only with AND/OR. It reports ok=false the moment it
// finds a construct simple mode can't express, so the caller falls back to expression
// mode rather than erroring.
func lowerSimple(e logicalplan.Expr) (pipeline.Expr, bool) {
	switch x := e.(type) {
	case logicalplan.Compare:
		field, isField := x.Left.(logicalplan.ColumnRef)
		lit, isLit := x.Right.(logicalplan.Literal)
		if !isField || !isLit {
			field, isField = x.Right.(logicalplan.ColumnRef)
			lit, isLit = x.Left.(logicalplan.Literal)
			if !isField || !isLit {
				return nil, false
			}
		}
		if x.Op == logicalplan.OpNotIn {
			return lowerSimpleNotIn(field.Column, lit.Value)
		}
		op, ok := simpleCompareOp(x.Op)
		if !ok {
			return nil, false
		}
		return pipeline.Compare{
			Op:    op,
			Left:  pipeline.FieldRef{Path: field.Column},
			Right: pipeline.Literal{Value: lit.Value},
		}, true

	case logicalplan.NullTest:
		ref, ok := x.Operand.(logicalplan.ColumnRef)
		if !ok {
			return nil, false
		}
		return nullTestCompare(ref.Column, x.Negate), true

	case logicalplan.Logical:
		if x.Op == logicalplan.LogicalNot {
			return nil, false
		}
		operands := make([]pipeline.Expr, 0, len(x.Operands))
		for _, sub := range x.Operands {
			lowered, ok := lowerSimple(sub)
			if !ok {
				return nil, false
			}
			operands = append(operands, lowered)
		}
		return pipeline.Logical{Op: simpleLogicalOp(x.Op), Operands: operands}, true

	default:
		return nil, false
	}
}

// nullTestCompare lowers IS [NOT] NULL to the native null-equality form (§4.2.3): IS NULL
// becomes field $eq null, IS NOT NULL becomes field $ne null. $exists doesn't distinguish
// a missing field from one explicitly set to null, which the native form does.
func nullTestCompare(column string, negate bool) pipeline.Expr {
	op := pipeline.OpEq
	if negate {
		op = pipeline.OpNe
	}
	return pipeline.Compare{Op: op, Left: pipeline.FieldRef{Path: column}, Right: pipeline.Literal{Value: nil}}
}

// lowerSimpleNotIn implements the §4.2.3 NOT IN normalization: NOT IN (a, b) becomes an
// $and of per-value field $nin: [null, v] checks, so a missing field isn't accidentally
// matched by a bare $nin.
func lowerSimpleNotIn(column string, value any) (pipeline.Expr, bool) {
	values, ok := value.([]any)
	if !ok {
		return nil, false
	}
	operands := make([]pipeline.Expr, 0, len(values))
	for _, v := range values {
		operands = append(operands, pipeline.Compare{
			Op:    pipeline.OpNotIn,
			Left:  pipeline.FieldRef{Path: column},
			Right: pipeline.Literal{Value: []any{nil, v}},
		})
	}
	return pipeline.Logical{Op: pipeline.LogicalAnd, Operands: operands}, true
}

func simpleCompareOp(op logicalplan.CompareOp) (pipeline.CompareOp, bool) {
	switch op {
	case logicalplan.OpEq:
		return pipeline.OpEq, true
	case logicalplan.OpNe:
		return pipeline.OpNe, true
	case logicalplan.OpGt:
		return pipeline.OpGt, true
	case logicalplan.OpGte:
		return pipeline.OpGte, true
	case logicalplan.OpLt:
		return pipeline.OpLt, true
	case logicalplan.OpLte:
		return pipeline.OpLte, true
	case logicalplan.OpIn:
		return pipeline.OpIn, true
	case logicalplan.OpNotIn:
		return pipeline.OpNotIn, true
	default:
		return "", false
	}
}

func simpleLogicalOp(op logicalplan.LogicalOp) pipeline.LogicalOp {
	if op == logicalplan.LogicalOr {
		return pipeline.LogicalOr
	}
	return pipeline.LogicalAnd
}

// lowerExpr lowers e into expression mode (§4.2.3), usable inside AddFields/Project.
// negate, when true, pushes a NOT one level further down via De Morgan's laws (§4.2.4)
// instead of emitting a $not node, so Logical/Compare nodes reaching the wire never need
// their own negation operator.
func lowerExpr(e logicalplan.Expr, negate bool) (pipeline.Expr, error) {
	switch x := e.(type) {
	case logicalplan.ColumnRef:
		return pipeline.FieldRef{Path: x.Column}, nil

	case logicalplan.Literal:
		if negate {
			return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, "cannot negate a literal expression", nil)
		}
		return pipeline.Literal{Value: x.Value}, nil

	case logicalplan.Compare:
		op := x.Op
		if negate {
			op = negateCompareOp(op)
		}
		left, err := lowerExpr(x.Left, false)
		if err != nil {
			return nil, err
		}
		right, err := lowerExpr(x.Right, false)
		if err != nil {
			return nil, err
		}
		pOp, ok := simpleCompareOp(op)
		if !ok {
			return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, "unsupported comparison operator", nil)
		}
		return guardNullOperands(pipeline.Compare{Op: pOp, Left: left, Right: right}, left, right), nil

	case logicalplan.NullTest:
		ref, ok := x.Operand.(logicalplan.ColumnRef)
		if !ok {
			return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, "IS NULL operand must be a column reference", nil)
		}
		return nullTestCompare(ref.Column, x.Negate != negate), nil

	case logicalplan.Logical:
		switch x.Op {
		case logicalplan.LogicalNot:
			if len(x.Operands) != 1 {
				return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, "NOT takes exactly one operand", nil)
			}
			return lowerExpr(x.Operands[0], !negate)
		case logicalplan.LogicalAnd, logicalplan.LogicalOr:
			op := x.Op
			if negate {
				op = deMorgan(op)
			}
			operands := make([]pipeline.Expr, 0, len(x.Operands))
			for _, sub := range x.Operands {
				lowered, err := lowerExpr(sub, negate)
				if err != nil {
					return nil, err
				}
				operands = append(operands, lowered)
			}
			return pipeline.Logical{Op: simpleLogicalOp(op), Operands: operands}, nil
		default:
			return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, "unsupported logical operator", nil)
		}

	case logicalplan.Arithmetic:
		if negate {
			return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, "cannot negate an arithmetic expression", nil)
		}
		left, err := lowerExpr(x.Left, false)
		if err != nil {
			return nil, err
		}
		right, err := lowerExpr(x.Right, false)
		if err != nil {
			return nil, err
		}
		return guardNullOperands(pipeline.Arithmetic{Op: arithOp(x.Op), Left: left, Right: right}, left, right), nil

	default:
		return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, "unsupported expression", nil)
	}
}

// guardNullOperands wraps result so that it only evaluates when every operand is present
// and non-null, per §4.2.3: if any operand is missing/null the conditional expression must
// itself produce null rather than let the underlying comparison or arithmetic operator
// coerce it into a value. Each operand is guarded with $gt: [operand, null], the BSON
// type-order check the native comparison operators use to distinguish "present" from
// "missing or null".
func guardNullOperands(result pipeline.Expr, operands ...pipeline.Expr) pipeline.Expr {
	guards := make([]pipeline.Expr, 0, len(operands))
	for _, op := range operands {
		guards = append(guards, pipeline.Compare{Op: pipeline.OpGt, Left: op, Right: pipeline.Literal{Value: nil}})
	}
	var cond pipeline.Expr = guards[0]
	if len(guards) > 1 {
		cond = pipeline.Logical{Op: pipeline.LogicalAnd, Operands: guards}
	}
	return pipeline.Cond{If: cond, Then: result, Else: pipeline.Literal{Value: nil}}
}

func negateCompareOp(op logicalplan.CompareOp) logicalplan.CompareOp {
	switch op {
	case logicalplan.OpEq:
		return logicalplan.OpNe
	case logicalplan.OpNe:
		return logicalplan.OpEq
	case logicalplan.OpGt:
		return logicalplan.OpLte
	case logicalplan.OpGte:
		return logicalplan.OpLt
	case logicalplan.OpLt:
		return logicalplan.OpGte
	case logicalplan.OpLte:
		return logicalplan.OpGt
	case logicalplan.OpIn:
		return logicalplan.OpNotIn
	case logicalplan.OpNotIn:
		return logicalplan.OpIn
	default:
		return op
	}
}

func deMorgan(op logicalplan.LogicalOp) logicalplan.LogicalOp {
	if op == logicalplan.LogicalAnd {
		return logicalplan.LogicalOr
	}
	return logicalplan.LogicalAnd
}

func arithOp(op logicalplan.ArithOp) pipeline.ArithOp {
	switch op {
	case logicalplan.ArithAdd:
		return pipeline.ArithAdd
	case logicalplan.ArithSub:
		return pipeline.ArithSub
	case logicalplan.ArithMul:
		return pipeline.ArithMul
	case logicalplan.ArithDiv:
		return pipeline.ArithDiv
	case logicalplan.ArithMod:
		return pipeline.ArithMod
	default:
		return pipeline.ArithAdd
	}
}
