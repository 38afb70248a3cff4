// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Encode renders stages as the ordered list of aggregation pipeline documents the
// document store's driver expects (§6.4): field names are exactly the operators named
// there ($match, $project, $unwind, $group, $sort, $limit, $addFields, and the
// expression operators nested within them).
func Encode(stages []Stage) ([]bson.D, error) {
	out := make([]bson.D, 0, len(stages))
	for i, s := range stages {
		d, err := encodeStage(s)
		if err != nil {
			return nil, fmt.Errorf("encode stage %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func encodeStage(s Stage) (bson.D, error) {
	switch st := s.(type) {
	case Match:
		filter, err := encodeFilter(st.Predicate)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$match", Value: filter}}, nil

	case Unwind:
		spec := bson.D{{Key: "path", Value: "$" + st.Path}}
		spec = append(spec, bson.E{Key: "preserveNullAndEmptyArrays", Value: st.PreserveNull})
		if st.IndexAs != "" {
			spec = append(spec, bson.E{Key: "includeArrayIndex", Value: st.IndexAs})
		}
		return bson.D{{Key: "$unwind", Value: spec}}, nil

	case Project:
		doc := bson.D{}
		if !st.IncludeID {
			doc = append(doc, bson.E{Key: "_id", Value: 0})
		}
		for _, e := range st.Entries {
			switch {
			case e.Exclude:
				doc = append(doc, bson.E{Key: e.OutputName, Value: 0})
			case e.Expr != nil:
				v, err := encodeExpr(e.Expr)
				if err != nil {
					return nil, err
				}
				doc = append(doc, bson.E{Key: e.OutputName, Value: v})
			case e.SourcePath == e.OutputName:
				doc = append(doc, bson.E{Key: e.OutputName, Value: 1})
			default:
				doc = append(doc, bson.E{Key: e.OutputName, Value: "$" + e.SourcePath})
			}
		}
		return bson.D{{Key: "$project", Value: doc}}, nil

	case Group:
		var key any
		switch len(st.GroupKey) {
		case 0:
			key = nil
		case 1:
			key = "$" + st.GroupKey[0]
		default:
			keyDoc := bson.D{}
			for _, k := range st.GroupKey {
				keyDoc = append(keyDoc, bson.E{Key: k, Value: "$" + k})
			}
			key = keyDoc
		}
		doc := bson.D{{Key: "_id", Value: key}}
		for _, a := range st.Aggregates {
			op, err := groupFuncOp(a.Func, a.SourcePath)
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: a.OutputName, Value: op})
		}
		return bson.D{{Key: "$group", Value: doc}}, nil

	case Sort:
		doc := bson.D{}
		for _, k := range st.Keys {
			dir := 1
			if k.Descending {
				dir = -1
			}
			doc = append(doc, bson.E{Key: k.Path, Value: dir})
		}
		return bson.D{{Key: "$sort", Value: doc}}, nil

	case Limit:
		return bson.D{{Key: "$limit", Value: st.N}}, nil

	case AddFields:
		doc := bson.D{}
		for name, expr := range st.Fields {
			v, err := encodeExpr(expr)
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: name, Value: v})
		}
		return bson.D{{Key: "$addFields", Value: doc}}, nil

	default:
		return nil, fmt.Errorf("unsupported stage type %T", s)
	}
}

func groupFuncOp(fn, sourcePath string) (bson.D, error) {
	switch fn {
	case "count":
		return bson.D{{Key: "$sum", Value: 1}}, nil
	case "sum", "min", "max", "avg":
		return bson.D{{Key: "$" + fn, Value: "$" + sourcePath}}, nil
	default:
		return nil, fmt.Errorf("unsupported group aggregate function %q", fn)
	}
}

// encodeFilter renders a predicate for use inside $match: field-vs-value comparisons use
// the native query-operator shorthand ({field: {$op: value}}), matching "simple mode"
// (§4.2.3); $and/$or compose recursively.
func encodeFilter(e Expr) (bson.D, error) {
	switch x := e.(type) {
	case Compare:
		field, lit, err := fieldAndLiteral(x.Left, x.Right)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: field, Value: bson.D{{Key: string(x.Op), Value: lit}}}}, nil

	case Exists:
		return bson.D{{Key: x.Field, Value: bson.D{{Key: "$exists", Value: !x.Negate}}}}, nil

	case Logical:
		arr := make(bson.A, 0, len(x.Operands))
		for _, op := range x.Operands {
			d, err := encodeFilter(op)
			if err != nil {
				return nil, err
			}
			arr = append(arr, d)
		}
		return bson.D{{Key: string(x.Op), Value: arr}}, nil

	default:
		return nil, fmt.Errorf("unsupported filter expression %T", e)
	}
}

func fieldAndLiteral(left, right Expr) (string, any, error) {
	if f, ok := left.(FieldRef); ok {
		v, err := literalValue(right)
		return f.Path, v, err
	}
	if f, ok := right.(FieldRef); ok {
		v, err := literalValue(left)
		return f.Path, v, err
	}
	return "", nil, fmt.Errorf("comparison has no field operand")
}

func literalValue(e Expr) (any, error) {
	lit, ok := e.(Literal)
	if !ok {
		return nil, fmt.Errorf("expected literal operand, got %T", e)
	}
	return lit.Value, nil
}

// encodeExpr renders an expression for use in an aggregation-expression context
// (AddFields, computed Project values): field references become "$path", and
// comparisons/logical connectives use their array-argument form rather than the
// query-operator shorthand.
func encodeExpr(e Expr) (any, error) {
	switch x := e.(type) {
	case FieldRef:
		return "$" + x.Path, nil
	case Literal:
		return bson.D{{Key: "$literal", Value: x.Value}}, nil
	case Compare:
		l, err := encodeExpr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := encodeExpr(x.Right)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: string(x.Op), Value: bson.A{l, r}}}, nil
	case Arithmetic:
		l, err := encodeExpr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := encodeExpr(x.Right)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: string(x.Op), Value: bson.A{l, r}}}, nil
	case Logical:
		arr := make(bson.A, 0, len(x.Operands))
		for _, op := range x.Operands {
			v, err := encodeExpr(op)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return bson.D{{Key: string(x.Op), Value: arr}}, nil
	case Cond:
		ifE, err := encodeExpr(x.If)
		if err != nil {
			return nil, err
		}
		thenE, err := encodeExpr(x.Then)
		if err != nil {
			return nil, err
		}
		elseE, err := encodeExpr(x.Else)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$cond", Value: bson.D{
			{Key: "if", Value: ifE},
			{Key: "then", Value: thenE},
			{Key: "else", Value: elseE},
		}}}, nil
	default:
		return nil, fmt.Errorf("unsupported expression type %T", e)
	}
}
