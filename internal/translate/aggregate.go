// SPDX-License-Identifier: Apache-2.0

package translate

import (
	"github.com/docbridge/docbridge/internal/logicalplan"
	"github.com/docbridge/docbridge/internal/pipeline"
	"github.com/docbridge/docbridge/internal/schema"
)

// lowerAggregate implements §4.2.7: GROUP BY lowers to a single Group stage, and a
// non-empty HAVING clause lowers to a Match stage immediately after it, using the same
// simple/expression mode choice as WHERE (§4.2.3) since Having is evaluated against the
// Group stage's own output fields.
func lowerAggregate(n logicalplan.Aggregate, sch map[string]*schema.Table, caps Capabilities) (*plan, error) {
	p, err := lower(n.Input, sch, caps)
	if err != nil {
		return nil, err
	}

	groupKey := make([]string, 0, len(n.GroupBy))
	for _, ref := range n.GroupBy {
		groupKey = append(groupKey, ref.Column)
	}
	aggs := make([]pipeline.GroupAggregate, 0, len(n.Aggregates))
	for _, a := range n.Aggregates {
		aggs = append(aggs, pipeline.GroupAggregate{
			OutputName: a.OutputName,
			Func:       string(a.Func),
			SourcePath: a.Arg.Column,
		})
	}
	p.stages = append(p.stages, pipeline.Group{GroupKey: groupKey, Aggregates: aggs})

	if n.Having == nil {
		return p, nil
	}
	if simple, ok := lowerSimple(n.Having); ok {
		p.stages = append(p.stages, pipeline.Match{Predicate: simple})
		return p, nil
	}
	expr, err := lowerExpr(n.Having, false)
	if err != nil {
		return nil, err
	}
	p.stages = append(p.stages, expressionModeStages(expr)...)
	return p, nil
}
