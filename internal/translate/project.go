// SPDX-License-Identifier: Apache-2.0

package translate

import (
	"github.com/docbridge/docbridge/internal/logicalplan"
	"github.com/docbridge/docbridge/internal/pipeline"
	"github.com/docbridge/docbridge/internal/schema"
)

// lowerProject implements §4.2.5: a pure column rename/drop becomes a plain
// source-to-output field mapping; anything computed carries its lowered expression.
// _id is always explicitly suppressed unless the plan projects it itself.
func lowerProject(n logicalplan.Project, sch map[string]*schema.Table, caps Capabilities) (*plan, error) {
	p, err := lower(n.Input, sch, caps)
	if err != nil {
		return nil, err
	}

	entries := make([]pipeline.ProjectEntry, 0, len(n.Columns))
	includeID := false
	for _, col := range n.Columns {
		if ref, ok := col.Expr.(logicalplan.ColumnRef); ok {
			if ref.Column == "_id" && col.OutputName == "_id" {
				includeID = true
				continue
			}
			entries = append(entries, pipeline.ProjectEntry{
				OutputName: col.OutputName,
				SourcePath: ref.Column,
			})
			continue
		}
		expr, err := lowerExpr(col.Expr, false)
		if err != nil {
			return nil, err
		}
		entries = append(entries, pipeline.ProjectEntry{OutputName: col.OutputName, Expr: expr})
	}

	p.stages = append(p.stages, pipeline.Project{Entries: entries, IncludeID: includeID})
	return p, nil
}
