// SPDX-License-Identifier: Apache-2.0

package translate

import (
	"github.com/docbridge/docbridge/internal/dbrerr"
	"github.com/docbridge/docbridge/internal/logicalplan"
	"github.com/docbridge/docbridge/internal/pipeline"
	"github.com/docbridge/docbridge/internal/schema"
)

// lowerJoin implements §4.2.6: joins are restricted to two tables of one collection where
// one (the base table or a virtual table) is the parent of the other, related by the
// child's synthesized FK columns referencing that parent's PK. Since a virtual table's
// rows never exist without their parent document,
// "the parent side has no unmatched rows" always holds here — so FULL JOIN and LEFT JOIN
// lower identically (preserving the child side), and FULL never actually needs the
// $unionWith fallback this package still threads Capabilities.SupportsUnionWith for
// (kept for a future cross-collection join that would need it).
func lowerJoin(n logicalplan.Join, sch map[string]*schema.Table, caps Capabilities) (*plan, error) {
	leftTable, err := leafScanTable(n.Left)
	if err != nil {
		return nil, err
	}
	rightTable, err := leafScanTable(n.Right)
	if err != nil {
		return nil, err
	}
	if leftTable.CollectionName != rightTable.CollectionName {
		return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, "UNSUPPORTED_CROSS_COLLECTION_JOIN: join sides must share a collection", nil)
	}

	parent, child, parentIsLeft, err := parentChild(leftTable, rightTable)
	if err != nil {
		return nil, err
	}
	if err := validateJoinKey(n.On, parent, child, parentIsLeft); err != nil {
		return nil, err
	}

	preserveChild := n.Kind != logicalplan.InnerJoin // LEFT and FULL both preserve the child; only INNER drops it

	p := &plan{collection: parent.CollectionName}
	if !parent.IsBase() {
		p.stages = append(p.stages, unwindChainTo(parent, true)...)
	}
	p.stages = append(p.stages, unwindChainTo(child, preserveChild)...)
	if !preserveChild {
		if guard := nullPaddingGuard(child); guard != nil {
			p.stages = append(p.stages, pipeline.Match{Predicate: *guard})
		}
	}
	return p, nil
}

// leafScanTable requires n to be a bare Scan: §4.2.6 only supports joining two table
// scans directly, not arbitrary subplans.
func leafScanTable(n logicalplan.Node) (*schema.Table, error) {
	scan, ok := n.(logicalplan.Scan)
	if !ok {
		return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, "UNSUPPORTED_CROSS_JOIN: join operands must be table scans", nil)
	}
	if scan.Table == nil {
		return nil, dbrerr.New(dbrerr.KindUnknownTable, "scan references a nil table", nil)
	}
	return scan.Table, nil
}

// parentChild identifies which of the two join tables is the ancestor: the base table,
// or — for a join between two virtual tables of the same collection — the one whose
// name path prefixes the other's.
func parentChild(left, right *schema.Table) (parent, child *schema.Table, parentIsLeft bool, err error) {
	switch {
	case left.IsBase():
		return left, right, true, nil
	case right.IsBase():
		return right, left, false, nil
	case len(left.NamePath()) < len(right.NamePath()):
		return left, right, true, nil
	case len(right.NamePath()) < len(left.NamePath()):
		return right, left, false, nil
	default:
		return nil, nil, false, dbrerr.New(dbrerr.KindUnsupportedSQL, "UNSUPPORTED_CROSS_JOIN: neither join side is an ancestor of the other", nil)
	}
}

// foreignKeyTo returns the column on child whose foreign key references parent, if any.
func foreignKeyTo(child, parent *schema.Table) *schema.Column {
	for _, c := range child.Columns() {
		if c.ForeignKeyIndex > 0 && c.ForeignKeyTable == parent.SQLName {
			return c
		}
	}
	return nil
}

// validateJoinKey requires On to be exactly the set of the child's synthesized FK columns
// paired with the parent PK columns they reference (§4.2.6); duplicated equalities are
// accepted, and a foreign or missing pair is rejected as an incomplete join key.
func validateJoinKey(on []logicalplan.Equality, parent, child *schema.Table, parentIsLeft bool) error {
	if len(on) == 0 {
		return dbrerr.New(dbrerr.KindUnsupportedSQL, "UNSUPPORTED_CROSS_JOIN: join has no ON clause", nil)
	}
	if foreignKeyTo(child, parent) == nil {
		return dbrerr.New(dbrerr.KindIncompleteJoinKey, "child table has no foreign key column to its parent", nil)
	}
	if len(parent.PrimaryKey()) == 0 {
		return dbrerr.New(dbrerr.KindIncompleteJoinKey, "parent table has no primary key", nil)
	}
	required := map[[2]string]bool{} // (parent PK column, child FK column)
	for _, c := range child.Columns() {
		if c.ForeignKeyIndex > 0 && c.ForeignKeyTable == parent.SQLName {
			required[[2]string{c.ForeignKeyColumn, c.SQLName}] = true
		}
	}

	seen := map[[2]string]bool{}
	for _, eq := range on {
		parentSide, childSide := eq.Left, eq.Right
		if !parentIsLeft {
			parentSide, childSide = eq.Right, eq.Left
		}
		if parentSide.Table != parent.SQLName || childSide.Table != child.SQLName {
			return dbrerr.New(dbrerr.KindIncompleteJoinKey, "join equality does not reference both join tables", nil)
		}
		pair := [2]string{parentSide.Column, childSide.Column}
		if !required[pair] {
			return dbrerr.New(dbrerr.KindIncompleteJoinKey, "join equality is not a parent primary key / child foreign key pair", nil)
		}
		seen[pair] = true
	}
	if len(seen) != len(required) {
		return dbrerr.New(dbrerr.KindIncompleteJoinKey, "join equalities do not cover the parent's full primary key", nil)
	}
	return nil
}
