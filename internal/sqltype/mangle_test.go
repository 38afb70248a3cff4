package sqltype_test

import (
	"testing"

	"github.com/docbridge/docbridge/internal/sqltype"
)

func TestSQLIdentifierEscapesLeadingUnderscore(t *testing.T) {
	cases := map[string]string{
		"_id":    "__id",
		"__id":   "____id",
		"name":   "name",
		"_":      "__",
		"__":     "____",
		"field1": "field1",
	}
	for in, want := range cases {
		if got := sqltype.SQLIdentifier(in); got != want {
			t.Errorf("SQLIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSQLIdentifierInjective(t *testing.T) {
	inputs := []string{"_id", "__id", "id", "_", "a_b", "_a_b"}
	seen := map[string]string{}
	for _, in := range inputs {
		out := sqltype.SQLIdentifier(in)
		if prior, ok := seen[out]; ok && prior != in {
			t.Errorf("collision: %q and %q both mangle to %q", prior, in, out)
		}
		seen[out] = in
	}
}

func TestTableIdentifier(t *testing.T) {
	if got := sqltype.TableIdentifier("coll", "", "doc"); got != "coll_doc" {
		t.Errorf("TableIdentifier = %q, want coll_doc", got)
	}
	if got := sqltype.TableIdentifier("coll", "doc", "arr"); got != "coll_doc_arr" {
		t.Errorf("TableIdentifier = %q, want coll_doc_arr", got)
	}
}

func TestIndexColumnName(t *testing.T) {
	if got := sqltype.IndexColumnName(0); got != "array_index_lvl_0" {
		t.Errorf("IndexColumnName(0) = %q", got)
	}
	if got := sqltype.IndexColumnName(2); got != "array_index_lvl_2" {
		t.Errorf("IndexColumnName(2) = %q", got)
	}
}
