package sqltype_test

import (
	"testing"

	"github.com/docbridge/docbridge/internal/sqltype"
)

var allTypes = []sqltype.Type{
	sqltype.NULLTYPE, sqltype.BIGINT, sqltype.BOOLEAN, sqltype.DECIMAL, sqltype.DOUBLE,
	sqltype.INTEGER, sqltype.TIMESTAMP, sqltype.VARBINARY, sqltype.VARCHAR,
}

// TestPromoteCommutative is P1: promote(promote(NULL,a),b) == promote(promote(NULL,b),a)
// for every a, b — which, since promote(NULL,x)=x, reduces to Promote(a,b)==Promote(b,a).
func TestPromoteCommutative(t *testing.T) {
	for _, a := range allTypes {
		for _, b := range allTypes {
			got := sqltype.Promote(a, b)
			want := sqltype.Promote(b, a)
			if got != want {
				t.Errorf("Promote(%s,%s)=%s != Promote(%s,%s)=%s", a, b, got, b, a, want)
			}
		}
	}
}

// TestPromoteIdempotent is P2: promote(x,x) == x.
func TestPromoteIdempotent(t *testing.T) {
	for _, x := range allTypes {
		if got := sqltype.Promote(x, x); got != x {
			t.Errorf("Promote(%s,%s) = %s, want %s", x, x, got, x)
		}
	}
}

func TestPromoteNullIdentity(t *testing.T) {
	for _, x := range allTypes {
		if got := sqltype.Promote(sqltype.NULLTYPE, x); got != x {
			t.Errorf("Promote(NULL,%s) = %s, want %s", x, got, x)
		}
		if got := sqltype.Promote(x, sqltype.NULLTYPE); got != x {
			t.Errorf("Promote(%s,NULL) = %s, want %s", x, got, x)
		}
	}
}

func TestPromoteExhaustiveMatrix(t *testing.T) {
	cases := []struct {
		a, b, want sqltype.Type
	}{
		{sqltype.INTEGER, sqltype.BIGINT, sqltype.BIGINT},
		{sqltype.INTEGER, sqltype.DOUBLE, sqltype.DOUBLE},
		{sqltype.INTEGER, sqltype.DECIMAL, sqltype.DECIMAL},
		{sqltype.BIGINT, sqltype.DOUBLE, sqltype.DOUBLE},
		{sqltype.BIGINT, sqltype.DECIMAL, sqltype.DECIMAL},
		{sqltype.DOUBLE, sqltype.DECIMAL, sqltype.DECIMAL},
		{sqltype.BOOLEAN, sqltype.INTEGER, sqltype.INTEGER},
		{sqltype.BOOLEAN, sqltype.BIGINT, sqltype.BIGINT},
		{sqltype.BOOLEAN, sqltype.DOUBLE, sqltype.DOUBLE},
		{sqltype.BOOLEAN, sqltype.DECIMAL, sqltype.DECIMAL},
		{sqltype.TIMESTAMP, sqltype.VARCHAR, sqltype.VARCHAR},
		{sqltype.TIMESTAMP, sqltype.INTEGER, sqltype.VARCHAR},
		{sqltype.TIMESTAMP, sqltype.BOOLEAN, sqltype.VARCHAR},
		{sqltype.TIMESTAMP, sqltype.VARBINARY, sqltype.VARCHAR},
		{sqltype.VARBINARY, sqltype.VARCHAR, sqltype.VARCHAR},
		{sqltype.VARBINARY, sqltype.INTEGER, sqltype.VARCHAR},
		{sqltype.VARBINARY, sqltype.BOOLEAN, sqltype.VARCHAR},
		{sqltype.BOOLEAN, sqltype.VARCHAR, sqltype.VARCHAR},
		{sqltype.BOOLEAN, sqltype.TIMESTAMP, sqltype.VARCHAR},
	}
	for _, tc := range cases {
		if got := sqltype.Promote(tc.a, tc.b); got != tc.want {
			t.Errorf("Promote(%s,%s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
	}
}

// TestPromoteAssociative checks associativity over a representative reduced set —
// folding three observations in either grouping yields the same result, for every
// triple drawn from the closed type set (including NULL).
func TestPromoteAssociative(t *testing.T) {
	for _, a := range allTypes {
		for _, b := range allTypes {
			for _, c := range allTypes {
				left := sqltype.Promote(sqltype.Promote(a, b), c)
				right := sqltype.Promote(a, sqltype.Promote(b, c))
				if left != right {
					t.Errorf("associativity fails for (%s,%s,%s): (a∘b)∘c=%s, a∘(b∘c)=%s", a, b, c, left, right)
				}
			}
		}
	}
}
