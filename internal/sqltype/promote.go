// SPDX-License-Identifier: Apache-2.0

package sqltype

// Promote computes the widened SQL type for a column that has so far settled on
// current and now observes a value of type observed (§4.1.3). Promote is commutative
// and associative (§8.1 P1) and idempotent (§8.1 P2); callers fold it left-to-right
// over every observed value for a field.
func Promote(current, observed Type) Type {
	if current == NULLTYPE {
		return observed
	}
	if observed == NULLTYPE {
		return current
	}
	if current == observed {
		return current
	}

	if current.IsNumeric() && observed.IsNumeric() {
		return promoteNumeric(current, observed)
	}

	if current == BOOLEAN && observed.IsNumeric() {
		return observed
	}
	if observed == BOOLEAN && current.IsNumeric() {
		return current
	}

	// TIMESTAMP combined with any non-TIMESTAMP (and we've already ruled out NULL and
	// same-type) widens to VARCHAR.
	if current == TIMESTAMP || observed == TIMESTAMP {
		return VARCHAR
	}

	// VARBINARY combined with any non-VARBINARY widens to VARCHAR.
	if current == VARBINARY || observed == VARBINARY {
		return VARCHAR
	}

	// Every other mixed pair, including legacy-kind-as-VARCHAR collisions, widens to
	// VARCHAR.
	return VARCHAR
}

// promoteNumeric resolves the widening of two distinct numeric types per:
//   INTEGER < BIGINT < DECIMAL, INTEGER < DOUBLE < DECIMAL
//   mixed integer-and-floating widens to DOUBLE
//   any numeric combined with DECIMAL widens to DECIMAL
func promoteNumeric(a, b Type) Type {
	if a == DECIMAL || b == DECIMAL {
		return DECIMAL
	}
	has := func(t Type) bool { return a == t || b == t }
	switch {
	case has(INTEGER) && has(BIGINT):
		return BIGINT
	case has(INTEGER) && has(DOUBLE):
		return DOUBLE
	case has(BIGINT) && has(DOUBLE):
		return DOUBLE
	default:
		// Unreachable for the four-member numeric set, but fall back safely.
		return VARCHAR
	}
}
