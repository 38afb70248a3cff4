// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/sqltype"
)

// sqlTypeForKind maps one observed document.Kind to its initial sqltype.Type (§4.1.3),
// before any promotion against prior observations of the same column. Legacy BSON kinds
// and the two key-marker kinds have no sensible relational representation and always
// land on VARCHAR; Document and Array never reach here in practice since callers branch
// on them before needing a scalar type, but are mapped for completeness.
func sqlTypeForKind(k document.Kind) sqltype.Type {
	switch k {
	case document.KindBinary:
		return sqltype.VARBINARY
	case document.KindBoolean:
		return sqltype.BOOLEAN
	case document.KindDouble:
		return sqltype.DOUBLE
	case document.KindInt32:
		return sqltype.INTEGER
	case document.KindInt64:
		return sqltype.BIGINT
	case document.KindDecimal:
		return sqltype.DECIMAL
	case document.KindString, document.KindObjectID, document.KindMinKey, document.KindMaxKey:
		return sqltype.VARCHAR
	case document.KindDateTime:
		return sqltype.TIMESTAMP
	case document.KindNull:
		return sqltype.NULLTYPE
	case document.KindDocument:
		return sqltype.DOCUMENT
	case document.KindArray:
		return sqltype.ARRAY
	default:
		// legacy kinds (§3.1): db_pointer, java_script, java_script_with_scope,
		// regular_expression, symbol, timestamp_bson, undefined.
		return sqltype.VARCHAR
	}
}
