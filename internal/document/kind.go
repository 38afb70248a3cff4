// SPDX-License-Identifier: Apache-2.0

// Package document is the tagged-variant document value model (§3.1): every value
// pulled from a collection is one of the concrete BSON-ish kinds below, decoded from
// go.mongodb.org/mongo-driver/v2/bson without losing the raw bytes needed to round-trip
// it back to the store.
package document

import "go.mongodb.org/mongo-driver/v2/bson"

// Kind is the closed set of document value kinds. Values of Kind are lowercase,
// underscore-separated, matching the wire vocabulary of §6.2.
type Kind string

const (
	KindBinary   Kind = "binary"
	KindBoolean  Kind = "boolean"
	KindDouble   Kind = "double"
	KindInt32    Kind = "int32"
	KindInt64    Kind = "int64"
	KindDecimal  Kind = "decimal"
	KindString   Kind = "string"
	KindObjectID Kind = "object_id"
	KindDateTime Kind = "date_time"
	KindNull     Kind = "null"
	KindMinKey   Kind = "min_key"
	KindMaxKey   Kind = "max_key"
	KindDocument Kind = "document"
	KindArray    Kind = "array"

	// Legacy kinds: recognized only for type promotion (§3.1) — any column that ever
	// observes one of these is forced to SQL type VARCHAR.
	KindDBPointer             Kind = "db_pointer"
	KindJavaScript            Kind = "java_script"
	KindJavaScriptWithScope   Kind = "java_script_with_scope"
	KindRegularExpression     Kind = "regular_expression"
	KindSymbol                Kind = "symbol"
	KindTimestampLegacy       Kind = "timestamp_bson"
	KindUndefined             Kind = "undefined"
)

// IsLegacy reports whether k is one of the seven legacy kinds that force VARCHAR.
func (k Kind) IsLegacy() bool {
	switch k {
	case KindDBPointer, KindJavaScript, KindJavaScriptWithScope, KindRegularExpression,
		KindSymbol, KindTimestampLegacy, KindUndefined:
		return true
	}
	return false
}

// IsComposite reports whether k is Document or Array.
func (k Kind) IsComposite() bool {
	return k == KindDocument || k == KindArray
}

// KindFromBSON maps a driver bson.Type to our Kind.
func KindFromBSON(t bson.Type) Kind {
	switch t {
	case bson.TypeBinary:
		return KindBinary
	case bson.TypeBoolean:
		return KindBoolean
	case bson.TypeDouble:
		return KindDouble
	case bson.TypeInt32:
		return KindInt32
	case bson.TypeInt64:
		return KindInt64
	case bson.TypeDecimal128:
		return KindDecimal
	case bson.TypeString:
		return KindString
	case bson.TypeObjectID:
		return KindObjectID
	case bson.TypeDateTime:
		return KindDateTime
	case bson.TypeNull:
		return KindNull
	case bson.TypeMinKey:
		return KindMinKey
	case bson.TypeMaxKey:
		return KindMaxKey
	case bson.TypeEmbeddedDocument:
		return KindDocument
	case bson.TypeArray:
		return KindArray
	case bson.TypeDBPointer:
		return KindDBPointer
	case bson.TypeJavaScript:
		return KindJavaScript
	case bson.TypeCodeWithScope:
		return KindJavaScriptWithScope
	case bson.TypeRegex:
		return KindRegularExpression
	case bson.TypeSymbol:
		return KindSymbol
	case bson.TypeTimestamp:
		return KindTimestampLegacy
	case bson.TypeUndefined:
		return KindUndefined
	default:
		return KindString
	}
}
