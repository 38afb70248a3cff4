package sqltype

import (
	"strconv"
	"strings"
)

// JoinPath canonically joins a parent document path and a field name into a single
// dot-joined field_path (§3.3). An empty parent yields just field.
func JoinPath(parent, field string) string {
	if parent == "" {
		return field
	}
	return parent + "." + field
}

// SQLIdentifier mangles a document field name into the sql_name exposed to SQL
// consumers (C3). Field names are escaped rather than rejected so that every legal BSON
// field name — including ones starting with an underscore, like the synthesized
// "_id" — maps to a distinct, stable SQL identifier: each leading underscore is
// doubled. "_id" therefore becomes "__id", and an already-doubled "__id" would become
// "____id", keeping the mapping injective.
func SQLIdentifier(field string) string {
	i := 0
	for i < len(field) && field[i] == '_' {
		i++
	}
	if i == 0 {
		return field
	}
	return strings.Repeat("_", i) + field
}

// TableIdentifier builds the sql_name of a virtual table derived from collection at
// parentPath + field (§4.1.1): collection_name + "_" + parent_path + field, with path
// separators mangled to underscores so the result is a single SQL identifier.
func TableIdentifier(collection, parentPath, field string) string {
	full := JoinPath(parentPath, field)
	mangled := strings.ReplaceAll(full, ".", "_")
	return collection + "_" + mangled
}

// IndexColumnName returns the synthesized PK column name for an array nesting level.
func IndexColumnName(level int) string {
	return "array_index_lvl_" + strconv.Itoa(level)
}
