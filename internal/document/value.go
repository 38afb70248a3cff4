// SPDX-License-Identifier: Apache-2.0

package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Value is a single document value: its Kind plus enough of the original encoding to
// round-trip it. Composite kinds (Document, Array) carry their children directly;
// scalar kinds carry the raw driver-encoded bytes.
type Value struct {
	Kind Kind
	Raw  bson.RawValue // valid for scalar kinds
	Doc  Document      // valid when Kind == KindDocument
	Arr  Array          // valid when Kind == KindArray
}

// Field is one entry of an ordered Document.
type Field struct {
	Name  string
	Value Value
}

// Document is an ordered mapping of string -> Value (§3.1): iteration order is
// preserved exactly as encoded, which is what first-appearance column ordering (§4.1.4)
// depends on.
type Document []Field

// Array is an ordered sequence of Value (§3.1).
type Array []Value

// Get returns the field named name and whether it was present.
func (d Document) Get(name string) (Value, bool) {
	for _, f := range d {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// DecodeDocument decodes a raw BSON document into our ordered Document tree.
func DecodeDocument(raw bson.Raw) (Document, error) {
	elems, err := raw.Elements()
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	out := make(Document, 0, len(elems))
	for _, e := range elems {
		key, err := e.KeyErr()
		if err != nil {
			return nil, fmt.Errorf("decode document key: %w", err)
		}
		rv, err := e.ValueErr()
		if err != nil {
			return nil, fmt.Errorf("decode document value for %q: %w", key, err)
		}
		v, err := DecodeValue(rv)
		if err != nil {
			return nil, fmt.Errorf("decode field %q: %w", key, err)
		}
		out = append(out, Field{Name: key, Value: v})
	}
	return out, nil
}

// DecodeValue decodes a single raw BSON value, recursing into documents and arrays.
func DecodeValue(rv bson.RawValue) (Value, error) {
	kind := KindFromBSON(rv.Type)
	switch kind {
	case KindDocument:
		sub, ok := rv.DocumentOK()
		if !ok {
			return Value{}, fmt.Errorf("value tagged document but not decodable")
		}
		doc, err := DecodeDocument(sub)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindDocument, Doc: doc}, nil
	case KindArray:
		sub, ok := rv.ArrayOK()
		if !ok {
			return Value{}, fmt.Errorf("value tagged array but not decodable")
		}
		elems, err := sub.Values()
		if err != nil {
			return Value{}, fmt.Errorf("decode array elements: %w", err)
		}
		arr := make(Array, 0, len(elems))
		for _, e := range elems {
			ev, err := DecodeValue(e)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, ev)
		}
		return Value{Kind: KindArray, Arr: arr}, nil
	default:
		return Value{Kind: kind, Raw: rv}, nil
	}
}
