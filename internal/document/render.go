// SPDX-License-Identifier: Apache-2.0

package document

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RenderJSON materializes v as a JSON value, used when a scalar-complex conflict (§4.1.2)
// collapses a field to VARCHAR, or when a document-typed _id (§4.1.5) must be stored as
// text.
func RenderJSON(v Value) ([]byte, error) {
	native, err := toNative(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(native)
}

func toNative(v Value) (any, error) {
	switch v.Kind {
	case KindDocument:
		m := make(map[string]any, len(v.Doc))
		order := make([]string, 0, len(v.Doc))
		for _, f := range v.Doc {
			n, err := toNative(f.Value)
			if err != nil {
				return nil, err
			}
			m[f.Name] = n
			order = append(order, f.Name)
		}
		return orderedMap{keys: order, values: m}, nil
	case KindArray:
		out := make([]any, 0, len(v.Arr))
		for _, e := range v.Arr {
			n, err := toNative(e)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		tmp, err := bson.MarshalExtJSON(bson.M{"v": v.Raw}, false, false)
		if err != nil {
			return nil, fmt.Errorf("render scalar: %w", err)
		}
		var wrapper struct {
			V any `json:"v"`
		}
		if err := json.Unmarshal(tmp, &wrapper); err != nil {
			return nil, fmt.Errorf("render scalar unwrap: %w", err)
		}
		return wrapper.V, nil
	}
}

// orderedMap preserves field order through json.Marshal, matching §3.1's ordered
// mapping semantics for nested documents rendered as JSON text.
type orderedMap struct {
	keys   []string
	values map[string]any
}

func (m orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range m.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}
