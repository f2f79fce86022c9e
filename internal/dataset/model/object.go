package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Object is a decoded JSON/YAML object that remembers the order of its keys.
// Descriptors keep row key order this way so derived column lists are stable.
type Object struct {
	fields *orderedmap.OrderedMap[string, any]
}

func NewObject() *Object {
	return &Object{fields: orderedmap.New[string, any]()}
}

// FromMap converts a plain map (and nested maps) into an Object with sorted keys.
func FromMap(m map[string]any) *Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := NewObject()
	for _, k := range keys {
		obj.Set(k, normalizeNested(m[k]))
	}
	return obj
}

func normalizeNested(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return FromMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalizeNested(t[i])
		}
		return out
	case json.Number:
		return numberValue(t)
	}
	return v
}

// Set stores v under k. Existing keys keep their position.
func (o *Object) Set(k string, v any) {
	if o.fields == nil {
		o.fields = orderedmap.New[string, any]()
	}
	o.fields.Set(k, v)
}

func (o *Object) Get(k string) (any, bool) {
	if o == nil || o.fields == nil {
		return nil, false
	}
	return o.fields.Get(k)
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil || o.fields == nil {
		return nil
	}
	keys := make([]string, 0, o.fields.Len())
	for pair := o.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func (o *Object) Len() int {
	if o == nil || o.fields == nil {
		return 0
	}
	return o.fields.Len()
}

func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil || o.fields == nil {
		return []byte("{}"), nil
	}
	return o.fields.MarshalJSON()
}

func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	obj, ok := v.(*Object)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*o = *obj
	return nil
}

// DecodeJSON decodes data into Object, []any, string, int64, float64, bool or nil.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected trailing data after JSON value")
	}
	return decodeRaw(raw)
}

// decodeRaw keeps nested values raw until their own level is decoded, so every
// nested object goes through the ordered map too.
func decodeRaw(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	switch trimmed[0] {
	case '{':
		fields := orderedmap.New[string, json.RawMessage]()
		if err := fields.UnmarshalJSON(trimmed); err != nil {
			return nil, err
		}
		obj := NewObject()
		for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
			v, err := decodeRaw(pair.Value)
			if err != nil {
				return nil, err
			}
			obj.Set(pair.Key, v)
		}
		return obj, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		arr := make([]any, 0, len(items))
		for _, item := range items {
			v, err := decodeRaw(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if n, ok := v.(json.Number); ok {
		return numberValue(n), nil
	}
	return v, nil
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// DecodeYAML decodes a YAML document with the same value shapes as DecodeJSON.
func DecodeYAML(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return yamlValue(&doc)
}

func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.MappingNode:
		fields := orderedmap.New[string, yaml.Node]()
		if err := n.Decode(fields); err != nil {
			return nil, err
		}
		obj := NewObject()
		for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
			v, err := yamlValue(&pair.Value)
			if err != nil {
				return nil, err
			}
			obj.Set(pair.Key, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	if i, ok := v.(int); ok {
		return int64(i), nil
	}
	return v, nil
}
