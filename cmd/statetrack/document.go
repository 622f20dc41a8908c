package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// ErrNoMatch is returned when --path selects nothing in a document.
var ErrNoMatch = errors.New("path matches nothing")

// Object is a decoded mapping.
type Object map[string]any

// Array is a decoded sequence.
type Array []any

// loadDocument reads a YAML or JSON file. A non-empty path selects a
// sub-document with gjson syntax.
func loadDocument(file, path string) (any, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", file, err)
	}
	doc := normalize(raw)
	if path == "" {
		return doc, nil
	}
	return selectPath(doc, path, file)
}

// selectPath re-encodes doc as JSON and queries it.
func selectPath(doc any, path, file string) (any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", file, err)
	}
	res := gjson.GetBytes(b, path)
	if !res.Exists() {
		return nil, fmt.Errorf("%s in %s: %w", path, file, ErrNoMatch)
	}
	return normalize(res.Value()), nil
}

// normalize converts decoded mappings and sequences to Object and Array.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		o := make(Object, len(t))
		for k, item := range t {
			o[k] = normalize(item)
		}
		return o
	case map[any]any:
		o := make(Object, len(t))
		for k, item := range t {
			o[fmt.Sprint(k)] = normalize(item)
		}
		return o
	case []any:
		a := make(Array, len(t))
		for i, item := range t {
			a[i] = normalize(item)
		}
		return a
	default:
		return v
	}
}
