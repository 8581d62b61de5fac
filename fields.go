// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/gobwas/glob"
	"github.com/tidwall/gjson"
)

// AggregatedPrefix is the prefix of aggregated (cross-adapter) field names.
const AggregatedPrefix = "specific_data.data."

// maxSuggestions bounds the "did you mean" list of UnknownFieldError.
const maxSuggestions = 5

// FieldResolver normalizes a user supplied field name to its fully qualified
// schema name.
type FieldResolver interface {
	ResolveField(name string) (string, error)
}

// SchemaField describes one field of an asset type.
type SchemaField struct {
	Name  string
	Title string
	Type  string
}

// FieldSchema resolves field names against a known set of asset fields.
type FieldSchema struct {
	AssetType string

	fields  []SchemaField
	byName  map[string]SchemaField
	byLower map[string]string
}

// NewFieldSchema builds a schema from a static field list.
func NewFieldSchema(assetType string, fields ...SchemaField) *FieldSchema {
	s := &FieldSchema{
		AssetType: assetType,
		byName:    make(map[string]SchemaField, len(fields)),
		byLower:   make(map[string]string, len(fields)*2),
	}
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		if _, dup := s.byName[f.Name]; dup {
			continue
		}
		s.fields = append(s.fields, f)
		s.byName[f.Name] = f
		s.byLower[strings.ToLower(f.Name)] = f.Name
		if f.Title != "" {
			if _, taken := s.byLower[strings.ToLower(f.Title)]; !taken {
				s.byLower[strings.ToLower(f.Title)] = f.Name
			}
		}
	}
	return s
}

// FetchFieldSchema loads the field schema of assetType from the instance.
//
// Every array of field objects in the response (aggregated and per adapter)
// is collected; objects need at least a "name".
func FetchFieldSchema(ctx context.Context, client *Client, assetType string) (*FieldSchema, error) {
	if err := validateAssetType(assetType); err != nil {
		return nil, err
	}
	res, err := client.Get(ctx, "/api/"+assetType+"/fields")
	if err != nil {
		return nil, fmt.Errorf("fetching %s field schema: %w", assetType, err)
	}
	return ParseFieldSchema(assetType, res.Body)
}

// ParseFieldSchema parses a fields response body.
func ParseFieldSchema(assetType, body string) (*FieldSchema, error) {
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("parsing %s field schema: invalid JSON", assetType)
	}
	root := gjson.Parse(body)
	if attrs := root.Get("data.attributes"); attrs.Exists() {
		root = attrs
	}

	var fields []SchemaField
	collect := func(arr gjson.Result) {
		for _, f := range arr.Array() {
			name := f.Get("name").String()
			if name == "" {
				continue
			}
			fields = append(fields, SchemaField{
				Name:  name,
				Title: f.Get("title").String(),
				Type:  f.Get("type").String(),
			})
		}
	}

	switch {
	case root.IsArray():
		collect(root)
	case root.IsObject():
		// aggregated fields first so their titles win over adapter titles
		if agg := root.Get("agg"); agg.IsArray() {
			collect(agg)
		}
		root.ForEach(func(key, value gjson.Result) bool {
			if key.String() != "agg" && value.IsArray() {
				collect(value)
			}
			return true
		})
	default:
		return nil, fmt.Errorf("parsing %s field schema: unexpected %s document", assetType, root.Type)
	}

	return NewFieldSchema(assetType, fields...), nil
}

// Fields returns the known fields in schema order.
func (s *FieldSchema) Fields() []SchemaField {
	out := make([]SchemaField, len(s.fields))
	copy(out, s.fields)
	return out
}

// Lookup returns the field with the exact qualified name.
func (s *FieldSchema) Lookup(name string) (SchemaField, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// ResolveField resolves an exact name, a short aggregated name
// ("hostname" for "specific_data.data.hostname") or a case-insensitive name
// or title. Unknown names fail with UnknownFieldError carrying suggestions.
func (s *FieldSchema) ResolveField(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &InvalidAttributeError{Attribute: "field", Value: `""`, Reason: "field name cannot be empty"}
	}
	if _, ok := s.byName[name]; ok {
		return name, nil
	}
	if _, ok := s.byName[AggregatedPrefix+name]; ok {
		return AggregatedPrefix + name, nil
	}
	if full, ok := s.byLower[strings.ToLower(name)]; ok {
		return full, nil
	}
	if full, ok := s.byLower[strings.ToLower(AggregatedPrefix+name)]; ok {
		return full, nil
	}
	return "", &UnknownFieldError{Field: name, AssetType: s.AssetType, Suggestions: s.suggest(name)}
}

// ResolveFields resolves every name, expanding glob patterns via Match.
func (s *FieldSchema) ResolveFields(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.ContainsAny(n, "*?[{") {
			matched, err := s.Match(n)
			if err != nil {
				return nil, err
			}
			if len(matched) == 0 {
				return nil, &UnknownFieldError{Field: n, AssetType: s.AssetType}
			}
			out = append(out, matched...)
			continue
		}
		full, err := s.ResolveField(n)
		if err != nil {
			return nil, err
		}
		out = append(out, full)
	}
	return out, nil
}

// Match returns the qualified names matching a glob pattern, in schema
// order. "*" stays within one dotted segment, "**" crosses segments. A
// pattern that matches nothing as given is retried against aggregated short
// names.
func (s *FieldSchema) Match(pattern string) ([]string, error) {
	out, err := s.match(pattern)
	if err != nil || len(out) > 0 || strings.HasPrefix(pattern, AggregatedPrefix) {
		return out, err
	}
	return s.match(AggregatedPrefix + pattern)
}

func (s *FieldSchema) match(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, &InvalidAttributeError{Attribute: "field pattern", Value: pattern, Reason: err.Error()}
	}
	var out []string
	for _, f := range s.fields {
		if g.Match(f.Name) {
			out = append(out, f.Name)
		}
	}
	return out, nil
}

func (s *FieldSchema) suggest(name string) []string {
	type scored struct {
		name string
		dist int
	}
	needle := strings.ToLower(name)
	limit := len(needle)/3 + 2

	var hits []scored
	for _, f := range s.fields {
		short := strings.ToLower(strings.TrimPrefix(f.Name, AggregatedPrefix))
		d := levenshtein.ComputeDistance(needle, short)
		if full := levenshtein.ComputeDistance(needle, strings.ToLower(f.Name)); full < d {
			d = full
		}
		if d <= limit {
			hits = append(hits, scored{name: f.Name, dist: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].name < hits[j].name
	})

	var out []string
	for i := 0; i < len(hits) && i < maxSuggestions; i++ {
		out = append(out, hits[i].name)
	}
	return out
}

// Asset types with saved query endpoints
const (
	AssetDevices = "devices"
	AssetUsers   = "users"
)

// ValidAssetTypes lists the asset types that own saved queries
var ValidAssetTypes = []string{AssetDevices, AssetUsers}

func validateAssetType(assetType string) error {
	for _, v := range ValidAssetTypes {
		if assetType == v {
			return nil
		}
	}
	return &InvalidAttributeError{
		Attribute: "asset type",
		Value:     assetType,
		Reason:    "unsupported asset type",
		Valid:     ValidAssetTypes,
	}
}
