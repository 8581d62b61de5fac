// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// MergeOptions selects how MergeStrings combines lists.
//
//   - neither flag: value replaces current
//   - Append: current followed by the values not already present
//   - Remove: current without the listed values
//
// Order is preserved and duplicates collapse in every mode.
type MergeOptions struct {
	Append bool
	Remove bool
}

// MergeStrings merges value into current. It never modifies its arguments.
func MergeStrings(current, value []string, opts MergeOptions) []string {
	var base []string
	switch {
	case opts.Remove:
		drop := make(map[string]bool, len(value))
		for _, v := range value {
			drop[v] = true
		}
		for _, c := range current {
			if !drop[c] {
				base = append(base, c)
			}
		}
		return dedupe(base)
	case opts.Append:
		base = append(append(base, current...), value...)
	default:
		base = append(base, value...)
	}
	return dedupe(base)
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// UpdateTags merges tags with the same semantics as MergeStrings. Every tag
// must be a non-empty string.
func UpdateTags(current, value []string, opts MergeOptions) ([]string, error) {
	if opts.Append && opts.Remove {
		return nil, &InvalidAttributeError{Attribute: "tags", Value: value, Reason: "append and remove are mutually exclusive"}
	}
	if err := validateTags(value); err != nil {
		return nil, err
	}
	return MergeStrings(current, value, opts), nil
}

// CopyOptions tunes Copy.
type CopyOptions struct {
	Private      bool
	AssetScope   bool
	AlwaysCached bool

	// SkipNameCheck bypasses the name collision check
	SkipNameCheck bool
}

// Copy builds a create request that clones source's view under newName.
// The name must not collide with any candidate unless SkipNameCheck is set.
func Copy(source SavedQuery, newName string, opts CopyOptions, candidates []SavedQuery) (SavedQueryCreate, error) {
	name := newName
	if err := validateName(name); err != nil {
		return SavedQueryCreate{}, err
	}
	if !opts.SkipNameCheck {
		if err := CheckNameExists(name, candidates); err != nil {
			return SavedQueryCreate{}, err
		}
	}
	return SavedQueryCreate{
		Name:         name,
		Description:  source.Description,
		Tags:         append([]string{}, source.Tags...),
		Private:      opts.Private,
		AssetScope:   opts.AssetScope,
		AlwaysCached: opts.AlwaysCached,
		View:         source.View.Clone(),
	}, nil
}

// CheckNameExists fails with AlreadyExistsError when a candidate has the
// same name, compared case-insensitively.
func CheckNameExists(name string, candidates []SavedQuery) error {
	for _, c := range candidates {
		if strings.EqualFold(c.Name, name) {
			return &AlreadyExistsError{Name: c.Name, UUID: c.UUID}
		}
	}
	return nil
}

// SelectorKind tells how a Selector matches.
type SelectorKind int

const (
	// SelectByAny matches a uuid first, then a name
	SelectByAny SelectorKind = iota

	SelectByName

	SelectByUUID

	// SelectByRecord matches the record's uuid, then its name
	SelectByRecord
)

// Selector identifies one saved query.
type Selector struct {
	Kind   SelectorKind
	Name   string
	UUID   string
	Record *SavedQuery
}

// ByName selects by case-insensitive name.
func ByName(name string) Selector { return Selector{Kind: SelectByName, Name: name} }

// ByUUID selects by exact uuid.
func ByUUID(uuid string) Selector { return Selector{Kind: SelectByUUID, UUID: uuid} }

// ByAny selects by uuid, falling back to name.
func ByAny(value string) Selector { return Selector{Kind: SelectByAny, Name: value, UUID: value} }

// ByRecord selects the saved query a record refers to.
func ByRecord(sq SavedQuery) Selector {
	c := sq
	return Selector{Kind: SelectByRecord, Name: sq.Name, UUID: sq.UUID, Record: &c}
}

// String describes the selector for error messages.
func (s Selector) String() string {
	switch s.Kind {
	case SelectByName:
		return fmt.Sprintf("name %q", s.Name)
	case SelectByUUID:
		return fmt.Sprintf("uuid %q", s.UUID)
	case SelectByRecord:
		return fmt.Sprintf("record name %q uuid %q", s.Name, s.UUID)
	default:
		return fmt.Sprintf("name or uuid %q", s.Name)
	}
}

// SelectorFrom builds a selector from a loosely typed value: a string (name
// or uuid), a map with "uuid" and/or "name" keys, a SavedQuery or a
// *SavedQuery. Other types fail with ApiAttributeTypeError.
func SelectorFrom(v any) (Selector, error) {
	switch t := v.(type) {
	case Selector:
		return t, nil
	case string:
		return ByAny(t), nil
	case SavedQuery:
		return ByRecord(t), nil
	case *SavedQuery:
		if t != nil {
			return ByRecord(*t), nil
		}
	case map[string]string:
		return selectorFromMap(t["uuid"], t["name"], v)
	case map[string]any:
		uuid, okU := t["uuid"].(string)
		name, okN := t["name"].(string)
		if _, has := t["uuid"]; has && !okU {
			break
		}
		if _, has := t["name"]; has && !okN {
			break
		}
		return selectorFromMap(uuid, name, v)
	}
	return Selector{}, &ApiAttributeTypeError{
		Attribute: "saved query selector",
		Value:     v,
		Expected:  "a name or uuid string, a map with name/uuid, or a SavedQuery",
	}
}

func selectorFromMap(uuid, name string, v any) (Selector, error) {
	switch {
	case uuid != "" && name != "":
		return Selector{Kind: SelectByRecord, Name: name, UUID: uuid}, nil
	case uuid != "":
		return ByUUID(uuid), nil
	case name != "":
		return ByName(name), nil
	}
	return Selector{}, &ApiAttributeTypeError{Attribute: "saved query selector", Value: v, Expected: "a map with a non-empty name or uuid"}
}

// GetByMulti resolves sel against candidates: an exact uuid match wins over
// a case-insensitive name match.
func GetByMulti(sel Selector, candidates []SavedQuery) (SavedQuery, error) {
	matchUUID := sel.Kind != SelectByName && sel.UUID != ""
	matchName := sel.Kind != SelectByUUID && sel.Name != ""

	if matchUUID {
		for _, c := range candidates {
			if c.UUID == sel.UUID || (c.ID != "" && c.ID == sel.UUID) {
				return c, nil
			}
		}
	}
	if matchName {
		for _, c := range candidates {
			if strings.EqualFold(c.Name, sel.Name) {
				return c, nil
			}
		}
	}

	return SavedQuery{}, &SavedQueryNotFoundError{Selector: sel.String(), Known: names(candidates)}
}

func names(candidates []SavedQuery) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Name
	}
	return out
}

// Tags returns the ordered union of all candidate tags.
func Tags(candidates []SavedQuery) []string {
	var all []string
	for _, c := range candidates {
		all = append(all, c.Tags...)
	}
	return dedupe(all)
}

// GetByTags returns the candidates having at least one tag that matches one
// of the glob patterns (case-insensitive). No match fails with
// SavedQueryTagsNotFoundError listing the known tags.
func GetByTags(patterns []string, candidates []SavedQuery) ([]SavedQuery, error) {
	if len(patterns) == 0 {
		return nil, &InvalidAttributeError{Attribute: "tags", Value: patterns, Reason: "at least one tag is required"}
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, &InvalidAttributeError{Attribute: "tag pattern", Value: p, Reason: err.Error()}
		}
		globs = append(globs, g)
	}

	var out []SavedQuery
	for _, c := range candidates {
	tags:
		for _, t := range c.Tags {
			for _, g := range globs {
				if g.Match(strings.ToLower(t)) {
					out = append(out, c)
					break tags
				}
			}
		}
	}
	if len(out) == 0 {
		return nil, &SavedQueryTagsNotFoundError{Tags: patterns, ValidTags: Tags(candidates)}
	}
	return out, nil
}
