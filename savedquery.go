// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// JSON:API resource types of saved query documents
const (
	SavedQueryResourceType       = "views_schema"
	SavedQueryDetailResourceType = "views_details_schema"
)

// Query types
const (
	QueryTypeSaved = "saved"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"Mon, 02 Jan 2006 15:04:05 MST",
}

// SavedQuery is a persisted, named view of an asset type.
//
// UUID, Predefined, IsReferenced, UserID, UpdatedBy and LastUpdated are
// managed by the server and never sent on update.
type SavedQuery struct {
	ID           string     `json:"id"`
	UUID         string     `json:"uuid"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Tags         []string   `json:"tags"`
	Private      bool       `json:"private"`
	AlwaysCached bool       `json:"always_cached"`
	AssetScope   bool       `json:"asset_scope"`
	Predefined   bool       `json:"predefined"`
	IsReferenced bool       `json:"is_referenced"`
	ScopeReady   bool       `json:"is_asset_scope_query_ready"`
	QueryType    string     `json:"query_type"`
	UserID       string     `json:"user_id,omitempty"`
	UpdatedBy    string     `json:"updated_by,omitempty"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
	View         QueryView  `json:"view"`
}

// Filter returns the AQL filter of the view.
func (sq *SavedQuery) Filter() string { return sq.View.Query.Filter }

// SetName renames the saved query. The name must be a non-empty string
// without leading or trailing whitespace.
func (sq *SavedQuery) SetName(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	sq.Name = name
	return nil
}

func validateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return &ApiAttributeTypeError{Attribute: "name", Value: name, Expected: "a non-empty string"}
	}
	if trimmed != name {
		return &InvalidAttributeError{Attribute: "name", Value: fmt.Sprintf("%q", name), Reason: "leading or trailing whitespace"}
	}
	return nil
}

// SetDescription sets the description; empty clears it.
func (sq *SavedQuery) SetDescription(description string) error {
	sq.Description = description
	return nil
}

// SetTags replaces the tags. Every tag must be a non-empty string; order is
// kept and duplicates collapse.
func (sq *SavedQuery) SetTags(tags []string) error {
	if err := validateTags(tags); err != nil {
		return err
	}
	sq.Tags = MergeStrings(nil, tags, MergeOptions{})
	return nil
}

func validateTags(tags []string) error {
	for i, t := range tags {
		if strings.TrimSpace(t) == "" {
			return &ApiAttributeTypeError{Attribute: fmt.Sprintf("tags[%d]", i), Value: t, Expected: "a non-empty string"}
		}
	}
	return nil
}

// Flags returns a snapshot of the boolean state flags.
func (sq *SavedQuery) Flags() map[string]bool {
	return map[string]bool{
		"private":                    sq.Private,
		"always_cached":              sq.AlwaysCached,
		"asset_scope":                sq.AssetScope,
		"predefined":                 sq.Predefined,
		"is_referenced":              sq.IsReferenced,
		"is_asset_scope_query_ready": sq.ScopeReady,
	}
}

// Clone returns a deep copy of sq.
func (sq SavedQuery) Clone() SavedQuery {
	out := sq
	out.Tags = append([]string(nil), sq.Tags...)
	out.View = sq.View.Clone()
	if sq.LastUpdated != nil {
		t := *sq.LastUpdated
		out.LastUpdated = &t
	}
	return out
}

// UpdateAttributes returns the attributes sent on update: name, view,
// query_type, always_cached, private, description and tags.
func (sq *SavedQuery) UpdateAttributes() Body {
	view, err := sq.View.MarshalJSON()
	if err != nil {
		return Body{err: fmt.Errorf("encoding view: %w", err)}
	}
	queryType := sq.QueryType
	if queryType == "" {
		queryType = QueryTypeSaved
	}
	tags := sq.Tags
	if tags == nil {
		tags = []string{}
	}
	return Body{}.
		Set("name", sq.Name).
		SetRaw("view", string(view)).
		Set("query_type", queryType).
		Set("always_cached", sq.AlwaysCached).
		Set("private", sq.Private).
		Set("description", sq.Description).
		Set("tags", tags)
}

// DecodeSavedQuery decodes a JSON:API resource object (or a bare attributes
// object). UUID defaults to the resource id.
func DecodeSavedQuery(resource string) (SavedQuery, error) {
	if !gjson.Valid(resource) || !gjson.Parse(resource).IsObject() {
		return SavedQuery{}, &ApiAttributeTypeError{Attribute: "saved query", Value: truncateDetail(resource), Expected: "a JSON object"}
	}
	doc := gjson.Parse(resource)
	attrs := doc
	if a := doc.Get("attributes"); a.IsObject() {
		attrs = a
	}

	view, err := DecodeView(attrs.Get("view").Raw)
	if err != nil {
		return SavedQuery{}, fmt.Errorf("decoding saved query view: %w", err)
	}

	sq := SavedQuery{
		ID:           doc.Get("id").String(),
		UUID:         attrs.Get("uuid").String(),
		Name:         attrs.Get("name").String(),
		Description:  attrs.Get("description").String(),
		Tags:         []string{},
		Private:      attrs.Get("private").Bool(),
		AlwaysCached: attrs.Get("always_cached").Bool(),
		AssetScope:   attrs.Get("asset_scope").Bool(),
		Predefined:   attrs.Get("predefined").Bool(),
		IsReferenced: attrs.Get("is_referenced").Bool(),
		ScopeReady:   attrs.Get("is_asset_scope_query_ready").Bool(),
		QueryType:    attrs.Get("query_type").String(),
		UserID:       attrs.Get("user_id").String(),
		UpdatedBy:    attrs.Get("updated_by").String(),
		View:         view,
	}
	if sq.ID == "" {
		sq.ID = attrs.Get("id").String()
	}
	if sq.UUID == "" {
		sq.UUID = sq.ID
	}
	if sq.ID == "" {
		sq.ID = sq.UUID
	}
	for _, t := range attrs.Get("tags").Array() {
		sq.Tags = append(sq.Tags, t.String())
	}
	if ts := attrs.Get("last_updated").String(); ts != "" {
		if t, ok := parseTimestamp(ts); ok {
			sq.LastUpdated = &t
		}
	}
	return sq, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// SavedQueryCreate is the create request of a saved query.
type SavedQueryCreate struct {
	Name         string
	Description  string
	Tags         []string
	Private      bool
	AlwaysCached bool
	AssetScope   bool
	View         QueryView
}

// Validate checks the create request.
func (c *SavedQueryCreate) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if err := validateTags(c.Tags); err != nil {
		return err
	}
	if c.View.PageSize != 0 {
		if err := ValidatePageSize(c.View.PageSize); err != nil {
			return err
		}
	}
	return nil
}

// Attributes returns the create attributes.
func (c *SavedQueryCreate) Attributes() Body {
	view, err := c.View.MarshalJSON()
	if err != nil {
		return Body{err: fmt.Errorf("encoding view: %w", err)}
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return Body{}.
		Set("name", c.Name).
		Set("description", c.Description).
		Set("tags", tags).
		Set("private", c.Private).
		Set("always_cached", c.AlwaysCached).
		Set("asset_scope", c.AssetScope).
		SetRaw("view", string(view))
}

// Record returns the saved query the create request describes, without
// server-managed attributes.
func (c *SavedQueryCreate) Record() SavedQuery {
	return SavedQuery{
		Name:         c.Name,
		Description:  c.Description,
		Tags:         append([]string{}, c.Tags...),
		Private:      c.Private,
		AlwaysCached: c.AlwaysCached,
		AssetScope:   c.AssetScope,
		QueryType:    QueryTypeSaved,
		View:         c.View.Clone(),
	}
}
