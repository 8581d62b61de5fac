// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Sort is the column sort of a view. An empty Field means unsorted.
type Sort struct {
	Field      string
	Descending bool
}

// QueryMeta carries the view query's meta object.
type QueryMeta struct {
	EnforcementFilter *string
	UniqueAdapters    bool
}

// ViewQuery is the query part of a view.
type ViewQuery struct {
	// Filter is the AQL filter string
	Filter string

	// Expressions mirror Filter in the GUI query wizard
	Expressions []Expression

	// OnlyExpressionsFilter is the filter built from Expressions alone
	OnlyExpressionsFilter string

	Search *string
	Meta   QueryMeta
}

// QueryView is the view of a saved query: projected fields, sort, page
// size and query. It is not safe for concurrent use.
type QueryView struct {
	Fields   []string
	Sort     Sort
	PageSize int
	Query    ViewQuery

	// raw is the server document this view was decoded from; keys that are
	// not modeled (colFilters, colExcludedAdapters, ...) are re-emitted from it.
	raw string
}

// FieldsOptions selects how SetFields merges values.
type FieldsOptions struct {
	Append bool
	Remove bool
}

// QueryUpdate describes a query change for SetQuery. Supply either a raw
// Filter (optionally with Expressions) or wizard input, not both.
type QueryUpdate struct {
	Filter      string
	Expressions []Expression

	// WizardEntries are structured wizard entries
	WizardEntries []WizardEntry

	// WizardText holds wizard lines parsed with ParseWizardText
	WizardText []string

	WizardOptions WizardOptions

	// Append combines the new query with the current one instead of replacing it
	Append bool

	// AppendAnd joins with "and" instead of "or"
	AppendAnd bool

	// AppendNot negates the first appended condition
	AppendNot bool
}

// NewQueryView returns an empty view with the default page size.
func NewQueryView() QueryView {
	return QueryView{
		Fields:   []string{},
		PageSize: PageSize20,
		Query:    ViewQuery{Expressions: []Expression{}},
	}
}

// BuildView creates a view from its parts, validating each.
func BuildView(fields []string, sort Sort, pageSize int, query ViewQuery) (QueryView, error) {
	v := NewQueryView()
	if err := v.SetFields(fields, FieldsOptions{}); err != nil {
		return QueryView{}, err
	}
	if err := v.SetSort(sort.Field, sort.Descending); err != nil {
		return QueryView{}, err
	}
	if pageSize == 0 {
		pageSize = PageSize20
	}
	if err := v.SetPageSize(pageSize); err != nil {
		return QueryView{}, err
	}

	exprs, err := Reindex(query.Expressions)
	if err != nil {
		return QueryView{}, err
	}
	v.Query = query
	v.Query.Expressions = exprs
	if v.Query.Filter == "" {
		v.Query.Filter = joinFilters(exprs)
	}
	if v.Query.OnlyExpressionsFilter == "" && len(exprs) > 0 {
		v.Query.OnlyExpressionsFilter = joinFilters(exprs)
	}
	return v, nil
}

// Clone returns a deep copy of v.
func (v QueryView) Clone() QueryView {
	out := v
	out.Fields = append([]string(nil), v.Fields...)
	if out.Fields == nil {
		out.Fields = []string{}
	}
	out.Query.Expressions = CloneExpressions(v.Query.Expressions)
	if v.Query.Search != nil {
		s := *v.Query.Search
		out.Query.Search = &s
	}
	if v.Query.Meta.EnforcementFilter != nil {
		s := *v.Query.Meta.EnforcementFilter
		out.Query.Meta.EnforcementFilter = &s
	}
	return out
}

// SetFields replaces, extends or shrinks the projected fields. Every value
// must be a non-empty string; nothing changes on error.
func (v *QueryView) SetFields(values []string, opts FieldsOptions) error {
	if opts.Append && opts.Remove {
		return &InvalidAttributeError{Attribute: "fields", Value: values, Reason: "append and remove are mutually exclusive"}
	}
	if len(values) == 0 && !opts.Remove {
		return &InvalidAttributeError{Attribute: "fields", Value: values, Reason: "at least one field is required"}
	}
	for i, f := range values {
		if strings.TrimSpace(f) == "" {
			return &InvalidAttributeError{Attribute: "fields", Value: values, Reason: fmt.Sprintf("field %d is empty", i)}
		}
	}

	v.Fields = MergeStrings(v.Fields, values, MergeOptions{Append: opts.Append, Remove: opts.Remove})
	return nil
}

// SetSort sets the sort column. An empty field clears the sort.
func (v *QueryView) SetSort(field string, descending bool) error {
	if field == "" {
		v.Sort = Sort{}
		return nil
	}
	if strings.TrimSpace(field) == "" {
		return &InvalidAttributeError{Attribute: "sort field", Value: fmt.Sprintf("%q", field), Reason: "blank field name"}
	}
	v.Sort = Sort{Field: field, Descending: descending}
	return nil
}

// SetPageSize sets the GUI page size, one of ValidPageSizes.
func (v *QueryView) SetPageSize(n int) error {
	if err := ValidatePageSize(n); err != nil {
		return err
	}
	v.PageSize = n
	return nil
}

// SetQuery replaces the query, or appends to it when u.Append is set.
//
// Appending joins with "or" by default, "and" with AppendAnd; AppendNot
// negates the first appended condition ("F1 and not W and L"), the way the
// GUI wizard joins it. The first appended expression takes the connector,
// all expressions are reindexed, and OnlyExpressionsFilter is rebuilt from
// the expressions. Non-fatal problems
// are returned as warnings; on error the view is unchanged.
func (v *QueryView) SetQuery(u QueryUpdate, wiz *Wizard) ([]Warning, error) {
	var warnings []Warning
	warn := func(format string, args ...any) {
		warnings = append(warnings, &GuiQueryWizardWarning{Message: fmt.Sprintf(format, args...)})
	}

	hasRaw := strings.TrimSpace(u.Filter) != "" || len(u.Expressions) > 0
	hasWiz := u.WizardEntries != nil || u.WizardText != nil

	var (
		filter string
		exprs  []Expression
	)

	switch {
	case hasRaw:
		if hasWiz {
			warn("both a filter and wizard entries supplied, wizard entries ignored")
		}
		var err error
		if exprs, err = Reindex(u.Expressions); err != nil {
			return nil, err
		}
		filter = strings.TrimSpace(u.Filter)
		if filter == "" {
			filter = joinFilters(exprs)
		}
	case hasWiz:
		if wiz == nil {
			wiz = &Wizard{}
		}
		entries := append([]WizardEntry(nil), u.WizardEntries...)
		if u.WizardText != nil {
			parsed, err := ParseWizardText(u.WizardText...)
			if err != nil {
				return nil, err
			}
			entries = append(entries, parsed...)
		}
		if len(entries) == 0 {
			if u.Append {
				warn("no wizard entries to append, query unchanged")
			} else {
				warn("no wizard entries supplied, query unchanged")
			}
			return warnings, nil
		}
		res, err := wiz.Parse(entries, u.WizardOptions)
		if err != nil {
			return nil, err
		}
		filter, exprs = res.Filter, res.Expressions
	default:
		return nil, newAPIError("update query", "no filter, expressions or wizard entries supplied")
	}

	if !u.Append {
		if len(exprs) == 0 {
			warn("query %q has no expressions, GUI query wizard will not display it", filter)
		}
		v.Query.Filter = filter
		v.Query.OnlyExpressionsFilter = joinFilters(exprs)
		v.Query.Expressions = exprs
		return warnings, nil
	}

	if strings.TrimSpace(v.Query.Filter) == "" {
		return nil, newAPIError("update query", "no existing query to append to")
	}
	if filter == "" {
		return nil, newAPIError("update query", "no query supplied to append")
	}

	operand := LogicOr
	if u.AppendAnd {
		operand = LogicAnd
	}
	join := operand
	if u.AppendNot {
		join = operand + " not"
	}

	newFilter := v.Query.Filter + " " + join + " " + filter
	newExprs := CloneExpressions(v.Query.Expressions)

	switch {
	case len(exprs) == 0:
		warn("appending query %q with no expressions, GUI query wizard will not display it", filter)
	case len(newExprs) == 0:
		warn("current query has no expressions, appended expressions dropped, GUI query wizard will not display it")
	default:
		first := exprs[0]
		first.Not = first.Not != u.AppendNot
		first.LogicOp = operand
		if first.Filter != "" {
			first.Filter = join + " " + first.Filter
		}
		exprs[0] = first
		combined, err := Reindex(append(newExprs, exprs...))
		if err != nil {
			return nil, err
		}
		newExprs = combined
	}

	v.Query.Filter = newFilter
	v.Query.OnlyExpressionsFilter = joinFilters(newExprs)
	v.Query.Expressions = newExprs
	return warnings, nil
}

// MarshalJSON encodes the view over the server document it was decoded
// from, so unmodeled keys survive an update.
func (v QueryView) MarshalJSON() ([]byte, error) {
	exprs, err := EncodeExpressions(v.Query.Expressions)
	if err != nil {
		return nil, err
	}
	fields := v.Fields
	if fields == nil {
		fields = []string{}
	}

	b := NewBody(v.raw).
		Set("fields", fields).
		Set("pageSize", v.PageSize).
		Set("sort.field", v.Sort.Field).
		Set("sort.desc", v.Sort.Descending).
		Set("query.filter", v.Query.Filter).
		SetRaw("query.expressions", exprs).
		Set("query.meta.uniqueAdapters", v.Query.Meta.UniqueAdapters)

	if v.Query.OnlyExpressionsFilter != "" {
		b = b.Set("query.onlyExpressionsFilter", v.Query.OnlyExpressionsFilter)
	} else {
		b = b.Delete("query.onlyExpressionsFilter")
	}
	if v.Query.Search != nil {
		b = b.Set("query.search", *v.Query.Search)
	} else {
		b = b.SetRaw("query.search", "null")
	}
	if v.Query.Meta.EnforcementFilter != nil {
		b = b.Set("query.meta.enforcementFilter", *v.Query.Meta.EnforcementFilter)
	} else {
		b = b.SetRaw("query.meta.enforcementFilter", "null")
	}

	return b.Bytes()
}

// UnmarshalJSON decodes a view document.
func (v *QueryView) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeView(string(data))
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// DecodeView decodes a view document as returned by the server.
func DecodeView(raw string) (QueryView, error) {
	if raw == "" || raw == "null" {
		return NewQueryView(), nil
	}
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return QueryView{}, &ApiAttributeTypeError{Attribute: "view", Value: truncateDetail(raw), Expected: "a JSON object"}
	}
	doc := gjson.Parse(raw)

	v := NewQueryView()
	v.raw = raw
	for _, f := range doc.Get("fields").Array() {
		v.Fields = append(v.Fields, f.String())
	}
	if ps := doc.Get("pageSize"); ps.Exists() {
		v.PageSize = int(ps.Int())
	}
	v.Sort = Sort{
		Field:      doc.Get("sort.field").String(),
		Descending: doc.Get("sort.desc").Bool(),
	}

	q := doc.Get("query")
	v.Query.Filter = q.Get("filter").String()
	v.Query.OnlyExpressionsFilter = q.Get("onlyExpressionsFilter").String()
	exprs, err := DecodeExpressions(q.Get("expressions").Raw)
	if err != nil {
		return QueryView{}, err
	}
	v.Query.Expressions = exprs
	if s := q.Get("search"); s.Exists() && s.Type != gjson.Null {
		str := s.String()
		v.Query.Search = &str
	}
	if ef := q.Get("meta.enforcementFilter"); ef.Exists() && ef.Type != gjson.Null {
		str := ef.String()
		v.Query.Meta.EnforcementFilter = &str
	}
	v.Query.Meta.UniqueAdapters = q.Get("meta.uniqueAdapters").Bool()
	return v, nil
}
