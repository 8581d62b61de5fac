// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"errors"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	filterHostA = `("specific_data.data.hostname" == regex("a", "i"))`
	filterOSWin = `("specific_data.data.os.type" == "Windows")`
)

// wizardView returns a view whose query was built by the wizard.
func wizardView(t *testing.T, lines ...string) QueryView {
	t.Helper()
	v := NewQueryView()
	_, err := v.SetQuery(QueryUpdate{WizardText: lines}, NewWizard(testSchema()))
	require.NoError(t, err)
	return v
}

func TestQueryView_SetFields(t *testing.T) {
	tests := []struct {
		name    string
		current []string
		values  []string
		opts    FieldsOptions
		want    []string
	}{
		{name: "replace", current: []string{"a", "b"}, values: []string{"c", "c"}, want: []string{"c"}},
		{name: "replace idempotent", current: []string{"a", "b"}, values: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "append union", current: []string{"a", "b"}, values: []string{"b", "c"}, opts: FieldsOptions{Append: true}, want: []string{"a", "b", "c"}},
		{name: "remove difference", current: []string{"a", "b", "c"}, values: []string{"b", "x"}, opts: FieldsOptions{Remove: true}, want: []string{"a", "c"}},
		{name: "remove nothing", current: []string{"a"}, opts: FieldsOptions{Remove: true}, want: []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewQueryView()
			v.Fields = tt.current
			require.NoError(t, v.SetFields(tt.values, tt.opts))
			assert.Equal(t, tt.want, v.Fields)
		})
	}
}

func TestQueryView_SetFieldsErrors(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		opts   FieldsOptions
	}{
		{name: "append and remove", values: []string{"a"}, opts: FieldsOptions{Append: true, Remove: true}},
		{name: "empty replace", values: nil},
		{name: "blank entry", values: []string{"a", " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewQueryView()
			v.Fields = []string{"keep"}
			err := v.SetFields(tt.values, tt.opts)
			assert.True(t, errors.Is(err, ErrInvalidAttribute), "got %v", err)
			assert.Equal(t, []string{"keep"}, v.Fields)
		})
	}
}

func TestQueryView_SetSortAndPageSize(t *testing.T) {
	v := NewQueryView()
	assert.Equal(t, PageSize20, v.PageSize)

	require.NoError(t, v.SetSort(fHostname, true))
	assert.Equal(t, Sort{Field: fHostname, Descending: true}, v.Sort)
	assert.Error(t, v.SetSort("   ", false))
	require.NoError(t, v.SetSort("", false))
	assert.Equal(t, Sort{}, v.Sort)

	require.NoError(t, v.SetPageSize(PageSize100))
	err := v.SetPageSize(999)
	assert.True(t, errors.Is(err, ErrInvalidAttribute))
	assert.Equal(t, PageSize100, v.PageSize)
}

func TestQueryView_SetQueryReplace(t *testing.T) {
	v := wizardView(t, "simple hostname contains a")
	assert.Equal(t, filterHostA, v.Query.Filter)
	assert.Equal(t, filterHostA, v.Query.OnlyExpressionsFilter)
	require.Len(t, v.Query.Expressions, 1)

	// replacing with the same input is idempotent
	before := v.Clone()
	_, err := v.SetQuery(QueryUpdate{WizardText: []string{"simple hostname contains a"}}, NewWizard(testSchema()))
	require.NoError(t, err)
	assert.Equal(t, before.Query, v.Query)
}

func TestQueryView_SetQueryRawFilter(t *testing.T) {
	v := NewQueryView()
	warnings, err := v.SetQuery(QueryUpdate{
		Filter:     `("x" == 1)`,
		WizardText: []string{"simple hostname exists"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, warnings, 2, "raw wins over wizard, and the raw filter has no expressions")
	assert.Contains(t, warnings[0].Message, "wizard entries ignored")
	assert.Contains(t, warnings[1].Message, "no expressions")
	assert.Equal(t, `("x" == 1)`, v.Query.Filter)
	assert.Empty(t, v.Query.Expressions)
}

func TestQueryView_SetQueryAppend(t *testing.T) {
	tests := []struct {
		name       string
		update     QueryUpdate
		wantFilter string
		wantFirst  Expression
	}{
		{
			name:       "default or",
			update:     QueryUpdate{WizardText: []string{"simple os.type equals Windows"}, Append: true},
			wantFilter: filterHostA + " or " + filterOSWin,
			wantFirst:  Expression{LogicOp: LogicOr, Filter: "or " + filterOSWin},
		},
		{
			name:       "and",
			update:     QueryUpdate{WizardText: []string{"simple os.type equals Windows"}, Append: true, AppendAnd: true},
			wantFilter: filterHostA + " and " + filterOSWin,
			wantFirst:  Expression{LogicOp: LogicAnd, Filter: "and " + filterOSWin},
		},
		{
			name:       "and not",
			update:     QueryUpdate{WizardText: []string{"simple os.type equals Windows"}, Append: true, AppendAnd: true, AppendNot: true},
			wantFilter: filterHostA + " and not " + filterOSWin,
			wantFirst:  Expression{LogicOp: LogicAnd, Not: true, Filter: "and not " + filterOSWin},
		},
		{
			name:       "or not on negated entry",
			update:     QueryUpdate{WizardText: []string{"simple !os.type equals Windows"}, Append: true, AppendNot: true},
			wantFilter: filterHostA + " or not not " + filterOSWin,
			wantFirst:  Expression{LogicOp: LogicOr, Not: false, Filter: "or not not " + filterOSWin},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := wizardView(t, "simple hostname contains a")
			warnings, err := v.SetQuery(tt.update, NewWizard(testSchema()))
			require.NoError(t, err)
			assert.Empty(t, warnings)

			assert.Equal(t, tt.wantFilter, v.Query.Filter)
			assert.Equal(t, tt.wantFilter, v.Query.OnlyExpressionsFilter)
			require.Len(t, v.Query.Expressions, 2)

			appended := v.Query.Expressions[1]
			assert.Equal(t, tt.wantFirst.LogicOp, appended.LogicOp)
			assert.Equal(t, tt.wantFirst.Not, appended.Not)
			assert.Equal(t, tt.wantFirst.Filter, appended.Filter)
			require.NoError(t, ValidateExpressions(v.Query.Expressions))
		})
	}
}

func TestQueryView_SetQueryAppendNotGroup(t *testing.T) {
	tests := []struct {
		name       string
		update     QueryUpdate
		wantFilter string
	}{
		{
			name: "and not",
			update: QueryUpdate{
				WizardText: []string{"simple os.type equals Windows", "simple last_seen last_days 1"},
				Append:     true,
				AppendAnd:  true,
				AppendNot:  true,
			},
			wantFilter: filterHostA + ` and not ` + filterOSWin + ` and ("specific_data.data.last_seen" >= date("NOW - 1d"))`,
		},
		{
			name: "or not with or entry",
			update: QueryUpdate{
				WizardText: []string{"simple os.type equals Windows", "or simple hostname exists"},
				Append:     true,
				AppendNot:  true,
			},
			wantFilter: filterHostA + ` or not ` + filterOSWin + ` or ("specific_data.data.hostname" == ({"$exists":true,"$ne":""}))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := wizardView(t, "simple hostname contains a")
			_, err := v.SetQuery(tt.update, NewWizard(testSchema()))
			require.NoError(t, err)

			assert.Equal(t, tt.wantFilter, v.Query.Filter)
			assert.Equal(t, v.Query.Filter, joinFilters(v.Query.Expressions), "expressions must render the filter")
			assert.Equal(t, v.Query.Filter, v.Query.OnlyExpressionsFilter)

			require.Len(t, v.Query.Expressions, 3)
			assert.True(t, v.Query.Expressions[1].Not)
			assert.False(t, v.Query.Expressions[2].Not)
			assert.Equal(t, 2, *v.Query.Expressions[2].Index)
			require.NoError(t, ValidateExpressions(v.Query.Expressions))
		})
	}
}

func TestQueryView_OnlyExpressionsFilterFollowsExpressions(t *testing.T) {
	v := NewQueryView()
	_, err := v.SetQuery(QueryUpdate{Filter: `("x" == 1)`}, nil)
	require.NoError(t, err)
	assert.Equal(t, `("x" == 1)`, v.Query.Filter)
	assert.Empty(t, v.Query.OnlyExpressionsFilter)

	_, err = v.SetQuery(QueryUpdate{WizardText: []string{"simple hostname exists"}, Append: true}, nil)
	require.NoError(t, err)
	assert.Empty(t, v.Query.OnlyExpressionsFilter)
}

func TestQueryView_SetQueryEdgeCases(t *testing.T) {
	t.Run("nothing supplied", func(t *testing.T) {
		v := NewQueryView()
		_, err := v.SetQuery(QueryUpdate{}, nil)
		var apiErr *APIError
		assert.True(t, errors.As(err, &apiErr))
	})

	t.Run("empty wizard input leaves view unchanged", func(t *testing.T) {
		v := wizardView(t, "simple hostname contains a")
		before := v.Clone()
		warnings, err := v.SetQuery(QueryUpdate{WizardText: []string{"# only a comment"}, Append: true}, nil)
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Equal(t, before.Query, v.Query)
	})

	t.Run("append to empty query", func(t *testing.T) {
		v := NewQueryView()
		_, err := v.SetQuery(QueryUpdate{WizardText: []string{"simple hostname exists"}, Append: true}, nil)
		assert.Error(t, err)
	})

	t.Run("append onto filter without expressions", func(t *testing.T) {
		v := NewQueryView()
		v.Query.Filter = `("x" == 1)`
		warnings, err := v.SetQuery(QueryUpdate{WizardText: []string{"simple hostname exists"}, Append: true}, nil)
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Empty(t, v.Query.Expressions)
		assert.Equal(t, `("x" == 1) or ("hostname" == ({"$exists":true,"$ne":""}))`, v.Query.Filter)
	})

	t.Run("invalid wizard line leaves view unchanged", func(t *testing.T) {
		v := wizardView(t, "simple hostname contains a")
		before := v.Clone()
		_, err := v.SetQuery(QueryUpdate{WizardText: []string{"simple hostname bogus x"}}, NewWizard(testSchema()))
		assert.Error(t, err)
		assert.Equal(t, before, v)
	})
}

func TestQueryView_JSONPreservesUnknownKeys(t *testing.T) {
	raw := `{"fields":["specific_data.data.hostname"],"pageSize":50,"sort":{"field":"","desc":true},"colFilters":{"x":"y"},"query":{"filter":"(\"a\" == 1)","expressions":[],"search":null,"meta":{"enforcementFilter":null,"uniqueAdapters":false}}}`

	var v QueryView
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	assert.Equal(t, 50, v.PageSize)
	assert.True(t, v.Sort.Descending)
	assert.Nil(t, v.Query.Search)

	require.NoError(t, v.SetFields([]string{fIPs}, FieldsOptions{Append: true}))
	out, err := json.Marshal(v)
	require.NoError(t, err)

	doc := string(out)
	assert.Equal(t, "y", gjson.Get(doc, "colFilters.x").String())
	assert.Equal(t, fIPs, gjson.Get(doc, "fields.1").String())
	assert.Equal(t, gjson.Null, gjson.Get(doc, "query.search").Type)
	assert.Equal(t, gjson.Null, gjson.Get(doc, "query.meta.enforcementFilter").Type)
	assert.False(t, gjson.Get(doc, "query.onlyExpressionsFilter").Exists())
}

func TestDecodeView_Errors(t *testing.T) {
	_, err := DecodeView(`[1,2]`)
	assert.True(t, errors.Is(err, ErrAttributeType))

	_, err = DecodeView(`{"query":{"expressions":[1]}}`)
	assert.True(t, errors.Is(err, ErrInvalidExpression))

	v, err := DecodeView("")
	require.NoError(t, err)
	assert.Equal(t, PageSize20, v.PageSize)
}

func TestBuildView(t *testing.T) {
	v, err := BuildView([]string{fHostname}, Sort{Field: fHostname}, 0, ViewQuery{
		Expressions: []Expression{
			{Field: fHostname, Filter: filterHostA},
			{Field: fOSType, LogicOp: LogicAnd, Filter: "and " + filterOSWin},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, PageSize20, v.PageSize)
	assert.Equal(t, filterHostA+" and "+filterOSWin, v.Query.Filter)
	assert.Equal(t, 1, *v.Query.Expressions[1].Index)

	_, err = BuildView(nil, Sort{}, 0, ViewQuery{})
	assert.Error(t, err)
	_, err = BuildView([]string{"a"}, Sort{}, 999, ViewQuery{})
	assert.Error(t, err)
}
