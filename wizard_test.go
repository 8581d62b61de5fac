// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizard_NegatedLastDays(t *testing.T) {
	res, err := NewWizard(testSchema()).ParseText(WizardOptions{}, "simple !last_seen last_days 1")
	require.NoError(t, err)

	assert.Equal(t, `not ("specific_data.data.last_seen" >= date("NOW - 1d"))`, res.Filter)
	require.Len(t, res.Expressions, 1)
	e := res.Expressions[0]
	assert.Equal(t, fLastSeen, e.Field)
	assert.Equal(t, "days", e.CompOp)
	assert.Equal(t, 1, e.Value)
	assert.True(t, e.Not)
	assert.Empty(t, e.LogicOp)
	assert.Nil(t, e.Index)
	assert.Equal(t, wizardFieldType, e.FieldType)
}

func TestWizard_Operators(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{line: "simple hostname exists", want: `("specific_data.data.hostname" == ({"$exists":true,"$ne":""}))`},
		{line: "simple hostname contains a.b", want: `("specific_data.data.hostname" == regex("a\\.b", "i"))`},
		{line: `simple hostname equals "dc 01"`, want: `("specific_data.data.hostname" == "dc 01")`},
		{line: "simple hostname startswith dc", want: `("specific_data.data.hostname" == regex("^dc", "i"))`},
		{line: "simple hostname endswith .local", want: `("specific_data.data.hostname" == regex("\\.local$", "i"))`},
		{line: "simple hostname regex ^dc[0-9]+", want: `("specific_data.data.hostname" == regex("^dc[0-9]+", "i"))`},
		{line: "simple hostname regex ^(?=dc)[a-z]+", want: `("specific_data.data.hostname" == regex("^(?=dc)[a-z]+", "i"))`},
		{line: "simple os.type in Windows, Linux", want: `("specific_data.data.os.type" in ["Windows", "Linux"])`},
		{line: "simple network_interfaces.ips count_equals 2", want: `("specific_data.data.network_interfaces.ips" == size(2))`},
		{line: "simple last_seen last_hours 6", want: `("specific_data.data.last_seen" >= date("NOW - 6h"))`},
		{line: "simple last_seen next_days 3", want: `("specific_data.data.last_seen" <= date("NOW + 3d"))`},
		{line: "simple last_seen before 2024-01-31", want: `("specific_data.data.last_seen" < date("2024-01-31"))`},
		{line: "simple last_seen after 2024-01-31T10:00:00Z", want: `("specific_data.data.last_seen" > date("2024-01-31T10:00:00Z"))`},
		{line: "simple adapters greater_than 1.5", want: `("adapters" > 1.5)`},
		{line: "simple adapters is_true", want: `("adapters" == true)`},
	}
	w := NewWizard(testSchema())
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			res, err := w.ParseText(WizardOptions{}, tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Filter)
		})
	}
}

func TestWizard_Connectors(t *testing.T) {
	res, err := NewWizard(testSchema()).ParseText(WizardOptions{},
		"# stale windows hosts",
		"simple hostname contains a\n\n or simple !os.type equals Linux",
		"simple last_seen last_days 30",
	)
	require.NoError(t, err)
	require.Len(t, res.Expressions, 3)

	assert.Equal(t,
		`("specific_data.data.hostname" == regex("a", "i")) or not ("specific_data.data.os.type" == "Linux") and ("specific_data.data.last_seen" >= date("NOW - 30d"))`,
		res.Filter)
	assert.Equal(t, LogicOr, res.Expressions[1].LogicOp)
	assert.Equal(t, LogicAnd, res.Expressions[2].LogicOp)
	assert.Equal(t, 1, *res.Expressions[1].Index)
	assert.Equal(t, 2, *res.Expressions[2].Index)
	require.NoError(t, ValidateExpressions(res.Expressions))
}

func TestWizard_LeadingConnectorIgnored(t *testing.T) {
	res, err := NewWizard(nil).ParseText(WizardOptions{}, "or simple hostname exists")
	require.NoError(t, err)
	assert.Empty(t, res.Expressions[0].LogicOp)
	assert.Equal(t, `("hostname" == ({"$exists":true,"$ne":""}))`, res.Filter)
}

func TestWizard_SkipFieldValidation(t *testing.T) {
	res, err := NewWizard(testSchema()).ParseText(WizardOptions{SkipFieldValidation: true}, "simple custom.field equals x")
	require.NoError(t, err)
	assert.Equal(t, "custom.field", res.Expressions[0].Field)
}

func TestWizard_Errors(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		sentinel error
		contains string
	}{
		{name: "too few tokens", line: "simple hostname", contains: "line 1"},
		{name: "bad quoting", line: `simple hostname equals "dc`, contains: "line 1"},
		{name: "unknown type", line: "complex hostname exists", contains: "unsupported entry type"},
		{name: "unknown operator", line: "simple hostname like x", contains: "unknown operator"},
		{name: "unknown field", line: "simple hostnam exists", sentinel: ErrUnknownField},
		{name: "unary with value", line: "simple hostname exists yes", contains: "takes no value"},
		{name: "missing value", line: "simple hostname equals", contains: "needs a value"},
		{name: "bad number", line: "simple last_seen last_days many", contains: "positive integer"},
		{name: "bad date", line: "simple last_seen before yesterday", contains: "expected a date"},
		{name: "empty in list", line: `simple os.type in ","`, contains: "comma separated"},
	}
	w := NewWizard(testSchema())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.ParseText(WizardOptions{}, tt.line)
			require.Error(t, err)
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
				return
			}
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %T", err)
			assert.Equal(t, "parse wizard", apiErr.Operation)
			assert.Contains(t, apiErr.Message, tt.contains)
		})
	}
}

func TestWizardEntryFromMap(t *testing.T) {
	e, err := WizardEntryFromMap(map[string]any{
		"field":    "hostname",
		"operator": "count_equals",
		"value":    3,
		"not":      true,
		"logic_op": "or",
	})
	require.NoError(t, err)
	assert.Equal(t, WizardEntry{Type: EntrySimple, Field: "hostname", Operator: "count_equals", Value: "3", Not: true, LogicOp: "or"}, e)

	_, err = WizardEntryFromMap(map[string]any{"field": []string{"a"}})
	assert.True(t, errors.Is(err, ErrAttributeType))

	_, err = WizardEntryFromMap(map[string]any{"not": "yes"})
	assert.True(t, errors.Is(err, ErrAttributeType))
}

func TestWizard_ParseEntries(t *testing.T) {
	res, err := NewWizard(testSchema()).Parse([]WizardEntry{
		{Field: "hostname", Operator: "exists"},
		{Field: "os.type", Operator: "equals", Value: "Windows", LogicOp: "OR"},
	}, WizardOptions{})
	require.NoError(t, err)
	assert.Equal(t, LogicOr, res.Expressions[1].LogicOp)

	_, err = NewWizard(nil).Parse([]WizardEntry{
		{Field: "a", Operator: "exists"},
		{Field: "b", Operator: "exists", LogicOp: "xor"},
	}, WizardOptions{})
	assert.Error(t, err)

	empty, err := NewWizard(nil).Parse(nil, WizardOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty.Filter)
	assert.Empty(t, empty.Expressions)
}

func TestOperatorNames(t *testing.T) {
	names := OperatorNames()
	assert.Len(t, names, len(Operators))
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "last_days")
}
