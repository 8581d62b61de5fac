// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func intp(i int) *int { return &i }

func TestDecodeExpressions_PreservesUnknownKeys(t *testing.T) {
	raw := `[{"field":"specific_data.data.hostname","fieldType":"axonius","compOp":"contains","value":"dc","not":false,"logicOp":"","leftBracket":false,"rightBracket":false,"bracketWeight":0,"filter":"(\"specific_data.data.hostname\" == regex(\"dc\", \"i\"))","filteredAdapters":{"selectedValues":["aws_adapter"]},"context":""}]`

	exprs, err := DecodeExpressions(raw)
	require.NoError(t, err)
	require.Len(t, exprs, 1)
	assert.Equal(t, "contains", exprs[0].CompOp)
	assert.Equal(t, `{"selectedValues":["aws_adapter"]}`, exprs[0].Extra["filteredAdapters"])
	assert.Equal(t, `""`, exprs[0].Extra["context"])

	out, err := EncodeExpressions(exprs)
	require.NoError(t, err)
	assert.Equal(t, "aws_adapter", gjson.Get(out, "0.filteredAdapters.selectedValues.0").String())
	assert.True(t, gjson.Get(out, "0.context").Exists())
	assert.False(t, gjson.Get(out, "0.i").Exists(), "first expression must not carry an index")
}

func TestDecodeExpressions_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		path string
	}{
		{name: "not an array", raw: `{"field":"x"}`, path: "expressions"},
		{name: "scalar element", raw: `[{"field":"x"}, 5]`, path: "expressions[1]"},
		{name: "bad children", raw: `[{"field":"x","children":"y"}]`, path: "expressions[0].children"},
		{name: "nested scalar", raw: `[{"children":[{"field":"a"},"b"]}]`, path: "expressions[0].children[1]"},
		{name: "invalid json", raw: `[{]`, path: "expressions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeExpressions(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidExpression))
			var ie *InvalidExpressionError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.path, ie.Path)
		})
	}

	empty, err := DecodeExpressions("null")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestExpression_UnmarshalNonObject(t *testing.T) {
	var e Expression
	err := e.UnmarshalJSON([]byte(`"field"`))
	assert.True(t, errors.Is(err, ErrInvalidExpression))
}

func TestReindex(t *testing.T) {
	in := []Expression{
		{Field: "a", Index: intp(7)},
		{Field: "b", LogicOp: LogicAnd},
		{Field: "c", LogicOp: LogicOr, Index: intp(0), Children: []Expression{
			{Field: "c1", Index: intp(3)},
			{Field: "c2", LogicOp: LogicAnd},
		}},
	}

	out, err := Reindex(in)
	require.NoError(t, err)
	require.NoError(t, ValidateExpressions(out))

	assert.Nil(t, out[0].Index)
	assert.Equal(t, 1, *out[1].Index)
	assert.Equal(t, 2, *out[2].Index)
	assert.Nil(t, out[2].Children[0].Index)
	assert.Equal(t, 1, *out[2].Children[1].Index)

	// input untouched
	assert.Equal(t, 7, *in[0].Index)
	assert.Nil(t, in[1].Index)
}

func TestReindex_Errors(t *testing.T) {
	tests := []struct {
		name  string
		exprs []Expression
	}{
		{name: "first with logic", exprs: []Expression{{Field: "a", LogicOp: LogicAnd}}},
		{name: "later without logic", exprs: []Expression{{Field: "a"}, {Field: "b"}}},
		{name: "unknown logic", exprs: []Expression{{Field: "a"}, {Field: "b", LogicOp: "xor"}}},
		{name: "empty entry", exprs: []Expression{{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reindex(tt.exprs)
			assert.True(t, errors.Is(err, ErrInvalidExpression), "got %v", err)
		})
	}
}

func TestValidateExpressions_Index(t *testing.T) {
	err := ValidateExpressions([]Expression{{Field: "a"}, {Field: "b", LogicOp: LogicAnd, Index: intp(2)}})
	assert.True(t, errors.Is(err, ErrInvalidExpression))

	err = ValidateExpressions([]Expression{{Field: "a", Index: intp(0)}})
	assert.True(t, errors.Is(err, ErrInvalidExpression))

	assert.NoError(t, ValidateExpressions(nil))
}

func TestExpression_Clone(t *testing.T) {
	orig := Expression{
		Field:    "a",
		Index:    intp(1),
		Extra:    map[string]string{"context": `""`},
		Children: []Expression{{Field: "b"}},
	}
	c := orig.Clone()
	*c.Index = 5
	c.Extra["context"] = `"x"`
	c.Children[0].Field = "z"

	assert.Equal(t, 1, *orig.Index)
	assert.Equal(t, `""`, orig.Extra["context"])
	assert.Equal(t, "b", orig.Children[0].Field)
	assert.Nil(t, CloneExpressions(nil))
}

func TestJoinFilters(t *testing.T) {
	got := joinFilters([]Expression{
		{Filter: `("a" == 1)`},
		{Filter: ""},
		{Filter: `and ("b" == 2)`},
	})
	assert.Equal(t, `("a" == 1) and ("b" == 2)`, got)
}

func TestGjsonEscapeKey(t *testing.T) {
	assert.Equal(t, `a\.b\*c`, gjsonEscapeKey("a.b*c"))
}
