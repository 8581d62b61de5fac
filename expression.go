// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Logical connectors between expressions
const (
	LogicAnd = "and"
	LogicOr  = "or"
)

// expressionKeys are the wire keys modeled by Expression. Everything else
// is carried verbatim in Expression.Extra.
var expressionKeys = map[string]bool{
	"field":         true,
	"fieldType":     true,
	"compOp":        true,
	"value":         true,
	"not":           true,
	"logicOp":       true,
	"i":             true,
	"leftBracket":   true,
	"rightBracket":  true,
	"bracketWeight": true,
	"children":      true,
	"filter":        true,
}

// Expression is one condition, or one nested group, of a query built in the
// GUI query wizard.
//
// The first expression of a sequence has no LogicOp and no Index; every later
// expression carries the connector to its predecessor and Index equal to its
// position. Use Reindex after inserting, removing or reordering entries.
type Expression struct {
	Field         string       `json:"field"`
	FieldType     string       `json:"fieldType"`
	CompOp        string       `json:"compOp"`
	Value         any          `json:"value"`
	Not           bool         `json:"not"`
	LogicOp       string       `json:"logicOp"`
	Index         *int         `json:"i,omitempty"`
	LeftBracket   bool         `json:"leftBracket"`
	RightBracket  bool         `json:"rightBracket"`
	BracketWeight int          `json:"bracketWeight"`
	Children      []Expression `json:"children,omitempty"`
	Filter        string       `json:"filter"`

	// Extra holds raw JSON of wire keys this type does not model
	// (filteredAdapters, context, module, ...).
	Extra map[string]string `json:"-"`
}

type expressionAlias Expression

// MarshalJSON encodes the modeled keys and re-inserts the unmodeled ones.
func (e Expression) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(expressionAlias(e))
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return data, nil
	}

	keys := make([]string, 0, len(e.Extra))
	for k := range e.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if expressionKeys[k] {
			continue
		}
		data, err = sjson.SetRawBytes(data, gjsonEscapeKey(k), []byte(e.Extra[k]))
		if err != nil {
			return nil, fmt.Errorf("expression key %q: %w", k, err)
		}
	}
	return data, nil
}

// UnmarshalJSON decodes an expression object. Anything but a JSON object
// fails with InvalidExpressionError.
func (e *Expression) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return &InvalidExpressionError{Path: "expression", Reason: "not a JSON object"}
	}

	var a expressionAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return &InvalidExpressionError{Path: "expression", Reason: err.Error()}
	}

	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		if !expressionKeys[key.String()] {
			if a.Extra == nil {
				a.Extra = map[string]string{}
			}
			a.Extra[key.String()] = value.Raw
		}
		return true
	})

	*e = Expression(a)
	return nil
}

// Clone returns a deep copy of e.
func (e Expression) Clone() Expression {
	out := e
	if e.Index != nil {
		i := *e.Index
		out.Index = &i
	}
	if e.Children != nil {
		out.Children = CloneExpressions(e.Children)
	}
	if e.Extra != nil {
		out.Extra = make(map[string]string, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// CloneExpressions deep copies a sequence of expressions.
func CloneExpressions(exprs []Expression) []Expression {
	if exprs == nil {
		return nil
	}
	out := make([]Expression, len(exprs))
	for i, e := range exprs {
		out[i] = e.Clone()
	}
	return out
}

// DecodeExpressions decodes a wire JSON array of expressions. An element that
// is not a JSON object fails with InvalidExpressionError naming its position.
func DecodeExpressions(raw string) ([]Expression, error) {
	if raw == "" || raw == "null" {
		return []Expression{}, nil
	}
	if !gjson.Valid(raw) {
		return nil, &InvalidExpressionError{Path: "expressions", Reason: "invalid JSON"}
	}
	arr := gjson.Parse(raw)
	if !arr.IsArray() {
		return nil, &InvalidExpressionError{Path: "expressions", Reason: "not a JSON array"}
	}
	if err := checkExpressionObjects("expressions", arr); err != nil {
		return nil, err
	}

	exprs := []Expression{}
	if err := json.Unmarshal([]byte(raw), &exprs); err != nil {
		return nil, &InvalidExpressionError{Path: "expressions", Reason: err.Error()}
	}
	return exprs, nil
}

func checkExpressionObjects(path string, arr gjson.Result) error {
	var err error
	i := 0
	arr.ForEach(func(_, v gjson.Result) bool {
		p := fmt.Sprintf("%s[%d]", path, i)
		i++
		if !v.IsObject() {
			err = &InvalidExpressionError{Path: p, Reason: fmt.Sprintf("expected an object, got %s", v.Type)}
			return false
		}
		if children := v.Get("children"); children.Exists() && children.Type != gjson.Null {
			if !children.IsArray() {
				err = &InvalidExpressionError{Path: p + ".children", Reason: "not a JSON array"}
				return false
			}
			if err = checkExpressionObjects(p+".children", children); err != nil {
				return false
			}
		}
		return true
	})
	return err
}

// EncodeExpressions encodes expressions to a wire JSON array.
func EncodeExpressions(exprs []Expression) (string, error) {
	if exprs == nil {
		exprs = []Expression{}
	}
	data, err := json.Marshal(exprs)
	if err != nil {
		return "", fmt.Errorf("encoding expressions: %w", err)
	}
	return string(data), nil
}

// Reindex returns a copy of exprs with positional indexes renumbered: the
// first entry has no index and entry n has index n. Children are renumbered
// with the same rule. Malformed entries fail with InvalidExpressionError.
func Reindex(exprs []Expression) ([]Expression, error) {
	out := CloneExpressions(exprs)
	if out == nil {
		out = []Expression{}
	}
	if err := reindexAt("expressions", out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateExpressions checks exprs, including the positional index rule,
// without modifying them.
func ValidateExpressions(exprs []Expression) error {
	return reindexAt("expressions", exprs, false)
}

func reindexAt(path string, exprs []Expression, assign bool) error {
	for pos := range exprs {
		e := &exprs[pos]
		p := fmt.Sprintf("%s[%d]", path, pos)

		if e.Field == "" && len(e.Children) == 0 {
			return &InvalidExpressionError{Path: p, Reason: "expression has neither a field nor children"}
		}

		switch e.LogicOp {
		case "", LogicAnd, LogicOr:
		default:
			return &InvalidExpressionError{Path: p, Reason: fmt.Sprintf("unknown logic operator %q (valid values: and, or)", e.LogicOp)}
		}

		if pos == 0 {
			if e.LogicOp != "" {
				return &InvalidExpressionError{Path: p, Reason: "first expression cannot carry a logic operator"}
			}
			if assign {
				e.Index = nil
			} else if e.Index != nil {
				return &InvalidExpressionError{Path: p, Reason: "first expression cannot carry an index"}
			}
		} else {
			if e.LogicOp == "" {
				return &InvalidExpressionError{Path: p, Reason: "expression after the first needs a logic operator"}
			}
			if assign {
				i := pos
				e.Index = &i
			} else if e.Index == nil || *e.Index != pos {
				return &InvalidExpressionError{Path: p, Reason: fmt.Sprintf("index must be %d", pos)}
			}
		}

		if len(e.Children) > 0 {
			if err := reindexAt(p+".children", e.Children, assign); err != nil {
				return err
			}
		}
	}
	return nil
}

// joinFilters concatenates the per-expression filters of a sequence. Each
// filter already carries its connector prefix.
func joinFilters(exprs []Expression) string {
	out := ""
	for _, e := range exprs {
		if e.Filter == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += e.Filter
	}
	return out
}

// gjsonEscapeKey escapes path metacharacters so k is treated as one key.
func gjsonEscapeKey(k string) string {
	out := make([]byte, 0, len(k))
	for i := 0; i < len(k); i++ {
		switch k[i] {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			out = append(out, '\\')
		}
		out = append(out, k[i])
	}
	return string(out)
}
