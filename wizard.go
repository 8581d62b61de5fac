// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
)

// EntrySimple is the only supported wizard entry type.
const EntrySimple = "simple"

// wizardFieldType is the fieldType the GUI stores for aggregated fields.
const wizardFieldType = "axonius"

// Operator describes one wizard operator and how it renders in AQL.
type Operator struct {
	// Name is the wizard keyword
	Name string

	// CompOp is the GUI comparison operator stored in the expression
	CompOp string

	// Unary operators take no value
	Unary bool

	// render builds the AQL condition (without brackets or negation)
	render func(field, value string) (string, any, error)
}

// Operators is the static operator table of the wizard, keyed by keyword.
var Operators = map[string]Operator{
	"exists": {Name: "exists", CompOp: "exists", Unary: true, render: func(f, _ string) (string, any, error) {
		return fmt.Sprintf(`%s == ({"$exists":true,"$ne":""})`, aqlField(f)), nil, nil
	}},
	"contains": {Name: "contains", CompOp: "contains", render: func(f, v string) (string, any, error) {
		return fmt.Sprintf(`%s == regex(%s, "i")`, aqlField(f), aqlString(regexp.QuoteMeta(v))), v, nil
	}},
	"equals": {Name: "equals", CompOp: "equals", render: func(f, v string) (string, any, error) {
		return fmt.Sprintf(`%s == %s`, aqlField(f), aqlString(v)), v, nil
	}},
	"startswith": {Name: "startswith", CompOp: "starts", render: func(f, v string) (string, any, error) {
		return fmt.Sprintf(`%s == regex(%s, "i")`, aqlField(f), aqlString("^"+regexp.QuoteMeta(v))), v, nil
	}},
	"endswith": {Name: "endswith", CompOp: "ends", render: func(f, v string) (string, any, error) {
		return fmt.Sprintf(`%s == regex(%s, "i")`, aqlField(f), aqlString(regexp.QuoteMeta(v)+"$")), v, nil
	}},
	// regex patterns pass through unchecked; the server validates them
	"regex": {Name: "regex", CompOp: "regex", render: func(f, v string) (string, any, error) {
		return fmt.Sprintf(`%s == regex(%s, "i")`, aqlField(f), aqlString(v)), v, nil
	}},
	"in": {Name: "in", CompOp: "IN", render: func(f, v string) (string, any, error) {
		var items []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, aqlString(item))
			}
		}
		if len(items) == 0 {
			return "", nil, fmt.Errorf("in needs a comma separated list of values")
		}
		return fmt.Sprintf(`%s in [%s]`, aqlField(f), strings.Join(items, ", ")), v, nil
	}},
	"less_than": {Name: "less_than", CompOp: "<", render: numericRender("<")},
	"greater_than": {Name: "greater_than", CompOp: ">", render: numericRender(">")},
	"last_days":    {Name: "last_days", CompOp: "days", render: relativeRender(">=", "-", "d")},
	"last_hours":   {Name: "last_hours", CompOp: "hours", render: relativeRender(">=", "-", "h")},
	"next_days":    {Name: "next_days", CompOp: "next_days", render: relativeRender("<=", "+", "d")},
	"next_hours":   {Name: "next_hours", CompOp: "next_hours", render: relativeRender("<=", "+", "h")},
	"before":       {Name: "before", CompOp: "<", render: dateRender("<")},
	"after":        {Name: "after", CompOp: ">", render: dateRender(">")},
	"is_true": {Name: "is_true", CompOp: "true", Unary: true, render: func(f, _ string) (string, any, error) {
		return fmt.Sprintf(`%s == true`, aqlField(f)), nil, nil
	}},
	"is_false": {Name: "is_false", CompOp: "false", Unary: true, render: func(f, _ string) (string, any, error) {
		return fmt.Sprintf(`%s == false`, aqlField(f)), nil, nil
	}},
	"count_equals": {Name: "count_equals", CompOp: "count_equals", render: func(f, v string) (string, any, error) {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return "", nil, fmt.Errorf("count_equals needs a non-negative integer, got %q", v)
		}
		return fmt.Sprintf(`%s == size(%d)`, aqlField(f), n), n, nil
	}},
}

// OperatorNames returns the wizard operator keywords in sorted order.
func OperatorNames() []string {
	names := make([]string, 0, len(Operators))
	for k := range Operators {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func numericRender(op string) func(string, string) (string, any, error) {
	return func(f, v string) (string, any, error) {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return "", nil, fmt.Errorf("expected a number, got %q", v)
		}
		return fmt.Sprintf(`%s %s %s`, aqlField(f), op, strconv.FormatFloat(n, 'f', -1, 64)), n, nil
	}
}

// relativeRender keeps the condition relative to evaluation time: the
// server resolves NOW, never the client.
func relativeRender(op, sign, unit string) func(string, string) (string, any, error) {
	return func(f, v string) (string, any, error) {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return "", nil, fmt.Errorf("expected a positive integer, got %q", v)
		}
		return fmt.Sprintf(`%s %s date("NOW %s %d%s")`, aqlField(f), op, sign, n, unit), n, nil
	}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func dateRender(op string) func(string, string) (string, any, error) {
	return func(f, v string) (string, any, error) {
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, v); err == nil {
				return fmt.Sprintf(`%s %s date(%s)`, aqlField(f), op, aqlString(v)), v, nil
			}
		}
		return "", nil, fmt.Errorf("expected a date (YYYY-MM-DD or RFC3339), got %q", v)
	}
}

func aqlField(f string) string { return aqlString(f) }

func aqlString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// WizardEntry is one structured wizard instruction.
type WizardEntry struct {
	// Type is the entry type, only "simple" is supported
	Type string

	// Field is the field name, short or fully qualified
	Field string

	// Operator is a key of Operators
	Operator string

	// Value is the operator argument, empty for unary operators
	Value string

	// Not negates the condition
	Not bool

	// LogicOp connects this entry to the previous one: "and" (default) or "or"
	LogicOp string

	// Source is the text line the entry was parsed from, for error messages
	Source string
}

// WizardEntryFromMap builds an entry from a loosely typed mapping with the
// keys type, field, operator, value, not and logic_op.
func WizardEntryFromMap(m map[string]any) (WizardEntry, error) {
	var e WizardEntry
	str := func(key string) (string, error) {
		v, ok := m[key]
		if !ok || v == nil {
			return "", nil
		}
		switch t := v.(type) {
		case string:
			return t, nil
		case int, int64, float64, bool:
			return fmt.Sprint(t), nil
		default:
			return "", &ApiAttributeTypeError{Attribute: "wizard entry " + key, Value: v, Expected: "a string"}
		}
	}

	var err error
	if e.Type, err = str("type"); err != nil {
		return e, err
	}
	if e.Field, err = str("field"); err != nil {
		return e, err
	}
	if e.Operator, err = str("operator"); err != nil {
		return e, err
	}
	if e.Value, err = str("value"); err != nil {
		return e, err
	}
	if e.LogicOp, err = str("logic_op"); err != nil {
		return e, err
	}
	if v, ok := m["not"]; ok && v != nil {
		b, isBool := v.(bool)
		if !isBool {
			return e, &ApiAttributeTypeError{Attribute: "wizard entry not", Value: v, Expected: "a bool"}
		}
		e.Not = b
	}
	if e.Type == "" {
		e.Type = EntrySimple
	}
	return e, nil
}

// ParseWizardText parses wizard lines of the form
//
//	[and|or] <type> [!]<field> <operator> <value...>
//
// Each argument may hold several newline separated lines. Blank lines and
// lines starting with "#" are skipped. Tokens follow shell quoting rules.
func ParseWizardText(lines ...string) ([]WizardEntry, error) {
	var entries []WizardEntry
	lineNo := 0
	for _, chunk := range lines {
		for _, line := range strings.Split(chunk, "\n") {
			lineNo++
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			entry, err := parseWizardLine(line)
			if err != nil {
				return nil, &APIError{
					Operation: "parse wizard",
					Message:   fmt.Sprintf("line %d %q: %s", lineNo, line, err.Error()),
				}
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func parseWizardLine(line string) (WizardEntry, error) {
	tokens, err := shlex.Split(line)
	if err != nil {
		return WizardEntry{}, err
	}

	entry := WizardEntry{Source: line}
	if len(tokens) > 0 {
		switch strings.ToLower(tokens[0]) {
		case LogicAnd, LogicOr:
			entry.LogicOp = strings.ToLower(tokens[0])
			tokens = tokens[1:]
		}
	}
	if len(tokens) < 3 {
		return WizardEntry{}, fmt.Errorf("expected '<type> [!]<field> <operator> [value]'")
	}

	entry.Type = strings.ToLower(tokens[0])
	entry.Field = tokens[1]
	if strings.HasPrefix(entry.Field, "!") {
		entry.Not = true
		entry.Field = strings.TrimPrefix(entry.Field, "!")
	}
	entry.Operator = strings.ToLower(tokens[2])
	entry.Value = strings.Join(tokens[3:], " ")
	return entry, nil
}

// WizardOptions tunes a single Parse call.
type WizardOptions struct {
	// SkipFieldValidation uses field names verbatim
	SkipFieldValidation bool
}

// WizardResult is the compiled form of a list of wizard entries.
type WizardResult struct {
	Filter      string
	Expressions []Expression
}

// Wizard compiles wizard entries into query expressions and an AQL filter.
type Wizard struct {
	// Fields resolves field names; nil disables resolution
	Fields FieldResolver
}

// NewWizard returns a Wizard resolving fields through fields.
func NewWizard(fields FieldResolver) *Wizard {
	return &Wizard{Fields: fields}
}

// ParseText parses wizard text and compiles it.
func (w *Wizard) ParseText(opts WizardOptions, lines ...string) (WizardResult, error) {
	entries, err := ParseWizardText(lines...)
	if err != nil {
		return WizardResult{}, err
	}
	return w.Parse(entries, opts)
}

// Parse compiles entries. Every entry after the first joins its predecessor
// with "and" unless it says "or". An empty entry list yields an empty result.
func (w *Wizard) Parse(entries []WizardEntry, opts WizardOptions) (WizardResult, error) {
	result := WizardResult{Expressions: []Expression{}}

	for i, entry := range entries {
		expr, err := w.compile(i, entry, opts)
		if err != nil {
			return WizardResult{}, err
		}
		result.Expressions = append(result.Expressions, expr)
	}

	result.Filter = joinFilters(result.Expressions)
	return result, nil
}

func (w *Wizard) compile(pos int, entry WizardEntry, opts WizardOptions) (Expression, error) {
	where := fmt.Sprintf("entry %d", pos+1)
	if entry.Source != "" {
		where = fmt.Sprintf("entry %d %q", pos+1, entry.Source)
	}
	fail := func(format string, args ...any) error {
		return &APIError{Operation: "parse wizard", Message: where + ": " + fmt.Sprintf(format, args...)}
	}

	typ := strings.ToLower(entry.Type)
	if typ == "" {
		typ = EntrySimple
	}
	if typ != EntrySimple {
		return Expression{}, fail("unsupported entry type %q (valid values: %s)", entry.Type, EntrySimple)
	}

	op, ok := Operators[strings.ToLower(entry.Operator)]
	if !ok {
		return Expression{}, fail("unknown operator %q (valid values: %s)", entry.Operator, strings.Join(OperatorNames(), ", "))
	}

	field := strings.TrimSpace(entry.Field)
	if field == "" {
		return Expression{}, fail("field cannot be empty")
	}
	if !opts.SkipFieldValidation && w.Fields != nil {
		resolved, err := w.Fields.ResolveField(field)
		if err != nil {
			return Expression{}, err
		}
		field = resolved
	}

	value := strings.TrimSpace(entry.Value)
	if op.Unary && value != "" {
		return Expression{}, fail("operator %s takes no value, got %q", op.Name, value)
	}
	if !op.Unary && value == "" {
		return Expression{}, fail("operator %s needs a value", op.Name)
	}

	cond, wireValue, err := op.render(field, value)
	if err != nil {
		return Expression{}, fail("%s", err.Error())
	}

	logic := strings.ToLower(entry.LogicOp)
	switch {
	case pos == 0:
		logic = ""
	case logic == "":
		logic = LogicAnd
	case logic != LogicAnd && logic != LogicOr:
		return Expression{}, fail("unknown logic operator %q (valid values: and, or)", entry.LogicOp)
	}

	filter := "(" + cond + ")"
	if entry.Not {
		filter = "not " + filter
	}
	if logic != "" {
		filter = logic + " " + filter
	}

	expr := Expression{
		Field:     field,
		FieldType: wizardFieldType,
		CompOp:    op.CompOp,
		Value:     wireValue,
		Not:       entry.Not,
		LogicOp:   logic,
		Filter:    filter,
	}
	if pos > 0 {
		i := pos
		expr.Index = &i
	}
	return expr, nil
}
