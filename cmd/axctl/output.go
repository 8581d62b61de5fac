// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	json "github.com/goccy/go-json"

	axonius "github.com/netascode/go-axonius"
)

var (
	headerCell = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	bodyCell   = lipgloss.NewStyle().Padding(0, 1).MaxWidth(60)
)

// newTable returns a bordered table with a bold header row.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return bodyCell
		}).
		Headers(headers...)
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func (a *app) printSavedQueries(w io.Writer, sqs []axonius.SavedQuery) error {
	if a.jsonOut {
		return writeJSON(w, sqs)
	}
	tbl := newTable("NAME", "UUID", "TAGS", "FILTER")
	for _, sq := range sqs {
		tbl.Row(sq.Name, sq.UUID, strings.Join(sq.Tags, ", "), sq.Filter())
	}
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

func (a *app) printSavedQuery(w io.Writer, sq axonius.SavedQuery) error {
	if a.jsonOut {
		return writeJSON(w, sq)
	}
	sort := sq.View.Sort.Field
	if sort != "" && sq.View.Sort.Descending {
		sort += " (desc)"
	}
	tbl := newTable("ATTRIBUTE", "VALUE").
		Row("name", sq.Name).
		Row("uuid", sq.UUID).
		Row("description", sq.Description).
		Row("tags", strings.Join(sq.Tags, ", ")).
		Row("private", fmt.Sprint(sq.Private)).
		Row("always cached", fmt.Sprint(sq.AlwaysCached)).
		Row("predefined", fmt.Sprint(sq.Predefined)).
		Row("fields", strings.Join(sq.View.Fields, "\n")).
		Row("sort", sort).
		Row("page size", fmt.Sprint(sq.View.PageSize)).
		Row("filter", sq.Filter()).
		Row("expressions", fmt.Sprint(len(sq.View.Query.Expressions)))
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

func (a *app) printWizard(w io.Writer, res axonius.WizardResult) error {
	if a.jsonOut {
		return writeJSON(w, map[string]any{
			"filter":      res.Filter,
			"expressions": res.Expressions,
		})
	}
	tbl := newTable("#", "LOGIC", "NOT", "FIELD", "OPERATOR", "FILTER")
	for i, e := range res.Expressions {
		tbl.Row(fmt.Sprint(i), e.LogicOp, fmt.Sprint(e.Not), e.Field, e.CompOp, e.Filter)
	}
	_, err := fmt.Fprintf(w, "%s\n\nfilter: %s\n", tbl.Render(), res.Filter)
	return err
}

func (a *app) printStrings(w io.Writer, header string, values []string) error {
	if a.jsonOut {
		return writeJSON(w, values)
	}
	tbl := newTable(header)
	for _, v := range values {
		tbl.Row(v)
	}
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
