// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	axonius "github.com/netascode/go-axonius"
)

func (a *app) wizardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "compile query wizard lines",
		Long: "Wizard lines have the form\n\n" +
			"  [and|or] simple [!]FIELD OPERATOR [VALUE...]\n\n" +
			"and compile to GUI expressions plus an AQL filter.",
	}
	cmd.AddCommand(a.wizardParseCmd(), a.wizardOperatorsCmd())
	return cmd
}

func (a *app) wizardParseCmd() *cobra.Command {
	var (
		offline bool
		file    string
	)
	cmd := &cobra.Command{
		Use:   "parse [LINE...]",
		Short: "compile wizard lines and print the filter",
		Example: `  axctl wizard parse --offline 'simple !last_seen last_days 1'
  axctl wizard parse -f stale-hosts.wiz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := args
			if file != "" {
				fromFile, err := readWizardFile(file)
				if err != nil {
					return err
				}
				lines = append(lines, fromFile...)
			}
			if len(lines) == 0 {
				return fmt.Errorf("no wizard lines given")
			}

			wiz := axonius.NewWizard(nil)
			opts := axonius.WizardOptions{SkipFieldValidation: offline}
			if !offline {
				schema, err := a.schema(cmd.Context(), a.cfg.AssetType)
				if err != nil {
					return err
				}
				wiz = axonius.NewWizard(schema)
			}
			res, err := wiz.ParseText(opts, lines...)
			if err != nil {
				return err
			}
			return a.printWizard(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "do not fetch the field schema; use field names verbatim")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read wizard lines from a file (# starts a comment)")
	return cmd
}

// readWizardFile returns the content of path as one chunk of wizard lines.
func readWizardFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wizard file: %w", err)
	}
	return []string{string(b)}, nil
}

func (a *app) wizardOperatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "list the wizard operators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := axonius.OperatorNames()
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), names)
			}
			tbl := newTable("OPERATOR", "COMPOP", "VALUE")
			for _, n := range names {
				op := axonius.Operators[n]
				value := "required"
				if op.Unary {
					value = "none"
				}
				tbl.Row(op.Name, op.CompOp, value)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())
			return err
		},
	}
}

func (a *app) fieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields [PATTERN]",
		Short: "list the fields of the asset type, optionally matching a glob",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.schema(cmd.Context(), a.cfg.AssetType)
			if err != nil {
				return err
			}
			var names []string
			if len(args) == 1 {
				if names, err = schema.Match(args[0]); err != nil {
					return err
				}
			} else {
				for _, f := range schema.Fields() {
					names = append(names, f.Name)
				}
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), names)
			}
			tbl := newTable("NAME", "TITLE", "TYPE")
			for _, n := range names {
				f, _ := schema.Lookup(n)
				tbl.Row(f.Name, f.Title, f.Type)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())
			return err
		},
	}
}
