// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	axonius "github.com/netascode/go-axonius"
)

func (a *app) savedQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "saved-query",
		Aliases: []string{"sq"},
		Short:   "list, create and edit saved queries",
		Long: "Saved queries are selected by name or uuid. Commands act on the asset\n" +
			"type chosen with --asset-type.",
	}
	cmd.AddCommand(
		a.sqListCmd(),
		a.sqGetCmd(),
		a.sqTagsCmd(),
		a.sqAddCmd(),
		a.sqCopyCmd(),
		a.sqDeleteCmd(),
		a.sqRenameCmd(),
		a.sqUpdateQueryCmd(),
		a.sqUpdateFieldsCmd(),
		a.sqUpdateTagsCmd(),
		a.sqUpdateSortCmd(),
		a.sqUpdatePageSizeCmd(),
		a.sqUpdateDescriptionCmd(),
		a.sqUpdateFlagsCmd(),
	)
	return cmd
}

func (a *app) sqListCmd() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "list saved queries, optionally only those matching tag patterns",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd, false)
			if err != nil {
				return err
			}
			var sqs []axonius.SavedQuery
			if len(tags) > 0 {
				sqs, err = svc.GetByTags(cmd.Context(), tags...)
			} else {
				sqs, err = svc.Get(cmd.Context())
			}
			if err != nil {
				return err
			}
			return a.printSavedQueries(cmd.OutOrStdout(), sqs)
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag glob pattern (repeatable)")
	return cmd
}

func (a *app) sqGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME|UUID",
		Short: "show one saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd, false)
			if err != nil {
				return err
			}
			sq, err := svc.GetByMulti(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printSavedQuery(cmd.OutOrStdout(), sq)
		},
	}
}

func (a *app) sqTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "list the tags used by saved queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd, false)
			if err != nil {
				return err
			}
			tags, err := svc.GetTags(cmd.Context())
			if err != nil {
				return err
			}
			return a.printStrings(cmd.OutOrStdout(), "TAG", tags)
		},
	}
}

func (a *app) sqAddCmd() *cobra.Command {
	var (
		req     axonius.AddRequest
		wizLine []string
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "create a saved query from wizard lines or a raw filter",
		Example: `  axctl sq add "Stale Windows" \
    -w 'simple os.type equals Windows' \
    -w 'and simple !last_seen last_days 30' \
    --field hostname --field 'network_interfaces.*'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			if len(wizLine) > 0 {
				req.WizardText = wizLine
			}
			svc, err := a.service(cmd, !req.SkipFieldValidation)
			if err != nil {
				return err
			}
			sq, err := svc.Add(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.printSavedQuery(cmd.OutOrStdout(), sq)
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&wizLine, "wizard", "w", nil, "wizard line (repeatable)")
	f.StringVar(&req.Filter, "filter", "", "raw AQL filter")
	f.StringSliceVar(&req.Fields, "field", nil, "column name or glob pattern (repeatable)")
	f.StringSliceVarP(&req.Tags, "tag", "t", nil, "tag (repeatable)")
	f.StringVar(&req.Description, "description", "", "description")
	f.IntVar(&req.PageSize, "page-size", axonius.PageSize20, "rows per page")
	f.StringVar(&req.Sort.Field, "sort", "", "sort field")
	f.BoolVar(&req.Sort.Descending, "desc", false, "sort descending")
	f.BoolVar(&req.Private, "private", false, "visible only to the creator")
	f.BoolVar(&req.AlwaysCached, "always-cached", false, "keep results cached")
	f.BoolVar(&req.AssetScope, "asset-scope", false, "use as an asset scope query")
	f.BoolVar(&req.SkipFieldValidation, "skip-field-validation", false, "use field names verbatim")
	return cmd
}

func (a *app) sqCopyCmd() *cobra.Command {
	var opts axonius.CopyOptions
	cmd := &cobra.Command{
		Use:   "copy NAME|UUID NEW_NAME",
		Short: "copy a saved query under a new name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd, false)
			if err != nil {
				return err
			}
			sq, err := svc.Copy(cmd.Context(), args[0], args[1], opts)
			if err != nil {
				return err
			}
			return a.printSavedQuery(cmd.OutOrStdout(), sq)
		},
	}
	cmd.Flags().BoolVar(&opts.Private, "private", false, "make the copy private")
	cmd.Flags().BoolVar(&opts.AlwaysCached, "always-cached", false, "keep the copy's results cached")
	cmd.Flags().BoolVar(&opts.AssetScope, "asset-scope", false, "use the copy as an asset scope query")
	return cmd
}

func (a *app) sqDeleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "delete NAME|UUID...",
		Aliases: []string{"rm"},
		Short:   "delete saved queries",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd, false)
			if err != nil {
				return err
			}
			selectors := make([]any, len(args))
			for i, arg := range args {
				selectors[i] = arg
			}
			deleted, err := svc.Delete(cmd.Context(), selectors, force)
			if err != nil {
				return err
			}
			return a.printSavedQueries(cmd.OutOrStdout(), deleted)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore saved queries that do not exist")
	return cmd
}

func (a *app) sqRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename NAME|UUID NEW_NAME",
		Short: "rename a saved query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd, false)
			if err != nil {
				return err
			}
			sq, err := svc.UpdateName(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.printSavedQuery(cmd.OutOrStdout(), sq)
		},
	}
}

func (a *app) sqUpdateQueryCmd() *cobra.Command {
	var (
		upd     axonius.QueryUpdate
		wizLine []string
	)
	cmd := &cobra.Command{
		Use:   "update-query NAME|UUID",
		Short: "replace or extend the filter of a saved query",
		Example: `  # narrow an existing query down
  axctl sq update-query "Stale Windows" --append --and --not -w 'simple hostname contains dc'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(wizLine) > 0 {
				upd.WizardText = wizLine
			}
			svc, err := a.service(cmd, !upd.WizardOptions.SkipFieldValidation)
			if err != nil {
				return err
			}
			sq, err := svc.UpdateQuery(cmd.Context(), args[0], upd)
			if err != nil {
				return err
			}
			return a.printSavedQuery(cmd.OutOrStdout(), sq)
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&wizLine, "wizard", "w", nil, "wizard line (repeatable)")
	f.StringVar(&upd.Filter, "filter", "", "raw AQL filter")
	f.BoolVar(&upd.Append, "append", false, "append to the current filter instead of replacing it")
	f.BoolVar(&upd.AppendAnd, "and", false, "join the appended filter with and instead of or")
	f.BoolVar(&upd.AppendNot, "not", false, "negate the appended filter")
	f.BoolVar(&upd.WizardOptions.SkipFieldValidation, "skip-field-validation", false, "use field names verbatim")
	return cmd
}

func (a *app) sqUpdateFieldsCmd() *cobra.Command {
	var opts axonius.UpdateFieldsOptions
	cmd := &cobra.Command{
		Use:   "update-fields NAME|UUID FIELD...",
		Short: "set, append or remove columns",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Append && opts.Remove {
				return fmt.Errorf("--append and --remove are mutually exclusive")
			}
			svc, err := a.service(cmd, !opts.SkipFieldValidation)
			if err != nil {
				return err
			}
			sq, err := svc.UpdateFields(cmd.Context(), args[0], args[1:], opts)
			if err != nil {
				return err
			}
			return a.printSavedQuery(cmd.OutOrStdout(), sq)
		},
	}
	cmd.Flags().BoolVar(&opts.Append, "append", false, "add to the current columns")
	cmd.Flags().BoolVar(&opts.Remove, "remove", false, "remove from the current columns")
	cmd.Flags().BoolVar(&opts.SkipFieldValidation, "skip-field-validation", false, "use field names verbatim")
	return cmd
}

func (a *app) sqUpdateTagsCmd() *cobra.Command {
	var opts axonius.MergeOptions
	cmd := &cobra.Command{
		Use:   "update-tags NAME|UUID [TAG...]",
		Short: "set, append or remove tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Append && opts.Remove {
				return fmt.Errorf("--append and --remove are mutually exclusive")
			}
			svc, err := a.service(cmd, false)
			if err != nil {
				return err
			}
			sq, err := svc.UpdateTags(cmd.Context(), args[0], args[1:], opts)
			if err != nil {
				return err
			}
			return a.printSavedQuery(cmd.OutOrStdout(), sq)
		},
	}
	cmd.Flags().BoolVar(&opts.Append, "append", false, "add to the current tags")
	cmd.Flags().BoolVar(&opts.Remove, "remove", false, "remove from the current tags")
	return cmd
}

func (a *app) sqUpdateSortCmd() *cobra.Command {
	var desc, skip bool
	cmd := &cobra.Command{
		Use:   "update-sort NAME|UUID [FIELD]",
		Short: "set the sort field, or clear it when FIELD is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			field := ""
			if len(args) == 2 {
				field = args[1]
			}
			svc, err := a.service(cmd, field != "" && !skip)
			if err != nil {
				return err
			}
			sq, err := svc.UpdateSort(cmd.Context(), args[0], field, desc, skip)
			if err != nil {
				return err
			}
			return a.printSavedQuery(cmd.OutOrStdout(), sq)
		},
	}
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().BoolVar(&skip, "skip-field-validation", false, "use the field name verbatim")
	return cmd
}

func (a *app) sqUpdatePageSizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-page-size NAME|UUID SIZE",
		Short: "set the rows per page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid page size %q: %w", args[1], err)
			}
			svc, err := a.service(cmd, false)
			if err != nil {
				return err
			}
			sq, err := svc.UpdatePageSize(cmd.Context(), args[0], size)
			if err != nil {
				return err
			}
			return a.printSavedQuery(cmd.OutOrStdout(), sq)
		},
	}
}

func (a *app) sqUpdateDescriptionCmd() *cobra.Command {
	var appendText bool
	cmd := &cobra.Command{
		Use:   "update-description NAME|UUID DESCRIPTION",
		Short: "set or extend the description",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd, false)
			if err != nil {
				return err
			}
			sq, err := svc.UpdateDescription(cmd.Context(), args[0], args[1], appendText)
			if err != nil {
				return err
			}
			return a.printSavedQuery(cmd.OutOrStdout(), sq)
		},
	}
	cmd.Flags().BoolVar(&appendText, "append", false, "append to the current description")
	return cmd
}

func (a *app) sqUpdateFlagsCmd() *cobra.Command {
	var private, alwaysCached bool
	cmd := &cobra.Command{
		Use:   "update-flags NAME|UUID",
		Short: "set the private and always-cached flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			privSet := cmd.Flags().Changed("private")
			cachedSet := cmd.Flags().Changed("always-cached")
			if !privSet && !cachedSet {
				return fmt.Errorf("set --private or --always-cached")
			}
			svc, err := a.service(cmd, false)
			if err != nil {
				return err
			}
			var sq axonius.SavedQuery
			if privSet {
				if sq, err = svc.UpdatePrivate(cmd.Context(), args[0], private); err != nil {
					return err
				}
			}
			if cachedSet {
				if sq, err = svc.UpdateAlwaysCached(cmd.Context(), args[0], alwaysCached); err != nil {
					return err
				}
			}
			return a.printSavedQuery(cmd.OutOrStdout(), sq)
		},
	}
	cmd.Flags().BoolVar(&private, "private", false, "visible only to the creator")
	cmd.Flags().BoolVar(&alwaysCached, "always-cached", false, "keep results cached")
	return cmd
}
