// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"context"
	"errors"
	"fmt"
)

// DefaultFields are the columns of a new saved query when none are given.
var DefaultFields = map[string][]string{
	AssetDevices: {
		"adapters",
		"specific_data.data.name",
		"specific_data.data.hostname",
		"specific_data.data.last_seen",
		"specific_data.data.network_interfaces.mac",
		"specific_data.data.network_interfaces.ips",
		"specific_data.data.os.type",
		"labels",
	},
	AssetUsers: {
		"adapters",
		"specific_data.data.image",
		"specific_data.data.username",
		"specific_data.data.domain",
		"specific_data.data.last_seen",
		"specific_data.data.is_admin",
		"labels",
	},
}

// SavedQueries manages the saved queries of one asset type. Every mutation
// fetches the current record from the Store first and writes it back
// (last writer wins; there is no locking across requests).
type SavedQueries struct {
	AssetType string
	Store     Store

	// Fields resolves field names; nil disables field validation
	Fields FieldResolver

	Wizard *Wizard
	Logger Logger
}

// NewSavedQueries returns a service over store.
func NewSavedQueries(assetType string, store Store, fields FieldResolver, logger Logger) *SavedQueries {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &SavedQueries{
		AssetType: assetType,
		Store:     store,
		Fields:    fields,
		Wizard:    NewWizard(fields),
		Logger:    logger,
	}
}

// SavedQueries returns a REST backed service for assetType. fields may be
// nil, or a schema from FetchFieldSchema.
func (c *Client) SavedQueries(assetType string, fields FieldResolver) (*SavedQueries, error) {
	store, err := NewRESTStore(c, assetType)
	if err != nil {
		return nil, err
	}
	return NewSavedQueries(assetType, store, fields, c.logger), nil
}

func (s *SavedQueries) store() (Store, error) {
	if s.Store == nil {
		return nil, errStoreRequired
	}
	return s.Store, nil
}

func (s *SavedQueries) logger() Logger {
	if s.Logger == nil {
		return &NoOpLogger{}
	}
	return s.Logger
}

func (s *SavedQueries) wizard() *Wizard {
	if s.Wizard == nil {
		return NewWizard(s.Fields)
	}
	return s.Wizard
}

func (s *SavedQueries) logWarnings(ctx context.Context, op string, sq string, warnings []Warning) {
	for _, w := range warnings {
		s.logger().Warn(ctx, w.Message,
			"operation", op,
			"asset_type", s.AssetType,
			"saved_query", sq)
	}
}

// Get returns all saved queries.
func (s *SavedQueries) Get(ctx context.Context) ([]SavedQuery, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	return st.FetchAll(ctx)
}

// GetByMulti resolves a selector: a Selector, a name or uuid string, a map
// with name/uuid keys, or a SavedQuery.
func (s *SavedQueries) GetByMulti(ctx context.Context, selector any) (SavedQuery, error) {
	sel, err := SelectorFrom(selector)
	if err != nil {
		return SavedQuery{}, err
	}
	all, err := s.Get(ctx)
	if err != nil {
		return SavedQuery{}, err
	}
	return GetByMulti(sel, all)
}

// GetByName returns the saved query with a case-insensitively equal name.
func (s *SavedQueries) GetByName(ctx context.Context, name string) (SavedQuery, error) {
	return s.GetByMulti(ctx, ByName(name))
}

// GetByUUID returns the saved query with the given uuid.
func (s *SavedQueries) GetByUUID(ctx context.Context, uuid string) (SavedQuery, error) {
	return s.GetByMulti(ctx, ByUUID(uuid))
}

// GetByTags returns saved queries with a tag matching one of the glob patterns.
func (s *SavedQueries) GetByTags(ctx context.Context, patterns ...string) ([]SavedQuery, error) {
	all, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return GetByTags(patterns, all)
}

// GetTags returns every tag in use.
func (s *SavedQueries) GetTags(ctx context.Context) ([]string, error) {
	all, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return Tags(all), nil
}

// ParseWizard compiles wizard entries with the service's field resolver.
func (s *SavedQueries) ParseWizard(entries []WizardEntry, opts WizardOptions) (WizardResult, error) {
	return s.wizard().Parse(entries, opts)
}

// AddRequest describes a new saved query.
type AddRequest struct {
	Name        string
	Description string
	Tags        []string

	// Fields defaults to DefaultFields of the asset type
	Fields   []string
	Sort     Sort
	PageSize int

	// Query input, as for QueryView.SetQuery; all empty means no filter
	Filter        string
	Expressions   []Expression
	WizardEntries []WizardEntry
	WizardText    []string

	Private      bool
	AlwaysCached bool
	AssetScope   bool

	SkipFieldValidation bool
}

// Add creates a saved query after checking the name is free.
func (s *SavedQueries) Add(ctx context.Context, req AddRequest) (SavedQuery, error) {
	st, err := s.store()
	if err != nil {
		return SavedQuery{}, err
	}

	create := SavedQueryCreate{
		Name:         req.Name,
		Description:  req.Description,
		Tags:         req.Tags,
		Private:      req.Private,
		AlwaysCached: req.AlwaysCached,
		AssetScope:   req.AssetScope,
	}
	if err := create.Validate(); err != nil {
		return SavedQuery{}, err
	}

	all, err := st.FetchAll(ctx)
	if err != nil {
		return SavedQuery{}, err
	}
	if err := CheckNameExists(create.Name, all); err != nil {
		return SavedQuery{}, err
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = DefaultFields[s.AssetType]
	} else if fields, err = s.resolveFields(fields, req.SkipFieldValidation); err != nil {
		return SavedQuery{}, err
	}

	sortField := req.Sort.Field
	if sortField != "" && !req.SkipFieldValidation {
		if sortField, err = s.resolveField(sortField); err != nil {
			return SavedQuery{}, err
		}
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = PageSize20
	}

	view, err := BuildView(fields, Sort{Field: sortField, Descending: req.Sort.Descending}, pageSize, ViewQuery{})
	if err != nil {
		return SavedQuery{}, err
	}

	if req.Filter != "" || len(req.Expressions) > 0 || req.WizardEntries != nil || req.WizardText != nil {
		warnings, err := view.SetQuery(QueryUpdate{
			Filter:        req.Filter,
			Expressions:   req.Expressions,
			WizardEntries: req.WizardEntries,
			WizardText:    req.WizardText,
			WizardOptions: WizardOptions{SkipFieldValidation: req.SkipFieldValidation},
		}, s.wizard())
		if err != nil {
			return SavedQuery{}, err
		}
		s.logWarnings(ctx, "add", create.Name, warnings)
	}
	create.View = view

	added, err := st.Create(ctx, create)
	if err != nil {
		return SavedQuery{}, err
	}
	s.logger().Info(ctx, "Saved query created",
		"asset_type", s.AssetType,
		"name", added.Name,
		"uuid", added.UUID)
	return added, nil
}

// Copy clones a saved query's view under a new name.
func (s *SavedQueries) Copy(ctx context.Context, selector any, newName string, opts CopyOptions) (SavedQuery, error) {
	st, err := s.store()
	if err != nil {
		return SavedQuery{}, err
	}
	sel, err := SelectorFrom(selector)
	if err != nil {
		return SavedQuery{}, err
	}
	all, err := st.FetchAll(ctx)
	if err != nil {
		return SavedQuery{}, err
	}
	source, err := GetByMulti(sel, all)
	if err != nil {
		return SavedQuery{}, err
	}
	create, err := Copy(source, newName, opts, all)
	if err != nil {
		return SavedQuery{}, err
	}
	copied, err := st.Create(ctx, create)
	if err != nil {
		return SavedQuery{}, err
	}
	s.logger().Info(ctx, "Saved query copied",
		"asset_type", s.AssetType,
		"source", source.Name,
		"name", copied.Name,
		"uuid", copied.UUID)
	return copied, nil
}

// mutate fetches the selected record, applies fn to a copy and writes the
// result back.
func (s *SavedQueries) mutate(ctx context.Context, op string, selector any, fn func(sq *SavedQuery, all []SavedQuery) ([]Warning, error)) (SavedQuery, error) {
	st, err := s.store()
	if err != nil {
		return SavedQuery{}, err
	}
	sel, err := SelectorFrom(selector)
	if err != nil {
		return SavedQuery{}, err
	}
	all, err := st.FetchAll(ctx)
	if err != nil {
		return SavedQuery{}, err
	}
	current, err := GetByMulti(sel, all)
	if err != nil {
		return SavedQuery{}, err
	}

	sq := current.Clone()
	warnings, err := fn(&sq, all)
	if err != nil {
		return SavedQuery{}, fmt.Errorf("%s: %w", op, err)
	}
	s.logWarnings(ctx, op, sq.Name, warnings)

	updated, err := st.Update(ctx, sq.UUID, sq)
	if err != nil {
		return SavedQuery{}, err
	}
	s.logger().Debug(ctx, "Saved query updated",
		"operation", op,
		"asset_type", s.AssetType,
		"name", updated.Name,
		"uuid", updated.UUID)
	return updated, nil
}

// UpdateName renames a saved query. The new name must not belong to another
// saved query.
func (s *SavedQueries) UpdateName(ctx context.Context, selector any, name string) (SavedQuery, error) {
	return s.mutate(ctx, "update name", selector, func(sq *SavedQuery, all []SavedQuery) ([]Warning, error) {
		others := make([]SavedQuery, 0, len(all))
		for _, o := range all {
			if o.UUID != sq.UUID {
				others = append(others, o)
			}
		}
		if err := CheckNameExists(name, others); err != nil {
			return nil, err
		}
		return nil, sq.SetName(name)
	})
}

// UpdateDescription replaces the description, or appends description to it
// verbatim (no separator is inserted).
func (s *SavedQueries) UpdateDescription(ctx context.Context, selector any, description string, appendText bool) (SavedQuery, error) {
	return s.mutate(ctx, "update description", selector, func(sq *SavedQuery, _ []SavedQuery) ([]Warning, error) {
		if appendText {
			description = sq.Description + description
		}
		return nil, sq.SetDescription(description)
	})
}

// UpdatePageSize sets the view page size.
func (s *SavedQueries) UpdatePageSize(ctx context.Context, selector any, pageSize int) (SavedQuery, error) {
	if err := ValidatePageSize(pageSize); err != nil {
		return SavedQuery{}, err
	}
	return s.mutate(ctx, "update page size", selector, func(sq *SavedQuery, _ []SavedQuery) ([]Warning, error) {
		return nil, sq.View.SetPageSize(pageSize)
	})
}

// UpdateSort sets the sort column; an empty field clears it.
func (s *SavedQueries) UpdateSort(ctx context.Context, selector any, field string, descending bool, skipFieldValidation bool) (SavedQuery, error) {
	if field != "" && !skipFieldValidation {
		resolved, err := s.resolveField(field)
		if err != nil {
			return SavedQuery{}, err
		}
		field = resolved
	}
	return s.mutate(ctx, "update sort", selector, func(sq *SavedQuery, _ []SavedQuery) ([]Warning, error) {
		return nil, sq.View.SetSort(field, descending)
	})
}

// UpdateTags merges tags into the saved query's tags.
func (s *SavedQueries) UpdateTags(ctx context.Context, selector any, tags []string, opts MergeOptions) (SavedQuery, error) {
	return s.mutate(ctx, "update tags", selector, func(sq *SavedQuery, _ []SavedQuery) ([]Warning, error) {
		merged, err := UpdateTags(sq.Tags, tags, opts)
		if err != nil {
			return nil, err
		}
		sq.Tags = merged
		return nil, nil
	})
}

// UpdateFieldsOptions tunes UpdateFields.
type UpdateFieldsOptions struct {
	Append              bool
	Remove              bool
	SkipFieldValidation bool
}

// UpdateFields merges fields into the saved query's columns. Names are
// resolved for every mode, so short names also remove their qualified column.
func (s *SavedQueries) UpdateFields(ctx context.Context, selector any, fields []string, opts UpdateFieldsOptions) (SavedQuery, error) {
	resolved, err := s.resolveFields(fields, opts.SkipFieldValidation)
	if err != nil {
		return SavedQuery{}, err
	}
	return s.mutate(ctx, "update fields", selector, func(sq *SavedQuery, _ []SavedQuery) ([]Warning, error) {
		return nil, sq.View.SetFields(resolved, FieldsOptions{Append: opts.Append, Remove: opts.Remove})
	})
}

// UpdateQuery replaces or appends to the saved query's filter and
// expressions.
func (s *SavedQueries) UpdateQuery(ctx context.Context, selector any, update QueryUpdate) (SavedQuery, error) {
	return s.mutate(ctx, "update query", selector, func(sq *SavedQuery, _ []SavedQuery) ([]Warning, error) {
		return sq.View.SetQuery(update, s.wizard())
	})
}

// UpdatePrivate sets the private flag.
func (s *SavedQueries) UpdatePrivate(ctx context.Context, selector any, private bool) (SavedQuery, error) {
	return s.mutate(ctx, "update private", selector, func(sq *SavedQuery, _ []SavedQuery) ([]Warning, error) {
		sq.Private = private
		return nil, nil
	})
}

// UpdateAlwaysCached sets the always_cached flag.
func (s *SavedQueries) UpdateAlwaysCached(ctx context.Context, selector any, alwaysCached bool) (SavedQuery, error) {
	return s.mutate(ctx, "update always cached", selector, func(sq *SavedQuery, _ []SavedQuery) ([]Warning, error) {
		sq.AlwaysCached = alwaysCached
		return nil, nil
	})
}

// Delete deletes the selected saved queries and returns them. With force,
// selectors that match nothing are skipped.
func (s *SavedQueries) Delete(ctx context.Context, selectors []any, force bool) ([]SavedQuery, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	all, err := st.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	var (
		targets []SavedQuery
		ids     []string
		seen    = map[string]bool{}
	)
	for _, raw := range selectors {
		sel, err := SelectorFrom(raw)
		if err != nil {
			return nil, err
		}
		sq, err := GetByMulti(sel, all)
		if err != nil {
			if force && errors.Is(err, ErrSavedQueryNotFound) {
				continue
			}
			return nil, err
		}
		if seen[sq.UUID] {
			continue
		}
		seen[sq.UUID] = true
		targets = append(targets, sq)
		ids = append(ids, sq.UUID)
	}

	deleted, err := st.Delete(ctx, ids, force)
	if err != nil {
		return nil, err
	}
	s.logger().Info(ctx, "Saved queries deleted",
		"asset_type", s.AssetType,
		"count", deleted)
	return targets, nil
}

// DeleteByName deletes the saved query with the given name.
func (s *SavedQueries) DeleteByName(ctx context.Context, name string, force bool) ([]SavedQuery, error) {
	return s.Delete(ctx, []any{ByName(name)}, force)
}

func (s *SavedQueries) resolveField(name string) (string, error) {
	if s.Fields == nil {
		return name, nil
	}
	return s.Fields.ResolveField(name)
}

func (s *SavedQueries) resolveFields(names []string, skip bool) ([]string, error) {
	if skip || s.Fields == nil {
		return names, nil
	}
	if multi, ok := s.Fields.(interface {
		ResolveFields([]string) ([]string, error)
	}); ok {
		return multi.ResolveFields(names)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		full, err := s.Fields.ResolveField(n)
		if err != nil {
			return nil, err
		}
		out = append(out, full)
	}
	return out, nil
}
