// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists saved queries of one asset type.
type Store interface {
	Create(ctx context.Context, req SavedQueryCreate) (SavedQuery, error)
	FetchAll(ctx context.Context) ([]SavedQuery, error)
	FetchByID(ctx context.Context, id string) (SavedQuery, error)

	// Update sends only the updatable attributes of sq
	Update(ctx context.Context, id string, sq SavedQuery) (SavedQuery, error)

	// Delete removes the saved queries with the given ids. With force, ids
	// that do not exist are skipped instead of failing.
	Delete(ctx context.Context, ids []string, force bool) (int, error)
}

// RESTStore is a Store backed by the REST API.
type RESTStore struct {
	client    *Client
	AssetType string
}

// NewRESTStore returns a store for the saved queries of assetType.
func NewRESTStore(client *Client, assetType string) (*RESTStore, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if err := validateAssetType(assetType); err != nil {
		return nil, err
	}
	return &RESTStore{client: client, AssetType: assetType}, nil
}

func (s *RESTStore) savedPath() string { return "/api/" + s.AssetType + "/views/saved" }
func (s *RESTStore) createPath() string { return "/api/" + s.AssetType + "/views" }
func (s *RESTStore) viewPath(id string) string {
	return "/api/" + s.AssetType + "/views/view/" + url.PathEscape(id)
}

// FetchAll pages through all saved queries, MaxPageSize at a time.
func (s *RESTStore) FetchAll(ctx context.Context) ([]SavedQuery, error) {
	var out []SavedQuery
	for offset := 0; ; offset += MaxPageSize {
		res, err := s.client.Get(ctx, s.savedPath(),
			Query("page[offset]", strconv.Itoa(offset)),
			Query("page[limit]", strconv.Itoa(MaxPageSize)))
		if err != nil {
			return nil, fmt.Errorf("fetching %s saved queries: %w", s.AssetType, err)
		}

		page := res.GetValue("data").Array()
		for _, item := range page {
			sq, err := DecodeSavedQuery(item.Raw)
			if err != nil {
				return nil, fmt.Errorf("fetching %s saved queries: %w", s.AssetType, err)
			}
			out = append(out, sq)
		}

		if len(page) < MaxPageSize {
			break
		}
	}
	if out == nil {
		out = []SavedQuery{}
	}
	return out, nil
}

// FetchByID returns the saved query whose uuid or id equals id.
func (s *RESTStore) FetchByID(ctx context.Context, id string) (SavedQuery, error) {
	all, err := s.FetchAll(ctx)
	if err != nil {
		return SavedQuery{}, err
	}
	return GetByMulti(ByUUID(id), all)
}

// Create posts a new saved query.
func (s *RESTStore) Create(ctx context.Context, req SavedQueryCreate) (SavedQuery, error) {
	if err := req.Validate(); err != nil {
		return SavedQuery{}, err
	}
	body, err := req.Attributes().Resource(SavedQueryResourceType).String()
	if err != nil {
		return SavedQuery{}, fmt.Errorf("creating saved query: %w", err)
	}

	res, err := s.client.Post(ctx, s.createPath(), body)
	if err != nil {
		return SavedQuery{}, fmt.Errorf("creating saved query %q: %w", req.Name, err)
	}
	return s.decodeOrFetch(ctx, res, "")
}

// Update puts the updatable attributes of sq.
func (s *RESTStore) Update(ctx context.Context, id string, sq SavedQuery) (SavedQuery, error) {
	body, err := sq.UpdateAttributes().Resource(SavedQueryResourceType).String()
	if err != nil {
		return SavedQuery{}, fmt.Errorf("updating saved query %q: %w", sq.Name, err)
	}

	res, err := s.client.Put(ctx, s.viewPath(id), body)
	if err != nil {
		if IsNotFound(err) {
			return SavedQuery{}, &SavedQueryNotFoundError{Selector: ByUUID(id).String()}
		}
		return SavedQuery{}, fmt.Errorf("updating saved query %q: %w", sq.Name, err)
	}
	return s.decodeOrFetch(ctx, res, id)
}

// decodeOrFetch decodes the resource in a write response. Older instances
// answer with only an id, in which case the record is fetched.
func (s *RESTStore) decodeOrFetch(ctx context.Context, res Res, id string) (SavedQuery, error) {
	data := res.GetValue("data")
	if data.Get("attributes.view").Exists() {
		return DecodeSavedQuery(data.Raw)
	}
	if v := data.Get("id").String(); v != "" {
		id = v
	} else if v := data.Get("attributes.uuid").String(); v != "" {
		id = v
	}
	if id == "" {
		return SavedQuery{}, &APIError{Operation: "decode saved query", Message: "response carries no saved query id"}
	}
	return s.FetchByID(ctx, id)
}

// Delete deletes saved queries one by one.
func (s *RESTStore) Delete(ctx context.Context, ids []string, force bool) (int, error) {
	deleted := 0
	for _, id := range ids {
		_, err := s.client.Delete(ctx, s.viewPath(id), "")
		if err != nil {
			if IsNotFound(err) {
				if force {
					continue
				}
				return deleted, &SavedQueryNotFoundError{Selector: ByUUID(id).String()}
			}
			return deleted, fmt.Errorf("deleting saved query %s: %w", id, err)
		}
		deleted++
	}
	return deleted, nil
}

// MemoryStore is an in-process Store. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	order []string
	items map[string]SavedQuery

	// Now stamps LastUpdated; defaults to time.Now
	Now func() time.Time
}

// NewMemoryStore returns a store holding copies of the given records. Records
// without a uuid get one.
func NewMemoryStore(records ...SavedQuery) *MemoryStore {
	s := &MemoryStore{items: map[string]SavedQuery{}}
	for _, r := range records {
		r = r.Clone()
		if r.UUID == "" {
			r.UUID = uuid.NewString()
		}
		if r.ID == "" {
			r.ID = r.UUID
		}
		s.order = append(s.order, r.UUID)
		s.items[r.UUID] = r
	}
	return s
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create stores a new record.
func (s *MemoryStore) Create(_ context.Context, req SavedQueryCreate) (SavedQuery, error) {
	if err := req.Validate(); err != nil {
		return SavedQuery{}, err
	}
	sq := req.Record()
	sq.UUID = uuid.NewString()
	sq.ID = sq.UUID
	t := s.now()
	sq.LastUpdated = &t

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, sq.UUID)
	s.items[sq.UUID] = sq
	return sq.Clone(), nil
}

// FetchAll returns copies of all records in insertion order.
func (s *MemoryStore) FetchAll(_ context.Context) ([]SavedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SavedQuery, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out, nil
}

// FetchByID returns a copy of the record with the given uuid.
func (s *MemoryStore) FetchByID(_ context.Context, id string) (SavedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sq, ok := s.items[id]
	if !ok {
		return SavedQuery{}, &SavedQueryNotFoundError{Selector: ByUUID(id).String()}
	}
	return sq.Clone(), nil
}

// Update applies the updatable attributes of sq to the stored record.
func (s *MemoryStore) Update(_ context.Context, id string, sq SavedQuery) (SavedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return SavedQuery{}, &SavedQueryNotFoundError{Selector: ByUUID(id).String()}
	}
	if cur.Predefined {
		return SavedQuery{}, &APIError{Operation: "update saved query", StatusCode: 403, Message: "predefined saved queries cannot be modified"}
	}

	upd := sq.Clone()
	cur.Name = upd.Name
	cur.View = upd.View
	cur.QueryType = upd.QueryType
	if cur.QueryType == "" {
		cur.QueryType = QueryTypeSaved
	}
	cur.AlwaysCached = upd.AlwaysCached
	cur.Private = upd.Private
	cur.Description = upd.Description
	cur.Tags = upd.Tags
	t := s.now()
	cur.LastUpdated = &t

	s.items[id] = cur
	return cur.Clone(), nil
}

// Delete removes records by uuid.
func (s *MemoryStore) Delete(_ context.Context, ids []string, force bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if _, ok := s.items[id]; !ok {
			if force {
				continue
			}
			return deleted, &SavedQueryNotFoundError{Selector: ByUUID(id).String()}
		}
		delete(s.items, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		deleted++
	}
	return deleted, nil
}

// errStoreRequired is returned by the service when no Store is configured.
var errStoreRequired = errors.New("saved queries: store is required")
