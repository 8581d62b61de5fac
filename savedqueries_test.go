// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+msg)
}

func (l *recordingLogger) Debug(_ context.Context, msg string, _ ...any) { l.add("DEBUG", msg) }
func (l *recordingLogger) Info(_ context.Context, msg string, _ ...any)  { l.add("INFO", msg) }
func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...any)  { l.add("WARN", msg) }
func (l *recordingLogger) Error(_ context.Context, msg string, _ ...any) { l.add("ERROR", msg) }

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, line := range l.lines {
		if len(line) > 5 && line[:5] == "WARN " {
			out = append(out, line[5:])
		}
	}
	return out
}

func newTestService(t *testing.T) (*SavedQueries, *recordingLogger) {
	t.Helper()
	logger := &recordingLogger{}
	svc := NewSavedQueries(AssetDevices, NewMemoryStore(), testSchema(), logger)

	_, err := svc.Add(context.Background(), AddRequest{
		Name:       "Windows Hosts",
		Tags:       []string{"prod", "windows"},
		WizardText: []string{"simple os.type equals Windows"},
	})
	require.NoError(t, err)
	return svc, logger
}

func TestSavedQueries_Add(t *testing.T) {
	svc, logger := newTestService(t)
	ctx := context.Background()

	sq, err := svc.GetByName(ctx, "windows hosts")
	require.NoError(t, err)
	assert.Equal(t, filterOSWin, sq.Filter())
	assert.Equal(t, DefaultFields[AssetDevices], sq.View.Fields)
	assert.Equal(t, PageSize20, sq.View.PageSize)
	assert.Empty(t, logger.warnings())

	_, err = svc.Add(ctx, AddRequest{Name: "WINDOWS HOSTS"})
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	_, err = svc.Add(ctx, AddRequest{Name: "Bad field", Fields: []string{"hostnam"}})
	assert.True(t, errors.Is(err, ErrUnknownField))

	custom, err := svc.Add(ctx, AddRequest{
		Name:     "Custom",
		Fields:   []string{"hostname", "network_interfaces.*"},
		Sort:     Sort{Field: "last seen", Descending: true},
		PageSize: PageSize50,
		Filter:   `("specific_data.data.hostname" == "x")`,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{fHostname, fIPs, fMACs}, custom.View.Fields)
	assert.Equal(t, Sort{Field: fLastSeen, Descending: true}, custom.View.Sort)
	assert.Equal(t, PageSize50, custom.View.PageSize)
	assert.Len(t, logger.warnings(), 1, "raw filter without expressions warns")
}

func TestSavedQueries_Lookups(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sq, err := svc.GetByName(ctx, "Windows Hosts")
	require.NoError(t, err)

	byUUID, err := svc.GetByUUID(ctx, sq.UUID)
	require.NoError(t, err)
	assert.Equal(t, sq.Name, byUUID.Name)

	byMap, err := svc.GetByMulti(ctx, map[string]any{"uuid": sq.UUID})
	require.NoError(t, err)
	assert.Equal(t, sq.UUID, byMap.UUID)

	_, err = svc.GetByMulti(ctx, 12345)
	assert.True(t, errors.Is(err, ErrAttributeType))

	_, err = svc.GetByName(ctx, "nope")
	assert.True(t, errors.Is(err, ErrSavedQueryNotFound))

	tagged, err := svc.GetByTags(ctx, "win*")
	require.NoError(t, err)
	assert.Len(t, tagged, 1)

	tags, err := svc.GetTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prod", "windows"}, tags)
}

func TestSavedQueries_UpdateQuery(t *testing.T) {
	svc, logger := newTestService(t)
	ctx := context.Background()

	sq, err := svc.UpdateQuery(ctx, "Windows Hosts", QueryUpdate{
		WizardText: []string{"simple !last_seen last_days 1"},
		Append:     true,
		AppendAnd:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, filterOSWin+` and not ("specific_data.data.last_seen" >= date("NOW - 1d"))`, sq.Filter())
	require.Len(t, sq.View.Query.Expressions, 2)
	assert.NoError(t, ValidateExpressions(sq.View.Query.Expressions))

	// persisted
	again, err := svc.GetByUUID(ctx, sq.UUID)
	require.NoError(t, err)
	assert.Equal(t, sq.Filter(), again.Filter())

	_, err = svc.UpdateQuery(ctx, sq.UUID, QueryUpdate{WizardText: []string{""}})
	require.NoError(t, err)
	assert.Len(t, logger.warnings(), 1)

	_, err = svc.UpdateQuery(ctx, sq.UUID, QueryUpdate{WizardText: []string{"simple nothing exists"}})
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestSavedQueries_UpdateAttributes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	const name = "Windows Hosts"

	sq, err := svc.UpdateFields(ctx, name, []string{"hostname"}, UpdateFieldsOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{fHostname}, sq.View.Fields)

	sq, err = svc.UpdateFields(ctx, name, []string{"last_seen"}, UpdateFieldsOptions{Append: true})
	require.NoError(t, err)
	assert.Equal(t, []string{fHostname, fLastSeen}, sq.View.Fields)

	sq, err = svc.UpdateFields(ctx, name, []string{fHostname}, UpdateFieldsOptions{Remove: true})
	require.NoError(t, err)
	assert.Equal(t, []string{fLastSeen}, sq.View.Fields)

	sq, err = svc.UpdateSort(ctx, name, "hostname", true, false)
	require.NoError(t, err)
	assert.Equal(t, Sort{Field: fHostname, Descending: true}, sq.View.Sort)

	_, err = svc.UpdatePageSize(ctx, name, 999)
	assert.True(t, errors.Is(err, ErrInvalidAttribute))
	sq, err = svc.UpdatePageSize(ctx, name, PageSize100)
	require.NoError(t, err)
	assert.Equal(t, PageSize100, sq.View.PageSize)

	sq, err = svc.UpdateTags(ctx, name, []string{"windows"}, MergeOptions{Remove: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, sq.Tags)

	sq, err = svc.UpdateDescription(ctx, name, "first", false)
	require.NoError(t, err)
	sq, err = svc.UpdateDescription(ctx, name, ", second", true)
	require.NoError(t, err)
	assert.Equal(t, "first, second", sq.Description)

	sq, err = svc.UpdatePrivate(ctx, name, true)
	require.NoError(t, err)
	assert.True(t, sq.Private)
	sq, err = svc.UpdateAlwaysCached(ctx, name, true)
	require.NoError(t, err)
	assert.True(t, sq.AlwaysCached)

	sq, err = svc.UpdateName(ctx, name, "windows hosts")
	require.NoError(t, err, "renaming to a case variant of the own name is allowed")
	assert.Equal(t, "windows hosts", sq.Name)
}

func TestSavedQueries_UpdateFieldsRemove(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		opts    UpdateFieldsOptions
		want    []string
		wantErr error
	}{
		{
			name:   "short name",
			fields: []string{"hostname"},
			opts:   UpdateFieldsOptions{Remove: true},
			want:   []string{fAdapters, fIPs},
		},
		{
			name:   "title",
			fields: []string{"Host Name"},
			opts:   UpdateFieldsOptions{Remove: true},
			want:   []string{fAdapters, fIPs},
		},
		{
			name:   "glob",
			fields: []string{"network_interfaces.*"},
			opts:   UpdateFieldsOptions{Remove: true},
			want:   []string{fAdapters, fHostname},
		},
		{
			name:    "unknown field",
			fields:  []string{"hostnam"},
			opts:    UpdateFieldsOptions{Remove: true},
			wantErr: ErrUnknownField,
		},
		{
			name:   "skip validation uses names verbatim",
			fields: []string{"hostname"},
			opts:   UpdateFieldsOptions{Remove: true, SkipFieldValidation: true},
			want:   []string{fAdapters, fHostname, fIPs},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			ctx := context.Background()
			const name = "Windows Hosts"

			_, err := svc.UpdateFields(ctx, name, []string{fAdapters, fHostname, fIPs}, UpdateFieldsOptions{})
			require.NoError(t, err)

			sq, err := svc.UpdateFields(ctx, name, tt.fields, tt.opts)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sq.View.Fields)
		})
	}
}

func TestSavedQueries_UpdateNameCollision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, AddRequest{Name: "Linux Hosts"})
	require.NoError(t, err)

	_, err = svc.UpdateName(ctx, "Linux Hosts", "Windows Hosts")
	assert.True(t, errors.Is(err, ErrAlreadyExists))
}

func TestSavedQueries_CopyAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	copied, err := svc.Copy(ctx, "Windows Hosts", "Windows Hosts (copy)", CopyOptions{AlwaysCached: true})
	require.NoError(t, err)
	assert.Equal(t, filterOSWin, copied.Filter())
	assert.True(t, copied.AlwaysCached)

	_, err = svc.Copy(ctx, "Windows Hosts", "windows hosts (COPY)", CopyOptions{})
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	_, err = svc.Delete(ctx, []any{"missing"}, false)
	assert.True(t, errors.Is(err, ErrSavedQueryNotFound))

	deleted, err := svc.Delete(ctx, []any{"missing", copied, copied.UUID}, true)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, copied.UUID, deleted[0].UUID)

	deleted, err = svc.DeleteByName(ctx, "windows hosts", false)
	require.NoError(t, err)
	assert.Len(t, deleted, 1)

	all, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSavedQueries_NoStore(t *testing.T) {
	svc := &SavedQueries{AssetType: AssetDevices}
	_, err := svc.Get(context.Background())
	assert.ErrorIs(t, err, errStoreRequired)
	_, err = svc.Add(context.Background(), AddRequest{Name: "x"})
	assert.ErrorIs(t, err, errStoreRequired)
}

func TestSavedQueries_ParseWizard(t *testing.T) {
	svc := NewSavedQueries(AssetDevices, NewMemoryStore(), testSchema(), nil)
	res, err := svc.ParseWizard([]WizardEntry{{Field: "hostname", Operator: "exists"}}, WizardOptions{})
	require.NoError(t, err)
	assert.Equal(t, fHostname, res.Expressions[0].Field)
}

// TestClient_ConcurrentSavedQueries tests a shared client used from several
// goroutines against the REST store.
func TestClient_ConcurrentSavedQueries(t *testing.T) {
	fake := &fakeViews{}
	for i := 0; i < 10; i++ {
		fake.records = append(fake.records, resourceJSON(fmt.Sprintf("u%d", i), fmt.Sprintf("q%d", i)))
	}
	srv := httptest.NewServer(http.HandlerFunc(fake.ServeHTTP))
	defer srv.Close()

	client := newTestClient(t, srv, RateLimit(1000, 10))
	svc, err := client.SavedQueries(AssetDevices, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("q%d", i%10)
			sq, err := svc.GetByName(context.Background(), name)
			if err != nil {
				errs <- err
				return
			}
			if sq.Name != name {
				errs <- fmt.Errorf("got %q, want %q", sq.Name, name)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSavedQueries_PaddedNamesRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, AddRequest{Name: " Padded "})
	assert.True(t, errors.Is(err, ErrInvalidAttribute))

	_, err = svc.UpdateName(ctx, "Windows Hosts", "Windows Hosts ")
	assert.True(t, errors.Is(err, ErrInvalidAttribute))

	sq, err := svc.GetByName(ctx, "Windows Hosts")
	require.NoError(t, err)
	assert.Equal(t, "Windows Hosts", sq.Name)
}
