package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow-ingest/metrics"
	"dealflow-ingest/models"
	"dealflow-ingest/schema"
	"dealflow-ingest/storage"
	"dealflow-ingest/utils"
)

type failingStore struct {
	err   error
	calls int
}

func (f *failingStore) Migrate(context.Context) error { return nil }

func (f *failingStore) Upsert(context.Context, *schema.Definition, []models.Record, storage.UpsertOptions) (storage.UpsertResult, error) {
	f.calls++
	return storage.UpsertResult{}, f.err
}

func (f *failingStore) FetchAll(context.Context, *schema.Definition) ([]models.Record, error) {
	return nil, f.err
}

func (f *failingStore) Close() error { return nil }

func newSQLite(t *testing.T) *storage.SQLStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:", utils.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func tenRowDeals() string {
	var b strings.Builder
	b.WriteString("business_name,source,asking_price\n")
	for i := 1; i <= 10; i++ {
		if i == 5 {
			b.WriteString(",,999\n")
			continue
		}
		fmt.Fprintf(&b, "Biz %d,Flippa,%d\n", i, i*1000)
	}
	return b.String()
}

func TestUploadToSQLite(t *testing.T) {
	store := newSQLite(t)
	reg := metrics.NewRegistry()
	u := NewUploader(newTestPipeline(t, schema.Deals, PipelineOptions{}), store, reg, UploadOptions{BatchSize: 3}, utils.NewNopLogger())

	sum, err := u.Upload(context.Background(), strings.NewReader(tenRowDeals()))
	require.NoError(t, err)

	assert.Equal(t, 10, sum.Total)
	assert.Equal(t, 9, sum.Accepted)
	assert.Equal(t, 9, sum.Successful)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 0, sum.Skipped)
	assert.Equal(t, []string{"Row 6: Missing required fields (business_name, source)"}, sum.Errors)
	assert.NotEmpty(t, sum.RunID)

	stored, err := store.FetchAll(context.Background(), mustLookup(t, schema.Deals))
	require.NoError(t, err)
	assert.Len(t, stored, 9)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Uploads.WithLabelValues("deals", "ok")))
	assert.Equal(t, 9.0, testutil.ToFloat64(reg.RowsStored.WithLabelValues("deals")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RowsRejected.WithLabelValues("deals")))
}

func TestUploadStoreFailure(t *testing.T) {
	store := &failingStore{err: &storage.StoreError{Message: `column "colour" of relation "deals" does not exist`, Code: "42703"}}
	reg := metrics.NewRegistry()
	u := NewUploader(newTestPipeline(t, schema.Deals, PipelineOptions{}), store, reg, UploadOptions{}, utils.NewNopLogger())

	sum, err := u.Upload(context.Background(), strings.NewReader(tenRowDeals()))
	require.NoError(t, err, "store failures are reported in the summary")

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, 10, sum.Total)
	assert.Equal(t, 9, sum.Accepted)
	assert.Equal(t, 0, sum.Successful)
	assert.Equal(t, 10, sum.Failed)
	assert.Equal(t, 0, sum.Skipped)
	require.Len(t, sum.Errors, 2)
	assert.True(t, strings.HasPrefix(sum.Errors[1], "A mapped column does not exist"), sum.Errors[1])
	assert.Contains(t, sum.Errors[1], `column "colour"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.StoreFailures.WithLabelValues("deals")))
}

func TestUploadDuplicates(t *testing.T) {
	in := "name,source,price\nAcme,Flippa,100\nBeta,Flippa,200\nAcme,Flippa,300\n"
	def := mustLookup(t, schema.Deals)

	t.Run("update", func(t *testing.T) {
		store := newSQLite(t)
		u := NewUploader(newTestPipeline(t, schema.Deals, PipelineOptions{}), store, nil, UploadOptions{}, utils.NewNopLogger())

		sum, err := u.Upload(context.Background(), strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Successful)
		assert.Equal(t, 1, sum.Skipped, "in-file duplicate collapses onto the last row")

		sum, err = u.Upload(context.Background(), strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Successful)

		stored, err := store.FetchAll(context.Background(), def)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		prices := map[string]any{}
		for _, rec := range stored {
			prices[rec.String(schema.FieldBusinessName)] = rec[schema.FieldAskingPrice]
		}
		assert.Equal(t, map[string]any{"Acme": int64(300), "Beta": int64(200)}, prices)
	})

	t.Run("ignore", func(t *testing.T) {
		store := newSQLite(t)
		u := NewUploader(newTestPipeline(t, schema.Deals, PipelineOptions{}), store, nil, UploadOptions{IgnoreDuplicates: true}, utils.NewNopLogger())

		_, err := u.Upload(context.Background(), strings.NewReader(in))
		require.NoError(t, err)
		sum, err := u.Upload(context.Background(), strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, 0, sum.Successful)
		assert.Equal(t, 3, sum.Skipped)
	})
}

func TestUploadDryRun(t *testing.T) {
	store := &failingStore{}
	u := NewUploader(newTestPipeline(t, schema.Listings, PipelineOptions{}), store, nil, UploadOptions{DryRun: true}, utils.NewNopLogger())
	sum, err := u.Upload(context.Background(), strings.NewReader(acmeCSV))
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 0, store.calls)
	assert.Equal(t, 0, sum.Successful)
	assert.Equal(t, 1, sum.Accepted)

	out, err := json.Marshal(sum)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"errors":[]`)
}

func TestUploadParseError(t *testing.T) {
	reg := metrics.NewRegistry()
	u := NewUploader(newTestPipeline(t, schema.Deals, PipelineOptions{}), nil, reg, UploadOptions{}, utils.NewNopLogger())
	_, err := u.Upload(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Uploads.WithLabelValues("deals", "parse_error")))
}

func TestDedupeByKeys(t *testing.T) {
	def := mustLookup(t, schema.Deals)
	unnamed := func(url string) models.Record {
		return models.Record{schema.FieldBusinessName: def.DefaultName, schema.FieldSource: DefaultSource, schema.FieldOriginalURL: url}
	}
	records := []models.Record{
		{schema.FieldBusinessName: "A", schema.FieldSource: "x", schema.FieldNotes: "first"},
		{schema.FieldBusinessName: "B", schema.FieldSource: "x"},
		{schema.FieldBusinessName: "A", schema.FieldSource: "y"},
		{schema.FieldBusinessName: "A", schema.FieldSource: "x", schema.FieldNotes: "last"},
		{schema.FieldSource: "x"},
		{schema.FieldSource: "x"},
		unnamed("http://a"),
		unnamed("http://b"),
	}
	out, dropped := DedupeByKeys(def, records)
	assert.Equal(t, 1, dropped)
	require.Len(t, out, 7)
	assert.Equal(t, "B", out[0].String(schema.FieldBusinessName))
	assert.Equal(t, "last", out[2].String(schema.FieldNotes))
	assert.Equal(t, "http://b", out[6].String(schema.FieldOriginalURL))
}

func TestUploadKeepsRowsWithDefaultedNames(t *testing.T) {
	const in = "url,price\nhttp://a.com,100\nhttp://b.com,200\nhttp://c.com,300\n"
	store := newSQLite(t)
	def := mustLookup(t, schema.Deals)
	u := NewUploader(newTestPipeline(t, schema.Deals, PipelineOptions{}), store, nil, UploadOptions{}, utils.NewNopLogger())

	sum, err := u.Upload(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 3, sum.Accepted)
	assert.Equal(t, 3, sum.Successful)
	assert.Equal(t, 0, sum.Skipped)

	// a second upload of the same file has no natural key to match on
	sum, err = u.Upload(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Successful)

	stored, err := store.FetchAll(context.Background(), def)
	require.NoError(t, err)
	require.Len(t, stored, 6)
	for _, rec := range stored {
		assert.Equal(t, "Unnamed Business", rec.String(schema.FieldBusinessName))
		assert.Equal(t, "CSV Import", rec.String(schema.FieldSource))
	}
	assert.Equal(t, int64(300), stored[2][schema.FieldAskingPrice])
}
