package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/shopadmin/internal/assetstore"
)

func newListing(t *testing.T, f *fixture) *ListingService {
	t.Helper()
	prices, err := NewPriceFormatter("USD", "en-US")
	require.NoError(t, err)
	return NewListingService(f.repo, f.store, prices)
}

func TestListingFormatsPrices(t *testing.T) {
	f := newFixture(t)
	seedProduct(t, f.repo, "alpha", 500, true)
	seedProduct(t, f.repo, "beta", 123456, false)

	res, err := newListing(t, f).List(context.Background(), ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, defaultPageSize, res.PageSize)
	require.Len(t, res.Items, 2)
	assert.Contains(t, res.Items[0].PriceDisplay, "$")
	assert.Contains(t, res.Items[0].PriceDisplay, "5.00")
	assert.Regexp(t, `1,?234\.56`, res.Items[1].PriceDisplay)
}

func TestNewPriceFormatterRejectsUnknownCurrency(t *testing.T) {
	_, err := NewPriceFormatter("XYZW", "en")
	assert.Error(t, err)
	_, err = NewPriceFormatter("EUR", "not a locale!")
	assert.Error(t, err)
}

func TestListingExportCSV(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"alpha", "beta", "gamma"} {
		seedProduct(t, f.repo, name, 100, true)
	}

	var buf bytes.Buffer
	require.NoError(t, newListing(t, f).ExportCSV(context.Background(), ListQuery{PageSize: 1}, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4, "header plus every product regardless of paging")
	assert.Equal(t, []string{"id", "name", "price_in_cents", "price", "available", "orders", "created_at"}, records[0])
	assert.Equal(t, "alpha", records[1][1])
	assert.Equal(t, "gamma", records[3][1])
}

func TestListingResolveDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing := newListing(t, f)

	p, err := f.coord.CreateProduct(ctx, validInput(), &Payload{Filename: "Field Guide.pdf", Data: []byte("guide")}, imagePayload())
	require.NoError(t, err)

	dl, err := listing.ResolveDownload(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Field Guide.pdf", dl.Filename)
	data, err := os.ReadFile(dl.Path)
	require.NoError(t, err)
	assert.Equal(t, "guide", string(data))

	require.NoError(t, f.store.inner.Remove(ctx, assetstore.RootPrivate, p.FilePath))
	_, err = listing.ResolveDownload(ctx, p.ID)
	assert.ErrorIs(t, err, assetstore.ErrNotFound)

	_, err = listing.ResolveDownload(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingGet(t *testing.T) {
	f := newFixture(t)
	p := seedProduct(t, f.repo, "alpha", 100, true)

	got, err := newListing(t, f).Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Description, got.Description)
}
