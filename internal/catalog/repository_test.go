package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/shopadmin/internal/assetstore"
	"github.com/talkincode/shopadmin/internal/domain"
)

func seedProduct(t *testing.T, repo *GormProductRepository, name string, price int64, available bool) *domain.Product {
	t.Helper()
	p := &domain.Product{
		Name:         name,
		Description:  name + " description",
		PriceInCents: price,
		IsAvailable:  available,
		FilePath:     "products/" + name + ".bin",
		ImagePath:    "products/" + name + ".png",
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestRepositoryCreateAndFind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := seedProduct(t, f.repo, "alpha", 500, false)
	assert.NotZero(t, p.ID)

	got, err := f.repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)
	assert.False(t, got.IsAvailable)
	assert.Zero(t, got.OrderCount)

	f.addOrder(t, p.ID)
	f.addOrder(t, p.ID)
	got, err = f.repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.OrderCount)

	_, err = f.repo.FindByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryUpdatePatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedProduct(t, f.repo, "alpha", 500, false)

	name := "renamed"
	available := true
	got, err := f.repo.Update(ctx, p.ID, ProductPatch{Name: &name, IsAvailable: &available})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.True(t, got.IsAvailable)
	assert.Equal(t, p.FilePath, got.FilePath, "untouched columns keep their value")
	assert.Equal(t, p.PriceInCents, got.PriceInCents)

	// flipping back to false must be written, not skipped as a zero value
	available = false
	got, err = f.repo.Update(ctx, p.ID, ProductPatch{IsAvailable: &available})
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)

	_, err = f.repo.Update(ctx, 42, ProductPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryDeleteRefusesProductsWithOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sold := seedProduct(t, f.repo, "sold", 500, true)
	f.addOrder(t, sold.ID)

	_, err := f.repo.Delete(ctx, sold.ID)
	assert.ErrorIs(t, err, ErrProductHasOrders)
	_, err = f.repo.FindByID(ctx, sold.ID)
	require.NoError(t, err, "refused delete keeps the row")

	fresh := seedProduct(t, f.repo, "fresh", 500, true)
	deleted, err := f.repo.Delete(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.FilePath, deleted.FilePath)
	_, err = f.repo.FindByID(ctx, fresh.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.repo.Delete(ctx, fresh.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryListProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := seedProduct(t, f.repo, "Charlie", 300, true)
	seedProduct(t, f.repo, "alpha", 100, false)
	seedProduct(t, f.repo, "Bravo", 200, true)
	f.addOrder(t, c.ID)
	f.addOrder(t, c.ID)

	rows, total, err := f.repo.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rows, 3)
	assert.Equal(t, "Bravo", rows[0].Name, "default order is by name ascending")
	assert.Equal(t, "Charlie", rows[1].Name)
	assert.Equal(t, int64(2), rows[1].OrderCount)
	assert.Equal(t, int64(300), rows[1].PriceInCents)
	assert.True(t, rows[1].IsAvailable)

	rows, _, err = f.repo.List(ctx, ListQuery{Sort: "order_count", Order: "desc"})
	require.NoError(t, err)
	assert.Equal(t, "Charlie", rows[0].Name)

	rows, total, err = f.repo.List(ctx, ListQuery{Query: "AL"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "alpha", rows[0].Name)

	yes := true
	_, total, err = f.repo.List(ctx, ListQuery{Available: &yes})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	rows, total, err = f.repo.List(ctx, ListQuery{Sort: "price", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "Charlie", rows[0].Name)

	// unknown sort columns fall back to name instead of reaching SQL
	rows, _, err = f.repo.List(ctx, ListQuery{Sort: "name; DROP TABLE catalog_product"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRepositoryAssetRefs(t *testing.T) {
	f := newFixture(t)
	p := seedProduct(t, f.repo, "alpha", 100, false)

	files, images, err := f.repo.AssetRefs(context.Background())
	require.NoError(t, err)
	assert.Contains(t, files, p.FilePath)
	assert.Contains(t, images, p.ImagePath)
	assert.NotContains(t, files, p.ImagePath)
}

func TestOrphanLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cause := errors.New("permission denied")

	require.NoError(t, f.orphans.Record(ctx, assetstore.RootPrivate, "products/a", OrphanReasonDeleted, cause))
	require.NoError(t, f.orphans.Record(ctx, assetstore.RootPrivate, "products/a", OrphanReasonReplaced, cause))
	require.NoError(t, f.orphans.Record(ctx, assetstore.RootPublic, "products/a", OrphanReasonDeleted, nil))

	n, err := f.orphans.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "the same root and path is recorded once")

	pending, err := f.orphans.Pending(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, f.orphans.MarkFailed(ctx, pending[0].ID, "still denied"))
	require.NoError(t, f.orphans.MarkFailed(ctx, pending[0].ID, "still denied"))
	pending, err = f.orphans.Pending(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "rows at the attempt limit are no longer pending")

	require.NoError(t, f.orphans.Resolve(ctx, pending[0].ID))
	n, err = f.orphans.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
