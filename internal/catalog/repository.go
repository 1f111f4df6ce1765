package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/talkincode/shopadmin/internal/domain"
	"github.com/talkincode/shopadmin/pkg/common"
	"gorm.io/gorm"
)

// Repository is the relational store of products.
type Repository interface {
	// Create inserts p, assigning an id when p.ID is zero
	Create(ctx context.Context, p *domain.Product) error

	// Update applies patch in one statement and returns the stored row
	Update(ctx context.Context, id int64, patch ProductPatch) (*domain.Product, error)

	// Delete removes the product unless it has orders, returning the deleted row
	Delete(ctx context.Context, id int64) (*domain.Product, error)

	// FindByID loads a product with its order count
	FindByID(ctx context.Context, id int64) (*domain.Product, error)

	// List returns one page of the listing projection and the total match count
	List(ctx context.Context, q ListQuery) ([]ProductSummary, int64, error)

	// AssetRefs returns every deliverable and image reference in use
	AssetRefs(ctx context.Context) (files, images map[string]struct{}, err error)
}

// GormProductRepository is the GORM implementation of Repository
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GORM-based repository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == 0 {
		p.ID = common.UUIDint64()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return wrapStore("create product", err)
	}
	return nil
}

func (r *GormProductRepository) Update(ctx context.Context, id int64, patch ProductPatch) (*domain.Product, error) {
	var out domain.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&out).Error; err != nil {
			return err
		}
		updates := patch.updates()
		if len(updates) == 0 {
			return nil
		}
		updates["updated_at"] = time.Now()
		if err := tx.Model(&domain.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&out).Error
	})
	if err != nil {
		return nil, mapRepoErr("update product", err)
	}
	return &out, nil
}

func (r *GormProductRepository) Delete(ctx context.Context, id int64) (*domain.Product, error) {
	var out domain.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&out).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Order{}).Where("product_id = ?", id).Count(&out.OrderCount).Error; err != nil {
			return err
		}
		if out.OrderCount > 0 {
			return ErrProductHasOrders
		}
		return tx.Where("id = ?", id).Delete(&domain.Product{}).Error
	})
	if err != nil {
		return nil, mapRepoErr("delete product", err)
	}
	return &out, nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	var out domain.Product
	db := r.db.WithContext(ctx)
	if err := db.Where("id = ?", id).First(&out).Error; err != nil {
		return nil, mapRepoErr("find product", err)
	}
	if err := db.Model(&domain.Order{}).Where("product_id = ?", id).Count(&out.OrderCount).Error; err != nil {
		return nil, wrapStore("count orders", err)
	}
	return &out, nil
}

const summaryColumns = "catalog_product.id, catalog_product.name, catalog_product.price_in_cents, " +
	"catalog_product.is_available, catalog_product.created_at, " +
	"(SELECT COUNT(*) FROM catalog_order WHERE catalog_order.product_id = catalog_product.id) AS order_count"

func (r *GormProductRepository) List(ctx context.Context, q ListQuery) ([]ProductSummary, int64, error) {
	q = q.normalize()

	db := r.db.WithContext(ctx).Model(&domain.Product{})
	if q.Query != "" {
		if strings.EqualFold(db.Name(), "postgres") {
			db = db.Where("catalog_product.name ILIKE ?", "%"+q.Query+"%")
		} else {
			db = db.Where("LOWER(catalog_product.name) LIKE ?", "%"+strings.ToLower(q.Query)+"%")
		}
	}
	if q.Available != nil {
		db = db.Where("catalog_product.is_available = ?", *q.Available)
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, wrapStore("count products", err)
	}

	rows := make([]ProductSummary, 0, q.PageSize)
	err := db.Select(summaryColumns).
		Order(q.orderBy()).
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, wrapStore("list products", err)
	}
	return rows, total, nil
}

func (r *GormProductRepository) AssetRefs(ctx context.Context) (files, images map[string]struct{}, err error) {
	var rows []struct {
		FilePath  string
		ImagePath string
	}
	if err := r.db.WithContext(ctx).Model(&domain.Product{}).
		Select("file_path, image_path").
		Scan(&rows).Error; err != nil {
		return nil, nil, wrapStore("load asset refs", err)
	}
	files = make(map[string]struct{}, len(rows))
	images = make(map[string]struct{}, len(rows))
	for _, row := range rows {
		files[row.FilePath] = struct{}{}
		images[row.ImagePath] = struct{}{}
	}
	return files, images, nil
}

func mapRepoErr(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, ErrProductHasOrders):
		return ErrProductHasOrders
	}
	return wrapStore(op, err)
}
