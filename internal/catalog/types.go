package catalog

import (
	"strings"
	"time"
)

// Payload is an uploaded file held in memory.
type Payload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// IsEmpty reports a missing or zero-length payload.
func (p *Payload) IsEmpty() bool {
	return p == nil || len(p.Data) == 0
}

// ProductInput is the validated metadata of a create or update request.
type ProductInput struct {
	Name         string `form:"name" validate:"required,max=200"`
	Description  string `form:"description" validate:"required,max=20000"`
	PriceInCents int64  `form:"priceInCents" validate:"min=1"`
}

// ProductPatch lists the columns an update changes; nil fields are kept.
type ProductPatch struct {
	Name         *string
	Description  *string
	PriceInCents *int64
	IsAvailable  *bool
	FilePath     *string
	ImagePath    *string
}

func (p ProductPatch) updates() map[string]interface{} {
	updates := map[string]interface{}{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.PriceInCents != nil {
		updates["price_in_cents"] = *p.PriceInCents
	}
	if p.IsAvailable != nil {
		updates["is_available"] = *p.IsAvailable
	}
	if p.FilePath != nil {
		updates["file_path"] = *p.FilePath
	}
	if p.ImagePath != nil {
		updates["image_path"] = *p.ImagePath
	}
	return updates
}

// ProductSummary is the listing projection.
type ProductSummary struct {
	ID           int64     `json:"id,string" csv:"id"`
	Name         string    `json:"name" csv:"name"`
	PriceInCents int64     `json:"price_in_cents" csv:"price_in_cents"`
	PriceDisplay string    `gorm:"-" json:"price_display" csv:"price"`
	IsAvailable  bool      `json:"is_available" csv:"available"`
	OrderCount   int64     `json:"order_count" csv:"orders"`
	CreatedAt    time.Time `json:"created_at" csv:"created_at"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

// ListQuery filters, orders and pages the listing.
type ListQuery struct {
	Query     string
	Available *bool
	Sort      string
	Order     string
	Page      int
	PageSize  int
}

// whitelist allowed sort columns to avoid SQL injection
var sortColumns = map[string]string{
	"name":           "catalog_product.name",
	"price":          "catalog_product.price_in_cents",
	"price_in_cents": "catalog_product.price_in_cents",
	"is_available":   "catalog_product.is_available",
	"order_count":    "order_count",
	"orders":         "order_count",
	"created_at":     "catalog_product.created_at",
	"updated_at":     "catalog_product.updated_at",
}

func (q ListQuery) normalize() ListQuery {
	q.Query = strings.TrimSpace(q.Query)
	if _, ok := sortColumns[q.Sort]; !ok {
		q.Sort = "name"
	}
	q.Order = strings.ToUpper(strings.TrimSpace(q.Order))
	if q.Order != "ASC" && q.Order != "DESC" {
		q.Order = "ASC"
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	return q
}

func (q ListQuery) orderBy() string {
	return sortColumns[q.Sort] + " " + q.Order + ", catalog_product.id ASC"
}
