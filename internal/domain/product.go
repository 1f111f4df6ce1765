package domain

import "time"

// Product is a digital good: a private deliverable file plus a public
// preview image. FilePath and ImagePath are root-relative asset references.
type Product struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Name         string    `gorm:"size:200;not null;index" json:"name"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	PriceInCents int64     `gorm:"not null" json:"price_in_cents"`
	IsAvailable  bool      `gorm:"not null;default:false" json:"is_available"`
	FilePath     string    `gorm:"size:1024;not null" json:"file_path"`
	ImagePath    string    `gorm:"size:1024;not null" json:"image_path"`
	OrderCount   int64     `gorm:"-" json:"order_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "catalog_product"
}

// Order is a purchase of a product. Orders are written by the storefront;
// the admin side only counts them.
type Order struct {
	ID               int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	ProductID        int64     `gorm:"index;not null" json:"product_id,string"`
	PricePaidInCents int64     `json:"price_paid_in_cents"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName Specify table name
func (Order) TableName() string {
	return "catalog_order"
}
