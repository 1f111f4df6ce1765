package domain

import "time"

// OrphanAsset records an asset whose removal failed after the record that
// referenced it was already changed. The reconciler retries these.
type OrphanAsset struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Root      string    `gorm:"size:16;not null;uniqueIndex:idx_orphan_root_path" json:"root"` // private|public
	Path      string    `gorm:"size:1024;not null;uniqueIndex:idx_orphan_root_path" json:"path"`
	Reason    string    `gorm:"size:64" json:"reason"`
	Attempts  int       `gorm:"default:0" json:"attempts"`
	LastError string    `gorm:"type:text" json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (OrphanAsset) TableName() string {
	return "catalog_orphan_asset"
}
