package catalog

import (
	"context"
	"time"

	"github.com/talkincode/shopadmin/internal/assetstore"
	"github.com/talkincode/shopadmin/internal/domain"
	"github.com/talkincode/shopadmin/pkg/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reasons recorded on orphan ledger rows
const (
	OrphanReasonReplaced = "replaced"
	OrphanReasonDeleted  = "product_deleted"
	OrphanReasonRollback = "rollback"
)

// OrphanRecorder queues an asset whose removal failed.
type OrphanRecorder interface {
	Record(ctx context.Context, root assetstore.Root, ref, reason string, cause error) error
}

// OrphanRepository handles the orphan asset ledger
type OrphanRepository interface {
	OrphanRecorder

	// Pending returns rows still below maxAttempts, oldest first
	Pending(ctx context.Context, maxAttempts, limit int) ([]*domain.OrphanAsset, error)

	// Resolve removes a row once its asset is gone
	Resolve(ctx context.Context, id int64) error

	// MarkFailed increments the attempt counter and keeps the last error
	MarkFailed(ctx context.Context, id int64, errMsg string) error

	// Count returns the number of rows in the ledger
	Count(ctx context.Context) (int64, error)
}

// GormOrphanRepository is the GORM implementation of OrphanRepository
type GormOrphanRepository struct {
	db *gorm.DB
}

func NewGormOrphanRepository(db *gorm.DB) *GormOrphanRepository {
	return &GormOrphanRepository{db: db}
}

// Record inserts a ledger row. Recording the same asset twice refreshes
// the existing row instead.
func (r *GormOrphanRepository) Record(ctx context.Context, root assetstore.Root, ref, reason string, cause error) error {
	now := time.Now()
	row := &domain.OrphanAsset{
		ID:        common.UUIDint64(),
		Root:      string(root),
		Path:      ref,
		Reason:    reason,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cause != nil {
		row.LastError = cause.Error()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "root"}, {Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "last_error", "updated_at"}),
	}).Create(row).Error
}

func (r *GormOrphanRepository) Pending(ctx context.Context, maxAttempts, limit int) ([]*domain.OrphanAsset, error) {
	var rows []*domain.OrphanAsset
	err := r.db.WithContext(ctx).
		Where("attempts < ?", maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *GormOrphanRepository) Resolve(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.OrphanAsset{}).Error
}

func (r *GormOrphanRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return r.db.WithContext(ctx).Model(&domain.OrphanAsset{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + ?", 1),
			"last_error": errMsg,
			"updated_at": time.Now(),
		}).Error
}

func (r *GormOrphanRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.OrphanAsset{}).Count(&n).Error
	return n, err
}
