package catalog

import (
	"context"
	"fmt"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/talkincode/shopadmin/internal/domain"
	"github.com/talkincode/shopadmin/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditRecorder writes one sys_opr_log row per lifecycle event.
type AuditRecorder struct {
	db *gorm.DB
}

func NewAuditRecorder(db *gorm.DB) *AuditRecorder {
	return &AuditRecorder{db: db}
}

// Subscribe registers the recorder on every lifecycle topic.
func (r *AuditRecorder) Subscribe(bus EventBus.Bus) error {
	for _, topic := range Topics {
		if err := bus.Subscribe(topic, r.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

// Handle persists ev. Failures are logged; an audit problem never fails
// the operation that produced the event.
func (r *AuditRecorder) Handle(ev ProductEvent) {
	name := ev.Operator.Name
	if name == "" {
		name = "system"
	}
	row := &domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   name,
		OprIp:     ev.Operator.IP,
		OptAction: ev.Topic,
		OptDesc:   describeEvent(ev),
		OptTime:   ev.At,
	}
	if err := r.db.Create(row).Error; err != nil {
		zap.L().Error("write audit log failed",
			zap.String("namespace", "catalog"),
			zap.String("action", ev.Topic),
			zap.Error(err))
	}
}

// Purge deletes rows older than before.
func (r *AuditRecorder) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("opt_time < ?", before).Delete(&domain.SysOprLog{})
	return res.RowsAffected, res.Error
}

func describeEvent(ev ProductEvent) string {
	p := ev.Product
	switch ev.Topic {
	case TopicProductAvailability:
		return fmt.Sprintf("product %d %q available=%t", p.ID, p.Name, p.IsAvailable)
	case TopicProductDeleted:
		return fmt.Sprintf("product %d %q deleted", p.ID, p.Name)
	}
	return fmt.Sprintf("product %d %q price=%d", p.ID, p.Name, p.PriceInCents)
}
