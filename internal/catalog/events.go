package catalog

import (
	"context"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/talkincode/shopadmin/internal/domain"
)

// Lifecycle event topics
const (
	TopicProductCreated      = "product:created"
	TopicProductUpdated      = "product:updated"
	TopicProductAvailability = "product:availability"
	TopicProductDeleted      = "product:deleted"
)

// Topics lists every lifecycle topic.
var Topics = []string{
	TopicProductCreated,
	TopicProductUpdated,
	TopicProductAvailability,
	TopicProductDeleted,
}

// ProductEvent is the single argument published on every topic; handlers
// are declared as func(ProductEvent).
type ProductEvent struct {
	Topic    string
	Product  domain.Product
	Operator Operator
	At       time.Time
}

// EventPublisher is the publishing half of EventBus.Bus.
type EventPublisher interface {
	Publish(topic string, args ...interface{})
}

// NewEventBus returns the in-process bus lifecycle events travel on.
func NewEventBus() EventBus.Bus {
	return EventBus.New()
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, ...interface{}) {}

// Operator identifies who triggered an operation.
type Operator struct {
	Name string
	IP   string
}

type operatorKey struct{}

// WithOperator attaches the acting operator to ctx.
func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// OperatorFrom returns the operator stored in ctx, if any.
func OperatorFrom(ctx context.Context) Operator {
	op, _ := ctx.Value(operatorKey{}).(Operator)
	return op
}
