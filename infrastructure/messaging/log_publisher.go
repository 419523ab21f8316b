// Package messaging provides event publishing adapters.
package messaging

import (
	"context"

	"go.uber.org/zap"

	"studypace/application/ports"
	"studypace/domain/events"
)

// LogPublisher writes domain events to the structured log instead of a broker.
// It backs the sqlite and memory persistence drivers, where no external bus
// is deployed.
type LogPublisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher creates a log-backed event publisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateID", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()),
		zap.Int("version", event.GetVersion()),
	)
	return nil
}

func (p *LogPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, event := range batch {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
