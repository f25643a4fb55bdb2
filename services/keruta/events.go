package keruta

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keruta-io/keruta/services/keruta/service"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

const (
	EventsStreamName = "keruta-events"
	publishTimeout   = 2 * time.Second
	eventsMaxMsgs    = 100000
)

type producer interface {
	Produce(ctx context.Context, topic string, data []byte, id string) (*jetstream.PubAck, error)
}

// eventPublisher sends status events to NATS as <prefix>.<event type>. Failures are logged
// and dropped.
type eventPublisher struct {
	logger   *zap.Logger
	producer producer
	prefix   string
}

func newEventPublisher(logger *zap.Logger, producer producer, prefix string) *eventPublisher {
	return &eventPublisher{
		logger:   logger.Named("events"),
		producer: producer,
		prefix:   prefix,
	}
}

func (p *eventPublisher) subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *eventPublisher) Publish(ctx context.Context, event service.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	id := fmt.Sprintf("%s-%s-%s-%d", event.Type, event.ID, event.Status, event.At.UnixNano())
	if _, err := p.producer.Produce(ctx, p.subject(event.Type), data, id); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("type", event.Type),
			zap.String("id", event.ID),
			zap.Error(err))
	}
}
