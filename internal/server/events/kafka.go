package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/dmitrijs2005/lakeadmin/internal/logging"
	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
	"github.com/segmentio/kafka-go"
)

// ErrNoBrokers is returned when a publisher is built without brokers.
var ErrNoBrokers = errors.New("no kafka brokers configured")

// messageWriter is the part of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per event. The message key is the event
// subject so events about one job or tenant keep their order on a partition.
type KafkaPublisher struct {
	w   messageWriter
	log logging.Logger
}

// NewKafkaPublisher builds a synchronous writer for brokers. The topic is set
// per message.
func NewKafkaPublisher(brokers []string, log logging.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return newKafkaPublisher(w, log), nil
}

func newKafkaPublisher(w messageWriter, log logging.Logger) *KafkaPublisher {
	return &KafkaPublisher{w: w, log: log.With("module", "events")}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.Type, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(ev.Subject()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
			{Key: "sender", Value: []byte(ev.Sender)},
		},
		Time: ev.Time,
	}

	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.log.Warn(ctx, "publish failed", "topic", topic, "type", ev.Type, "event_id", ev.ID, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: publish %s to %s: %v", common.ErrorBackendTimeout, ev.Type, topic, err)
		}
		return fmt.Errorf("%w: publish %s to %s: %v", common.ErrorBackend, ev.Type, topic, err)
	}

	p.log.Debug(ctx, "event published", "topic", topic, "type", ev.Type, "event_id", ev.ID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
