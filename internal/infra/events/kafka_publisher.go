package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"xprexx/internal/domain/model"

	skafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// segmentioのkafka.Writerのうち使う部分だけ（テストで差し替える）
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// 配送イベントをKafkaに流す。keyは追跡番号（同じ配送は同じpartitionに乗る）
type KafkaPublisher struct {
	writer Writer
	log    *zap.Logger
}

// Asyncで書くので、Publishはブローカーの応答を待たない。
// 書き込み失敗はCompletionでログに出す。
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []skafka.Message, err error) {
			if err != nil {
				log.Warn("kafka write failed",
					zap.String("topic", topic),
					zap.Int("messages", len(messages)),
					zap.Error(err),
				)
			}
		},
	}
	return &KafkaPublisher{writer: w, log: log}
}

func NewKafkaPublisherWithWriter(w Writer, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev model.ShipmentEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal shipment event: %w", err)
	}

	msg := skafka.Message{
		Key:   []byte(ev.TrackingNumber),
		Value: b,
		Time:  ev.OccurredAt,
		Headers: []skafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}

	p.log.Debug("shipment event published",
		zap.String("kind", string(ev.Kind)),
		zap.String("tracking_number", ev.TrackingNumber),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KAFKA_BROKERS未設定のとき
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, ev model.ShipmentEvent) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
