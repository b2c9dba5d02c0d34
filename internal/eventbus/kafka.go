// Package eventbus fans progress events out to external collaborators
// (chat/HTTP frontends watching a run) over Kafka. It is strictly
// best-effort and additive: a nil or misconfigured Publisher is always safe
// to call (spec.md §1, "external collaborators"; SPEC_FULL.md §4.13 keeps
// only the producer side of the teacher's kafka-go usage — a consumer is a
// frontend concern).
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"finyx/internal/progress"
)

// ProgressEvent is the wire shape published for one progress.Event, tagged
// with the transaction/session it belongs to so consumers can demultiplex a
// shared topic.
type ProgressEvent struct {
	TransactionID string         `json:"transactionId"`
	SessionID     string         `json:"sessionId"`
	Event         progress.Event `json:"event"`
	PublishedAt   time.Time      `json:"publishedAt"`
}

// Publisher publishes progress events to a Kafka topic. A nil *Publisher is
// safe to call — every method is a no-op — so callers can construct one
// unconditionally and skip it only when config.StoreConfig.KafkaBrokers is
// empty.
type Publisher struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewPublisher builds a Publisher over the given brokers and topic. Returns
// nil (not an error) when brokers is empty, matching the teacher's
// "enabled-or-nil" constructor pattern.
func NewPublisher(brokers []string, topic string, log zerolog.Logger) *Publisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		log: log,
	}
}

// Publish writes one progress event. Errors are logged, not returned —
// event-bus delivery must never fail the workflow it is reporting on.
func (p *Publisher) Publish(ctx context.Context, transactionID, sessionID string, ev progress.Event) {
	if p == nil || p.writer == nil {
		return
	}
	payload, err := json.Marshal(ProgressEvent{
		TransactionID: transactionID,
		SessionID:     sessionID,
		Event:         ev,
		PublishedAt:   time.Now(),
	})
	if err != nil {
		p.log.Warn().Err(err).Msg("eventbus: marshal progress event failed")
		return
	}
	msg := kafka.Message{Key: []byte(transactionID), Value: payload, Time: time.Now()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn().Err(err).Msg("eventbus: publish progress event failed")
	}
}

// PublishAll publishes every event in a context's progress log newer than
// the given count, for use after each orchestrator node completes.
func (p *Publisher) PublishAll(ctx context.Context, transactionID, sessionID string, events []progress.Event, from int) {
	if p == nil || p.writer == nil || from >= len(events) {
		return
	}
	for _, ev := range events[from:] {
		p.Publish(ctx, transactionID, sessionID, ev)
	}
}

// Close shuts down the underlying writer; safe to call on a nil Publisher.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
