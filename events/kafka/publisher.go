/*
publisher.go - Kafka event publisher for committed entries

PURPOSE:
  Publishes an event to Kafka after an entry has been committed, so
  downstream consumers (reporting, audit pipelines) can react without
  polling the ledger API.

DELIVERY SEMANTICS:
  Publishing happens after the entry commit and is best-effort. A failed
  publish never rolls back the ledger write; the engine logs the failure
  and moves on.

SEE ALSO:
  - ledger/events.go: Publisher interface
  - cmd/server/main.go: Wiring (LEDGER_KAFKA_BROKERS)
*/
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/warp/ledger-engine/ledger"
)

// DefaultTopic is used when the caller does not name one.
const DefaultTopic = "ledger.entries.committed"

// Publisher sends entry-committed events to a Kafka topic.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// entryEvent is the wire format for a committed entry.
type entryEvent struct {
	EventType string `json:"event_type"`
	EntryID   string `json:"entry_id"`
	Debit     side   `json:"debit"`
	Credit    side   `json:"credit"`
	Date      string `json:"date"`
	UserID    string `json:"user_id"`
	EmittedAt string `json:"emitted_at"`
}

type side struct {
	AccountNo string `json:"account_no"`
	Amount    string `json:"amount"`
}

// EntryCommitted publishes one event per committed entry, keyed by the
// debit account number so events for one account stay ordered.
func (p *Publisher) EntryCommitted(ctx context.Context, entry ledger.Entry) error {
	event := entryEvent{
		EventType: "entry.committed",
		EntryID:   string(entry.ID),
		Debit:     side{AccountNo: entry.Debit.AccountNo, Amount: entry.Debit.Amount.String()},
		Credit:    side{AccountNo: entry.Credit.AccountNo, Amount: entry.Credit.Amount.String()},
		Date:      entry.Date.Format(time.RFC3339),
		UserID:    string(entry.UserID),
		EmittedAt: time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal entry event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(entry.Debit.AccountNo),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish entry event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ ledger.Publisher = (*Publisher)(nil)
