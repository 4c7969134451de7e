package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/refresh"
)

// RatesEvent is the message published after each committed cycle.
type RatesEvent struct {
	CycleID    string                     `json:"cycleId"`
	Seq        uint64                     `json:"seq"`
	ProducedAt time.Time                  `json:"producedAt"`
	Rates      map[string]decimal.Decimal `json:"rates"`
	Deltas     map[string]decimal.Decimal `json:"deltas"`
	Unresolved []string                   `json:"unresolved,omitempty"`
}

// NewRatesEvent builds the event for a committed state.
func NewRatesEvent(state refresh.State) RatesEvent {
	ev := RatesEvent{
		CycleID:    state.CycleID,
		Seq:        state.Seq,
		ProducedAt: state.Snapshot.ProducedAt,
		Rates:      state.Snapshot.RatesCopy(),
		Deltas:     state.Deltas,
	}
	for _, a := range state.Assets {
		if a.Err != nil {
			ev.Unresolved = append(ev.Unresolved, a.Code)
		}
	}
	return ev
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes rates events keyed by cycle id.
// Implements refresh.Hook.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher creates a publisher writing to topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}
}

// NewKafkaPublisherWithWriter creates a publisher over an existing writer.
func NewKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Export(ctx context.Context, state refresh.State) error {
	value, err := json.Marshal(NewRatesEvent(state))
	if err != nil {
		return fmt.Errorf("marshaling rates event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(state.CycleID),
		Value: value,
		Time:  state.CommittedAt,
	})
	if err != nil {
		return fmt.Errorf("publishing rates event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
