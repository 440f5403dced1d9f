package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher puts trade lifecycle events on the wire. Publish is
// fire-and-forget: it must never block or fail a pipeline.
type Publisher interface {
	Publish(env Envelope)
}

// KafkaPublisher buffers envelopes in memory and writes them from a single
// background goroutine. Write errors are logged and dropped; the event stream
// is telemetry, not a ledger.
type KafkaPublisher struct {
	w         *kafka.Writer
	inbox     chan kafka.Message
	quit      chan struct{}
	closeOnce sync.Once
	closeCh   chan struct{}
}

func NewKafkaPublisher(brokers []string, topic string, buf int) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		inbox:   make(chan kafka.Message, buf),
		quit:    make(chan struct{}),
		closeCh: make(chan struct{}),
	}
}

func (p *KafkaPublisher) Start(ctx context.Context) {
	go func() {
		defer func() {
			_ = p.w.Close()
			close(p.closeCh)
		}()
		for {
			select {
			case <-ctx.Done():
				p.Close()
				p.drain()
				return
			case <-p.quit:
				p.drain()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

// drain flushes whatever is buffered at shutdown without waiting for more.
func (p *KafkaPublisher) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			return
		}
	}
}

func (p *KafkaPublisher) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		slog.Error("Failed to write event",
			slog.String("type", "error"),
			slog.Any("error", err))
	}
}

func (p *KafkaPublisher) Publish(env Envelope) {
	value, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal event envelope",
			slog.String("type", "error"),
			slog.Any("error", err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(env.CorrelationID),
		Value: value,
		Time:  time.Now(),
	}

	select {
	case <-p.quit:
		slog.Warn("Publisher closed, dropping event",
			slog.String("event_type", env.EventType))
		return
	default:
	}

	select {
	case p.inbox <- msg:
	default:
		// Full buffer means the broker is behind; dropping beats blocking a
		// committed pipeline on telemetry.
		slog.Warn("Event buffer full, dropping event",
			slog.String("event_type", env.EventType))
	}
}

// Close stops the background writer after flushing buffered events.
// Safe to call more than once.
func (p *KafkaPublisher) Close() {
	p.closeOnce.Do(func() { close(p.quit) })
}

// WaitClosed blocks until the background writer has exited.
func (p *KafkaPublisher) WaitClosed() { <-p.closeCh }
