// Package kafka streams audit events to a Kafka topic.
//
// Each event is produced synchronously as a JSON message keyed by the actor
// principal, so all events of one principal land on one partition in order.
// A circuit breaker sheds load while the broker is unreachable.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	audit "proofid/pkg/platform/audit"
	"proofid/pkg/platform/circuit"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrCircuitOpen is returned by Send while the broker is considered down.
var ErrCircuitOpen = errors.New("kafka audit sink circuit open")

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Message is the wire form of an audit event.
type Message struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Actor     string `json:"actor"`
	Subject   string `json:"subject,omitempty"`
	RecordID  string `json:"record_id,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewMessage converts an event to its wire form.
func NewMessage(e audit.Event) Message {
	m := Message{
		ID:        e.ID.String(),
		Category:  string(e.Category),
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:    string(e.Action),
		Actor:     e.Actor.String(),
		Decision:  e.Decision,
		Reason:    e.Reason,
		RequestID: e.RequestID,
	}
	if !e.Subject.IsZero() {
		m.Subject = e.Subject.String()
	}
	if e.RecordID != nil {
		m.RecordID = strconv.FormatUint(uint64(*e.RecordID), 10)
	}
	return m
}

type Sink struct {
	client  producer
	topic   string
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Sink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Sink) {
		s.breaker = b
	}
}

// New connects a producer to brokers for topic.
func New(brokers []string, topic string, opts ...Option) (*Sink, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return newSink(cl, topic, opts...), nil
}

func newSink(p producer, topic string, opts ...Option) *Sink {
	s := &Sink{
		client:  p,
		topic:   topic,
		breaker: circuit.New("kafka-audit", circuit.WithFailureThreshold(3), circuit.WithCooldown(15*time.Second)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send produces one event and waits for the broker acknowledgement.
func (s *Sink) Send(ctx context.Context, event audit.Event) error {
	if !s.breaker.Allow() {
		return ErrCircuitOpen
	}

	value, err := json.Marshal(NewMessage(event))
	if err != nil {
		return fmt.Errorf("marshal audit message: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Actor.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
		},
	}

	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "kafka audit sink circuit opened", "topic", s.topic, "error", err)
		}
		return fmt.Errorf("produce audit event: %w", err)
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "kafka audit sink circuit closed", "topic", s.topic)
	}
	return nil
}

func (s *Sink) Close() error {
	s.client.Close()
	return nil
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int32, replicationFactor int16) error {
	cl, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("create kafka admin client: %w", err)
	}
	defer cl.Close()

	resp, err := kadm.NewClient(cl).CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
