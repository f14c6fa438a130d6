// Package invalidate repurposes the Kafka bus from cache invalidation
// (teacher's pkg/invalidation/kafka) into a signal primary workers
// send so secondaries flush their process-local count cache (C6)
// instantly instead of waiting out its TTL. One small topic, one
// event shape, no cell addressing.
package invalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/openaedmap/aedcore/internal/core/observability"
)

// Event kinds. The subscriber treats both the same way today (flush
// everything); kept distinct so a future consumer can react
// differently without a wire format change.
const (
	KindCountriesChanged       = "countries_changed"
	KindAEDCountryCodesChanged = "aed_country_codes_changed"
)

// Event is the wire shape published to the invalidation topic.
type Event struct {
	Kind      string  `json:"kind"`
	Timestamp float64 `json:"timestamp"`
}

// Publisher sends invalidation events. A Publisher built with
// Enable=false is a no-op, so callers can wire it unconditionally.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	enabled  bool
}

// NewPublisher connects a synchronous producer to brokers. When
// enabled is false (or brokers is empty) it returns a no-op
// Publisher.
func NewPublisher(brokers []string, topic string, enabled bool) (*Publisher, error) {
	if !enabled || len(brokers) == 0 {
		return &Publisher{enabled: false}, nil
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return &Publisher{producer: producer, topic: topic, enabled: true}, nil
}

// Close releases the underlying producer, if any.
func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishCountriesChanged announces that the country table (and
// therefore every AED's country_codes) was just replaced.
func (p *Publisher) PublishCountriesChanged(ctx context.Context) error {
	return p.publish(KindCountriesChanged)
}

// PublishAEDCountryCodesChanged announces a smaller-scope country-code
// reassignment (a diff cycle touching a handful of AEDs).
func (p *Publisher) PublishAEDCountryCodesChanged(ctx context.Context) error {
	return p.publish(KindAEDCountryCodesChanged)
}

func (p *Publisher) publish(kind string) error {
	if p == nil || !p.enabled {
		return nil
	}
	body, err := json.Marshal(Event{Kind: kind, Timestamp: float64(time.Now().Unix())})
	if err != nil {
		return fmt.Errorf("marshal invalidation event: %w", err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("publish invalidation event: %w", err)
	}
	observability.ObserveInvalidationEvent(kind, "out")
	return nil
}

// Subscriber runs a consumer-group loop invoking OnEvent for every
// message received. Secondary workers use this to flush their local
// count cache the moment the primary commits a country or AED
// country-code update.
type Subscriber struct {
	brokers []string
	groupID string
	topic   string
	onEvent func(Event)
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSubscriber(brokers []string, groupID, topic string, onEvent func(Event), logger *slog.Logger) *Subscriber {
	return &Subscriber{brokers: brokers, groupID: groupID, topic: topic, onEvent: onEvent, logger: logger}
}

// Start joins the consumer group and processes messages until ctx is
// canceled or Stop is called. A no-op if brokers is empty.
func (s *Subscriber) Start(ctx context.Context) error {
	if len(s.brokers) == 0 {
		return nil
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(s.brokers, s.groupID, cfg)
	if err != nil {
		return fmt.Errorf("kafka consumer group: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer group.Close()
		handler := &consumerHandler{onEvent: s.onEvent}
		for {
			if err := group.Consume(runCtx, []string{s.topic}, handler); err != nil {
				if s.logger != nil {
					s.logger.Error("invalidation consume error", "err", err)
				}
				select {
				case <-time.After(2 * time.Second):
				case <-runCtx.Done():
					return
				}
			}
			if runCtx.Err() != nil {
				return
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for err := range group.Errors() {
			if s.logger != nil {
				s.logger.Error("invalidation consumer group error", "err", err)
			}
		}
	}()

	return nil
}

// Stop cancels the consume loop and waits for it to exit.
func (s *Subscriber) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

type consumerHandler struct {
	onEvent func(Event)
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var ev Event
		if err := json.Unmarshal(msg.Value, &ev); err == nil {
			observability.ObserveInvalidationEvent(ev.Kind, "in")
			if h.onEvent != nil {
				h.onEvent(ev)
			}
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
