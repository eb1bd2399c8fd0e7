package sensorfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/logger"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/service"
	"github.com/segmentio/kafka-go"
)

var ErrConsumerClosed = errors.New("consumer is closed")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads sensor readings from a Kafka topic and ingests them.
//
// Each message is committed after it is handled. Readings that can never be
// applied (bad JSON, missing or out-of-range fullness, unknown facility) are logged and skipped;
// store failures are retried with backoff before the message is given up.
type Consumer struct {
	reader     messageReader
	ingestor   *Ingestor
	log        *logger.Logger
	maxRetries int
	backoff    time.Duration
	closed     bool
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

// NewConsumer creates a group consumer on topic.
func NewConsumer(brokers []string, topic, groupID string, ingestor *Ingestor, log *logger.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("group ID cannot be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
		StartOffset:    kafka.LastOffset,
		Logger:         kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error(fmt.Sprintf(msg, args...), "topic", topic)
		}),
	})
	return newConsumer(reader, ingestor, log), nil
}

func newConsumer(r messageReader, ingestor *Ingestor, log *logger.Logger) *Consumer {
	return &Consumer{
		reader:     r,
		ingestor:   ingestor,
		log:        log,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// Start consumes until ctx is cancelled or the reader fails permanently.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConsumerClosed
	}
	c.wg.Add(1)
	c.mu.RUnlock()
	defer c.wg.Done()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if c.isClosed() {
				return ErrConsumerClosed
			}
			c.log.Error("Failed to fetch sensor message", "error", err)
			if !sleep(ctx, c.backoff) {
				return ctx.Err()
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("Failed to commit sensor message", "offset", msg.Offset, "error", err)
		}
	}
}

// handle decodes and ingests one message. It never returns an error: a
// message that cannot be applied is logged and skipped.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	reading, err := decodeReading(msg)
	if err != nil {
		c.log.Warn("Discarding malformed sensor message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}

	for attempt := 0; ; attempt++ {
		err = c.ingestor.Ingest(ctx, reading)
		if err == nil {
			return
		}
		if !retryable(err) || attempt >= c.maxRetries {
			break
		}
		c.log.Warn("Retrying sensor reading",
			"facility_id", reading.FacilityID,
			"attempt", attempt+1,
			"error", err,
		)
		if !sleep(ctx, time.Duration(attempt+1)*c.backoff) {
			return
		}
	}

	c.log.Error("Dropping sensor reading",
		"facility_id", reading.FacilityID,
		"fullness", reading.Fullness,
		"offset", msg.Offset,
		"error", err,
	)
}

var errMissingFullness = errors.New("fullness is required")

// sensorMessage is the wire form of a reading. Fullness is a pointer so an
// absent field is told apart from a reported 0.
type sensorMessage struct {
	FacilityID string    `json:"facilityId"`
	Fullness   *int      `json:"fullness"`
	ObservedAt time.Time `json:"observedAt"`
	Source     string    `json:"source"`
}

// decodeReading parses the JSON payload. A missing facility id is taken from
// the message key; a missing timestamp from the message time. A payload
// without fullness is malformed.
func decodeReading(msg kafka.Message) (model.SensorReading, error) {
	var wire sensorMessage
	if err := json.Unmarshal(msg.Value, &wire); err != nil {
		return model.SensorReading{}, fmt.Errorf("decode sensor reading: %w", err)
	}
	if wire.Fullness == nil {
		return model.SensorReading{}, errMissingFullness
	}

	reading := model.SensorReading{
		FacilityID: wire.FacilityID,
		Fullness:   *wire.Fullness,
		ObservedAt: wire.ObservedAt,
		Source:     wire.Source,
	}
	if reading.FacilityID == "" {
		reading.FacilityID = string(msg.Key)
	}
	if reading.ObservedAt.IsZero() {
		reading.ObservedAt = msg.Time
	}
	if reading.Source == "" {
		reading.Source = "kafka"
	}
	return reading, nil
}

func retryable(err error) bool {
	return errors.Is(err, service.ErrStoreUnavailable)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close waits for Start to return and closes the reader.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.reader.Close()
	c.wg.Wait()
	return err
}
