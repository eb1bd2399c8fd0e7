// Package events publishes admitted reservations to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/logger"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
	"github.com/segmentio/kafka-go"
)

const (
	EventReservationAdmitted = "reservation.admitted"
	HeaderEventType          = "event-type"
)

var ErrPublisherClosed = errors.New("publisher is closed")

// ReservationAdmitted is the payload written for every admitted reservation.
type ReservationAdmitted struct {
	ReservationID string    `json:"reservationId"`
	UserID        string    `json:"userId"`
	FacilityID    string    `json:"facilityId"`
	AdmittedAt    time.Time `json:"admittedAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes reservation events keyed by facility id, so events of one
// facility stay ordered within a partition.
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
	log     *logger.Logger
	closed  bool
	mu      sync.RWMutex
}

// NewPublisher creates a publisher for topic on brokers.
func NewPublisher(brokers []string, topic string, log *logger.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error(fmt.Sprintf(msg, args...), "topic", topic)
		}),
	}
	return newPublisher(writer, log), nil
}

func newPublisher(w messageWriter, log *logger.Logger) *Publisher {
	return &Publisher{writer: w, timeout: 5 * time.Second, log: log}
}

// ReservationAdmitted publishes r. It bounds the write so a slow broker cannot
// hold up the booking response indefinitely.
func (p *Publisher) ReservationAdmitted(ctx context.Context, r model.Reservation) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	value, err := json.Marshal(ReservationAdmitted{
		ReservationID: r.ID,
		UserID:        r.UserID,
		FacilityID:    r.FacilityID,
		AdmittedAt:    r.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(r.FacilityID),
		Value: value,
		Time:  r.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(EventReservationAdmitted)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish reservation %s: %w", r.ID, err)
	}

	p.log.Debug("Reservation event published", "id", r.ID, "facility_id", r.FacilityID)
	return nil
}

// Close flushes pending writes and releases the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
