package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set("Event-ID", uuid.NewString())
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		msg.Header.Set("X-Request-ID", requestID)
	}
	return n.conn.PublishMsg(msg)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

func toMessage(msg *nats.Msg) *Message {
	id := msg.Header.Get("Event-ID")
	if id == "" {
		id = uuid.NewString()
	}
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: time.Now(),
		ID:        id,
	}
}

// NopPublisher drops every event. Used when NATS is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

func (NopPublisher) Close() error { return nil }

// Event types and subjects
const (
	// Scan lifecycle events, published by terminals
	ScanClassified  = "scan.classified"
	ScanRejected    = "scan.rejected"
	ScanVerified    = "scan.verified"
	ScanCameraFault = "scan.camera_fault"

	// Check-in events, published by the verification service
	CheckinAttended = "checkin.attended"
)

// Event payloads
type ScanClassifiedEvent struct {
	TerminalID string    `json:"terminal_id"`
	Attempt    string    `json:"attempt"`
	Channel    string    `json:"channel"`
	CodeKind   string    `json:"code_kind"`
	At         time.Time `json:"at"`
}

type ScanRejectedEvent struct {
	TerminalID string    `json:"terminal_id"`
	Attempt    string    `json:"attempt"`
	Channel    string    `json:"channel"`
	Category   string    `json:"category"`
	At         time.Time `json:"at"`
}

type ScanVerifiedEvent struct {
	TerminalID     string    `json:"terminal_id"`
	Attempt        string    `json:"attempt"`
	CodeKind       string    `json:"code_kind"`
	Success        bool      `json:"success"`
	RegistrationID string    `json:"registration_id,omitempty"`
	Message        string    `json:"message,omitempty"`
	At             time.Time `json:"at"`
}

type ScanCameraFaultEvent struct {
	TerminalID string    `json:"terminal_id"`
	Mode       string    `json:"mode"`
	Category   string    `json:"category"`
	Hint       string    `json:"hint"`
	At         time.Time `json:"at"`
}

type CheckinAttendedEvent struct {
	RegistrationID string    `json:"registration_id"`
	InspectorID    string    `json:"inspector_id"`
	TerminalID     string    `json:"terminal_id,omitempty"`
	AttendedAt     time.Time `json:"attended_at"`
}
