package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, topic string, payload []byte) ([]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `json:"type" yaml:"type"`

	// Channel settings (Community tier)
	ChannelBufferSize int `json:"channelBufferSize" yaml:"channel_buffer_size"`

	// NATS settings (Pro tier)
	NATSUrl           string `json:"natsUrl" yaml:"nats_url"`
	NATSToken         string `json:"-" yaml:"nats_token"`
	NATSMaxReconnects int    `json:"natsMaxReconnects" yaml:"nats_max_reconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait" yaml:"nats_reconnect_wait"` // seconds

	// NATSQueue, when set, makes subscribers join a queue group so each
	// message is handled by one instance only.
	NATSQueue string `json:"natsQueue" yaml:"nats_queue"`
}

// MetaReplyTo carries the reply topic of a request message.
const MetaReplyTo = "reply_to"

// Topic names for the asynchronous planning pipeline.
const (
	TopicPlanRequested = "wtm.plan.requested"
	TopicPlanReady     = "wtm.plan.ready"
)

// PlanRequest is the payload published on TopicPlanRequested.
type PlanRequest struct {
	PlanID  string           `json:"planId"`
	Profile FinancialProfile `json:"profile"`
}

// PlanEvent is the payload published on TopicPlanReady.
type PlanEvent struct {
	PlanID string     `json:"planId"`
	Status PlanStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}
