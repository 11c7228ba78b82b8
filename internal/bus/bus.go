// Package bus carries planning events between the API and the workers.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

var (
	ErrClosed     = errors.New("bus is closed")
	ErrDropped    = errors.New("message dropped: subscriber buffer full")
	ErrNoReplyTo  = errors.New("message has no reply topic")
	ErrEmptyTopic = errors.New("topic is required")
)

// requestTimeout applies when a Request context carries no deadline.
const requestTimeout = 30 * time.Second

// New creates a new event bus based on configuration.
// For Community tier: returns ChannelBus.
// For Pro tier: returns NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// Reply answers a message received through Request.
func Reply(ctx context.Context, b domain.EventBus, msg *domain.Message, payload []byte) error {
	replyTo := msg.Metadata[domain.MetaReplyTo]
	if replyTo == "" {
		return ErrNoReplyTo
	}
	return b.Publish(ctx, replyTo, payload)
}
