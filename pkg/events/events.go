// Package events carries order notifications between the storefront and the
// fulfillment service over NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/config"
	"github.com/example/rugstore/pkg/models"
)

// Conn is the part of *nats.Conn the publisher and subscriber use.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Connect dials the NATS server with reconnects enabled.
func Connect(cfg config.NATSConfig, name string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// OrderPlaced is the message published once an order is stored.
type OrderPlaced struct {
	Order      models.Order `json:"order"`
	OccurredAt time.Time    `json:"occurredAt"`
}

type Publisher struct {
	conn    Conn
	subject string
}

func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, o models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(OrderPlaced{Order: o, OccurredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}
	return nil
}

// OrderHandler processes a placed order announced on the bus.
type OrderHandler interface {
	RecordPlaced(ctx context.Context, o models.Order) error
}

type Subscriber struct {
	conn    Conn
	subject string
	handler OrderHandler
	timeout time.Duration
	logger  *zap.Logger
}

func NewSubscriber(conn Conn, subject string, handler OrderHandler, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		conn:    conn,
		subject: subject,
		handler: handler,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Start subscribes to the order subject. Unsubscribe the returned
// subscription to stop.
func (s *Subscriber) Start() (*nats.Subscription, error) {
	sub, err := s.conn.Subscribe(s.subject, s.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	s.logger.Info("Listening for placed orders", zap.String("subject", s.subject))
	return sub, nil
}

func (s *Subscriber) handle(msg *nats.Msg) {
	var event OrderPlaced
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.Warn("Dropping malformed order event", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.handler.RecordPlaced(ctx, event.Order); err != nil {
		s.logger.Error("Failed to record placed order", zap.String("order_id", event.Order.ID), zap.Error(err))
		return
	}
	s.logger.Debug("Order event processed", zap.String("order_id", event.Order.ID))
}
