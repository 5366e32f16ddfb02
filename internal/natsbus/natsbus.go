// Package natsbus publishes and subscribes to dashboard events over NATS core.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"budgetbuddy/internal/log"
	"budgetbuddy/internal/notify"
)

// DefaultSubject is the subject prefix events are published under. The
// event kind is appended, e.g. budgetbuddy.events.sync.state.
const DefaultSubject = "budgetbuddy.events"

type Client struct {
	nc      *nats.Conn
	subject string
	logger  *log.Logger
}

var _ notify.Sink = (*Client)(nil)

// Connect dials url with reconnects enabled.
func Connect(url, subject string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default(log.ComponentNATS)
	}
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("budgetbuddy"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", log.FieldError, err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Client{nc: nc, subject: subject, logger: logger}, nil
}

func (c *Client) Name() string { return "nats" }

// Subject returns the subject an event of the given kind is published on.
func (c *Client) Subject(kind notify.Kind) string {
	return c.subject + "." + string(kind)
}

// Publish implements notify.Sink.
func (c *Client) Publish(ctx context.Context, e notify.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.nc.Publish(c.Subject(e.Kind), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe delivers every event under the subject prefix to handler until
// ctx is done.
func (c *Client) Subscribe(ctx context.Context, handler func(notify.Event)) error {
	sub, err := c.nc.Subscribe(c.subject+".>", func(msg *nats.Msg) {
		var e notify.Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			c.logger.Warn("Dropping undecodable event", "subject", msg.Subject, log.FieldError, err)
			return
		}
		handler(e)
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("Subscribed to events", "subject", sub.Subject)
	<-ctx.Done()
	return ctx.Err()
}

func (c *Client) Close() error {
	if c.nc == nil {
		return nil
	}
	return c.nc.Drain()
}
