package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	ledgerStreamMaxAge   = 30 * 24 * time.Hour
	ledgerDuplicateAfter = 2 * time.Minute
	consumerAckWait      = 30 * time.Second
	consumerMaxDeliver   = 3
)

var errNotConnected = errors.New("not connected to NATS JetStream")

// NATSOption tunes a NATSClient before Connect
type NATSOption func(*NATSClient)

// WithReconnect overrides the reconnect policy
func WithReconnect(maxAttempts int, wait time.Duration) NATSOption {
	return func(c *NATSClient) {
		c.maxReconnects = maxAttempts
		c.reconnectWait = wait
	}
}

// WithConnectionName sets the name the server shows for this connection
func WithConnectionName(name string) NATSOption {
	return func(c *NATSClient) { c.name = name }
}

// NATSClient is a JetStream connection shared by the ledger publisher and the watch consumer
type NATSClient struct {
	servers       string
	name          string
	maxReconnects int
	reconnectWait time.Duration

	mu   sync.RWMutex
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewNATSClient creates an unconnected client for a comma separated server list
func NewNATSClient(servers string, opts ...NATSOption) *NATSClient {
	c := &NATSClient{
		servers:       servers,
		name:          "lootledger",
		maxReconnects: 10,
		reconnectWait: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the servers and opens a JetStream context. A ctx deadline bounds the dial.
func (c *NATSClient) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(c.name),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("server", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			entry := log.WithError(err)
			if sub != nil {
				entry = entry.WithField("subject", sub.Subject)
			}
			entry.Error("NATS async error")
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	conn, err := nats.Connect(c.servers, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.mu.Lock()
	c.conn, c.js = conn, js
	c.mu.Unlock()

	log.WithField("servers", c.servers).Info("Connected to NATS")
	return nil
}

func (c *NATSClient) jetStream() (nats.JetStreamContext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, errNotConnected
	}
	return c.js, nil
}

// EnsureStream creates the stream, or widens an existing stream so it captures subjects
func (c *NATSClient) EnsureStream(name string, subjects []string) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	info, err := js.StreamInfo(name)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		_, err = js.AddStream(&nats.StreamConfig{
			Name:        name,
			Description: "Committed ledger balance and wager events",
			Subjects:    subjects,
			Retention:   nats.LimitsPolicy,
			Storage:     nats.FileStorage,
			MaxAge:      ledgerStreamMaxAge,
			Duplicates:  ledgerDuplicateAfter,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}
		log.WithFields(log.Fields{"stream": name, "subjects": subjects}).Info("Created JetStream stream")
		return nil
	case err != nil:
		return fmt.Errorf("failed to read stream %s: %w", name, err)
	}

	missing := false
	for _, s := range subjects {
		if !slices.Contains(info.Config.Subjects, s) {
			info.Config.Subjects = append(info.Config.Subjects, s)
			missing = true
		}
	}
	if !missing {
		return nil
	}
	if _, err := js.UpdateStream(&info.Config); err != nil {
		return fmt.Errorf("failed to update stream %s: %w", name, err)
	}
	log.WithFields(log.Fields{"stream": name, "subjects": info.Config.Subjects}).Info("Updated JetStream stream subjects")
	return nil
}

// Publish sends data to subject and waits for the stream acknowledgement
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	ack, err := js.Publish(subject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	log.WithFields(log.Fields{
		"subject":  subject,
		"stream":   ack.Stream,
		"sequence": ack.Sequence,
	}).Debug("Published message")
	return nil
}

// Subscribe attaches a durable, manually acknowledged consumer to subject.
// A handler error NAKs the message; JetStream gives up after a few deliveries.
func (c *NATSClient) Subscribe(consumer, subject string, handler func([]byte) error) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	durable := durableName(consumer, subject)
	sub, err := js.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			log.WithError(err).WithField("subject", msg.Subject).Error("Failed to handle message")
			if err := msg.Nak(); err != nil {
				log.WithError(err).Error("Failed to NAK message")
			}
			return
		}
		if err := msg.Ack(); err != nil {
			log.WithError(err).Error("Failed to ACK message")
		}
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.MaxDeliver(consumerMaxDeliver),
		nats.AckWait(consumerAckWait),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	log.WithFields(log.Fields{"subject": subject, "durable": durable}).Info("Subscribed to NATS subject")
	return nil
}

// durableName derives a JetStream-safe durable name; '.', '*' and '>' are not allowed
func durableName(consumer, subject string) string {
	safe := strings.NewReplacer(".", "_", "*", "any", ">", "all").Replace(subject)
	return consumer + "-" + safe
}

// IsConnected reports whether the connection is currently up
func (c *NATSClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Close unsubscribes every consumer and drains the connection
func (c *NATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.WithError(err).WithField("subject", sub.Subject).Warn("Failed to unsubscribe")
		}
	}
	c.subs = nil

	if c.conn == nil {
		return nil
	}
	err := c.conn.Drain()
	if err != nil {
		c.conn.Close()
	}
	c.conn, c.js = nil, nil
	log.Info("NATS connection closed")
	return err
}
