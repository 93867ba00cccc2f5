// Package events publishes pod lifecycle events observed by the volt client.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	volt "github.com/voltagegpu/volt-go"
)

// DefaultSubjectPrefix is the subject prefix used when none is given.
const DefaultSubjectPrefix = "volt"

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("events: nats connection closed")

// NATSPublisher publishes [volt.PodEvent] values as JSON on
// "<prefix>.pods.<id>.<status>".
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

var _ volt.EventPublisher = (*NATSPublisher)(nil)

// Option configures a NATSPublisher.
type Option func(*config)

type config struct {
	name          string
	reconnectWait time.Duration
	logger        *zap.Logger
	natsOpts      []nats.Option
}

// WithName sets the connection name reported to the server.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithReconnectWait sets the delay between reconnect attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(c *config) {
		c.reconnectWait = d
	}
}

// WithLogger logs connection state changes.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithNATSOptions appends raw nats.go options.
func WithNATSOptions(opts ...nats.Option) Option {
	return func(c *config) {
		c.natsOpts = append(c.natsOpts, opts...)
	}
}

// NewNATSPublisher connects to the NATS server at url. An empty prefix means
// DefaultSubjectPrefix.
func NewNATSPublisher(url, prefix string, opts ...Option) (*NATSPublisher, error) {
	cfg := &config{
		name:          "volt-go",
		reconnectWait: 2 * time.Second,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	log := cfg.logger
	natsOpts := append([]nats.Option{
		nats.Name(cfg.name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}, cfg.natsOpts...)

	nc, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: log}, nil
}

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(ev volt.PodEvent) string {
	return Subject(p.prefix, ev)
}

// Subject builds "<prefix>.pods.<id>.<status>". Characters NATS treats as
// token separators or wildcards are replaced in the id.
func Subject(prefix string, ev volt.PodEvent) string {
	return fmt.Sprintf("%s.pods.%s.%s", prefix, subjectToken(ev.PodID), subjectToken(string(ev.To)))
}

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return tokenReplacer.Replace(s)
}

// PublishPodEvent publishes ev. Core NATS publishing is asynchronous; ctx is
// only checked before the message is handed to the connection.
func (p *NATSPublisher) PublishPodEvent(ctx context.Context, ev volt.PodEvent) error {
	if p.nc == nil || p.nc.IsClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode pod event: %w", err)
	}
	return p.nc.Publish(p.Subject(ev), payload)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	return p.nc.Drain()
}
