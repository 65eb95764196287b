// Package events publishes sync outcomes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ndewijer/fci-sync/internal/model"
)

// Kinds of sync events. The subject is "<prefix>.<kind>".
const (
	KindUpdated   = "updated"
	KindPruned    = "pruned"
	KindCompleted = "completed"
)

// ClassEvent is published when a class row is written or pruned.
type ClassEvent struct {
	RunID           string           `json:"runId"`
	ClassID         string           `json:"classId"`
	FundID          string           `json:"fundId"`
	Action          model.SyncAction `json:"action"`
	CompositionDate string           `json:"compositionDate,omitempty"`
	At              time.Time        `json:"at"`
}

// Publisher sends sync events. Implementations must be safe to call from the runner goroutine.
type Publisher interface {
	PublishClass(ctx context.Context, ev ClassEvent) error
	PublishCompleted(ctx context.Context, report model.SyncReport) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishClass(context.Context, ClassEvent) error          { return nil }
func (NopPublisher) PublishCompleted(context.Context, model.SyncReport) error { return nil }
func (NopPublisher) Close() error                                             { return nil }

// NATSPublisher publishes JSON events on core NATS subjects.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	log    zerolog.Logger
}

// NewNATSPublisher connects to url. Reconnects are handled by the client library.
func NewNATSPublisher(url, prefix string, logger zerolog.Logger) (*NATSPublisher, error) {
	log := logger.With().Str("component", "events").Logger()

	nc, err := nats.Connect(url,
		nats.Name("fcisync"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{nc: nc, prefix: prefix, log: log}, nil
}

// Subject returns the subject for an event kind.
func Subject(prefix, kind string) string {
	if prefix == "" {
		return kind
	}
	return prefix + "." + kind
}

// PublishClass publishes an updated or pruned event.
func (p *NATSPublisher) PublishClass(ctx context.Context, ev ClassEvent) error {
	kind := KindUpdated
	if ev.Action == model.ActionPrune {
		kind = KindPruned
	}
	return p.publish(ctx, kind, ev)
}

// PublishCompleted publishes the final report of a run.
func (p *NATSPublisher) PublishCompleted(ctx context.Context, report model.SyncReport) error {
	return p.publish(ctx, KindCompleted, report)
}

func (p *NATSPublisher) publish(ctx context.Context, kind string, payload any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", kind, err)
	}
	if err := p.nc.Publish(Subject(p.prefix, kind), data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", kind, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	return err
}
