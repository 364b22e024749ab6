// Package nats implements an optional event fan-out publisher over NATS
// JetStream: every event appended to a project's log is also published to
// coordination.<project_id>.<kind> so out-of-process ancillary consumers
// (a bot, cost/quality analyzers) can subscribe without touching the
// core's WebSocket protocol. It also exposes JetStream KV bucket access
// for an optional L2 mirror of read projections. Fan-out is never on the
// critical path: publish failures are logged and never block or fail the
// triggering request.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/logger"
	"github.com/relaymesh/coordinator/internal/resilience"
)

const (
	streamName      = "COORDINATION"
	headerRequestID = "X-Request-ID"
)

// Publisher mirrors project events onto NATS subjects and provides access
// to JetStream KV buckets for the L2 cache mirror.
type Publisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	breaker *resilience.Breaker
}

// Connect establishes a connection to NATS and ensures the fan-out stream
// exists.
func Connect(ctx context.Context, url string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"coordination.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats fan-out publisher connected", "url", url, "stream", streamName)
	return &Publisher{nc: nc, js: js}, nil
}

// SetBreaker attaches a circuit breaker to the publish path so a NATS
// outage degrades to silent drops instead of piling up blocked publishes.
func (p *Publisher) SetBreaker(b *resilience.Breaker) {
	p.breaker = b
}

// Publish mirrors a single project event onto
// coordination.<project_id>.<kind>.
func (p *Publisher) Publish(ctx context.Context, projectID string, ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("coordination.%s.%s", projectID, ev.Kind)
	msg := &nats.Msg{Subject: subject, Data: data}
	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header = nats.Header{}
		msg.Header.Set(headerRequestID, reqID)
	}

	publish := func() error {
		if _, err := p.js.PublishMsg(ctx, msg); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	if p.breaker != nil {
		return p.breaker.Execute(publish)
	}
	return publish()
}

// KeyValue returns (creating if needed) a JetStream KV bucket, for the L2
// read-projection mirror.
func (p *Publisher) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := p.js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	return p.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket, TTL: ttl})
}

// Drain flushes pending publishes and closes the connection.
func (p *Publisher) Drain() error {
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection immediately.
func (p *Publisher) Close() error {
	p.nc.Close()
	return nil
}

// IsConnected reports whether the NATS connection is active.
func (p *Publisher) IsConnected() bool {
	return p.nc.IsConnected()
}
