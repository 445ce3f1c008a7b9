// Package distribution pushes the current word lists to the sibling
// detection services that subscribe to them.
//
// Delivery is fire-and-forget: each receiver gets its own task on the worker
// pool, failures are logged and counted, and nothing is retried here. A
// per-receiver circuit breaker stops hammering a receiver that keeps failing.
package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"wordhub/internal/platform/workers"
	"wordhub/internal/taxonomy"
	"wordhub/internal/words/models"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
	"wordhub/pkg/platform/circuit"
	pstrings "wordhub/pkg/platform/strings"
	"wordhub/pkg/requestcontext"
)

var tracer = otel.Tracer("wordhub/distribution")

// Source is the read side of the registry.
type Source interface {
	Types() []taxonomy.WordType
	Entries(t taxonomy.WordType) ([]models.WordEntry, error)
	Comment(t taxonomy.WordType) string
}

// Submitter schedules background work.
type Submitter interface {
	Submit(name string, task workers.Task) error
}

// Publisher builds payloads and schedules their delivery.
type Publisher struct {
	sender      string
	captcha     string
	subscribers map[taxonomy.WordType][]string
	source      Source
	transport   Transport
	pool        Submitter
	timeout     time.Duration
	logger      *slog.Logger
	metrics     *Metrics

	breakerOpts []circuit.Option
	breakersMu  sync.Mutex
	breakers    map[string]*circuit.Breaker
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithSender names this service in outgoing envelopes.
func WithSender(name string) Option {
	return func(p *Publisher) {
		if name != "" {
			p.sender = name
		}
	}
}

// WithCaptchaReceiver names the service asked for CAPTCHA failure data.
func WithCaptchaReceiver(name string) Option {
	return func(p *Publisher) {
		if name != "" {
			p.captcha = name
		}
	}
}

// WithDeliveryTimeout bounds each delivery attempt.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithBreakerOptions configures the per-receiver circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(p *Publisher) {
		p.breakerOpts = append(p.breakerOpts, opts...)
	}
}

// New constructs a Publisher. subscribers maps each word type to the
// receivers that consume it.
func New(source Source, transport Transport, pool Submitter, subscribers map[taxonomy.WordType][]string, opts ...Option) (*Publisher, error) {
	if source == nil {
		return nil, errors.New("source is required")
	}
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if pool == nil {
		return nil, errors.New("worker pool is required")
	}
	p := &Publisher{
		sender:      "REGEX",
		captcha:     "CAPTCHA",
		subscribers: make(map[taxonomy.WordType][]string, len(subscribers)),
		source:      source,
		transport:   transport,
		pool:        pool,
		timeout:     10 * time.Second,
		logger:      slog.Default(),
		breakers:    make(map[string]*circuit.Breaker),
	}
	for t, receivers := range subscribers {
		p.subscribers[t] = slices.Clone(receivers)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Subscribers returns the receivers of t.
func (p *Publisher) Subscribers(t taxonomy.WordType) []string {
	return slices.Clone(p.subscribers[t])
}

// Push snapshots t and schedules one delivery per subscriber. It returns
// once the deliveries are queued; their failures are never reported here.
func (p *Publisher) Push(ctx context.Context, t taxonomy.WordType) error {
	ctx, span := tracer.Start(ctx, "Publisher.Push", trace.WithAttributes(
		attribute.String("type", string(t)),
	))
	defer span.End()

	entries, err := p.source.Entries(t)
	if err != nil {
		return err
	}
	receivers := p.subscribers[t]
	if len(receivers) == 0 {
		p.logger.DebugContext(ctx, "no subscribers, push skipped", "type", string(t))
		return nil
	}

	update := Update{
		Type:    string(t),
		Comment: p.source.Comment(t),
		Words:   make([]UpdateEntry, 0, len(entries)),
	}
	for _, e := range entries {
		update.Words = append(update.Words, UpdateEntry{
			Word:    e.Word,
			Average: e.Status.Average,
			Today:   e.Status.Today,
			Total:   e.Status.Total,
			Temp:    e.Status.Temp,
			Owner:   int64(e.Status.Owner),
		})
	}
	payload, err := p.envelope(receivers, ActionRegex, TypeUpdate, update)
	if err != nil {
		return err
	}
	p.schedule(ctx, receivers, payload)
	return nil
}

// PushAll pushes every known type concurrently.
func (p *Publisher) PushAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range p.source.Types() {
		g.Go(func() error {
			if err := p.Push(gctx, t); err != nil {
				return fmt.Errorf("push %s: %w", t, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Receivers returns the sorted, deduplicated union of every type's subscribers.
func (p *Publisher) Receivers() []string {
	lists := make([][]string, 0, len(p.subscribers))
	for _, receivers := range p.subscribers {
		lists = append(lists, receivers)
	}
	return pstrings.SortedUnion(lists...)
}

// RequestCount asks every subscriber to report its match counts and returns
// the receivers asked.
func (p *Publisher) RequestCount(ctx context.Context) ([]string, error) {
	receivers := p.Receivers()
	if len(receivers) == 0 {
		return nil, nil
	}
	payload, err := p.envelope(receivers, ActionRegex, TypeCount, "ask")
	if err != nil {
		return nil, err
	}
	p.schedule(ctx, receivers, payload)
	return receivers, nil
}

// RequestCaptcha asks the CAPTCHA service for its failure data on behalf of
// admin. The answer is addressed to messageID.
func (p *Publisher) RequestCaptcha(ctx context.Context, admin domain.ActorID, messageID domain.MessageID) error {
	receivers := []string{p.captcha}
	payload, err := p.envelope(receivers, ActionCaptcha, TypeAsk, CaptchaRequest{
		AdminID:   int64(admin),
		MessageID: int64(messageID),
	})
	if err != nil {
		return err
	}
	p.schedule(ctx, receivers, payload)
	return nil
}

func (p *Publisher) envelope(receivers []string, action, actionType string, data any) (Payload, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Payload{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode payload")
	}
	return Payload{
		Sender:     p.sender,
		Receivers:  slices.Clone(receivers),
		Action:     action,
		ActionType: actionType,
		Data:       raw,
	}, nil
}

func (p *Publisher) schedule(ctx context.Context, receivers []string, payload Payload) {
	requestID := requestcontext.RequestID(ctx)
	for _, receiver := range receivers {
		name := "distribute:" + payload.Action
		err := p.pool.Submit(name, func(ctx context.Context) {
			p.deliver(requestcontext.WithRequestID(ctx, requestID), receiver, payload)
		})
		if err != nil {
			p.metrics.IncDelivery(receiver, payload.Action, ResultDropped)
			p.logger.WarnContext(ctx, "delivery not scheduled",
				"receiver", receiver,
				"action", payload.Action,
				"error", err,
			)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, receiver string, payload Payload) {
	breaker := p.breaker(receiver)
	if !breaker.Allow() {
		p.metrics.IncDelivery(receiver, payload.Action, ResultCircuitOpen)
		p.logger.DebugContext(ctx, "circuit open, delivery skipped", "receiver", receiver)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.transport.Deliver(ctx, receiver, payload); err != nil {
		_, change := breaker.RecordFailure()
		if change.Opened {
			p.metrics.SetBreakerState(receiver, true)
			p.logger.WarnContext(ctx, "receiver circuit opened", "receiver", receiver)
		}
		p.metrics.IncDelivery(receiver, payload.Action, ResultFailed)
		p.logger.WarnContext(ctx, "delivery failed",
			"receiver", receiver,
			"action", payload.Action,
			"type", payload.ActionType,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	if _, change := breaker.RecordSuccess(); change.Closed {
		p.metrics.SetBreakerState(receiver, false)
		p.logger.InfoContext(ctx, "receiver circuit closed", "receiver", receiver)
	}
	p.metrics.IncDelivery(receiver, payload.Action, ResultDelivered)
}

func (p *Publisher) breaker(receiver string) *circuit.Breaker {
	p.breakersMu.Lock()
	defer p.breakersMu.Unlock()
	b, ok := p.breakers[receiver]
	if !ok {
		b = circuit.New(receiver, p.breakerOpts...)
		p.breakers[receiver] = b
	}
	return b
}
