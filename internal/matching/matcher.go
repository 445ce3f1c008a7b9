package matching

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"wordhub/internal/taxonomy"
	"wordhub/internal/words/metrics"
	"wordhub/internal/words/models"
	"wordhub/pkg/requestcontext"
)

var tracer = otel.Tracer("wordhub/matching")

// Channel names the part of a message a text came from.
type Channel string

const (
	ChannelText     Channel = "text"
	ChannelName     Channel = "name"
	ChannelFilename Channel = "filename"
)

// Registry is the subset of the word registry the matcher reads and counts on.
type Registry interface {
	Types() []taxonomy.WordType
	Entries(t taxonomy.WordType) ([]models.WordEntry, error)
	Hit(t taxonomy.WordType, word string) (models.WordStatus, error)
}

// Match is the outcome of testing one text against one type.
type Match struct {
	Found   bool              `json:"found"`
	Type    taxonomy.WordType `json:"type"`
	Channel Channel           `json:"channel"`
	Word    string            `json:"word,omitempty"`
	Status  models.WordStatus `json:"status,omitempty"`
}

// Sample is a message broken down into its testable channels.
type Sample struct {
	Name     string `json:"name,omitempty"`
	Filename string `json:"filename,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Matcher tests texts against the registry's patterns and counts hits.
type Matcher struct {
	registry Registry
	compiler *Compiler
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Matcher.
type Option func(*Matcher)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Matcher) {
		m.metrics = mt
	}
}

// New constructs a Matcher.
func New(registry Registry, compiler *Compiler, opts ...Option) (*Matcher, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if compiler == nil {
		return nil, errors.New("compiler is required")
	}
	m := &Matcher{
		registry: registry,
		compiler: compiler,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Test matches text against t's entries in registry order. The first
// matching entry wins and has its counters bumped.
func (m *Matcher) Test(ctx context.Context, t taxonomy.WordType, text string) (Match, error) {
	return m.test(ctx, t, ChannelText, text)
}

// TestText is Test for message bodies.
func (m *Matcher) TestText(ctx context.Context, t taxonomy.WordType, text string) (Match, error) {
	return m.test(ctx, t, ChannelText, text)
}

// TestName matches a display name with its whitespace collapsed.
func (m *Matcher) TestName(ctx context.Context, t taxonomy.WordType, name string) (Match, error) {
	return m.test(ctx, t, ChannelName, strings.Join(strings.Fields(name), " "))
}

// TestFilename matches an attachment's file name.
func (m *Matcher) TestFilename(ctx context.Context, t taxonomy.WordType, filename string) (Match, error) {
	return m.test(ctx, t, ChannelFilename, strings.TrimSpace(filename))
}

// Scan tests every non-empty channel of s against every type in types, or
// every known type when types is empty, and returns the hits.
func (m *Matcher) Scan(ctx context.Context, types []taxonomy.WordType, s Sample) ([]Match, error) {
	if len(types) == 0 {
		types = m.registry.Types()
	}
	channels := []struct {
		fn   func(context.Context, taxonomy.WordType, string) (Match, error)
		text string
	}{
		{m.TestName, s.Name},
		{m.TestFilename, s.Filename},
		{m.TestText, s.Text},
	}

	var hits []Match
	for _, t := range types {
		for _, ch := range channels {
			if ch.text == "" {
				continue
			}
			match, err := ch.fn(ctx, t, ch.text)
			if err != nil {
				return hits, err
			}
			if match.Found {
				hits = append(hits, match)
			}
		}
	}
	return hits, nil
}

func (m *Matcher) test(ctx context.Context, t taxonomy.WordType, channel Channel, text string) (Match, error) {
	_, span := tracer.Start(ctx, "Matcher.Test", trace.WithAttributes(
		attribute.String("type", string(t)),
		attribute.String("channel", string(channel)),
	))
	defer span.End()

	result := Match{Type: t, Channel: channel}
	entries, err := m.registry.Entries(t)
	if err != nil {
		return result, err
	}
	if text == "" {
		return result, nil
	}

	for _, entry := range entries {
		re, err := m.compiler.Compile(entry.Word)
		if err != nil {
			m.logger.WarnContext(ctx, "stored pattern does not compile",
				"type", string(t),
				"word", entry.Word,
				"error", err,
			)
			continue
		}
		ok, err := re.MatchString(text)
		if err != nil {
			if IsTimeout(err) {
				m.logger.WarnContext(ctx, "pattern match timed out",
					"type", string(t),
					"word", entry.Word,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
			continue
		}
		if !ok {
			continue
		}

		status, err := m.registry.Hit(t, entry.Word)
		if err != nil {
			// removed between Entries and Hit
			continue
		}
		m.metrics.IncrementMatch(string(t), string(channel))
		result.Found = true
		result.Word = entry.Word
		result.Status = status
		return result, nil
	}
	return result, nil
}
