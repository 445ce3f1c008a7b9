package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	conflictservice "wordhub/internal/conflict/service"
	"wordhub/internal/delivery"
	"wordhub/internal/matching"
	"wordhub/internal/pagination"
	"wordhub/internal/taxonomy"
	"wordhub/internal/words/service"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
	"wordhub/pkg/requestcontext"
)

var tracer = otel.Tracer("wordhub/command")

// ErrUnknownCommand is returned for keywords no handler serves.
var ErrUnknownCommand = dErrors.New(dErrors.CodeBadRequest, "unknown command")

// Publisher schedules distribution to sibling services.
type Publisher interface {
	Push(ctx context.Context, t taxonomy.WordType) error
	PushAll(ctx context.Context) error
	RequestCount(ctx context.Context) ([]string, error)
	RequestCaptcha(ctx context.Context, admin domain.ActorID, messageID domain.MessageID) error
}

// Limiter throttles issuers.
type Limiter interface {
	Allow(ctx context.Context, actor domain.ActorID) error
}

// Authorizer decides who may run commands.
type Authorizer interface {
	IsAdmin(ctx context.Context, actor domain.ActorID) bool
}

// Result is what a dispatched command produced.
type Result struct {
	Keyword   string             `json:"keyword"`
	Succeeded bool               `json:"succeeded"`
	Report    string             `json:"report,omitempty"`
	MessageID domain.MessageID   `json:"message_id,omitempty"`
	Controls  []delivery.Control `json:"controls,omitempty"`
}

// response carries what a handler wants sent besides its report.
type response struct {
	controls []delivery.Control
	edits    []delivery.Edit
	notices  []string
	silent   bool
}

type handlerFunc func(ctx context.Context, cmd Command, r *Report) (*response, error)

type handler struct {
	run    handlerFunc
	public bool
}

// Dependencies are the services commands operate on.
type Dependencies struct {
	Guard      *service.Guard
	Registry   *service.Registry
	Conflicts  *conflictservice.Service
	Publisher  Publisher
	Pages      *pagination.Service
	Matcher    *matching.Matcher
	Compiler   *matching.Compiler
	Sender     delivery.Sender
	Authorizer Authorizer
	Limiter    Limiter
}

// Dispatcher routes commands to handlers and delivers their reports.
type Dispatcher struct {
	Dependencies
	name     string
	version  string
	logger   *slog.Logger
	handlers map[string]handler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithIdentity sets the service name and version reported by "version".
func WithIdentity(name, version string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.name = name
		}
		if version != "" {
			d.version = version
		}
	}
}

// New wires a Dispatcher. A nil Authorizer lets everyone run every command;
// a nil Limiter never throttles.
func New(deps Dependencies, opts ...Option) (*Dispatcher, error) {
	switch {
	case deps.Guard == nil:
		return nil, errors.New("guard is required")
	case deps.Registry == nil:
		return nil, errors.New("registry is required")
	case deps.Conflicts == nil:
		return nil, errors.New("conflict service is required")
	case deps.Publisher == nil:
		return nil, errors.New("publisher is required")
	case deps.Pages == nil:
		return nil, errors.New("pagination service is required")
	case deps.Matcher == nil || deps.Compiler == nil:
		return nil, errors.New("matcher is required")
	case deps.Sender == nil:
		return nil, errors.New("sender is required")
	}
	d := &Dispatcher{
		Dependencies: deps,
		name:         "REGEX",
		version:      "dev",
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handlers = map[string]handler{
		KeywordAdd:       {run: d.add},
		KeywordAsk:       {run: d.ask},
		KeywordCaptcha:   {run: d.captcha},
		KeywordCheck:     {run: d.check},
		KeywordComment:   {run: d.comment},
		KeywordCount:     {run: d.count},
		KeywordEscape:    {run: d.escape},
		KeywordFindAll:   {run: d.debugMatch},
		KeywordGroup:     {run: d.debugMatch},
		KeywordGroupDict: {run: d.debugMatch},
		KeywordGroups:    {run: d.debugMatch},
		KeywordList:      {run: d.list},
		KeywordPage:      {run: d.page},
		KeywordPush:      {run: d.push},
		KeywordRegex:     {run: d.regex},
		KeywordRemove:    {run: d.remove},
		KeywordReset:     {run: d.reset},
		KeywordSame:      {run: d.same},
		KeywordSearch:    {run: d.search},
		KeywordT2T:       {run: d.t2t},
		KeywordVersion:   {run: d.versionInfo, public: true},
		KeywordWho:       {run: d.who},
	}
	return d, nil
}

// Keywords lists the served keywords.
func (d *Dispatcher) Keywords() []string {
	out := make([]string, 0, len(d.handlers))
	for k := range d.handlers {
		out = append(out, k)
	}
	return out
}

// Dispatch runs cmd and sends its report to cmd.Chat. Handler failures
// become failure reports; the returned error is non-nil only for unknown
// commands and panics.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (result *Result, err error) {
	ctx = requestcontext.WithActor(ctx, cmd.Issuer)
	ctx, span := tracer.Start(ctx, "Dispatcher.Dispatch", trace.WithAttributes(
		attribute.String("keyword", cmd.Keyword),
	))
	defer span.End()

	h, ok := d.handlers[cmd.Keyword]
	if !ok {
		return nil, ErrUnknownCommand
	}

	r := NewReport(cmd.Issuer, cmd.Keyword)
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.ErrorContext(ctx, "command panicked",
				"keyword", cmd.Keyword,
				"issuer", cmd.Issuer.String(),
				"panic", rec,
				"stack", string(debug.Stack()),
				"request_id", requestcontext.RequestID(ctx),
			)
			failure := NewReport(cmd.Issuer, cmd.Keyword).Fail("internal error")
			result = d.deliver(ctx, cmd, failure, nil)
			err = dErrors.New(dErrors.CodeInternal, "command failed")
		}
	}()

	start := time.Now()
	var resp *response
	if err = d.admit(ctx, cmd, h); err == nil {
		resp, err = h.run(ctx, cmd, r)
	}
	if err != nil {
		span.RecordError(err)
		r.Fail(d.reason(ctx, cmd, err))
		resp = nil
	}
	d.logger.InfoContext(ctx, "command handled",
		"keyword", cmd.Keyword,
		"issuer", cmd.Issuer.String(),
		"chat", cmd.Chat.String(),
		"failed", r.Failed(),
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestcontext.RequestID(ctx),
	)
	if resp != nil && resp.silent {
		return &Result{Keyword: cmd.Keyword, Succeeded: true}, nil
	}
	return d.deliver(ctx, cmd, r, resp), nil
}

// admit checks that the issuer may run h right now.
func (d *Dispatcher) admit(ctx context.Context, cmd Command, h handler) error {
	if !h.public && d.Authorizer != nil && !d.Authorizer.IsAdmin(ctx, cmd.Issuer) {
		return dErrors.New(dErrors.CodeForbidden, "permission denied")
	}
	if d.Limiter != nil {
		return d.Limiter.Allow(ctx, cmd.Issuer)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, cmd Command, r *Report, resp *response) *Result {
	result := &Result{
		Keyword:   cmd.Keyword,
		Succeeded: !r.Failed(),
		Report:    r.String(),
	}
	if resp != nil {
		result.Controls = resp.controls
		for _, e := range resp.edits {
			if err := d.Sender.Edit(ctx, e.Chat, e.MessageID, e.Text, e.Controls); err != nil {
				d.logger.WarnContext(ctx, "edit failed", "message_id", e.MessageID.String(), "error", err)
			}
		}
	}

	id, err := d.Sender.Send(ctx, delivery.Message{
		Chat:     cmd.Chat,
		Text:     result.Report,
		ReplyTo:  cmd.MessageID,
		Controls: result.Controls,
	})
	if err != nil {
		d.logger.WarnContext(ctx, "report not delivered", "keyword", cmd.Keyword, "error", err)
	}
	result.MessageID = id

	if resp != nil {
		for _, text := range resp.notices {
			if _, err := d.Sender.Send(ctx, delivery.Message{Chat: cmd.Chat, Text: text, ReplyTo: id}); err != nil {
				d.logger.WarnContext(ctx, "notice not delivered", "keyword", cmd.Keyword, "error", err)
			}
		}
	}
	return result
}

// reason renders err for a failure report. Unexpected errors are logged and
// reported generically.
func (d *Dispatcher) reason(ctx context.Context, cmd Command, err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidRequest,
		dErrors.CodeNotFound, dErrors.CodeConflict, dErrors.CodeForbidden, dErrors.CodeRateLimited:
		return dErrors.MessageOf(err)
	case dErrors.CodeUnavailable, dErrors.CodeTimeout:
		return "temporarily unavailable, try again later"
	default:
		d.logger.ErrorContext(ctx, "command failed",
			"keyword", cmd.Keyword,
			"issuer", cmd.Issuer.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return "internal error"
	}
}

func usage(format string) error {
	return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("usage: %s", format))
}

// inTx runs fn under the registry guard.
func (d *Dispatcher) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.Guard.RunInTx(ctx, fn)
}

// schedulePush schedules distribution of types, logging failures.
func (d *Dispatcher) schedulePush(ctx context.Context, types ...taxonomy.WordType) {
	for _, t := range types {
		if err := d.Publisher.Push(ctx, t); err != nil {
			d.logger.WarnContext(ctx, "push not scheduled", "type", string(t), "error", err)
		}
	}
}
