package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
)

// leveledSlog demotes the retry client's ERROR lines to WARN; a failed
// attempt is not a failed delivery.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...any) { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Warn(msg string, keysAndValues ...any)  { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Info(msg string, keysAndValues ...any)  { l.inner.Info(msg, keysAndValues...) }
func (l leveledSlog) Debug(msg string, keysAndValues ...any) { l.inner.Debug(msg, keysAndValues...) }

// WebhookSender posts messages to the chat bridge over HTTP.
//
// Requests are paced by a token bucket. 429 and 5xx answers are retried;
// a 429's Retry-After is honoured before the next attempt.
type WebhookSender struct {
	base    string
	client  *retryablehttp.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// WebhookOption configures a WebhookSender.
type WebhookOption func(*WebhookSender)

func WithWebhookLogger(logger *slog.Logger) WebhookOption {
	return func(s *WebhookSender) {
		if logger != nil {
			s.logger = logger
			s.client.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: logger})
		}
	}
}

// WithRetries sets the retry budget and the backoff bounds.
func WithRetries(max int, waitMin, waitMax time.Duration) WebhookOption {
	return func(s *WebhookSender) {
		if max >= 0 {
			s.client.RetryMax = max
		}
		if waitMin > 0 {
			s.client.RetryWaitMin = waitMin
		}
		if waitMax > 0 {
			s.client.RetryWaitMax = waitMax
		}
	}
}

// WithRate paces outgoing requests to perSecond with the given burst.
// A non-positive perSecond disables pacing.
func WithRate(perSecond float64, burst int) WebhookOption {
	return func(s *WebhookSender) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(s *WebhookSender) {
		if c != nil {
			s.client.HTTPClient = c
		}
	}
}

// NewWebhookSender creates a sender posting to baseURL/send and baseURL/edit.
func NewWebhookSender(baseURL string, opts ...WebhookOption) (*WebhookSender, error) {
	if baseURL == "" {
		return nil, errors.New("webhook url is required")
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 30 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	client.CheckRetry = retryablehttp.DefaultRetryPolicy
	client.Backoff = retryablehttp.DefaultBackoff
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	s := &WebhookSender{
		base:    strings.TrimRight(baseURL, "/"),
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(20), 1),
		logger:  slog.Default(),
	}
	client.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: s.logger})
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type sendResponse struct {
	MessageID domain.MessageID `json:"message_id"`
}

type editRequest struct {
	Chat      domain.ChatID    `json:"chat_id"`
	MessageID domain.MessageID `json:"message_id"`
	Text      string           `json:"text"`
	Controls  []Control        `json:"controls,omitempty"`
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) (domain.MessageID, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, "message text is empty")
	}
	var resp sendResponse
	if err := s.post(ctx, "/send", msg, &resp); err != nil {
		return 0, err
	}
	return resp.MessageID, nil
}

// Edit replaces a posted message's text and controls. Empty text is a no-op.
func (s *WebhookSender) Edit(ctx context.Context, chat domain.ChatID, id domain.MessageID, text string, controls []Control) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.post(ctx, "/edit", editRequest{Chat: chat, MessageID: id, Text: text, Controls: controls}, nil)
}

func (s *WebhookSender) post(ctx context.Context, path string, body, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "delivery cancelled while rate limited")
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode message")
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.base+path, raw)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "chat bridge unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.WarnContext(ctx, "chat bridge rejected message",
			"path", path,
			"status", resp.StatusCode,
			"body", string(bytes.TrimSpace(snippet)),
		)
		code := dErrors.CodeUnavailable
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			code = dErrors.CodeInternal
		}
		return dErrors.New(code, fmt.Sprintf("chat bridge answered %d", resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "malformed chat bridge response")
	}
	return nil
}
