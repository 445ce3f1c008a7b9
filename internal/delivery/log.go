package delivery

import (
	"context"
	"log/slog"
	"sync/atomic"

	"wordhub/pkg/domain"
)

// LogSender writes messages to the log instead of a chat. For local runs.
type LogSender struct {
	logger *slog.Logger
	nextID atomic.Int64
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (domain.MessageID, error) {
	id := domain.MessageID(s.nextID.Add(1))
	s.logger.InfoContext(ctx, "report",
		"chat", msg.Chat.String(),
		"message_id", id.String(),
		"reply_to", msg.ReplyTo.String(),
		"controls", len(msg.Controls),
		"text", msg.Text,
	)
	return id, nil
}

func (s *LogSender) Edit(ctx context.Context, chat domain.ChatID, id domain.MessageID, text string, controls []Control) error {
	s.logger.InfoContext(ctx, "report edited",
		"chat", chat.String(),
		"message_id", id.String(),
		"controls", len(controls),
		"text", text,
	)
	return nil
}
