// Package delivery sends rendered reports back to the chat the command came
// from.
package delivery

import (
	"context"

	"wordhub/pkg/domain"
)

// Control is an inline button. Data is opaque to the chat bridge and comes
// back verbatim as the callback of a reply.
type Control struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Message is a report to post.
type Message struct {
	Chat     domain.ChatID    `json:"chat_id"`
	Text     string           `json:"text"`
	ReplyTo  domain.MessageID `json:"reply_to,omitempty"`
	Controls []Control        `json:"controls,omitempty"`
}

// Sender posts and edits messages.
type Sender interface {
	Send(ctx context.Context, msg Message) (domain.MessageID, error)
	Edit(ctx context.Context, chat domain.ChatID, id domain.MessageID, text string, controls []Control) error
}
