// Package domain holds typed identifiers shared across modules.
//
// Actor, chat and message identifiers come from the chat transport as signed
// 64-bit integers. Conflict tokens are opaque UUIDs issued by this service.
package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "wordhub/pkg/domain-errors"
)

// ActorID identifies a human (or service account) issuing commands.
type ActorID int64

// ChatID identifies the chat a command came from.
type ChatID int64

// MessageID identifies a message within a chat.
type MessageID int64

// ConflictToken correlates an arbitration reply with its pending conflict.
type ConflictToken uuid.UUID

func (a ActorID) String() string   { return strconv.FormatInt(int64(a), 10) }
func (c ChatID) String() string    { return strconv.FormatInt(int64(c), 10) }
func (m MessageID) String() string { return strconv.FormatInt(int64(m), 10) }

func (t ConflictToken) String() string { return uuid.UUID(t).String() }

// IsNil reports whether the token is the zero UUID.
func (t ConflictToken) IsNil() bool { return uuid.UUID(t) == uuid.Nil }

// MarshalText encodes the token in canonical UUID form.
func (t ConflictToken) MarshalText() ([]byte, error) {
	return uuid.UUID(t).MarshalText()
}

// UnmarshalText parses a canonical UUID.
func (t *ConflictToken) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*t = ConflictToken(u)
	return nil
}

// NewConflictToken returns a fresh random token.
func NewConflictToken() ConflictToken {
	return ConflictToken(uuid.New())
}

// ParseActorID parses a decimal actor ID. Zero is reserved for "unknown".
func ParseActorID(s string) (ActorID, error) {
	n, err := parseInt(s, "actor id")
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "actor id must be non-zero")
	}
	return ActorID(n), nil
}

// ParseChatID parses a decimal chat ID. Group chats are negative.
func ParseChatID(s string) (ChatID, error) {
	n, err := parseInt(s, "chat id")
	if err != nil {
		return 0, err
	}
	return ChatID(n), nil
}

// ParseConflictToken parses the textual token embedded in a prompt control.
func ParseConflictToken(s string) (ConflictToken, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ConflictToken{}, dErrors.New(dErrors.CodeInvalidRequest, "token is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ConflictToken{}, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "malformed token")
	}
	if u == uuid.Nil {
		return ConflictToken{}, dErrors.New(dErrors.CodeInvalidRequest, "malformed token")
	}
	return ConflictToken(u), nil
}

func parseInt(s, what string) (int64, error) {
	if !utf8.ValidString(s) {
		return 0, dErrors.New(dErrors.CodeBadRequest, what+" is not valid UTF-8")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, what+" is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid "+what)
	}
	return n, nil
}
