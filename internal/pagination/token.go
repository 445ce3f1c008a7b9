package pagination

import (
	"encoding/base64"
	"encoding/json"

	"wordhub/internal/taxonomy"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
)

// Kind says which query a token replays.
type Kind string

const (
	KindList   Kind = "list"
	KindSearch Kind = "search"
)

// Direction moves a token one page back or forward.
type Direction string

const (
	Previous Direction = "previous"
	Next     Direction = "next"
)

// ParseDirection validates a paging direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Previous, Next:
		return d, nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "direction must be previous or next")
}

// PageToken fully describes one page of a listing or search, so paging
// needs no server-side session.
type PageToken struct {
	Kind       Kind              `json:"a"`
	Type       taxonomy.WordType `json:"t"`
	Query      string            `json:"q,omitempty"`
	Descending bool              `json:"r,omitempty"`
	Page       int               `json:"d"`
	Owner      domain.ActorID    `json:"u,omitempty"`
}

// Encode renders the token as URL-safe base64 of its compact JSON form.
func (t PageToken) Encode() string {
	b, _ := json.Marshal(t)
	return base64.RawURLEncoding.EncodeToString(b)
}

// String is Encode.
func (t PageToken) String() string { return t.Encode() }

// Decode parses an encoded token. Anything malformed is CodeInvalidRequest.
func Decode(s string) (PageToken, error) {
	var t PageToken
	if s == "" {
		return t, dErrors.New(dErrors.CodeInvalidRequest, "page token is required")
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return t, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "malformed page token")
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "malformed page token")
	}
	switch t.Kind {
	case KindList:
		if t.Type == "" {
			return t, dErrors.New(dErrors.CodeInvalidRequest, "page token has no type")
		}
	case KindSearch:
		if t.Query == "" {
			return t, dErrors.New(dErrors.CodeInvalidRequest, "page token has no query")
		}
	default:
		return t, dErrors.New(dErrors.CodeInvalidRequest, "unknown page token kind")
	}
	if t.Page < 0 {
		return t, dErrors.New(dErrors.CodeInvalidRequest, "page token has a negative page")
	}
	return t, nil
}
