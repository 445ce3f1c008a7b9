package distribution

import "encoding/json"

// Actions understood by the sibling services.
const (
	ActionRegex   = "regex"
	ActionCaptcha = "captcha"

	TypeUpdate = "update"
	TypeCount  = "count"
	TypeAsk    = "ask"
)

// Payload is the envelope exchanged with sibling services.
type Payload struct {
	Sender     string          `json:"from"`
	Receivers  []string        `json:"to"`
	Action     string          `json:"action"`
	ActionType string          `json:"type"`
	Data       json.RawMessage `json:"data"`
}

// Update is the data of a regex/update payload: the full entry set of one type.
type Update struct {
	Type    string        `json:"type"`
	Comment string        `json:"comment,omitempty"`
	Words   []UpdateEntry `json:"words"`
}

// UpdateEntry is one word with its counters.
type UpdateEntry struct {
	Word    string  `json:"word"`
	Average float64 `json:"average"`
	Today   int     `json:"today"`
	Total   int     `json:"total"`
	Temp    int     `json:"temp"`
	Owner   int64   `json:"who"`
}

// CaptchaRequest is the data of a captcha/ask payload.
type CaptchaRequest struct {
	AdminID   int64 `json:"admin_id"`
	MessageID int64 `json:"message_id"`
}
