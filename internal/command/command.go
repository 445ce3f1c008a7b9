// Package command turns chat commands into registry operations and renders
// their outcome as reports.
package command

import (
	"encoding/json"
	"strings"
	"unicode"

	"wordhub/internal/delivery"
	"wordhub/pkg/domain"
)

// Keywords. Aliases map onto these in Parse.
const (
	KeywordAdd       = "add"
	KeywordAsk       = "ask"
	KeywordCaptcha   = "captcha"
	KeywordCheck     = "check"
	KeywordComment   = "comment"
	KeywordCount     = "count"
	KeywordEscape    = "escape"
	KeywordFindAll   = "findall"
	KeywordGroup     = "group"
	KeywordGroupDict = "groupdict"
	KeywordGroups    = "groups"
	KeywordList      = "list"
	KeywordPage      = "page"
	KeywordPush      = "push"
	KeywordRegex     = "regex"
	KeywordRemove    = "remove"
	KeywordReset     = "reset"
	KeywordSame      = "same"
	KeywordSearch    = "search"
	KeywordT2T       = "t2t"
	KeywordVersion   = "version"
	KeywordWho       = "who"
)

var aliases = map[string]string{
	"ad":  KeywordAdd,
	"rm":  KeywordRemove,
	"ls":  KeywordList,
	"s":   KeywordSearch,
	"sm":  KeywordSame,
	"del": KeywordRemove,
}

// Reply is the message a command replied to, as seen by the chat bridge.
type Reply struct {
	MessageID   domain.MessageID   `json:"message_id"`
	Author      domain.ActorID     `json:"author"`
	FromSelf    bool               `json:"from_self,omitempty"`
	Text        string             `json:"text,omitempty"`
	ForwardName string             `json:"forward_name,omitempty"`
	Filename    string             `json:"filename,omitempty"`
	Controls    []delivery.Control `json:"controls,omitempty"`
	Reply       *Reply             `json:"reply,omitempty"`
}

// Command is one inbound chat command.
type Command struct {
	Issuer    domain.ActorID   `json:"issuer"`
	Chat      domain.ChatID    `json:"chat"`
	MessageID domain.MessageID `json:"message_id"`
	Keyword   string           `json:"keyword"`
	Args      string           `json:"args,omitempty"`
	Reply     *Reply           `json:"reply,omitempty"`
}

// Fields splits the arguments on whitespace.
func (c Command) Fields() []string { return strings.Fields(c.Args) }

// Head returns the first argument.
func (c Command) Head() string {
	head, _ := c.Split()
	return head
}

// Split returns the first argument and the untouched remainder. Patterns
// keep their inner whitespace.
func (c Command) Split() (head, rest string) {
	args := strings.TrimSpace(c.Args)
	i := strings.IndexFunc(args, unicode.IsSpace)
	if i < 0 {
		return args, ""
	}
	return args[:i], strings.TrimSpace(args[i+1:])
}

// Parse splits raw command text into its keyword and arguments. A leading
// "/" and a "@bot" suffix on the keyword are dropped; aliases resolve to
// their keyword. ok is false when text holds no keyword.
func Parse(text string) (keyword, args string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}
	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i+1:]
	}
	head = strings.TrimPrefix(head, "/")
	head, _, _ = strings.Cut(head, "@")
	head = strings.ToLower(head)
	if head == "" {
		return "", "", false
	}
	if canonical, found := aliases[head]; found {
		head = canonical
	}
	return head, strings.TrimSpace(rest), true
}

// FromText builds a command from raw text.
func FromText(issuer domain.ActorID, chat domain.ChatID, id domain.MessageID, text string, reply *Reply) (Command, bool) {
	keyword, args, ok := Parse(text)
	if !ok {
		return Command{}, false
	}
	return Command{
		Issuer:    issuer,
		Chat:      chat,
		MessageID: id,
		Keyword:   keyword,
		Args:      args,
		Reply:     reply,
	}, true
}

// Callback actions carried by report controls.
const (
	CallbackAsk  = "ask"
	CallbackPage = "page"
)

// CallbackData is the payload of a report control.
type CallbackData struct {
	Action string `json:"a"`
	Type   string `json:"t"`
	Data   string `json:"d"`
}

func (c CallbackData) Encode() string {
	b, _ := json.Marshal(c)
	return string(b)
}

func decodeCallback(raw string) (CallbackData, bool) {
	var c CallbackData
	if err := json.Unmarshal([]byte(raw), &c); err != nil || c.Action == "" {
		return CallbackData{}, false
	}
	return c, true
}

// callbacks decodes every control on r that carries the given action.
func (r *Reply) callbacks(action string) []CallbackData {
	if r == nil {
		return nil
	}
	var out []CallbackData
	for _, ctl := range r.Controls {
		if cb, ok := decodeCallback(ctl.Data); ok && cb.Action == action {
			out = append(out, cb)
		}
	}
	return out
}
