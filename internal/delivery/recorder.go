package delivery

import (
	"context"
	"slices"
	"sync"

	"wordhub/pkg/domain"
)

// Edit is an edit seen by Recorder.
type Edit struct {
	Chat      domain.ChatID
	MessageID domain.MessageID
	Text      string
	Controls  []Control
}

// Recorder keeps every message in memory. The HTTP surface returns them to
// the caller and tests inspect them.
type Recorder struct {
	mu     sync.Mutex
	nextID domain.MessageID
	sent   []Message
	edits  []Edit
}

func NewRecorder() *Recorder {
	return &Recorder{nextID: 1000}
}

func (r *Recorder) Send(_ context.Context, msg Message) (domain.MessageID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.sent = append(r.sent, msg)
	return r.nextID, nil
}

func (r *Recorder) Edit(_ context.Context, chat domain.ChatID, id domain.MessageID, text string, controls []Control) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, Edit{Chat: chat, MessageID: id, Text: text, Controls: controls})
	return nil
}

// Sent returns a copy of the messages sent so far.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.sent)
}

// Edits returns a copy of the edits made so far.
func (r *Recorder) Edits() []Edit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.edits)
}

// Last returns the most recent message, or false if none was sent.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}
