package command

import (
	"fmt"
	"strings"

	"wordhub/internal/words/models"
	"wordhub/pkg/domain"
)

const resultRule = "------------------------"

// Report is the human readable outcome of a command: "key: value" lines,
// optionally followed by a result block.
type Report struct {
	lines     []string
	block     string
	succeeded bool
	failed    bool
}

// NewReport starts a report for admin running action.
func NewReport(admin domain.ActorID, action string) *Report {
	r := &Report{}
	r.Line("admin", admin.String())
	if action != "" {
		r.Line("action", action)
	}
	return r
}

// Line appends "key: value".
func (r *Report) Line(key, value string) *Report {
	r.lines = append(r.lines, key+": "+value)
	return r
}

// Block sets the result block.
func (r *Report) Block(body string) *Report {
	r.block = body
	return r
}

// Succeed marks the report successful.
func (r *Report) Succeed() *Report {
	r.succeeded = true
	return r.Line("status", "succeeded")
}

// Fail marks the report failed with reason.
func (r *Report) Fail(reason string) *Report {
	r.failed = true
	r.Line("status", "failed")
	return r.Line("reason", reason)
}

// Failed reports whether Fail was called.
func (r *Report) Failed() bool { return r.failed }

func (r *Report) String() string {
	var b strings.Builder
	for _, l := range r.lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if r.block != "" {
		b.WriteString("result: ")
		b.WriteString(resultRule)
		b.WriteString("\n\n")
		b.WriteString(r.block)
		b.WriteByte('\n')
	}
	return b.String()
}

// counters renders "average / today / total / temp".
func counters(s models.WordStatus) string {
	return fmt.Sprintf("%.1f / %d / %d / %d", s.Average, s.Today, s.Total, s.Temp)
}
