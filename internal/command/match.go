package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wordhub/internal/matching"
	"wordhub/pkg/requestcontext"
)

func sampleOf(reply *Reply) matching.Sample {
	return matching.Sample{Name: reply.ForwardName, Filename: reply.Filename, Text: reply.Text}
}

// regex runs every type's patterns against the replied message.
func (d *Dispatcher) regex(ctx context.Context, cmd Command, r *Report) (*response, error) {
	if cmd.Reply == nil {
		return nil, usage("regex as a reply to a message")
	}
	hits, err := d.Matcher.Scan(ctx, nil, sampleOf(cmd.Reply))
	if err != nil {
		return nil, err
	}
	r.Succeed()
	if len(hits) == 0 {
		r.Line("result", "no match")
		return nil, nil
	}
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "%s/%s: %s\n", h.Type, h.Channel, h.Word)
	}
	r.Block(strings.TrimRight(b.String(), "\n"))
	return nil, nil
}

func (d *Dispatcher) escape(_ context.Context, cmd Command, r *Report) (*response, error) {
	pattern := strings.TrimSpace(cmd.Args)
	if pattern == "" {
		return nil, usage("escape <text>")
	}
	r.Block(matching.Escape(pattern))
	return nil, nil
}

// debugMatch serves findall, group, groupdict and groups.
func (d *Dispatcher) debugMatch(_ context.Context, cmd Command, r *Report) (*response, error) {
	r.Line("mode", cmd.Keyword)
	mode, err := matching.ParseDebugMode(cmd.Keyword)
	if err != nil {
		return nil, err
	}
	pattern := strings.TrimSpace(cmd.Args)
	if pattern == "" || cmd.Reply == nil {
		return nil, usage(cmd.Keyword + " <pattern> as a reply to a message")
	}
	out, err := d.Compiler.Debug(mode, pattern, cmd.Reply.Text)
	if err != nil {
		return nil, err
	}
	r.Block(out)
	return nil, nil
}

// t2t transcribes the replied message, optionally keeping only plain characters.
func (d *Dispatcher) t2t(_ context.Context, cmd Command, r *Report) (*response, error) {
	if cmd.Reply == nil {
		return nil, usage("t2t [pure] as a reply to a message")
	}
	text := matching.Transcribe(sampleOf(cmd.Reply), strings.EqualFold(cmd.Head(), "pure"))
	if text == "" {
		r.Fail("nothing to transcribe")
		return nil, nil
	}
	r.Block(text)
	return nil, nil
}

// versionInfo answers "version" and "version <name>" addressed to this service.
func (d *Dispatcher) versionInfo(ctx context.Context, cmd Command, r *Report) (*response, error) {
	if name := cmd.Head(); name != "" && !strings.EqualFold(name, d.name) {
		return &response{silent: true}, nil
	}
	r.Line("project", d.name)
	r.Line("version", d.version)
	r.Line("command time", requestcontext.Now(ctx).UTC().Format(time.DateTime))
	return nil, nil
}
