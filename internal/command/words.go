package command

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"wordhub/internal/conflict/models"
	"wordhub/internal/delivery"
	"wordhub/internal/taxonomy"
	"wordhub/internal/words/service"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
)

func (d *Dispatcher) describeType(r *Report, t taxonomy.WordType) {
	r.Line("type", string(t))
	if c := d.Registry.Comment(t); c != "" {
		r.Line("comment", c)
	}
}

func (d *Dispatcher) typeAndWord(cmd Command, usageText string, r *Report) (taxonomy.WordType, string, error) {
	head, word := cmd.Split()
	if head == "" || word == "" {
		return "", "", usage(usageText)
	}
	t, err := d.Registry.Taxonomy().Parse(head)
	if err != nil {
		r.Line("type", head)
		return "", "", err
	}
	d.describeType(r, t)
	r.Line("word", word)
	return t, word, nil
}

func describePropagation(r *Report, res service.PropagationResult) {
	if res.Aborted {
		r.Line("sync", "skipped, both strict and loose variants exist")
		return
	}
	if len(res.Applied) > 0 {
		r.Line("synced", joinTypes(res.Applied))
	}
	failed := make([]taxonomy.WordType, 0, len(res.Failed))
	for t := range res.Failed {
		failed = append(failed, t)
	}
	slices.Sort(failed)
	for _, t := range failed {
		r.Line("sync failed", fmt.Sprintf("%s (%s)", t, dErrors.MessageOf(res.Failed[t])))
	}
}

func joinTypes(types []taxonomy.WordType) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ", ")
}

// add creates a word, or opens a duplicate conflict for the current owner
// to arbitrate when it exists.
func (d *Dispatcher) add(ctx context.Context, cmd Command, r *Report) (*response, error) {
	t, word, err := d.typeAndWord(cmd, "add <type> <word>", r)
	if err != nil {
		return nil, err
	}

	var resp *response
	err = d.inTx(ctx, func(ctx context.Context) error {
		existing, err := d.Registry.Add(ctx, t, word, cmd.Issuer)
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			pending, err := d.Conflicts.Open(ctx, t, word, cmd.Issuer, cmd.Chat, existing)
			if err != nil {
				return err
			}
			r.Line("owner", pending.Arbiter.String())
			r.Line("status", "awaiting decision")
			r.Line("question", "word already exists, the owner may keep it, hand it over or cancel")
			resp = &response{controls: askControls(pending.Token)}
			return nil
		}
		if err != nil {
			return err
		}
		res := d.Registry.Propagate(ctx, service.OpAdd, t, word, cmd.Issuer)
		describePropagation(r, res)
		d.schedulePush(ctx, append([]taxonomy.WordType{t}, res.Applied...)...)
		r.Succeed()
		return nil
	})
	return resp, err
}

func askControls(token domain.ConflictToken) []delivery.Control {
	out := make([]delivery.Control, 0, len(models.Decisions))
	for _, decision := range models.Decisions {
		out = append(out, delivery.Control{
			Label: string(decision),
			Data:  CallbackData{Action: CallbackAsk, Type: string(decision), Data: token.String()}.Encode(),
		})
	}
	return out
}

// remove deletes a word. Sent bare as a reply to the issuer's own add, it
// undoes that add.
func (d *Dispatcher) remove(ctx context.Context, cmd Command, r *Report) (*response, error) {
	if strings.TrimSpace(cmd.Args) == "" && cmd.Reply != nil {
		undo, err := replayedCommand(cmd.Issuer, cmd.Reply)
		if err != nil {
			return nil, err
		}
		if undo.Keyword != KeywordAdd {
			return nil, usage("remove <type> <word>, or reply to your add")
		}
		cmd.Args = undo.Args
	}
	t, word, err := d.typeAndWord(cmd, "remove <type> <word>", r)
	if err != nil {
		return nil, err
	}

	return nil, d.inTx(ctx, func(ctx context.Context) error {
		if err := d.Registry.Remove(ctx, t, word); err != nil {
			return err
		}
		res := d.Registry.Propagate(ctx, service.OpRemove, t, word, cmd.Issuer)
		describePropagation(r, res)
		d.schedulePush(ctx, append([]taxonomy.WordType{t}, res.Applied...)...)
		r.Succeed()
		return nil
	})
}

// replayedCommand parses the command text of reply, which must have been
// sent by issuer.
func replayedCommand(issuer domain.ActorID, reply *Reply) (Command, error) {
	if reply == nil {
		return Command{}, usage("reply to an add or remove command")
	}
	if reply.Author != issuer {
		return Command{}, dErrors.New(dErrors.CodeForbidden, "you can only reuse your own commands")
	}
	cmd, ok := FromText(reply.Author, 0, reply.MessageID, reply.Text, reply.Reply)
	if !ok {
		return Command{}, usage("reply to an add or remove command")
	}
	return cmd, nil
}

// same replays a previous add or remove on the named types.
func (d *Dispatcher) same(ctx context.Context, cmd Command, r *Report) (*response, error) {
	const help = "same <types...> as a reply to your add or remove"
	if strings.TrimSpace(cmd.Args) == "" || cmd.Reply == nil {
		return nil, usage(help)
	}
	targets, err := d.Registry.Taxonomy().ParseList(cmd.Args)
	if err != nil {
		return nil, err
	}
	op, word, err := d.sameSource(cmd)
	if err != nil {
		return nil, err
	}
	r.Line("operation", string(op))
	r.Line("word", word)
	r.Line("types", joinTypes(targets))

	return nil, d.inTx(ctx, func(ctx context.Context) error {
		res := d.Registry.PropagateTo(ctx, op, word, cmd.Issuer, targets)
		describePropagation(r, res)
		d.schedulePush(ctx, res.Applied...)
		if len(res.Applied) == 0 {
			r.Fail("no type was updated")
			return nil
		}
		r.Succeed()
		return nil
	})
}

func (d *Dispatcher) sameSource(cmd Command) (service.Op, string, error) {
	prev, err := replayedCommand(cmd.Issuer, cmd.Reply)
	if err != nil {
		return "", "", err
	}
	switch _, word := prev.Split(); {
	case (prev.Keyword == KeywordAdd || prev.Keyword == KeywordRemove) && word != "":
		op, err := service.ParseOp(prev.Keyword)
		return op, word, err
	case prev.Keyword == KeywordRemove && strings.TrimSpace(prev.Args) == "":
		// a bare remove: follow it to the add it undid
		added, err := replayedCommand(cmd.Issuer, cmd.Reply.Reply)
		if err != nil {
			return "", "", err
		}
		if _, word := added.Split(); added.Keyword == KeywordAdd && word != "" {
			return service.OpRemove, word, nil
		}
	}
	return "", "", usage("same <types...> as a reply to your add or remove")
}

func (d *Dispatcher) reset(ctx context.Context, cmd Command, r *Report) (*response, error) {
	head := cmd.Head()
	if head == "" {
		return nil, usage("reset <type|all>")
	}
	if head == taxonomy.All {
		r.Line("type", taxonomy.All)
		return nil, d.inTx(ctx, func(ctx context.Context) error {
			if err := d.Registry.ResetAll(ctx); err != nil {
				return err
			}
			r.Succeed()
			return nil
		})
	}
	t, err := d.Registry.Taxonomy().Parse(head)
	if err != nil {
		r.Line("type", head)
		return nil, err
	}
	d.describeType(r, t)
	return nil, d.inTx(ctx, func(ctx context.Context) error {
		if err := d.Registry.Reset(ctx, t); err != nil {
			return err
		}
		r.Succeed()
		return nil
	})
}

func (d *Dispatcher) comment(ctx context.Context, cmd Command, r *Report) (*response, error) {
	head, text := cmd.Split()
	if head == "" || text == "" {
		return nil, usage("comment <type> <text>")
	}
	t, err := d.Registry.Taxonomy().Parse(head)
	if err != nil {
		r.Line("type", head)
		return nil, err
	}
	return nil, d.inTx(ctx, func(ctx context.Context) error {
		if err := d.Registry.SetComment(ctx, t, text); err != nil {
			return err
		}
		d.describeType(r, t)
		r.Succeed()
		return nil
	})
}

func (d *Dispatcher) check(ctx context.Context, cmd Command, r *Report) (*response, error) {
	t, word, err := d.typeAndWord(cmd, "check <type> <word>", r)
	if err != nil {
		return nil, err
	}
	status, err := d.Registry.Get(ctx, t, word)
	if err != nil {
		return nil, err
	}
	r.Succeed()
	r.Line("result", counters(status))
	return nil, nil
}

func (d *Dispatcher) who(ctx context.Context, cmd Command, r *Report) (*response, error) {
	t, word, err := d.typeAndWord(cmd, "who <type> <word>", r)
	if err != nil {
		return nil, err
	}
	owner, err := d.Registry.Owner(ctx, t, word)
	if err != nil {
		return nil, err
	}
	r.Succeed()
	r.Line("result", owner.String())
	return nil, nil
}

func (d *Dispatcher) push(ctx context.Context, cmd Command, r *Report) (*response, error) {
	head := cmd.Head()
	if head == "" {
		return nil, usage("push <type|all>")
	}
	if head == taxonomy.All {
		r.Line("type", taxonomy.All)
		return nil, d.inTx(ctx, func(ctx context.Context) error {
			if err := d.Publisher.PushAll(ctx); err != nil {
				return err
			}
			r.Succeed()
			return nil
		})
	}
	t, err := d.Registry.Taxonomy().Parse(head)
	if err != nil {
		r.Line("type", head)
		return nil, err
	}
	d.describeType(r, t)
	return nil, d.inTx(ctx, func(ctx context.Context) error {
		if err := d.Publisher.Push(ctx, t); err != nil {
			return err
		}
		r.Succeed()
		return nil
	})
}

func (d *Dispatcher) count(ctx context.Context, _ Command, r *Report) (*response, error) {
	receivers, err := d.Publisher.RequestCount(ctx)
	if err != nil {
		return nil, err
	}
	if len(receivers) > 0 {
		r.Line("receivers", strings.Join(receivers, ", "))
	}
	r.Succeed()
	return nil, nil
}

func (d *Dispatcher) captcha(ctx context.Context, cmd Command, r *Report) (*response, error) {
	if err := d.Publisher.RequestCaptcha(ctx, cmd.Issuer, cmd.MessageID); err != nil {
		return nil, err
	}
	r.Succeed()
	return nil, nil
}
