package command

import (
	"context"
	"fmt"

	"wordhub/internal/conflict/models"
	"wordhub/internal/delivery"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
)

// ask applies the arbiter's decision on a duplicate-add prompt. It must
// reply to the prompt; the token travels in the prompt's controls.
func (d *Dispatcher) ask(ctx context.Context, cmd Command, r *Report) (*response, error) {
	decision, err := models.ParseDecision(cmd.Head())
	if err != nil {
		return nil, usage("ask <new|replace|cancel> as a reply to the prompt")
	}
	if cmd.Reply == nil || !cmd.Reply.FromSelf {
		return nil, usage("ask <new|replace|cancel> as a reply to the prompt")
	}
	callbacks := cmd.Reply.callbacks(CallbackAsk)
	if len(callbacks) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "the replied message is not a duplicate prompt")
	}
	token, err := domain.ParseConflictToken(callbacks[0].Data)
	if err != nil {
		return nil, err
	}
	r.Line("decision", string(decision))

	var outcome *models.Outcome
	err = d.inTx(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = d.Conflicts.Decide(ctx, token, cmd.Issuer, decision)
		if err != nil {
			return err
		}
		if outcome.Replaced {
			d.schedulePush(ctx, outcome.Conflict.Type)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c := outcome.Conflict
	prompt := NewReport(c.Arbiter, KeywordAdd)
	d.describeType(prompt, c.Type)
	prompt.Line("word", c.Word)
	prompt.Line("requester", c.Requester.String())
	prompt.Line("decision", string(decision))
	prompt.Line("result", decisionText(outcome))

	r.Line("see", cmd.Reply.MessageID.String())
	r.Succeed()
	return &response{
		edits: []delivery.Edit{{Chat: cmd.Chat, MessageID: cmd.Reply.MessageID, Text: prompt.String()}},
		notices: []string{
			fmt.Sprintf("requester: %s\nword: %s\nresult: %s\n", c.Requester, c.Word, decisionText(outcome)),
		},
	}, nil
}

func decisionText(o *models.Outcome) string {
	switch {
	case o.Replaced:
		return fmt.Sprintf("entry handed over to %s with fresh counters", o.Conflict.Requester)
	case o.Decision == models.DecisionNew:
		return fmt.Sprintf("existing entry kept by %s", o.Conflict.Arbiter)
	default:
		return "cancelled"
	}
}
