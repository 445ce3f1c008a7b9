package command

import (
	"context"
	"fmt"
	"strings"

	"wordhub/internal/delivery"
	"wordhub/internal/pagination"
	"wordhub/internal/taxonomy"
	dErrors "wordhub/pkg/domain-errors"
)

func (d *Dispatcher) list(ctx context.Context, cmd Command, r *Report) (*response, error) {
	fields := cmd.Fields()
	if len(fields) == 0 || len(fields) > 2 {
		return nil, usage("list <type> [desc]")
	}
	t, err := d.Registry.Taxonomy().Parse(fields[0])
	if err != nil {
		r.Line("type", fields[0])
		return nil, err
	}
	desc := len(fields) == 2 && strings.EqualFold(fields[1], "desc")
	page, err := d.Pages.List(ctx, cmd.Issuer, pagination.ListFilter{Type: t, Descending: desc}, 0)
	if err != nil {
		return nil, err
	}
	d.renderPage(r, page)
	return &response{controls: pageControls(page)}, nil
}

func (d *Dispatcher) search(ctx context.Context, cmd Command, r *Report) (*response, error) {
	head, query := cmd.Split()
	if head == "" || query == "" {
		return nil, usage("search <type|all> <query>")
	}
	t := taxonomy.WordType(taxonomy.All)
	if head != taxonomy.All {
		var err error
		if t, err = d.Registry.Taxonomy().Parse(head); err != nil {
			r.Line("type", head)
			return nil, err
		}
	}
	page, err := d.Pages.Search(ctx, cmd.Issuer, t, query, 0)
	if err != nil {
		return nil, err
	}
	d.renderPage(r, page)
	return &response{controls: pageControls(page)}, nil
}

// page flips a listing or search report. It must reply to that report; the
// first control pages back and the last one forward.
func (d *Dispatcher) page(ctx context.Context, cmd Command, r *Report) (*response, error) {
	dir, err := pagination.ParseDirection(cmd.Head())
	if err != nil || cmd.Reply == nil || !cmd.Reply.FromSelf {
		return nil, usage("page <previous|next> as a reply to a list or search")
	}
	callbacks := cmd.Reply.callbacks(CallbackPage)
	if len(callbacks) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "the replied message has no pages")
	}
	cb := callbacks[0]
	if dir == pagination.Next {
		cb = callbacks[len(callbacks)-1]
	}
	token, err := pagination.Decode(cb.Data)
	if err != nil {
		return nil, err
	}
	page, err := d.Pages.Resolve(ctx, cmd.Issuer, token, dir)
	if err != nil {
		return nil, err
	}

	view := NewReport(cmd.Issuer, string(token.Kind))
	d.renderPage(view, page)

	r.Line("see", cmd.Reply.MessageID.String())
	r.Succeed()
	return &response{edits: []delivery.Edit{{
		Chat:      cmd.Chat,
		MessageID: cmd.Reply.MessageID,
		Text:      view.String(),
		Controls:  pageControls(page),
	}}}, nil
}

func (d *Dispatcher) renderPage(r *Report, p *pagination.Page) {
	tok := p.Token
	if tok.Type == taxonomy.All {
		r.Line("type", taxonomy.All)
	} else {
		d.describeType(r, tok.Type)
	}
	switch tok.Kind {
	case pagination.KindList:
		order := "ascending"
		if tok.Descending {
			order = "descending"
		}
		r.Line("order", order)
	case pagination.KindSearch:
		r.Line("query", tok.Query)
	}
	r.Line("total", fmt.Sprintf("%d", p.Total))
	r.Line("page", fmt.Sprintf("%d/%d", p.Index+1, p.Pages))
	if len(p.Items) == 0 {
		r.Line("result", "none")
		return
	}

	var b strings.Builder
	for _, it := range p.Items {
		if tok.Kind == pagination.KindSearch {
			fmt.Fprintf(&b, "[%s] ", it.Type)
		}
		fmt.Fprintf(&b, "%s  (%s)\n", it.Word, counters(it.Status))
	}
	r.Block(strings.TrimRight(b.String(), "\n"))
}

// pageControls renders previous/next controls carrying the current page.
func pageControls(p *pagination.Page) []delivery.Control {
	if p.Pages <= 1 {
		return nil
	}
	token := p.Token.Encode()
	return []delivery.Control{
		{Label: "previous", Data: CallbackData{Action: CallbackPage, Type: string(pagination.Previous), Data: token}.Encode()},
		{Label: "next", Data: CallbackData{Action: CallbackPage, Type: string(pagination.Next), Data: token}.Encode()},
	}
}
