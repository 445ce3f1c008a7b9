package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"wordhub/internal/taxonomy"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
)

// Op is a mutation that can be replayed on sibling types.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// ParseOp maps a command keyword to an Op.
func ParseOp(s string) (Op, error) {
	switch Op(s) {
	case OpAdd, OpRemove:
		return Op(s), nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("cannot propagate %q", s))
}

// PropagationResult reports what happened on each sibling. Propagation is
// best effort: failures never undo the origin mutation or other siblings.
type PropagationResult struct {
	Op      Op
	Word    string
	Origin  taxonomy.WordType
	Aborted bool
	Applied []taxonomy.WordType
	Failed  map[taxonomy.WordType]error
}

// Targets returns the sibling types a mutation of origin propagates to.
// ambiguous is true when origin's base has both a strict and a loose
// relative, in which case nothing is propagated.
func (r *Registry) Targets(origin taxonomy.WordType) (targets []taxonomy.WordType, ambiguous bool) {
	return taxonomy.Targets(origin, r.relation(origin, r.taxonomy.Types()))
}

// Propagate replays op for word on every related target of origin.
func (r *Registry) Propagate(ctx context.Context, op Op, origin taxonomy.WordType, word string, owner domain.ActorID) PropagationResult {
	targets, ambiguous := r.Targets(origin)
	if ambiguous {
		r.metrics.IncrementPropagation("aborted")
		r.logger.InfoContext(ctx, "propagation aborted: ambiguous strength siblings",
			"type", string(origin),
			"word", word,
		)
		return PropagationResult{Op: op, Word: word, Origin: origin, Aborted: true}
	}
	res := r.PropagateTo(ctx, op, word, owner, targets)
	res.Origin = origin
	return res
}

// PropagateTo replays op for word on the caller-named targets. Each target is
// applied independently.
func (r *Registry) PropagateTo(ctx context.Context, op Op, word string, owner domain.ActorID, targets []taxonomy.WordType) PropagationResult {
	ctx, span := tracer.Start(ctx, "Registry.Propagate", trace.WithAttributes(
		attribute.String("op", string(op)),
		attribute.Int("targets", len(targets)),
	))
	defer span.End()

	res := PropagationResult{Op: op, Word: word, Failed: make(map[taxonomy.WordType]error)}
	for _, t := range targets {
		var err error
		switch op {
		case OpAdd:
			_, err = r.Add(ctx, t, word, owner)
		case OpRemove:
			err = r.Remove(ctx, t, word)
		default:
			err = dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("cannot propagate %q", op))
		}
		if err != nil {
			res.Failed[t] = err
			r.metrics.IncrementPropagation("failed")
			continue
		}
		res.Applied = append(res.Applied, t)
		r.metrics.IncrementPropagation("applied")
	}
	return res
}
