package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"wordhub/internal/taxonomy"
	"wordhub/internal/words/metrics"
	"wordhub/internal/words/models"
	"wordhub/internal/words/store"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
	"wordhub/pkg/requestcontext"
)

var tracer = otel.Tracer("wordhub/words")

// Validator rejects patterns that cannot be compiled.
type Validator func(pattern string) error

// Registry owns one table per known word type plus the per-type comments.
//
// Registry methods take no locks of their own beyond per-table memory safety;
// mutations are expected to run inside Guard.RunInTx.
type Registry struct {
	taxonomy  *taxonomy.Taxonomy
	tables    map[taxonomy.WordType]*models.Table
	persister store.Persister
	relation  taxonomy.Relation
	validate  Validator
	logger    *slog.Logger
	metrics   *metrics.Metrics

	commentsMu sync.RWMutex
	comments   map[taxonomy.WordType]string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRelation replaces the default suffix relation used by Propagate.
func WithRelation(rel taxonomy.Relation) Option {
	return func(r *Registry) {
		if rel != nil {
			r.relation = rel
		}
	}
}

// WithValidator sets the pattern validator applied on add.
func WithValidator(v Validator) Option {
	return func(r *Registry) {
		r.validate = v
	}
}

// WithMetrics attaches registry metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// New builds an empty registry with one table per type of tx.
func New(tx *taxonomy.Taxonomy, persister store.Persister, opts ...Option) (*Registry, error) {
	if tx == nil {
		return nil, errors.New("taxonomy is required")
	}
	if persister == nil {
		return nil, errors.New("persister is required")
	}
	r := &Registry{
		taxonomy:  tx,
		tables:    make(map[taxonomy.WordType]*models.Table),
		persister: persister,
		relation:  taxonomy.SuffixRelation,
		logger:    slog.Default(),
		comments:  make(map[taxonomy.WordType]string),
	}
	for _, t := range tx.Types() {
		r.tables[t] = models.NewTable(t)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Taxonomy returns the registry's taxonomy.
func (r *Registry) Taxonomy() *taxonomy.Taxonomy { return r.taxonomy }

// Types returns the known types in declaration order.
func (r *Registry) Types() []taxonomy.WordType { return r.taxonomy.Types() }

// Load restores every table and the comments from the persister. Missing
// tables stay empty.
func (r *Registry) Load(ctx context.Context) error {
	types := r.taxonomy.Types()
	names := make([]string, 0, len(types)+1)
	for _, t := range types {
		names = append(names, models.TableName(t))
	}
	names = append(names, models.CommentsTable)

	blobs, err := r.persister.Load(ctx, names)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	for _, t := range types {
		blob, ok := blobs[models.TableName(t)]
		if !ok {
			continue
		}
		var snap models.TableSnapshot
		if err := json.Unmarshal(blob, &snap); err != nil {
			return fmt.Errorf("decode table %s: %w", models.TableName(t), err)
		}
		r.tables[t].Restore(snap)
		r.metrics.SetEntries(string(t), r.tables[t].Len())
	}
	if blob, ok := blobs[models.CommentsTable]; ok {
		var raw map[string]string
		if err := json.Unmarshal(blob, &raw); err != nil {
			return fmt.Errorf("decode comments: %w", err)
		}
		r.commentsMu.Lock()
		for k, v := range raw {
			if t := taxonomy.WordType(k); r.taxonomy.Has(t) {
				r.comments[t] = v
				continue
			}
			r.logger.WarnContext(ctx, "dropping comment for unknown word type", "type", k)
		}
		r.commentsMu.Unlock()
	}
	r.logger.InfoContext(ctx, "registry loaded", "tables", len(blobs))
	return nil
}

func (r *Registry) table(t taxonomy.WordType) (*models.Table, error) {
	tbl, ok := r.tables[t]
	if !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown word type %q", t))
	}
	return tbl, nil
}

func normalizeWord(word string) (string, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "word is required")
	}
	return word, nil
}

// Add creates word under t with the default status owned by owner. If the
// word already exists the existing status is returned with a conflict error.
func (r *Registry) Add(ctx context.Context, t taxonomy.WordType, word string, owner domain.ActorID) (models.WordStatus, error) {
	ctx, span := tracer.Start(ctx, "Registry.Add", trace.WithAttributes(
		attribute.String("type", string(t)),
	))
	defer span.End()

	tbl, err := r.table(t)
	if err != nil {
		return models.WordStatus{}, err
	}
	if word, err = normalizeWord(word); err != nil {
		return models.WordStatus{}, err
	}
	if existing, ok := tbl.Get(word); ok {
		return existing, dErrors.New(dErrors.CodeConflict, "word already exists")
	}
	if r.validate != nil {
		if err := r.validate(word); err != nil {
			return models.WordStatus{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid pattern")
		}
	}

	status := models.DefaultStatus(owner)
	tbl.Insert(word, status)
	if err := r.flush(ctx, tbl, func() { tbl.Delete(word) }); err != nil {
		span.RecordError(err)
		return models.WordStatus{}, err
	}
	r.metrics.IncrementMutation("add", string(t))
	r.logEvent(ctx, "word_added", t, word, owner)
	return status, nil
}

// Remove deletes word from t.
func (r *Registry) Remove(ctx context.Context, t taxonomy.WordType, word string) error {
	ctx, span := tracer.Start(ctx, "Registry.Remove", trace.WithAttributes(
		attribute.String("type", string(t)),
	))
	defer span.End()

	tbl, err := r.table(t)
	if err != nil {
		return err
	}
	if word, err = normalizeWord(word); err != nil {
		return err
	}
	if _, ok := tbl.Get(word); !ok {
		return dErrors.New(dErrors.CodeNotFound, "word not found")
	}

	removed, pos, _ := tbl.Take(word)
	if err := r.flush(ctx, tbl, func() { tbl.InsertAt(pos, removed) }); err != nil {
		span.RecordError(err)
		return err
	}
	r.metrics.IncrementMutation("remove", string(t))
	r.logEvent(ctx, "word_removed", t, word, requestcontext.Actor(ctx))
	return nil
}

// Reset rewrites every status of t to the default template, keeping keys
// and owners. Reset is idempotent.
func (r *Registry) Reset(ctx context.Context, t taxonomy.WordType) error {
	ctx, span := tracer.Start(ctx, "Registry.Reset", trace.WithAttributes(
		attribute.String("type", string(t)),
	))
	defer span.End()

	tbl, err := r.table(t)
	if err != nil {
		return err
	}
	before := tbl.Entries()
	tbl.Reset()
	undo := func() {
		for _, e := range before {
			tbl.Set(e.Word, e.Status)
		}
	}
	if err := r.flush(ctx, tbl, undo); err != nil {
		span.RecordError(err)
		return err
	}
	r.metrics.IncrementMutation("reset", string(t))
	r.logEvent(ctx, "type_reset", t, "", requestcontext.Actor(ctx))
	return nil
}

// ResetAll resets every known type. Each type is flushed independently; the
// returned error joins every failure.
func (r *Registry) ResetAll(ctx context.Context) error {
	var errs []error
	for _, t := range r.taxonomy.Types() {
		if err := r.Reset(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return dErrors.Wrap(errors.Join(errs...), dErrors.CodeInternal, "failed to reset every word type")
	}
	return nil
}

// Replace hands word over to owner and resets its status.
func (r *Registry) Replace(ctx context.Context, t taxonomy.WordType, word string, owner domain.ActorID) (models.WordStatus, error) {
	ctx, span := tracer.Start(ctx, "Registry.Replace", trace.WithAttributes(
		attribute.String("type", string(t)),
	))
	defer span.End()

	tbl, err := r.table(t)
	if err != nil {
		return models.WordStatus{}, err
	}
	if _, ok := tbl.Get(word); !ok {
		return models.WordStatus{}, dErrors.New(dErrors.CodeNotFound, "word not found")
	}
	previous, _ := tbl.Get(word)
	status := models.DefaultStatus(owner)
	tbl.Set(word, status)
	if err := r.flush(ctx, tbl, func() { tbl.Set(word, previous) }); err != nil {
		span.RecordError(err)
		return models.WordStatus{}, err
	}
	r.metrics.IncrementMutation("replace", string(t))
	r.logEvent(ctx, "word_replaced", t, word, owner)
	return status, nil
}

// Get returns the status of word in t.
func (r *Registry) Get(_ context.Context, t taxonomy.WordType, word string) (models.WordStatus, error) {
	tbl, err := r.table(t)
	if err != nil {
		return models.WordStatus{}, err
	}
	if word, err = normalizeWord(word); err != nil {
		return models.WordStatus{}, err
	}
	status, ok := tbl.Get(word)
	if !ok {
		return models.WordStatus{}, dErrors.New(dErrors.CodeNotFound, "word not found")
	}
	return status, nil
}

// Count returns the counters of word in t.
func (r *Registry) Count(ctx context.Context, t taxonomy.WordType, word string) (models.Counters, error) {
	status, err := r.Get(ctx, t, word)
	if err != nil {
		return models.Counters{}, err
	}
	return status.Counters(), nil
}

// Owner returns who added word to t.
func (r *Registry) Owner(ctx context.Context, t taxonomy.WordType, word string) (domain.ActorID, error) {
	status, err := r.Get(ctx, t, word)
	if err != nil {
		return 0, err
	}
	return status.Owner, nil
}

// Entries returns a copy of t's entries in registry order.
func (r *Registry) Entries(t taxonomy.WordType) ([]models.WordEntry, error) {
	tbl, err := r.table(t)
	if err != nil {
		return nil, err
	}
	return tbl.Entries(), nil
}

// Hit records a match of word in t. It is the matching read path: it does
// not persist and does not need the guard; FlushDirty saves the counters.
func (r *Registry) Hit(t taxonomy.WordType, word string) (models.WordStatus, error) {
	tbl, err := r.table(t)
	if err != nil {
		return models.WordStatus{}, err
	}
	status, ok := tbl.Hit(word)
	if !ok {
		return models.WordStatus{}, dErrors.New(dErrors.CodeNotFound, "word not found")
	}
	return status, nil
}

// SetComment annotates t. An empty text clears the comment.
func (r *Registry) SetComment(ctx context.Context, t taxonomy.WordType, text string) error {
	if _, err := r.table(t); err != nil {
		return err
	}
	text = strings.TrimSpace(text)

	r.commentsMu.Lock()
	defer r.commentsMu.Unlock()
	previous, had := r.comments[t]
	if text == "" {
		delete(r.comments, t)
	} else {
		r.comments[t] = text
	}
	if err := r.saveComments(ctx); err != nil {
		if had {
			r.comments[t] = previous
		} else {
			delete(r.comments, t)
		}
		r.metrics.IncrementFlushFailure(models.CommentsTable)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist comments")
	}
	r.logEvent(ctx, "comment_set", t, "", requestcontext.Actor(ctx))
	return nil
}

// Comment returns the annotation of t, or "".
func (r *Registry) Comment(t taxonomy.WordType) string {
	r.commentsMu.RLock()
	defer r.commentsMu.RUnlock()
	return r.comments[t]
}

// Rollover closes the counting period of every table and flushes them.
// A table whose save fails stays dirty for the next FlushDirty.
func (r *Registry) Rollover(ctx context.Context) error {
	for _, t := range r.taxonomy.Types() {
		r.tables[t].Rollover()
	}
	return r.FlushDirty(ctx)
}

// FlushDirty saves every table touched by matching or rollover since the
// last flush.
func (r *Registry) FlushDirty(ctx context.Context) error {
	var errs []error
	for _, t := range r.taxonomy.Types() {
		tbl := r.tables[t]
		if !tbl.TakeDirty() {
			continue
		}
		if err := r.saveTable(ctx, tbl); err != nil {
			tbl.MarkDirty()
			r.metrics.IncrementFlushFailure(models.TableName(t))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// flush saves tbl and runs undo when the save fails. undo reverts only the
// entries the mutation touched, so hits counted on other entries while the
// save was in flight survive and stay dirty for the next FlushDirty.
func (r *Registry) flush(ctx context.Context, tbl *models.Table, undo func()) error {
	if err := r.saveTable(ctx, tbl); err != nil {
		undo()
		r.metrics.IncrementFlushFailure(models.TableName(tbl.Type()))
		r.logger.ErrorContext(ctx, "failed to persist word table",
			"table", models.TableName(tbl.Type()),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist word table")
	}
	r.metrics.SetEntries(string(tbl.Type()), tbl.Len())
	return nil
}

func (r *Registry) saveTable(ctx context.Context, tbl *models.Table) error {
	blob, err := json.Marshal(tbl.Snapshot())
	if err != nil {
		return fmt.Errorf("encode table %s: %w", models.TableName(tbl.Type()), err)
	}
	return r.persister.Save(ctx, models.TableName(tbl.Type()), blob)
}

// saveComments must be called with commentsMu held.
func (r *Registry) saveComments(ctx context.Context) error {
	raw := make(map[string]string, len(r.comments))
	for t, c := range r.comments {
		raw[string(t)] = c
	}
	blob, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode comments: %w", err)
	}
	return r.persister.Save(ctx, models.CommentsTable, blob)
}

func (r *Registry) logEvent(ctx context.Context, event string, t taxonomy.WordType, word string, actor domain.ActorID) {
	attrs := []any{
		"event", event,
		"type", string(t),
		"actor", actor.String(),
		"request_id", requestcontext.RequestID(ctx),
	}
	if word != "" {
		attrs = append(attrs, "word", word)
	}
	r.logger.InfoContext(ctx, "registry event", attrs...)
}
