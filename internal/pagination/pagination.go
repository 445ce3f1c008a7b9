// Package pagination lists and searches the registry one fixed-size page at
// a time. It is a read path and never takes the registry guard.
package pagination

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"wordhub/internal/taxonomy"
	"wordhub/internal/words/models"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
)

const DefaultPageSize = 15

// Source is the read side of the registry.
type Source interface {
	Types() []taxonomy.WordType
	Entries(t taxonomy.WordType) ([]models.WordEntry, error)
}

// MatchFunc reports whether a stored pattern matches a search query.
type MatchFunc func(pattern, text string) bool

// ListFilter selects one type's entries in word order.
type ListFilter struct {
	Type       taxonomy.WordType
	Descending bool
}

// Item is one entry on a page.
type Item struct {
	Type   taxonomy.WordType `json:"type"`
	Word   string            `json:"word"`
	Status models.WordStatus `json:"status"`
}

// Page is one slice of a listing or search.
//
// Token replays this page. Prev and Next are the neighbouring pages and are
// nil when everything fits on one page.
type Page struct {
	Items []Item     `json:"items"`
	Index int        `json:"index"`
	Pages int        `json:"pages"`
	Total int        `json:"total"`
	Token PageToken  `json:"-"`
	Prev  *PageToken `json:"-"`
	Next  *PageToken `json:"-"`
}

// Service builds pages.
type Service struct {
	source   Source
	match    MatchFunc
	pageSize int
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPageSize sets the fixed page size.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithMatcher lets searches also hit entries whose pattern matches the query.
func WithMatcher(fn MatchFunc) Option {
	return func(s *Service) {
		s.match = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service.
func New(source Source, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, errors.New("source is required")
	}
	s := &Service{
		source:   source,
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PageSize returns the configured page size.
func (s *Service) PageSize() int { return s.pageSize }

// List returns page of f.Type's entries ordered by word. Out-of-range pages
// are clamped.
func (s *Service) List(ctx context.Context, owner domain.ActorID, f ListFilter, page int) (*Page, error) {
	return s.Open(ctx, PageToken{
		Kind:       KindList,
		Type:       f.Type,
		Descending: f.Descending,
		Page:       page,
		Owner:      owner,
	})
}

// Search returns page of the entries of t, or of every type when t is
// taxonomy.All, whose word contains query or whose pattern matches it.
// Results are ordered by type then word.
func (s *Service) Search(ctx context.Context, owner domain.ActorID, t taxonomy.WordType, query string, page int) (*Page, error) {
	return s.Open(ctx, PageToken{
		Kind:  KindSearch,
		Type:  t,
		Query: query,
		Page:  page,
		Owner: owner,
	})
}

// Resolve replays token one page in dir. Only the token's owner may page;
// moving past either end returns the boundary page.
func (s *Service) Resolve(ctx context.Context, actor domain.ActorID, token PageToken, dir Direction) (*Page, error) {
	if token.Owner != 0 && token.Owner != actor {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the requester may change pages")
	}
	switch dir {
	case Previous:
		token.Page--
	case Next:
		token.Page++
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "direction must be previous or next")
	}
	return s.Open(ctx, token)
}

// Open renders the page token describes.
func (s *Service) Open(ctx context.Context, token PageToken) (*Page, error) {
	var (
		items []Item
		err   error
	)
	switch token.Kind {
	case KindList:
		items, err = s.list(token.Type, token.Descending)
	case KindSearch:
		items, err = s.search(token.Type, token.Query)
	default:
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "unknown page token kind")
	}
	if err != nil {
		return nil, err
	}

	p := s.slice(items, token)
	s.logger.DebugContext(ctx, "page rendered",
		"kind", string(token.Kind),
		"type", string(token.Type),
		"page", p.Index,
		"pages", p.Pages,
	)
	return p, nil
}

func (s *Service) list(t taxonomy.WordType, desc bool) ([]Item, error) {
	entries, err := s.source.Entries(t)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, Item{Type: t, Word: e.Word, Status: e.Status})
	}
	slices.SortFunc(items, func(a, b Item) int {
		if desc {
			return strings.Compare(b.Word, a.Word)
		}
		return strings.Compare(a.Word, b.Word)
	})
	return items, nil
}

func (s *Service) search(t taxonomy.WordType, query string) ([]Item, error) {
	if strings.TrimSpace(query) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "search query is required")
	}
	types := []taxonomy.WordType{t}
	if t == taxonomy.All {
		types = s.source.Types()
	}

	var items []Item
	for _, typ := range types {
		entries, err := s.source.Entries(typ)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if strings.Contains(e.Word, query) || (s.match != nil && s.match(e.Word, query)) {
				items = append(items, Item{Type: typ, Word: e.Word, Status: e.Status})
			}
		}
	}
	slices.SortFunc(items, func(a, b Item) int {
		if c := strings.Compare(string(a.Type), string(b.Type)); c != 0 {
			return c
		}
		return strings.Compare(a.Word, b.Word)
	})
	return items, nil
}

func (s *Service) slice(items []Item, token PageToken) *Page {
	pages := (len(items) + s.pageSize - 1) / s.pageSize
	if pages == 0 {
		pages = 1
	}
	index := min(max(token.Page, 0), pages-1)
	start := index * s.pageSize
	end := min(start+s.pageSize, len(items))

	token.Page = index
	if items == nil {
		items = []Item{}
	}
	p := &Page{
		Items: items[start:end],
		Index: index,
		Pages: pages,
		Total: len(items),
		Token: token,
	}
	if index > 0 {
		prev := token
		prev.Page = index - 1
		p.Prev = &prev
	}
	if index < pages-1 {
		next := token
		next.Page = index + 1
		p.Next = &next
	}
	return p
}
