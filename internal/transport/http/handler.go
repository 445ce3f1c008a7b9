// Package httptransport exposes the command intake and the read side of the
// registry over HTTP for the chat bridge and operators.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"wordhub/internal/command"
	"wordhub/internal/matching"
	"wordhub/internal/pagination"
	"wordhub/internal/taxonomy"
	"wordhub/internal/words/models"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
	"wordhub/pkg/platform/httputil"
	request "wordhub/pkg/platform/middleware/request"
	"wordhub/pkg/requestcontext"
)

// Dispatcher runs chat commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command) (*command.Result, error)
}

// Pager serves listings and searches.
type Pager interface {
	List(ctx context.Context, owner domain.ActorID, f pagination.ListFilter, page int) (*pagination.Page, error)
	Search(ctx context.Context, owner domain.ActorID, t taxonomy.WordType, query string, page int) (*pagination.Page, error)
	Resolve(ctx context.Context, actor domain.ActorID, token pagination.PageToken, dir pagination.Direction) (*pagination.Page, error)
	Open(ctx context.Context, token pagination.PageToken) (*pagination.Page, error)
}

// Scanner tests message samples against the registry.
type Scanner interface {
	Scan(ctx context.Context, types []taxonomy.WordType, s matching.Sample) ([]matching.Match, error)
}

// Catalog describes the known word types.
type Catalog interface {
	Taxonomy() *taxonomy.Taxonomy
	Comment(t taxonomy.WordType) string
	Entries(t taxonomy.WordType) ([]models.WordEntry, error)
}

// Handler serves the /v1 API.
type Handler struct {
	logger     *slog.Logger
	dispatcher Dispatcher
	pages      Pager
	scanner    Scanner
	catalog    Catalog
}

// New creates a Handler.
func New(dispatcher Dispatcher, pages Pager, scanner Scanner, catalog Catalog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		dispatcher: dispatcher,
		pages:      pages,
		scanner:    scanner,
		catalog:    catalog,
	}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Use(request.Actor)
	r.Post("/commands", h.handleCommand)
	r.Get("/types", h.handleTypes)
	r.Get("/words/{type}", h.handleList)
	r.Get("/search", h.handleSearch)
	r.Get("/pages/{token}", h.handlePage)
	r.Post("/match/{type}", h.handleMatch)
}

type commandRequest struct {
	Issuer    domain.ActorID   `json:"issuer"`
	Chat      domain.ChatID    `json:"chat"`
	MessageID domain.MessageID `json:"message_id"`
	Text      string           `json:"text"`
	Reply     *command.Reply   `json:"reply,omitempty"`
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid command request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Issuer == 0 {
		req.Issuer = requestcontext.Actor(ctx)
	}
	if req.Issuer == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "issuer is required"))
		return
	}
	cmd, ok := command.FromText(req.Issuer, req.Chat, req.MessageID, req.Text, req.Reply)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "text holds no command"))
		return
	}

	result, err := h.dispatcher.Dispatch(ctx, cmd)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "command dispatch failed",
				"request_id", requestID,
				"keyword", cmd.Keyword,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type typeResponse struct {
	Type    taxonomy.WordType `json:"type"`
	Comment string            `json:"comment,omitempty"`
	Words   int               `json:"words"`
}

func (h *Handler) handleTypes(w http.ResponseWriter, _ *http.Request) {
	types := h.catalog.Taxonomy().Types()
	out := make([]typeResponse, 0, len(types))
	for _, t := range types {
		entries, err := h.catalog.Entries(t)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		out = append(out, typeResponse{Type: t, Comment: h.catalog.Comment(t), Words: len(entries)})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"types": out})
}

type pageResponse struct {
	Items []pagination.Item `json:"items"`
	Index int               `json:"index"`
	Pages int               `json:"pages"`
	Total int               `json:"total"`
	Token string            `json:"token"`
	Prev  string            `json:"prev,omitempty"`
	Next  string            `json:"next,omitempty"`
}

func toPageResponse(p *pagination.Page) pageResponse {
	resp := pageResponse{
		Items: p.Items,
		Index: p.Index,
		Pages: p.Pages,
		Total: p.Total,
		Token: p.Token.Encode(),
	}
	if p.Prev != nil {
		resp.Prev = p.Prev.Encode()
	}
	if p.Next != nil {
		resp.Next = p.Next.Encode()
	}
	return resp
}

func pageParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "page must be a non-negative integer")
	}
	return n, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.catalog.Taxonomy().Parse(chi.URLParam(r, "type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := pageParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	desc := strings.EqualFold(r.URL.Query().Get("order"), "desc")
	p, err := h.pages.List(ctx, requestcontext.Actor(ctx), pagination.ListFilter{Type: t, Descending: desc}, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPageResponse(p))
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	t := taxonomy.WordType(taxonomy.All)
	if raw := q.Get("type"); raw != "" && raw != taxonomy.All {
		var err error
		if t, err = h.catalog.Taxonomy().Parse(raw); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	page, err := pageParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.pages.Search(ctx, requestcontext.Actor(ctx), t, q.Get("q"), page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPageResponse(p))
}

// handlePage replays a page token. Without dir it re-renders the token's own
// page; with dir it moves one page. Both are reserved to the token's owner.
func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	token, err := pagination.Decode(chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var p *pagination.Page
	if raw := r.URL.Query().Get("dir"); raw != "" {
		dir, err := pagination.ParseDirection(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		p, err = h.pages.Resolve(ctx, actor, token, dir)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	} else {
		if token.Owner != 0 && token.Owner != actor {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "only the requester may change pages"))
			return
		}
		if p, err = h.pages.Open(ctx, token); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, toPageResponse(p))
}

// handleMatch scans a sample against one type, or every type for "all".
func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var types []taxonomy.WordType
	if raw := chi.URLParam(r, "type"); raw != taxonomy.All {
		t, err := h.catalog.Taxonomy().Parse(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		types = []taxonomy.WordType{t}
	}

	var sample matching.Sample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	hits, err := h.scanner.Scan(ctx, types, sample)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if hits == nil {
		hits = []matching.Match{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"matches": hits})
}
