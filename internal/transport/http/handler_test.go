package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"wordhub/internal/command"
	"wordhub/internal/matching"
	"wordhub/internal/pagination"
	"wordhub/internal/taxonomy"
	"wordhub/internal/transport/http/mocks"
	"wordhub/internal/words/service"
	"wordhub/internal/words/store"
	dErrors "wordhub/pkg/domain-errors"
	"wordhub/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Dispatcher

const adminToken = "secret"

type HandlerSuite struct {
	suite.Suite
	dispatcher *mocks.MockDispatcher
	registry   *service.Registry
	router     http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.dispatcher = mocks.NewMockDispatcher(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.registry, err = service.New(taxonomy.MustNew("ad", "nm"), store.NewInMemory(), service.WithLogger(logger))
	s.Require().NoError(err)
	for _, w := range []string{"a1", "a2", "a3"} {
		_, err := s.registry.Add(context.Background(), "nm", w, 7)
		s.Require().NoError(err)
	}

	compiler, err := matching.NewCompiler(16, 0)
	s.Require().NoError(err)
	matcher, err := matching.New(s.registry, compiler, matching.WithLogger(logger))
	s.Require().NoError(err)
	pages, err := pagination.New(s.registry, pagination.WithPageSize(2), pagination.WithMatcher(compiler.Matches))
	s.Require().NoError(err)

	s.router = NewRouter(RouterConfig{
		Handler:    New(s.dispatcher, pages, matcher, s.registry, logger),
		Logger:     logger,
		AdminToken: adminToken,
	})
}

func (s *HandlerSuite) TestHealthAndAuth() {
	t := s.T()
	rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/v1/types"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func (s *HandlerSuite) TestCommand() {
	t := s.T()

	s.Run("dispatches parsed command", func() {
		s.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, cmd command.Command) (*command.Result, error) {
				assert.EqualValues(t, 7, cmd.Issuer)
				assert.EqualValues(t, -100, cmd.Chat)
				assert.Equal(t, command.KeywordAdd, cmd.Keyword)
				assert.Equal(t, "ad foo", cmd.Args)
				return &command.Result{Keyword: cmd.Keyword, Succeeded: true, Report: "status: succeeded\n", MessageID: 12}, nil
			})
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/commands", map[string]any{
			"issuer": 7, "chat": -100, "message_id": 3, "text": "/ad ad foo",
		})
		rr := testutil.DoRequest(s.router, testutil.WithAdminToken(req, adminToken))
		testutil.AssertStatusOK(t, rr)
		res := testutil.UnmarshalResponse[command.Result](t, rr)
		assert.True(t, res.Succeeded)
		assert.EqualValues(t, 12, res.MessageID)
	})

	s.Run("issuer falls back to actor header", func() {
		s.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, cmd command.Command) (*command.Result, error) {
				assert.EqualValues(t, 9, cmd.Issuer)
				return &command.Result{Keyword: cmd.Keyword}, nil
			})
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/commands", map[string]any{"text": "/version"})
		rr := testutil.DoRequest(s.router, testutil.WithActor(testutil.WithAdminToken(req, adminToken), 9))
		testutil.AssertStatusOK(t, rr)
	})

	s.Run("unknown command", func() {
		s.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(nil, command.ErrUnknownCommand)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/commands", map[string]any{"issuer": 7, "text": "/nope"})
		rr := testutil.DoRequest(s.router, testutil.WithAdminToken(req, adminToken))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("rejects requests without a command", func() {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/commands", map[string]any{"issuer": 7, "text": "  "})
		rr := testutil.DoRequest(s.router, testutil.WithAdminToken(req, adminToken))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))

		req = testutil.NewRequestWithBody(t, http.MethodPost, "/v1/commands", "{")
		rr = testutil.DoRequest(s.router, testutil.WithAdminToken(req, adminToken))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		req = testutil.NewJSONRequest(t, http.MethodPost, "/v1/commands", map[string]any{"text": "/version"})
		req.Header.Set("X-Actor-ID", "abc")
		rr = testutil.DoRequest(s.router, testutil.WithAdminToken(req, adminToken))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestTypes() {
	t := s.T()
	require.NoError(t, s.registry.SetComment(context.Background(), "nm", "names"))

	req := testutil.NewRequest(t, http.MethodGet, "/v1/types")
	rr := testutil.DoRequest(s.router, testutil.WithAdminToken(req, adminToken))
	testutil.AssertStatusOK(t, rr)
	body := testutil.UnmarshalResponse[struct {
		Types []typeResponse `json:"types"`
	}](t, rr)
	require.Len(t, body.Types, 2)
	assert.Equal(t, typeResponse{Type: "nm", Comment: "names", Words: 3}, body.Types[1])
}

func (s *HandlerSuite) TestListAndPages() {
	t := s.T()
	get := func(path string, actor int64) *pageResponse {
		req := testutil.WithActor(testutil.WithAdminToken(testutil.NewRequest(t, http.MethodGet, path), adminToken), 7)
		if actor != 7 {
			req.Header.Set("X-Actor-ID", itoa(actor))
		}
		rr := testutil.DoRequest(s.router, req)
		if rr.Code != http.StatusOK {
			return nil
		}
		return testutil.UnmarshalResponse[pageResponse](t, rr)
	}

	first := get("/v1/words/nm", 7)
	require.NotNil(t, first)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 2, first.Pages)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "a1", first.Items[0].Word)
	require.NotEmpty(t, first.Next)
	assert.Empty(t, first.Prev, "first page has no previous link")

	second := get("/v1/pages/"+first.Next, 7)
	require.NotNil(t, second)
	assert.Equal(t, 1, second.Index)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "a3", second.Items[0].Word)
	assert.Empty(t, second.Next, "last page has no next link")
	assert.NotEmpty(t, second.Prev)

	back := get("/v1/pages/"+second.Token+"?dir=previous", 7)
	require.NotNil(t, back)
	assert.Equal(t, 0, back.Index)

	assert.Nil(t, get("/v1/pages/"+second.Token+"?dir=next", 8), "only the owner may page")
	assert.Nil(t, get("/v1/pages/"+second.Token, 8))

	desc := get("/v1/words/nm?order=desc", 7)
	require.NotNil(t, desc)
	assert.Equal(t, "a3", desc.Items[0].Word)

	req := testutil.WithAdminToken(testutil.NewRequest(t, http.MethodGet, "/v1/words/zz"), adminToken)
	testutil.AssertStatusAndError(t, testutil.DoRequest(s.router, req), http.StatusBadRequest, string(dErrors.CodeBadRequest))

	req = testutil.WithAdminToken(testutil.NewRequest(t, http.MethodGet, "/v1/pages/garbage"), adminToken)
	testutil.AssertStatusAndError(t, testutil.DoRequest(s.router, req), http.StatusBadRequest, string(dErrors.CodeInvalidRequest))
}

func (s *HandlerSuite) TestSearch() {
	t := s.T()
	req := testutil.WithAdminToken(testutil.NewRequest(t, http.MethodGet, "/v1/search?type=all&q=a2"), adminToken)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(t, rr)
	page := testutil.UnmarshalResponse[pageResponse](t, rr)
	require.Len(t, page.Items, 1)
	assert.Equal(t, taxonomy.WordType("nm"), page.Items[0].Type)
	assert.Empty(t, page.Next)

	req = testutil.WithAdminToken(testutil.NewRequest(t, http.MethodGet, "/v1/search?type=all&q=zzz"), adminToken)
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "items", []any{})

	req = testutil.WithAdminToken(testutil.NewRequest(t, http.MethodGet, "/v1/search?type=nm"), adminToken)
	testutil.AssertStatus(t, testutil.DoRequest(s.router, req), http.StatusBadRequest)
}

func (s *HandlerSuite) TestMatch() {
	t := s.T()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/match/nm", matching.Sample{Name: "A2 store", Text: "nothing here"})
	rr := testutil.DoRequest(s.router, testutil.WithAdminToken(req, adminToken))
	testutil.AssertStatusOK(t, rr)
	body := testutil.UnmarshalResponse[struct {
		Matches []matching.Match `json:"matches"`
	}](t, rr)
	require.Len(t, body.Matches, 1)
	assert.Equal(t, matching.ChannelName, body.Matches[0].Channel)
	assert.Equal(t, "a2", body.Matches[0].Word)

	status, err := s.registry.Get(context.Background(), "nm", "a2")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Today)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/v1/match/all", matching.Sample{Text: "clean"})
	rr = testutil.DoRequest(s.router, testutil.WithAdminToken(req, adminToken))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "matches", []any{})
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
