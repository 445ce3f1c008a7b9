package command

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"wordhub/internal/authz"
	conflictservice "wordhub/internal/conflict/service"
	conflictstore "wordhub/internal/conflict/store"
	"wordhub/internal/delivery"
	"wordhub/internal/distribution"
	"wordhub/internal/matching"
	"wordhub/internal/pagination"
	"wordhub/internal/platform/workers"
	"wordhub/internal/ratelimit"
	"wordhub/internal/taxonomy"
	"wordhub/internal/words/service"
	"wordhub/internal/words/store"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
)

// inlineSubmitter runs tasks on the caller's goroutine.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(_ string, task workers.Task) error {
	task(context.Background())
	return nil
}

type panicPublisher struct{ Publisher }

func (panicPublisher) Push(context.Context, taxonomy.WordType) error { panic("boom") }

// =============================================================================
// Dispatcher Test Suite
// =============================================================================
// Drives commands end to end through real registry, conflict, pagination,
// matching and distribution services, observing reports via a recorder.

type DispatcherSuite struct {
	suite.Suite
	ctx        context.Context
	logger     *slog.Logger
	deps       Dependencies
	registry   *service.Registry
	transport  *distribution.MemoryTransport
	sender     *delivery.Recorder
	dispatcher *Dispatcher
	nextID     domain.MessageID
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	compiler, err := matching.NewCompiler(64, 0)
	s.Require().NoError(err)
	s.registry, err = service.New(
		taxonomy.MustNew("ad", "ad+", "ad-", "bio", "bio+", "nm"),
		store.NewInMemory(),
		service.WithLogger(s.logger),
		service.WithValidator(compiler.Validate),
	)
	s.Require().NoError(err)

	conflicts, err := conflictservice.New(conflictstore.NewInMemory(), s.registry, conflictservice.WithLogger(s.logger))
	s.Require().NoError(err)

	s.transport = distribution.NewMemoryTransport()
	publisher, err := distribution.New(s.registry, s.transport, inlineSubmitter{},
		map[taxonomy.WordType][]string{"ad": {"NOSPAM"}, "bio": {"USER"}},
		distribution.WithLogger(s.logger))
	s.Require().NoError(err)

	pages, err := pagination.New(s.registry, pagination.WithPageSize(2), pagination.WithMatcher(compiler.Matches))
	s.Require().NoError(err)
	matcher, err := matching.New(s.registry, compiler, matching.WithLogger(s.logger))
	s.Require().NoError(err)

	s.sender = delivery.NewRecorder()
	s.deps = Dependencies{
		Guard:      service.NewGuard(),
		Registry:   s.registry,
		Conflicts:  conflicts,
		Publisher:  publisher,
		Pages:      pages,
		Matcher:    matcher,
		Compiler:   compiler,
		Sender:     s.sender,
		Authorizer: authz.NewStatic(1, 2, 3),
	}
	s.dispatcher, err = New(s.deps, WithLogger(s.logger), WithIdentity("REGEX", "1.2.3"))
	s.Require().NoError(err)
}

// run dispatches text as issuer in chat -100.
func (s *DispatcherSuite) run(issuer domain.ActorID, text string, reply *Reply) *Result {
	s.nextID++
	cmd, ok := FromText(issuer, -100, s.nextID, text, reply)
	s.Require().True(ok, text)
	res, err := s.dispatcher.Dispatch(s.ctx, cmd)
	s.Require().NoError(err, text)
	return res
}

// promptOf turns a result into the reply a user would send against it.
func promptOf(res *Result) *Reply {
	return &Reply{MessageID: res.MessageID, FromSelf: true, Text: res.Report, Controls: res.Controls}
}

func (s *DispatcherSuite) TestAddPropagatesAndPushes() {
	res := s.run(1, "/add bio+ spam", nil)
	s.True(res.Succeeded, res.Report)
	s.Contains(res.Report, "synced: bio")

	owner, err := s.registry.Owner(s.ctx, "bio", "spam")
	s.Require().NoError(err)
	s.EqualValues(1, owner)

	s.Len(s.transport.For("USER"), 1, "bio+ has no subscribers, bio is pushed once for the sync")
	last, ok := s.sender.Last()
	s.Require().True(ok)
	s.EqualValues(-100, last.Chat)
}

func (s *DispatcherSuite) TestAddSkipsAmbiguousSync() {
	res := s.run(1, "/add ad foo", nil)
	s.True(res.Succeeded)
	s.Contains(res.Report, "sync: skipped")
	_, err := s.registry.Get(s.ctx, "ad+", "foo")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *DispatcherSuite) TestAddRejectsBadInput() {
	res := s.run(1, "/add ad", nil)
	s.False(res.Succeeded)
	s.Contains(res.Report, "reason: usage: add <type> <word>")

	res = s.run(1, "/add zz foo", nil)
	s.Contains(res.Report, `reason: unknown word type "zz"`)

	res = s.run(1, "/add ad (foo", nil)
	s.Contains(res.Report, "reason: invalid pattern")
}

func (s *DispatcherSuite) TestDuplicateAddArbitration() {
	s.run(1, "/add ad foo", nil)

	prompt := s.run(2, "/add ad foo", nil)
	s.True(prompt.Succeeded)
	s.Contains(prompt.Report, "status: awaiting decision")
	s.Contains(prompt.Report, "owner: 1")
	s.Require().Len(prompt.Controls, 3)

	denied := s.run(2, "/ask replace", promptOf(prompt))
	s.False(denied.Succeeded)
	s.Contains(denied.Report, "only the current owner may decide")

	decided := s.run(1, "/ask replace", promptOf(prompt))
	s.True(decided.Succeeded, decided.Report)

	status, err := s.registry.Get(s.ctx, "ad", "foo")
	s.Require().NoError(err)
	s.EqualValues(2, status.Owner)
	s.Zero(status.Total)

	edits := s.sender.Edits()
	s.Require().Len(edits, 1)
	s.Equal(prompt.MessageID, edits[0].MessageID)
	s.Contains(edits[0].Text, "handed over to 2")

	again := s.run(1, "/ask new", promptOf(prompt))
	s.False(again.Succeeded)
	s.Contains(again.Report, "unknown or already used token")
}

func (s *DispatcherSuite) TestDuplicateOfOwnWord() {
	s.run(1, "/add ad foo", nil)
	res := s.run(1, "/add ad foo", nil)
	s.False(res.Succeeded)
	s.Contains(res.Report, "reason: word already exists")
	s.Empty(res.Controls)
}

func (s *DispatcherSuite) TestRemove() {
	s.Run("by arguments", func() {
		s.run(1, "/add bio+ x1", nil)
		res := s.run(1, "/rm bio+ x1", nil)
		s.True(res.Succeeded, res.Report)
		_, err := s.registry.Get(s.ctx, "bio", "x1")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("bare reply undoes own add", func() {
		s.run(1, "/add nm spam bot", nil)
		res := s.run(1, "/rm", &Reply{Author: 1, Text: "/add nm spam bot"})
		s.True(res.Succeeded, res.Report)
		_, err := s.registry.Get(s.ctx, "nm", "spam bot")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("bare reply to someone else", func() {
		res := s.run(1, "/rm", &Reply{Author: 2, Text: "/add nm x"})
		s.Contains(res.Report, "reason: you can only reuse your own commands")
	})

	s.Run("missing word", func() {
		res := s.run(1, "/rm nm nothing", nil)
		s.False(res.Succeeded)
	})
}

func (s *DispatcherSuite) TestSame() {
	s.run(1, "/add ad foo", nil)
	addCmd := &Reply{Author: 1, Text: "/add ad foo"}

	res := s.run(1, "/same bio nm", addCmd)
	s.True(res.Succeeded, res.Report)
	s.Contains(res.Report, "synced: bio, nm")
	_, err := s.registry.Get(s.ctx, "nm", "foo")
	s.NoError(err)

	bareRemove := &Reply{Author: 1, Text: "/rm", Reply: addCmd}
	res = s.run(1, "/same nm", bareRemove)
	s.True(res.Succeeded, res.Report)
	_, err = s.registry.Get(s.ctx, "nm", "foo")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	res = s.run(2, "/same nm", addCmd)
	s.Contains(res.Report, "reason: you can only reuse your own commands")
}

func (s *DispatcherSuite) TestReadCommands() {
	s.run(1, "/add ad foo", nil)
	s.run(1, "/comment ad advertising", nil)

	res := s.run(3, "/check ad foo", nil)
	s.Contains(res.Report, "comment: advertising")
	s.Contains(res.Report, "result: 0.0 / 0 / 0 / 0")

	res = s.run(3, "/who ad foo", nil)
	s.Contains(res.Report, "result: 1\n")

	res = s.run(3, "/who ad nope", nil)
	s.False(res.Succeeded)
}

func (s *DispatcherSuite) TestResetAndPush() {
	s.run(1, "/add ad foo", nil)
	_, err := s.registry.Hit("ad", "foo")
	s.Require().NoError(err)

	res := s.run(1, "/reset ad", nil)
	s.True(res.Succeeded)
	status, _ := s.registry.Get(s.ctx, "ad", "foo")
	s.Zero(status.Total)
	s.EqualValues(1, status.Owner)

	s.True(s.run(1, "/reset all", nil).Succeeded)
	s.False(s.run(1, "/reset", nil).Succeeded)

	before := len(s.transport.Deliveries())
	s.True(s.run(1, "/push all", nil).Succeeded)
	s.Len(s.transport.Deliveries(), before+2)

	res = s.run(1, "/count", nil)
	s.Contains(res.Report, "receivers: NOSPAM, USER")

	s.True(s.run(1, "/captcha", nil).Succeeded)
	s.Len(s.transport.For("CAPTCHA"), 1)
}

func (s *DispatcherSuite) TestListAndPage() {
	for _, w := range []string{"a1", "a2", "a3"} {
		s.run(1, "/add nm "+w, nil)
	}
	list := s.run(1, "/list nm", nil)
	s.Contains(list.Report, "page: 1/2")
	s.Contains(list.Report, "a1  (0.0 / 0 / 0 / 0)")
	s.Require().Len(list.Controls, 2)

	res := s.run(1, "/page next", promptOf(list))
	s.True(res.Succeeded, res.Report)
	edits := s.sender.Edits()
	s.Require().Len(edits, 1)
	s.Contains(edits[0].Text, "page: 2/2")
	s.Contains(edits[0].Text, "a3")

	res = s.run(2, "/page next", promptOf(list))
	s.Contains(res.Report, "only the requester may change pages")

	search := s.run(1, "/search all a2", nil)
	s.Contains(search.Report, "[nm] a2")
	s.Empty(search.Controls)
}

func (s *DispatcherSuite) TestMatchingCommands() {
	s.run(1, "/add ad foo", nil)
	msg := &Reply{Author: 9, Text: "buy cheap foo now", ForwardName: "Deals"}

	res := s.run(1, "/regex", msg)
	s.Contains(res.Report, "ad/text: foo")
	status, _ := s.registry.Get(s.ctx, "ad", "foo")
	s.Equal(1, status.Today)

	res = s.run(1, "/findall f(o+)", msg)
	s.Contains(res.Report, `["oo"]`)

	res = s.run(1, "/escape a.b", nil)
	s.Contains(res.Report, `a\.b`)

	res = s.run(1, "/t2t", msg)
	s.Contains(res.Report, "Deals\n\nbuy cheap foo now")
}

func (s *DispatcherSuite) TestPermissions() {
	res := s.run(99, "/add ad foo", nil)
	s.False(res.Succeeded)
	s.Contains(res.Report, "reason: permission denied")

	res = s.run(99, "/version", nil)
	s.True(res.Succeeded)
	s.Contains(res.Report, "version: 1.2.3")

	res = s.run(99, "/version captcha", nil)
	s.Empty(res.Report, "addressed to another service")
}

func (s *DispatcherSuite) TestRateLimit() {
	deps := s.deps
	deps.Limiter = ratelimit.New(2, time.Minute)
	d, err := New(deps, WithLogger(s.logger))
	s.Require().NoError(err)

	for i := range 3 {
		cmd, _ := FromText(1, -100, domain.MessageID(i), "/check ad foo", nil)
		res, err := d.Dispatch(s.ctx, cmd)
		s.Require().NoError(err)
		if i < 2 {
			s.NotContains(res.Report, "too many commands")
			continue
		}
		s.False(res.Succeeded)
		s.Contains(res.Report, "reason: too many commands, retry in")
	}

	cmd, _ := FromText(2, -100, 9, "/version", nil)
	res, err := d.Dispatch(s.ctx, cmd)
	s.Require().NoError(err)
	s.True(res.Succeeded, "other issuers keep their own window")
}

func (s *DispatcherSuite) TestUnknownCommand() {
	cmd, _ := FromText(1, -100, 1, "/frobnicate", nil)
	_, err := s.dispatcher.Dispatch(s.ctx, cmd)
	s.ErrorIs(err, ErrUnknownCommand)
}

func (s *DispatcherSuite) TestPanicIsRecoveredAndGuardReleased() {
	deps := s.deps
	deps.Publisher = panicPublisher{}
	d, err := New(deps, WithLogger(s.logger))
	s.Require().NoError(err)

	cmd, _ := FromText(1, -100, 1, "/push ad", nil)
	res, err := d.Dispatch(s.ctx, cmd)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Require().NotNil(res)
	s.False(res.Succeeded)
	s.Contains(res.Report, "reason: internal error")

	s.True(s.run(1, "/add ad after", nil).Succeeded)
}
