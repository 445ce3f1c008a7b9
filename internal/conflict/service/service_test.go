package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Replacer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"wordhub/internal/conflict/models"
	"wordhub/internal/conflict/service/mocks"
	wordmodels "wordhub/internal/words/models"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
	"wordhub/pkg/platform/sentinel"
	"wordhub/pkg/requestcontext"
)

// =============================================================================
// Conflict Service Test Suite
// =============================================================================
// Verifies the arbitration state machine: who may decide, single-use tokens
// and how store facts translate into domain errors.

type ConflictServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	store    *mocks.MockStore
	replacer *mocks.MockReplacer
	service  *Service
	ctx      context.Context
	now      time.Time
}

func TestConflictServiceSuite(t *testing.T) {
	suite.Run(t, new(ConflictServiceSuite))
}

func (s *ConflictServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.replacer = mocks.NewMockReplacer(s.ctrl)
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var err error
	s.service, err = New(s.store, s.replacer, WithLogger(logger), WithTTL(time.Hour))
	s.Require().NoError(err)
}

func (s *ConflictServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ConflictServiceSuite) pending() *models.PendingConflict {
	return &models.PendingConflict{
		Token:     domain.NewConflictToken(),
		Arbiter:   1,
		Requester: 2,
		Type:      "ad",
		Word:      "foo",
		CreatedAt: s.now,
		ExpiresAt: s.now.Add(time.Hour),
	}
}

func (s *ConflictServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.replacer)
		s.ErrorContains(err, "conflict store is required")
	})
	s.Run("nil replacer returns error", func() {
		_, err := New(s.store, nil)
		s.ErrorContains(err, "replacer is required")
	})
}

func (s *ConflictServiceSuite) TestOpen() {
	s.Run("existing owner becomes arbiter", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, c *models.PendingConflict) error {
				s.Equal(domain.ActorID(1), c.Arbiter)
				s.Equal(domain.ActorID(2), c.Requester)
				s.Equal(s.now.Add(time.Hour), c.ExpiresAt)
				s.False(c.Token.IsNil())
				return nil
			})
		c, err := s.service.Open(s.ctx, "ad", "foo", 2, -100, wordmodels.DefaultStatus(1))
		s.Require().NoError(err)
		s.Equal(domain.ChatID(-100), c.Chat)
	})

	s.Run("requester owning the word gets a plain conflict", func() {
		_, err := s.service.Open(s.ctx, "ad", "foo", 1, 0, wordmodels.DefaultStatus(1))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("ownerless entry cannot be arbitrated", func() {
		_, err := s.service.Open(s.ctx, "ad", "foo", 1, 0, wordmodels.DefaultStatus(0))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("store failure is internal", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("down"))
		_, err := s.service.Open(s.ctx, "ad", "foo", 2, 0, wordmodels.DefaultStatus(1))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ConflictServiceSuite) TestDecide() {
	s.Run("non arbiter is forbidden and token survives", func() {
		p := s.pending()
		s.store.EXPECT().Find(gomock.Any(), p.Token, s.now).Return(p, nil)
		// no Consume expected

		_, err := s.service.Decide(s.ctx, p.Token, 2, models.DecisionReplace)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown token is invalid", func() {
		tok := domain.NewConflictToken()
		s.store.EXPECT().Find(gomock.Any(), tok, s.now).
			Return(nil, fmt.Errorf("conflict not found: %w", sentinel.ErrNotFound))

		_, err := s.service.Decide(s.ctx, tok, 1, models.DecisionNew)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	})

	s.Run("expired token is invalid", func() {
		tok := domain.NewConflictToken()
		s.store.EXPECT().Find(gomock.Any(), tok, s.now).
			Return(nil, fmt.Errorf("conflict expired: %w", sentinel.ErrExpired))

		_, err := s.service.Decide(s.ctx, tok, 1, models.DecisionNew)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	})

	s.Run("lost consume race is invalid", func() {
		p := s.pending()
		s.store.EXPECT().Find(gomock.Any(), p.Token, s.now).Return(p, nil)
		s.store.EXPECT().Consume(gomock.Any(), p.Token, s.now).
			Return(nil, fmt.Errorf("conflict not found: %w", sentinel.ErrNotFound))

		_, err := s.service.Decide(s.ctx, p.Token, 1, models.DecisionCancel)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	})

	s.Run("new keeps the entry", func() {
		p := s.pending()
		s.store.EXPECT().Find(gomock.Any(), p.Token, s.now).Return(p, nil)
		s.store.EXPECT().Consume(gomock.Any(), p.Token, s.now).Return(p, nil)

		out, err := s.service.Decide(s.ctx, p.Token, 1, models.DecisionNew)
		s.Require().NoError(err)
		s.False(out.Replaced)
		s.Equal(models.DecisionNew, out.Decision)
	})

	s.Run("replace hands the entry to the requester", func() {
		p := s.pending()
		s.store.EXPECT().Find(gomock.Any(), p.Token, s.now).Return(p, nil)
		s.store.EXPECT().Consume(gomock.Any(), p.Token, s.now).Return(p, nil)
		s.replacer.EXPECT().Replace(gomock.Any(), p.Type, p.Word, p.Requester).
			Return(wordmodels.DefaultStatus(p.Requester), nil)

		out, err := s.service.Decide(s.ctx, p.Token, 1, models.DecisionReplace)
		s.Require().NoError(err)
		s.True(out.Replaced)
	})

	s.Run("replace of a removed word reports not found", func() {
		p := s.pending()
		s.store.EXPECT().Find(gomock.Any(), p.Token, s.now).Return(p, nil)
		s.store.EXPECT().Consume(gomock.Any(), p.Token, s.now).Return(p, nil)
		s.replacer.EXPECT().Replace(gomock.Any(), p.Type, p.Word, p.Requester).
			Return(wordmodels.WordStatus{}, dErrors.New(dErrors.CodeNotFound, "word not found"))

		_, err := s.service.Decide(s.ctx, p.Token, 1, models.DecisionReplace)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ConflictServiceSuite) TestSweep() {
	s.store.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).Return(3, nil)
	n, err := s.service.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, n)

	s.store.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).Return(0, errors.New("down"))
	_, err = s.service.Sweep(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
