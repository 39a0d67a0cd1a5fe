package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idp/internal/oauth/models"
	"idp/internal/oauth/service"
	"idp/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store  *InMemory
	ctx    context.Context
	now    time.Time
	client *models.Client
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.client = &models.Client{
		ClientID:      "c1",
		ClientSecret:  "secret",
		RedirectURIs:  []string{"https://app/cb"},
		DisplayName:   "App",
		AllowedScopes: []string{"openid", "email"},
	}
	s.Require().NoError(s.store.CreateClient(s.ctx, s.client))
}

func (s *InMemoryStoreSuite) TestClients() {
	s.Run("lookup by public id", func() {
		c, err := s.store.FindClientByClientID(s.ctx, "c1")
		s.Require().NoError(err)
		s.Equal(s.client.ID, c.ID)
		s.Equal([]string{"https://app/cb"}, c.RedirectURIs)
	})

	s.Run("unknown client", func() {
		_, err := s.store.FindClientByClientID(s.ctx, "nope")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("duplicate client id conflicts", func() {
		err := s.store.CreateClient(s.ctx, &models.Client{ClientID: "c1"})
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *InMemoryStoreSuite) TestGrantUpsertMergesScopes() {
	var first, second int64
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.TxStore) error {
		var err error
		first, err = tx.UpsertGrant(ctx, s.client.ID, 7, []string{"openid"}, s.now)
		return err
	})
	s.Require().NoError(err)

	err = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.TxStore) error {
		var err error
		second, err = tx.UpsertGrant(ctx, s.client.ID, 7, []string{"email", "openid"}, s.now)
		return err
	})
	s.Require().NoError(err)
	s.Equal(first, second)

	g, err := s.store.FindGrant(s.ctx, s.client.ID, 7)
	s.Require().NoError(err)
	s.Equal([]string{"openid", "email"}, g.Scopes)
}

func (s *InMemoryStoreSuite) TestRunInTxRollsBack() {
	flowID, err := s.store.CreateFlow(s.ctx, s.newFlow(nil), s.now)
	s.Require().NoError(err)

	boom := errors.New("boom")
	err = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.TxStore) error {
		grantID, err := tx.UpsertGrant(ctx, s.client.ID, 7, []string{"openid"}, s.now)
		s.Require().NoError(err)
		s.Require().NoError(tx.IssueCode(ctx, flowID, grantID, "BF/C/x", s.now))
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindGrant(s.ctx, s.client.ID, 7)
	s.ErrorIs(err, sentinel.ErrNotFound)
	flow, ok := s.store.Flow(flowID)
	s.Require().True(ok)
	s.Nil(flow.Code)
	s.Nil(flow.GrantID)
}

func (s *InMemoryStoreSuite) TestFlowLocks() {
	pendingID, err := s.store.CreateFlow(s.ctx, s.newFlow(nil), s.now)
	s.Require().NoError(err)
	code := "BF/C/abc"
	codeFlowID, err := s.store.CreateFlow(s.ctx, s.newFlow(&code), s.now)
	s.Require().NoError(err)

	s.Run("pending flow requires owner and no code", func() {
		_ = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.TxStore) error {
			f, err := tx.LockPendingFlow(ctx, pendingID, 7)
			s.Require().NoError(err)
			s.Equal(pendingID, f.ID)

			_, err = tx.LockPendingFlow(ctx, pendingID, 8)
			s.ErrorIs(err, sentinel.ErrNotFound)
			_, err = tx.LockPendingFlow(ctx, codeFlowID, 7)
			s.ErrorIs(err, sentinel.ErrNotFound)
			return nil
		})
	})

	s.Run("code flow stamps issue time", func() {
		f, ok := s.store.Flow(codeFlowID)
		s.Require().True(ok)
		s.Require().NotNil(f.CodeIssuedAt)
		s.Equal(s.now, *f.CodeIssuedAt)
	})

	s.Run("code is unusable once authorized", func() {
		err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.TxStore) error {
			f, err := tx.LockFlowByCode(ctx, code, s.client.ID)
			s.Require().NoError(err)
			return tx.StoreTokens(ctx, models.TokenUpdate{
				FlowID:               f.ID,
				AccessToken:          "BF/A/x/y",
				AccessTokenExpiresAt: s.now.Add(time.Hour),
			}, s.now)
		})
		s.Require().NoError(err)

		_ = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.TxStore) error {
			_, err := tx.LockFlowByCode(ctx, code, s.client.ID)
			s.ErrorIs(err, sentinel.ErrNotFound)
			return nil
		})
	})

	s.Run("code is bound to its client", func() {
		other := "BF/C/other"
		_, err := s.store.CreateFlow(s.ctx, s.newFlow(&other), s.now)
		s.Require().NoError(err)
		_ = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.TxStore) error {
			_, err := tx.LockFlowByCode(ctx, other, s.client.ID+1)
			s.ErrorIs(err, sentinel.ErrNotFound)
			return nil
		})
	})
}

func (s *InMemoryStoreSuite) TestFindAccessToken() {
	flowID, err := s.store.CreateFlow(s.ctx, s.newFlow(nil), s.now)
	s.Require().NoError(err)
	refresh := "BF/R/x/y"
	err = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.TxStore) error {
		grantID, err := tx.UpsertGrant(ctx, s.client.ID, 7, []string{"openid", "email"}, s.now)
		if err != nil {
			return err
		}
		if err := tx.IssueCode(ctx, flowID, grantID, "BF/C/z", s.now); err != nil {
			return err
		}
		return tx.StoreTokens(ctx, models.TokenUpdate{
			FlowID:               flowID,
			AccessToken:          "BF/A/x/y",
			RefreshToken:         &refresh,
			AccessTokenExpiresAt: s.now.Add(time.Hour),
		}, s.now)
	})
	s.Require().NoError(err)

	s.Run("valid token", func() {
		info, err := s.store.FindAccessToken(s.ctx, "BF/A/x/y", s.now.Add(time.Minute))
		s.Require().NoError(err)
		s.Equal(int64(7), info.UserID)
		s.Equal(s.client.ID, info.ClientID)
		s.Equal([]string{"openid", "email"}, info.Scopes)
	})

	s.Run("expired token", func() {
		_, err := s.store.FindAccessToken(s.ctx, "BF/A/x/y", s.now.Add(time.Hour))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("refresh token lookup checks client", func() {
		_ = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.TxStore) error {
			_, err := tx.LockFlowByRefreshToken(ctx, flowID, refresh, s.client.ID)
			s.NoError(err)
			_, err = tx.LockFlowByRefreshToken(ctx, flowID, refresh, s.client.ID+1)
			s.ErrorIs(err, sentinel.ErrNotFound)
			_, err = tx.LockFlowByRefreshToken(ctx, flowID, "BF/R/x/other", s.client.ID)
			s.ErrorIs(err, sentinel.ErrNotFound)
			return nil
		})
	})
}

func (s *InMemoryStoreSuite) newFlow(code *string) models.NewFlow {
	return models.NewFlow{
		ClientID:    s.client.ID,
		UserID:      7,
		RedirectURI: "https://app/cb",
		Scopes:      []string{"openid", "email"},
		Code:        code,
	}
}
