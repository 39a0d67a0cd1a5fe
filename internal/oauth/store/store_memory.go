package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"idp/internal/oauth/models"
	"idp/internal/oauth/service"
	"idp/pkg/platform/sentinel"
	scopes "idp/pkg/platform/strings"
)

// InMemory is a process-local store for development and tests. RunInTx
// holds a single mutex for the whole transaction, so transactions are
// serialized, and restores a snapshot when fn fails.
type InMemory struct {
	mu sync.Mutex

	clients    map[int64]*models.Client
	clientKeys map[string]int64
	grants     map[int64]*models.Grant
	flows      map[int64]*models.Flow

	nextClientID int64
	nextGrantID  int64
	nextFlowID   int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		clients:    make(map[int64]*models.Client),
		clientKeys: make(map[string]int64),
		grants:     make(map[int64]*models.Grant),
		flows:      make(map[int64]*models.Flow),
	}
}

func (s *InMemory) CreateClient(_ context.Context, c *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clientKeys[c.ClientID]; exists {
		return fmt.Errorf("create client: %w", sentinel.ErrConflict)
	}
	s.nextClientID++
	c.ID = s.nextClientID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	stored := *c
	s.clients[c.ID] = &stored
	s.clientKeys[c.ClientID] = c.ID
	return nil
}

func (s *InMemory) FindClientByClientID(_ context.Context, clientID string) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.clientKeys[clientID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *s.clients[id]
	return &c, nil
}

func (s *InMemory) FindGrant(_ context.Context, clientID, userID int64) (*models.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g := s.grantFor(clientID, userID); g != nil {
		copied := *g
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) CreateFlow(_ context.Context, flow models.NewFlow, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFlowID++
	f := &models.Flow{
		ID:                  s.nextFlowID,
		ClientID:            flow.ClientID,
		GrantID:             flow.GrantID,
		UserID:              flow.UserID,
		RedirectURI:         flow.RedirectURI,
		Scopes:              flow.Scopes,
		State:               flow.State,
		Nonce:               flow.Nonce,
		CodeChallenge:       flow.CodeChallenge,
		CodeChallengeMethod: flow.CodeChallengeMethod,
		Code:                flow.Code,
		CreatedAt:           now,
	}
	if flow.Code != nil {
		issued := now
		f.CodeIssuedAt = &issued
	}
	s.flows[f.ID] = f
	return f.ID, nil
}

func (s *InMemory) FindAccessToken(_ context.Context, accessToken string, now time.Time) (*models.AccessTokenInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.flows {
		if f.AccessToken == nil || *f.AccessToken != accessToken {
			continue
		}
		if f.GrantID == nil || f.AccessTokenExpiresAt == nil || !f.AccessTokenExpiresAt.After(now) {
			return nil, sentinel.ErrNotFound
		}
		g, ok := s.grants[*f.GrantID]
		if !ok {
			return nil, sentinel.ErrNotFound
		}
		return &models.AccessTokenInfo{
			UserID:   g.UserID,
			GrantID:  g.ID,
			ClientID: f.ClientID,
			Scopes:   f.Scopes,
		}, nil
	}
	return nil, sentinel.ErrNotFound
}

// Flow returns a copy of a flow for inspection in tests.
func (s *InMemory) Flow(id int64) (*models.Flow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[id]
	if !ok {
		return nil, false
	}
	copied := *f
	return &copied, true
}

// SetFlowCreatedAt backdates a flow; tests use it to age pending flows.
func (s *InMemory) SetFlowCreatedAt(id int64, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flows[id]; ok {
		f.CreatedAt = createdAt
	}
}

func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context, store service.TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	grants      map[int64]models.Grant
	flows       map[int64]models.Flow
	nextGrantID int64
}

func (s *InMemory) snapshot() memSnapshot {
	snap := memSnapshot{
		grants:      make(map[int64]models.Grant, len(s.grants)),
		flows:       make(map[int64]models.Flow, len(s.flows)),
		nextGrantID: s.nextGrantID,
	}
	for id, g := range s.grants {
		snap.grants[id] = *g
	}
	for id, f := range s.flows {
		snap.flows[id] = *f
	}
	return snap
}

func (s *InMemory) restore(snap memSnapshot) {
	s.grants = make(map[int64]*models.Grant, len(snap.grants))
	for id, g := range snap.grants {
		s.grants[id] = &g
	}
	s.flows = make(map[int64]*models.Flow, len(snap.flows))
	for id, f := range snap.flows {
		s.flows[id] = &f
	}
	s.nextGrantID = snap.nextGrantID
}

func (s *InMemory) grantFor(clientID, userID int64) *models.Grant {
	for _, g := range s.grants {
		if g.ClientID == clientID && g.UserID == userID {
			return g
		}
	}
	return nil
}

// memTx runs with InMemory.mu held.
type memTx struct {
	s *InMemory
}

func (t *memTx) LockPendingFlow(_ context.Context, flowID, userID int64) (*models.Flow, error) {
	f, ok := t.s.flows[flowID]
	if !ok || f.UserID != userID || f.Code != nil {
		return nil, sentinel.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (t *memTx) LockFlowByCode(_ context.Context, code string, clientID int64) (*models.Flow, error) {
	for _, f := range t.s.flows {
		if f.Code != nil && *f.Code == code && f.ClientID == clientID && f.AuthorizedAt == nil {
			copied := *f
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (t *memTx) LockFlowByRefreshToken(_ context.Context, flowID int64, refreshToken string, clientID int64) (*models.Flow, error) {
	f, ok := t.s.flows[flowID]
	if !ok || f.RefreshToken == nil || *f.RefreshToken != refreshToken || f.ClientID != clientID {
		return nil, sentinel.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (t *memTx) UpsertGrant(_ context.Context, clientID, userID int64, granted []string, now time.Time) (int64, error) {
	if g := t.s.grantFor(clientID, userID); g != nil {
		g.Scopes = scopes.Union(g.Scopes, granted)
		return g.ID, nil
	}
	t.s.nextGrantID++
	g := &models.Grant{
		ID:        t.s.nextGrantID,
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    append([]string(nil), granted...),
		CreatedAt: now,
	}
	t.s.grants[g.ID] = g
	return g.ID, nil
}

func (t *memTx) IssueCode(_ context.Context, flowID, grantID int64, code string, now time.Time) error {
	f, ok := t.s.flows[flowID]
	if !ok {
		return fmt.Errorf("issue code: %w", sentinel.ErrNotFound)
	}
	issued := now
	f.Code = &code
	f.CodeIssuedAt = &issued
	f.GrantID = &grantID
	return nil
}

func (t *memTx) StoreTokens(_ context.Context, update models.TokenUpdate, now time.Time) error {
	f, ok := t.s.flows[update.FlowID]
	if !ok {
		return fmt.Errorf("store tokens: %w", sentinel.ErrNotFound)
	}
	authorized := now
	expires := update.AccessTokenExpiresAt
	access := update.AccessToken
	f.AccessToken = &access
	f.RefreshToken = update.RefreshToken
	f.AccessTokenExpiresAt = &expires
	f.AuthorizedAt = &authorized
	return nil
}

var (
	_ service.Store   = (*InMemory)(nil)
	_ service.StoreTx = (*InMemory)(nil)
	_ service.TxStore = (*memTx)(nil)
)
