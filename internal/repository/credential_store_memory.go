package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"grapevpn/keyhub/internal/model"
)

// memState holds the in-memory tables. Its methods assume the caller holds
// the owning store's lock.
type memState struct {
	accounts  map[int64]model.Account
	referrals map[int64]model.ReferralEdge
	tokens    map[string]model.Token
}

func newMemState() *memState {
	return &memState{
		accounts:  make(map[int64]model.Account),
		referrals: make(map[int64]model.ReferralEdge),
		tokens:    make(map[string]model.Token),
	}
}

func (m *memState) clone() *memState {
	c := newMemState()
	for k, v := range m.accounts {
		if v.RefBy != nil {
			ref := *v.RefBy
			v.RefBy = &ref
		}
		c.accounts[k] = v
	}
	for k, v := range m.referrals {
		c.referrals[k] = v
	}
	for k, v := range m.tokens {
		c.tokens[k] = v
	}
	return c
}

func (m *memState) RegisterAccount(_ context.Context, id int64, referrer *int64) (bool, error) {
	if _, ok := m.accounts[id]; ok {
		return false, nil
	}
	now := time.Now().UTC()

	var refBy *int64
	if referrer != nil && *referrer != id {
		ref := *referrer
		refBy = &ref
	}
	m.accounts[id] = model.Account{ID: id, RefBy: refBy, JoinedAt: now}

	if refBy != nil {
		if _, ok := m.referrals[id]; !ok {
			m.referrals[id] = model.ReferralEdge{NewUser: id, RefBy: *refBy, CreatedAt: now}
		}
	}
	return true, nil
}

func (m *memState) GetAccount(_ context.Context, id int64) (*model.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (m *memState) SetPaid(_ context.Context, id int64, paid bool) error {
	account, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.Paid = paid
	m.accounts[id] = account
	return nil
}

func (m *memState) CountTokensIssuedSince(_ context.Context, accountID int64, since time.Time) (int, error) {
	n := 0
	for _, t := range m.tokens {
		if t.AccountID == accountID && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memState) LockAccountTokens(context.Context, int64) error {
	return nil
}

func (m *memState) InsertToken(_ context.Context, token *model.Token) error {
	if _, ok := m.tokens[token.Token]; ok {
		return ErrTokenCollision
	}
	m.tokens[token.Token] = *token
	return nil
}

func (m *memState) MarkTokenConsumed(_ context.Context, token string, now time.Time) (ConsumeResult, error) {
	t, ok := m.tokens[token]
	if !ok {
		return ConsumeResult{}, nil
	}

	result := ConsumeResult{Found: true}
	if t.Redeemable(now) {
		t.Used = true
		m.tokens[token] = t
	} else {
		result.AlreadyConsumed = t.Used
		result.Expired = !t.Used
	}
	result.Token = &t
	return result, nil
}

func (m *memState) GetReferralEdge(_ context.Context, newAccountID int64) (*model.ReferralEdge, error) {
	edge, ok := m.referrals[newAccountID]
	if !ok {
		return nil, ErrNotFound
	}
	return &edge, nil
}

func (m *memState) LockReferralEdge(ctx context.Context, newAccountID int64) (*model.ReferralEdge, error) {
	return m.GetReferralEdge(ctx, newAccountID)
}

func (m *memState) MarkReferralCredited(_ context.Context, newAccountID int64) error {
	edge, ok := m.referrals[newAccountID]
	if !ok {
		return ErrNotFound
	}
	edge.Credited = true
	m.referrals[newAccountID] = edge
	return nil
}

func (m *memState) IncrementReferralCount(_ context.Context, referrerID int64) error {
	account, ok := m.accounts[referrerID]
	if !ok {
		return ErrNotFound
	}
	account.RefsCount++
	m.accounts[referrerID] = account
	return nil
}

func (m *memState) ListTokensForAccount(_ context.Context, accountID int64) ([]model.Token, error) {
	var tokens []model.Token
	for _, t := range m.tokens {
		if t.AccountID == accountID {
			tokens = append(tokens, t)
		}
	}
	sortTokens(tokens)
	return tokens, nil
}

func (m *memState) ListAllAccounts(context.Context) ([]model.Account, error) {
	accounts := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].JoinedAt.Equal(accounts[j].JoinedAt) {
			return accounts[i].ID > accounts[j].ID
		}
		return accounts[i].JoinedAt.After(accounts[j].JoinedAt)
	})
	return accounts, nil
}

func (m *memState) ListAllTokens(context.Context) ([]model.Token, error) {
	tokens := make([]model.Token, 0, len(m.tokens))
	for _, t := range m.tokens {
		tokens = append(tokens, t)
	}
	sortTokens(tokens)
	return tokens, nil
}

// sortTokens orders newest first, ties broken by token string for stable output.
func sortTokens(tokens []model.Token) {
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].CreatedAt.Equal(tokens[j].CreatedAt) {
			return tokens[i].Token < tokens[j].Token
		}
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})
}

// memTx is the view handed to Transaction callbacks. The store lock is
// already held, so it calls memState directly.
type memTx struct {
	*memState
}

func (t memTx) Transaction(ctx context.Context, fn func(tx CredentialStore) error) error {
	snapshot := t.clone()
	if err := fn(t); err != nil {
		*t.memState = *snapshot
		return err
	}
	return nil
}

type memoryCredentialStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryCredentialStore returns a process-local store for development
// and tests. All operations are serialized by one mutex.
func NewMemoryCredentialStore() CredentialStore {
	return &memoryCredentialStore{state: newMemState()}
}

func (s *memoryCredentialStore) RegisterAccount(ctx context.Context, id int64, referrer *int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RegisterAccount(ctx, id, referrer)
}

func (s *memoryCredentialStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetAccount(ctx, id)
}

func (s *memoryCredentialStore) SetPaid(ctx context.Context, id int64, paid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SetPaid(ctx, id, paid)
}

func (s *memoryCredentialStore) CountTokensIssuedSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CountTokensIssuedSince(ctx, accountID, since)
}

func (s *memoryCredentialStore) LockAccountTokens(context.Context, int64) error {
	return nil
}

func (s *memoryCredentialStore) InsertToken(ctx context.Context, token *model.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.InsertToken(ctx, token)
}

func (s *memoryCredentialStore) MarkTokenConsumed(ctx context.Context, token string, now time.Time) (ConsumeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.MarkTokenConsumed(ctx, token, now)
}

func (s *memoryCredentialStore) GetReferralEdge(ctx context.Context, newAccountID int64) (*model.ReferralEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetReferralEdge(ctx, newAccountID)
}

func (s *memoryCredentialStore) LockReferralEdge(ctx context.Context, newAccountID int64) (*model.ReferralEdge, error) {
	return s.GetReferralEdge(ctx, newAccountID)
}

func (s *memoryCredentialStore) MarkReferralCredited(ctx context.Context, newAccountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.MarkReferralCredited(ctx, newAccountID)
}

func (s *memoryCredentialStore) IncrementReferralCount(ctx context.Context, referrerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IncrementReferralCount(ctx, referrerID)
}

func (s *memoryCredentialStore) ListTokensForAccount(ctx context.Context, accountID int64) ([]model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListTokensForAccount(ctx, accountID)
}

func (s *memoryCredentialStore) ListAllAccounts(ctx context.Context) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListAllAccounts(ctx)
}

func (s *memoryCredentialStore) ListAllTokens(ctx context.Context) ([]model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListAllTokens(ctx)
}

func (s *memoryCredentialStore) Transaction(ctx context.Context, fn func(tx CredentialStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s.state}.Transaction(ctx, fn)
}

var (
	_ CredentialStore = (*memoryCredentialStore)(nil)
	_ CredentialStore = memTx{}
)
