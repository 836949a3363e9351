package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grapevpn/keyhub/internal/config"
	"grapevpn/keyhub/internal/keygen"
	"grapevpn/keyhub/internal/model"
	"grapevpn/keyhub/internal/repository"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeKeys struct {
	source model.KeySource
	n      atomic.Int64
}

func (k *fakeKeys) Generate(context.Context) keygen.Keypair {
	i := k.n.Add(1)
	source := k.source
	if source == "" {
		source = model.KeySourceTrustedTool
	}
	return keygen.Keypair{
		PrivateKey: fmt.Sprintf("priv-%d", i),
		PublicKey:  fmt.Sprintf("pub-%d", i),
		Source:     source,
	}
}

// failingStore fails InsertToken while fail is set, inside transactions too.
type failingStore struct {
	repository.CredentialStore
	fail *atomic.Bool
}

func (s *failingStore) InsertToken(ctx context.Context, t *model.Token) error {
	if s.fail.Load() {
		return errBoom
	}
	return s.CredentialStore.InsertToken(ctx, t)
}

func (s *failingStore) Transaction(ctx context.Context, fn func(tx repository.CredentialStore) error) error {
	return s.CredentialStore.Transaction(ctx, func(tx repository.CredentialStore) error {
		return fn(&failingStore{CredentialStore: tx, fail: s.fail})
	})
}

type env struct {
	store     repository.CredentialStore
	clock     *fakeClock
	keys      *fakeKeys
	tokens    TokenService
	referrals ReferralService
	members   MemberService
}

type envConfig struct {
	dailyLimit int
	reward     int
	store      repository.CredentialStore
}

func testProfile(t *testing.T) ClientProfile {
	t.Helper()
	p, err := NewClientProfile(config.WireGuardConfig{
		HostPublicIP:    "vpn.test",
		ListenPort:      51820,
		ServerPublicKey: "server-pub",
		DNS:             "1.1.1.1",
		AddressBase:     "10.66.66.0",
	})
	require.NoError(t, err)
	return p
}

func newEnv(t *testing.T, cfg envConfig) *env {
	t.Helper()
	store := cfg.store
	if store == nil {
		store = repository.NewMemoryCredentialStore()
	}
	clock := newFakeClock()
	keys := &fakeKeys{}
	opts := []Option{WithClock(clock.Now)}

	tokens := NewTokenService(store, keys, testProfile(t), 16, 24*time.Hour, cfg.dailyLimit, opts...)
	referrals := NewReferralService(store, keys, tokens, cfg.reward, opts...)
	return &env{
		store:     store,
		clock:     clock,
		keys:      keys,
		tokens:    tokens,
		referrals: referrals,
		members:   NewMemberService(store, tokens, referrals, opts...),
	}
}

func ptr(v int64) *int64 { return &v }
