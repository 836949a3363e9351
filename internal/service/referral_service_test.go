package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grapevpn/keyhub/internal/model"
	"grapevpn/keyhub/internal/repository"
)

func TestCreditIfEligible_Scenario(t *testing.T) {
	e := newEnv(t, envConfig{dailyLimit: 1, reward: 2})
	ctx := context.Background()

	_, err := e.store.RegisterAccount(ctx, 42, nil)
	require.NoError(t, err)
	_, err = e.store.RegisterAccount(ctx, 100, ptr(42))
	require.NoError(t, err)

	edge, err := e.store.GetReferralEdge(ctx, 100)
	require.NoError(t, err)
	assert.False(t, edge.Credited)

	credited, ref, err := e.referrals.CreditIfEligible(ctx, 100)
	require.NoError(t, err)
	assert.True(t, credited)
	require.NotNil(t, ref)
	assert.Equal(t, int64(42), *ref)

	tokens, err := e.store.ListTokensForAccount(ctx, 42)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	for _, tok := range tokens {
		assert.Equal(t, model.TokenOriginReferral, tok.Origin)
	}

	account, err := e.store.GetAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, account.RefsCount)

	for i := 0; i < 3; i++ {
		credited, ref, err = e.referrals.CreditIfEligible(ctx, 100)
		require.NoError(t, err)
		assert.False(t, credited)
		assert.Equal(t, int64(42), *ref)
	}
	tokens, err = e.store.ListTokensForAccount(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestCreditIfEligible_NoEdge(t *testing.T) {
	e := newEnv(t, envConfig{reward: 1})
	ctx := context.Background()

	_, err := e.store.RegisterAccount(ctx, 5, nil)
	require.NoError(t, err)

	credited, ref, err := e.referrals.CreditIfEligible(ctx, 5)
	require.NoError(t, err)
	assert.False(t, credited)
	assert.Nil(t, ref)
}

func TestCreditIfEligible_ReferrerMissing(t *testing.T) {
	e := newEnv(t, envConfig{reward: 1})
	ctx := context.Background()

	_, err := e.store.RegisterAccount(ctx, 100, ptr(999))
	require.NoError(t, err)

	credited, ref, err := e.referrals.CreditIfEligible(ctx, 100)
	require.NoError(t, err)
	assert.False(t, credited)
	assert.Equal(t, int64(999), *ref)

	edge, err := e.store.GetReferralEdge(ctx, 100)
	require.NoError(t, err)
	assert.False(t, edge.Credited)
}

func TestCreditIfEligible_SelfReferralIgnored(t *testing.T) {
	e := newEnv(t, envConfig{reward: 1})
	ctx := context.Background()

	_, err := e.store.RegisterAccount(ctx, 100, ptr(100))
	require.NoError(t, err)

	credited, ref, err := e.referrals.CreditIfEligible(ctx, 100)
	require.NoError(t, err)
	assert.False(t, credited)
	assert.Nil(t, ref)
}

func TestCreditIfEligible_FailureRollsBack(t *testing.T) {
	fail := &atomic.Bool{}
	store := &failingStore{CredentialStore: repository.NewMemoryCredentialStore(), fail: fail}
	e := newEnv(t, envConfig{reward: 2, store: store})
	ctx := context.Background()

	_, err := store.RegisterAccount(ctx, 42, nil)
	require.NoError(t, err)
	_, err = store.RegisterAccount(ctx, 100, ptr(42))
	require.NoError(t, err)

	fail.Store(true)
	credited, _, err := e.referrals.CreditIfEligible(ctx, 100)
	require.ErrorIs(t, err, errBoom)
	assert.False(t, credited)

	edge, err := store.GetReferralEdge(ctx, 100)
	require.NoError(t, err)
	assert.False(t, edge.Credited)
	account, err := store.GetAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, account.RefsCount)

	fail.Store(false)
	credited, _, err = e.referrals.CreditIfEligible(ctx, 100)
	require.NoError(t, err)
	assert.True(t, credited)

	tokens, err := store.ListTokensForAccount(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestCreditIfEligible_Concurrent(t *testing.T) {
	e := newEnv(t, envConfig{reward: 1})
	ctx := context.Background()

	_, err := e.store.RegisterAccount(ctx, 42, nil)
	require.NoError(t, err)
	_, err = e.store.RegisterAccount(ctx, 100, ptr(42))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			credited, _, err := e.referrals.CreditIfEligible(ctx, 100)
			assert.NoError(t, err)
			if credited {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	tokens, err := e.store.ListTokensForAccount(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestCreditIfEligible_RewardBypassesReferrerLimit(t *testing.T) {
	e := newEnv(t, envConfig{dailyLimit: 1, reward: 3})
	ctx := context.Background()

	_, err := e.store.RegisterAccount(ctx, 42, nil)
	require.NoError(t, err)
	_, err = e.tokens.IssueToken(ctx, 42)
	require.NoError(t, err)
	_, err = e.store.RegisterAccount(ctx, 100, ptr(42))
	require.NoError(t, err)

	credited, _, err := e.referrals.CreditIfEligible(ctx, 100)
	require.NoError(t, err)
	assert.True(t, credited)

	tokens, err := e.store.ListTokensForAccount(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, tokens, 4)
}

func TestCreditIfEligible_CreditedEdgeSkipsKeygen(t *testing.T) {
	e := newEnv(t, envConfig{reward: 2})
	ctx := context.Background()

	_, err := e.store.RegisterAccount(ctx, 42, nil)
	require.NoError(t, err)
	_, err = e.store.RegisterAccount(ctx, 100, ptr(42))
	require.NoError(t, err)

	_, _, err = e.referrals.CreditIfEligible(ctx, 100)
	require.NoError(t, err)
	generated := e.keys.n.Load()
	require.Equal(t, int64(2), generated)

	for i := 0; i < 5; i++ {
		credited, _, err := e.referrals.CreditIfEligible(ctx, 100)
		require.NoError(t, err)
		assert.False(t, credited)
	}
	assert.Equal(t, generated, e.keys.n.Load())
}
