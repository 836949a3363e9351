package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwtpkg "grapevpn/keyhub/pkg/jwt"
)

func newRedeemer(t *testing.T, e *env) (RedemptionService, string) {
	t.Helper()
	manager := jwtpkg.NewManager("secret", "vpn_bot")
	bearer, err := manager.Issue()
	require.NoError(t, err)
	return NewRedemptionService(e.store, manager, WithClock(e.clock.Now)), bearer
}

func TestRedeem_Success(t *testing.T) {
	e := newEnv(t, envConfig{dailyLimit: 1})
	ctx := context.Background()
	redeemer, bearer := newRedeemer(t, e)

	issued, err := e.tokens.IssueToken(ctx, 7)
	require.NoError(t, err)

	got, err := redeemer.Redeem(ctx, bearer, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.AccountID)
	assert.Equal(t, "priv-1", got.PrivateKey)
	assert.Equal(t, "pub-1", got.PublicKey)
	assert.Equal(t, issued.ExpiresAt, got.ExpiresAt)

	_, err = redeemer.Redeem(ctx, bearer, issued.Token)
	require.ErrorIs(t, err, ErrTokenAlreadyUsed)
	assert.Equal(t, ReasonAlreadyUsed, FailureReason(err))
}

func TestRedeem_BadBearerLeavesTokenUnused(t *testing.T) {
	e := newEnv(t, envConfig{dailyLimit: 1})
	ctx := context.Background()
	redeemer, bearer := newRedeemer(t, e)

	issued, err := e.tokens.IssueToken(ctx, 7)
	require.NoError(t, err)

	forged, err := jwtpkg.NewManager("other", "vpn_bot").Issue()
	require.NoError(t, err)

	for _, b := range []string{"", "garbage", forged} {
		_, err = redeemer.Redeem(ctx, b, issued.Token)
		require.ErrorIs(t, err, ErrBadBearer)
		assert.Equal(t, ReasonBadBearer, FailureReason(err))
	}

	_, err = redeemer.Redeem(ctx, bearer, issued.Token)
	require.NoError(t, err)
}

func TestRedeem_NotFound(t *testing.T) {
	e := newEnv(t, envConfig{dailyLimit: 1})
	redeemer, bearer := newRedeemer(t, e)

	_, err := redeemer.Redeem(context.Background(), bearer, "nope")
	require.ErrorIs(t, err, ErrTokenNotFound)
	assert.Equal(t, ReasonNotFound, FailureReason(err))
}

func TestRedeem_Expired(t *testing.T) {
	e := newEnv(t, envConfig{dailyLimit: 1})
	ctx := context.Background()
	redeemer, bearer := newRedeemer(t, e)

	issued, err := e.tokens.IssueToken(ctx, 7)
	require.NoError(t, err)

	e.clock.Advance(24 * time.Hour)
	_, err = redeemer.Redeem(ctx, bearer, issued.Token)
	require.NoError(t, err, "expiry boundary is inclusive")

	issued, err = e.tokens.IssueToken(ctx, 8)
	require.NoError(t, err)
	e.clock.Advance(24*time.Hour + time.Second)
	_, err = redeemer.Redeem(ctx, bearer, issued.Token)
	require.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, ReasonExpired, FailureReason(err))
}

func TestRedeem_ConcurrentOneWinner(t *testing.T) {
	e := newEnv(t, envConfig{dailyLimit: 1})
	ctx := context.Background()
	redeemer, bearer := newRedeemer(t, e)

	issued, err := e.tokens.IssueToken(ctx, 7)
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		wins   atomic.Int32
		losers atomic.Int32
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := redeemer.Redeem(ctx, bearer, issued.Token)
			if err == nil {
				wins.Add(1)
				return
			}
			if FailureReason(err) == ReasonAlreadyUsed {
				losers.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(63), losers.Load())
}

func TestFailureReason_Unrelated(t *testing.T) {
	assert.Empty(t, FailureReason(nil))
	assert.Empty(t, FailureReason(errBoom))
	assert.Empty(t, FailureReason(&RateLimitError{Limit: 1}))
}
