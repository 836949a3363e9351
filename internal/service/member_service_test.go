package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMember_ReferralScenario(t *testing.T) {
	e := newEnv(t, envConfig{dailyLimit: 1, reward: 1})
	ctx := context.Background()

	created, err := e.members.Register(ctx, 42, nil)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = e.members.Register(ctx, 100, ParseReferralPayload("ref42", 100))
	require.NoError(t, err)
	assert.True(t, created)

	// Registration already credits the referrer.
	tokens, err := e.members.Tokens(ctx, 42)
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	// First issuance re-runs the idempotent check.
	_, err = e.members.RequestToken(ctx, 100)
	require.NoError(t, err)

	created, err = e.members.Register(ctx, 100, ptr(42))
	require.NoError(t, err)
	assert.False(t, created)

	tokens, err = e.members.Tokens(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	stats, err := e.members.ReferralStats(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RefsCount)
	assert.Equal(t, 1, stats.Reward)
	assert.Equal(t, "ref42", stats.Payload)
}

func TestMember_CreditCompletesOnFirstIssuance(t *testing.T) {
	e := newEnv(t, envConfig{dailyLimit: 1, reward: 1})
	ctx := context.Background()

	// Referrer is unknown at registration time, so nothing is credited.
	_, err := e.members.Register(ctx, 100, ptr(42))
	require.NoError(t, err)
	_, err = e.members.Register(ctx, 42, nil)
	require.NoError(t, err)

	edge, err := e.store.GetReferralEdge(ctx, 100)
	require.NoError(t, err)
	assert.False(t, edge.Credited)

	_, err = e.members.RequestToken(ctx, 100)
	require.NoError(t, err)

	edge, err = e.store.GetReferralEdge(ctx, 100)
	require.NoError(t, err)
	assert.True(t, edge.Credited)
}

func TestMember_RequestTokenRateLimited(t *testing.T) {
	e := newEnv(t, envConfig{dailyLimit: 1})
	ctx := context.Background()

	_, err := e.members.Register(ctx, 1, nil)
	require.NoError(t, err)
	_, err = e.members.RequestToken(ctx, 1)
	require.NoError(t, err)
	_, err = e.members.RequestToken(ctx, 1)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestMember_ReferralStatsUnknownAccount(t *testing.T) {
	e := newEnv(t, envConfig{})

	_, err := e.members.ReferralStats(context.Background(), 1)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestParseReferralPayload(t *testing.T) {
	tests := []struct {
		payload string
		self    int64
		want    *int64
	}{
		{"ref123", 1, ptr(123)},
		{" ref123 ", 1, ptr(123)},
		{"ref123", 123, nil},
		{"ref", 1, nil},
		{"refabc", 1, nil},
		{"ref-5", 1, nil},
		{"123", 1, nil},
		{"", 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseReferralPayload(tt.payload, tt.self))
		})
	}
}
