package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"grapevpn/keyhub/internal/keygen"
	"grapevpn/keyhub/internal/model"
	"grapevpn/keyhub/internal/repository"
	"grapevpn/keyhub/pkg/crypto"
)

// RateWindow is the trailing window the daily limit is counted over.
const RateWindow = 24 * time.Hour

// IssueResult is a freshly minted token plus its client configuration.
type IssueResult struct {
	Token        string          `json:"token"`
	AccountID    int64           `json:"user_id"`
	ExpiresAt    time.Time       `json:"expires_at"`
	Address      string          `json:"address"`
	PublicKey    string          `json:"wg_public"`
	KeySource    model.KeySource `json:"key_source"`
	ClientConfig string          `json:"wg_config"`
}

type TokenService interface {
	// IssueToken mints a token for a member request, enforcing the daily limit.
	IssueToken(ctx context.Context, accountID int64) (*IssueResult, error)
	// Grant mints a token on an admin's behalf without the daily limit.
	Grant(ctx context.Context, accountID int64) (*IssueResult, error)
	// IssueReward mints one referral token per keypair on tx without the
	// daily limit. The caller owns the transaction.
	IssueReward(ctx context.Context, tx repository.CredentialStore, accountID int64, keys []keygen.Keypair) ([]model.Token, error)
	ListTokens(ctx context.Context, accountID int64) ([]model.Token, error)
}

// tokenMinter builds and stores token rows inside the caller's transaction.
type tokenMinter struct {
	bytes    int
	lifetime time.Duration
}

func (m tokenMinter) mint(ctx context.Context, store repository.CredentialStore, accountID int64, kp keygen.Keypair, origin model.TokenOrigin, now time.Time) (*model.Token, error) {
	value, err := crypto.GenerateToken(m.bytes)
	if err != nil {
		return nil, err
	}
	token := &model.Token{
		Token:     value,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.lifetime),
		WGPrivate: kp.PrivateKey,
		WGPublic:  kp.PublicKey,
		KeySource: kp.Source,
		Origin:    origin,
	}
	if err := store.InsertToken(ctx, token); err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	return token, nil
}

type tokenService struct {
	store      repository.CredentialStore
	keys       KeyGenerator
	profile    ClientProfile
	minter     tokenMinter
	dailyLimit int
	opts       options
}

func NewTokenService(
	store repository.CredentialStore,
	keys KeyGenerator,
	profile ClientProfile,
	tokenBytes int,
	lifetime time.Duration,
	dailyLimit int,
	opts ...Option,
) TokenService {
	return &tokenService{
		store:      store,
		keys:       keys,
		profile:    profile,
		minter:     tokenMinter{bytes: tokenBytes, lifetime: lifetime},
		dailyLimit: dailyLimit,
		opts:       buildOptions(opts),
	}
}

func (s *tokenService) IssueToken(ctx context.Context, accountID int64) (*IssueResult, error) {
	res, err := s.issue(ctx, accountID, model.TokenOriginRequest, true)
	if errors.Is(err, ErrRateLimited) {
		s.opts.metrics.RateLimited()
		s.opts.logger.Info("token request rate limited",
			zap.Int64("user_id", accountID),
			zap.Int("limit", s.dailyLimit),
		)
	}
	return res, err
}

func (s *tokenService) Grant(ctx context.Context, accountID int64) (*IssueResult, error) {
	return s.issue(ctx, accountID, model.TokenOriginAdmin, false)
}

// issue generates the keypair outside the transaction, then counts and
// inserts under the per-account lock so concurrent requests cannot both
// pass the limit. The unlocked pre-check only spares the keygen for
// requests that are already over the limit; the locked count decides.
func (s *tokenService) issue(ctx context.Context, accountID int64, origin model.TokenOrigin, limited bool) (*IssueResult, error) {
	if limited {
		n, err := s.store.CountTokensIssuedSince(ctx, accountID, s.opts.clock().Add(-RateWindow))
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}
		if n >= s.dailyLimit {
			return nil, &RateLimitError{Limit: s.dailyLimit}
		}
	}

	kp := s.keys.Generate(ctx)

	var (
		token *model.Token
		count int
	)
	err := s.store.Transaction(ctx, func(tx repository.CredentialStore) error {
		if err := tx.LockAccountTokens(ctx, accountID); err != nil {
			return fmt.Errorf("lock account tokens: %w", err)
		}
		now := s.opts.clock()
		n, err := tx.CountTokensIssuedSince(ctx, accountID, now.Add(-RateWindow))
		if err != nil {
			return fmt.Errorf("count tokens: %w", err)
		}
		if limited && n >= s.dailyLimit {
			return &RateLimitError{Limit: s.dailyLimit}
		}
		token, err = s.minter.mint(ctx, tx, accountID, kp, origin, now)
		if err != nil {
			return err
		}
		count = n + 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.metrics.TokenIssued(origin, kp.Source)
	s.opts.logger.Info("token issued",
		zap.Int64("user_id", accountID),
		zap.String("origin", string(origin)),
		zap.String("key_source", string(kp.Source)),
		zap.Time("expires_at", token.ExpiresAt),
	)
	return s.result(token, count)
}

func (s *tokenService) result(token *model.Token, count int) (*IssueResult, error) {
	addr := s.profile.Address(count)
	cfg, err := s.profile.Render(token.WGPrivate, addr)
	if err != nil {
		return nil, err
	}
	return &IssueResult{
		Token:        token.Token,
		AccountID:    token.AccountID,
		ExpiresAt:    token.ExpiresAt,
		Address:      addr.String(),
		PublicKey:    token.WGPublic,
		KeySource:    token.KeySource,
		ClientConfig: cfg,
	}, nil
}

func (s *tokenService) IssueReward(ctx context.Context, tx repository.CredentialStore, accountID int64, keys []keygen.Keypair) ([]model.Token, error) {
	now := s.opts.clock()
	tokens := make([]model.Token, 0, len(keys))
	for _, kp := range keys {
		t, err := s.minter.mint(ctx, tx, accountID, kp, model.TokenOriginReferral, now)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, nil
}

func (s *tokenService) ListTokens(ctx context.Context, accountID int64) ([]model.Token, error) {
	tokens, err := s.store.ListTokensForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}
