package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"grapevpn/keyhub/internal/repository"
)

// BearerVerifier checks the credential presented by the VPN server.
type BearerVerifier interface {
	Verify(token string) bool
}

// Redemption is what the VPN server receives for a consumed token.
type Redemption struct {
	AccountID  int64     `json:"user_id"`
	PrivateKey string    `json:"wg_private"`
	PublicKey  string    `json:"wg_public"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type RedemptionService interface {
	// Redeem consumes token exactly once. Failures are ErrBadBearer,
	// ErrTokenNotFound, ErrTokenAlreadyUsed or ErrTokenExpired, checked in
	// that order.
	Redeem(ctx context.Context, bearer, token string) (*Redemption, error)
}

type redemptionService struct {
	store    repository.CredentialStore
	verifier BearerVerifier
	opts     options
}

func NewRedemptionService(store repository.CredentialStore, verifier BearerVerifier, opts ...Option) RedemptionService {
	return &redemptionService{
		store:    store,
		verifier: verifier,
		opts:     buildOptions(opts),
	}
}

func (s *redemptionService) Redeem(ctx context.Context, bearer, token string) (*Redemption, error) {
	redemption, err := s.redeem(ctx, bearer, token)
	if reason := FailureReason(err); reason != "" {
		s.opts.metrics.Redemption(reason)
		s.opts.logger.Info("redemption rejected", zap.String("reason", reason))
	} else if err == nil {
		s.opts.metrics.Redemption("redeemed")
		s.opts.logger.Info("token redeemed", zap.Int64("user_id", redemption.AccountID))
	}
	return redemption, err
}

func (s *redemptionService) redeem(ctx context.Context, bearer, token string) (*Redemption, error) {
	if !s.verifier.Verify(bearer) {
		return nil, ErrBadBearer
	}
	res, err := s.store.MarkTokenConsumed(ctx, token, s.opts.clock())
	if err != nil {
		return nil, fmt.Errorf("consume token: %w", err)
	}
	switch {
	case !res.Found:
		return nil, ErrTokenNotFound
	case res.AlreadyConsumed:
		return nil, ErrTokenAlreadyUsed
	case res.Expired:
		return nil, ErrTokenExpired
	}
	return &Redemption{
		AccountID:  res.Token.AccountID,
		PrivateKey: res.Token.WGPrivate,
		PublicKey:  res.Token.WGPublic,
		ExpiresAt:  res.Token.ExpiresAt,
	}, nil
}
