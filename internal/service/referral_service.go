package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"grapevpn/keyhub/internal/keygen"
	"grapevpn/keyhub/internal/model"
	"grapevpn/keyhub/internal/repository"
)

type ReferralService interface {
	// CreditIfEligible rewards the referrer of newAccountID at most once.
	// referrerID is set whenever an edge exists, credited or not.
	CreditIfEligible(ctx context.Context, newAccountID int64) (credited bool, referrerID *int64, err error)
	Reward() int
}

type referralService struct {
	store  repository.CredentialStore
	keys   KeyGenerator
	tokens TokenService
	reward int
	opts   options
}

func NewReferralService(
	store repository.CredentialStore,
	keys KeyGenerator,
	tokens TokenService,
	reward int,
	opts ...Option,
) ReferralService {
	return &referralService{
		store:  store,
		keys:   keys,
		tokens: tokens,
		reward: reward,
		opts:   buildOptions(opts),
	}
}

func (s *referralService) Reward() int {
	return s.reward
}

func (s *referralService) CreditIfEligible(ctx context.Context, newAccountID int64) (bool, *int64, error) {
	edge, err := s.store.GetReferralEdge(ctx, newAccountID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("get referral edge: %w", err)
	}
	referrer := edge.RefBy
	if edge.Credited {
		return false, &referrer, nil
	}
	if _, err := s.store.GetAccount(ctx, referrer); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, &referrer, nil
		}
		return false, &referrer, fmt.Errorf("get referrer: %w", err)
	}

	// Keys are generated before the transaction; the tool may be slow and
	// row locks must not wait on it.
	keys := make([]keygen.Keypair, s.reward)
	for i := range keys {
		keys[i] = s.keys.Generate(ctx)
	}

	var rewarded []model.Token
	credited := false
	err = s.store.Transaction(ctx, func(tx repository.CredentialStore) error {
		edge, err := tx.LockReferralEdge(ctx, newAccountID)
		if err != nil {
			return fmt.Errorf("lock referral edge: %w", err)
		}
		if edge.Credited {
			return nil
		}
		if err := tx.IncrementReferralCount(ctx, referrer); err != nil {
			return fmt.Errorf("increment referral count: %w", err)
		}
		rewarded, err = s.tokens.IssueReward(ctx, tx, referrer, keys)
		if err != nil {
			return fmt.Errorf("issue reward: %w", err)
		}
		if err := tx.MarkReferralCredited(ctx, newAccountID); err != nil {
			return fmt.Errorf("mark referral credited: %w", err)
		}
		credited = true
		return nil
	})
	if err != nil {
		return false, &referrer, err
	}
	if !credited {
		return false, &referrer, nil
	}

	s.opts.metrics.ReferralCredited()
	for _, t := range rewarded {
		s.opts.metrics.TokenIssued(t.Origin, t.KeySource)
	}
	s.opts.logger.Info("referral credited",
		zap.Int64("new_user", newAccountID),
		zap.Int64("ref_by", referrer),
		zap.Int("reward", len(rewarded)),
	)
	return true, &referrer, nil
}
