package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"grapevpn/keyhub/internal/model"
	"grapevpn/keyhub/internal/repository"
)

const referralPayloadPrefix = "ref"

// ReferralStats is the member-facing view of an account's referrals.
type ReferralStats struct {
	AccountID int64  `json:"user_id"`
	RefsCount int    `json:"refs_count"`
	Reward    int    `json:"reward"`
	Payload   string `json:"start_payload"`
}

type MemberService interface {
	// Register records the account and, on first registration, tries to
	// credit its referrer. Crediting failures are logged, not returned.
	Register(ctx context.Context, id int64, referrer *int64) (bool, error)
	RequestToken(ctx context.Context, id int64) (*IssueResult, error)
	Tokens(ctx context.Context, id int64) ([]model.Token, error)
	ReferralStats(ctx context.Context, id int64) (*ReferralStats, error)
}

type memberService struct {
	store     repository.CredentialStore
	tokens    TokenService
	referrals ReferralService
	opts      options
}

func NewMemberService(
	store repository.CredentialStore,
	tokens TokenService,
	referrals ReferralService,
	opts ...Option,
) MemberService {
	return &memberService{
		store:     store,
		tokens:    tokens,
		referrals: referrals,
		opts:      buildOptions(opts),
	}
}

func (s *memberService) Register(ctx context.Context, id int64, referrer *int64) (bool, error) {
	created, err := s.store.RegisterAccount(ctx, id, referrer)
	if err != nil {
		return false, fmt.Errorf("register account: %w", err)
	}
	if created {
		s.opts.logger.Info("account registered", zap.Int64("user_id", id))
		s.credit(ctx, id)
	}
	return created, nil
}

// RequestToken issues a token and then retries crediting, so a credit
// that failed at registration completes on first issuance.
func (s *memberService) RequestToken(ctx context.Context, id int64) (*IssueResult, error) {
	res, err := s.tokens.IssueToken(ctx, id)
	if err != nil {
		return nil, err
	}
	s.credit(ctx, id)
	return res, nil
}

func (s *memberService) credit(ctx context.Context, id int64) {
	if _, _, err := s.referrals.CreditIfEligible(ctx, id); err != nil {
		s.opts.logger.Error("referral credit failed", zap.Int64("new_user", id), zap.Error(err))
	}
}

func (s *memberService) Tokens(ctx context.Context, id int64) ([]model.Token, error) {
	return s.tokens.ListTokens(ctx, id)
}

func (s *memberService) ReferralStats(ctx context.Context, id int64) (*ReferralStats, error) {
	account, err := s.store.GetAccount(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &ReferralStats{
		AccountID: account.ID,
		RefsCount: account.RefsCount,
		Reward:    s.referrals.Reward(),
		Payload:   ReferralPayload(account.ID),
	}, nil
}

// ReferralPayload is the deep-link start payload that refers to id.
func ReferralPayload(id int64) string {
	return referralPayloadPrefix + strconv.FormatInt(id, 10)
}

// ParseReferralPayload extracts the referrer from a start payload such as
// "ref123". It returns nil for malformed payloads and self-referrals.
func ParseReferralPayload(payload string, self int64) *int64 {
	payload = strings.TrimSpace(payload)
	digits, ok := strings.CutPrefix(payload, referralPayloadPrefix)
	if !ok {
		return nil
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id <= 0 || id == self {
		return nil
	}
	return &id
}
