package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"grapevpn/keyhub/internal/model"
	"grapevpn/keyhub/internal/repository"
)

const broadcastPrefix = "Message from admin:\n\n"

// BroadcastResult counts deliveries of one broadcast.
type BroadcastResult struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

type AdminService interface {
	IsAdmin(adminID int64) bool
	// GrantToken issues a token to any account, bypassing the daily limit.
	GrantToken(ctx context.Context, accountID int64) (*IssueResult, error)
	MarkPaid(ctx context.Context, accountID int64, paid bool) error
	Accounts(ctx context.Context) ([]model.Account, error)
	Tokens(ctx context.Context) ([]model.Token, error)
	ExportCSV(ctx context.Context, w io.Writer) error
	Broadcast(ctx context.Context, text string) (*BroadcastResult, error)
}

type adminService struct {
	store    repository.CredentialStore
	tokens   TokenService
	notifier Notifier
	admins   []int64
	opts     options
}

func NewAdminService(
	store repository.CredentialStore,
	tokens TokenService,
	notifier Notifier,
	admins []int64,
	opts ...Option,
) AdminService {
	return &adminService{
		store:    store,
		tokens:   tokens,
		notifier: notifier,
		admins:   admins,
		opts:     buildOptions(opts),
	}
}

func (s *adminService) IsAdmin(adminID int64) bool {
	return slices.Contains(s.admins, adminID)
}

func (s *adminService) GrantToken(ctx context.Context, accountID int64) (*IssueResult, error) {
	res, err := s.tokens.Grant(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.opts.logger.Info("token granted by admin", zap.Int64("user_id", accountID))
	return res, nil
}

func (s *adminService) MarkPaid(ctx context.Context, accountID int64, paid bool) error {
	err := s.store.SetPaid(ctx, accountID, paid)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("set paid: %w", err)
	}
	return nil
}

func (s *adminService) Accounts(ctx context.Context) ([]model.Account, error) {
	accounts, err := s.store.ListAllAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (s *adminService) Tokens(ctx context.Context) ([]model.Token, error) {
	tokens, err := s.store.ListAllTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// ExportCSV writes all accounts, a blank row, then all tokens.
func (s *adminService) ExportCSV(ctx context.Context, w io.Writer) error {
	accounts, err := s.Accounts(ctx)
	if err != nil {
		return err
	}
	tokens, err := s.Tokens(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	rows := make([][]string, 0, len(accounts)+len(tokens)+3)
	rows = append(rows, []string{"user_id", "ref_by", "refs_count", "joined_at", "paid"})
	for _, a := range accounts {
		refBy := ""
		if a.RefBy != nil {
			refBy = strconv.FormatInt(*a.RefBy, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(a.ID, 10),
			refBy,
			strconv.Itoa(a.RefsCount),
			a.JoinedAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(a.Paid),
		})
	}
	rows = append(rows, []string{})
	rows = append(rows, []string{"token", "user_id", "created_at", "expires_at", "used"})
	for _, t := range tokens {
		rows = append(rows, []string{
			t.Token,
			strconv.FormatInt(t.AccountID, 10),
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.ExpiresAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(t.Used),
		})
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Broadcast sends text to every account. Individual delivery failures are
// counted, not returned.
func (s *adminService) Broadcast(ctx context.Context, text string) (*BroadcastResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	accounts, err := s.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	res := &BroadcastResult{}
	for _, a := range accounts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.notifier.Notify(ctx, a.ID, broadcastPrefix+text); err != nil {
			res.Failed++
			s.opts.logger.Warn("broadcast delivery failed", zap.Int64("user_id", a.ID), zap.Error(err))
			continue
		}
		res.Delivered++
	}
	s.opts.logger.Info("broadcast finished",
		zap.Int("delivered", res.Delivered),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
