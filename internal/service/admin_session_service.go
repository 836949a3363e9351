package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"grapevpn/keyhub/internal/model"
	"grapevpn/keyhub/internal/repository"
)

// CancelCommand aborts a pending admin session when submitted as input.
const CancelCommand = "/cancel"

// SubmitResult is the outcome of one admin input.
type SubmitResult struct {
	Action    model.AdminAction `json:"action"`
	Cancelled bool              `json:"cancelled"`
	Token     *IssueResult      `json:"token,omitempty"`
	Broadcast *BroadcastResult  `json:"broadcast,omitempty"`
}

// AdminSessionService drives the per-admin input state machine:
// Begin moves Idle to AwaitingInput, Submit and Cancel return to Idle.
// An expired session counts as Idle.
type AdminSessionService interface {
	Begin(ctx context.Context, adminID int64, action model.AdminAction) (*model.AdminSession, error)
	Submit(ctx context.Context, adminID int64, input string) (*SubmitResult, error)
	Cancel(ctx context.Context, adminID int64) error
	Current(ctx context.Context, adminID int64) (*model.AdminSession, error)
}

type adminSessionService struct {
	sessions repository.AdminSessionStore
	admin    AdminService
	timeout  time.Duration
	opts     options
}

func NewAdminSessionService(
	sessions repository.AdminSessionStore,
	admin AdminService,
	timeout time.Duration,
	opts ...Option,
) AdminSessionService {
	return &adminSessionService{
		sessions: sessions,
		admin:    admin,
		timeout:  timeout,
		opts:     buildOptions(opts),
	}
}

func (s *adminSessionService) Begin(ctx context.Context, adminID int64, action model.AdminAction) (*model.AdminSession, error) {
	if !s.admin.IsAdmin(adminID) {
		return nil, ErrNotAdmin
	}
	switch action {
	case model.AdminActionGiveToken, model.AdminActionBroadcast:
	default:
		return nil, ErrUnknownAction
	}

	now := s.opts.clock()
	session := &model.AdminSession{
		ID:        uuid.New().String(),
		AdminID:   adminID,
		State:     model.AdminSessionAwaitingInput,
		Action:    action,
		StartedAt: now,
		ExpiresAt: now.Add(s.timeout),
	}
	if err := s.sessions.Save(ctx, session, s.timeout); err != nil {
		return nil, fmt.Errorf("save admin session: %w", err)
	}
	return session, nil
}

// Current returns the awaiting session or nil when the admin is idle.
func (s *adminSessionService) Current(ctx context.Context, adminID int64) (*model.AdminSession, error) {
	if !s.admin.IsAdmin(adminID) {
		return nil, ErrNotAdmin
	}
	session, err := s.sessions.Load(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("load admin session: %w", err)
	}
	if !session.Awaiting(s.opts.clock()) {
		return nil, nil
	}
	return session, nil
}

// Submit takes the session out of the store before acting on it, so two
// concurrent submits cannot both perform the action. A failed action puts
// the session back for another attempt.
func (s *adminSessionService) Submit(ctx context.Context, adminID int64, input string) (*SubmitResult, error) {
	if !s.admin.IsAdmin(adminID) {
		return nil, ErrNotAdmin
	}
	session, err := s.sessions.Take(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("take admin session: %w", err)
	}
	now := s.opts.clock()
	if !session.Awaiting(now) {
		return nil, ErrNoActiveSession
	}

	input = strings.TrimSpace(input)
	if input == CancelCommand {
		return &SubmitResult{Action: session.Action, Cancelled: true}, nil
	}

	res, err := s.perform(ctx, session.Action, input)
	if err != nil {
		if err := s.sessions.Save(ctx, session, session.ExpiresAt.Sub(now)); err != nil {
			return nil, fmt.Errorf("restore admin session: %w", err)
		}
		return nil, err
	}
	return res, nil
}

func (s *adminSessionService) perform(ctx context.Context, action model.AdminAction, input string) (*SubmitResult, error) {
	res := &SubmitResult{Action: action}
	var err error
	switch action {
	case model.AdminActionGiveToken:
		accountID, perr := strconv.ParseInt(input, 10, 64)
		if perr != nil || accountID <= 0 {
			return nil, ErrInvalidAccountID
		}
		res.Token, err = s.admin.GrantToken(ctx, accountID)
	case model.AdminActionBroadcast:
		res.Broadcast, err = s.admin.Broadcast(ctx, input)
	default:
		err = ErrUnknownAction
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *adminSessionService) Cancel(ctx context.Context, adminID int64) error {
	if !s.admin.IsAdmin(adminID) {
		return ErrNotAdmin
	}
	if err := s.sessions.Clear(ctx, adminID); err != nil {
		return fmt.Errorf("clear admin session: %w", err)
	}
	return nil
}
