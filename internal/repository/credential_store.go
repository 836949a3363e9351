package repository

import (
	"context"
	"errors"
	"time"

	"grapevpn/keyhub/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrTokenCollision means a generated token string already exists.
	// With 128 bits of entropy this points at a broken random source.
	ErrTokenCollision = errors.New("token string collision")
)

// ConsumeResult is the outcome of MarkTokenConsumed. Token is set whenever
// the row exists.
type ConsumeResult struct {
	Found           bool
	AlreadyConsumed bool
	Expired         bool
	Token           *model.Token
}

// Consumed reports whether this call flipped the token to used.
func (r ConsumeResult) Consumed() bool {
	return r.Found && !r.AlreadyConsumed && !r.Expired
}

// CredentialStore owns every persisted account, referral edge and token.
type CredentialStore interface {
	// RegisterAccount inserts the account if absent and, when referrer is
	// set and differs from id, its referral edge. It reports whether this
	// was the first registration.
	RegisterAccount(ctx context.Context, id int64, referrer *int64) (bool, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	SetPaid(ctx context.Context, id int64, paid bool) error

	CountTokensIssuedSince(ctx context.Context, accountID int64, since time.Time) (int, error)
	// LockAccountTokens serializes issuance for one account until the
	// enclosing transaction ends. Outside a transaction it is a no-op.
	LockAccountTokens(ctx context.Context, accountID int64) error
	InsertToken(ctx context.Context, token *model.Token) error
	// MarkTokenConsumed checks existence, consumed state and expiry and
	// flips the used flag as one atomic step.
	MarkTokenConsumed(ctx context.Context, token string, now time.Time) (ConsumeResult, error)

	GetReferralEdge(ctx context.Context, newAccountID int64) (*model.ReferralEdge, error)
	// LockReferralEdge reads the edge and holds a row lock on it until the
	// enclosing transaction ends.
	LockReferralEdge(ctx context.Context, newAccountID int64) (*model.ReferralEdge, error)
	MarkReferralCredited(ctx context.Context, newAccountID int64) error
	IncrementReferralCount(ctx context.Context, referrerID int64) error

	ListTokensForAccount(ctx context.Context, accountID int64) ([]model.Token, error)
	ListAllAccounts(ctx context.Context) ([]model.Account, error)
	ListAllTokens(ctx context.Context) ([]model.Token, error)

	// Transaction runs fn against a transactional view of the store. fn's
	// writes are committed when it returns nil and discarded otherwise.
	Transaction(ctx context.Context, fn func(tx CredentialStore) error) error
}
