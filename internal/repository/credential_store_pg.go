package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grapevpn/keyhub/internal/model"
)

type pgCredentialStore struct {
	db *gorm.DB
}

func NewPGCredentialStore(db *gorm.DB) CredentialStore {
	return &pgCredentialStore{db: db}
}

func (s *pgCredentialStore) RegisterAccount(ctx context.Context, id int64, referrer *int64) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if referrer != nil && *referrer == id {
			referrer = nil
		}

		account := &model.Account{ID: id, RefBy: referrer, JoinedAt: now}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(account)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		if referrer == nil {
			return nil
		}
		edge := &model.ReferralEdge{NewUser: id, RefBy: *referrer, CreatedAt: now}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edge).Error
	})
	if err != nil {
		return false, fmt.Errorf("register account %d: %w", id, err)
	}
	return created, nil
}

func (s *pgCredentialStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	var account model.Account
	if err := s.db.WithContext(ctx).First(&account, "user_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (s *pgCredentialStore) SetPaid(ctx context.Context, id int64, paid bool) error {
	res := s.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ?", id).
		UpdateColumn("paid", paid)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgCredentialStore) CountTokensIssuedSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.Token{}).
		Where("user_id = ? AND created_at >= ?", accountID, since).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *pgCredentialStore) LockAccountTokens(ctx context.Context, accountID int64) error {
	return s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", accountID).Error
}

func (s *pgCredentialStore) InsertToken(ctx context.Context, token *model.Token) error {
	err := s.db.WithContext(ctx).Create(token).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrTokenCollision
	}
	return err
}

func (s *pgCredentialStore) MarkTokenConsumed(ctx context.Context, token string, now time.Time) (ConsumeResult, error) {
	var result ConsumeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Token
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ?", token).
			First(&t).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		result.Found = true
		result.Token = &t
		if !t.Redeemable(now) {
			result.AlreadyConsumed = t.Used
			result.Expired = !t.Used
			return nil
		}

		if err := tx.Model(&model.Token{}).
			Where("token = ?", token).
			UpdateColumn("used", true).Error; err != nil {
			return err
		}
		t.Used = true
		return nil
	})
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("consume token: %w", err)
	}
	return result, nil
}

func (s *pgCredentialStore) GetReferralEdge(ctx context.Context, newAccountID int64) (*model.ReferralEdge, error) {
	var edge model.ReferralEdge
	if err := s.db.WithContext(ctx).First(&edge, "new_user = ?", newAccountID).Error; err != nil {
		return nil, translate(err)
	}
	return &edge, nil
}

func (s *pgCredentialStore) LockReferralEdge(ctx context.Context, newAccountID int64) (*model.ReferralEdge, error) {
	var edge model.ReferralEdge
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&edge, "new_user = ?", newAccountID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &edge, nil
}

func (s *pgCredentialStore) MarkReferralCredited(ctx context.Context, newAccountID int64) error {
	res := s.db.WithContext(ctx).
		Model(&model.ReferralEdge{}).
		Where("new_user = ?", newAccountID).
		UpdateColumn("credited", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgCredentialStore) IncrementReferralCount(ctx context.Context, referrerID int64) error {
	res := s.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ?", referrerID).
		UpdateColumn("refs_count", gorm.Expr("refs_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgCredentialStore) ListTokensForAccount(ctx context.Context, accountID int64) ([]model.Token, error) {
	var tokens []model.Token
	err := s.db.WithContext(ctx).
		Where("user_id = ?", accountID).
		Order("created_at DESC").
		Find(&tokens).Error
	return tokens, err
}

func (s *pgCredentialStore) ListAllAccounts(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	err := s.db.WithContext(ctx).Order("joined_at DESC").Find(&accounts).Error
	return accounts, err
}

func (s *pgCredentialStore) ListAllTokens(ctx context.Context) ([]model.Token, error) {
	var tokens []model.Token
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&tokens).Error
	return tokens, err
}

func (s *pgCredentialStore) Transaction(ctx context.Context, fn func(tx CredentialStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgCredentialStore{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

var _ CredentialStore = (*pgCredentialStore)(nil)
