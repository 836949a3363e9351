package repository

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"grapevpn/keyhub/internal/model"
)

// Integration tests run only when KEYHUB_TEST_DATABASE_URL points at a
// disposable PostgreSQL database.

func mustOpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("KEYHUB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("KEYHUB_TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	require.NoError(t, model.AutoMigrate(db))
	require.NoError(t, db.Exec("TRUNCATE accounts, referrals, tokens").Error)
	return db
}

func TestPGStore_Integration_RegisterAndCredit(t *testing.T) {
	db := mustOpenTestDB(t)
	store := NewPGCredentialStore(db)
	ctx := context.Background()

	created, err := store.RegisterAccount(ctx, 42, nil)
	require.NoError(t, err)
	require.True(t, created)

	ref := int64(42)
	created, err = store.RegisterAccount(ctx, 100, &ref)
	require.NoError(t, err)
	require.True(t, created)

	other := int64(7)
	created, err = store.RegisterAccount(ctx, 100, &other)
	require.NoError(t, err)
	require.False(t, created)

	self := int64(5)
	_, err = store.RegisterAccount(ctx, 5, &self)
	require.NoError(t, err)
	account, err := store.GetAccount(ctx, 5)
	require.NoError(t, err)
	require.Nil(t, account.RefBy)

	err = store.Transaction(ctx, func(tx CredentialStore) error {
		edge, err := tx.LockReferralEdge(ctx, 100)
		if err != nil {
			return err
		}
		require.False(t, edge.Credited)
		if err := tx.IncrementReferralCount(ctx, edge.RefBy); err != nil {
			return err
		}
		return tx.MarkReferralCredited(ctx, 100)
	})
	require.NoError(t, err)

	account, err = store.GetAccount(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, 1, account.RefsCount)
}

func TestPGStore_Integration_ConcurrentConsume(t *testing.T) {
	db := mustOpenTestDB(t)
	store := NewPGCredentialStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.InsertToken(ctx, &model.Token{
		Token: "race", AccountID: 1, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		KeySource: model.KeySourceFallback, Origin: model.TokenOriginRequest,
	}))
	require.ErrorIs(t, store.InsertToken(ctx, &model.Token{
		Token: "race", AccountID: 2, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}), ErrTokenCollision)

	const callers = 16
	var wins, used atomic.Int32
	var wg sync.WaitGroup
	wg.Add(callers)
	for range callers {
		go func() {
			defer wg.Done()
			res, err := store.MarkTokenConsumed(ctx, "race", time.Now().UTC())
			if err != nil {
				return
			}
			if res.Consumed() {
				wins.Add(1)
			} else if res.AlreadyConsumed {
				used.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(callers-1), used.Load())
}
