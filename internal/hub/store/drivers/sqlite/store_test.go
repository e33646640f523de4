package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/domain"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/store"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func newIdentity(email string) domain.Identity {
	now := time.Now().UTC()
	return domain.Identity{
		ID:        idx.New().String(),
		Email:     email,
		Role:      "admin",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newCode(email, code string, ttl time.Duration) domain.OneTimeCode {
	now := time.Now().UTC()
	return domain.OneTimeCode{
		ID:        idx.New().String(),
		Email:     email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestUpsertIdentityDefaultsOnInsertOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Identities().UpsertIdentity(ctx, newIdentity("jane.doe@example.com"))
	require.NoError(t, err)
	require.Equal(t, "admin", first.Role)
	require.True(t, first.Active)

	// A second upsert with different defaults must not overwrite the
	// stored role or active flag.
	clashing := newIdentity("jane.doe@example.com")
	clashing.Role = "viewer"
	clashing.Active = false

	second, err := s.Identities().UpsertIdentity(ctx, clashing)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "existing identity must be kept")
	require.Equal(t, "admin", second.Role)
	require.True(t, second.Active)
}

func TestTouchLastLogin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ident, err := s.Identities().UpsertIdentity(ctx, newIdentity("ops@example.com"))
	require.NoError(t, err)
	require.Nil(t, ident.LastLoginAt)

	at := time.Now().UTC()
	require.NoError(t, s.Identities().TouchLastLogin(ctx, ident.ID, at))

	stored, err := s.Identities().GetIdentityByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	require.WithinDuration(t, at, *stored.LastLoginAt, time.Second)
}

func TestGetIdentityByEmailNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Identities().GetIdentityByEmail(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConsumeCodeSingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code := newCode("jane.doe@example.com", "123456", 10*time.Minute)
	require.NoError(t, s.Codes().CreateCode(ctx, code))

	consumed, err := s.Codes().ConsumeCode(ctx, code.Email, code.Code, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, code.ID, consumed.ID)
	require.NotNil(t, consumed.UsedAt)

	// Same code again: the used_at guard must refuse the match.
	_, err = s.Codes().ConsumeCode(ctx, code.Email, code.Code, time.Now().UTC())
	require.ErrorIs(t, err, store.ErrNotFound)

	// The record itself is retained for audit.
	stored, err := s.Codes().GetCodeByID(ctx, code.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.UsedAt)
}

func TestConsumeCodeRejectsExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code := newCode("jane.doe@example.com", "654321", -time.Minute)
	require.NoError(t, s.Codes().CreateCode(ctx, code))

	_, err := s.Codes().ConsumeCode(ctx, code.Email, code.Code, time.Now().UTC())
	require.ErrorIs(t, err, store.ErrNotFound)

	// Expired-but-unused stays unused; expiry alone is terminal.
	stored, err := s.Codes().GetCodeByID(ctx, code.ID)
	require.NoError(t, err)
	require.Nil(t, stored.UsedAt)
}

func TestConsumeCodeIsExactMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Codes().CreateCode(ctx, newCode("a@example.com", "111111", 10*time.Minute)))

	// Wrong code and wrong email must not match.
	_, err := s.Codes().ConsumeCode(ctx, "a@example.com", "222222", time.Now().UTC())
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Codes().ConsumeCode(ctx, "b@example.com", "111111", time.Now().UTC())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConsumeCodeConcurrentRedeemers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code := newCode("race@example.com", "999999", 10*time.Minute)
	require.NoError(t, s.Codes().CreateCode(ctx, code))

	const redeemers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for range redeemers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Codes().ConsumeCode(ctx, code.Email, code.Code, time.Now().UTC()); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins, "exactly one concurrent redemption may win")
}

func TestNewerCodesDoNotInvalidateOlderOnes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := newCode("multi@example.com", "100001", 10*time.Minute)
	newer := newCode("multi@example.com", "100002", 10*time.Minute)
	require.NoError(t, s.Codes().CreateCode(ctx, older))
	require.NoError(t, s.Codes().CreateCode(ctx, newer))

	count, err := s.Codes().CountCodesForEmail(ctx, "multi@example.com")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Each code is independently redeemable within its own window.
	_, err = s.Codes().ConsumeCode(ctx, "multi@example.com", "100001", time.Now().UTC())
	require.NoError(t, err)
	_, err = s.Codes().ConsumeCode(ctx, "multi@example.com", "100002", time.Now().UTC())
	require.NoError(t, err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sentinel := store.ErrAlreadyExists
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Codes().CreateCode(ctx, newCode("tx@example.com", "123123", time.Minute)); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	count, err := s.Codes().CountCodesForEmail(ctx, "tx@example.com")
	require.NoError(t, err)
	require.Zero(t, count, "rolled-back insert must not be visible")
}
