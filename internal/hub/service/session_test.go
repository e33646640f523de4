package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/domain"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/metrics"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/store"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/store/drivers/sqlite"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/idx"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// captureMailer records outgoing codes instead of talking SMTP.
type captureMailer struct {
	mu    sync.Mutex
	codes map[string][]string // to -> codes in send order
	fail  error
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{codes: make(map[string][]string)}
}

func (m *captureMailer) SendLoginCode(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.codes[to] = append(m.codes[to], code)
	return nil
}

func (m *captureMailer) lastCode(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sent := m.codes[to]
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1]
}

const testSecret = "test-secret-test-secret-test-sec"

func newTestService(t *testing.T) (*SessionService, *captureMailer, store.Store) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mailer := newCaptureMailer()
	svc := &SessionService{
		Store:       st,
		Mailer:      mailer,
		Signer:      &jwtx.HS256Signer{Secret: []byte(testSecret)},
		Verify:      &jwtx.HS256Verifier{Secret: []byte(testSecret), Issuer: "aihub-test"},
		Metrics:     metrics.Nop{},
		Issuer:      "aihub-test",
		CodeTTL:     10 * time.Minute,
		SessionTTL:  7 * 24 * time.Hour,
		DefaultRole: "admin",
	}

	return svc, mailer, st
}

func TestRequestCodeTwiceCreatesOneIdentityTwoCodes(t *testing.T) {
	svc, mailer, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "Jane.Doe@Example.com "))
	require.NoError(t, svc.RequestCode(ctx, "jane.doe@example.com"))

	ident, err := st.Identities().GetIdentityByEmail(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	require.Equal(t, "admin", ident.Role)
	require.True(t, ident.Active)

	count, err := st.Codes().CountCodesForEmail(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Both codes are independently redeemable within their windows.
	sent := mailer.codes["jane.doe@example.com"]
	require.Len(t, sent, 2)
	for _, code := range sent {
		_, _, err := svc.Redeem(ctx, "jane.doe@example.com", code)
		require.NoError(t, err)
	}
}

func TestRequestCodeRejectsEmptyEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.RequestCode(context.Background(), "   ")
	require.ErrorIs(t, err, ErrMissingEmail)
}

func TestRequestCodePropagatesMailFailure(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	mailer.fail = errors.New("smtp: connection refused")

	err := svc.RequestCode(context.Background(), "jane.doe@example.com")
	require.Error(t, err)
}

func TestRedeemMintsVerifiableSession(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "jane.doe@example.com"))
	code := mailer.lastCode("jane.doe@example.com")
	require.Len(t, code, 6)

	token, user, err := svc.Redeem(ctx, "JANE.DOE@example.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "jane.doe@example.com", user.Email)
	require.Equal(t, "admin", user.Role)
	require.Equal(t, "Jane Doe", user.Name, "name derives from the email local-part")

	claims, err := svc.Introspect(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, user.Email, claims.Email)
	require.Equal(t, user.Role, claims.Role)
}

func TestRedeemIsSingleUse(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "jane.doe@example.com"))
	code := mailer.lastCode("jane.doe@example.com")

	_, _, err := svc.Redeem(ctx, "jane.doe@example.com", code)
	require.NoError(t, err)

	_, _, err = svc.Redeem(ctx, "jane.doe@example.com", code)
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestRedeemRejectsExpiredCode(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	expired := domain.OneTimeCode{
		ID:        idx.New().String(),
		Email:     "jane.doe@example.com",
		Code:      "123456",
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(-50 * time.Minute),
	}
	require.NoError(t, st.Codes().CreateCode(ctx, expired))

	_, _, err := svc.Redeem(ctx, "jane.doe@example.com", "123456")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestRedeemInactiveIdentityConsumesCode(t *testing.T) {
	svc, mailer, st := newTestService(t)
	ctx := context.Background()

	// Provisioned out-of-band as inactive; the later code request must
	// not flip it back to active.
	now := time.Now().UTC()
	_, err := st.Identities().UpsertIdentity(ctx, domain.Identity{
		ID:        idx.New().String(),
		Email:     "blocked@example.com",
		Role:      "admin",
		Active:    false,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RequestCode(ctx, "blocked@example.com"))
	code := mailer.lastCode("blocked@example.com")

	_, _, err = svc.Redeem(ctx, "blocked@example.com", code)
	require.ErrorIs(t, err, ErrNoUser)

	// The failed login must not un-consume the code.
	_, _, err = svc.Redeem(ctx, "blocked@example.com", code)
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestRedeemMissingParams(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Redeem(ctx, "", "123456")
	require.ErrorIs(t, err, ErrMissingEmail)

	_, _, err = svc.Redeem(ctx, "jane.doe@example.com", "  ")
	require.ErrorIs(t, err, ErrMissingEmail)
}

func TestDeriveDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email string
		want  string
	}{
		{"jane.doe@x.com", "Jane Doe"},
		{"jane@x.com", "Jane"},
		{"j.r.r.tolkien@x.com", "J R R Tolkien"},
		{"jane..doe@x.com", "Jane Doe"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, DeriveDisplayName(tt.email), "email %q", tt.email)
	}
}

func TestRandomCodeStaysInRange(t *testing.T) {
	t.Parallel()

	for range 200 {
		code, err := randomCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}
}
