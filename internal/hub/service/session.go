package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/domain"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/mail"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/metrics"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/store"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/idx"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/jwtx"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/slogx"
)

var (
	ErrMissingEmail = errors.New("email is required")
	ErrInvalidCode  = errors.New("code is invalid, expired or already used")
	ErrNoUser       = errors.New("no active identity for email")
)

// SessionService owns the passwordless login flow: issuing one-time
// codes, redeeming them for session tokens, and introspecting sessions.
type SessionService struct {
	Store   store.Store
	Mailer  mail.Mailer
	Signer  *jwtx.HS256Signer
	Verify  jwtx.Verifier
	Metrics metrics.Recorder

	Issuer      string
	CodeTTL     time.Duration // validity window for emailed codes
	SessionTTL  time.Duration // validity window for minted sessions
	DefaultRole string        // role given to lazily-created identities
}

// SessionUser is the identity snapshot embedded in login responses.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

// NormalizeEmail trims and lower-cases an address. Every store lookup
// and token claim uses the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RequestCode upserts the identity for email, issues a fresh six-digit
// code valid for CodeTTL, and mails it out. Defaults (role, active) are
// applied on identity insert only; repeat requests never touch them.
func (s *SessionService) RequestCode(ctx context.Context, email string) error {
	log := slogx.FromContext(ctx)

	email = NormalizeEmail(email)
	if email == "" {
		return ErrMissingEmail
	}

	code, err := randomCode()
	if err != nil {
		log.Error("failed to draw login code", slog.Any("error", err))
		return err
	}

	now := time.Now().UTC()
	record := domain.OneTimeCode{
		ID:        idx.New().String(),
		Email:     email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.CodeTTL),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Identities().UpsertIdentity(ctx, domain.Identity{
			ID:        idx.New().String(),
			Email:     email,
			Role:      s.DefaultRole,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("upsert identity: %w", err)
		}

		if err := tx.Codes().CreateCode(ctx, record); err != nil {
			return fmt.Errorf("create code: %w", err)
		}

		return nil
	})
	if err != nil {
		log.Error("failed to persist login code", slog.Any("error", err))
		return err
	}

	// Mail goes out after the commit; a delivery failure surfaces as a
	// plain error and the caller re-requests a code. No retry queue.
	if err := s.Mailer.SendLoginCode(ctx, email, code, s.CodeTTL); err != nil {
		log.Error("failed to send login code", slog.Any("error", err))
		return err
	}

	s.Metrics.RecordCodeIssued()
	log.Info("login code issued",
		slog.String("code_id", record.ID),
		slog.Time("expires_at", record.ExpiresAt),
	)

	return nil
}

// Redeem exchanges a one-time code for a signed session token. The code
// match-and-mark is atomic in the store, so a code redeems at most once
// even under concurrent attempts. An inactive or missing identity fails
// AFTER the code is consumed; the code does not become reusable.
func (s *SessionService) Redeem(
	ctx context.Context,
	email, code string,
) (string, SessionUser, error) {
	log := slogx.FromContext(ctx)

	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return "", SessionUser{}, ErrMissingEmail
	}

	now := time.Now().UTC()

	consumed, err := s.Store.Codes().ConsumeCode(ctx, email, code, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.RecordLogin(metrics.LoginOutcomeInvalidCode)
			log.Warn("login attempted with invalid code")
			return "", SessionUser{}, ErrInvalidCode
		}
		s.Metrics.RecordLogin(metrics.LoginOutcomeError)
		log.Error("failed to consume code", slog.Any("error", err))
		return "", SessionUser{}, err
	}

	ident, err := s.Store.Identities().GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.RecordLogin(metrics.LoginOutcomeNoUser)
			log.Warn("login code consumed but identity missing")
			return "", SessionUser{}, ErrNoUser
		}
		s.Metrics.RecordLogin(metrics.LoginOutcomeError)
		log.Error("failed to fetch identity", slog.Any("error", err))
		return "", SessionUser{}, err
	}
	if !ident.Active {
		s.Metrics.RecordLogin(metrics.LoginOutcomeNoUser)
		log.Warn("login attempted for inactive identity", slog.String("identity_id", ident.ID))
		return "", SessionUser{}, ErrNoUser
	}

	if err := s.Store.Identities().TouchLastLogin(ctx, ident.ID, now); err != nil {
		// Last-login is advisory; do not fail a valid login over it.
		log.Warn("failed to record last login", slog.Any("error", err))
	}

	name := ident.Name
	if name == "" {
		name = DeriveDisplayName(email)
	}

	claims := jwtx.NewSessionClaims(ident.ID, email, ident.Role, name, s.SessionTTL, s.Issuer, now)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		s.Metrics.RecordLogin(metrics.LoginOutcomeError)
		log.Error("failed to sign session token", slog.Any("error", err))
		return "", SessionUser{}, err
	}

	s.Metrics.RecordLogin(metrics.LoginOutcomeSuccess)
	log.Info("session minted",
		slog.String("identity_id", ident.ID),
		slog.String("code_id", consumed.ID),
	)

	return token, SessionUser{
		ID:    ident.ID,
		Email: email,
		Role:  ident.Role,
		Name:  name,
	}, nil
}

// Introspect verifies a session token. Callers map every error variant
// to the same unauthenticated response; the variants stay distinct here
// so tests can assert on them.
func (s *SessionService) Introspect(token string) (jwtx.Claims, error) {
	return s.Verify.Verify(token)
}

// DeriveDisplayName title-cases the email local-part: "jane.doe@x.com"
// becomes "Jane Doe".
func DeriveDisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")

	parts := strings.Split(local, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, strings.ToUpper(p[:1])+p[1:])
	}

	return strings.Join(out, " ")
}

// randomCode draws a uniform six-digit code from [100000, 999999].
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
