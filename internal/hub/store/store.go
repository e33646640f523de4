package store

import (
	"context"
	"errors"
	"time"

	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for
// now) implement this. Sub-repositories keep concerns tidy and testable.
type Store interface {
	Identities() Identities
	Codes() Codes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error
	// the transaction is rolled back, otherwise it is committed. This is
	// the recommended way to run multi-step operations.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Identities interface {
	// GetIdentityByEmail returns the identity for a normalized email.
	GetIdentityByEmail(ctx context.Context, email string) (domain.Identity, error)

	// UpsertIdentity inserts an identity with the given defaults, or
	// returns the existing row untouched (bar updated_at) when the email
	// is already known. Defaults apply on insert ONLY: an existing
	// identity's role, name and active flag must never be overwritten.
	UpsertIdentity(ctx context.Context, ident domain.Identity) (domain.Identity, error)

	// TouchLastLogin records a successful session issuance.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type Codes interface {
	// CreateCode inserts a freshly issued one-time code.
	CreateCode(ctx context.Context, code domain.OneTimeCode) error

	// ConsumeCode atomically marks the matching unused, unexpired code
	// as used and returns it. The match-and-update is a single statement
	// so at most one of two concurrent redemptions can win; the loser
	// gets ErrNotFound. Expired or already-used codes never match.
	ConsumeCode(ctx context.Context, email, code string, now time.Time) (domain.OneTimeCode, error)

	// GetCodeByID returns a code record. Mainly for tests and audit.
	GetCodeByID(ctx context.Context, id string) (domain.OneTimeCode, error)

	// CountCodesForEmail returns how many codes were ever issued for an
	// address. Codes are retained for audit, never deleted.
	CountCodesForEmail(ctx context.Context, email string) (int, error)
}
