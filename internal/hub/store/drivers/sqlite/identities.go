package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/domain"
)

type identitiesRepo struct {
	q querier
}

const identityColumns = `id, email, name, role, active, created_at, updated_at, last_login_at`

func (r *identitiesRepo) GetIdentityByEmail(
	ctx context.Context,
	email string,
) (domain.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = ?`, email)

	ident, err := scanIdentity(row)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return ident, nil
}

func (r *identitiesRepo) UpsertIdentity(
	ctx context.Context,
	ident domain.Identity,
) (domain.Identity, error) {
	// ON CONFLICT only bumps updated_at: role, name and active are set
	// on insert and never overwritten by a later code request. RETURNING
	// hands back the row that actually exists after the statement, so
	// the caller sees the stored identity either way.
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO identities (id, email, name, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET updated_at = excluded.updated_at
		RETURNING `+identityColumns,
		ident.ID,
		ident.Email,
		ident.Name,
		ident.Role,
		ident.Active,
		ident.CreatedAt.UTC(),
		ident.UpdatedAt.UTC(),
	)

	stored, err := scanIdentity(row)
	if err != nil {
		return domain.Identity{}, err
	}
	return stored, nil
}

func (r *identitiesRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE identities SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), at.UTC(), id)
	return err
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (domain.Identity, error) {
	var (
		ident     domain.Identity
		lastLogin sql.NullTime
	)

	err := row.Scan(
		&ident.ID,
		&ident.Email,
		&ident.Name,
		&ident.Role,
		&ident.Active,
		&ident.CreatedAt,
		&ident.UpdatedAt,
		&lastLogin,
	)
	if err != nil {
		return domain.Identity{}, err
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		ident.LastLoginAt = &t
	}

	return ident, nil
}
