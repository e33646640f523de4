package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/domain"
)

type codesRepo struct {
	q querier
}

const codeColumns = `id, email, code, created_at, expires_at, used_at`

func (r *codesRepo) CreateCode(ctx context.Context, code domain.OneTimeCode) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO one_time_codes (id, email, code, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		code.ID,
		code.Email,
		code.Code,
		code.CreatedAt.UTC(),
		code.ExpiresAt.UTC(),
	)
	return err
}

func (r *codesRepo) ConsumeCode(
	ctx context.Context,
	email, code string,
	now time.Time,
) (domain.OneTimeCode, error) {
	// Single match-and-mark statement: of two concurrent redemptions of
	// the same code, exactly one can observe used_at IS NULL and set it.
	// The loser matches nothing and gets ErrNotFound.
	row := r.q.QueryRowContext(ctx, `
		UPDATE one_time_codes
		SET used_at = ?
		WHERE email = ? AND code = ? AND used_at IS NULL AND expires_at > ?
		RETURNING `+codeColumns,
		now.UTC(), email, code, now.UTC())

	consumed, err := scanCode(row)
	if err != nil {
		return domain.OneTimeCode{}, mapNotFound(err)
	}
	return consumed, nil
}

func (r *codesRepo) GetCodeByID(ctx context.Context, id string) (domain.OneTimeCode, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes WHERE id = ?`, id)

	code, err := scanCode(row)
	if err != nil {
		return domain.OneTimeCode{}, mapNotFound(err)
	}
	return code, nil
}

func (r *codesRepo) CountCodesForEmail(ctx context.Context, email string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM one_time_codes WHERE email = ?`, email).Scan(&count)
	return count, err
}

func scanCode(row rowScanner) (domain.OneTimeCode, error) {
	var (
		code   domain.OneTimeCode
		usedAt sql.NullTime
	)

	err := row.Scan(
		&code.ID,
		&code.Email,
		&code.Code,
		&code.CreatedAt,
		&code.ExpiresAt,
		&usedAt,
	)
	if err != nil {
		return domain.OneTimeCode{}, err
	}

	if usedAt.Valid {
		t := usedAt.Time
		code.UsedAt = &t
	}

	return code, nil
}
