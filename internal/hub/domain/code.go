package domain

import "time"

// OneTimeCode is a short-lived numeric login credential emailed to a
// user. Codes are retained after use for audit; old codes for the same
// address are superseded by newer ones and simply age out.
type OneTimeCode struct {
	ID    string
	Email string
	Code  string

	CreatedAt time.Time
	ExpiresAt time.Time

	// UsedAt is set exactly once, by the first successful redemption.
	UsedAt *time.Time
}

// Redeemable reports whether the code can still be exchanged for a
// session at the given instant.
func (c OneTimeCode) Redeemable(now time.Time) bool {
	return c.UsedAt == nil && now.Before(c.ExpiresAt)
}
