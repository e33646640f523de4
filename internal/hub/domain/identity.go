package domain

import "time"

// Identity is the persisted user record, keyed by normalized email.
// Identities are created lazily the first time a login code is requested
// for an address; role and active are only ever changed out-of-band.
type Identity struct {
	ID    string
	Email string

	// Name is the stored display name. Empty means "derive from the
	// email local-part at login time".
	Name string

	Role   string
	Active bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}
