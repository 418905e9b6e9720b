package domain

import "time"

// Provider identifiers for remote directory adapters.
const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"
	ProviderGeneric   = "generic"
)

// Account represents a connected provider account. Authentication and
// session handling live outside the engine; the engine trusts a
// pre-validated account and uses its config to construct a directory
// adapter.
type Account struct {
	// ID is the unique identifier for the account.
	ID string

	// Provider selects the directory adapter family
	// (google, microsoft, generic).
	Provider string

	// Name is the human-readable account label.
	Name string

	// Config contains provider-specific configuration such as tokens,
	// page sizes or gateway endpoints.
	Config map[string]string

	// CreatedAt is when the account was connected.
	CreatedAt time.Time

	// UpdatedAt is when the account was last updated.
	UpdatedAt time.Time
}
