package userstore

import "errors"

// Sentinel errors returned by IUserStore implementations. Callers match them
// with errors.Is to distinguish authentication failures from storage faults.
var (
	// ErrUserExists is returned by AddUser when the login is already taken
	ErrUserExists = errors.New("user already exists")

	// ErrAuthFailed is returned by LoginUser for an unknown login or a
	// password mismatch. The two cases are deliberately not distinguishable.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrUserUnknown is returned by access and maintenance operations
	// referencing a login that does not exist
	ErrUserUnknown = errors.New("user unknown")

	// ErrNotStarted is returned when an operation is invoked before Start
	ErrNotStarted = errors.New("user store is not started")
)

// IUserStore is the credential and access store of the hub. It authenticates
// logins, enforces registration and persists per-identity access flags.
//
// Lifecycle: Configure must be called exactly once before Start; Start
// creates the schema and seeds the owner account; Stop releases the
// underlying database. All other operations fail with ErrNotStarted while
// the store is not running.
//
// Implementations must be safe for concurrent use - handshakes for several
// connections run in parallel.
type IUserStore interface {
	// Configure sets the database location, the initial owner password and
	// the access flags granted to newly registered users
	Configure(path string, ownerBasePassword string, baseAccess map[string]bool) error

	// Start opens the database, creates the schema if needed and seeds the
	// owner account if absent
	Start() error

	// Stop closes the database. Stop is idempotent.
	Stop() error

	// AddUser creates a new account with the base access flags.
	// Fails with ErrUserExists if the login is taken.
	AddUser(login, password string) error

	// LoginUser verifies the credentials.
	// Fails with ErrAuthFailed if the login is unknown or the password
	// does not match.
	LoginUser(login, password string) error

	// DeleteUser removes an account. The owner account cannot be deleted.
	DeleteUser(login string) error

	// ChangePassword replaces the password of an existing account
	ChangePassword(login, newPassword string) error

	// GetAccess returns the access flags of an account
	GetAccess(login string) (map[string]bool, error)

	// ChangeAccess replaces the access flags of an account
	ChangeAccess(login string, access map[string]bool) error
}
