// Package userstore implements the credential and access store of the
// message hub. It verifies logins during the authentication handshake,
// creates accounts for registrations and persists per-identity access flags
// that network functions can require.
//
// The package focuses on:
//   - A single interface (IUserStore) decoupling the protocol engine from
//     the persistence mechanism
//   - A SQLite backed implementation with bcrypt password hashes
//   - Sentinel errors (ErrUserExists, ErrAuthFailed, ErrUserUnknown) for
//     precise failure handling during the handshake
//
// Lifecycle:
//
//	store := userstore.NewSQLiteStore()
//	_ = store.Configure("users.db", ownerPassword, map[string]bool{"chat": true})
//	_ = store.Start() // creates schema, seeds the owner account
//	defer store.Stop()
//
// On first start an administrator account with the reserved login "owner" is
// created. It receives every configured base access flag set to true and
// cannot be deleted.
//
// Thread Safety:
//
//	All operations are safe for concurrent use. Handshakes of multiple
//	connections authenticate against the store in parallel.
package userstore
