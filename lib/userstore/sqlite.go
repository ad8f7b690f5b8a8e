package userstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var Logger = logger.GetLogger("userstore")

// OwnerLogin is the reserved login of the seeded administrator account.
const OwnerLogin = "owner"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	login    TEXT PRIMARY KEY,
	password BLOB NOT NULL,
	access   BLOB NOT NULL
);`

// sqliteStore implements IUserStore on a local SQLite database. Passwords are
// stored as bcrypt hashes, access flags as a json blob per user.
type sqliteStore struct {
	mu sync.Mutex

	path              string
	ownerBasePassword string
	baseAccess        map[string]bool
	configured        bool

	db *sql.DB
}

// NewSQLiteStore creates a new, unconfigured SQLite backed user store.
func NewSQLiteStore() IUserStore {
	return &sqliteStore{}
}

// --------------------------------------------------------------------------
// Lifecycle (docu see userstore.IUserStore)
// --------------------------------------------------------------------------

func (s *sqliteStore) Configure(path string, ownerBasePassword string, baseAccess map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.configured {
		return fmt.Errorf("user store is already configured")
	}
	if path == "" {
		return fmt.Errorf("store path must not be empty")
	}

	s.path = path
	s.ownerBasePassword = ownerBasePassword
	s.baseAccess = make(map[string]bool, len(baseAccess))
	for flag, granted := range baseAccess {
		s.baseAccess[flag] = granted
	}
	s.configured = true
	return nil
}

func (s *sqliteStore) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.configured {
		return fmt.Errorf("user store is not configured")
	}
	if s.db != nil {
		return fmt.Errorf("user store is already started")
	}

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("failed to open user database: %v", err)
	}

	// single connection: sqlite serializes writers anyway, and a pooled
	// ":memory:" DSN would open one empty database per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create schema: %v", err)
	}

	s.db = db

	if err := s.seedOwner(); err != nil {
		s.db = nil
		_ = db.Close()
		return err
	}

	Logger.Infof("user store started (%s)", s.path)
	return nil
}

func (s *sqliteStore) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	Logger.Infof("user store stopped")
	return err
}

// seedOwner creates the owner account on first start. The owner holds every
// base access flag set to true regardless of the configured defaults.
func (s *sqliteStore) seedOwner() error {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE login = ?`, OwnerLogin).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to query owner account: %v", err)
	}
	if exists > 0 {
		return nil
	}

	access := make(map[string]bool, len(s.baseAccess))
	for flag := range s.baseAccess {
		access[flag] = true
	}

	if err := insertUser(s.db, OwnerLogin, s.ownerBasePassword, access); err != nil {
		return fmt.Errorf("failed to seed owner account: %v", err)
	}

	Logger.Infof("seeded owner account")
	return nil
}

// --------------------------------------------------------------------------
// Account Operations (docu see userstore.IUserStore)
// --------------------------------------------------------------------------

func (s *sqliteStore) AddUser(login, password string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	var exists int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users WHERE login = ?`, login).Scan(&exists); err != nil {
		return fmt.Errorf("failed to query user: %v", err)
	}
	if exists > 0 {
		return ErrUserExists
	}

	return insertUser(db, login, password, s.baseAccess)
}

func (s *sqliteStore) LoginUser(login, password string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	var hash []byte
	err = db.QueryRow(`SELECT password FROM users WHERE login = ?`, login).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAuthFailed
	}
	if err != nil {
		return fmt.Errorf("failed to query user: %v", err)
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return ErrAuthFailed
	}
	return nil
}

func (s *sqliteStore) DeleteUser(login string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	if login == OwnerLogin {
		return fmt.Errorf("the owner account cannot be deleted")
	}

	res, err := db.Exec(`DELETE FROM users WHERE login = ?`, login)
	if err != nil {
		return fmt.Errorf("failed to delete user: %v", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrUserUnknown
	}
	return nil
}

func (s *sqliteStore) ChangePassword(login, newPassword string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %v", err)
	}

	res, err := db.Exec(`UPDATE users SET password = ? WHERE login = ?`, hash, login)
	if err != nil {
		return fmt.Errorf("failed to update password: %v", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrUserUnknown
	}
	return nil
}

func (s *sqliteStore) GetAccess(login string) (map[string]bool, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var blob []byte
	err = db.QueryRow(`SELECT access FROM users WHERE login = ?`, login).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query access: %v", err)
	}

	var access map[string]bool
	if err := json.Unmarshal(blob, &access); err != nil {
		return nil, fmt.Errorf("corrupt access flags for %q: %v", login, err)
	}
	return access, nil
}

func (s *sqliteStore) ChangeAccess(login string, access map[string]bool) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	blob, err := json.Marshal(access)
	if err != nil {
		return fmt.Errorf("failed to encode access flags: %v", err)
	}

	res, err := db.Exec(`UPDATE users SET access = ? WHERE login = ?`, blob, login)
	if err != nil {
		return fmt.Errorf("failed to update access: %v", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrUserUnknown
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handle returns the database handle or ErrNotStarted. sql.DB itself is safe
// for concurrent use, the mutex only protects the lifecycle transitions.
func (s *sqliteStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrNotStarted
	}
	return s.db, nil
}

// insertUser hashes the password and writes a new row
func insertUser(db *sql.DB, login, password string, access map[string]bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %v", err)
	}

	blob, err := json.Marshal(access)
	if err != nil {
		return fmt.Errorf("failed to encode access flags: %v", err)
	}

	if _, err := db.Exec(
		`INSERT INTO users (login, password, access) VALUES (?, ?, ?)`,
		login, hash, blob,
	); err != nil {
		return fmt.Errorf("failed to insert user: %v", err)
	}
	return nil
}
