package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	. "linechat/pkg/chat"
)

var (
	ErrMalformed     = errors.New("malformed credentials")
	ErrUnknownUser   = errors.New("unknown user")
	ErrWrongPassword = errors.New("wrong password")
)

// Authenticator is the yes/no view of the credential store used by the admin API.
type Authenticator interface {
	Authenticate(username, password string) bool
}

// Store is an immutable username -> bcrypt hash table, loaded once at startup.
type Store struct {
	hashes map[string]string
	// dummy is compared against for unknown users. Its cost is the highest
	// cost in the table, so an unknown user is never cheaper to reject than
	// a wrong password.
	dummy string
}

// NewStore validates every entry, copies the table and prepares the hash
// used for unknown users.
func NewStore(hashes map[string]string) (*Store, error) {
	table := make(map[string]string, len(hashes))
	maxCost := bcrypt.MinCost
	for username, hash := range hashes {
		if username == "" || strings.ContainsAny(username, " \t\r\n") {
			return nil, fmt.Errorf("%w: invalid username %q", ErrMalformed, username)
		}
		cost, err := bcrypt.Cost([]byte(hash))
		if err != nil {
			return nil, fmt.Errorf("%w: user %q: %v", ErrMalformed, username, err)
		}
		maxCost = max(maxCost, cost)
		table[username] = hash
	}

	dummy, err := HashStringCost("linechat-unknown-user", maxCost)
	if err != nil {
		return nil, fmt.Errorf("preparing unknown-user hash: %w", err)
	}
	return &Store{hashes: table, dummy: dummy}, nil
}

// LoadFile reads a users file. .yaml and .yml files are parsed as YAML;
// anything else as JSON, with // and /* */ comments and trailing commas allowed.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	hashes := map[string]string{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &hashes)
	default:
		err = json.Unmarshal(jsonc.ToJSON(data), &hashes)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMalformed, err)
	}

	store, err := NewStore(hashes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

// LoadDB snapshots the users table. Later changes to the table are not seen
// until the process restarts.
func LoadDB(db *gorm.DB) (*Store, error) {
	var users []User
	if err := db.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}

	hashes := make(map[string]string, len(users))
	for _, u := range users {
		hashes[u.Username] = u.Password
	}
	return NewStore(hashes)
}

// Check reports why a login fails. Only server logs see the difference.
func (s *Store) Check(username, password string) error {
	hash, ok := s.hashes[username]
	if !ok {
		VerifyHashedString(password, s.dummy)
		return ErrUnknownUser
	}
	if !VerifyHashedString(password, hash) {
		return ErrWrongPassword
	}
	return nil
}

func (s *Store) Authenticate(username, password string) bool {
	return s.Check(username, password) == nil
}

func (s *Store) Len() int {
	return len(s.hashes)
}

// CreateUser hashes password and inserts a row into the sqlite credential table.
func CreateUser(db *gorm.DB, username, password string) (*User, error) {
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return nil, errors.New("username cannot contain whitespace")
	}
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	if strings.ContainsAny(password, " \t\r\n") {
		return nil, errors.New("password cannot contain whitespace")
	}

	hashedPassword, err := HashString(password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username: username,
		Password: hashedPassword,
	}

	return &user, db.Create(&user).Error
}
