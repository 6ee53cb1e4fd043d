package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	. "linechat/pkg/chat"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&User{}))
	return db
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashStringCost(password, bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestStore_Check(t *testing.T) {
	store, err := NewStore(map[string]string{"alice": mustHash(t, "wonderland")})
	require.NoError(t, err)

	assert.NoError(t, store.Check("alice", "wonderland"))
	assert.ErrorIs(t, store.Check("alice", "nope"), ErrWrongPassword)
	assert.ErrorIs(t, store.Check("mallory", "wonderland"), ErrUnknownUser)
	assert.ErrorIs(t, store.Check("Alice", "wonderland"), ErrUnknownUser, "usernames are case-sensitive")

	assert.True(t, store.Authenticate("alice", "wonderland"))
	assert.False(t, store.Authenticate("alice", "nope"))
	assert.False(t, store.Authenticate("mallory", "wonderland"))
}

func TestNewStore_UnknownUserHashMatchesStoredCost(t *testing.T) {
	costlier, err := HashStringCost("looking-glass", bcrypt.MinCost+1)
	require.NoError(t, err)

	store, err := NewStore(map[string]string{
		"alice": mustHash(t, "wonderland"),
		"bob":   costlier,
	})
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(store.dummy))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost, "unknown users cost as much as the most expensive stored hash")
	assert.ErrorIs(t, store.Check("mallory", "looking-glass"), ErrUnknownUser)

	empty, err := NewStore(nil)
	require.NoError(t, err)
	cost, err = bcrypt.Cost([]byte(empty.dummy))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestNewStore_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		hashes map[string]string
	}{
		{name: "plaintext password", hashes: map[string]string{"alice": "wonderland"}},
		{name: "empty hash", hashes: map[string]string{"alice": ""}},
		{name: "empty username", hashes: map[string]string{"": mustHash(t, "x")}},
		{name: "username with space", hashes: map[string]string{"al ice": mustHash(t, "x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(tt.hashes)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestLoadFile(t *testing.T) {
	hash := mustHash(t, "pw")

	t.Run("json", func(t *testing.T) {
		path := writeFile(t, "users.json", `{"alice": "`+hash+`", "bob": "`+hash+`"}`)
		store, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2, store.Len())
		assert.True(t, store.Authenticate("bob", "pw"))
	})

	t.Run("json with comments", func(t *testing.T) {
		path := writeFile(t, "users.jsonc", "{\n  // operators\n  \"alice\": \""+hash+"\",\n}\n")
		store, err := LoadFile(path)
		require.NoError(t, err)
		assert.True(t, store.Authenticate("alice", "pw"))
	})

	t.Run("yaml", func(t *testing.T) {
		path := writeFile(t, "users.yaml", "alice: '"+hash+"'\n")
		store, err := LoadFile(path)
		require.NoError(t, err)
		assert.True(t, store.Authenticate("alice", "pw"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("not json", func(t *testing.T) {
		path := writeFile(t, "users.json", `["alice"]`)
		_, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("bad hash", func(t *testing.T) {
		path := writeFile(t, "users.json", `{"alice": "plaintext"}`)
		_, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestLoadDB(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.Create(&User{Username: "alice", Password: mustHash(t, "pw1")}).Error)
	require.NoError(t, db.Create(&User{Username: "bob", Password: mustHash(t, "pw2")}).Error)

	store, err := LoadDB(db)
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	assert.True(t, store.Authenticate("alice", "pw1"))
	assert.False(t, store.Authenticate("alice", "pw2"))
	assert.True(t, store.Authenticate("bob", "pw2"))
}

func TestCreateUser(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name        string
		username    string
		password    string
		expectError bool
	}{
		{name: "valid user", username: "alice", password: "wonderland"},
		{name: "empty username", username: "", password: "x", expectError: true},
		{name: "empty password", username: "bob", password: "", expectError: true},
		{name: "whitespace username", username: "b ob", password: "x", expectError: true},
		{name: "duplicate username", username: "alice", password: "again", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := CreateUser(db, tt.username, tt.password)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, user.ID)
			assert.NotEqual(t, tt.password, user.Password)
		})
	}
}
