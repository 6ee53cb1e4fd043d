package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashStringCost(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain password", input: "password123"},
		{name: "empty string", input: ""},
		{name: "unicode", input: "こんにちは🎉"},
		{name: "over bcrypt limit", input: strings.Repeat("a", 100), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashStringCost(tt.input, bcrypt.MinCost)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, tt.input, hash)
			assert.True(t, strings.HasPrefix(hash, "$2a$"), "unexpected hash prefix %q", hash)
			assert.True(t, VerifyHashedString(tt.input, hash))
		})
	}
}

func TestVerifyHashedString(t *testing.T) {
	hash, err := HashStringCost("secret", bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		expected bool
	}{
		{name: "match", password: "secret", hash: hash, expected: true},
		{name: "wrong password", password: "Secret", hash: hash},
		{name: "empty password", password: "", hash: hash},
		{name: "empty hash", password: "secret", hash: ""},
		{name: "not a bcrypt hash", password: "secret", hash: "plaintext"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, VerifyHashedString(tt.password, tt.hash))
		})
	}
}

func TestHashesAreSalted(t *testing.T) {
	first, err := HashStringCost("same", bcrypt.MinCost)
	require.NoError(t, err)
	second, err := HashStringCost("same", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, VerifyHashedString("same", first))
	assert.True(t, VerifyHashedString("same", second))
}
