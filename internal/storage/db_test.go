package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "linechat/pkg/chat"
)

func TestConnect_Memory(t *testing.T) {
	db, err := Connect(Memory)
	require.NoError(t, err)
	defer Close(db)

	assert.True(t, db.Migrator().HasTable(&User{}))
	assert.True(t, db.Migrator().HasTable(&SessionEvent{}))

	user := User{Username: "alice", Password: "$2a$04$hash"}
	require.NoError(t, db.Create(&user).Error)
	assert.Len(t, user.ID, 8, "nanoid assigned on create")

	dup := User{Username: "alice", Password: "$2a$04$other"}
	assert.Error(t, db.Create(&dup).Error, "usernames are unique")
}

func TestConnect_FilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	db, err := Connect(path)
	require.NoError(t, err)
	require.NoError(t, db.Create(&SessionEvent{Action: "LOGIN", Username: "bob"}).Error)
	require.NoError(t, Close(db))

	db, err = Connect(path)
	require.NoError(t, err)
	defer Close(db)

	var events []SessionEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "bob", events[0].Username)
	assert.NotEmpty(t, events[0].ID)
}
