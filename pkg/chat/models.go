package chat

import (
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

// User is a row of the sqlite credential backend. Password holds a bcrypt hash.
type User struct {
	ID        string `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionEvent is one entry of the session audit trail.
type SessionEvent struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Action    string    `gorm:"index;not null" json:"action"`
	Username  string    `gorm:"index" json:"username"`
	Room      string    `json:"room,omitempty"`
	Target    string    `json:"target,omitempty"`
	Remote    string    `json:"remote,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID != "" {
		return nil
	}
	u.ID, err = nanoid.New(8)
	return
}

func (e *SessionEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID != "" {
		return nil
	}
	e.ID, err = nanoid.New(12)
	return
}
