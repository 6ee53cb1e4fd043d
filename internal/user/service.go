// Package user manages the sqlite credential table used by the "db"
// credentials backend. The running server snapshots the table at startup.
package user

import (
	"errors"
	"fmt"
	"strings"

	"linechat/internal/auth"
	"linechat/pkg/chat"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// SetPassword creates username, or replaces the password of an existing
// user. created reports which happened.
func (s *UserService) SetPassword(username, password string) (user *chat.User, created bool, err error) {
	var existing chat.User
	err = s.db.First(&existing, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = auth.CreateUser(s.db, username, password)
		return user, err == nil, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user: %w", err)
	}

	if password == "" {
		return nil, false, errors.New("password cannot be empty")
	}
	if strings.ContainsAny(password, " \t\r\n") {
		return nil, false, errors.New("password cannot contain whitespace")
	}

	hashedPassword, err := auth.HashString(password)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.db.Model(&existing).Update("password", hashedPassword).Error; err != nil {
		return nil, false, fmt.Errorf("failed to update user: %w", err)
	}
	return &existing, false, nil
}

func (s *UserService) DeleteUser(username string) error {
	result := s.db.Where("username = ?", username).Delete(&chat.User{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns every stored username, sorted.
func (s *UserService) ListUsers() ([]string, error) {
	var names []string
	err := s.db.Model(&chat.User{}).Order("username").Pluck("username", &names).Error
	return names, err
}
