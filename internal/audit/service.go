package audit

import (
	. "linechat/pkg/chat"

	"gorm.io/gorm"
)

// Action constants for the session audit trail
const (
	ActionLogin       = "LOGIN"
	ActionLoginFailed = "LOGIN_FAILED"
	ActionEvict       = "EVICT"
	ActionLogout      = "LOGOUT"
	ActionJoinRoom    = "JOIN_ROOM"
	ActionSubscribe   = "SUBSCRIBE"
	ActionUnsubscribe = "UNSUBSCRIBE"
	ActionKick        = "KICK"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Recorder is what the connection handler needs from the audit trail.
type Recorder interface {
	Record(event SessionEvent) error
}

// Nop discards every event. It is used when no database is configured.
type Nop struct{}

func (Nop) Record(SessionEvent) error { return nil }

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record appends one event to the trail.
func (s *AuditService) Record(event SessionEvent) error {
	return s.db.Create(&event).Error
}

// Filter narrows GetEvents. Zero values match everything.
type Filter struct {
	Username string
	Action   string
	Limit    int
	Offset   int
}

// GetEvents returns matching events newest first, plus the total match count.
func (s *AuditService) GetEvents(f Filter) ([]SessionEvent, int64, error) {
	query := s.db.Model(&SessionEvent{})
	if f.Username != "" {
		query = query.Where("username = ? OR target = ?", f.Username, f.Username)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var events []SessionEvent
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(f.Offset).
		Find(&events).Error

	return events, total, err
}
