// Package hub owns the shared chat state: who is logged in on which
// connection, which room every session is in, and who subscribes to whom.
//
// One mutex guards all three tables. Critical sections only touch maps;
// anything that writes to a connection snapshots its recipients under the
// lock and sends after releasing it.
package hub

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"linechat/pkg/chat"
)

var (
	ErrNoSession        = errors.New("no session")
	ErrInvalidRoom      = errors.New("invalid room name")
	ErrPublisherOffline = errors.New("user not online")
	ErrNotSameRoom      = errors.New("user not in the same room")
)

// Conn is the hub's view of a client connection. Send must be safe for
// concurrent use; Close must be idempotent.
type Conn interface {
	ID() string
	RemoteAddr() string
	Send(line string) error
	Close() error
}

type session struct {
	conn        Conn
	username    string
	room        string
	connectedAt time.Time
}

// Departure describes a session that was just removed from the hub.
type Departure struct {
	Username string
	Room     string
}

type Hub struct {
	mu sync.Mutex

	sessions map[string]*session            // conn ID -> session
	users    map[string]*session            // username -> session
	rooms    map[string]map[string]*session // room -> conn ID -> session
	subs     map[string]map[string]struct{} // publisher -> subscribers

	logger *slog.Logger
	now    func() time.Time
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions: make(map[string]*session),
		users:    make(map[string]*session),
		rooms:    map[string]map[string]*session{chat.DefaultRoom: {}},
		subs:     make(map[string]map[string]struct{}),
		logger:   logger,
		now:      time.Now,
	}
}

// detachLocked removes s from every table: session, username binding, room
// membership, and every subscriber set naming s.username. Callers hold h.mu.
func (h *Hub) detachLocked(s *session) {
	id := s.conn.ID()
	if h.sessions[id] != s {
		return
	}
	delete(h.sessions, id)
	if h.users[s.username] == s {
		delete(h.users, s.username)
	}
	if members := h.rooms[s.room]; members != nil && members[id] == s {
		delete(members, id)
	}
	for _, subscribers := range h.subs {
		delete(subscribers, s.username)
	}
}

// notifyAndClose sends a final line to a detached connection and closes it.
func (h *Hub) notifyAndClose(c Conn, line string) {
	if err := c.Send(line); err != nil {
		h.logger.Debug("final notice not delivered", "conn", c.ID(), "err", err)
	}
	if err := c.Close(); err != nil {
		h.logger.Debug("close failed", "conn", c.ID(), "err", err)
	}
}

// SessionInfo is a read-only view of one live session.
type SessionInfo struct {
	Username    string    `json:"username"`
	Room        string    `json:"room"`
	ConnID      string    `json:"conn_id"`
	Remote      string    `json:"remote"`
	ConnectedAt time.Time `json:"connected_at"`
}

// RoomInfo is a read-only view of one room.
type RoomInfo struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Snapshot is a consistent copy of the hub, taken under a single lock.
type Snapshot struct {
	Sessions []SessionInfo `json:"sessions"`
	Rooms    []RoomInfo    `json:"rooms"`
}

func (h *Hub) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := Snapshot{
		Sessions: make([]SessionInfo, 0, len(h.users)),
		Rooms:    make([]RoomInfo, 0, len(h.rooms)),
	}
	for _, s := range h.users {
		snap.Sessions = append(snap.Sessions, SessionInfo{
			Username:    s.username,
			Room:        s.room,
			ConnID:      s.conn.ID(),
			Remote:      s.conn.RemoteAddr(),
			ConnectedAt: s.connectedAt,
		})
	}
	sort.Slice(snap.Sessions, func(i, j int) bool {
		return snap.Sessions[i].Username < snap.Sessions[j].Username
	})

	for name, members := range h.rooms {
		snap.Rooms = append(snap.Rooms, RoomInfo{Name: name, Members: usernames(members)})
	}
	sort.Slice(snap.Rooms, func(i, j int) bool {
		return snap.Rooms[i].Name < snap.Rooms[j].Name
	})
	return snap
}

func usernames(members map[string]*session) []string {
	names := make([]string, 0, len(members))
	for _, s := range members {
		names = append(names, s.username)
	}
	sort.Strings(names)
	return names
}
