package hub

import (
	"sort"
	"strings"
	"unicode"

	"linechat/pkg/chat"
)

const maxRoomNameLength = 64

// JoinResult is the outcome of a room move.
type JoinResult struct {
	From    string
	To      string
	Changed bool
}

// roomLocked returns the member set of name, creating it on first use.
// Rooms are never removed. Callers hold h.mu.
func (h *Hub) roomLocked(name string) map[string]*session {
	members, ok := h.rooms[name]
	if !ok {
		members = make(map[string]*session)
		h.rooms[name] = members
	}
	return members
}

func validRoomName(name string) bool {
	if name == "" || len(name) > maxRoomNameLength {
		return false
	}
	return !strings.ContainsFunc(name, unicode.IsSpace)
}

// Join moves conn into room. The move is one critical section, so the
// connection is never a member of two rooms at once.
func (h *Hub) Join(conn Conn, room string) (JoinResult, error) {
	if !validRoomName(room) {
		return JoinResult{}, ErrInvalidRoom
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[conn.ID()]
	if !ok {
		return JoinResult{}, ErrNoSession
	}
	if s.room == room {
		return JoinResult{From: room, To: room}, nil
	}

	from := s.room
	if members := h.rooms[from]; members != nil {
		delete(members, conn.ID())
	}
	h.roomLocked(room)[conn.ID()] = s
	s.room = room
	return JoinResult{From: from, To: room, Changed: true}, nil
}

// Leave returns conn to the default room.
func (h *Hub) Leave(conn Conn) (JoinResult, error) {
	return h.Join(conn, chat.DefaultRoom)
}

// Room returns the room conn is in.
func (h *Hub) Room(conn Conn) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[conn.ID()]
	if !ok {
		return "", false
	}
	return s.room, true
}

// Rooms lists every room ever created, including empty ones, sorted by name.
func (h *Hub) Rooms() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.rooms))
	for name := range h.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Members lists the usernames currently in room.
func (h *Hub) Members(room string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return usernames(h.rooms[room])
}

// Broadcast sends line to every member of room except exclude and returns
// the number of successful deliveries. A member whose send fails is dropped
// from the room; tearing down its session is left to its own handler.
func (h *Hub) Broadcast(room, line string, exclude Conn) int {
	h.mu.Lock()
	targets := make([]*session, 0, len(h.rooms[room]))
	for _, s := range h.rooms[room] {
		if exclude != nil && s.conn.ID() == exclude.ID() {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.Unlock()

	delivered := 0
	var failed []*session
	for _, s := range targets {
		if err := s.conn.Send(line); err != nil {
			h.logger.Debug("broadcast send failed", "room", room, "user", s.username, "err", err)
			failed = append(failed, s)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, s := range failed {
			if members := h.rooms[room]; members[s.conn.ID()] == s {
				delete(members, s.conn.ID())
			}
		}
		h.mu.Unlock()
	}
	return delivered
}
