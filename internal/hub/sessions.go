package hub

import (
	"linechat/pkg/chat"
)

// Login binds conn to username and puts it in the default room. A previous
// session for the same username is detached in the same critical section,
// then told why and closed before Login returns. evicted reports whether
// that happened and previousRoom is the room the old session was in.
func (h *Hub) Login(conn Conn, username string) (previousRoom string, evicted bool) {
	h.mu.Lock()
	prev := h.users[username]
	if prev != nil {
		previousRoom = prev.room
		h.detachLocked(prev)
	}
	if stale := h.sessions[conn.ID()]; stale != nil {
		h.detachLocked(stale)
	}

	s := &session{
		conn:        conn,
		username:    username,
		room:        chat.DefaultRoom,
		connectedAt: h.now(),
	}
	h.sessions[conn.ID()] = s
	h.users[username] = s
	h.roomLocked(chat.DefaultRoom)[conn.ID()] = s
	h.mu.Unlock()

	if prev == nil || prev.conn == conn {
		return "", false
	}
	h.logger.Info("evicting previous session", "user", username, "conn", prev.conn.ID(), "remote", prev.conn.RemoteAddr())
	h.notifyAndClose(prev.conn, chat.MsgEvicted)
	return previousRoom, true
}

// Lookup returns the connection currently logged in as username.
func (h *Hub) Lookup(username string) (Conn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.users[username]
	if !ok {
		return nil, false
	}
	return s.conn, true
}

// Username returns the user conn is logged in as.
func (h *Hub) Username(conn Conn) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[conn.ID()]
	if !ok {
		return "", false
	}
	return s.username, true
}

// Online reports whether username has a live session.
func (h *Hub) Online(username string) bool {
	_, ok := h.Lookup(username)
	return ok
}

func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.users)
}

// Logout tears down conn's session: username binding, room membership and
// its subscriber edges. It is a no-op, returning false, when conn has no
// session any more, which is the case after an eviction or a previous call.
func (h *Hub) Logout(conn Conn) (Departure, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[conn.ID()]
	if !ok {
		return Departure{}, false
	}
	h.detachLocked(s)
	return Departure{Username: s.username, Room: s.room}, true
}

// Kick force-closes username's session with an administrator notice.
func (h *Hub) Kick(username string) (Departure, bool) {
	h.mu.Lock()
	s, ok := h.users[username]
	if ok {
		h.detachLocked(s)
	}
	h.mu.Unlock()

	if !ok {
		return Departure{}, false
	}
	h.notifyAndClose(s.conn, chat.MsgKicked)
	return Departure{Username: s.username, Room: s.room}, true
}
