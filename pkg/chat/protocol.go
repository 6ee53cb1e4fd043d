package chat

import (
	"fmt"
	"strings"
	"time"
)

// DefaultRoom is where every session starts and where /leave returns to.
const DefaultRoom = "lobby"

// LoginCommand is the keyword of the only line accepted before authentication.
const LoginCommand = "LOGIN"

// TimestampLayout renders message timestamps as HH:MM:SS.
const TimestampLayout = "15:04:05"

// Server to client lines.
const (
	MsgWelcome      = "[SERVER] Welcome to the chat server"
	MsgLoginPrompt  = "[SERVER] Login using: LOGIN <username> <password>"
	MsgLoginOK      = "[SERVER] Login successful"
	MsgCommands     = "[SERVER] Commands: /join <room>, /leave, /rooms, /who, /say <text>, /subscribe <user>, /unsubscribe <user>, /subs, /help, /quit"
	MsgEvicted      = "[SERVER] Logged out due to new login"
	MsgKicked       = "[SERVER] Disconnected by administrator"
	MsgGoodbye      = "[SERVER] Goodbye"
	MsgShutdown     = "[SERVER] Server shutting down"
	ErrInvalidLogin = "[ERROR] Invalid login format"
	ErrAuthFailed   = "[ERROR] Authentication failed"
	ErrNotOnline    = "[ERROR] User not online"
	ErrRateLimited  = "[ERROR] Rate limit exceeded, slow down"
	ErrInternal     = "[ERROR] Internal server error"
)

// Server formats a "[SERVER] ..." notice.
func Server(format string, args ...any) string {
	return "[SERVER] " + fmt.Sprintf(format, args...)
}

// Error formats an "[ERROR] ..." reply.
func Error(format string, args ...any) string {
	return "[ERROR] " + fmt.Sprintf(format, args...)
}

// FormatPublish renders a published line as "[HH:MM:SS] user: text".
func FormatPublish(at time.Time, username, text string) string {
	return fmt.Sprintf("[%s] %s: %s", at.Format(TimestampLayout), username, text)
}

// FormatRoomMessage renders a /say line as "[HH:MM:SS] [room] user: text".
func FormatRoomMessage(at time.Time, room, username, text string) string {
	return fmt.Sprintf("[%s] [%s] %s: %s", at.Format(TimestampLayout), room, username, text)
}

// JoinedNotice and LeftNotice are broadcast to the other members of a room.
func JoinedNotice(username, room string) string {
	return Server("%s joined %s", username, room)
}

func LeftNotice(username, room string) string {
	return Server("%s left %s", username, room)
}

// FormatList joins names for a server reply, or "none" when empty.
func FormatList(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// ParseLogin splits a "LOGIN <username> <password>" line. It reports false
// for any other shape.
func ParseLogin(line string) (username, password string, ok bool) {
	parts := strings.Fields(line)
	if len(parts) != 3 || parts[0] != LoginCommand {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// LoginLine builds the handshake line a client sends first.
func LoginLine(username, password string) string {
	return LoginCommand + " " + username + " " + password
}
