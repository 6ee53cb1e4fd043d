package server

import (
	"errors"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"

	"linechat/internal/audit"
	"linechat/internal/auth"
	"linechat/internal/hub"
	"linechat/pkg/chat"
)

// handler drives one connection through CONNECTED, AUTHENTICATED and
// CLOSED. username is set once login succeeds.
type handler struct {
	srv      *Server
	client   *Client
	username string
	logger   *slog.Logger
}

func newHandler(s *Server, c *Client) *handler {
	return &handler{
		srv:    s,
		client: c,
		logger: s.logger.With("conn", c.ID(), "remote", c.RemoteAddr()),
	}
}

func (h *handler) run() {
	defer h.client.Close()
	defer h.cleanup()
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("handler panic", "panic", r, "stack", string(debug.Stack()))
			h.send(chat.ErrInternal)
		}
	}()

	h.logger.Info("connection accepted")
	h.send(chat.MsgWelcome)
	h.send(chat.MsgLoginPrompt)

	if !h.login() {
		return
	}
	h.loop()
}

func (h *handler) send(line string) {
	if err := h.client.Send(line); err != nil {
		h.logger.Debug("send failed", "err", err)
	}
}

func (h *handler) readLine() (string, bool) {
	line, err := h.client.transport.ReadLine()
	if err != nil {
		select {
		case <-h.client.Closed():
		default:
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("read failed", "err", err)
			}
		}
		return "", false
	}
	return line, true
}

func (h *handler) record(event chat.SessionEvent) {
	if event.Username == "" {
		event.Username = h.username
	}
	event.Remote = h.client.RemoteAddr()
	if err := h.srv.audit.Record(event); err != nil {
		h.logger.Warn("audit record failed", "action", event.Action, "err", err)
	}
}

// login reads exactly one line. Anything but a valid LOGIN for a known
// user ends the connection.
func (h *handler) login() bool {
	line, ok := h.readLine()
	if !ok {
		return false
	}

	username, password, ok := chat.ParseLogin(strings.TrimSpace(line))
	if !ok {
		h.logger.Info("invalid login line")
		h.send(chat.ErrInvalidLogin)
		return false
	}

	if err := h.srv.auth.Check(username, password); err != nil {
		switch {
		case errors.Is(err, auth.ErrUnknownUser):
			h.logger.Warn("login failed: unknown user", "user", username)
		case errors.Is(err, auth.ErrWrongPassword):
			h.logger.Warn("login failed: wrong password", "user", username)
		default:
			h.logger.Warn("login failed", "user", username, "err", err)
		}
		h.record(chat.SessionEvent{Action: audit.ActionLoginFailed, Username: username})
		h.send(chat.ErrAuthFailed)
		return false
	}

	previousRoom, evicted := h.srv.hub.Login(h.client, username)
	h.username = username
	h.logger = h.logger.With("user", username)

	if evicted {
		h.record(chat.SessionEvent{Action: audit.ActionEvict, Room: previousRoom})
		if previousRoom != chat.DefaultRoom {
			h.srv.hub.Broadcast(previousRoom, chat.LeftNotice(username, previousRoom), h.client)
		}
	}
	h.record(chat.SessionEvent{Action: audit.ActionLogin, Room: chat.DefaultRoom})
	h.logger.Info("login ok", "evicted_previous", evicted)

	h.send(chat.MsgLoginOK)
	h.send(chat.MsgCommands)
	if !evicted || previousRoom != chat.DefaultRoom {
		h.srv.hub.Broadcast(chat.DefaultRoom, chat.JoinedNotice(username, chat.DefaultRoom), h.client)
	}
	return true
}

func (h *handler) loop() {
	for {
		line, ok := h.readLine()
		if !ok {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// A session replaced by a newer login must not act on lines that
		// were already buffered.
		if _, ok := h.srv.hub.Username(h.client); !ok {
			return
		}
		if !h.client.Allow() {
			h.send(chat.ErrRateLimited)
			continue
		}
		if !h.dispatch(line) {
			return
		}
	}
}

// dispatch handles one line and reports whether the session continues.
func (h *handler) dispatch(line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/join":
		h.join(arg)
	case "/leave":
		h.leave()
	case "/rooms":
		h.send(chat.Server("Rooms: %s", chat.FormatList(h.srv.hub.Rooms())))
	case "/who":
		room, _ := h.srv.hub.Room(h.client)
		h.send(chat.Server("Users in %s: %s", room, chat.FormatList(h.srv.hub.Members(room))))
	case "/say":
		h.say(arg)
	case "/subscribe":
		h.subscribe(arg)
	case "/unsubscribe":
		h.unsubscribe(arg)
	case "/subs":
		h.send(chat.Server("Subscriptions: %s", chat.FormatList(h.srv.hub.Subscriptions(h.username))))
	case "/help":
		h.send(chat.MsgCommands)
	case "/quit":
		h.send(chat.MsgGoodbye)
		return false
	default:
		h.srv.hub.Publish(h.username, chat.FormatPublish(h.srv.now(), h.username, line))
	}
	return true
}

func (h *handler) join(room string) {
	if room == "" {
		h.send(chat.Error("Usage: /join <room>"))
		return
	}
	res, err := h.srv.hub.Join(h.client, room)
	if err != nil {
		h.joinFailed(err)
		return
	}
	if !res.Changed {
		h.send(chat.Server("Already in %s", res.To))
		return
	}
	h.send(chat.Server("Joined %s", res.To))
	h.moved(res)
}

func (h *handler) leave() {
	res, err := h.srv.hub.Leave(h.client)
	if err != nil {
		h.joinFailed(err)
		return
	}
	if !res.Changed {
		h.send(chat.Server("Already in %s", res.To))
		return
	}
	h.send(chat.Server("Left %s, now in %s", res.From, res.To))
	h.moved(res)
}

func (h *handler) joinFailed(err error) {
	if errors.Is(err, hub.ErrInvalidRoom) {
		h.send(chat.Error("Invalid room name"))
		return
	}
	h.logger.Warn("join failed", "err", err)
}

func (h *handler) moved(res hub.JoinResult) {
	h.logger.Debug("changed room", "from", res.From, "room", res.To)
	h.record(chat.SessionEvent{Action: audit.ActionJoinRoom, Room: res.To, Target: res.From})
	h.srv.hub.Broadcast(res.From, chat.LeftNotice(h.username, res.From), h.client)
	h.srv.hub.Broadcast(res.To, chat.JoinedNotice(h.username, res.To), h.client)
}

func (h *handler) say(text string) {
	if text == "" {
		h.send(chat.Error("Usage: /say <text>"))
		return
	}
	room, ok := h.srv.hub.Room(h.client)
	if !ok {
		return
	}
	h.srv.hub.Broadcast(room, chat.FormatRoomMessage(h.srv.now(), room, h.username, text), h.client)
}

func (h *handler) subscribe(publisher string) {
	if publisher == "" {
		h.send(chat.Error("Usage: /subscribe <user>"))
		return
	}
	err := h.srv.hub.Subscribe(h.username, publisher)
	switch {
	case err == nil:
		h.record(chat.SessionEvent{Action: audit.ActionSubscribe, Target: publisher})
		h.send(chat.Server("Subscribed to %s", publisher))
	case errors.Is(err, hub.ErrPublisherOffline):
		h.send(chat.ErrNotOnline)
	case errors.Is(err, hub.ErrNotSameRoom):
		h.send(chat.Error("%s is not in your room", publisher))
	default:
		h.logger.Warn("subscribe failed", "publisher", publisher, "err", err)
	}
}

func (h *handler) unsubscribe(publisher string) {
	if publisher == "" {
		h.send(chat.Error("Usage: /unsubscribe <user>"))
		return
	}
	if h.srv.hub.Unsubscribe(h.username, publisher) {
		h.record(chat.SessionEvent{Action: audit.ActionUnsubscribe, Target: publisher})
	}
	h.send(chat.Server("Unsubscribed from %s", publisher))
}

// cleanup runs once per connection. After an eviction or a kick the hub
// has already detached this session and Logout reports false.
func (h *handler) cleanup() {
	if h.username == "" {
		h.logger.Info("connection closed before login")
		return
	}
	dep, ok := h.srv.hub.Logout(h.client)
	if !ok {
		h.logger.Info("connection closed, session already ended")
		return
	}
	h.srv.hub.Broadcast(dep.Room, chat.LeftNotice(dep.Username, dep.Room), nil)
	h.record(chat.SessionEvent{Action: audit.ActionLogout, Room: dep.Room})
	h.logger.Info("user disconnected", "room", dep.Room)
}
