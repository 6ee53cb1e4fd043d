package websocket

import (
	"log/slog"
	"net/http"

	"linechat/internal/server"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Terminal and script clients send no Origin; the line protocol does
	// its own LOGIN, so any origin is accepted.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests and hands the connection to the chat
// server, which runs the same state machine it runs for TCP clients.
type Handler struct {
	srv            *server.Server
	maxMessageSize int64
	logger         *slog.Logger
}

func NewHandler(srv *server.Server, maxMessageSize int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		srv:            srv,
		maxMessageSize: int64(maxMessageSize),
		logger:         logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	t := NewTransport(conn, h.maxMessageSize)
	go t.keepalive()
	h.srv.ServeConn(t)
}
