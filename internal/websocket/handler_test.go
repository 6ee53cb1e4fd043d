package websocket

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"linechat/internal/auth"
	"linechat/internal/config"
	"linechat/internal/hub"
	"linechat/internal/server"
	"linechat/pkg/chat"
)

func setupWSServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()

	hash, err := auth.HashStringCost("secret", bcrypt.MinCost)
	require.NoError(t, err)
	store, err := auth.NewStore(map[string]string{"alice": hash})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.NewHub(logger)
	srv := server.New(config.Default(), h, store, nil, logger)

	ts := httptest.NewServer(NewHandler(srv, 1024, logger))
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return ts, h
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func expectFrame(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.Equal(t, want, string(data))
}

func TestHandler_LoginOverWebsocket(t *testing.T) {
	ts, h := setupWSServer(t)
	conn := dialWS(t, ts)

	expectFrame(t, conn, chat.MsgWelcome)
	expectFrame(t, conn, chat.MsgLoginPrompt)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(chat.LoginLine("alice", "secret"))))
	expectFrame(t, conn, chat.MsgLoginOK)
	expectFrame(t, conn, chat.MsgCommands)
	assert.True(t, h.Online("alice"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("/join game\n/who")))
	expectFrame(t, conn, chat.Server("Joined game"))
	expectFrame(t, conn, chat.Server("Users in game: alice"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("/quit")))
	expectFrame(t, conn, chat.MsgGoodbye)

	assert.Eventually(t, func() bool { return !h.Online("alice") }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_BadLoginClosesSocket(t *testing.T) {
	ts, _ := setupWSServer(t)
	conn := dialWS(t, ts)

	expectFrame(t, conn, chat.MsgWelcome)
	expectFrame(t, conn, chat.MsgLoginPrompt)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	expectFrame(t, conn, chat.ErrInvalidLogin)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	ts, _ := setupWSServer(t)

	resp, err := ts.Client().Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}
