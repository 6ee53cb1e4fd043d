// Package websocket carries the chat line protocol over websocket text
// frames, so browser clients can use the same handler as TCP clients.
package websocket

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var ErrClosed = errors.New("websocket closed")

// wsConn is the part of *websocket.Conn the transport uses.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

// Transport frames one line per outbound text message. An inbound text
// message may hold several newline-separated lines; each is returned by its
// own ReadLine call.
type Transport struct {
	conn    wsConn
	pending []string

	closeOnce sync.Once
	done      chan struct{}
}

func NewTransport(conn wsConn, maxMessageSize int64) *Transport {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &Transport{
		conn: conn,
		done: make(chan struct{}),
	}
}

func (t *Transport) ReadLine() (string, error) {
	for len(t.pending) == 0 {
		typ, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			return "", err
		}
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		if typ != websocket.TextMessage {
			continue
		}
		text := strings.TrimSuffix(string(data), "\n")
		for _, line := range strings.Split(text, "\n") {
			t.pending = append(t.pending, strings.TrimSuffix(line, "\r"))
		}
	}
	line := t.pending[0]
	t.pending = t.pending[1:]
	return line, nil
}

func (t *Transport) WriteLine(line string) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// Close sends a normal close frame, best effort, and drops the connection.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = t.conn.Close()
	})
	return err
}

func (t *Transport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// keepalive pings the peer until the transport closes. A failed ping closes
// the connection, which surfaces as a read error in the handler.
func (t *Transport) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				t.Close()
				return
			}
		case <-t.done:
			return
		}
	}
}
