package client

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const dialTimeout = 5 * time.Second

// lineMsg is one line received from the server.
type lineMsg string

// disconnectedMsg ends the session; err is nil when the server closed the
// connection cleanly.
type disconnectedMsg struct{ err error }

// LineConn is a TCP connection speaking the newline-delimited chat protocol.
type LineConn struct {
	conn net.Conn
	mu   sync.Mutex
}

func Dial(addr string) (*LineConn, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &LineConn{conn: conn}, nil
}

func (c *LineConn) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

// Listen forwards every received line to ch until the connection ends, then
// sends a single disconnectedMsg.
func (c *LineConn) Listen(ch chan<- tea.Msg) {
	go func() {
		scanner := bufio.NewScanner(c.conn)
		for scanner.Scan() {
			ch <- lineMsg(scanner.Text())
		}
		ch <- disconnectedMsg{err: scanner.Err()}
	}()
}

func (c *LineConn) Close() error {
	return c.conn.Close()
}
