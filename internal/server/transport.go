package server

import (
	"bufio"
	"io"
	"net"
	"strings"
	"time"
)

// Transport carries the line protocol over one client connection. ReadLine
// is only called from the connection's own handler; WriteLine is serialised
// by Client.
type Transport interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

type tcpTransport struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	maxLine      int
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

// NewTCPTransport frames conn as newline-delimited lines. A line longer
// than maxLine bytes is a read error. idleTimeout of zero disables the read
// deadline.
func NewTCPTransport(conn net.Conn, maxLine int, writeTimeout, idleTimeout time.Duration) Transport {
	scanner := bufio.NewScanner(conn)
	// Room for the terminator, "\r\n" at most.
	scanner.Buffer(make([]byte, 0, min(maxLine+2, 4096)), maxLine+2)
	return &tcpTransport{
		conn:         conn,
		scanner:      scanner,
		maxLine:      maxLine,
		writeTimeout: writeTimeout,
		idleTimeout:  idleTimeout,
	}
}

func (t *tcpTransport) ReadLine() (string, error) {
	if t.idleTimeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.idleTimeout)); err != nil {
			return "", err
		}
	}
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := strings.TrimSuffix(t.scanner.Text(), "\r")
	if len(line) > t.maxLine {
		return "", bufio.ErrTooLong
	}
	return line, nil
}

func (t *tcpTransport) WriteLine(line string) error {
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(t.conn, line+"\n")
	return err
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
