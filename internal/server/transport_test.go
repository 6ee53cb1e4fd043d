package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func pipeTransport(t *testing.T, maxLine int, idle time.Duration) (Transport, net.Conn) {
	t.Helper()
	server, peer := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		peer.Close()
	})
	return NewTCPTransport(server, maxLine, time.Second, idle), peer
}

func TestTCPTransport_ReadLine(t *testing.T) {
	tr, peer := pipeTransport(t, 64, 0)

	go func() {
		io.WriteString(peer, "hello\r\nworld\n")
		peer.Close()
	}()

	line, err := tr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "hello", line)

	line, err = tr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "world", line)

	_, err = tr.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTCPTransport_LineTooLong(t *testing.T) {
	tr, peer := pipeTransport(t, 8, 0)
	go io.WriteString(peer, "far too long for the buffer\n")

	_, err := tr.ReadLine()
	assert.ErrorIs(t, err, bufio.ErrTooLong)
}

func TestTCPTransport_LineLengthBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		tooLong bool
	}{
		{name: "exactly max", input: "xxxxxxxx\n", want: "xxxxxxxx"},
		{name: "exactly max with CRLF", input: "xxxxxxxx\r\n", want: "xxxxxxxx"},
		{name: "one over max", input: "xxxxxxxxx\n", tooLong: true},
		{name: "one over max with CRLF", input: "xxxxxxxxx\r\n", tooLong: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, peer := pipeTransport(t, 8, 0)
			go io.WriteString(peer, tt.input)

			line, err := tr.ReadLine()
			if tt.tooLong {
				assert.ErrorIs(t, err, bufio.ErrTooLong)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, line)
		})
	}
}

func TestTCPTransport_IdleTimeout(t *testing.T) {
	tr, _ := pipeTransport(t, 64, 20*time.Millisecond)

	_, err := tr.ReadLine()
	var ne net.Error
	require.True(t, errors.As(err, &ne))
	assert.True(t, ne.Timeout())
}

func TestTCPTransport_WriteLine(t *testing.T) {
	tr, peer := pipeTransport(t, 64, 0)

	go tr.WriteLine("[SERVER] hi")
	line, err := bufio.NewReader(peer).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "[SERVER] hi\n", line)
}

type stubTransport struct {
	writeErr error
	written  []string
	closed   int
}

func (s *stubTransport) ReadLine() (string, error) { return "", io.EOF }
func (s *stubTransport) RemoteAddr() string        { return "stub" }
func (s *stubTransport) Close() error {
	s.closed++
	return nil
}
func (s *stubTransport) WriteLine(line string) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, line)
	return nil
}

func TestClient_SendAndClose(t *testing.T) {
	tr := &stubTransport{}
	c, err := NewClient(tr, nil)
	require.NoError(t, err)
	assert.Len(t, c.ID(), 10)

	require.NoError(t, c.Send("one"))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Send("two"), ErrClosed)
	assert.Equal(t, []string{"one"}, tr.written)
	assert.Equal(t, 1, tr.closed)
	assert.True(t, c.Allow())
}

func TestClient_FailedWriteCloses(t *testing.T) {
	tr := &stubTransport{writeErr: errors.New("broken pipe")}
	c, err := NewClient(tr, rate.NewLimiter(rate.Inf, 1))
	require.NoError(t, err)

	assert.Error(t, c.Send("x"))
	select {
	case <-c.Closed():
	default:
		t.Fatal("client not closed after write failure")
	}
	assert.Equal(t, 1, tr.closed)
}
