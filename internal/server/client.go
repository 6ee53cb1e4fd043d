package server

import (
	"errors"
	"sync"

	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/time/rate"
)

var ErrClosed = errors.New("connection closed")

// Client is one accepted connection. It satisfies hub.Conn: Send may be
// called from any goroutine, and a failed write closes the connection so
// its handler's next read fails and runs the normal cleanup.
type Client struct {
	id        string
	transport Transport
	limiter   *rate.Limiter

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(t Transport, limiter *rate.Limiter) (*Client, error) {
	id, err := nanoid.New(10)
	if err != nil {
		return nil, err
	}
	return &Client{
		id:        id,
		transport: t,
		limiter:   limiter,
		closed:    make(chan struct{}),
	}, nil
}

func (c *Client) ID() string { return c.id }

func (c *Client) RemoteAddr() string { return c.transport.RemoteAddr() }

func (c *Client) Send(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	if err := c.transport.WriteLine(line); err != nil {
		c.Close()
		return err
	}
	return nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.transport.Close()
	})
	return err
}

// Closed is done once Close has been called, from either side.
func (c *Client) Closed() <-chan struct{} { return c.closed }

// Allow reports whether another inbound line fits the rate limit.
func (c *Client) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}
