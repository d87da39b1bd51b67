package server

import (
	"net"
	"time"

	"github.com/localci/rlci/internal/events"
	"github.com/localci/rlci/pkg/cierrors"
)

// retryDelays is the connect backoff ladder: a freshly started server
// needs a moment to bind its socket, and a client racing it should not
// fail on the first attempt.
var retryDelays = []time.Duration{
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	200 * time.Millisecond,
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
}

// Client sends one trigger request per call to a Server's socket.
type Client struct {
	Sink events.Sink
}

// NewClient returns a Client that emits to sink.
func NewClient(sink events.Sink) *Client {
	return &Client{Sink: sink}
}

func (c *Client) sink() events.Sink {
	if c.Sink == nil {
		return events.Discard
	}
	return c.Sink
}

// Trigger connects to the server listening at path, sends name as the
// request payload, and reports whether the reply was "True". It
// retries ECONNREFUSED/ENOENT connect failures along retryDelays
// before giving up with a TransportError.
func (c *Client) Trigger(path, name string) (bool, error) {
	conn, err := dialWithRetry(path)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	c.sink().Emit(events.KindServerRequest, map[string]string{"path": path, "request": name})

	if _, err := conn.Write([]byte(name)); err != nil {
		return false, cierrors.NewTransportError(err)
	}

	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if err != nil {
		return false, cierrors.NewTransportError(err)
	}
	return string(buf[:n]) == replyTrue, nil
}

func dialWithRetry(path string) (net.Conn, error) {
	delays := append([]time.Duration(nil), retryDelays...)
	for {
		conn, err := net.Dial("unix", path)
		if err == nil {
			return conn, nil
		}
		if len(delays) == 0 {
			return nil, cierrors.NewTransportError(err)
		}
		time.Sleep(delays[0])
		delays = delays[1:]
	}
}
