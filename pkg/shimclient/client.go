// Package shimclient speaks the shim's framed command protocol over TCP.
//
// The protocol is asymmetric: commands are written without any
// acknowledgement, and the only evidence that one took effect is what shows
// up on Discord afterwards.
package shimclient

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sipeed/shimharness/pkg/logger"
	"github.com/sipeed/shimharness/pkg/messages"
)

// ConnectionError reports a transport failure against a shim endpoint.
type ConnectionError struct {
	Op   string // "dial", "send" or "receive"
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	verb := "connect to"
	switch e.Op {
	case "send":
		verb = "send to"
	case "receive":
		verb = "receive from"
	}
	return fmt.Sprintf("failed to %s %s: %v", verb, e.Addr(), e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

type Client struct {
	host string
	port int
	conn net.Conn

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// Dial connects to the shim, giving up after timeout.
func Dial(ctx context.Context, host string, port int, timeout time.Duration) (*Client, error) {
	dialer := net.Dialer{Timeout: timeout}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Host: host, Port: port, Err: err}
	}

	logger.DebugCF("shimclient", "Connected to shim", map[string]interface{}{
		"addr": addr,
	})
	return &Client{host: host, port: port, conn: conn}, nil
}

func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Send serializes cmd and writes it as one frame. It never reads.
func (c *Client) Send(cmd *messages.Response) error {
	payload, err := cmd.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode %s command: %w", cmd.Kind(), err)
	}

	c.writeMu.Lock()
	err = WriteFrame(c.conn, payload)
	c.writeMu.Unlock()
	if err != nil {
		return &ConnectionError{Op: "send", Host: c.host, Port: c.port, Err: err}
	}

	logger.DebugCF("shimclient", "Command sent", map[string]interface{}{
		"kind":  cmd.Kind(),
		"bytes": len(payload),
	})
	return nil
}

// Receive reads one request frame pushed by the shim. A zero timeout waits
// indefinitely.
func (c *Client) Receive(timeout time.Duration) (*messages.Request, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, &ConnectionError{Op: "receive", Host: c.host, Port: c.port, Err: err}
	}

	payload, err := ReadFrame(c.conn, MaxFrameSize)
	if err != nil {
		return nil, &ConnectionError{Op: "receive", Host: c.host, Port: c.port, Err: err}
	}
	return messages.UnmarshalRequest(payload)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
