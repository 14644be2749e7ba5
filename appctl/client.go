package appctl

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/vinayprograms/lacpd/errors"
)

// DefaultCallTimeout bounds one request/response exchange.
const DefaultCallTimeout = 5 * time.Second

// Client talks to a daemon's control socket.
type Client struct {
	conn    net.Conn
	enc     *json.Encoder
	scanner *bufio.Scanner
	timeout time.Duration
}

// Dial connects to the control socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, errors.Wrap(err, "dial control socket")
	}
	return &Client{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		scanner: bufio.NewScanner(conn),
		timeout: DefaultCallTimeout,
	}, nil
}

// Call sends one command and waits for its response.
// A command failure reported by the daemon is returned as a structured
// error carrying the daemon's error code.
func (c *Client) Call(command string, args ...string) (json.RawMessage, error) {
	deadline := time.Now().Add(c.timeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, errors.Wrap(err, "set deadline")
	}

	if err := c.enc.Encode(Request{Command: command, Args: args}); err != nil {
		return nil, errors.Wrap(err, "send command")
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "read response")
		}
		return nil, ErrClosed
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}

	if resp.Error != nil {
		return nil, errors.New(errors.Code(resp.Error.Code), resp.Error.Message)
	}
	return resp.Result, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
