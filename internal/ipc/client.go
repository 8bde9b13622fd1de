package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// ErrNotRunning reports that nothing accepts connections on the socket.
var ErrNotRunning = errors.New("no daemon listening")

// Client sends one request per connection to a daemon socket.
type Client struct {
	Path    string
	Timeout time.Duration
}

// Send is a one-shot Client.Do.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	return Client{Path: path, Timeout: timeout}.Do(ctx, req)
}

// Do dials, writes req and reads one response line, all within Timeout.
// Dial failures caused by a missing socket or absent listener wrap ErrNotRunning.
func (c Client) Do(ctx context.Context, req Request) (Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.Path)
	if err != nil {
		if notListening(err) {
			return Response{}, fmt.Errorf("%w at %s: %w", ErrNotRunning, c.Path, err)
		}
		return Response{}, fmt.Errorf("dial %s: %w", c.Path, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	line, err := readLine(conn, maxResponseBytes)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Probe reports whether a responsive daemon owns path.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: "status"}, timeout)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotRunning):
		return false, nil
	default:
		return false, fmt.Errorf("probe socket: %w", err)
	}
}

func notListening(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
