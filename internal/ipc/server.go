package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const (
	maxRequestBytes  = 64 * 1024
	maxResponseBytes = 8 << 20
	requestTimeout   = 2 * time.Second
)

// Handler serves one decoded request.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) Response

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve accepts clients until ctx is cancelled or the listener closes, then
// waits for in-flight requests.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(ctx, conn, handler)
		}()
	}
}

// serveConn answers exactly one request on conn.
func serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	enc := json.NewEncoder(conn)

	_ = conn.SetReadDeadline(time.Now().Add(requestTimeout))
	line, err := readLine(conn, maxRequestBytes)
	if err != nil {
		_ = enc.Encode(Fail(fmt.Errorf("read request: %w", err)))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		_ = enc.Encode(Fail(fmt.Errorf("decode request: %w", err)))
		return
	}

	_ = enc.Encode(handle(ctx, handler, req))
}

// handle turns a handler panic into an error response so one bad command
// cannot take the daemon down.
func handle(ctx context.Context, handler Handler, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = Fail(fmt.Errorf("command %q panicked: %v", req.Command, r))
		}
	}()
	return handler.Handle(ctx, req)
}

// readLine reads one newline-terminated message of at most limit bytes.
func readLine(r io.Reader, limit int64) ([]byte, error) {
	reader := bufio.NewReader(io.LimitReader(r, limit+1))
	line, err := reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && int64(len(line)) > limit {
			return nil, fmt.Errorf("message exceeds %d bytes", limit)
		}
		return nil, err
	}
	return line, nil
}
