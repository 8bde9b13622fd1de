package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ErrAlreadyRunning reports a responsive daemon already owning the socket.
var ErrAlreadyRunning = errors.New("soundboard daemon already running")

// RuntimeSocketPath is the per-user control socket under XDG_RUNTIME_DIR.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, "soundboard.sock"), nil
}

// Socket is an owned control socket. Close stops listening and unlinks the path.
type Socket struct {
	net.Listener
	path string
	once sync.Once
}

// Path returns the socket file path.
func (s *Socket) Path() string { return s.path }

// Close is idempotent.
func (s *Socket) Close() error {
	var err error
	s.once.Do(func() {
		err = s.Listener.Close()
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	})
	return err
}

// AcquireOptions tunes stale-socket recovery.
type AcquireOptions struct {
	// ProbeTimeout bounds the liveness check against an existing socket.
	ProbeTimeout time.Duration
	// Retries bounds the listen attempts that follow the first stale-socket removal.
	Retries int
	// OnStale runs after each stale-socket removal.
	OnStale func(context.Context)
}

// Acquire listens on path. A socket file whose owner does not answer is
// treated as stale and removed; a responsive owner yields ErrAlreadyRunning.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (*Socket, error) {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 180 * time.Millisecond
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return &Socket{Listener: listener, path: path}, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}
		if attempt > opts.Retries {
			return nil, fmt.Errorf("acquire socket %s: still in use after %d retries", path, opts.Retries)
		}

		if err := clearStale(ctx, path, opts.ProbeTimeout); err != nil {
			return nil, err
		}
		if opts.OnStale != nil {
			opts.OnStale(ctx)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
		}
	}
}

// clearStale removes path unless a live daemon answers on it.
func clearStale(ctx context.Context, path string, timeout time.Duration) error {
	alive, err := Probe(ctx, path, timeout)
	if alive {
		return ErrAlreadyRunning
	}
	if err != nil {
		return fmt.Errorf("probe existing socket %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}
