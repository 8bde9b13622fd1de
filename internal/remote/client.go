package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/soundboard/internal/events"
	"github.com/rbright/soundboard/internal/session"
)

// DefaultDialTimeout bounds the readiness wait in Dial.
const DefaultDialTimeout = 3 * time.Second

// Client calls a remote soundboard daemon.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to addr and waits until the connection is ready.
func Dial(ctx context.Context, addr string, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("remote address is empty")
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial remote %q: %w", addr, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for remote readiness: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Health reports whether the remote service is serving.
func (c *Client) Health(ctx context.Context) (bool, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, fmt.Errorf("remote health check: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// Play starts the referenced sound.
func (c *Client) Play(ctx context.Context, ref string) (session.Status, error) {
	return c.call(ctx, methodPlay, refRequest(ref))
}

// Stop stops the referenced sound.
func (c *Client) Stop(ctx context.Context, ref string) (session.Status, error) {
	return c.call(ctx, methodStop, refRequest(ref))
}

// StopAll stops every sound.
func (c *Client) StopAll(ctx context.Context) (session.Status, error) {
	return c.call(ctx, methodStopAll, &structpb.Struct{})
}

// Select makes the referenced soundboard current.
func (c *Client) Select(ctx context.Context, ref string) (session.Status, error) {
	return c.call(ctx, methodSelect, refRequest(ref))
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (session.Status, error) {
	return c.call(ctx, methodStatus, &structpb.Struct{})
}

// Events streams daemon events to fn until ctx ends or the stream fails.
// A cancelled ctx returns nil.
func (c *Client) Events(ctx context.Context, fn func(events.Event)) error {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], methodEvents)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		return fmt.Errorf("send event subscription: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("close event subscription: %w", err)
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive event: %w", err)
		}
		var ev events.Event
		if err := fromStruct(msg, &ev); err != nil {
			return err
		}
		fn(ev)
	}
}

func (c *Client) call(ctx context.Context, method string, in *structpb.Struct) (session.Status, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return session.Status{}, err
	}
	var st session.Status
	if err := fromStruct(out, &st); err != nil {
		return session.Status{}, err
	}
	return st, nil
}
