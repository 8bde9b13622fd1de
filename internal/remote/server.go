package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/soundboard/internal/events"
)

const eventBuffer = 64

// ErrStreamBehind ends an Events stream whose client stopped reading.
var ErrStreamBehind = errors.New("event stream fell behind")

// Server serves soundboard.v1.Remote and the standard health service.
type Server struct {
	ctrl   Controller
	bus    *events.Bus
	logger *slog.Logger

	grpc   *grpc.Server
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer registers the remote and health services on a fresh gRPC server.
func NewServer(ctrl Controller, bus *events.Bus, logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	s := &Server{
		ctrl:   ctrl,
		bus:    bus,
		logger: logger,
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
	}
	s.grpc.RegisterService(&ServiceDesc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Listen binds addr and serves in the background.
func (s *Server) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("remote: listen %q: %w", addr, err)
	}
	go func() {
		if serveErr := s.Serve(lis); serveErr != nil {
			s.logWarn("remote server stopped", "error", serveErr.Error())
		}
	}()
	s.logInfo("remote control listening", "addr", lis.Addr().String())
	return nil
}

// Serve blocks serving lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Addr returns the bound address, or "" before Serve.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop marks the service not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) play(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ref, err := refArg(in)
	if err != nil {
		return nil, err
	}
	if err := s.ctrl.Play(ctx, ref); err != nil {
		return nil, statusError(err)
	}
	return s.status(ctx, in)
}

func (s *Server) stop(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ref, err := refArg(in)
	if err != nil {
		return nil, err
	}
	if err := s.ctrl.Stop(ctx, ref); err != nil {
		return nil, statusError(err)
	}
	return s.status(ctx, in)
}

func (s *Server) stopAll(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.ctrl.StopAll(ctx)
	return s.status(ctx, in)
}

func (s *Server) selectBoard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ref, err := refArg(in)
	if err != nil {
		return nil, err
	}
	if err := s.ctrl.Select(ctx, ref); err != nil {
		return nil, statusError(err)
	}
	return s.status(ctx, in)
}

func (s *Server) status(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	out, err := toStruct(s.ctrl.Status(ctx))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// events streams bus events until the client cancels or falls behind.
func (s *Server) events(_ *structpb.Struct, stream grpc.ServerStream) error {
	if s.bus == nil {
		return status.Error(codes.Unavailable, "event bus not configured")
	}

	ch := make(chan events.Event, eventBuffer)
	behind := make(chan struct{})
	var once sync.Once
	unsubscribe := s.bus.Subscribe(func(ev events.Event) {
		select {
		case ch <- ev:
		default:
			once.Do(func() { close(behind) })
		}
	})
	defer unsubscribe()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-behind:
			s.logWarn("remote event stream dropped", "reason", ErrStreamBehind.Error())
			return status.Error(codes.ResourceExhausted, ErrStreamBehind.Error())
		case ev := <-ch:
			msg, err := toStruct(ev)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func (s *Server) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Server) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
