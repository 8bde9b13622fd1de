// Package remote exposes playback control over gRPC.
//
// Messages are google.protobuf.Struct values so the service needs no generated
// code: requests carry a "ref" field and responses carry the JSON shape of the
// daemon status or of an event.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/soundboard/internal/library"
	"github.com/rbright/soundboard/internal/playback"
	"github.com/rbright/soundboard/internal/session"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "soundboard.v1.Remote"

const (
	methodPlay    = "/" + ServiceName + "/Play"
	methodStop    = "/" + ServiceName + "/Stop"
	methodStopAll = "/" + ServiceName + "/StopAll"
	methodSelect  = "/" + ServiceName + "/Select"
	methodStatus  = "/" + ServiceName + "/Status"
	methodEvents  = "/" + ServiceName + "/Events"
)

// Controller is the playback surface the service drives.
type Controller interface {
	Play(ctx context.Context, ref string) error
	Stop(ctx context.Context, ref string) error
	StopAll(ctx context.Context)
	Select(ctx context.Context, ref string) error
	Status(ctx context.Context) session.Status
}

// remoteServer is the handler type named in ServiceDesc.
type remoteServer interface {
	play(context.Context, *structpb.Struct) (*structpb.Struct, error)
	stop(context.Context, *structpb.Struct) (*structpb.Struct, error)
	stopAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	selectBoard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	status(context.Context, *structpb.Struct) (*structpb.Struct, error)
	events(*structpb.Struct, grpc.ServerStream) error
}

// ServiceDesc describes soundboard.v1.Remote.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*remoteServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Play", Handler: unary(methodPlay, remoteServer.play)},
		{MethodName: "Stop", Handler: unary(methodStop, remoteServer.stop)},
		{MethodName: "StopAll", Handler: unary(methodStopAll, remoteServer.stopAll)},
		{MethodName: "Select", Handler: unary(methodSelect, remoteServer.selectBoard)},
		{MethodName: "Status", Handler: unary(methodStatus, remoteServer.status)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Events", Handler: eventsHandler, ServerStreams: true},
	},
	Metadata: "soundboard/v1/remote.proto",
}

type unaryMethod func(remoteServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, fn unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(remoteServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(remoteServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(remoteServer).events(in, stream)
}

// refArg reads the required "ref" field.
func refArg(in *structpb.Struct) (string, error) {
	ref := strings.TrimSpace(in.GetFields()["ref"].GetStringValue())
	if ref == "" {
		return "", status.Error(codes.InvalidArgument, "ref is required")
	}
	return ref, nil
}

// statusError maps domain errors onto gRPC codes.
func statusError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, library.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, playback.ErrFileMissing):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts a JSON-encodable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert %T to struct: %w", v, err)
	}
	return out, nil
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(in *structpb.Struct, v any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode struct into %T: %w", v, err)
	}
	return nil
}

func refRequest(ref string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"ref": structpb.NewStringValue(ref)}}
}
