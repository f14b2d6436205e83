package control

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// grpcServer adapts Controller to the hand-registered service below.
type grpcServer struct {
	c *Controller
}

func (s *grpcServer) stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	stats := s.c.Pipeline.Stats()
	hints := make([]any, len(stats.VictimHints))
	for i, h := range stats.VictimHints {
		hints[i] = float64(h)
	}
	return structpb.NewStruct(map[string]any{
		"pool_len":      float64(stats.PoolLen),
		"pool_capacity": float64(stats.PoolCapacity),
		"flows_v4":      float64(stats.FlowsV4),
		"flows_v6":      float64(stats.FlowsV6),
		"victim_hints":  hints,
	})
}

func (s *grpcServer) freeze(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.c.Pipeline.Freeze()
	return &emptypb.Empty{}, nil
}

func (s *grpcServer) unfreeze(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.c.Pipeline.Unfreeze()
	return &emptypb.Empty{}, nil
}

func decodeEmpty(dec func(any) error) (*emptypb.Empty, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, fmt.Errorf("control: decode request: %w", err)
	}
	return in, nil
}

// serviceDesc is a hand-registered grpc.ServiceDesc against the
// well-known protobuf types, replacing what would ordinarily be
// protoc-gen-go-grpc output for a PipelineControl service (see the
// package doc comment and DESIGN.md's "control" entry for why no such
// generated package exists here).
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "netspectra.dpi.control.PipelineControl",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Stats",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in, err := decodeEmpty(dec)
				if err != nil {
					return nil, err
				}
				s := srv.(*grpcServer)
				if interceptor == nil {
					return s.stats(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/netspectra.dpi.control.PipelineControl/Stats"}
				handler := func(ctx context.Context, req any) (any, error) { return s.stats(ctx, req.(*emptypb.Empty)) }
				return interceptor(ctx, in, info, handler)
			},
		},
		{
			MethodName: "Freeze",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in, err := decodeEmpty(dec)
				if err != nil {
					return nil, err
				}
				s := srv.(*grpcServer)
				if interceptor == nil {
					return s.freeze(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/netspectra.dpi.control.PipelineControl/Freeze"}
				handler := func(ctx context.Context, req any) (any, error) { return s.freeze(ctx, req.(*emptypb.Empty)) }
				return interceptor(ctx, in, info, handler)
			},
		},
		{
			MethodName: "Unfreeze",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in, err := decodeEmpty(dec)
				if err != nil {
					return nil, err
				}
				s := srv.(*grpcServer)
				if interceptor == nil {
					return s.unfreeze(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/netspectra.dpi.control.PipelineControl/Unfreeze"}
				handler := func(ctx context.Context, req any) (any, error) { return s.unfreeze(ctx, req.(*emptypb.Empty)) }
				return interceptor(ctx, in, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/control/grpc.go",
}

// RegisterGRPC registers the control service against s, following the
// same "construct a grpc.Server, register a service, serve" shape as
// cmd/ns-api/v2's grpc setup.
func (c *Controller) RegisterGRPC(s *grpc.Server) {
	s.RegisterService(&serviceDesc, &grpcServer{c: c})
}
