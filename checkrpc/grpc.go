// Package checkrpc exposes trace verification as a gRPC service so a
// workshop runner can submit captured traces to a central checker.
package checkrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// CheckerServer is the server API for the Checker gRPC service.
//
// We intentionally use protobuf well-known types so this package does
// not require a protoc/codegen toolchain.
//
// Check request fields: "definition" (built-in lesson name) or "ckdf"
// (inline definition text), plus "trace" (raw captured text). The
// response mirrors the verification report.
type CheckerServer interface {
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Lessons(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

// UnimplementedCheckerServer can be embedded for forward compatibility.
type UnimplementedCheckerServer struct{}

func (UnimplementedCheckerServer) Check(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Check not implemented")
}
func (UnimplementedCheckerServer) Lessons(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Lessons not implemented")
}

// RegisterCheckerServer registers the Checker service on a gRPC server.
func RegisterCheckerServer(s grpc.ServiceRegistrar, srv CheckerServer) {
	s.RegisterService(&Checker_ServiceDesc, srv)
}

// CheckerClient is the client API for the Checker gRPC service.
type CheckerClient interface {
	Check(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Lessons(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type checkerClient struct{ cc grpc.ClientConnInterface }

func NewCheckerClient(cc grpc.ClientConnInterface) CheckerClient { return &checkerClient{cc: cc} }

func (c *checkerClient) Check(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, "/conncheck.v1.Checker/Check", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *checkerClient) Lessons(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	err := c.cc.Invoke(ctx, "/conncheck.v1.Checker/Lessons", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _Checker_Check_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CheckerServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/conncheck.v1.Checker/Check"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CheckerServer).Check(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Checker_Lessons_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CheckerServer).Lessons(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/conncheck.v1.Checker/Lessons"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CheckerServer).Lessons(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Checker_ServiceDesc is the grpc.ServiceDesc for the Checker service.
var Checker_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "conncheck.v1.Checker",
	HandlerType: (*CheckerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Check", Handler: _Checker_Check_Handler},
		{MethodName: "Lessons", Handler: _Checker_Lessons_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "checker.proto",
}
