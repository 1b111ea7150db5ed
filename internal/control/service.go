// Package control serves and queries free space of a download directory
// over gRPC, for planners running on a different host than the disk.
package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName      = "seedplan.control.v1.DiskAgent"
	freeSpaceMethod  = "/" + ServiceName + "/FreeSpace"
	freeSpaceHandler = "FreeSpace"
)

// DiskAgentServer is implemented by Server.
type DiskAgentServer interface {
	FreeSpace(ctx context.Context, dir *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
}

// RegisterDiskAgentServer registers srv with s.
func RegisterDiskAgentServer(s grpc.ServiceRegistrar, srv DiskAgentServer) {
	s.RegisterService(&diskAgentDesc, srv)
}

var diskAgentDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DiskAgentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: freeSpaceHandler, Handler: freeSpaceHandlerFunc},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "seedplan/control/v1/disk_agent.proto",
}

func freeSpaceHandlerFunc(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiskAgentServer).FreeSpace(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: freeSpaceMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DiskAgentServer).FreeSpace(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
