package remote

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "mt5copier.strategy.remote.StrategyWorker"

// Service is what a remote strategy worker implements; the host process
// calls it through Client, a test or an in-process worker implements it
// directly and registers it with RegisterService.
type Service interface {
	OnInit(ctx context.Context, req *InitRequest) (*InitResponse, error)
	OnBar(ctx context.Context, req *BarRequest) (*BarResponse, error)
	OnDeinit(ctx context.Context, req *DeinitRequest) (*DeinitResponse, error)
}

func onInitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).OnInit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/OnInit"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Service).OnInit(ctx, req.(*InitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func onBarHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BarRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).OnBar(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/OnBar"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Service).OnBar(ctx, req.(*BarRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func onDeinitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeinitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).OnDeinit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/OnDeinit"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Service).OnDeinit(ctx, req.(*DeinitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-authored stand-in for what protoc-gen-go-grpc
// would otherwise emit from a .proto file.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OnInit", Handler: onInitHandler},
		{MethodName: "OnBar", Handler: onBarHandler},
		{MethodName: "OnDeinit", Handler: onDeinitHandler},
	},
	Metadata: "internal/strategy/remote/service.go",
}

// RegisterService registers a Service implementation on a *grpc.Server,
// mirroring the pb.RegisterStrategyServiceServer call a generated stub would
// provide.
func RegisterService(s *grpc.Server, impl Service) {
	s.RegisterService(&serviceDesc, impl)
}
