// Package handler implements the dev-only DevService that reads verification codes back out of the
// in-process gateway. It is registered only when the dev gateway is enabled outside production.
package handler

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"seller-onboarding/internal/devotp"
)

// ServiceName is the fully qualified gRPC service name of DevService.
const ServiceName = "seller.dev.v1.DevService"

// FullMethodGetDevCode is the full method name of GetDevCode, a public method.
const FullMethodGetDevCode = "/" + ServiceName + "/GetDevCode"

const devCodeNote = "DEV MODE ONLY"

// DevServer is the server API for DevService.
type DevServer interface {
	GetDevCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server implements DevService over a devotp.Store.
type Server struct {
	store devotp.Store
}

// NewServer returns a DevService server that reads codes from the given store.
func NewServer(store devotp.Store) *Server {
	return &Server{store: store}
}

// GetDevCode returns the latest plaintext code sent to email. Returns NotFound if missing or expired.
func (s *Server) GetDevCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email := strings.ToLower(strings.TrimSpace(req.GetFields()["email"].GetStringValue()))
	if email == "" {
		return nil, status.Error(codes.InvalidArgument, "email is required")
	}
	code, ok := s.store.Get(ctx, email)
	if !ok {
		return nil, status.Error(codes.NotFound, "code not found or expired")
	}
	return structpb.NewStruct(map[string]any{"code": code, "note": devCodeNote})
}

func getDevCodeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DevServer).GetDevCode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodGetDevCode}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DevServer).GetDevCode(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes DevService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DevServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDevCode", Handler: getDevCodeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "seller/dev/v1/dev.proto",
}

// RegisterDevServer registers srv with s.
func RegisterDevServer(s grpc.ServiceRegistrar, srv DevServer) {
	s.RegisterService(&ServiceDesc, srv)
}
