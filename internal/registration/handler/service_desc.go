package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name of the onboarding API.
const ServiceName = "seller.onboarding.v1.OnboardingService"

// Method names of OnboardingService. Requests and responses are google.protobuf.Struct values
// whose keys follow the JSON field names of the session snapshot.
const (
	MethodStartRegistration  = "StartRegistration"
	MethodGetSession         = "GetSession"
	MethodUpdateStepData     = "UpdateStepData"
	MethodAdvance            = "Advance"
	MethodRetreat            = "Retreat"
	MethodJumpTo             = "JumpTo"
	MethodVerifyCode         = "VerifyCode"
	MethodResendCode         = "ResendCode"
	MethodResumeFromLink     = "ResumeFromLink"
	MethodResumeWithPassword = "ResumeWithPassword"
	MethodSendResumeLink     = "SendResumeLink"
	MethodSubmit             = "Submit"
	MethodRestart            = "Restart"
	MethodListActivity       = "ListActivity"
)

// FullMethod returns the gRPC full method name of an OnboardingService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PublicMethods are callable without a session token.
func PublicMethods() []string {
	return []string{
		FullMethod(MethodStartRegistration),
		FullMethod(MethodResumeFromLink),
		FullMethod(MethodResumeWithPassword),
	}
}

// OnboardingServer is the server API for OnboardingService.
type OnboardingServer interface {
	StartRegistration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateStepData(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Advance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Retreat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	JumpTo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResendCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResumeFromLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResumeWithPassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendResumeLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Restart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListActivity(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(OnboardingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OnboardingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(OnboardingServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes OnboardingService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OnboardingServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodStartRegistration, OnboardingServer.StartRegistration),
		unaryMethod(MethodGetSession, OnboardingServer.GetSession),
		unaryMethod(MethodUpdateStepData, OnboardingServer.UpdateStepData),
		unaryMethod(MethodAdvance, OnboardingServer.Advance),
		unaryMethod(MethodRetreat, OnboardingServer.Retreat),
		unaryMethod(MethodJumpTo, OnboardingServer.JumpTo),
		unaryMethod(MethodVerifyCode, OnboardingServer.VerifyCode),
		unaryMethod(MethodResendCode, OnboardingServer.ResendCode),
		unaryMethod(MethodResumeFromLink, OnboardingServer.ResumeFromLink),
		unaryMethod(MethodResumeWithPassword, OnboardingServer.ResumeWithPassword),
		unaryMethod(MethodSendResumeLink, OnboardingServer.SendResumeLink),
		unaryMethod(MethodSubmit, OnboardingServer.Submit),
		unaryMethod(MethodRestart, OnboardingServer.Restart),
		unaryMethod(MethodListActivity, OnboardingServer.ListActivity),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "seller/onboarding/v1/onboarding.proto",
}

// RegisterOnboardingServer registers srv with s.
func RegisterOnboardingServer(s grpc.ServiceRegistrar, srv OnboardingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls OnboardingService over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req and returns the response fields.
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
