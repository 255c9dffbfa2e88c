package server

import (
	"context"
	"reflect"
	"testing"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	devhandler "seller-onboarding/internal/devotp/handler"
	registrationhandler "seller-onboarding/internal/registration/handler"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	services []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.services = append(m.services, desc.ServiceName)
}

// mockOnboarding satisfies OnboardingServer by embedding the interface; no RPC is called here.
type mockOnboarding struct {
	registrationhandler.OnboardingServer
}

type mockDevService struct{}

func (mockDevService) GetDevCode(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return &structpb.Struct{}, nil
}

func TestRegisterServices(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		want []string
	}{
		{"nil dependencies", Deps{}, []string{"grpc.health.v1.Health"}},
		{
			"onboarding",
			Deps{Onboarding: mockOnboarding{}},
			[]string{registrationhandler.ServiceName, "grpc.health.v1.Health"},
		},
		{
			"onboarding and dev",
			Deps{Onboarding: mockOnboarding{}, DevHandler: mockDevService{}},
			[]string{registrationhandler.ServiceName, "grpc.health.v1.Health", devhandler.ServiceName},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &mockServiceRegistrar{}
			RegisterServices(reg, tt.deps)
			if !reflect.DeepEqual(reg.services, tt.want) {
				t.Errorf("registered = %v, want %v", reg.services, tt.want)
			}
		})
	}
}

func TestPublicMethods(t *testing.T) {
	public := PublicMethods(false)
	for _, m := range []string{
		registrationhandler.FullMethod(registrationhandler.MethodStartRegistration),
		registrationhandler.FullMethod(registrationhandler.MethodResumeFromLink),
		registrationhandler.FullMethod(registrationhandler.MethodResumeWithPassword),
		healthpb.Health_Check_FullMethodName,
	} {
		if !public[m] {
			t.Errorf("%s should be public", m)
		}
	}
	if public[registrationhandler.FullMethod(registrationhandler.MethodAdvance)] {
		t.Error("Advance must require a token")
	}
	if public[devhandler.FullMethodGetDevCode] {
		t.Error("GetDevCode must not be public when the dev gateway is off")
	}
	if !PublicMethods(true)[devhandler.FullMethodGetDevCode] {
		t.Error("GetDevCode should be public when the dev gateway is on")
	}
}

func TestUnauditedMethods(t *testing.T) {
	skip := UnauditedMethods()
	if !skip[healthpb.Health_Check_FullMethodName] || !skip[devhandler.FullMethodGetDevCode] {
		t.Errorf("UnauditedMethods = %v", skip)
	}
	if skip[registrationhandler.FullMethod(registrationhandler.MethodSubmit)] {
		t.Error("Submit must be audited")
	}
}
