// Server runs the seller onboarding gRPC API.
package main

import (
	"context"
	"crypto"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"seller-onboarding/internal/audit"
	auditrepo "seller-onboarding/internal/audit/repository"
	"seller-onboarding/internal/config"
	"seller-onboarding/internal/db"
	"seller-onboarding/internal/db/migrate"
	"seller-onboarding/internal/devotp"
	devhandler "seller-onboarding/internal/devotp/handler"
	"seller-onboarding/internal/gateway"
	"seller-onboarding/internal/policy/engine"
	registrationhandler "seller-onboarding/internal/registration/handler"
	"seller-onboarding/internal/registration/repository"
	"seller-onboarding/internal/registration/service"
	"seller-onboarding/internal/security"
	"seller-onboarding/internal/server"
	"seller-onboarding/internal/server/interceptors"
	"seller-onboarding/internal/telemetry"
	telotel "seller-onboarding/internal/telemetry/otel"
	"seller-onboarding/internal/telemetry/producer"
)

type storage struct {
	db       *sql.DB
	sessions repository.Repository
	audits   auditrepo.Repository
}

// openStorage opens the configured store. SQLite is migrated at startup; Postgres is migrated by cmd/migrate.
func openStorage(cfg *config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &storage{
			db:       conn,
			sessions: repository.NewPostgresRepository(conn),
			audits:   auditrepo.NewPostgresRepository(conn),
		}, nil
	case config.StorageSQLite:
		if err := migrate.Run(db.SQLiteMigrateURL(cfg.SQLitePath), "up"); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &storage{
			db:       conn,
			sessions: repository.NewSQLiteRepository(conn),
			audits:   auditrepo.NewSQLiteRepository(conn),
		}, nil
	}
	log.Println("storage: using in-memory store; sessions are lost on restart")
	return &storage{
		sessions: repository.NewMemoryRepository(),
		audits:   auditrepo.NewMemoryRepository(),
	}, nil
}

func tokenKeys(cfg *config.Config) (crypto.Signer, crypto.PublicKey, error) {
	if cfg.JWTPrivateKey != "" {
		return security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	}
	if cfg.Env == "production" {
		return nil, nil, fmt.Errorf("JWT_PRIVATE_KEY is required when APP_ENV=production")
	}
	log.Println("security: JWT_PRIVATE_KEY not set; using an ephemeral signing key")
	return security.GenerateEphemeralKey()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	providers, err := telotel.NewProviders(ctx, telotel.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.OTelServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()
	metrics, err := telotel.NewMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("telemetry: metrics: %v", err)
	}

	emitters := telemetry.MultiEmitter{telotel.NewEventEmitter(providers.LoggerProvider)}
	var kafkaProducer producer.Producer
	if kp, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic); err != nil {
		log.Fatalf("telemetry: kafka: %v", err)
	} else if kp != nil {
		kafkaProducer = kp
		emitters = append(emitters, kp)
		log.Printf("telemetry: publishing onboarding events to kafka topic %s", cfg.TelemetryKafkaTopic)
	}
	defer func() {
		if kafkaProducer != nil {
			_ = kafkaProducer.Close()
		}
	}()

	store, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer func() {
		if store.db != nil {
			_ = store.db.Close()
		}
	}()

	signer, pub, err := tokenKeys(cfg)
	if err != nil {
		log.Fatalf("security: %v", err)
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL())

	var gw gateway.Gateway
	var devHandler devhandler.DevServer
	if cfg.DevGateway {
		codes := devotp.NewMemoryStore()
		gw = gateway.NewMemoryGateway(codes)
		devHandler = devhandler.NewServer(codes)
		log.Println("gateway: DEV MODE in-process gateway; codes are readable through DevService")
	} else {
		gw = gateway.NewHTTPClient(cfg.GatewayAuthURL, cfg.GatewayVendorURL, cfg.GatewayTimeoutDuration())
	}

	evaluator, err := engine.NewOPAEvaluatorFromFile(ctx, cfg.RequirementsPolicyPath)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	svc, err := service.New(service.Deps{
		Repo:      store.sessions,
		Gateway:   gw,
		Evaluator: evaluator,
		Hasher:    security.NewHasher(cfg.BcryptCost),
		Tokens:    tokens,
		Events:    emitters,
		Metrics:   metrics,
		Audit:     audit.NewLogger(store.audits, interceptors.ClientIP),
		AuditRepo: store.audits,
	}, service.Config{
		MaxAttempts:       cfg.VerificationMaxAttempts,
		CodeTTL:           cfg.CodeTTL(),
		ResendCooldown:    cfg.ResendCooldown(),
		LinkTTL:           cfg.LinkTTL(),
		ResumeLinkBaseURL: cfg.ResumeLinkBaseURL,
		ResumeInactivity:  cfg.ResumeInactivity(),
	})
	if err != nil {
		log.Fatalf("registration: %v", err)
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	skip := server.UnauditedMethods()
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(tokens, server.PublicMethods(cfg.DevGateway)),
			interceptors.AuditUnary(store.audits, skip),
			interceptors.TelemetryUnary(emitters, skip),
		),
	)
	deps := server.Deps{
		Onboarding:          registrationhandler.NewServer(svc),
		HealthPolicyChecker: evaluator,
		DevHandler:          devHandler,
	}
	if store.db != nil {
		deps.HealthPinger = store.db
	}
	server.RegisterServices(s, deps)

	go func() {
		log.Printf("gRPC server listening on %s (storage %s)", cfg.GRPCAddr, cfg.StorageDriver)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	s.GracefulStop()
	log.Println("gRPC server stopped")
}
