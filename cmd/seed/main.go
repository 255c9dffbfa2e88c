// seed stores a completed demo registration session for local testing. Run via go run ./cmd/seed.
// Idempotent: reuses the active session of the fixture account if one exists.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"seller-onboarding/internal/audit"
	auditrepo "seller-onboarding/internal/audit/repository"
	"seller-onboarding/internal/config"
	"seller-onboarding/internal/db"
	"seller-onboarding/internal/db/migrate"
	"seller-onboarding/internal/registration/domain"
	"seller-onboarding/internal/registration/fixtures"
	"seller-onboarding/internal/registration/repository"
	"seller-onboarding/internal/security"
)

func main() {
	sellerType := flag.String("seller-type", "professional", "Seller type of the demo session: individual or professional")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	st, err := domain.ParseSellerType(*sellerType)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	var conn *sql.DB
	var sessions repository.Repository
	var audits auditrepo.Repository
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		conn, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		sessions, audits = repository.NewPostgresRepository(conn), auditrepo.NewPostgresRepository(conn)
	case config.StorageSQLite:
		if err := migrate.Run(db.SQLiteMigrateURL(cfg.SQLitePath), "up"); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		conn, err = db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		sessions, audits = repository.NewSQLiteRepository(conn), auditrepo.NewSQLiteRepository(conn)
	default:
		log.Fatal("seed: STORAGE_DRIVER=memory does not persist; set STORAGE_DRIVER to postgres or sqlite")
	}
	defer conn.Close()

	ctx := context.Background()
	existing, err := sessions.FindActiveByEmail(ctx, fixtures.Email)
	if err != nil {
		log.Fatalf("seed: find session: %v", err)
	}
	id := uuid.New().String()
	if existing != nil {
		id, st = existing.ID, existing.SellerType
		log.Printf("seed: session %s already exists for %s", id, fixtures.Email)
	} else {
		sess := fixtures.CompleteSession(id, st, time.Now().UTC())
		if err := sessions.Save(ctx, sess); err != nil {
			log.Fatalf("seed: save session: %v", err)
		}
		audit.NewLogger(audits, nil).LogEvent(ctx, id, sess.SellerID, "seed", "registration", string(st))
		log.Printf("seed: created %s session %s", st, id)
	}

	log.Printf("seed: resume with email %s and password %s", fixtures.Email, fixtures.Password)
	if cfg.JWTPrivateKey == "" {
		log.Println("seed: JWT_PRIVATE_KEY not set; no session token printed")
		return
	}
	signer, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("security: %v", err)
	}
	token, expiresAt, err := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL()).
		IssueSession(id, string(st))
	if err != nil {
		log.Fatalf("security: issue token: %v", err)
	}
	log.Printf("seed: session token expires %s", expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
