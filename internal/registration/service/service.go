// Package service owns registration sessions. Every load-modify-save of a session runs under a
// per-session lock, and gateway-bound operations run in three phases so the lock is never held
// across a network call.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"seller-onboarding/internal/audit"
	auditdomain "seller-onboarding/internal/audit/domain"
	auditrepo "seller-onboarding/internal/audit/repository"
	"seller-onboarding/internal/gateway"
	"seller-onboarding/internal/policy/engine"
	"seller-onboarding/internal/registration/catalog"
	"seller-onboarding/internal/registration/domain"
	"seller-onboarding/internal/registration/navigation"
	"seller-onboarding/internal/registration/repository"
	"seller-onboarding/internal/registration/verification"
	"seller-onboarding/internal/security"
	"seller-onboarding/internal/telemetry"
	teldomain "seller-onboarding/internal/telemetry/domain"
	telotel "seller-onboarding/internal/telemetry/otel"
)

const (
	DefaultLinkTTL          = time.Hour
	DefaultResumeInactivity = 5 * time.Minute

	eventSource = "registration"
)

// TokenIssuer issues session tokens. *security.TokenProvider satisfies it.
type TokenIssuer interface {
	IssueSession(sessionID, sellerType string) (token string, expiresAt time.Time, err error)
}

var _ TokenIssuer = (*security.TokenProvider)(nil)

// Config holds the workflow limits. Zero values use the package defaults.
type Config struct {
	MaxAttempts       int
	CodeTTL           time.Duration
	ResendCooldown    time.Duration
	LinkTTL           time.Duration
	ResumeLinkBaseURL string
	ResumeInactivity  time.Duration
}

// Deps are the collaborators of Service. Repo, Gateway and Hasher are required.
type Deps struct {
	Repo      repository.Repository
	Gateway   gateway.Gateway
	Evaluator engine.Evaluator
	Hasher    *security.Hasher
	Tokens    TokenIssuer
	Events    telemetry.EventEmitter
	Metrics   *telotel.Metrics
	Audit     audit.AuditLogger
	AuditRepo auditrepo.Repository
}

// Result is a session snapshot plus the token the client should use from now on.
// Token is empty when the operation did not issue one.
type Result struct {
	Snapshot       domain.Snapshot
	Token          string
	TokenExpiresAt time.Time
}

// Service implements the registration workflow.
type Service struct {
	repo      repository.Repository
	gw        gateway.Gateway
	hasher    *security.Hasher
	tokens    TokenIssuer
	events    telemetry.EventEmitter
	metrics   *telotel.Metrics
	audit     audit.AuditLogger
	auditRepo auditrepo.Repository
	verifier  *verification.Service
	nav       *navigation.Controller
	cfg       Config
	nowF      func() time.Time

	locks   sessionLocks
	flights inFlight
}

// New returns a Service. It returns an error when a required dependency is missing.
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Repo == nil || deps.Gateway == nil || deps.Hasher == nil {
		return nil, errors.New("registration: repository, gateway and hasher are required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = verification.DefaultMaxAttempts
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = DefaultLinkTTL
	}
	if cfg.ResumeInactivity <= 0 {
		cfg.ResumeInactivity = DefaultResumeInactivity
	}
	s := &Service{
		repo:      deps.Repo,
		gw:        deps.Gateway,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		events:    deps.Events,
		metrics:   deps.Metrics,
		audit:     deps.Audit,
		auditRepo: deps.AuditRepo,
		verifier:  verification.NewService(deps.Gateway, cfg.CodeTTL, cfg.ResendCooldown),
		nav:       navigation.NewController(deps.Evaluator),
		cfg:       cfg,
		locks:     sessionLocks{m: make(map[string]*sessionLock)},
		flights:   inFlight{m: make(map[string]string)},
	}
	s.SetNow(func() time.Time { return time.Now().UTC() })
	return s, nil
}

// SetNow replaces the clock of the service and the components it owns.
func (s *Service) SetNow(nowF func() time.Time) {
	s.nowF = nowF
	s.verifier.SetNow(nowF)
	s.nav.SetNow(nowF)
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// sessionLocks hands out one mutex per session id and forgets it when no one holds it.
type sessionLocks struct {
	mu sync.Mutex
	m  map[string]*sessionLock
}

func (l *sessionLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.m[id]
	if !ok {
		sl = &sessionLock{}
		l.m[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}

// inFlight marks sessions with a gateway-bound operation running.
type inFlight struct {
	mu sync.Mutex
	m  map[string]string
}

func (f *inFlight) start(id, op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if running, ok := f.m[id]; ok {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyInProgress, running)
	}
	f.m[id] = op
	return nil
}

func (f *inFlight) finish(id string) {
	f.mu.Lock()
	delete(f.m, id)
	f.mu.Unlock()
}

// load returns the stored session. An abandoned session is deleted and reported as expired.
// Callers hold the session lock.
func (s *Service) load(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, domain.ErrSessionNotFound
	}
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	if sess.Abandoned(s.nowF()) {
		if err := s.repo.Delete(ctx, id); err != nil {
			log.Printf("registration: delete expired session %s: %v", id, err)
		}
		s.emit(ctx, sess, teldomain.EventSessionExpired, nil)
		return nil, domain.ErrSessionExpired
	}
	return sess, nil
}

// mutate loads the session under its lock and runs fn. The session is saved when fn asks for it,
// even if fn also returns an error. It returns a copy of the session as saved.
func (s *Service) mutate(ctx context.Context, id string, fn func(*domain.Session) (bool, error)) (*domain.Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	persist, fnErr := fn(sess)
	if persist {
		if err := s.repo.Save(ctx, sess); err != nil {
			return nil, err
		}
	}
	return sess.Clone(), fnErr
}

// begin marks op in flight for the session and bumps its request sequence. check runs under the
// lock before anything is written. On success the caller must call s.flights.finish(id).
func (s *Service) begin(ctx context.Context, id, op string, check func(*domain.Session) error) (*domain.Session, error) {
	if err := s.flights.start(id, op); err != nil {
		return nil, err
	}
	started, err := s.mutate(ctx, id, func(sess *domain.Session) (bool, error) {
		if check != nil {
			if err := check(sess); err != nil {
				return false, err
			}
		}
		sess.RequestSeq++
		return true, nil
	})
	if err != nil {
		s.flights.finish(id)
		return nil, err
	}
	return started, nil
}

// stale reports whether the session moved since started was taken, and records it.
func (s *Service) stale(ctx context.Context, op string, started, cur *domain.Session) bool {
	if cur.RequestSeq == started.RequestSeq {
		return false
	}
	s.metrics.Stale(ctx, op)
	s.emit(ctx, cur, teldomain.EventStaleDiscarded, map[string]any{"operation": op})
	return true
}

// Start creates a session for sellerType positioned on the entry step.
func (s *Service) Start(ctx context.Context, sellerType string) (*Result, error) {
	t, err := domain.ParseSellerType(sellerType)
	if err != nil {
		return nil, err
	}
	sess := domain.NewSession(uuid.New().String(), t, catalog.Entry(t).ID, s.cfg.MaxAttempts, s.nowF(), s.cfg.LinkTTL)
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.emit(ctx, sess, teldomain.EventSessionStarted, nil)
	s.logAudit(ctx, sess, "start", "")
	return s.withToken(sess)
}

// Get returns a snapshot of the session.
func (s *Service) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	sess, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := s.snapshot(sess)
	return &snap, nil
}

// Restart discards the session. Deleting an unknown session is not an error.
func (s *Service) Restart(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if sess != nil {
		s.emit(ctx, sess, teldomain.EventSessionRestarted, nil)
	}
	return nil
}

// Activity returns the newest audit entries of the session.
func (s *Service) Activity(ctx context.Context, id string, limit int) ([]*auditdomain.AuditLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.auditRepo == nil {
		return nil, nil
	}
	return s.auditRepo.ListBySession(ctx, id, limit)
}

func (s *Service) withToken(sess *domain.Session) (*Result, error) {
	res := &Result{Snapshot: s.snapshot(sess)}
	if s.tokens == nil {
		return res, nil
	}
	token, exp, err := s.tokens.IssueSession(sess.ID, string(sess.SellerType))
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	res.Token = token
	res.TokenExpiresAt = exp
	return res, nil
}

// snapshot builds the client view over the resolved path. Secrets are removed.
func (s *Service) snapshot(sess *domain.Session) domain.Snapshot {
	path := catalog.ResolvedPath(sess)
	steps := make([]domain.StepView, 0, len(path))
	for _, d := range path {
		v := domain.StepView{StepID: d.ID, Order: d.Order, Terminal: d.Next == nil}
		if r, ok := sess.Steps[d.ID]; ok && r != nil {
			v.Data = domain.Redact(r.Data)
			v.Complete = r.Complete()
			if r.CompletedAt != nil {
				at := *r.CompletedAt
				v.CompletedAt = &at
			}
		} else {
			v.Data, _ = domain.NewStepData(d.ID)
		}
		steps = append(steps, v)
	}
	return domain.Snapshot{
		SessionID:      sess.ID,
		SellerType:     sess.SellerType,
		SellerID:       sess.SellerID,
		CurrentStep:    sess.CurrentStep,
		Steps:          steps,
		Verification:   s.verifier.View(sess.Verification, s.nowF()),
		LinkExpiresAt:  sess.LinkExpiresAt,
		CreatedAt:      sess.CreatedAt,
		LastActivityAt: sess.LastActivityAt,
	}
}

func (s *Service) emit(ctx context.Context, sess *domain.Session, eventType string, meta map[string]any) {
	if s.events == nil {
		return
	}
	ev := &teldomain.Event{
		SessionID:  sess.ID,
		SellerID:   sess.SellerID,
		SellerType: string(sess.SellerType),
		Step:       string(sess.CurrentStep),
		EventType:  eventType,
		Source:     eventSource,
		CreatedAt:  s.nowF(),
	}
	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			log.Printf("registration: encode event metadata: %v", err)
		} else {
			ev.Metadata = raw
		}
	}
	telemetry.EmitAsync(s.events, ctx, ev)
}

// logAudit records operations that run without an authenticated session, which the audit
// interceptor cannot attribute.
func (s *Service) logAudit(ctx context.Context, sess *domain.Session, action, metadata string) {
	if s.audit == nil || sess == nil {
		return
	}
	s.audit.LogEvent(ctx, sess.ID, sess.SellerID, action, "registration", metadata)
}
