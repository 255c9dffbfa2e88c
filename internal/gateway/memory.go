package gateway

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"seller-onboarding/internal/devotp"
	"seller-onboarding/internal/otp"
)

// devCodeTTL matches the code lifetime of the real auth service.
const devCodeTTL = 15 * time.Minute

type memorySeller struct {
	email          string
	sellerType     string
	step           int
	confirmationID string
}

type memoryCode struct {
	hash      string
	expiresAt time.Time
}

// ResumeEmail is a registration email recorded by MemoryGateway.
type ResumeEmail struct {
	Email    string
	StepLink string
	SentAt   time.Time
}

// MemoryGateway is an in-process Gateway for development and tests. Codes are generated locally,
// only their hash is kept for verification, and the plaintext goes to a devotp.Store for retrieval.
type MemoryGateway struct {
	mu      sync.Mutex
	sellers map[string]*memorySeller
	byEmail map[string]string
	codes   map[string]memoryCode
	emails  []ResumeEmail
	store   devotp.Store
	nowF    func() time.Time
}

// NewMemoryGateway returns an empty gateway. store may be nil when codes need not be retrievable.
func NewMemoryGateway(store devotp.Store) *MemoryGateway {
	return &MemoryGateway{
		sellers: make(map[string]*memorySeller),
		byEmail: make(map[string]string),
		codes:   make(map[string]memoryCode),
		store:   store,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ Gateway      = (*MemoryGateway)(nil)
	_ StepRecorder = (*MemoryGateway)(nil)
)

// RegisterSeller creates a seller at step 1. Registering an email again returns the same seller
// until that seller has submitted.
func (g *MemoryGateway) RegisterSeller(ctx context.Context, req RegisterSellerRequest) (string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return "", &StatusError{Op: "register seller", StatusCode: http.StatusBadRequest, Message: "email and password are required"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.byEmail[email]; ok {
		if g.sellers[id].confirmationID != "" {
			return "", &StatusError{Op: "register seller", StatusCode: http.StatusConflict, Message: "email already registered"}
		}
		return id, nil
	}
	id := uuid.New().String()
	g.sellers[id] = &memorySeller{email: email, sellerType: req.SellerType, step: 1}
	g.byEmail[email] = id
	return id, nil
}

// SendCode issues a new 6-digit code for email, replacing any earlier one.
func (g *MemoryGateway) SendCode(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return &StatusError{Op: "send code", StatusCode: http.StatusBadRequest, Message: "email is required"}
	}
	code, err := otp.Generate()
	if err != nil {
		return err
	}
	expiresAt := g.nowF().Add(devCodeTTL)
	g.mu.Lock()
	g.codes[email] = memoryCode{hash: otp.Hash(code), expiresAt: expiresAt}
	g.mu.Unlock()
	if g.store != nil {
		g.store.Put(ctx, email, code, expiresAt)
	}
	log.Printf("gateway: dev code issued for %s", email)
	return nil
}

// VerifyCode consumes the code on a match and moves a registered seller to step 2.
func (g *MemoryGateway) VerifyCode(ctx context.Context, email, code string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.codes[email]
	if !ok || !c.expiresAt.After(g.nowF()) || !otp.Equal(code, c.hash) {
		return false, nil
	}
	delete(g.codes, email)
	if g.store != nil {
		g.store.Delete(ctx, email)
	}
	if id, ok := g.byEmail[email]; ok && g.sellers[id].step < 2 {
		g.sellers[id].step = 2
	}
	return true, nil
}

// SubmitRegistration accepts one submission per seller.
func (g *MemoryGateway) SubmitRegistration(ctx context.Context, sellerID string, payload any) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sellers[sellerID]
	if !ok {
		return "", &StatusError{Op: "submit registration", StatusCode: http.StatusNotFound, Message: "seller not found"}
	}
	if s.confirmationID != "" {
		return "", &StatusError{Op: "submit registration", StatusCode: http.StatusConflict, Message: "registration already submitted"}
	}
	s.confirmationID = uuid.New().String()
	return s.confirmationID, nil
}

// CurrentStep returns the seller's server-side step.
func (g *MemoryGateway) CurrentStep(ctx context.Context, sellerID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sellers[sellerID]
	if !ok {
		return 0, &StatusError{Op: "current step", StatusCode: http.StatusNotFound, Message: "seller not found"}
	}
	return s.step, nil
}

// RecordStep raises the seller's step to step. The step never moves back.
func (g *MemoryGateway) RecordStep(ctx context.Context, sellerID string, step int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sellers[sellerID]
	if !ok {
		return &StatusError{Op: "record step", StatusCode: http.StatusNotFound, Message: "seller not found"}
	}
	if step > s.step {
		s.step = step
	}
	return nil
}

// SendRegistrationEmail records the email instead of delivering it.
func (g *MemoryGateway) SendRegistrationEmail(ctx context.Context, email, stepLink string) error {
	g.mu.Lock()
	g.emails = append(g.emails, ResumeEmail{Email: email, StepLink: stepLink, SentAt: g.nowF()})
	g.mu.Unlock()
	log.Printf("gateway: dev registration email for %s", email)
	return nil
}

// DevCode returns the outstanding plaintext code for email, if the gateway has a store.
func (g *MemoryGateway) DevCode(ctx context.Context, email string) (string, bool) {
	if g.store == nil {
		return "", false
	}
	return g.store.Get(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// ResumeEmails returns the registration emails sent so far.
func (g *MemoryGateway) ResumeEmails() []ResumeEmail {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ResumeEmail(nil), g.emails...)
}
