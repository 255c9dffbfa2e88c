package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"seller-onboarding/internal/registration/domain"
)

type fakeSender struct {
	sendErr   error
	verifyErr error
	valid     string
	sent      []string
	checks    int
}

func (f *fakeSender) SendCode(_ context.Context, email string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, email)
	return nil
}

func (f *fakeSender) VerifyCode(_ context.Context, _, code string) (bool, error) {
	f.checks++
	if f.verifyErr != nil {
		return false, f.verifyErr
	}
	return code == f.valid, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func newTestService(f *fakeSender, c *clock) *Service {
	s := NewService(f, 15*time.Minute, 60*time.Second)
	s.nowF = c.now
	return s
}

func TestIssue_MarksPending(t *testing.T) {
	f := &fakeSender{}
	c := newClock()
	s := newTestService(f, c)
	ch := domain.NewChallenge(5)

	if err := s.Issue(context.Background(), &ch, " Seller@Example.com "); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ch.Status != domain.ChallengePending {
		t.Errorf("Status = %q, want pending", ch.Status)
	}
	if ch.Email != "seller@example.com" {
		t.Errorf("Email = %q, want normalized", ch.Email)
	}
	if !ch.ExpiresAt.Equal(c.t.Add(15 * time.Minute)) {
		t.Errorf("ExpiresAt = %v", ch.ExpiresAt)
	}
	if len(f.sent) != 1 || f.sent[0] != "seller@example.com" {
		t.Errorf("sent = %v", f.sent)
	}
}

func TestIssue_DeliveryFailedLeavesIdle(t *testing.T) {
	f := &fakeSender{sendErr: errors.New("smtp down")}
	s := newTestService(f, newClock())
	ch := domain.NewChallenge(5)

	err := s.Issue(context.Background(), &ch, "seller@example.com")
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("Issue err = %v, want ErrDeliveryFailed", err)
	}
	if ch.Status != domain.ChallengeIdle || ch.Issuances != 0 {
		t.Errorf("challenge changed on failed delivery: %+v", ch)
	}
}

func TestIssue_InvalidEmail(t *testing.T) {
	s := newTestService(&fakeSender{}, newClock())
	ch := domain.NewChallenge(5)
	if err := s.Issue(context.Background(), &ch, "not-an-email"); !errors.Is(err, domain.ErrInvalidVerifyInput) {
		t.Fatalf("err = %v, want ErrInvalidVerifyInput", err)
	}
}

func TestValidate_Success(t *testing.T) {
	f := &fakeSender{valid: "123456"}
	c := newClock()
	s := newTestService(f, c)
	ch := domain.NewChallenge(5)
	_ = s.Issue(context.Background(), &ch, "seller@example.com")

	c.advance(3 * time.Minute)
	if err := s.Validate(context.Background(), &ch, "123456"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ch.Verified() {
		t.Errorf("Status = %q, want verified", ch.Status)
	}
	// verified is sticky and does not call the backend again
	if err := s.Validate(context.Background(), &ch, "000000"); err != nil {
		t.Fatalf("Validate after verified: %v", err)
	}
	if f.checks != 1 {
		t.Errorf("backend checks = %d, want 1", f.checks)
	}
}

func TestValidate_ExpiredAfterTTL(t *testing.T) {
	f := &fakeSender{valid: "123456"}
	c := newClock()
	s := newTestService(f, c)
	ch := domain.NewChallenge(5)
	_ = s.Issue(context.Background(), &ch, "seller@example.com")

	c.advance(16 * time.Minute)
	if err := s.Validate(context.Background(), &ch, "123456"); !errors.Is(err, domain.ErrCodeExpired) {
		t.Fatalf("err = %v, want ErrCodeExpired", err)
	}
	if ch.Status != domain.ChallengeExpired {
		t.Errorf("Status = %q, want expired", ch.Status)
	}
	if f.checks != 0 {
		t.Errorf("backend checks = %d, want 0", f.checks)
	}
}

func TestValidate_AttemptsExceededIsSticky(t *testing.T) {
	f := &fakeSender{valid: "123456"}
	c := newClock()
	s := newTestService(f, c)
	ch := domain.NewChallenge(5)
	_ = s.Issue(context.Background(), &ch, "seller@example.com")

	for i := 1; i <= 5; i++ {
		if err := s.Validate(context.Background(), &ch, "999999"); !errors.Is(err, domain.ErrCodeMismatch) {
			t.Fatalf("attempt %d err = %v, want ErrCodeMismatch", i, err)
		}
	}
	if ch.Status != domain.ChallengeFailed {
		t.Fatalf("Status = %q, want failed", ch.Status)
	}
	if err := s.Validate(context.Background(), &ch, "123456"); !errors.Is(err, domain.ErrAttemptsExceeded) {
		t.Fatalf("correct code after limit err = %v, want ErrAttemptsExceeded", err)
	}
	c.advance(2 * time.Minute)
	if err := s.Resend(context.Background(), &ch, "seller@example.com"); !errors.Is(err, domain.ErrAttemptsExceeded) {
		t.Fatalf("Resend after limit err = %v, want ErrAttemptsExceeded", err)
	}
	if f.checks != 5 {
		t.Errorf("backend checks = %d, want 5", f.checks)
	}
}

func TestValidate_BackendErrorRefundsAttempt(t *testing.T) {
	f := &fakeSender{verifyErr: errors.New("timeout")}
	s := newTestService(f, newClock())
	ch := domain.NewChallenge(5)
	_ = s.Issue(context.Background(), &ch, "seller@example.com")

	if err := s.Validate(context.Background(), &ch, "123456"); !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("err = %v, want ErrDeliveryFailed", err)
	}
	if ch.Attempts != 0 || ch.Status != domain.ChallengePending {
		t.Errorf("challenge = %+v, want pending with 0 attempts", ch)
	}
}

func TestValidate_Preconditions(t *testing.T) {
	s := newTestService(&fakeSender{}, newClock())
	idle := domain.NewChallenge(5)
	if err := s.Validate(context.Background(), &idle, "123456"); !errors.Is(err, domain.ErrCodeNotIssued) {
		t.Errorf("idle err = %v, want ErrCodeNotIssued", err)
	}
	if err := s.Validate(context.Background(), &idle, "  "); !errors.Is(err, domain.ErrInvalidVerifyInput) {
		t.Errorf("blank code err = %v, want ErrInvalidVerifyInput", err)
	}
}

func TestResend_Cooldown(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{"immediately", 0, domain.ErrResendTooSoon},
		{"after 30s", 30 * time.Second, domain.ErrResendTooSoon},
		{"after 61s", 61 * time.Second, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSender{}
			c := newClock()
			s := newTestService(f, c)
			ch := domain.NewChallenge(5)
			_ = s.Issue(context.Background(), &ch, "seller@example.com")
			ch.Attempts = 3

			c.advance(tt.elapsed)
			err := s.Resend(context.Background(), &ch, "seller@example.com")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resend err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if len(f.sent) != 2 || ch.Attempts != 0 || ch.Issuances != 2 {
					t.Errorf("after resend: sent=%d attempts=%d issuances=%d", len(f.sent), ch.Attempts, ch.Issuances)
				}
			} else if ch.Attempts != 3 || len(f.sent) != 1 {
				t.Errorf("refused resend changed state: attempts=%d sent=%d", ch.Attempts, len(f.sent))
			}
		})
	}
}

func TestResend_AfterExpiry(t *testing.T) {
	f := &fakeSender{valid: "123456"}
	c := newClock()
	s := newTestService(f, c)
	ch := domain.NewChallenge(5)
	_ = s.Issue(context.Background(), &ch, "seller@example.com")
	c.advance(16 * time.Minute)
	_ = s.Validate(context.Background(), &ch, "123456")

	if err := s.Resend(context.Background(), &ch, "seller@example.com"); err != nil {
		t.Fatalf("Resend after expiry: %v", err)
	}
	if err := s.Validate(context.Background(), &ch, "123456"); err != nil {
		t.Fatalf("Validate new code: %v", err)
	}
}

func TestResend_NeverIssuedHasNoCooldown(t *testing.T) {
	s := newTestService(&fakeSender{}, newClock())
	ch := domain.NewChallenge(5)
	if err := s.Resend(context.Background(), &ch, "seller@example.com"); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if ch.Status != domain.ChallengePending {
		t.Errorf("Status = %q, want pending", ch.Status)
	}
}

func TestView(t *testing.T) {
	c := newClock()
	s := newTestService(&fakeSender{}, c)
	ch := domain.NewChallenge(5)
	_ = s.Issue(context.Background(), &ch, "seller@example.com")
	ch.Attempts = 2

	v := s.View(ch, c.t)
	if v.Status != domain.ChallengePending || v.AttemptsRemaining != 3 {
		t.Errorf("view = %+v", v)
	}
	if v.ResendAvailableAt == nil || !v.ResendAvailableAt.Equal(c.t.Add(60*time.Second)) {
		t.Errorf("ResendAvailableAt = %v", v.ResendAvailableAt)
	}
	if late := s.View(ch, c.t.Add(20*time.Minute)); late.Status != domain.ChallengeExpired || late.ExpiresAt != nil {
		t.Errorf("late view = %+v, want expired without expiresAt", late)
	}
}
