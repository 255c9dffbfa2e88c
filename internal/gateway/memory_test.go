package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"seller-onboarding/internal/devotp"
)

func TestMemoryGateway_CodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway(devotp.NewMemoryStore())

	id, err := g.RegisterSeller(ctx, RegisterSellerRequest{Email: "Ada@Example.com", Password: "pw", SellerType: "individual"})
	if err != nil {
		t.Fatalf("RegisterSeller: %v", err)
	}
	if err := g.SendCode(ctx, "ada@example.com"); err != nil {
		t.Fatalf("SendCode: %v", err)
	}
	code, ok := g.DevCode(ctx, "ada@example.com")
	if !ok || len(code) != 6 {
		t.Fatalf("DevCode = (%q, %v)", code, ok)
	}

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if ok, err := g.VerifyCode(ctx, "ada@example.com", wrong); ok || err != nil {
		t.Errorf("VerifyCode(wrong) = (%v, %v), want (false, nil)", ok, err)
	}
	if ok, err := g.VerifyCode(ctx, "ada@example.com", code); !ok || err != nil {
		t.Fatalf("VerifyCode = (%v, %v), want (true, nil)", ok, err)
	}
	if ok, _ := g.VerifyCode(ctx, "ada@example.com", code); ok {
		t.Error("code should be consumed after a match")
	}
	if _, ok := g.DevCode(ctx, "ada@example.com"); ok {
		t.Error("dev code should be removed after a match")
	}
	if step, _ := g.CurrentStep(ctx, id); step != 2 {
		t.Errorf("step after verify = %d, want 2", step)
	}
}

func TestMemoryGateway_ResendSupersedes(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway(devotp.NewMemoryStore())
	_ = g.SendCode(ctx, "a@example.com")
	first, _ := g.DevCode(ctx, "a@example.com")
	for i := 0; i < 5; i++ {
		_ = g.SendCode(ctx, "a@example.com")
		if second, _ := g.DevCode(ctx, "a@example.com"); second != first {
			if ok, _ := g.VerifyCode(ctx, "a@example.com", first); ok {
				t.Fatal("superseded code still verifies")
			}
			return
		}
	}
	t.Skip("generated the same code repeatedly")
}

func TestMemoryGateway_CodeExpires(t *testing.T) {
	ctx := context.Background()
	store := devotp.NewMemoryStore()
	g := NewMemoryGateway(store)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.nowF = func() time.Time { return now }

	_ = g.SendCode(ctx, "a@example.com")
	g.mu.Lock()
	hash := g.codes["a@example.com"].hash
	g.mu.Unlock()

	now = now.Add(devCodeTTL + time.Second)
	for _, c := range []string{"000000", "123456"} {
		if ok, _ := g.VerifyCode(ctx, "a@example.com", c); ok {
			t.Fatalf("expired code %q (hash %s) verified", c, hash)
		}
	}
}

func TestMemoryGateway_Submit(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway(nil)
	id, _ := g.RegisterSeller(ctx, RegisterSellerRequest{Email: "a@example.com", Password: "pw"})

	again, err := g.RegisterSeller(ctx, RegisterSellerRequest{Email: "a@example.com", Password: "pw"})
	if err != nil || again != id {
		t.Errorf("re-register = (%q, %v), want (%q, nil)", again, err, id)
	}
	conf, err := g.SubmitRegistration(ctx, id, map[string]any{})
	if err != nil || conf == "" {
		t.Fatalf("SubmitRegistration = (%q, %v)", conf, err)
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"second submit", func() error { _, err := g.SubmitRegistration(ctx, id, nil); return err }(), http.StatusConflict},
		{"unknown seller", func() error { _, err := g.SubmitRegistration(ctx, "nope", nil); return err }(), http.StatusNotFound},
		{"register after submit", func() error {
			_, err := g.RegisterSeller(ctx, RegisterSellerRequest{Email: "a@example.com", Password: "pw"})
			return err
		}(), http.StatusConflict},
		{"current step unknown", func() error { _, err := g.CurrentStep(ctx, "nope"); return err }(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var se *StatusError
			if !errors.As(tt.err, &se) || se.StatusCode != tt.want {
				t.Errorf("err = %v, want status %d", tt.err, tt.want)
			}
		})
	}
}

func TestMemoryGateway_ResumeEmails(t *testing.T) {
	g := NewMemoryGateway(nil)
	if err := g.SendRegistrationEmail(context.Background(), "a@example.com", "http://localhost/register?step=2"); err != nil {
		t.Fatalf("SendRegistrationEmail: %v", err)
	}
	got := g.ResumeEmails()
	if len(got) != 1 || got[0].StepLink != "http://localhost/register?step=2" {
		t.Errorf("ResumeEmails = %+v", got)
	}
	if _, ok := g.DevCode(context.Background(), "a@example.com"); ok {
		t.Error("DevCode without a store should report false")
	}
}

func TestMemoryGateway_RecordStep(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway(nil)
	id, err := g.RegisterSeller(ctx, RegisterSellerRequest{Email: "a@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("RegisterSeller: %v", err)
	}
	for _, step := range []int{5, 3} {
		if err := g.RecordStep(ctx, id, step); err != nil {
			t.Fatalf("RecordStep(%d): %v", step, err)
		}
	}
	if step, _ := g.CurrentStep(ctx, id); step != 5 {
		t.Errorf("step = %d, want 5 after a lower report", step)
	}
	var se *StatusError
	if err := g.RecordStep(ctx, "nope", 1); !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Errorf("RecordStep(unknown) err = %v, want 404", err)
	}
}
