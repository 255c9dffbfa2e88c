package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultMaxTries      = 4
	defaultRetryInterval = 200 * time.Millisecond
	maxResponseBytes     = 1 << 20
)

// HTTPClient calls the auth service (codes) and the vendor service (sellers) over JSON/HTTP.
type HTTPClient struct {
	AuthBaseURL   string
	VendorBaseURL string
	HTTPClient    *http.Client
	// MaxTries bounds attempts of idempotent reads. Writes are never retried.
	MaxTries      uint
	RetryInterval time.Duration
}

// NewHTTPClient returns a client for the given base URLs. timeout <= 0 uses 15s.
func NewHTTPClient(authBaseURL, vendorBaseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		AuthBaseURL:   strings.TrimSuffix(authBaseURL, "/"),
		VendorBaseURL: strings.TrimSuffix(vendorBaseURL, "/"),
		HTTPClient:    &http.Client{Timeout: timeout},
		MaxTries:      defaultMaxTries,
		RetryInterval: defaultRetryInterval,
	}
}

var _ Gateway = (*HTTPClient)(nil)

type registerSellerResponse struct {
	SellerID string `json:"sellerId"`
}

// RegisterSeller calls POST /sellers/register.
func (c *HTTPClient) RegisterSeller(ctx context.Context, req RegisterSellerRequest) (string, error) {
	var out registerSellerResponse
	if err := c.do(ctx, "register seller", http.MethodPost, c.VendorBaseURL+"/sellers/register", req, &out); err != nil {
		return "", err
	}
	if out.SellerID == "" {
		return "", fmt.Errorf("gateway: register seller: response has no sellerId")
	}
	return out.SellerID, nil
}

// SendCode calls POST /auth/send-code. The service answers 202 Accepted.
func (c *HTTPClient) SendCode(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, "send code", http.MethodPost, c.AuthBaseURL+"/auth/send-code", body, nil)
}

type verifyCodeResponse struct {
	Success bool `json:"success"`
}

// VerifyCode calls POST /auth/verify-code. A 400, 401 or 422 answer is a rejected code, not a failure.
func (c *HTTPClient) VerifyCode(ctx context.Context, email, code string) (bool, error) {
	body := map[string]string{"email": email, "code": code}
	var out verifyCodeResponse
	err := c.do(ctx, "verify code", http.MethodPost, c.AuthBaseURL+"/auth/verify-code", body, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			switch se.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity:
				return false, nil
			}
		}
		return false, err
	}
	return out.Success, nil
}

type submitRegistrationRequest struct {
	SellerID string `json:"sellerId"`
	Payload  any    `json:"payload"`
}

type submitRegistrationResponse struct {
	ConfirmationID string `json:"confirmationId"`
}

// SubmitRegistration calls POST /sellers/submit-registration.
func (c *HTTPClient) SubmitRegistration(ctx context.Context, sellerID string, payload any) (string, error) {
	var out submitRegistrationResponse
	req := submitRegistrationRequest{SellerID: sellerID, Payload: payload}
	if err := c.do(ctx, "submit registration", http.MethodPost, c.VendorBaseURL+"/sellers/submit-registration", req, &out); err != nil {
		return "", err
	}
	if out.ConfirmationID == "" {
		return "", fmt.Errorf("gateway: submit registration: response has no confirmationId")
	}
	return out.ConfirmationID, nil
}

type currentStepResponse struct {
	Step int `json:"step"`
}

// CurrentStep calls GET /sellers/{sellerId}/current-step, retrying transport errors and 5xx with backoff.
func (c *HTTPClient) CurrentStep(ctx context.Context, sellerID string) (int, error) {
	endpoint := c.VendorBaseURL + "/sellers/" + url.PathEscape(sellerID) + "/current-step"
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval()
	return backoff.Retry(ctx, func() (int, error) {
		var out currentStepResponse
		err := c.do(ctx, "current step", http.MethodGet, endpoint, nil, &out)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !se.Temporary() {
				return 0, backoff.Permanent(err)
			}
			return 0, err
		}
		return out.Step, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries()))
}

// SendRegistrationEmail calls POST /sellers/send-registration-email.
func (c *HTTPClient) SendRegistrationEmail(ctx context.Context, email, stepLink string) error {
	body := map[string]string{"email": email, "stepLink": stepLink}
	return c.do(ctx, "send registration email", http.MethodPost, c.VendorBaseURL+"/sellers/send-registration-email", body, nil)
}

func (c *HTTPClient) do(ctx context.Context, op, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gateway: %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("gateway: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %s: %w", op, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("gateway: %s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway: %s: decode response: %w", op, err)
	}
	return nil
}

// errorMessage extracts a message from a JSON error body, or returns the trimmed raw body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func (c *HTTPClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (c *HTTPClient) maxTries() uint {
	if c.MaxTries == 0 {
		return defaultMaxTries
	}
	return c.MaxTries
}

func (c *HTTPClient) retryInterval() time.Duration {
	if c.RetryInterval <= 0 {
		return defaultRetryInterval
	}
	return c.RetryInterval
}
