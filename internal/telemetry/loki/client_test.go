package loki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func captureServer(t *testing.T, status int, got *PushRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode push: %v", err)
		}
		w.WriteHeader(status)
	}))
}

func TestPushEventJSON_LabelsAndTimestamp(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusNoContent, &got)
	defer srv.Close()

	raw := []byte(`{"sessionId":"s-1","eventType":"step_advanced","source":"registration","sellerType":"professional","createdAt":"2026-03-01T09:00:00.5Z"}`)
	if err := NewClient(srv.URL+"/").PushEventJSON(context.Background(), raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(got.Streams))
	}
	labels := got.Streams[0].Stream
	want := map[string]string{"job": "seller-onboarding", "event_type": "step_advanced", "source": "registration", "seller_type": "professional"}
	for k, v := range want {
		if labels[k] != v {
			t.Errorf("label %s = %q, want %q", k, labels[k], v)
		}
	}
	if _, ok := labels["session_id"]; ok {
		t.Error("session id must not be a label")
	}
	ts := time.Date(2026, 3, 1, 9, 0, 0, 500_000_000, time.UTC).UnixNano()
	if v := got.Streams[0].Values[0]; v[0] != jsonInt(ts) || v[1] != string(raw) {
		t.Errorf("value = %v", v)
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestPushEventJSON_UnparseableLine(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusNoContent, &got)
	defer srv.Close()

	c := NewClient(srv.URL)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.nowF = func() time.Time { return now }
	if err := c.PushEventJSON(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	if labels := got.Streams[0].Stream; len(labels) != 1 || labels["job"] != "seller-onboarding" {
		t.Errorf("labels = %v, want only job", labels)
	}
	if got.Streams[0].Values[0][0] != jsonInt(now.UnixNano()) {
		t.Errorf("timestamp = %s", got.Streams[0].Values[0][0])
	}
}

func TestPushEvent_SanitizesLabels(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusNoContent, &got)
	defer srv.Close()

	err := NewClient(srv.URL).PushEvent(context.Background(), time.Now(), "line", map[string]string{
		"event_type": " step advanced/1 ",
		"empty":      "   ",
	})
	if err != nil {
		t.Fatalf("PushEvent: %v", err)
	}
	labels := got.Streams[0].Stream
	if labels["event_type"] != "step_advanced_1" {
		t.Errorf("event_type = %q", labels["event_type"])
	}
	if _, ok := labels["empty"]; ok {
		t.Error("blank label should be dropped")
	}
}

func TestPushEvent_Errors(t *testing.T) {
	if err := NewClient("").PushEvent(context.Background(), time.Now(), "x", nil); err == nil {
		t.Error("expected error for empty base URL")
	}
	var got PushRequest
	srv := captureServer(t, http.StatusServiceUnavailable, &got)
	defer srv.Close()
	err := NewClient(srv.URL).PushEvent(context.Background(), time.Now(), "x", nil)
	var se *StatusError
	if !errors.As(err, &se) || !se.Retryable() {
		t.Fatalf("err = %v, want retryable StatusError", err)
	}
	if (&StatusError{StatusCode: http.StatusBadRequest}).Retryable() {
		t.Error("400 should not be retryable")
	}
}

func TestPushEventJSONWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int
		wantErr   bool
	}{
		{"first try", []int{http.StatusNoContent}, 1, false},
		{"retries 503", []int{http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusNoContent}, 3, false},
		{"gives up", []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway}, 3, true},
		{"400 is permanent", []int{http.StatusBadRequest, http.StatusNoContent}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1)) - 1
				status := tt.statuses[len(tt.statuses)-1]
				if n < len(tt.statuses) {
					status = tt.statuses[n]
				}
				w.WriteHeader(status)
			}))
			defer srv.Close()

			c := NewClient(srv.URL)
			c.retryInterval = time.Millisecond
			err := c.PushEventJSONWithRetry(context.Background(), []byte(`{"eventType":"session_started"}`), 3)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := int(calls.Load()); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}
