package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/diskmon/config"
	"github.com/ftahirops/diskmon/model"
)

// newTestDispatcher disables URL validation so delivery runs against the
// loopback address httptest servers listen on.
func newTestDispatcher(t *testing.T, cfg *config.Config) *Dispatcher {
	t.Helper()
	log := zap.NewNop().Sugar()
	d := NewDispatcher(config.NewStore("", cfg, log), nil, log)
	d.validateURL = func(string) error { return nil }
	return d
}

func waitFor(t *testing.T, ch <-chan map[string]any) map[string]any {
	t.Helper()
	select {
	case body := <-ch:
		return body
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not called")
		return nil
	}
}

func TestDispatchPostsCritToWebhook(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		received <- body
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.WebhookURL = srv.URL
	d := newTestDispatcher(t, cfg)

	d.Dispatch(model.Alert{
		ID: "a1", Subject: "sda", Kind: model.RuleSmartStatus,
		Severity: model.SeverityCrit, Message: "SMART health check FAILED",
	})

	body := waitFor(t, received)
	if body["event"] != "alert" {
		t.Fatalf("event = %v", body["event"])
	}
	alert, ok := body["alert"].(map[string]any)
	if !ok || alert["subject"] != "sda" {
		t.Fatalf("alert payload: %v", body["alert"])
	}
}

func TestDispatchWarningGatedByDefault(t *testing.T) {
	called := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
	}))
	defer srv.Close()

	cfg := config.Default() // NotifyWarning defaults to false
	cfg.Notifications.WebhookURL = srv.URL
	d := newTestDispatcher(t, cfg)

	d.Dispatch(model.Alert{Subject: "sda", Severity: model.SeverityWarn})
	select {
	case <-called:
		t.Fatal("warn alert dispatched despite notify_warning=false")
	case <-time.After(200 * time.Millisecond):
	}

	// Enabling the gate lets warnings through.
	cfg2 := config.Default()
	cfg2.Notifications.WebhookURL = srv.URL
	cfg2.Notifications.NotifyWarning = true
	d2 := newTestDispatcher(t, cfg2)
	d2.Dispatch(model.Alert{Subject: "sda", Severity: model.SeverityWarn})
	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("warn alert not dispatched with notify_warning=true")
	}
}

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://hooks.example.com/alert", false},
		{"http://10.20.30.40:8080/hook", false},
		{"ftp://example.com/hook", true},
		{"http://localhost:9000/hook", true},
		{"http://127.0.0.1/hook", true},
		{"http://169.254.169.254/latest/meta-data", true},
		{"http://metadata.google.internal/computeMetadata", true},
		{"://not-a-url", true},
	}
	for _, tt := range tests {
		err := validateWebhookURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateWebhookURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}
