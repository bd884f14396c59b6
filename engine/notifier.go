package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ftahirops/diskmon/config"
	"github.com/ftahirops/diskmon/model"
)

// Dispatcher fans alert transitions out to the configured side channels:
// webhook POST and desktop notification. Delivery is asynchronous and
// best-effort; a failed or suppressed delivery never affects alert state.
type Dispatcher struct {
	conf    *config.Store
	client  *http.Client
	limiter *rate.Limiter
	metrics *Metrics
	log     *zap.SugaredLogger

	// validateURL guards outbound webhook targets. Tests swap it out so
	// delivery can be exercised against a loopback server.
	validateURL func(string) error
}

// NewDispatcher creates a dispatcher. The webhook channel is rate limited to
// one delivery per second with a small burst, so an alert storm cannot flood
// the receiver.
func NewDispatcher(conf *config.Store, metrics *Metrics, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		conf:        conf,
		client:      &http.Client{Timeout: 5 * time.Second},
		limiter:     rate.NewLimiter(rate.Every(time.Second), 5),
		metrics:     metrics,
		log:         log,
		validateURL: validateWebhookURL,
	}
}

// Dispatch delivers one alert transition asynchronously, honoring the
// per-severity notification gates.
func (d *Dispatcher) Dispatch(a model.Alert) {
	nc := d.conf.Current().Notifications
	switch a.Severity {
	case model.SeverityCrit:
		if !nc.NotifyCritical {
			return
		}
	case model.SeverityWarn:
		if !nc.NotifyWarning {
			return
		}
	default:
		return
	}
	if nc.WebhookURL == "" && !nc.NotifySend {
		return
	}
	go d.deliver(nc, a)
}

func (d *Dispatcher) deliver(nc config.NotificationsConfig, a model.Alert) {
	if nc.WebhookURL != "" {
		if err := d.postWebhook(nc.WebhookURL, a); err != nil {
			d.metrics.NotifyFailure("webhook")
			d.log.Warnw("webhook delivery failed", "subject", a.Subject, "error", err)
		}
	}
	if nc.NotifySend {
		if err := d.notifySend(a); err != nil {
			d.metrics.NotifyFailure("notify-send")
			d.log.Debugw("notify-send failed", "subject", a.Subject, "error", err)
		}
	}
}

// validateWebhookURL checks that the webhook URL uses http/https and does not
// target localhost, link-local, or cloud metadata endpoints.
func validateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("webhook URL must use http or https scheme, got %q", scheme)
	}
	host := strings.ToLower(u.Hostname())
	blocked := []string{"169.254.169.254", "metadata.google.internal", "localhost", "127.0.0.1", "::1", "[::1]"}
	for _, b := range blocked {
		if host == b {
			return fmt.Errorf("webhook URL host %q is blocked", host)
		}
	}
	return nil
}

func (d *Dispatcher) postWebhook(webhook string, a model.Alert) error {
	if err := d.validateURL(webhook); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body := map[string]any{
		"event": "alert",
		"alert": a,
		"ts":    time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

func (d *Dispatcher) notifySend(a model.Alert) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	urgency := "normal"
	if a.Severity == model.SeverityCrit {
		urgency = "critical"
	}
	summary := fmt.Sprintf("%s: %s", a.Severity, a.Subject)
	cmd := exec.CommandContext(ctx, "notify-send", "-u", urgency, "-a", "diskmon", summary, a.Message)
	return cmd.Run()
}
