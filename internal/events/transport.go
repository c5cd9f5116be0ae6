package events

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// deliveryError wraps a transport failure with the retryability verdict the
// worker needs: retryable for network errors and 5xx/408/429, terminal for
// any other 4xx (spec §4.12).
type deliveryError struct {
	retryable bool
	err       error
}

func (e *deliveryError) Error() string { return e.err.Error() }
func (e *deliveryError) Unwrap() error { return e.err }

func retryableDeliveryError(err error) *deliveryError  { return &deliveryError{retryable: true, err: err} }
func terminalDeliveryError(err error) *deliveryError   { return &deliveryError{retryable: false, err: err} }
func isRetryableDelivery(err error) bool {
	de, ok := err.(*deliveryError)
	return !ok || de.retryable
}

// Transport delivers a single IntegrationEvent payload. Implementations
// report retryable vs. terminal failures by returning a *deliveryError
// (any other error is treated as retryable — fail open on the side of
// another attempt rather than silently dropping the event).
type Transport interface {
	Deliver(ctx context.Context, eventType string, payload []byte, webhookURL string) error
}

// WebhookTransport POSTs the event payload to the company's configured
// webhook_url. Grounded on the teacher's HTTP client usage pattern,
// generalized to resty for timeout/retry-friendly configuration per the
// domain stack (spec §4.12, §7 "backoff schedule for the event worker").
type WebhookTransport struct {
	client *resty.Client
}

func NewWebhookTransport(timeout time.Duration) *WebhookTransport {
	c := resty.New().SetTimeout(timeout)
	return &WebhookTransport{client: c}
}

func (w *WebhookTransport) Deliver(ctx context.Context, eventType string, payload []byte, webhookURL string) error {
	if webhookURL == "" {
		return terminalDeliveryError(fmt.Errorf("no webhook_url configured"))
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Event-Type", eventType).
		SetBody(payload).
		Post(webhookURL)
	if err != nil {
		return retryableDeliveryError(err)
	}

	status := resp.StatusCode()
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return retryableDeliveryError(fmt.Errorf("webhook returned %d", status))
	case status >= 400:
		return terminalDeliveryError(fmt.Errorf("webhook returned %d", status))
	default:
		return retryableDeliveryError(fmt.Errorf("webhook returned %d", status))
	}
}

// LoggingTransport is the fallback used when a company has no webhook_url
// configured: it simply logs the event, matching the spec's allowance
// that "other transports ... are selected by configuration" without
// requiring every company to run a receiver.
type LoggingTransport struct {
	log *zap.Logger
}

func NewLoggingTransport(log *zap.Logger) *LoggingTransport {
	return &LoggingTransport{log: log}
}

func (l *LoggingTransport) Deliver(ctx context.Context, eventType string, payload []byte, webhookURL string) error {
	l.log.Info("integration event delivered (logging transport)",
		zap.String("event_type", eventType), zap.ByteString("payload", payload))
	return nil
}
