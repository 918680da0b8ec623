package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/metrics"

	"github.com/rs/zerolog"
)

// smsRetryIntervals defines the wait before each redelivery attempt.
var smsRetryIntervals = []time.Duration{
	2 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// SMSPayload is the JSON body posted to the SMS gateway.
type SMSPayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SMSNotifierConfig holds the gateway endpoint and credentials.
type SMSNotifierConfig struct {
	URL    string
	APIKey string
	Secret string
	Sender string
}

// smsNotifier implements ports.Notifier against an HTTP SMS gateway.
type smsNotifier struct {
	cfg        SMSNotifierConfig
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	retries    []time.Duration
	metrics    *metrics.Collector
	log        zerolog.Logger
}

// NewSMSNotifier creates a notifier that posts signed messages to cfg.URL.
func NewSMSNotifier(
	cfg SMSNotifierConfig,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	mx *metrics.Collector,
	log zerolog.Logger,
) ports.Notifier {
	return &smsNotifier{
		cfg:        cfg,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		retries:    smsRetryIntervals,
		metrics:    mx,
		log:        log,
	}
}

// Send queues the message for asynchronous delivery with retries.
// Delivery failures are logged, never returned.
func (s *smsNotifier) Send(_ context.Context, to string, message string) error {
	payload := SMSPayload{
		From:      s.cfg.Sender,
		To:        to,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}
	target, err := url.Parse(s.cfg.URL)
	if err != nil {
		return fmt.Errorf("parse sms gateway url: %w", err)
	}
	canonical := CanonicalRequest(http.MethodPost, target.EscapedPath(), payload.Timestamp, body)
	signature := s.sigSvc.Sign(s.cfg.Secret, canonical)

	go s.deliverWithRetries(body, signature, payload.Timestamp, to)
	return nil
}

func (s *smsNotifier) deliverWithRetries(body []byte, signature string, ts int64, to string) {
	for attempt := 0; attempt <= len(s.retries); attempt++ {
		if attempt > 0 {
			time.Sleep(s.retries[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, s.cfg.URL, bytes.NewReader(body))
		if err != nil {
			s.log.Error().Err(err).Str("to", to).Msg("sms: failed to create request")
			break
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", s.cfg.APIKey)
		req.Header.Set("X-Timestamp", fmt.Sprintf("%d", ts))
		req.Header.Set("X-Signature", signature)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Str("to", to).Int("attempt", attempt+1).Msg("sms: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Debug().Str("to", to).Int("attempt", attempt+1).Msg("sms: delivered")
			return
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			s.log.Error().Str("to", to).Int("status", resp.StatusCode).Msg("sms: rejected by gateway")
			break
		}

		s.log.Warn().Str("to", to).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("sms: non-2xx response, retrying")
	}

	s.metrics.RecordNotificationFailure()
	s.log.Error().Str("to", to).Msg("sms: message not delivered")
}

// logNotifier records that a message would have been sent. Bodies can carry
// secret codes, so only their length is logged.
type logNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a notifier for environments without an SMS gateway.
func NewLogNotifier(log zerolog.Logger) ports.Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) Send(_ context.Context, to string, message string) error {
	n.log.Info().Str("to", to).Int("sms_length", len(message)).Msg("sms (not sent)")
	return nil
}

// notifyAsync hands a message to the notifier without blocking the caller.
func notifyAsync(n ports.Notifier, log zerolog.Logger, to, message string) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.Send(ctx, to, message); err != nil {
			log.Warn().Err(err).Str("to", to).Msg("notification dispatch failed")
		}
	}()
}
