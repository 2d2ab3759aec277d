package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mehmetcc/campaign-auth-service/internal/utils"
)

// Sender delivers a text message to an E.164 phone number.
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

// ErrSmsNotConfigured is returned outside local development when no gateway is set.
var ErrSmsNotConfigured = errors.New("SMS_GATEWAY_URL must be set outside local development")

// NewSender returns the HTTP gateway sender. Only in the local environment may
// the gateway be left unset, in which case messages are written to the log.
func NewSender(cfg utils.SmsConfig, env string, logger *zap.Logger) (Sender, error) {
	if cfg.GatewayURL != "" {
		return NewGatewaySender(cfg, &http.Client{Timeout: cfg.Timeout}, logger), nil
	}
	if env != utils.EnvLocal {
		return nil, ErrSmsNotConfigured
	}
	logger.Warn("SMS_GATEWAY_URL is empty, one-time codes will only be logged")
	return NewLogSender(logger), nil
}

type gatewayMessage struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

type gatewaySender struct {
	url    string
	apiKey string
	from   string
	client *http.Client
	logger *zap.Logger
}

func NewGatewaySender(cfg utils.SmsConfig, client *http.Client, logger *zap.Logger) Sender {
	return &gatewaySender{
		url:    cfg.GatewayURL,
		apiKey: cfg.APIKey,
		from:   cfg.Sender,
		client: client,
		logger: logger,
	}
}

func (s *gatewaySender) Send(ctx context.Context, to, message string) error {
	body, err := json.Marshal(gatewayMessage{To: to, From: s.from, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms gateway responded with status %d", resp.StatusCode)
	}
	return nil
}

type logSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) Sender {
	return &logSender{logger: logger}
}

func (s *logSender) Send(_ context.Context, to, message string) error {
	s.logger.Info("sms", zap.String("to", to), zap.String("message", message))
	return nil
}
