// Package bridge exposes a small HTTP front for sending WhatsApp text
// messages through the Cloud API.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"clothpos/backend/internal/config"
)

var ErrNotReady = errors.New("whatsapp session not ready")

// Session is a live WhatsApp sender.
type Session interface {
	Ready() bool
	Send(ctx context.Context, phone string, body string) (string, error)
}

// CloudSession sends through the WhatsApp Cloud API. It is ready once a probe
// of the phone-number endpoint succeeds and stays ready until a probe or send
// is rejected.
type CloudSession struct {
	http          *resty.Client
	phoneNumberID string
	logger        *zap.Logger
	ready         atomic.Bool
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func NewCloudSession(cfg config.BridgeConfig, logger *zap.Logger) *CloudSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	client := resty.New().
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &CloudSession{
		http:          client,
		phoneNumberID: cfg.PhoneNumberID,
		logger:        logger,
	}
}

func (s *CloudSession) Ready() bool {
	return s.ready.Load()
}

func (s *CloudSession) setReady(ready bool) {
	if s.ready.Swap(ready) == ready {
		return
	}
	if ready {
		s.logger.Info("whatsapp session ready", zap.String("phone_number_id", s.phoneNumberID))
	} else {
		s.logger.Warn("whatsapp session disconnected", zap.String("phone_number_id", s.phoneNumberID))
	}
}

// Probe checks that the configured phone number is reachable with the token.
func (s *CloudSession) Probe(ctx context.Context) error {
	apiErr := new(apiError)
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("fields", "id").
		SetError(apiErr).
		Get(s.phoneNumberID)
	if err != nil {
		s.setReady(false)
		return fmt.Errorf("probe whatsapp phone number: %w", err)
	}
	if resp.IsError() {
		s.setReady(false)
		return fmt.Errorf("probe whatsapp phone number: status=%d, message=%s", resp.StatusCode(), apiErr.Error.Message)
	}
	s.setReady(true)
	return nil
}

// Run probes immediately and then on every tick until ctx is done.
func (s *CloudSession) Run(ctx context.Context, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := s.Probe(probeCtx); err != nil {
			s.logger.Warn("whatsapp probe failed", zap.Error(err))
		}
	}

	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

// Send posts a text message and returns the Cloud API message id.
func (s *CloudSession) Send(ctx context.Context, phone string, body string) (string, error) {
	if !s.Ready() {
		return "", ErrNotReady
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text": map[string]any{
			"body":        body,
			"preview_url": false,
		},
	}

	result := new(sendResponse)
	apiErr := new(apiError)
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/messages", s.phoneNumberID))
	if err != nil {
		return "", fmt.Errorf("send whatsapp message: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		s.setReady(false)
	}
	if resp.IsError() {
		code := resp.StatusCode()
		if apiErr.Error.Code != 0 {
			code = apiErr.Error.Code
		}
		return "", fmt.Errorf("whatsapp api error: code=%d, message=%s", code, apiErr.Error.Message)
	}

	if len(result.Messages) == 0 {
		return "", nil
	}
	return result.Messages[0].ID, nil
}
