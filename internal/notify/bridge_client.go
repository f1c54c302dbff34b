// Package notify formats shop notifications and hands them to the WhatsApp
// bridge.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrBridgeNotReady = errors.New("whatsapp bridge not ready")

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, phone string, message string) error
}

type BridgeClient struct {
	http *resty.Client
}

type bridgeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	ID      string `json:"id"`
}

func NewBridgeClient(baseURL string) *BridgeClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	return &BridgeClient{http: client}
}

func (c *BridgeClient) Send(ctx context.Context, phone string, message string) error {
	result := new(bridgeResponse)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"phone": strings.TrimPrefix(phone, "+"), "message": message}).
		SetResult(result).
		SetError(result).
		Post("/send-message")
	if err != nil {
		return fmt.Errorf("call whatsapp bridge: %w", err)
	}
	if resp.StatusCode() == http.StatusServiceUnavailable {
		return ErrBridgeNotReady
	}
	if resp.IsError() || !result.Success {
		return fmt.Errorf("whatsapp bridge rejected message: status=%d, error=%s", resp.StatusCode(), result.Error)
	}
	return nil
}
