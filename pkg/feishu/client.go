package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kamishop/kamishop-backend/pkg/config"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
	"github.com/kamishop/kamishop-backend/pkg/retry"
)

// Client posts interactive cards to a Feishu group webhook.
type Client struct {
	webhookURL string
	httpClient *http.Client
	policy     retry.Policy
}

type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// NewClient builds a webhook client; an empty URL yields a disabled client
// whose sends are silent no-ops.
func NewClient(cfg config.FeishuConfig) *Client {
	policy := retry.DefaultPolicy
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}
	return &Client{
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     policy,
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.webhookURL != ""
}

// SendCard delivers an interactive card message.
func (c *Client) SendCard(ctx context.Context, card Card) error {
	if !c.Enabled() {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"msg_type": "interactive",
		"card":     card,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal feishu card")
	}

	return retry.Do(ctx, c.policy, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build feishu request"))
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "post feishu webhook")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read feishu response")
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("feishu webhook status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return retry.Permanent(pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("feishu webhook status %d", resp.StatusCode)))
		}

		var decoded apiResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return retry.Permanent(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode feishu response"))
		}
		if decoded.Code != 0 {
			return retry.Permanent(pkgerrors.New(pkgerrors.CodeDependency,
				fmt.Sprintf("feishu api error code=%d msg=%s", decoded.Code, decoded.Msg)))
		}
		return nil
	})
}
