package platforms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

const SignatureHeader = "X-Relay-Signature"

// WebhookAdapter posts the raw event as JSON. When the target has a secret
// the body is signed with HMAC-SHA256 and the hex digest is sent as
// "sha256=<digest>" in SignatureHeader.
type WebhookAdapter struct {
	client *HTTPClient
}

func NewWebhookAdapter(client *HTTPClient) *WebhookAdapter {
	return &WebhookAdapter{client: client}
}

func (a *WebhookAdapter) Name() string {
	return Webhook
}

func (a *WebhookAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	raw, err := json.Marshal(map[string]any{
		"event": msg.EventType,
		"text":  msg.Content,
		"data":  msg.Data,
	})
	if err != nil {
		return err
	}
	var headers map[string]string
	if secret != "" {
		headers = map[string]string{SignatureHeader: Sign(secret, raw)}
	}
	return a.client.PostRaw(ctx, endpoint, headers, raw)
}

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
