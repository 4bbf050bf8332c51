package approval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultWebhookTimeout = 30 * time.Second

// Webhook POSTs each request as JSON to a remote endpoint and decodes the
// decision from the body. Any transport failure, timeout, or non-200 status
// resolves to a denial with a diagnostic reason, never an approval.
type Webhook struct {
	URL     string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

// NewWebhook builds a provider for the given endpoint. token may be empty.
func NewWebhook(url, token string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &Webhook{
		URL:     url,
		Token:   token,
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}
}

// RequestApproval performs the HTTP round trip.
func (p *Webhook) RequestApproval(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Denied("webhook: encode request: " + err.Error()), nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return Denied("webhook: build request: " + err.Error()), nil
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.Token)
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: p.Timeout}
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return Denied("webhook: request failed: " + err.Error()), nil
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return Denied(fmt.Sprintf("webhook: endpoint returned %d", httpResp.StatusCode)), nil
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Denied("webhook: decode response: " + err.Error()), nil
	}
	return &resp, nil
}
