package invoice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client reads invoices through a vision model gateway. The gateway receives the prompt
// and the base64 image and answers with the model's text reply.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type extractRequest struct {
	Prompt   string `json:"prompt"`
	MimeType string `json:"mimeType"`
	Image    string `json:"image"`
}

type extractResponse struct {
	Text string `json:"text"`
}

func (c *Client) Extract(ctx context.Context, image []byte, mimeType string) (Data, error) {
	body, err := json.Marshal(extractRequest{
		Prompt:   Prompt,
		MimeType: mimeType,
		Image:    base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return Data{}, fmt.Errorf("%w: encode request: %v", ErrExtraction, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Data{}, fmt.Errorf("%w: create request: %v", ErrExtraction, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Data{}, fmt.Errorf("%w: gateway status=%d, body=%s", ErrExtraction, resp.StatusCode, bytes.TrimSpace(detail))
	}
	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Data{}, fmt.Errorf("%w: decode gateway response: %v", ErrExtraction, err)
	}
	return Decode([]byte(out.Text))
}
