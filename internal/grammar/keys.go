package grammar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// KeySource supplies the model API key for one request.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a key taken from configuration.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	if strings.TrimSpace(string(k)) == "" {
		return "", &Error{Status: http.StatusBadGateway, Message: "No API key returned"}
	}
	return string(k), nil
}

// ProxyKey fetches the key from a secret proxy on every call: an empty POST
// answered by {"apiKey": "..."}.
type ProxyKey struct {
	URL  string
	HTTP *http.Client
}

func (p *ProxyKey) APIKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, nil)
	if err != nil {
		return "", err
	}
	c := p.HTTP
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", &Error{Status: http.StatusBadGateway, Message: "Failed to obtain API key", Detail: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{Status: http.StatusBadGateway, Message: "Failed to obtain API key", Detail: string(body)}
	}
	var out struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode key reply: %w", err)
	}
	if out.APIKey == "" {
		return "", &Error{Status: http.StatusBadGateway, Message: "No API key returned"}
	}
	return out.APIKey, nil
}
