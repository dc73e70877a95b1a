package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type Config struct {
	BaseURL string
	APIKey  string
}

// HTTPProvider talks to the voice platform's management API.
type HTTPProvider struct {
	cfg    Config
	client *http.Client
}

func NewHTTP(cfg Config, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{cfg: cfg, client: client}
}

func (p *HTTPProvider) ReleasePhoneNumber(ctx context.Context, accountID snowflake.ID) error {
	url := fmt.Sprintf("%s/v1/accounts/%s/phone-number",
		strings.TrimRight(p.cfg.BaseURL, "/"), accountID.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	// 404 means the account holds no number; release is idempotent.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("release phone number: unexpected status %d", resp.StatusCode)
	}
	return nil
}
