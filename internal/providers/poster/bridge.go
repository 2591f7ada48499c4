package poster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"contentpipe/internal/domain"
)

// Posting drives a real browser session and can take a while.
const bridgeDefaultTimeout = 5 * time.Minute

type BridgeOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

// BridgePoster publishes through the local browser-automation service. The
// service exposes a single POST /post endpoint and reports a conflict when
// the same image was already published.
type BridgePoster struct {
	baseURL string
	client  *http.Client
}

type bridgePostRequest struct {
	ImageRef string `json:"image_ref"`
	Caption  string `json:"caption"`
}

func NewBridgePoster(opts BridgeOptions) (*BridgePoster, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("poster base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: bridgeDefaultTimeout}
	}
	return &BridgePoster{baseURL: baseURL, client: client}, nil
}

func (p *BridgePoster) Post(ctx context.Context, imageRef, caption string) error {
	if strings.TrimSpace(imageRef) == "" {
		return domain.Permanent(errors.New("image ref is required"))
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(bridgePostRequest{ImageRef: imageRef, Caption: caption}); err != nil {
		return domain.Permanent(fmt.Errorf("encode post request: %w", err))
	}
	endpoint := fmt.Sprintf("%s/post", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return domain.Permanent(fmt.Errorf("build post request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return domain.Retryable(fmt.Errorf("post request: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("poster status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return domain.Retryable(statusErr)
		}
		return domain.Permanent(statusErr)
	}
	return nil
}

var _ Poster = (*BridgePoster)(nil)
