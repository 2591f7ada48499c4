package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"contentpipe/internal/domain"
)

// renderProfile is the sampler configuration for one content kind. Posts are
// square; stories use the taller portrait canvas.
type renderProfile struct {
	Sampler  string
	Steps    int
	CFGScale float64
	Width    int
	Height   int
}

var renderProfiles = map[domain.Kind]renderProfile{
	domain.KindPost:  {Sampler: "DPM++ 2M", Steps: 120, CFGScale: 3.5, Width: 512, Height: 512},
	domain.KindStory: {Sampler: "DPM++ 2M Karras", Steps: 100, CFGScale: 7, Width: 720, Height: 1080},
}

// Generation regularly takes minutes on a busy GPU.
const sdDefaultTimeout = 15 * time.Minute

type SDOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

// SDGenerator renders images through a Stable Diffusion WebUI instance.
type SDGenerator struct {
	baseURL string
	client  *http.Client
}

type sdTxt2ImgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	SamplerName    string  `json:"sampler_name"`
	Steps          int     `json:"steps"`
	CFGScale       float64 `json:"cfg_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	RestoreFaces   bool    `json:"restore_faces"`
}

type sdTxt2ImgResponse struct {
	Images []string `json:"images"`
}

func NewSDGenerator(opts SDOptions) (*SDGenerator, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("stable diffusion base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: sdDefaultTimeout}
	}
	return &SDGenerator{baseURL: baseURL, client: client}, nil
}

func (g *SDGenerator) GenerateImage(ctx context.Context, req GenerateRequest) (Image, error) {
	profile, ok := renderProfiles[req.Kind]
	if !ok {
		return Image{}, domain.Permanent(fmt.Errorf("no render profile for kind %q", req.Kind))
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return Image{}, domain.Permanent(errors.New("image prompt is required"))
	}
	payload := sdTxt2ImgRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		SamplerName:    profile.Sampler,
		Steps:          profile.Steps,
		CFGScale:       profile.CFGScale,
		Width:          profile.Width,
		Height:         profile.Height,
		RestoreFaces:   true,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return Image{}, domain.Permanent(fmt.Errorf("encode txt2img request: %w", err))
	}
	endpoint := fmt.Sprintf("%s/sdapi/v1/txt2img", g.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return Image{}, domain.Permanent(fmt.Errorf("build txt2img request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Image{}, domain.Retryable(fmt.Errorf("txt2img request: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("stable diffusion status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return Image{}, domain.Retryable(statusErr)
		}
		return Image{}, domain.Permanent(statusErr)
	}
	var out sdTxt2ImgResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Image{}, domain.Retryable(fmt.Errorf("decode txt2img response: %w", err))
	}
	if len(out.Images) == 0 {
		return Image{}, domain.Retryable(errors.New("stable diffusion returned no images"))
	}
	data, err := base64.StdEncoding.DecodeString(out.Images[0])
	if err != nil {
		return Image{}, domain.Retryable(fmt.Errorf("decode image payload: %w", err))
	}
	return Image{
		Data:   data,
		Format: "image/png",
		Width:  profile.Width,
		Height: profile.Height,
	}, nil
}

var _ Generator = (*SDGenerator)(nil)
