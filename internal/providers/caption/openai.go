package caption

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

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
}

// OpenAICaptioner generates captions through the OpenAI chat completions API.
type OpenAICaptioner struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
}

const openAIDefaultTimeout = 30 * time.Second

const defaultOpenAIModel = "gpt-4o-mini"

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type captionPayload struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

func NewOpenAICaptioner(opts OpenAIOptions) (*OpenAICaptioner, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAICaptioner{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
	}, nil
}

func (o *OpenAICaptioner) GenerateCaption(ctx context.Context, prompt, location string) (Caption, error) {
	payload := openAIChatRequest{
		Model:       o.model,
		Temperature: 0.7,
		ResponseFormat: &openAIFormat{
			Type: "json_object",
		},
		Messages: []openAIMessage{
			{Role: "system", Content: "You write short, engaging social media captions and only respond with valid JSON of the form {\"caption\": string, \"hashtags\": [string]}."},
			{Role: "user", Content: buildCaptionPrompt(prompt, location)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return Caption{}, domain.Permanent(fmt.Errorf("encode caption request: %w", err))
	}
	endpoint := fmt.Sprintf("%s/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return Caption{}, domain.Permanent(fmt.Errorf("build caption request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return Caption{}, domain.Retryable(fmt.Errorf("caption request: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return Caption{}, classifyStatus("openai", resp.StatusCode)
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Caption{}, domain.Retryable(fmt.Errorf("decode caption response: %w", err))
	}
	if len(out.Choices) == 0 {
		return Caption{}, domain.Retryable(errors.New("openai returned no choices"))
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return Caption{}, domain.Retryable(errors.New("openai returned empty content"))
	}
	var parsed captionPayload
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return Caption{}, domain.Retryable(fmt.Errorf("parse caption payload: %w", err))
	}
	caption := strings.TrimSpace(parsed.Caption)
	if caption == "" {
		return Caption{}, domain.Retryable(errors.New("openai returned empty caption"))
	}
	return Caption{Text: caption, Hashtags: NormalizeHashtags(parsed.Hashtags)}, nil
}

func buildCaptionPrompt(prompt, location string) string {
	var sb strings.Builder
	sb.WriteString("Write an Instagram caption for an image described as: ")
	sb.WriteString(prompt)
	if location != "" {
		sb.WriteString(". The photo was taken in ")
		sb.WriteString(location)
		sb.WriteString(".")
	}
	sb.WriteString(" Include 5 to 8 relevant hashtags.")
	return sb.String()
}

// classifyStatus maps an HTTP status to the retryable/permanent taxonomy:
// rate limiting and server errors are transient, the rest of the 4xx range
// is not.
func classifyStatus(provider string, status int) error {
	err := fmt.Errorf("%s status %d", provider, status)
	if status == http.StatusTooManyRequests || status >= 500 {
		return domain.Retryable(err)
	}
	return domain.Permanent(err)
}

var _ Captioner = (*OpenAICaptioner)(nil)
