package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/config"
)

// tagPrompt asks for a machine-parseable reply. Anything else still
// degrades to fallback tags rather than failing the job.
const tagPrompt = "Analyze this image and provide 5-10 descriptive tags as a comma-separated list. Only return the tags, nothing else."

const (
	defaultModel    = "gemini-2.0-flash"
	defaultEndpoint = "https://generativelanguage.googleapis.com"
)

// geminiClient calls the generateContent REST endpoint. Transient HTTP
// failures are retried by the underlying client.
type geminiClient struct {
	http     *http.Client
	apiKey   string
	model    string
	endpoint string
}

func newGeminiClient(cfg config.GeminiConfig) *geminiClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = retryLogger{}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &geminiClient{
		http:     rc.StandardClient(),
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// describe sends the image inline and returns the model's raw text reply.
func (c *geminiClient) describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: tagPrompt},
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gemini returned %d: %s", resp.StatusCode, bytes.TrimSpace(payload))
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// retryLogger forwards the retry client's noise to the structured logger,
// keeping only warnings and errors.
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...any) { logger.Error(msg, kv...) }
func (retryLogger) Warn(msg string, kv ...any)  { logger.Warn(msg, kv...) }
func (retryLogger) Info(string, ...any)         {}
func (retryLogger) Debug(string, ...any)        {}
