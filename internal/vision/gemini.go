package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ropl-btc/project-tasks/internal/model"
)

const (
	DefaultModel    = "gemini-1.5-flash"
	maxOutputTokens = 1024
)

// ErrInvalidImage means the image is not valid base64.
var ErrInvalidImage = errors.New("image is not valid base64")

// Option adjusts the Gemini client before it is created.
type Option func(cfg *genai.ClientConfig)

// WithEndpoint points the client at another base URL, e.g. a proxy or a test server.
func WithEndpoint(baseURL string) Option {
	return func(cfg *genai.ClientConfig) { cfg.HTTPOptions.BaseURL = baseURL }
}

func WithHTTPClient(c *http.Client) Option {
	return func(cfg *genai.ClientConfig) { cfg.HTTPClient = c }
}

// GeminiExtractor asks a Gemini model to read the list.
type GeminiExtractor struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiExtractor builds an extractor on the Gemini Developer API.
func NewGeminiExtractor(ctx context.Context, apiKey, modelName string, logger *zap.Logger, opts ...Option) (*GeminiExtractor, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiExtractor{client: client, model: modelName, logger: logger}, nil
}

func (g *GeminiExtractor) Extract(ctx context.Context, imageBase64 string) ([]model.ExtractedTask, error) {
	image, err := base64.StdEncoding.DecodeString(strings.TrimSpace(imageBase64))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, "image/jpeg"),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: maxOutputTokens,
	}

	resp, err := g.client.Models.GenerateContent(ctx, strings.TrimPrefix(g.model, "models/"), contents, config)
	if err != nil {
		return nil, wrapError(err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	tasks, err := ParseTasks(text)
	if err != nil {
		g.logger.Warn("could not parse extraction", zap.String("raw", text), zap.Error(err))
		return nil, err
	}
	g.logger.Info("extracted tasks from image",
		zap.Int("image_size", len(image)), zap.Int("count", len(tasks)))
	return tasks, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("gemini rejected the api key: %w", err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("gemini rate limited: %w", err)
		}
	}
	return fmt.Errorf("gemini request failed: %w", err)
}
