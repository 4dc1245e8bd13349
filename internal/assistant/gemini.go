package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-1.5-flash-latest"

	// DefaultGenerationConfig keeps replies short and moderately creative.
	DefaultGenerationConfig = `{"maxOutputTokens":150,"temperature":0.5}`
)

type GeminiConfig struct {
	APIKey string
	Model  string
	// Endpoint overrides the API base URL, mainly for tests.
	Endpoint string
	// GenerationConfig is the JSON form of the request's generationConfig.
	GenerationConfig string
}

// GeminiGenerator calls the Gemini API's generateContent method.
type GeminiGenerator struct {
	models *genai.Models
	model  string
	config genai.GenerateContentConfig
}

func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrInvalidAPIKey
	}
	model := strings.TrimPrefix(cfg.Model, "models/")
	if model == "" {
		model = DefaultModel
	}

	genConfig, err := ParseGenerationConfig(cfg.GenerationConfig)
	if err != nil {
		return nil, err
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/"
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	slog.Debug("Gemini generator initialized", "model", model, "custom_endpoint", cfg.Endpoint != "")

	return &GeminiGenerator{
		models: client.Models,
		model:  model,
		config: *genConfig,
	}, nil
}

type generationSettings struct {
	MaxOutputTokens int32    `json:"maxOutputTokens"`
	Temperature     *float32 `json:"temperature"`
	TopP            *float32 `json:"topP"`
	TopK            *float32 `json:"topK"`
}

// ParseGenerationConfig decodes a generationConfig JSON object. An empty
// string yields DefaultGenerationConfig.
func ParseGenerationConfig(raw string) (*genai.GenerateContentConfig, error) {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultGenerationConfig
	}
	var s generationSettings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse generation config: %w", err)
	}
	return &genai.GenerateContentConfig{
		MaxOutputTokens: s.MaxOutputTokens,
		Temperature:     s.Temperature,
		TopP:            s.TopP,
		TopK:            s.TopK,
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	config := g.config
	if req.Instruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.Instruction}},
		}
	}
	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, turn := range req.Turns {
		contents = append(contents, &genai.Content{
			Role:  string(turn.Role),
			Parts: []*genai.Part{{Text: turn.Text}},
		})
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, &config)
	if err != nil {
		return "", classifyAPIError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func classifyAPIError(err error) error {
	apiErr, ok := asAPIError(err)
	if !ok {
		return err
	}
	switch {
	case invalidKey(apiErr):
		return fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
	case apiErr.Status == "PERMISSION_DENIED" || apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return err
	}
}

func invalidKey(apiErr genai.APIError) bool {
	if strings.Contains(apiErr.Message, "API_KEY_INVALID") || strings.Contains(apiErr.Message, "API key not valid") {
		return true
	}
	for _, detail := range apiErr.Details {
		if reason, _ := detail["reason"].(string); reason == "API_KEY_INVALID" {
			return true
		}
	}
	return false
}
