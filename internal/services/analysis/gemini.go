package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
	"google.golang.org/genai"
)

// GeminiEngine analyzes comment batches with the Gemini API.
type GeminiEngine struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  arbor.ILogger
}

var _ interfaces.AnalysisEngine = (*GeminiEngine)(nil)

// NewGeminiEngine creates the Gemini-backed engine.
func NewGeminiEngine(cfg *common.GeminiConfig, logger arbor.ILogger) (*GeminiEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or analysis.gemini.api_key)")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", cfg.Timeout, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	engine := &GeminiEngine{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger.WithPrefix("analysis.gemini"),
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Msg("Gemini analysis engine initialized")

	return engine, nil
}

// Provider identifies the engine.
func (e *GeminiEngine) Provider() string { return "gemini" }

// Analyze sends the batch to the Gemini API and parses the JSON reply
// into a structured result.
func (e *GeminiEngine) Analyze(ctx context.Context, comments []models.Comment) (*models.AnalysisResult, error) {
	if len(comments) == 0 {
		return nil, fmt.Errorf("no comments to analyze")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	startTime := time.Now()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(analysisSystemPrompt, genai.RoleUser),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(buildPrompt(comments), genai.RoleUser),
	}

	resp, err := e.client.Models.GenerateContent(timeoutCtx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Gemini API")
	}

	parsed, err := parseEngineResponse(text.String())
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Int("comments", len(comments)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini analysis finished")

	return &models.AnalysisResult{
		Provider:         e.Provider(),
		Sentiment:        parsed.Sentiment,
		Emotions:         parsed.Emotions,
		Themes:           parsed.Themes,
		Keywords:         parsed.Keywords,
		Summary:          parsed.Summary,
		CommentsAnalyzed: len(comments),
		AnalyzedAt:       time.Now().UTC(),
	}, nil
}
