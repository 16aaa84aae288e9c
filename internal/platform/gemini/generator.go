package gemini

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/storyloom/storyboard-api/internal/config"
	"github.com/storyloom/storyboard-api/internal/domain"
	"github.com/storyloom/storyboard-api/internal/generation"
	"github.com/storyloom/storyboard-api/internal/retry"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API to run the three storyboard generation phases.
type GeminiGenerator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// templates holds the parsed per-phase prompt templates
	templates *template.Template

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string

	// executor handles transient-error retries around model calls
	executor *retry.Executor

	// call performs one model invocation and returns the response text.
	// Defaults to the real API call; tests substitute a stub.
	call func(ctx context.Context, prompt string) (string, error)
}

// NewGeminiGenerator creates a new instance of GeminiGenerator with the
// provided dependencies.
//
// Parameters:
//   - ctx: Context for the operation, which can be used for cancellation
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration containing API key, model name, and retry settings
//
// Returns:
//   - A properly initialized GeminiGenerator or an error if initialization fails
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	templates, err := template.ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt templates: %v",
			generation.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	generator := &GeminiGenerator{
		logger:    logger.With(slog.String("component", "gemini_generator")),
		config:    cfg,
		templates: templates,
		client:    client,
		model:     cfg.ModelName,
		executor:  newExecutor(cfg, logger),
	}
	generator.call = generator.callModel

	return generator, nil
}

// newExecutor builds the retry executor used around model calls. Only errors
// wrapped with generation.ErrTransientFailure are retried; safety blocks and
// parse failures are permanent.
func newExecutor(cfg config.LLMConfig, logger *slog.Logger) *retry.Executor {
	return retry.NewExecutor(retry.Config{
		MaxAttempts:       cfg.MaxAttempts,
		InitialDelay:      time.Duration(cfg.InitialDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryableMatchers: []retry.Matcher{
			func(err error) bool { return errors.Is(err, generation.ErrTransientFailure) },
		},
	}, logger)
}

// GenerateProfile runs the phase-0 profile analysis for a source video.
func (g *GeminiGenerator) GenerateProfile(ctx context.Context, videoID string) (*generation.ProfileResult, error) {
	if videoID == "" {
		return nil, ErrEmptyVideoID
	}

	prompt, err := g.createPrompt("profile.tmpl", profilePromptData{VideoID: videoID})
	if err != nil {
		return nil, err
	}

	text, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed profileSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse profile response: %v",
			generation.ErrInvalidResponse, err)
	}

	if len(parsed.Profile) == 0 {
		return nil, fmt.Errorf("%w: profile response missing profile object",
			generation.ErrInvalidResponse)
	}

	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %f outside [0, 1]",
			generation.ErrInvalidResponse, parsed.Confidence)
	}

	g.logger.InfoContext(ctx, "Profile analysis complete",
		slog.String("video_id", videoID),
		slog.Float64("confidence", parsed.Confidence))

	return &generation.ProfileResult{
		Profile:    parsed.Profile,
		Confidence: parsed.Confidence,
	}, nil
}

// GenerateEntities runs the phase-1 entity extraction.
func (g *GeminiGenerator) GenerateEntities(
	ctx context.Context,
	videoID string,
	profile json.RawMessage,
) (*generation.EntitiesResult, error) {
	if videoID == "" {
		return nil, ErrEmptyVideoID
	}

	prompt, err := g.createPrompt("entities.tmpl", entitiesPromptData{
		VideoID: videoID,
		Profile: string(profile),
	})
	if err != nil {
		return nil, err
	}

	text, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed entitiesSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse entities response: %v",
			generation.ErrInvalidResponse, err)
	}

	if len(parsed.Entities) == 0 {
		return nil, fmt.Errorf("%w: no entities in response", generation.ErrInvalidResponse)
	}

	entities := make([]domain.Entity, 0, len(parsed.Entities))
	for i, e := range parsed.Entities {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entity %d missing name", generation.ErrInvalidResponse, i)
		}
		entities = append(entities, domain.Entity{
			Name:        e.Name,
			Kind:        e.Kind,
			Description: e.Description,
		})
	}

	// The model may omit the explicit registry; fall back to deriving it
	// from the entity descriptions.
	registry := domain.EntityRegistry(parsed.Registry)
	if len(registry) == 0 {
		registry = make(domain.EntityRegistry, len(entities))
		for _, e := range entities {
			registry[e.Name] = e.Description
		}
	}

	g.logger.InfoContext(ctx, "Entity extraction complete",
		slog.String("video_id", videoID),
		slog.Int("entity_count", len(entities)))

	return &generation.EntitiesResult{
		Entities:   entities,
		Background: parsed.Background,
		Registry:   registry,
	}, nil
}

// GenerateSceneBatch runs one phase-2 scene batch generation.
func (g *GeminiGenerator) GenerateSceneBatch(
	ctx context.Context,
	req generation.SceneBatchRequest,
) (*generation.SceneBatchResult, error) {
	if req.VideoID == "" {
		return nil, ErrEmptyVideoID
	}

	if req.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive", generation.ErrInvalidConfig)
	}

	prompt, err := g.createPrompt("scenes.tmpl", scenesPromptData{
		VideoID:    req.VideoID,
		Mode:       string(req.Mode),
		BatchIndex: req.BatchIndex,
		BatchSize:  req.BatchSize,
		Profile:    string(req.Profile),
		Background: req.Background,
		Entities:   req.Entities,
		Registry:   req.Registry,
	})
	if err != nil {
		return nil, err
	}

	text, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed scenesSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse scenes response: %v",
			generation.ErrInvalidResponse, err)
	}

	if len(parsed.Scenes) == 0 {
		return nil, fmt.Errorf("%w: no scenes in response", generation.ErrInvalidResponse)
	}

	scenes := make([]domain.Scene, 0, len(parsed.Scenes))
	for i, s := range parsed.Scenes {
		scene := domain.Scene{
			Description: s.Description,
			Characters:  s.Characters,
			Props:       s.Props,
			Setting:     s.Setting,
			Extra:       s.Extra,
		}
		if err := scene.Validate(); err != nil {
			return nil, fmt.Errorf("%w: scene %d invalid: %v", generation.ErrInvalidResponse, i, err)
		}
		scenes = append(scenes, scene)
	}

	g.logger.InfoContext(ctx, "Scene batch generated",
		slog.String("video_id", req.VideoID),
		slog.Int("batch_index", req.BatchIndex),
		slog.Int("scene_count", len(scenes)))

	return &generation.SceneBatchResult{
		Scenes:   scenes,
		Registry: domain.EntityRegistry(parsed.Registry),
	}, nil
}

// createPrompt renders the named prompt template with the provided data.
func (g *GeminiGenerator) createPrompt(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := g.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", name, err)
	}
	return buf.String(), nil
}

// generate runs one prompt through the model with retries and returns the
// raw response text.
func (g *GeminiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	var text string
	err := g.executor.Do(ctx, func(ctx context.Context) error {
		var callErr error
		text, callErr = g.call(ctx, prompt)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// callModel makes a single call to the Gemini API and maps the outcome onto
// the generation error sentinels. Transport errors are treated as transient;
// safety blocks and empty responses are permanent.
func (g *GeminiGenerator) callModel(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: finish reason safety", generation.ErrContentBlocked)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	return text, nil
}
