package gemini

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/arcana/internal/config"
	"github.com/phrazzld/arcana/internal/domain"
	"google.golang.org/genai"
)

//go:embed prompts/interpretation.tmpl
var interpretationPrompt string

// contentGenerator is the subset of genai.Models the interpreter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// promptData represents the data passed to the prompt template
type promptData struct {
	Language string
	Spread   string
	Cards    []promptCard
}

type promptCard struct {
	Position    int
	Label       string
	Card        string
	Orientation string
	Meaning     string
}

// Interpreter writes reading interpretations with a Gemini model.
type Interpreter struct {
	// logger is used for structured logging
	logger *slog.Logger

	// models performs the API call
	models contentGenerator

	// model is the name of the Gemini model to use
	model string

	// promptTemplate is the parsed template for creating prompts
	promptTemplate *template.Template

	maxRetries int
	retryDelay time.Duration
}

// NewInterpreter creates an Interpreter backed by the Gemini API.
func NewInterpreter(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Interpreter, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return newInterpreter(client.Models, cfg, logger)
}

func newInterpreter(models contentGenerator, cfg config.LLMConfig, logger *slog.Logger) (*Interpreter, error) {
	if models == nil {
		return nil, fmt.Errorf("%w: model client cannot be nil", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.New("interpretation").Parse(interpretationPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
	}

	return &Interpreter{
		logger:         logger.With("component", "gemini_interpreter"),
		models:         models,
		model:          cfg.ModelName,
		promptTemplate: tmpl,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
	}, nil
}

// Interpret returns a reflective interpretation of a completed reading in
// lang ("en" or "zh").
func (g *Interpreter) Interpret(ctx context.Context, reading domain.ReadingSession, lang string) (string, error) {
	prompt, err := g.createPrompt(reading, lang)
	if err != nil {
		return "", err
	}
	return g.callWithRetry(ctx, prompt)
}

func (g *Interpreter) createPrompt(reading domain.ReadingSession, lang string) (string, error) {
	if reading.FilledCount() != len(reading.Slots) || len(reading.Slots) == 0 {
		return "", ErrIncompleteReading
	}

	data := promptData{
		Language: "English",
		Spread:   reading.Template.Name.In(lang),
	}
	if lang == "zh" {
		data.Language = "Simplified Chinese"
	}

	for i, drawn := range reading.Slots {
		label := fmt.Sprintf("Position %d", i+1)
		if i < len(reading.Template.Positions) {
			label = reading.Template.Positions[i].Label.In(lang)
		}
		data.Cards = append(data.Cards, promptCard{
			Position:    i + 1,
			Label:       label,
			Card:        drawn.Card.Name.In(lang),
			Orientation: string(drawn.Orientation),
			Meaning:     drawn.Meaning.In(lang),
		})
	}

	var buf bytes.Buffer
	if err := g.promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// callWithRetry makes a call to the Gemini API with exponential backoff retry
// logic. Blocked and empty responses are returned immediately.
func (g *Interpreter) callWithRetry(ctx context.Context, prompt string) (string, error) {
	for attempt := 0; ; attempt++ {
		text, err := g.call(ctx, prompt)
		if err == nil {
			g.logger.InfoContext(ctx, "Gemini API call successful", "attempt", attempt+1)
			return text, nil
		}

		if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrInvalidResponse) {
			g.logger.WarnContext(ctx, "Permanent error occurred, not retrying", "error", err)
			return "", err
		}
		if attempt >= g.maxRetries {
			g.logger.WarnContext(ctx, "Maximum retry attempts reached",
				"max_retries", g.maxRetries,
				"error", err)
			return "", fmt.Errorf("%w: %v", ErrTransientFailure, err)
		}

		// delay = baseDelay * 2^attempt * [0.5, 1.0)
		backoff := float64(g.retryDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rand.Float64()*0.5))
		g.logger.InfoContext(ctx, "Retrying after delay",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrTransientFailure, ctx.Err())
		}
	}
}

func (g *Interpreter) call(ctx context.Context, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	switch {
	case err != nil:
		return "", err
	case resp == nil || len(resp.Candidates) == 0:
		return "", fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return "", ErrContentBlocked
	case resp.Candidates[0].Content == nil:
		return "", fmt.Errorf("%w: empty content in response", ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty text in response", ErrInvalidResponse)
	}
	return text, nil
}
