// Package extract turns free-form chat text into ledger entries using a
// schema-constrained Gemini call.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/metrics"
)

const DefaultModel = "gemini-2.0-flash"

var errEmptyResponse = errors.New("empty response from model")

// Generator is the subset of *genai.Models the adapter needs.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Request carries everything the model needs to read one message.
type Request struct {
	Text       string
	Categories []string
	Nicknames  []string
	Today      time.Time
}

type Client struct {
	gen   Generator
	model string
}

func NewClient(gen Generator, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{gen: gen, model: model}
}

// NewGeminiClient builds a Client backed by the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewClient(client.Models, model), nil
}

// Analyze never fails: any problem with the call or its output is logged and
// reported as a non-accounting message.
func (c *Client) Analyze(ctx context.Context, req Request) domain.AnalysisResult {
	result, err := c.analyze(ctx, req)
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, errInvalidResult) {
			outcome = metrics.OutcomeInvalid
		}
		metrics.Extractions.WithLabelValues(outcome).Inc()
		slog.Error("Extraction failed", "error", err, "model", c.model, "text", req.Text)
		return domain.NotAccounting()
	}

	if result.IsAccounting {
		metrics.Extractions.WithLabelValues(metrics.OutcomeAccounting).Inc()
	} else {
		metrics.Extractions.WithLabelValues(metrics.OutcomeNotAccounting).Inc()
	}
	slog.Debug("Extraction done", "accounting", result.IsAccounting, "count", len(result.Entries))
	return result
}

func (c *Client) analyze(ctx context.Context, req Request) (domain.AnalysisResult, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(buildPrompt(req), genai.RoleUser),
	}

	resp, err := c.gen.GenerateContent(ctx, c.model, contents, generationConfig(req.Categories))
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return domain.AnalysisResult{}, errEmptyResponse
	}
	raw := resp.Text()
	if raw == "" {
		return domain.AnalysisResult{}, errEmptyResponse
	}

	return parseResult(raw, req.Categories)
}
