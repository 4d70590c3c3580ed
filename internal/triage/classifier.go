// Package triage classifies incoming bug reports: which component they
// belong to, what kind of report they are, and how severe they look. The
// classification feeds the categorical signal and priority ranking.
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"databug.app/engine/common/llm"
	"databug.app/engine/internal/model"
)

type Classifier interface {
	Classify(ctx context.Context, bug *model.Bug) (model.Classification, error)
	Model() string
}

type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// classification mirrors model.Classification as a strict response schema.
type classification struct {
	Component  string  `json:"component" jsonschema_description:"Owning component or service, lowercase"`
	Type       string  `json:"type" jsonschema:"enum=bug,enum=feature,enum=question"`
	Severity   string  `json:"severity" jsonschema:"enum=critical,enum=high,enum=medium,enum=low"`
	Confidence float64 `json:"confidence" jsonschema_description:"Classifier confidence in [0,1]"`
	Reasoning  string  `json:"reasoning" jsonschema_description:"One-sentence justification"`
}

const systemPrompt = `You triage bug reports for a data platform. ` +
	`Given a report's title, description and labels, classify it. ` +
	`The component must be the lowercase name of the owning service or pipeline. ` +
	`Severity reflects user impact, not reporter tone. ` +
	`Confidence reflects how much signal the report actually contains.`

type classifier struct {
	llm       llm.Client
	maxTokens int
	schema    any
}

func New(cfg Config) (Classifier, error) {
	client, err := llm.New(llm.Config{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
	})
	if err != nil {
		return nil, err
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	return &classifier{
		llm:       client,
		maxTokens: maxTokens,
		schema:    llm.GenerateSchema[classification](),
	}, nil
}

func (c *classifier) Model() string {
	return c.llm.Model()
}

func (c *classifier) Classify(ctx context.Context, bug *model.Bug) (model.Classification, error) {
	userPrompt := fmt.Sprintf("Title: %s\nLabels: %v\nSource: %s\n\n%s",
		bug.Title, bug.Labels, bug.Source, bug.Description)

	var out classification
	start := time.Now()
	_, err := c.llm.Chat(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		SchemaName:   "bug_classification",
		Schema:       c.schema,
		MaxTokens:    c.maxTokens,
		Temperature:  llm.Temp(0),
	}, &out)
	if err != nil {
		return model.Classification{}, fmt.Errorf("classify bug %d: %w", bug.ID, err)
	}

	slog.DebugContext(ctx, "bug classified",
		"model", c.llm.Model(),
		"component", out.Component,
		"severity", out.Severity,
		"confidence", out.Confidence,
		"duration_ms", time.Since(start).Milliseconds())

	return model.Classification{
		Component:  out.Component,
		Type:       model.BugType(out.Type),
		Severity:   model.Severity(out.Severity),
		Confidence: clamp01(out.Confidence),
		Reasoning:  out.Reasoning,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// IsRetryable reports whether a classification error is worth retrying.
// Rate limits and server errors are; schema and auth errors are not.
func IsRetryable(ctx context.Context, err error) bool {
	return llm.IsRetryable(ctx, err)
}
