package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skincare-backend/internal/llm"
	"skincare-backend/internal/shared/metrics"
	"skincare-backend/internal/shared/telemetry"
	"skincare-backend/internal/skin"
)

const (
	DefaultCallTimeout = 60 * time.Second
	DefaultMaxTokens   = 400
	DefaultTemperature = 0.3
)

// ErrAllStrategiesFailed is the cause of an AnalysisError when no strategy
// produced an accepted response and the last one did not fail hard.
var ErrAllStrategiesFailed = errors.New("all strategies refused/failed")

// Config holds the Analyzer settings.
type Config struct {
	Strategies  []Strategy
	CallTimeout time.Duration
	MaxTokens   int
	Temperature float64
}

// Analyzer turns a photo into a sanitized skin profile.
type Analyzer struct {
	client      llm.VisionClient
	strategies  []Strategy
	callTimeout time.Duration
	maxTokens   int
	temperature float64
}

// NewAnalyzer constructs an Analyzer. Zero config values fall back to defaults.
func NewAnalyzer(client llm.VisionClient, cfg Config) *Analyzer {
	if client == nil {
		client = llm.PlaceholderClient{}
	}
	strategies := cfg.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies("gpt-4o-mini", "gpt-4o")
	}
	a := &Analyzer{
		client:      client,
		strategies:  strategies,
		callTimeout: cfg.CallTimeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
	if a.callTimeout <= 0 {
		a.callTimeout = DefaultCallTimeout
	}
	if a.maxTokens <= 0 {
		a.maxTokens = DefaultMaxTokens
	}
	if a.temperature <= 0 {
		a.temperature = DefaultTemperature
	}
	return a
}

// MaxCallTime is the longest the strategy loop can spend on the model when
// every strategy runs to its timeout.
func (a *Analyzer) MaxCallTime() time.Duration {
	return a.callTimeout * time.Duration(len(a.strategies))
}

// Analyze validates the image, runs the strategy loop, then parses and
// sanitizes the accepted response.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, contentType string) (skin.Profile, error) {
	normalized, err := ValidateImage(image, contentType)
	if err != nil {
		return skin.Profile{}, err
	}
	raw, err := a.execute(ctx, image, normalized)
	if err != nil {
		return skin.Profile{}, err
	}
	profile, err := ParseResponse(raw)
	if err != nil {
		return skin.Profile{}, err
	}
	return Sanitize(profile), nil
}

// execute tries each strategy in order and returns the first accepted text.
func (a *Analyzer) execute(ctx context.Context, image []byte, contentType string) (string, error) {
	last := len(a.strategies) - 1
	for i, strategy := range a.strategies {
		if err := ctx.Err(); err != nil {
			return "", &AnalysisError{Reason: "analysis cancelled", Err: err}
		}

		text, err := a.call(ctx, strategy, image, contentType)
		outcome := classify(text, err)
		metrics.IncStrategyOutcome(strategy.Name(), string(outcome))

		fields := map[string]any{
			"strategy":       strategy.Name(),
			"strategy_index": i + 1,
			"outcome":        string(outcome),
		}
		switch outcome {
		case OutcomeAccepted:
			telemetry.Info("vision.strategy", fields)
			return text, nil
		case OutcomeRefused:
			telemetry.Warn("vision.strategy", fields)
		case OutcomeFailed:
			if err == nil {
				err = errors.New("empty model response")
			}
			fields["error"] = err.Error()
			telemetry.Warn("vision.strategy", fields)
			if i == last {
				return "", &AnalysisError{Reason: fmt.Sprintf("strategy %s failed", strategy.Name()), Err: err}
			}
		}
	}
	return "", &AnalysisError{Reason: "vision analysis", Err: ErrAllStrategiesFailed}
}

func (a *Analyzer) call(ctx context.Context, strategy Strategy, image []byte, contentType string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	return a.client.Complete(callCtx, llm.VisionRequest{
		Model:       strategy.Model,
		Prompts:     strategy.Prompts,
		Image:       image,
		ContentType: contentType,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	})
}
