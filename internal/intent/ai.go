package intent

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"book-sms-agent/internal/domain"
)

const (
	DefaultConfidenceThreshold = 0.7
	DefaultMaxInputLength      = 1600
	fallbackConfidenceCap      = 0.6
)

// AIClient is the completion collaborator. Available must be cheap enough
// to call once per message.
type AIClient interface {
	Available(ctx context.Context) bool
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// AIClassifier runs the pattern classifier first and escalates to the AI
// client only for messages the patterns cannot place with confidence.
type AIClassifier struct {
	pattern   *PatternClassifier
	ai        AIClient
	threshold float64
	maxInput  int
	logger    *slog.Logger
}

// NewAIClassifier builds the classifier. ai may be nil, in which case every
// message is classified by patterns alone.
func NewAIClassifier(pattern *PatternClassifier, ai AIClient, threshold float64, maxInput int, logger *slog.Logger) (*AIClassifier, error) {
	if pattern == nil {
		return nil, errors.New("intent: pattern classifier must not be nil")
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	if maxInput <= 0 {
		maxInput = DefaultMaxInputLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AIClassifier{
		pattern:   pattern,
		ai:        ai,
		threshold: threshold,
		maxInput:  maxInput,
		logger:    logger,
	}, nil
}

var (
	quickPageRe    = regexp.MustCompile(`^(?:page|pg|p\.?)\s*\d+$`)
	quickPercentRe = regexp.MustCompile(`^\d{1,3}\s*%$`)
)

// QuickCheck resolves common short phrasings locally.
func (c *AIClassifier) QuickCheck(text string) (ClassificationResult, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "?" {
		return c.pattern.Classify(text), true
	}
	lower := strings.ToLower(strings.TrimSpace(strings.TrimRight(trimmed, ".!?")))
	if lower == "" {
		return ClassificationResult{}, false
	}
	if helpRe.MatchString(lower) || nextRe.MatchString(lower) || previousRe.MatchString(lower) ||
		listRefRe.MatchString(lower) || currentRe.MatchString(lower) {
		return c.pattern.Classify(text), true
	}
	if quickPageRe.MatchString(lower) {
		r := c.pattern.Classify("page " + strings.TrimLeft(lower, "pagep. "))
		r.RawMessage = text
		return r, true
	}
	if quickPercentRe.MatchString(lower) {
		return c.pattern.Classify(text), true
	}
	return ClassificationResult{}, false
}

// ShouldUseAI reports whether text warrants an AI call.
func (c *AIClassifier) ShouldUseAI(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if _, ok := c.QuickCheck(text); ok {
		return false
	}
	if c.pattern.Classify(text).Confidence >= c.threshold {
		return false
	}
	return c.ai != nil && c.ai.Available(ctx)
}

// Classify never fails. Any AI problem falls back to the pattern result with
// its confidence capped.
func (c *AIClassifier) Classify(ctx context.Context, text string) ClassificationResult {
	if quick, ok := c.QuickCheck(text); ok {
		return quick
	}
	pattern := c.pattern.Classify(text)
	if strings.TrimSpace(text) == "" || pattern.Confidence >= c.threshold {
		return pattern
	}
	if c.ai == nil || !c.ai.Available(ctx) {
		return capConfidence(pattern)
	}

	raw, err := c.ai.Complete(ctx, buildClassificationMessages(truncateRunes(text, c.maxInput)))
	if err != nil {
		c.logger.WarnContext(ctx, "ai classification failed", "err", err)
		return capConfidence(pattern)
	}
	result, err := decodeClassification(raw, text)
	if err != nil {
		c.logger.WarnContext(ctx, "ai classification rejected", "err", err)
		return capConfidence(pattern)
	}
	return result
}

func capConfidence(r ClassificationResult) ClassificationResult {
	r.Confidence = math.Min(r.Confidence, fallbackConfidenceCap)
	return r
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
