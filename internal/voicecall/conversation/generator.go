package conversation

//go:generate go run go.uber.org/mock/mockgen@latest -source=generator.go -destination=mocks_test.go -package=conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voice-server/internal/observability"
)

var ErrEmptyCompletion = errors.New("completion returned no content")

// Completer issues a single chat completion request.
type Completer interface {
	Complete(ctx context.Context, messages []Message, maxTokens int) (string, error)
	Provider() string
}

type GeneratorConfig struct {
	MaxTokens int
	Timeout   time.Duration
	Fallback  string
}

// Generator produces the next assistant utterance and records both sides of the
// exchange in the history.
type Generator struct {
	completer Completer
	cfg       GeneratorConfig
	logger    *observability.Logger
	metrics   *observability.Metrics
}

func NewGenerator(completer Completer, cfg GeneratorConfig, logger *observability.Logger, metrics *observability.Metrics) *Generator {
	return &Generator{
		completer: completer,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Reply appends utterance as a user entry, then appends and returns exactly one
// assistant entry. Any provider failure yields the configured fallback line.
// The bool reports whether the fallback was used.
func (g *Generator) Reply(ctx context.Context, history *History, utterance string) (string, bool) {
	history.Append(RoleUser, utterance)

	reply, err := g.complete(ctx, history.Messages())
	if err != nil {
		// A cancelled session still records the fallback so the turn stays balanced.
		g.logger.InfoWithError(ctx, "Completion failed, using fallback utterance", err)
		history.Append(RoleAssistant, g.cfg.Fallback)
		return g.cfg.Fallback, true
	}

	history.Append(RoleAssistant, reply)
	return reply, false
}

func (g *Generator) complete(ctx context.Context, messages []Message) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := g.completer.Complete(ctx, messages, g.cfg.MaxTokens)
	if err == nil {
		reply = strings.TrimSpace(reply)
		if reply == "" {
			err = ErrEmptyCompletion
		}
	}
	g.metrics.Completion(g.completer.Provider(), err, time.Since(start))

	if err != nil {
		return "", fmt.Errorf("%s completion: %w", g.completer.Provider(), err)
	}
	return reply, nil
}
