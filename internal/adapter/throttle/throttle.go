// Package throttle rate-limits calls to remote model providers.
package throttle

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"

	"photosearch/internal/port"
)

// NewLimiter returns a limiter allowing perSecond calls with a burst of at
// least one. A non-positive rate returns nil, meaning unlimited.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(math.Ceil(perSecond))
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Describer waits on a limiter before every Describe call.
type Describer struct {
	port.Describer
	limiter *rate.Limiter
}

// WrapDescriber returns d unchanged when perSecond is not positive.
func WrapDescriber(d port.Describer, perSecond float64) port.Describer {
	l := NewLimiter(perSecond)
	if l == nil {
		return d
	}
	return &Describer{Describer: d, limiter: l}
}

func (d *Describer) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	if err := wait(ctx, d.limiter); err != nil {
		return "", err
	}
	return d.Describer.Describe(ctx, image, mimeType)
}

// Embedder waits on a limiter before every Embed call.
type Embedder struct {
	port.Embedder
	limiter *rate.Limiter
}

// WrapEmbedder returns e unchanged when perSecond is not positive.
func WrapEmbedder(e port.Embedder, perSecond float64) port.Embedder {
	l := NewLimiter(perSecond)
	if l == nil {
		return e
	}
	return &Embedder{Embedder: e, limiter: l}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := wait(ctx, e.limiter); err != nil {
		return nil, err
	}
	return e.Embedder.Embed(ctx, text)
}
