package raster

import (
	"context"

	"svgdeck/internal/errors"
)

// Guarded stops calling a rasterizer that keeps failing. While the breaker
// is open every call fails fast with errors.ErrCircuitOpen.
type Guarded struct {
	next    Rasterizer
	breaker *errors.CircuitBreaker
}

// NewGuarded wraps next with breaker.
func NewGuarded(next Rasterizer, breaker *errors.CircuitBreaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

// Rasterize delegates while the breaker allows it.
func (g *Guarded) Rasterize(ctx context.Context, svg []byte, w, h int) ([]byte, error) {
	return errors.ExecuteFunc(g.breaker, ctx, func(ctx context.Context) ([]byte, error) {
		return g.next.Rasterize(ctx, svg, w, h)
	})
}

// State reports the breaker state.
func (g *Guarded) State() errors.CircuitState {
	return g.breaker.State()
}
