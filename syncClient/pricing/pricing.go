// Package pricing supplies the SOL/USD rate used to express volumes in USD.
package pricing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// DefaultSolPriceUSD is used when no rate is configured.
const DefaultSolPriceUSD = 145.0

// Source returns the current SOL/USD rate.
type Source interface {
	SolPriceUSD(ctx context.Context) (float64, error)
}

// Static is a fixed rate.
type Static float64

// SolPriceUSD implements Source.
func (s Static) SolPriceUSD(context.Context) (float64, error) {
	if s <= 0 {
		return DefaultSolPriceUSD, nil
	}
	return float64(s), nil
}

type fallbackSource struct {
	primary  Source
	fallback Source
	logger   zerolog.Logger
}

// WithFallback returns a Source that asks primary first and uses fallback when
// primary errors or returns a non-positive rate.
func WithFallback(primary, fallback Source, logger zerolog.Logger) Source {
	return &fallbackSource{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "pricing").Logger(),
	}
}

func (f *fallbackSource) SolPriceUSD(ctx context.Context) (float64, error) {
	price, err := f.primary.SolPriceUSD(ctx)
	if err == nil && price > 0 {
		return price, nil
	}
	if err == nil {
		err = fmt.Errorf("non-positive rate %v", price)
	}
	f.logger.Warn().Err(err).Msg("primary price source failed, using fallback")
	return f.fallback.SolPriceUSD(ctx)
}
