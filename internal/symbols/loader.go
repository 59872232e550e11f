package symbols

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"stockcast/pkg/model"
)

// ProfileSource fetches company metadata
type ProfileSource interface {
	GetProfile(ctx context.Context, symbol string) (*model.Profile, error)
}

// Loader resolves universe entries, preferring provider names over the
// built-in defaults
type Loader struct {
	source ProfileSource
}

// NewLoader creates a new symbol loader. A nil source keeps the defaults.
func NewLoader(src ProfileSource) *Loader {
	return &Loader{source: src}
}

// LoadStocks returns the whole universe. Provider failures are logged and
// the default entry is kept.
func (l *Loader) LoadStocks(ctx context.Context) []model.Stock {
	stocks := Stocks()
	if l.source == nil {
		return stocks
	}
	for i := range stocks {
		stocks[i] = l.enrich(ctx, stocks[i])
		if ctx.Err() != nil {
			break
		}
	}
	return stocks
}

// LoadSymbol resolves a single ticker of the universe
func (l *Loader) LoadSymbol(ctx context.Context, symbol string) (model.Stock, error) {
	stock, ok := Lookup(symbol)
	if !ok {
		return model.Stock{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if l.source == nil {
		return stock, nil
	}
	return l.enrich(ctx, stock), nil
}

func (l *Loader) enrich(ctx context.Context, stock model.Stock) model.Stock {
	profile, err := l.source.GetProfile(ctx, stock.Symbol)
	if err != nil {
		log.Debug().Err(err).Str("symbol", stock.Symbol).Msg("Profile unavailable, using default name")
		return stock
	}
	if profile.Valid() {
		stock.Name = profile.ShortName
	}
	if profile != nil && profile.Currency != "" {
		stock.Currency = profile.Currency
	}
	return stock
}
