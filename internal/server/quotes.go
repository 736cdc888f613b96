package server

import (
	"context"
	"fmt"
	"strconv"

	"github.com/omrelabs/omre/internal/cache"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/services"
	"github.com/omrelabs/omre/internal/shared"
)

// QuoteProvider resolves a last traded price for a symbol. Live quotes
// are cached; when the broker is unreachable or unauthenticated it
// falls back to the latest stored close.
type QuoteProvider struct {
	market      services.MarketService
	quotes      cache.Cache
	instruments *repositories.InstrumentRepository
	candles     *repositories.CandleRepository
}

// NewQuoteProvider creates a quote provider.
func NewQuoteProvider(
	market services.MarketService,
	quotes cache.Cache,
	instruments *repositories.InstrumentRepository,
	candles *repositories.CandleRepository,
) *QuoteProvider {
	return &QuoteProvider{market: market, quotes: quotes, instruments: instruments, candles: candles}
}

// Price returns the freshest known price for the symbol.
func (q *QuoteProvider) Price(ctx context.Context, symbol string) (float64, error) {
	key := "ltp:" + symbol

	if q.quotes != nil {
		if cached, ok := q.quotes.Get(ctx, key); ok {
			if price, err := strconv.ParseFloat(cached, 64); err == nil {
				return price, nil
			}
		}
	}

	if q.market != nil {
		prices, err := q.market.Quote(ctx, []string{symbol})
		if err == nil {
			if price, ok := prices[symbol]; ok {
				if q.quotes != nil {
					q.quotes.Set(ctx, key, strconv.FormatFloat(price, 'f', -1, 64))
				}
				return price, nil
			}
		}
	}

	return q.lastClose(symbol)
}

// lastClose is the stored-data fallback when no live quote is
// available.
func (q *QuoteProvider) lastClose(symbol string) (float64, error) {
	instrument, err := q.instruments.GetBySymbol(symbol)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", shared.ErrPriceUnavailable, symbol)
	}

	price, _, err := q.candles.LatestClose(instrument.InstrumentToken)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", shared.ErrPriceUnavailable, symbol)
	}
	return price, nil
}
