package monitor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/phindlabs/revloop/internal/domain"
)

// SimulatedFeed generates plausible two-venue quotes for a fixed pair
// set. It stands in for the market-data collaborators that live outside
// this service; spreads occasionally widen past the arbitrage threshold
// and trends occasionally strengthen past the trend threshold.
type SimulatedFeed struct {
	pairs  []string
	venues []string

	mu  sync.Mutex
	rng *rand.Rand
}

var _ QuoteFeed = (*SimulatedFeed)(nil)

// basePrices anchors each simulated pair.
var basePrices = map[string]float64{
	"BTC/USDT": 65000,
	"ETH/USDC": 3200,
	"SOL/USDT": 140,
}

// NewSimulatedFeed creates a feed over the built-in pairs. The rng can
// be seeded for deterministic tests.
func NewSimulatedFeed(rng *rand.Rand) *SimulatedFeed {
	return &SimulatedFeed{
		pairs:  []string{"BTC/USDT", "ETH/USDC", "SOL/USDT"},
		venues: []string{"venue_a", "venue_b"},
		rng:    rng,
	}
}

// Fetch returns one quote per pair per venue. Roughly one pass in ten
// carries a spread wide enough to register as arbitrage.
func (f *SimulatedFeed) Fetch(ctx context.Context) ([]domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	quotes := make([]domain.Quote, 0, len(f.pairs)*len(f.venues))
	for _, pair := range f.pairs {
		base := basePrices[pair] * (0.95 + f.rng.Float64()*0.1)

		spread := f.rng.Float64() * 0.01
		if f.rng.Float64() < 0.1 {
			spread = 0.015 + f.rng.Float64()*0.03
		}

		trend := f.rng.Float64() * 0.8
		up := f.rng.Float64() < 0.5

		for i, venue := range f.venues {
			price := base
			if i > 0 {
				price = base * (1 + spread)
			}
			quotes = append(quotes, domain.Quote{
				Pair:          pair,
				Venue:         venue,
				Price:         price,
				Volume:        500000 + f.rng.Float64()*1500000,
				Volatility:    0.1 + f.rng.Float64()*0.6,
				TrendStrength: trend,
				TrendUp:       up,
				Timestamp:     now,
			})
		}
	}
	return quotes, nil
}
