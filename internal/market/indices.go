package market

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Sentiment is the broad-market mood derived from index moves.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// IndexChange is one index's daily move.
type IndexChange struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Change24h float64 `json:"change_24h_pct"`
}

// MarketMood aggregates the index basket into a sentiment tally.
type MarketMood struct {
	Indices   []IndexChange `json:"indices"`
	Advancing int           `json:"advancing"`
	Declining int           `json:"declining"`
	Sentiment Sentiment     `json:"sentiment"`
}

// indexBasket is the fixed set of broad-market indices sampled for
// sentiment.
var indexBasket = []struct {
	symbol string
	name   string
}{
	{"^GSPC", "S&P 500"},
	{"^DJI", "Dow Jones"},
	{"^IXIC", "Nasdaq"},
	{"^RUT", "Russell 2000"},
}

// GetMarketMood fetches the index basket concurrently and tallies the moves
// into a bullish/bearish/neutral sentiment. A failed fetch of one index is
// skipped; the mood degrades to whatever indices responded.
func (c *Client) GetMarketMood(ctx context.Context) *MarketMood {
	var mu sync.Mutex
	mood := &MarketMood{}

	g, gctx := errgroup.WithContext(ctx)
	for _, idx := range indexBasket {
		idx := idx
		g.Go(func() error {
			snap, err := c.GetSnapshot(gctx, idx.symbol)
			if err != nil {
				log.Debug().Str("index", idx.symbol).Err(err).Msg("index fetch failed")
				return nil // one failed index must not fail the basket
			}
			mu.Lock()
			mood.Indices = append(mood.Indices, IndexChange{
				Symbol:    idx.symbol,
				Name:      idx.name,
				Change24h: snap.Change24h,
			})
			mu.Unlock()
			return nil
		})
	}
	g.Wait() // workers never return errors; join only

	for _, ic := range mood.Indices {
		switch {
		case ic.Change24h > 0:
			mood.Advancing++
		case ic.Change24h < 0:
			mood.Declining++
		}
	}
	switch {
	case mood.Advancing > mood.Declining:
		mood.Sentiment = SentimentBullish
	case mood.Declining > mood.Advancing:
		mood.Sentiment = SentimentBearish
	default:
		mood.Sentiment = SentimentNeutral
	}
	return mood
}
