package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
)

// Trend classifies price direction from the moving-average crossover.
type Trend string

const (
	TrendUp       Trend = "uptrend"
	TrendDown     Trend = "downtrend"
	TrendSideways Trend = "sideways"
)

// Snapshot summarizes the current state of one symbol.
type Snapshot struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h_pct"`
	High52w   float64 `json:"high_52w"`
	Low52w    float64 `json:"low_52w"`
	SMA20     float64 `json:"sma_20"`
	SMA50     float64 `json:"sma_50"`
	Trend     Trend   `json:"trend"`
}

// chartResponse mirrors the chart API shape. Every field is optional;
// missing data degrades to zero values.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

// History fetches daily closing prices for the given range (e.g. "1y").
func (c *Client) History(ctx context.Context, symbol, rng, interval string) ([]float64, error) {
	cacheKey := "history:" + symbol + ":" + rng + ":" + interval
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.([]float64), nil
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.quoteEndpoint, url.PathEscape(symbol), url.QueryEscape(rng), url.QueryEscape(interval))

	var parsed chartResponse
	if err := c.getJSON(ctx, u, &parsed); err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", symbol, err)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}

	// The feed reports nulls for holidays; skip them.
	var closes []float64
	for _, p := range parsed.Chart.Result[0].Indicators.Quote[0].Close {
		if p != nil {
			closes = append(closes, *p)
		}
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("no close prices for %s", symbol)
	}

	c.cache.SetDefault(cacheKey, closes)
	return closes, nil
}

// GetSnapshot fetches a year of history and derives the standard snapshot:
// latest price, 24h change, 52-week range, 20/50-period moving averages and
// the trend from their crossover.
func (c *Client) GetSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	cacheKey := "snapshot:" + symbol
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.(*Snapshot), nil
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=1y&interval=1d",
		c.quoteEndpoint, url.PathEscape(symbol))

	var parsed chartResponse
	if err := c.getJSON(ctx, u, &parsed); err != nil {
		return nil, fmt.Errorf("fetch snapshot for %s: %w", symbol, err)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}

	result := parsed.Chart.Result[0]
	var closes []float64
	if len(result.Indicators.Quote) > 0 {
		for _, p := range result.Indicators.Quote[0].Close {
			if p != nil {
				closes = append(closes, *p)
			}
		}
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("no close prices for %s", symbol)
	}

	snap := &Snapshot{
		Symbol:  symbol,
		Price:   closes[len(closes)-1],
		High52w: result.Meta.FiftyTwoWeekHigh,
		Low52w:  result.Meta.FiftyTwoWeekLow,
		SMA20:   sma(closes, 20),
		SMA50:   sma(closes, 50),
	}
	if result.Meta.RegularMarketPrice > 0 {
		snap.Price = result.Meta.RegularMarketPrice
	}
	if len(closes) >= 2 {
		prev := closes[len(closes)-2]
		if prev != 0 {
			snap.Change24h = (snap.Price - prev) / prev * 100
		}
	}
	// Fall back to the series extremes when meta omits the 52w range.
	if snap.High52w == 0 || snap.Low52w == 0 {
		snap.Low52w, snap.High52w = seriesRange(closes)
	}
	snap.Trend = classifyTrend(snap.SMA20, snap.SMA50)

	c.cache.SetDefault(cacheKey, snap)
	log.Debug().Str("symbol", symbol).Float64("price", snap.Price).Str("trend", string(snap.Trend)).Msg("market snapshot")
	return snap, nil
}

// classifyTrend derives a trend from the 20/50 moving-average crossover.
// Within half a percent the averages are considered converged.
func classifyTrend(sma20, sma50 float64) Trend {
	if sma20 == 0 || sma50 == 0 {
		return TrendSideways
	}
	diff := (sma20 - sma50) / sma50
	switch {
	case diff > 0.005:
		return TrendUp
	case diff < -0.005:
		return TrendDown
	default:
		return TrendSideways
	}
}

// sma computes the simple moving average over the last n points.
// Returns 0 when the series is shorter than n.
func sma(series []float64, n int) float64 {
	if len(series) < n || n <= 0 {
		return 0
	}
	var sum float64
	for _, v := range series[len(series)-n:] {
		sum += v
	}
	return sum / float64(n)
}

func seriesRange(series []float64) (low, high float64) {
	low, high = series[0], series[0]
	for _, v := range series[1:] {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	return low, high
}

// getJSON performs a GET request and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "homedeck/0.1")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
