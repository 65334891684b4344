package market

import (
	"context"
	"fmt"
	"net/url"
)

// Fundamentals holds best-effort company and financial fields. Any field the
// feed omits stays at its zero value; callers must not assume completeness.
type Fundamentals struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	Sector        string  `json:"sector,omitempty"`
	Industry      string  `json:"industry,omitempty"`
	MarketCap     float64 `json:"market_cap,omitempty"`
	TrailingPE    float64 `json:"trailing_pe,omitempty"`
	ForwardPE     float64 `json:"forward_pe,omitempty"`
	EPS           float64 `json:"eps,omitempty"`
	DividendYield float64 `json:"dividend_yield,omitempty"`
	RevenueGrowth float64 `json:"revenue_growth,omitempty"`
	ProfitMargin  float64 `json:"profit_margin,omitempty"`
}

// rawValue is the feed's number wrapper ({"raw": 1.23, "fmt": "1.23"}).
type rawValue struct {
	Raw float64 `json:"raw"`
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				LongName  string   `json:"longName"`
				MarketCap rawValue `json:"marketCap"`
			} `json:"price"`
			AssetProfile struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
			} `json:"assetProfile"`
			SummaryDetail struct {
				TrailingPE    rawValue `json:"trailingPE"`
				ForwardPE     rawValue `json:"forwardPE"`
				DividendYield rawValue `json:"dividendYield"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				TrailingEPS rawValue `json:"trailingEps"`
			} `json:"defaultKeyStatistics"`
			FinancialData struct {
				RevenueGrowth rawValue `json:"revenueGrowth"`
				ProfitMargins rawValue `json:"profitMargins"`
			} `json:"financialData"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// GetFundamentals fetches company and financial fields for a symbol.
// Missing modules or fields default rather than erroring; only transport
// and decode failures return an error.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error) {
	cacheKey := "fundamentals:" + symbol
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.(*Fundamentals), nil
	}

	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=price,assetProfile,summaryDetail,defaultKeyStatistics,financialData",
		c.fundamentalsEndpoint, url.PathEscape(symbol))

	var parsed summaryResponse
	if err := c.getJSON(ctx, u, &parsed); err != nil {
		return nil, fmt.Errorf("fetch fundamentals for %s: %w", symbol, err)
	}
	if len(parsed.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no fundamentals for %s", symbol)
	}

	r := parsed.QuoteSummary.Result[0]
	f := &Fundamentals{
		Symbol:        symbol,
		Name:          r.Price.LongName,
		Sector:        r.AssetProfile.Sector,
		Industry:      r.AssetProfile.Industry,
		MarketCap:     r.Price.MarketCap.Raw,
		TrailingPE:    r.SummaryDetail.TrailingPE.Raw,
		ForwardPE:     r.SummaryDetail.ForwardPE.Raw,
		EPS:           r.DefaultKeyStatistics.TrailingEPS.Raw,
		DividendYield: r.SummaryDetail.DividendYield.Raw,
		RevenueGrowth: r.FinancialData.RevenueGrowth.Raw,
		ProfitMargin:  r.FinancialData.ProfitMargins.Raw,
	}

	c.cache.SetDefault(cacheKey, f)
	return f, nil
}
