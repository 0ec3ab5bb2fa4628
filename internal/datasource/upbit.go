package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// DefaultUpbitURL is the secondary-market REST base URL.
const DefaultUpbitURL = "https://api.upbit.com"

const upbitTickerPath = "/v1/ticker"

// Upbit is the secondary-market source. All markets of a pass are fetched
// with a single batched ticker request.
type Upbit struct {
	baseURL string
	client  *http.Client
}

// NewUpbit creates a secondary-market source. An empty baseURL selects DefaultUpbitURL.
func NewUpbit(baseURL string, client *http.Client) *Upbit {
	if baseURL == "" {
		baseURL = DefaultUpbitURL
	}
	if client == nil {
		client = NewHTTPClient(DefaultTimeout)
	}
	return &Upbit{baseURL: baseURL, client: client}
}

// Name returns the data source name.
func (u *Upbit) Name() string { return "upbit" }

// Endpoint returns the ticker endpoint, for diagnostics.
func (u *Upbit) Endpoint() string { return buildURL(u.baseURL, upbitTickerPath, nil) }

type upbitTicker struct {
	Market     string    `json:"market"`
	TradePrice flexFloat `json:"trade_price"`
}

// Tickers returns the last trade price for each market, keyed by market code
// ("KRW-BTC"). Markets missing from the response are missing from the map.
// An empty markets list returns an empty map without a request.
func (u *Upbit) Tickers(ctx context.Context, markets []string) (map[string]float64, error) {
	markets = uniqueSorted(markets)
	if len(markets) == 0 {
		return map[string]float64{}, nil
	}

	q := url.Values{"markets": {strings.Join(markets, ",")}}
	var resp []upbitTicker
	if err := getJSON(ctx, u.client, buildURL(u.baseURL, upbitTickerPath, q), &resp); err != nil {
		return nil, fmt.Errorf("upbit tickers %s: %w", strings.Join(markets, ","), err)
	}

	prices := make(map[string]float64, len(resp))
	for _, t := range resp {
		if t.Market == "" {
			continue
		}
		prices[t.Market] = float64(t.TradePrice)
	}
	return prices, nil
}

// uniqueSorted drops blanks and duplicates so the request is deterministic.
func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
