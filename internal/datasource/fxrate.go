package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultFXURL returns USD-based rates for all currencies.
const DefaultFXURL = "https://api.exchangerate-api.com/v4/latest/USD"

// DefaultCurrency is the local currency the premium is computed in.
const DefaultCurrency = "KRW"

// FXRate fetches the USD to local-currency conversion rate. When the JSON
// endpoint fails and a fallback page is configured, the rate is scraped from
// the element matched by the fallback selector.
type FXRate struct {
	url      string
	currency string
	client   *http.Client

	fallbackURL      string
	fallbackSelector string
}

// FXOption configures an FXRate source.
type FXOption func(*FXRate)

// WithFallback sets an HTML page and CSS selector whose text holds the rate.
func WithFallback(pageURL, selector string) FXOption {
	return func(f *FXRate) {
		f.fallbackURL = pageURL
		f.fallbackSelector = selector
	}
}

// NewFXRate creates an exchange-rate source. Empty arguments select the defaults.
func NewFXRate(rawURL, currency string, client *http.Client, opts ...FXOption) *FXRate {
	if rawURL == "" {
		rawURL = DefaultFXURL
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	if client == nil {
		client = NewHTTPClient(DefaultTimeout)
	}
	f := &FXRate{
		url:      rawURL,
		currency: strings.ToUpper(currency),
		client:   client,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the data source name.
func (f *FXRate) Name() string { return "fxrate" }

// Endpoint returns the primary FX endpoint, for diagnostics.
func (f *FXRate) Endpoint() string { return f.url }

// Currency returns the local currency code.
func (f *FXRate) Currency() string { return f.currency }

type fxResponse struct {
	Base  string               `json:"base"`
	Rates map[string]flexFloat `json:"rates"`
}

// USDRate returns local-currency units per 1 USD.
func (f *FXRate) USDRate(ctx context.Context) (float64, error) {
	rate, err := f.fromJSON(ctx)
	if err == nil {
		return rate, nil
	}
	if f.fallbackURL == "" || f.fallbackSelector == "" {
		return 0, err
	}

	fbRate, fbErr := f.fromPage(ctx)
	if fbErr != nil {
		return 0, errors.Join(err, fbErr)
	}
	return fbRate, nil
}

func (f *FXRate) fromJSON(ctx context.Context) (float64, error) {
	var resp fxResponse
	if err := getJSON(ctx, f.client, f.url, &resp); err != nil {
		return 0, fmt.Errorf("fx rate: %w", err)
	}
	rate, ok := resp.Rates[f.currency]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("fx rate %s: %w", f.currency, ErrRateMissing)
	}
	return float64(rate), nil
}

// fromPage scrapes the rate from the fallback HTML page.
func (f *FXRate) fromPage(ctx context.Context) (float64, error) {
	body, err := doGet(ctx, f.client, f.fallbackURL, map[string]string{
		"Accept": "text/html",
	})
	if err != nil {
		return 0, fmt.Errorf("fx fallback: %w", err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return 0, fmt.Errorf("parse fx fallback HTML: %w", err)
	}

	text := strings.TrimSpace(doc.Find(f.fallbackSelector).First().Text())
	if text == "" {
		return 0, fmt.Errorf("fx fallback selector %q: %w", f.fallbackSelector, ErrRateMissing)
	}
	rate, err := parseRateText(text)
	if err != nil {
		return 0, fmt.Errorf("fx fallback: %w", err)
	}
	return rate, nil
}

// parseRateText parses page text such as "1,352.50" or "₩1,352.50 KRW".
func parseRateText(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if s == "" {
		return 0, ErrRateMissing
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", s, err)
	}
	if v <= 0 {
		return 0, ErrRateMissing
	}
	return v, nil
}
