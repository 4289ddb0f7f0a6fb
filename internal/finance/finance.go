// Package finance scrapes stock quotes from GuruFocus and FX rates from
// Google search results. Responses are plain text because the main consumer
// is an Excel sheet that chokes on JSON.
package finance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Changing the user agent is enough to get past GuruFocus and Google.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/111.0.0.0 Safari/537.36"

var (
	tickerRe   = regexp.MustCompile(`^[a-zA-Z0-9:]+$`)
	currencyRe = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// ValidTicker accepts exchange-prefixed tickers like HKSE:00700.
func ValidTicker(ticker string) bool {
	return len(ticker) >= 1 && len(ticker) <= 12 && tickerRe.MatchString(ticker)
}

func ValidCurrency(currency string) bool {
	return len(currency) >= 1 && len(currency) <= 4 && currencyRe.MatchString(currency)
}

type Service struct {
	client        *http.Client
	gurufocusBase string
	googleBase    string
}

func NewService() *Service {
	return &Service{
		client:        &http.Client{Timeout: 30 * time.Second},
		gurufocusBase: "https://www.gurufocus.com",
		googleBase:    "https://www.google.com",
	}
}

// PriceAndMarketCap returns "price,marketCapBillions" in the ticker's native
// currency, scraped from the GuruFocus summary page.
func (s *Service) PriceAndMarketCap(ctx context.Context, ticker string) (string, error) {
	ticker = strings.ToUpper(ticker)
	source, err := s.fetch(ctx, s.gurufocusBase+"/stock/"+ticker+"/summary")
	if err != nil {
		return "", fmt.Errorf("gurufocus source for %s: %w", ticker, err)
	}

	price, ok := PriceFromGuruFocus(source)
	if !ok {
		return "", fmt.Errorf("price not found in gurufocus source for %s", ticker)
	}
	cap, ok := MarketCapFromGuruFocus(source)
	if !ok {
		return "", fmt.Errorf("market cap not found in gurufocus source for %s", ticker)
	}
	return price + "," + cap, nil
}

// FXRateToUSD returns how many units of currency one USD buys, rounded to
// two decimal places.
func (s *Service) FXRateToUSD(ctx context.Context, currency string) (string, error) {
	source, err := s.fetch(ctx, s.googleBase+"/search?q=usd+"+url.QueryEscape(currency))
	if err != nil {
		return "", fmt.Errorf("google source for %s: %w", currency, err)
	}
	rate, ok := FXRateFromGoogle(source)
	if !ok {
		return "", fmt.Errorf("fx rate not found in google source for %s", currency)
	}
	return rate, nil
}

func (s *Service) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}
	// A plausible page is somewhere between a block page and a dump.
	if len(body) < 100 {
		return "", fmt.Errorf("suspicious response size %d", len(body))
	}
	return string(body), nil
}

// PriceFromGuruFocus extracts the native-currency price from the summary
// page. The anchor text looks like:
//
//	The current price of LVS is $51.65.
//	The current price of MIC:SBER is ₽292.19.
func PriceFromGuruFocus(source string) (string, bool) {
	_, after, found := strings.Cut(source, "The current price of ")
	if !found {
		return "", false
	}
	fields := strings.Fields(head(after, 50))
	if len(fields) < 3 {
		return "", false
	}
	// Strip the trailing period, then walk back to the currency symbol.
	priced := fields[2]
	if len(priced) < 2 {
		return "", false
	}
	priced = priced[:len(priced)-1]
	return trailingNumber(priced)
}

// MarketCapFromGuruFocus extracts the market cap and normalizes it to
// billions. The page suffixes the value with M, B or T.
func MarketCapFromGuruFocus(source string) (string, bool) {
	_, after, found := strings.Cut(source, "Market Cap:")
	if !found {
		return "", false
	}
	_, after, found = strings.Cut(after, "<span ")
	if !found {
		return "", false
	}
	inner, _, found := strings.Cut(after, "</span>")
	if !found || len(inner) < 2 {
		return "", false
	}

	scale := strings.ToUpper(inner[len(inner)-1:])
	raw, ok := trailingNumber(inner[:len(inner)-1])
	if !ok {
		return "", false
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return "", false
	}

	switch scale {
	case "B":
		return value.String(), true
	case "M":
		return value.Div(decimal.NewFromInt(1000)).Round(2).String(), true
	case "T":
		return value.Mul(decimal.NewFromInt(1000)).Round(2).String(), true
	}
	return "", false
}

// FXRateFromGoogle extracts the conversion rate from the search result
// snippet, e.g. <span class="DFlfde SwHCTb" data-precision="2"
// data-value="154.818">154.82</span>, rounded to two decimals.
func FXRateFromGoogle(source string) (string, bool) {
	_, after, found := strings.Cut(source, `data-value="`)
	if !found {
		return "", false
	}
	raw, _, found := strings.Cut(head(after, 50), `">`)
	if !found {
		return "", false
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return "", false
	}
	return rate.Round(2).String(), true
}

// trailingNumber returns the longest numeric suffix (digits and dots) of s,
// dropping whatever currency symbol precedes it.
func trailingNumber(s string) (string, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c != '.' && (c < '0' || c > '9') {
			if i == len(s)-1 {
				return "", false
			}
			return s[i+1:], true
		}
	}
	if s == "" {
		return "", false
	}
	return s, true
}

func head(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
