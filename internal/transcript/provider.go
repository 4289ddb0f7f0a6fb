// Package transcript resolves earnings-call transcripts by
// (ticker, year, quarter), caching fetched text so the external source is
// hit at most once per key.
package transcript

import (
	"context"
	"log"
	"strings"
)

// Cache is the durable transcript cache. Put has upsert semantics: at most
// one entry exists per key, last write wins.
type Cache interface {
	Get(ctx context.Context, ticker string, year, quarter int) (text string, found bool, err error)
	Put(ctx context.Context, ticker string, year, quarter int, text string) error
}

// Fetcher retrieves a transcript from the external source.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string, year, quarter int) (string, error)
}

type Provider struct {
	cache   Cache
	fetcher Fetcher
}

func NewProvider(cache Cache, fetcher Fetcher) *Provider {
	return &Provider{cache: cache, fetcher: fetcher}
}

// Get returns the transcript text, or "" when neither the cache nor the
// external source can supply it. Callers must treat "" as unavailable, not
// as a valid empty transcript. The ticker is uppercased before keying.
func (p *Provider) Get(ctx context.Context, ticker string, year, quarter int) string {
	ticker = strings.ToUpper(ticker)

	text, found, err := p.cache.Get(ctx, ticker, year, quarter)
	if err != nil {
		log.Printf("[transcript] cache lookup %s %d Q%d failed: %v", ticker, year, quarter, err)
	}
	if found {
		return text
	}

	text, err = p.fetcher.Fetch(ctx, ticker, year, quarter)
	if err != nil || text == "" {
		log.Printf("[transcript] fetch %s %d Q%d failed: %v", ticker, year, quarter, err)
		return ""
	}

	if err := p.cache.Put(ctx, ticker, year, quarter, text); err != nil {
		// A failed cache write only costs a re-fetch next time.
		log.Printf("[transcript] cache write %s %d Q%d failed: %v", ticker, year, quarter, err)
	}
	return text
}
