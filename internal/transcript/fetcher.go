package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultFetchURL = "https://api.api-ninjas.com/v1/earningstranscript"

// HTTPFetcher pulls transcripts from the API Ninjas earnings transcript
// endpoint. The API key comes from the secrets store at construction time.
type HTTPFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPFetcher(apiKey string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: defaultFetchURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ticker string, year, quarter int) (string, error) {
	q := url.Values{}
	q.Set("ticker", ticker)
	q.Set("year", strconv.Itoa(year))
	q.Set("quarter", strconv.Itoa(quarter))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Api-Key", f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch transcript: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read transcript body: %w", err)
	}

	var payload struct {
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode transcript body: %w", err)
	}
	return payload.Transcript, nil
}
