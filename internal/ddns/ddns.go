// Package ddns keeps Namecheap dynamic-DNS records pointed at this
// network's current public IP.
package ddns

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://dynamicdns.park-your-domain.com"

type Client struct {
	baseURL  string
	password string
	client   *http.Client
}

func NewClient(password string) *Client {
	return &Client{
		baseURL:  defaultBaseURL,
		password: password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// PublicIP asks the Namecheap getip endpoint what this network's address is.
func (c *Client) PublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/getip", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get public ip: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", fmt.Errorf("read public ip: %w", err)
	}
	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return "", fmt.Errorf("empty public ip response")
	}
	return ip, nil
}

// Update points host.domain at ip via the Namecheap update endpoint.
func (c *Client) Update(ctx context.Context, host, domain, ip string) error {
	q := url.Values{}
	q.Set("host", host)
	q.Set("domain", domain)
	q.Set("password", c.password)
	q.Set("ip", ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/update?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("update dns for %s.%s: %w", host, domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update dns for %s.%s: status %d", host, domain, resp.StatusCode)
	}
	return nil
}

// Refresh resolves the current public IP and updates the record with it.
func (c *Client) Refresh(ctx context.Context, host, domain string) (string, error) {
	ip, err := c.PublicIP(ctx)
	if err != nil {
		return "", err
	}
	if err := c.Update(ctx, host, domain, ip); err != nil {
		return "", err
	}
	return ip, nil
}
