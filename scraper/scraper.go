// Package scraper reads the live departures board.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bus-bay-prediction-api/config"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Departure is one row of the board. Bay is empty until the bus arrives.
type Departure struct {
	Service string
	Bay     string
}

type Client struct {
	url         string
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration
}

func NewClient(cfg config.ScraperConfig) *Client {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		url:         cfg.URL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxAttempts: attempts,
		retryDelay:  cfg.RetryDelay,
	}
}

// FetchDepartures downloads and parses the board, retrying failed attempts
// with a doubling delay.
func (c *Client) FetchDepartures(ctx context.Context) ([]Departure, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.retryDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Minute,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)

	attempt := 0
	departures, err := backoff.RetryNotifyWithData(
		func() ([]Departure, error) {
			attempt++
			return c.fetchOnce(ctx)
		},
		policy,
		func(err error, d time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", d).Msg("bus info fetch failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bus info after %d attempts: %w", attempt, err)
	}
	return departures, nil
}

func (c *Client) fetchOnce(ctx context.Context) ([]Departure, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Close = true

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request departures board: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to request departures board: %s", resp.Status)
	}

	return ParseDepartures(resp.Body)
}

// ParseDepartures extracts the services from the grdAll table. The first
// row seen for a service wins.
func ParseDepartures(r io.Reader) ([]Departure, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse departures board: %w", err)
	}

	seen := make(map[string]bool)
	departures := make([]Departure, 0)

	doc.Find("table#grdAll tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < 3 {
			return
		}

		service := strings.TrimSpace(cells.Eq(0).Text())
		if service == "" || seen[service] {
			return
		}
		seen[service] = true

		departures = append(departures, Departure{
			Service: service,
			Bay:     cleanCell(cells.Eq(2).Text()),
		})
	})

	return departures, nil
}

// cleanCell turns non-breaking spaces, decoded or left as a literal entity,
// into plain spaces and trims the result.
func cleanCell(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.TrimSpace(s)
}
