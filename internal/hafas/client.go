package hafas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrNotFound is returned when the API reports a missing resource. It is
// not retried: the resource will not appear on a second attempt.
var ErrNotFound = errors.New("hafas: not found")

// Client talks to a HAFAS-style journey-planning REST API.
type Client struct {
	baseURL    string
	maxResults int
	products   []string
	client     *http.Client
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, maxResults int, products []string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		maxResults: maxResults,
		products:   products,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Locations resolves a station search name to candidate stops.
func (c *Client) Locations(ctx context.Context, query string) ([]Location, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("results", "5")

	var locations []Location
	if err := c.getJSON(ctx, "/locations", q, &locations); err != nil {
		return nil, fmt.Errorf("locations %q: %w", query, err)
	}
	return locations, nil
}

// Departures fetches the departure board for a stop from the given time.
func (c *Client) Departures(ctx context.Context, stopID string, from time.Time, window time.Duration) ([]BoardEntry, error) {
	var resp boardResponse
	if err := c.getJSON(ctx, "/stops/"+url.PathEscape(stopID)+"/departures", c.boardQuery(from, window), &resp); err != nil {
		return nil, fmt.Errorf("departures for %s: %w", stopID, err)
	}
	return resp.Departures, nil
}

// Arrivals fetches the arrival board for a stop from the given time.
func (c *Client) Arrivals(ctx context.Context, stopID string, from time.Time, window time.Duration) ([]BoardEntry, error) {
	var resp boardResponse
	if err := c.getJSON(ctx, "/stops/"+url.PathEscape(stopID)+"/arrivals", c.boardQuery(from, window), &resp); err != nil {
		return nil, fmt.Errorf("arrivals for %s: %w", stopID, err)
	}
	return resp.Arrivals, nil
}

// Trip fetches a full journey with stopovers by its journey id.
func (c *Client) Trip(ctx context.Context, tripID string) (*Trip, error) {
	q := url.Values{}
	q.Set("stopovers", "true")

	var resp tripResponse
	if err := c.getJSON(ctx, "/trips/"+url.PathEscape(tripID), q, &resp); err != nil {
		return nil, fmt.Errorf("trip %s: %w", tripID, err)
	}
	if resp.Trip == nil {
		return nil, fmt.Errorf("trip %s: empty response", tripID)
	}
	return resp.Trip, nil
}

func (c *Client) boardQuery(from time.Time, window time.Duration) url.Values {
	q := url.Values{}
	q.Set("when", from.Format(time.RFC3339))
	q.Set("duration", strconv.Itoa(int(window.Minutes())))
	q.Set("results", strconv.Itoa(c.maxResults))
	for _, p := range c.products {
		q.Set(p, "true")
	}
	return q
}

// getJSON performs a GET with exponential backoff on transient failures
// and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			// fall through to decode
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("status %d", resp.StatusCode)
		default:
			io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	return backoff.Retry(operation, b)
}
