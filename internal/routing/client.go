package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client talks to an OSRM-compatible routing engine. The engine is treated as
// an untrusted, possibly slow or unavailable network dependency: bounded
// timeout per attempt, a couple of retries with backoff, and any failure is
// reported to the caller instead of being papered over.
type Client struct {
	baseURL string
	http    *http.Client
}

type Route struct {
	Geometry  string  `json:"geometry"`
	DistanceM float64 `json:"distance_m"`
	DurationS float64 `json:"duration_s"`
}

const (
	requestTimeout = 5 * time.Second
	maxAttempts    = 3
	initialBackoff = 250 * time.Millisecond
)

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) Route(ctx context.Context, originLat, originLng, destLat, destLng float64) (Route, error) {
	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Route{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		route, err := c.fetch(ctx, originLat, originLng, destLat, destLng)
		if err == nil {
			return route, nil
		}
		lastErr = err
	}
	return Route{}, lastErr
}

func (c *Client) fetch(ctx context.Context, originLat, originLng, destLat, destLng float64) (Route, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%s,%s;%s,%s?overview=full",
		c.baseURL,
		coord(originLng), coord(originLat),
		coord(destLng), coord(destLat))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Route{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Route{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Route{}, fmt.Errorf("routing engine status %d", resp.StatusCode)
	}

	var out struct {
		Code   string `json:"code"`
		Routes []struct {
			Geometry string  `json:"geometry"`
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Route{}, err
	}
	if out.Code != "Ok" {
		return Route{}, fmt.Errorf("routing engine code %q", out.Code)
	}
	if len(out.Routes) == 0 {
		return Route{}, errors.New("routing engine returned no routes")
	}

	r := out.Routes[0]
	return Route{Geometry: r.Geometry, DistanceM: r.Distance, DurationS: r.Duration}, nil
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
