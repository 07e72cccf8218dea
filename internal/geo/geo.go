// Package geo resolves UK postcodes to coordinates and computes road
// distances between them for delivery estimates.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ErrPostcodeNotFound is returned when the lookup service does not know the
// postcode.
var ErrPostcodeNotFound = errors.New("postcode not found")

const earthRadiusMiles = 3958.8

// Straight-line distance understates road distance; this factor is a common
// approximation for UK routes.
const roadFactor = 1.3

// Client looks up postcodes against a postcodes.io-compatible API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given API base URL
// (e.g. https://api.postcodes.io).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type lookupResponse struct {
	Status int `json:"status"`
	Result struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"result"`
}

// Distance returns the estimated road distance in miles between two
// postcodes.
func (c *Client) Distance(ctx context.Context, from, to string) (decimal.Decimal, error) {
	fromLat, fromLon, err := c.lookup(ctx, from)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lookup %q: %w", from, err)
	}
	toLat, toLon, err := c.lookup(ctx, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lookup %q: %w", to, err)
	}

	miles := haversineMiles(fromLat, fromLon, toLat, toLon) * roadFactor
	return decimal.NewFromFloat(miles).Round(1), nil
}

func (c *Client) lookup(ctx context.Context, postcode string) (lat, lon float64, err error) {
	reqURL := c.baseURL + "/postcodes/" + url.PathEscape(postcode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, 0, ErrPostcodeNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("postcode API returned %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, fmt.Errorf("decode response: %w", err)
	}
	return body.Result.Latitude, body.Result.Longitude, nil
}

func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMiles * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
