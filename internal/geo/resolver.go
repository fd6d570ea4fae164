// Package geo resolves coordinates into human-readable place names.
// Raw coordinates never leave this package: downstream prompts and tool
// queries only ever see the resolved string.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultPlace is used whenever reverse geocoding fails.
const DefaultPlace = "your location"

// Resolver reverse-geocodes via a Nominatim-compatible endpoint.
type Resolver struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewResolver creates a resolver. baseURL defaults to the public Nominatim
// instance when empty.
func NewResolver(baseURL, userAgent string) *Resolver {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	if userAgent == "" {
		userAgent = "careclaw/1.0"
	}
	return &Resolver{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Resolve converts a coordinate pair into a readable place string composed
// from the most specific available administrative levels. Any failure
// (network, empty result, missing address fields) yields DefaultPlace.
func (r *Resolver) Resolve(ctx context.Context, lat, long float64) string {
	endpoint := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%s&lon=%s",
		r.baseURL,
		url.QueryEscape(fmt.Sprintf("%.6f", lat)),
		url.QueryEscape(fmt.Sprintf("%.6f", long)))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return DefaultPlace
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Warn("Reverse geocode failed", "error", err)
		return DefaultPlace
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Reverse geocode failed", "status", resp.StatusCode)
		return DefaultPlace
	}

	var result struct {
		Address struct {
			Neighbourhood string `json:"neighbourhood"`
			Suburb        string `json:"suburb"`
			City          string `json:"city"`
			Town          string `json:"town"`
			Village       string `json:"village"`
			State         string `json:"state"`
			Country       string `json:"country"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return DefaultPlace
	}

	neighbourhood := result.Address.Neighbourhood
	if neighbourhood == "" {
		neighbourhood = result.Address.Suburb
	}
	city := result.Address.City
	if city == "" {
		city = result.Address.Town
	}
	if city == "" {
		city = result.Address.Village
	}

	var parts []string
	for _, p := range []string{neighbourhood, city, result.Address.State, result.Address.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return DefaultPlace
	}
	return strings.Join(parts, ", ")
}

// geoTerms marks queries that are geographically scoped; only these get the
// resolved place appended when forwarded to the search tool.
var geoTerms = []string{"near", "hospital", "clinic", "pharmacy", "doctor", "medical"}

// GeoScoped reports whether a search query is geographically scoped.
func GeoScoped(query string) bool {
	lower := strings.ToLower(query)
	for _, term := range geoTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
