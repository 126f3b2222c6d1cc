package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultORSBaseURL = "https://api.openrouteservice.org"

// ORSProvider geocodes via the OpenRouteService geocode/search API.
// Without an API key the provider reports itself unavailable and the
// pipeline degrades to single-source validation.
type ORSProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	country    string
}

// ORSOption configures the ORSProvider.
type ORSOption func(*ORSProvider)

// WithORSHTTPClient sets a custom HTTP client.
func WithORSHTTPClient(hc *http.Client) ORSOption {
	return func(p *ORSProvider) {
		p.httpClient = hc
	}
}

// WithORSBaseURL overrides the API base URL (tests).
func WithORSBaseURL(u string) ORSOption {
	return func(p *ORSProvider) {
		p.baseURL = u
	}
}

// WithORSCountry appends a country name to every query to bias results.
func WithORSCountry(country string) ORSOption {
	return func(p *ORSProvider) {
		p.country = country
	}
}

// NewORS creates an ORSProvider with the given API key and options.
func NewORS(apiKey string, opts ...ORSOption) *ORSProvider {
	p := &ORSProvider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultORSBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *ORSProvider) Name() string { return "ors" }

// Available implements Provider.
func (p *ORSProvider) Available() bool { return p.apiKey != "" }

// orsGeocodeResponse is the GeoJSON response from ORS geocode/search.
type orsGeocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode implements Provider.
func (p *ORSProvider) Geocode(ctx context.Context, address string) (*Coordinate, error) {
	if p.apiKey == "" {
		return nil, eris.New("geocode: ors api key not configured")
	}

	query := address
	if p.country != "" {
		query += ", " + p.country
	}
	params := url.Values{
		"api_key": {p.apiKey},
		"text":    {query},
		"size":    {"1"},
	}

	reqURL := p.baseURL + "/geocode/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: ors build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: ors request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: ors returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: ors read body")
	}

	var orsResp orsGeocodeResponse
	if err := json.Unmarshal(body, &orsResp); err != nil {
		return nil, eris.Wrap(err, "geocode: ors parse response")
	}

	if len(orsResp.Features) == 0 {
		zap.L().Debug("ors: no match", zap.String("address", address))
		return nil, nil
	}

	coords := orsResp.Features[0].Geometry.Coordinates
	if len(coords) < 2 {
		return nil, eris.Errorf("geocode: ors malformed coordinates %v", coords)
	}

	return &Coordinate{Lat: coords[1], Lon: coords[0]}, nil
}
