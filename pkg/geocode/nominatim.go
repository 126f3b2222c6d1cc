package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultNominatimBaseURL = "https://nominatim.openstreetmap.org"

// nominatimUserAgent identifies this tool per the Nominatim usage policy.
const nominatimUserAgent = "distance-cli/1.0"

// NominatimProvider geocodes via the public Nominatim search API.
// The public instance enforces 1 request per second; the limiter default
// matches that.
type NominatimProvider struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	country    string
}

// NominatimOption configures the NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithNominatimHTTPClient sets a custom HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) {
		p.httpClient = hc
	}
}

// WithNominatimBaseURL overrides the API base URL (self-hosted instances,
// tests).
func WithNominatimBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) {
		p.baseURL = u
	}
}

// WithNominatimRateLimit sets the requests-per-second limit. Non-positive
// values keep the 1 rps default; a zero limiter would block Wait forever.
func WithNominatimRateLimit(rps float64) NominatimOption {
	return func(p *NominatimProvider) {
		if rps <= 0 {
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithNominatimCountry appends a country name to every query to bias
// results.
func WithNominatimCountry(country string) NominatimOption {
	return func(p *NominatimProvider) {
		p.country = country
	}
}

// NewNominatim creates a NominatimProvider with the given options.
func NewNominatim(opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(1, 1),
		baseURL:    defaultNominatimBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Available implements Provider. Nominatim needs no credentials.
func (p *NominatimProvider) Available() bool { return true }

// nominatimPlace is one entry of the Nominatim search response.
// Coordinates come back as strings.
type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, address string) (*Coordinate, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	query := address
	if p.country != "" {
		query += ", " + p.country
	}
	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}

	reqURL := p.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(places) == 0 {
		zap.L().Debug("nominatim: no match", zap.String("address", address))
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lat")
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lon")
	}

	return &Coordinate{Lat: lat, Lon: lon}, nil
}
