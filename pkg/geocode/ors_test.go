package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestORS_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		// GeoJSON order is [lon, lat].
		_, _ = io.WriteString(w, `{"features":[{"geometry":{"coordinates":[4.8357,45.764]}}]}`)
	}))
	defer srv.Close()

	p := NewORS("test-key", WithORSBaseURL(srv.URL))
	coord, err := p.Geocode(context.Background(), "LYON")
	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.InDelta(t, 45.764, coord.Lat, 1e-9)
	assert.InDelta(t, 4.8357, coord.Lon, 1e-9)
}

func TestORS_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"features":[]}`)
	}))
	defer srv.Close()

	coord, err := NewORS("test-key", WithORSBaseURL(srv.URL)).Geocode(context.Background(), "NOWHERE")
	require.NoError(t, err)
	assert.Nil(t, coord)
}

func TestORS_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewORS("test-key", WithORSBaseURL(srv.URL)).Geocode(context.Background(), "LYON")
	require.Error(t, err)
}

func TestORS_UnavailableWithoutKey(t *testing.T) {
	p := NewORS("")
	assert.False(t, p.Available())

	_, err := p.Geocode(context.Background(), "LYON")
	require.Error(t, err)
}

func TestORS_MalformedCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"features":[{"geometry":{"coordinates":[4.8357]}}]}`)
	}))
	defer srv.Close()

	_, err := NewORS("test-key", WithORSBaseURL(srv.URL)).Geocode(context.Background(), "LYON")
	require.Error(t, err)
}
