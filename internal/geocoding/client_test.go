package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", UserAgent: "mapview-test"}, logger.NewNoOp())
}

func TestLookup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Brandenburger Tor", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "mapview-test", r.UserAgent())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"lat": "52.5162699",
			"lon": "13.3777034",
			"display_name": "Brandenburger Tor, Pariser Platz, Berlin",
			"boundingbox": ["52.5161", "52.5164", "13.3775", "13.3779"]
		}]`))
	})

	res, err := c.Lookup(context.Background(), "Brandenburger Tor")
	require.NoError(t, err)

	assert.Equal(t, 52.5162699, res.Lat)
	assert.Equal(t, 13.3777034, res.Lon)
	assert.Equal(t, "Brandenburger Tor, Pariser Platz, Berlin", res.Address)
	require.NotNil(t, res.Bounds)
	assert.Equal(t, orb.Bound{Min: orb.Point{13.3775, 52.5161}, Max: orb.Point{13.3779, 52.5164}}, *res.Bounds)
}

func TestLookupWithoutBoundingBox(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat": "1.5", "lon": "-2.5", "display_name": "somewhere"}]`))
	})

	res, err := c.Lookup(context.Background(), "somewhere")
	require.NoError(t, err)
	assert.Nil(t, res.Bounds)
	assert.Equal(t, -2.5, res.Lon)
}

func TestLookupNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.Lookup(context.Background(), "nowhere at all")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
		{"malformed latitude", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"lat": "north", "lon": "1"}]`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Lookup(context.Background(), "x")
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestReverse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "52.5", r.URL.Query().Get("lat"))
		assert.Equal(t, "13.4", r.URL.Query().Get("lon"))
		_, _ = w.Write([]byte(`{"lat": "52.50001", "lon": "13.39999", "display_name": "Mitte, Berlin"}`))
	})

	res, err := c.Reverse(context.Background(), 52.5, 13.4)
	require.NoError(t, err)
	assert.Equal(t, "Mitte, Berlin", res.Address)
	assert.Equal(t, 52.50001, res.Lat)
}

func TestReverseNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": "Unable to geocode"}`))
	})

	_, err := c.Reverse(context.Background(), 0, -140)
	assert.ErrorIs(t, err, ErrNotFound)
}
