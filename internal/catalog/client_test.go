package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-wisata/internal/catalog"
	"github.com/noah-isme/backend-wisata/internal/resilience"
)

func newClient(t *testing.T, handler http.Handler) (*catalog.HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)
	cache := catalog.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	return &catalog.HTTPClient{
		BaseURL: srv.URL,
		HTTP:    resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
		Cache:   cache,
	}, srv
}

func TestGetTransportRoutesRequiresOriginAndDestination(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	}))
	_, err := c.GetTransportRoutes(context.Background(), "", "dest-1")
	require.Error(t, err)
	_, err = c.GetTransportRoutes(context.Background(), "JKT", " ")
	require.Error(t, err)
}

func TestGetTransportRoutesDecodesEnvelope(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/routes", r.URL.Path)
		require.Equal(t, "JKT", r.URL.Query().Get("origin"))
		require.Equal(t, "dest-1", r.URL.Query().Get("destinationId"))
		_, _ = w.Write([]byte(`{"data":[{"id":"route-1","origin":"JKT","mode":"train","cost":50000}]}`))
	}))

	routes, err := c.GetTransportRoutes(context.Background(), "JKT", "dest-1")
	require.NoError(t, err)
	require.Len(t, routes, 1)
	require.Equal(t, "route-1", routes[0].ID)
	require.Equal(t, int64(50_000), routes[0].Cost)
}

func TestGetHotelsServesSecondLookupFromCache(t *testing.T) {
	var hits atomic.Int32
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"data":[{"id":"hotel-1","name":"Pantai Indah","pricePerNight":100000}]}`))
	}))

	first, err := c.GetHotels(context.Background(), "dest-1")
	require.NoError(t, err)
	second, err := c.GetHotels(context.Background(), "dest-1")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int32(1), hits.Load(), "second lookup must hit the cache")
}

func TestGetActivitiesEmptyListIsNotAnError(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))

	activities, err := c.GetActivities(context.Background(), "dest-1")
	require.NoError(t, err)
	require.Empty(t, activities)
}

func TestFetchSurfacesUpstreamFailure(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.GetTransportOrigins(context.Background())
	require.Error(t, err)
}
