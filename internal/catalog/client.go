package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-wisata/internal/obs"
	"github.com/noah-isme/backend-wisata/internal/pricing"
	"github.com/noah-isme/backend-wisata/internal/resilience"
)

// Origin is a departure point offered by the destination catalog.
type Origin struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Route is a priced transport option between an origin and a destination.
type Route struct {
	ID     string        `json:"id"`
	Origin string        `json:"origin"`
	Mode   string        `json:"mode"`
	Cost   pricing.Money `json:"cost"`
}

// Hotel is a per-night priced lodging option.
type Hotel struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	PricePerNight pricing.Money `json:"pricePerNight"`
}

// Activity is a per-session priced excursion.
type Activity struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Price pricing.Money `json:"price"`
}

// Client talks to the destination catalog collaborator. Lookups return an
// ordered list or an empty list; "no results" is never an error.
type Client interface {
	GetTransportOrigins(ctx context.Context) ([]Origin, error)
	GetTransportRoutes(ctx context.Context, origin, destinationID string) ([]Route, error)
	GetHotels(ctx context.Context, destinationID string) ([]Hotel, error)
	GetActivities(ctx context.Context, destinationID string) ([]Activity, error)
}

// HTTPClient implements Client against the catalog's JSON API, with a Redis
// read-through cache in front of every lookup.
type HTTPClient struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	Cache   *Cache
}

var tracer = otel.Tracer("catalog.Client")

// GetTransportOrigins lists available departure points.
func (c *HTTPClient) GetTransportOrigins(ctx context.Context) ([]Origin, error) {
	var out []Origin
	err := c.fetch(ctx, "origins", "/v1/origins", nil, &out)
	return out, err
}

// GetTransportRoutes lists priced routes for an origin/destination pair. The
// caller is responsible for never issuing this with a stale origin.
func (c *HTTPClient) GetTransportRoutes(ctx context.Context, origin, destinationID string) ([]Route, error) {
	if strings.TrimSpace(origin) == "" || strings.TrimSpace(destinationID) == "" {
		return nil, errors.New("catalog: origin and destination are required for route lookup")
	}
	var out []Route
	err := c.fetch(ctx, "routes", "/v1/routes", url.Values{"origin": {origin}, "destinationId": {destinationID}}, &out)
	return out, err
}

// GetHotels lists lodging options for a destination.
func (c *HTTPClient) GetHotels(ctx context.Context, destinationID string) ([]Hotel, error) {
	var out []Hotel
	err := c.fetch(ctx, "hotels", "/v1/hotels", url.Values{"destinationId": {destinationID}}, &out)
	return out, err
}

// GetActivities lists excursions for a destination.
func (c *HTTPClient) GetActivities(ctx context.Context, destinationID string) ([]Activity, error) {
	var out []Activity
	err := c.fetch(ctx, "activities", "/v1/activities", url.Values{"destinationId": {destinationID}}, &out)
	return out, err
}

func (c *HTTPClient) fetch(ctx context.Context, resource, path string, query url.Values, dst any) error {
	ctx, span := tracer.Start(ctx, "Catalog."+resource)
	defer span.End()
	span.SetAttributes(attribute.String("catalog.resource", resource))

	cacheKey := cacheKeyFor(resource, query)
	if ok, err := c.Cache.GetJSON(ctx, cacheKey, dst); err == nil && ok {
		span.SetAttributes(attribute.Bool("catalog.cache_hit", true))
		return nil
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTP.Do(ctx, req)
	if obs.CatalogFetchLatency != nil {
		obs.CatalogFetchLatency.WithLabelValues(resource).Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("catalog: fetch %s: %w", resource, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog: fetch %s: unexpected status %s", resource, resp.Status)
	}
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("catalog: decode %s: %w", resource, err)
	}
	if err := json.Unmarshal(body.Data, dst); err != nil {
		return fmt.Errorf("catalog: decode %s payload: %w", resource, err)
	}
	_ = c.Cache.SetJSON(ctx, cacheKey, dst)
	return nil
}

func cacheKeyFor(resource string, query url.Values) string {
	if len(query) == 0 {
		return "catalog:" + resource
	}
	return "catalog:" + resource + ":" + query.Encode()
}
