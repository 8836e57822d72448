package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-wisata/internal/obs"
	"github.com/noah-isme/backend-wisata/internal/pricing"
	"github.com/noah-isme/backend-wisata/internal/resilience"
)

// Source labels where a conversion rate came from.
const (
	SourceLive     = "live"
	SourceCached   = "cached"
	SourceFallback = "fallback"
)

// Provider resolves a conversion rate from a stable unit to local currency
// minor units. Lookups are bounded by the wrapped client's timeout; on
// failure the last-known cached rate is used, and the fixed fallback rate as
// a last resort, so a rate outage can never block a payment.
type Provider struct {
	BaseURL      string
	HTTP         resilience.HTTPClient
	R            *redis.Client
	CacheTTL     time.Duration
	FallbackRate pricing.Money
	Logger       zerolog.Logger
}

// Rate returns the local-currency minor units per one stable unit for the
// given pair, along with the source the value came from.
func (p *Provider) Rate(ctx context.Context, base, quote string) (pricing.Money, string, error) {
	rate, err := p.liveRate(ctx, base, quote)
	if err == nil && rate > 0 {
		p.cacheRate(ctx, base, quote, rate)
		recordLookup(SourceLive)
		return rate, SourceLive, nil
	}
	if err != nil {
		p.Logger.Warn().Err(err).Str("base", base).Str("quote", quote).Msg("live rate lookup failed")
	}
	if cached, ok := p.cachedRate(ctx, base, quote); ok {
		recordLookup(SourceCached)
		return cached, SourceCached, nil
	}
	recordLookup(SourceFallback)
	return p.FallbackRate, SourceFallback, nil
}

// ToLocal converts an amount of stable-unit cents into local minor units
// using the resolved rate.
func (p *Provider) ToLocal(ctx context.Context, stableCents pricing.Money, base, quote string) (pricing.Money, string, error) {
	rate, source, err := p.Rate(ctx, base, quote)
	if err != nil {
		return 0, source, err
	}
	return stableCents * rate / 100, source, nil
}

func (p *Provider) liveRate(ctx context.Context, base, quote string) (pricing.Money, error) {
	if strings.TrimSpace(p.BaseURL) == "" {
		return 0, fmt.Errorf("rates: base url not configured")
	}
	endpoint := strings.TrimRight(p.BaseURL, "/") + "/v1/rates?" + url.Values{
		"base":  {base},
		"quote": {quote},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.HTTP.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rates: unexpected status %s", resp.Status)
	}
	var body struct {
		Rate pricing.Money `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	if body.Rate <= 0 {
		return 0, fmt.Errorf("rates: non-positive rate %d", body.Rate)
	}
	return body.Rate, nil
}

func (p *Provider) cacheRate(ctx context.Context, base, quote string, rate pricing.Money) {
	if p.R == nil {
		return
	}
	ttl := p.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_ = p.R.Set(ctx, rateKey(base, quote), strconv.FormatInt(rate, 10), ttl).Err()
}

func (p *Provider) cachedRate(ctx context.Context, base, quote string) (pricing.Money, bool) {
	if p.R == nil {
		return 0, false
	}
	raw, err := p.R.Get(ctx, rateKey(base, quote)).Result()
	if err != nil {
		return 0, false
	}
	rate, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || rate <= 0 {
		return 0, false
	}
	return rate, true
}

func rateKey(base, quote string) string {
	return "rate:" + base + ":" + quote
}

func recordLookup(source string) {
	if obs.RateLookupTotal != nil {
		obs.RateLookupTotal.WithLabelValues(source).Inc()
	}
}
