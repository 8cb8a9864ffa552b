package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/finwrap-dev/finwrap/internal/logger"
)

// DefaultURLTemplate is the exchange-rate endpoint. {date} is "latest" or
// YYYY-MM-DD and {currency} the lower-cased source code.
const DefaultURLTemplate = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@{date}/v1/currencies/{currency}.json"

// RateUnavailableError is returned when the rate service has no rate for a
// pair and no default rate is configured.
type RateUnavailableError struct {
	From string
	To   string
}

func (e *RateUnavailableError) Error() string {
	return fmt.Sprintf("unable to fetch exchange rate for %s/%s and no default rate was specified",
		strings.ToUpper(e.From), strings.ToUpper(e.To))
}

type payloadKey struct {
	from string
	date Date
}

// Resolver looks up exchange rates from the rate service. Results are
// memoized in its Cache, and each (source currency, date) payload is
// fetched at most once per Resolver.
type Resolver struct {
	client   *http.Client
	template string
	cache    Cache

	mu       sync.Mutex
	payloads map[payloadKey]map[string]float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) Option { return func(r *Resolver) { r.client = c } }

// WithURLTemplate overrides DefaultURLTemplate.
func WithURLTemplate(t string) Option { return func(r *Resolver) { r.template = t } }

// WithCache sets the rate cache. The default is a fresh MemoryCache.
func WithCache(c Cache) Option { return func(r *Resolver) { r.cache = c } }

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client:   http.DefaultClient,
		template: DefaultURLTemplate,
		payloads: make(map[payloadKey]map[string]float64),
	}
	for _, o := range opts {
		o(r)
	}
	if r.cache == nil {
		r.cache = NewMemoryCache()
	}
	return r
}

// Rate returns how many units of to one unit of from is worth on the given
// date. When the service has no rate, def is returned if set; otherwise the
// result is a *RateUnavailableError. Transport and cache failures are
// returned as-is and are not memoized.
func (r *Resolver) Rate(ctx context.Context, from, to string, on Date, def *float64) (float64, error) {
	k := NewKey(from, to, on, def)
	if rate, ok, err := r.cache.Get(ctx, k); err != nil {
		return 0, err
	} else if ok {
		return rate, nil
	}

	rates, err := r.payload(ctx, k.From, k.To, k.Date)
	if err != nil {
		return 0, err
	}
	rate, ok := rates[k.To]
	if !ok {
		if !k.HasDefault {
			return 0, &RateUnavailableError{From: k.From, To: k.To}
		}
		rate = k.Default
	}
	if err := r.cache.Set(ctx, k, rate); err != nil {
		return 0, err
	}
	return rate, nil
}

func (r *Resolver) payload(ctx context.Context, from, to string, on Date) (map[string]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pk := payloadKey{from: from, date: on}
	if rates, ok := r.payloads[pk]; ok {
		return rates, nil
	}
	rates, err := r.fetch(ctx, from, to, on)
	if err != nil {
		return nil, err
	}
	r.payloads[pk] = rates
	return rates, nil
}

func (r *Resolver) fetch(ctx context.Context, from, to string, on Date) (map[string]float64, error) {
	log := logger.FromContext(ctx)
	url := strings.NewReplacer("{date}", string(on), "{currency}", from).Replace(r.template)
	log.Info().Str("from", from).Str("to", to).Str("date", string(on)).Msg("fetching exchange rate")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building rate request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s rates for %s: %w", strings.ToUpper(from), on, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Str("from", from).Str("date", string(on)).Int("status", resp.StatusCode).Msg("rate service returned no rates")
		return map[string]float64{}, nil
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding %s rates for %s: %w", strings.ToUpper(from), on, err)
	}
	rates := map[string]float64{}
	if raw, ok := body[from]; ok {
		if err := json.Unmarshal(raw, &rates); err != nil {
			return nil, fmt.Errorf("decoding %s rates for %s: %w", strings.ToUpper(from), on, err)
		}
	}
	return rates, nil
}
