package currency

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwrap-dev/finwrap/internal/logger"
)

// rateServer serves {from: {to: rate}} payloads from rates, keyed by
// "date/from". Unknown keys get a 404.
type rateServer struct {
	*httptest.Server
	hits atomic.Int64

	mu    sync.Mutex
	paths []string
}

func newRateServer(t *testing.T, rates map[string]map[string]float64) *rateServer {
	t.Helper()
	rs := &rateServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		rs.mu.Lock()
		rs.paths = append(rs.paths, r.URL.Path)
		rs.mu.Unlock()

		// /{date}/{from}.json
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		from := strings.TrimSuffix(parts[1], ".json")
		quote, ok := rates[parts[0]+"/"+from]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, `{"date": %q, %q: {`, parts[0], from)
		first := true
		for to, rate := range quote {
			if !first {
				b.WriteString(",")
			}
			first = false
			fmt.Fprintf(&b, "%q: %v", to, rate)
		}
		b.WriteString("}}")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(b.String()))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *rateServer) resolver(opts ...Option) *Resolver {
	opts = append([]Option{WithURLTemplate(rs.URL + "/{date}/{currency}.json")}, opts...)
	return NewResolver(opts...)
}

func ptr(f float64) *float64 { return &f }

func TestResolver_Rate(t *testing.T) {
	rs := newRateServer(t, map[string]map[string]float64{
		"latest/usd":     {"eur": 0.9, "gbp": 0.8},
		"2024-01-01/usd": {"eur": 0.91},
	})
	r := rs.resolver()
	ctx := context.Background()

	rate, err := r.Rate(ctx, "USD", "EUR", Latest, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.9, rate)

	rate, err = r.Rate(ctx, "usd", "eur", On(time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.91, rate)

	rs.mu.Lock()
	defer rs.mu.Unlock()
	assert.Equal(t, []string{"/latest/usd.json", "/2024-01-01/usd.json"}, rs.paths)
}

func TestResolver_Idempotent(t *testing.T) {
	rs := newRateServer(t, map[string]map[string]float64{
		"latest/usd": {"eur": 0.9},
	})
	r := rs.resolver()
	ctx := context.Background()

	first, err := r.Rate(ctx, "usd", "eur", Latest, nil)
	require.NoError(t, err)
	second, err := r.Rate(ctx, "usd", "eur", Latest, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), rs.hits.Load())
}

func TestResolver_OneFetchPerSourceAndDate(t *testing.T) {
	rs := newRateServer(t, map[string]map[string]float64{
		"latest/usd": {"eur": 0.9, "gbp": 0.8},
	})
	r := rs.resolver()
	ctx := context.Background()

	_, err := r.Rate(ctx, "usd", "eur", Latest, nil)
	require.NoError(t, err)
	rate, err := r.Rate(ctx, "usd", "gbp", Latest, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.8, rate)
	assert.Equal(t, int64(1), rs.hits.Load())
}

func TestResolver_MissingRate(t *testing.T) {
	rs := newRateServer(t, map[string]map[string]float64{
		"latest/usd": {"gbp": 0.8},
	})
	r := rs.resolver()
	ctx := context.Background()

	_, err := r.Rate(ctx, "usd", "eur", Latest, nil)
	var unavailable *RateUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "unable to fetch exchange rate for USD/EUR and no default rate was specified", err.Error())

	rate, err := r.Rate(ctx, "usd", "eur", Latest, ptr(1.5))
	require.NoError(t, err)
	assert.Equal(t, 1.5, rate)
}

func TestResolver_NonSuccessUsesDefault(t *testing.T) {
	rs := newRateServer(t, nil)
	r := rs.resolver()
	ctx := context.Background()

	rate, err := r.Rate(ctx, "xyz", "eur", Latest, ptr(2))
	require.NoError(t, err)
	assert.Equal(t, 2.0, rate)

	_, err = r.Rate(ctx, "xyz", "eur", Latest, nil)
	var unavailable *RateUnavailableError
	assert.True(t, errors.As(err, &unavailable))

	// The 404 payload is memoized too.
	assert.Equal(t, int64(1), rs.hits.Load())
}

func TestResolver_DefaultIsPartOfKey(t *testing.T) {
	rs := newRateServer(t, nil)
	cache := NewMemoryCache()
	r := rs.resolver(WithCache(cache))
	ctx := context.Background()

	a, err := r.Rate(ctx, "usd", "eur", Latest, ptr(1.1))
	require.NoError(t, err)
	b, err := r.Rate(ctx, "usd", "eur", Latest, ptr(1.2))
	require.NoError(t, err)

	assert.Equal(t, 1.1, a)
	assert.Equal(t, 1.2, b)
	assert.Equal(t, 2, cache.Len())
}

func TestResolver_TransportError(t *testing.T) {
	r := NewResolver(WithURLTemplate("http://127.0.0.1:1/{date}/{currency}.json"))
	_, err := r.Rate(context.Background(), "usd", "eur", Latest, ptr(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching USD rates for latest")
}

func TestResolver_LogsFetch(t *testing.T) {
	rs := newRateServer(t, map[string]map[string]float64{"latest/usd": {"eur": 0.9}})
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

	_, err := rs.resolver().Rate(ctx, "USD", "EUR", Latest, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"from":"usd"`)
	assert.Contains(t, buf.String(), `"to":"eur"`)
	assert.Contains(t, buf.String(), `"date":"latest"`)
	assert.Contains(t, buf.String(), "fetching exchange rate")
}

func TestKey(t *testing.T) {
	assert.Equal(t, NewKey(" USD", "eur ", Latest, nil), NewKey("usd", "EUR", Latest, nil))
	assert.NotEqual(t, NewKey("usd", "eur", Latest, nil), NewKey("usd", "eur", Latest, ptr(1)))
	assert.Equal(t, "usd:eur:2024-01-02:-", NewKey("usd", "eur", "2024-01-02", nil).String())
	assert.Equal(t, "usd:eur:latest:1.25", NewKey("usd", "eur", Latest, ptr(1.25)).String())
}
