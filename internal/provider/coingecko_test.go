package provider

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestProvider(cfg Config) *CoinGeckoProvider {
	p := NewCoinGeckoProvider(cfg, noop.NewTracerProvider().Tracer("test"), zerolog.Nop())
	p.limiter = rate.NewLimiter(rate.Inf, 1)
	return p
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

const marketsBody = `[
  {"id":"dogecoin","symbol":"doge","name":"Dogecoin","current_price":0.1,"price_change_percentage_24h":3.5,"market_cap":1000,"total_volume":50,"ath_change_percentage":-80},
  {"id":"ghost","symbol":"gho","name":"Ghost","current_price":1,"price_change_percentage_24h":1,"market_cap":0,"total_volume":5,"ath_change_percentage":-1},
  {"id":"pepe","symbol":"pepe","name":"Pepe","current_price":null,"price_change_percentage_24h":null,"market_cap":2000,"total_volume":null,"volume_24h":40,"ath_change_percentage":null}
]`

func TestFetchSnapshotsDirect(t *testing.T) {
	p := newTestProvider(Config{BaseURL: "http://example", AssetIDs: []string{"dogecoin", "pepe"}})
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/coins/markets", req.URL.Path)
		q := req.URL.Query()
		assert.Equal(t, "dogecoin,pepe", q.Get("ids"))
		assert.Equal(t, "usd", q.Get("vs_currency"))
		assert.Equal(t, "24h,7d", q.Get("price_change_percentage"))
		assert.Empty(t, req.Header.Get("Authorization"))
		return jsonResponse(http.StatusOK, marketsBody), nil
	})}

	snaps, err := p.FetchSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2, "zero market cap rows are dropped")

	assert.Equal(t, "dogecoin", snaps[0].ID)
	assert.Equal(t, 3.5, snaps[0].PriceChangePct24h)
	assert.Equal(t, 50.0, snaps[0].Volume24h)
	assert.Equal(t, -80.0, snaps[0].ATHChangePct)

	assert.Equal(t, "pepe", snaps[1].ID)
	assert.Equal(t, 0.0, snaps[1].CurrentPrice)
	assert.Equal(t, 40.0, snaps[1].Volume24h, "volume_24h is used when total_volume is missing")
	assert.Equal(t, -100.0, snaps[1].ATHChangePct)
}

func TestFetchSnapshotsThroughRelay(t *testing.T) {
	var gotTarget, gotAuth string
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTarget = r.URL.Query().Get("url")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = w.Write([]byte(marketsBody))
	}))
	defer relay.Close()

	p := newTestProvider(Config{BaseURL: "https://api.coingecko.com/api/v3", RelayURL: relay.URL + "/functions/v1/coingecko-proxy", RelayKey: "anon"})

	snaps, err := p.FetchSnapshots(context.Background())
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
	assert.Equal(t, "Bearer anon", gotAuth)

	target, err := url.Parse(gotTarget)
	require.NoError(t, err)
	assert.Equal(t, "api.coingecko.com", target.Host)
	assert.Equal(t, "/api/v3/coins/markets", target.Path)
}

func TestFetchSnapshotsRelayDownFallsThroughToProvider(t *testing.T) {
	relay := httptest.NewServer(http.NotFoundHandler())
	relayURL := relay.URL
	relay.Close()

	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(marketsBody))
	}))
	defer direct.Close()

	p := newTestProvider(Config{BaseURL: direct.URL, RelayURL: relayURL})
	snaps, err := p.FetchSnapshots(context.Background())
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestFetchSnapshotsErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   FetchErrorKind
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`, kind: FetchStatus},
		{name: "error object", status: http.StatusOK, body: `{"error":"Failed to fetch data","fallback":"Using demo data instead"}`, kind: FetchMalformed},
		{name: "not an array", status: http.StatusOK, body: `{"coins":[]}`, kind: FetchMalformed},
		{name: "garbage", status: http.StatusOK, body: `[{"id":`, kind: FetchMalformed},
		{name: "empty", status: http.StatusOK, body: ``, kind: FetchMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(Config{BaseURL: "http://example"})
			p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, tt.body), nil
			})}

			snaps, err := p.FetchSnapshots(context.Background())
			assert.Nil(t, snaps)

			var fe *FetchError
			require.True(t, errors.As(err, &fe), "expected *FetchError, got %v", err)
			assert.Equal(t, tt.kind, fe.Kind)
		})
	}
}

func TestFetchSnapshotsTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer slow.Close()

	p := newTestProvider(Config{BaseURL: slow.URL, Timeout: 20 * time.Millisecond})
	_, err := p.FetchSnapshots(context.Background())

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FetchTransport, fe.Kind)
}

func TestFetchSnapshotsCircuitOpens(t *testing.T) {
	calls := 0
	p := newTestProvider(Config{BaseURL: "http://example"})
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusBadGateway, "bad gateway"), nil
	})}

	for i := 0; i < 5; i++ {
		_, err := p.FetchSnapshots(context.Background())
		require.Error(t, err)
	}

	_, err := p.FetchSnapshots(context.Background())
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FetchCircuitOpen, fe.Kind)
	assert.Equal(t, 5, calls, "open breaker must not hit the network")
}

func TestFallbackSnapshotsAreUsable(t *testing.T) {
	snaps := FallbackSnapshots()
	require.Len(t, snaps, 10)
	for _, s := range snaps {
		assert.Greater(t, s.MarketCap, 0.0, s.ID)
		assert.NotEmpty(t, s.Symbol)
	}

	snaps[0].CurrentPrice = 999
	assert.NotEqual(t, 999.0, FallbackSnapshots()[0].CurrentPrice)
}

func TestRelayURLKeepsExistingQuery(t *testing.T) {
	got := relayURL("http://relay/fn?x=1", "https://a/b?c=d")
	assert.True(t, strings.HasPrefix(got, "http://relay/fn?x=1&url="))
}
