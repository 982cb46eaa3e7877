package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"memebot/internal/domain"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	coingeckoBaseURL = "https://api.coingecko.com/api/v3"
	userAgent        = "memebot-signals/1.0"

	// athUnknown is used when the provider omits the ATH distance.
	athUnknown = -100
)

// Config controls where and how market snapshots are fetched.
type Config struct {
	BaseURL  string
	RelayURL string
	RelayKey string
	PerPage  int
	Timeout  time.Duration
	AssetIDs []string
}

// CoinGeckoProvider fetches /coins/markets snapshots, optionally through a relay
// that re-serves the upstream response with a permissive CORS policy.
type CoinGeckoProvider struct {
	client   *http.Client
	baseURL  string
	relayURL string
	relayKey string
	perPage  int
	ids      []string
	tracer   trace.Tracer
	logger   zerolog.Logger
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
}

// NewCoinGeckoProvider creates a provider with rate limiting (8 requests per
// minute) and a circuit breaker that opens after 5 consecutive failures.
func NewCoinGeckoProvider(cfg Config, tracer trace.Tracer, logger zerolog.Logger) *CoinGeckoProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = coingeckoBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.AssetIDs) == 0 {
		cfg.AssetIDs = domain.WatchedAssetIDs
	}

	logger = logger.With().Str("component", "coingecko").Logger()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "coingecko-markets",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &CoinGeckoProvider{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		relayURL: cfg.RelayURL,
		relayKey: cfg.RelayKey,
		perPage:  cfg.PerPage,
		ids:      cfg.AssetIDs,
		tracer:   tracer,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(7500*time.Millisecond), 8),
		breaker:  breaker,
	}
}

// FetchSnapshots returns the current market snapshot for the watch list.
// It never substitutes fallback data; every failure is a *FetchError and the
// caller decides what to do with it.
func (p *CoinGeckoProvider) FetchSnapshots(ctx context.Context) ([]domain.AssetSnapshot, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-snapshots")
	defer span.End()

	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetch(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &FetchError{Kind: FetchCircuitOpen, Source: "coingecko", Err: err}
		}
		span.RecordError(err)
		return nil, err
	}

	snapshots := out.([]domain.AssetSnapshot)
	span.SetAttributes(attribute.Int("snapshots", len(snapshots)))
	return snapshots, nil
}

func (p *CoinGeckoProvider) fetch(ctx context.Context) ([]domain.AssetSnapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Kind: FetchTransport, Source: "rate-limit", Err: err}
	}

	target := p.marketsURL()

	var body []byte
	var err error
	if p.relayURL != "" {
		body, err = p.doRequest(ctx, "relay", relayURL(p.relayURL, target), p.relayKey)
		var fe *FetchError
		if errors.As(err, &fe) && fe.Kind == FetchTransport && ctx.Err() == nil {
			p.logger.Warn().Err(err).Msg("relay unreachable, trying provider directly")
			body, err = p.doRequest(ctx, "coingecko", target, "")
		}
	} else {
		body, err = p.doRequest(ctx, "coingecko", target, "")
	}
	if err != nil {
		return nil, err
	}

	return parseMarkets(body)
}

func (p *CoinGeckoProvider) marketsURL() string {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", strings.Join(p.ids, ","))
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(p.perPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "24h,7d")
	return p.baseURL + "/coins/markets?" + q.Encode()
}

func relayURL(relay, target string) string {
	sep := "?"
	if strings.Contains(relay, "?") {
		sep = "&"
	}
	return relay + sep + "url=" + url.QueryEscape(target)
}

func (p *CoinGeckoProvider) doRequest(ctx context.Context, source, rawURL, bearer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchTransport, Source: source, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: FetchTransport, Source: source, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: FetchTransport, Source: source, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Kind:   FetchStatus,
			Source: source,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}
	return body, nil
}

type marketRow struct {
	ID                string   `json:"id"`
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	CurrentPrice      *float64 `json:"current_price"`
	PriceChangePct24h *float64 `json:"price_change_percentage_24h"`
	MarketCap         *float64 `json:"market_cap"`
	TotalVolume       *float64 `json:"total_volume"`
	Volume24h         *float64 `json:"volume_24h"`
	ATHChangePct      *float64 `json:"ath_change_percentage"`
}

// parseMarkets decodes a /coins/markets array. Error-shaped objects and
// anything that is not an array are reported as malformed.
func parseMarkets(body []byte) ([]domain.AssetSnapshot, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &FetchError{Kind: FetchMalformed, Source: "coingecko", Err: errors.New("empty body")}
	}
	if trimmed[0] != '[' {
		var errBody struct {
			Error   any    `json:"error"`
			Message string `json:"message"`
		}
		if trimmed[0] == '{' && json.Unmarshal(trimmed, &errBody) == nil && errBody.Error != nil {
			return nil, &FetchError{
				Kind:   FetchMalformed,
				Source: "coingecko",
				Err:    fmt.Errorf("error response: %v %s", errBody.Error, errBody.Message),
			}
		}
		return nil, &FetchError{Kind: FetchMalformed, Source: "coingecko", Err: errors.New("response is not an array")}
	}

	var rows []*marketRow
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, &FetchError{Kind: FetchMalformed, Source: "coingecko", Err: err}
	}

	snapshots := make([]domain.AssetSnapshot, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			continue
		}
		marketCap := deref(r.MarketCap, 0)
		if marketCap <= 0 {
			continue
		}
		volume := deref(r.TotalVolume, 0)
		if volume == 0 {
			volume = deref(r.Volume24h, 0)
		}
		snapshots = append(snapshots, domain.AssetSnapshot{
			ID:                r.ID,
			Symbol:            r.Symbol,
			Name:              r.Name,
			CurrentPrice:      deref(r.CurrentPrice, 0),
			PriceChangePct24h: deref(r.PriceChangePct24h, 0),
			MarketCap:         marketCap,
			Volume24h:         volume,
			ATHChangePct:      deref(r.ATHChangePct, athUnknown),
		})
	}
	return snapshots, nil
}

func deref(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
