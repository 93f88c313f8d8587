package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/navalha/internal/circuitbreaker"
)

const btcRateCacheKey = "rate:btc:brl"

// RateCache keeps recent exchange rates.
type RateCache interface {
	GetRate(ctx context.Context, key string) (decimal.Decimal, bool)
	SetRate(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error
}

// HTTPPriceOracle reads the BRL price of one BTC from a CoinGecko-style
// endpoint returning {"bitcoin":{"brl":<price>}}.
type HTTPPriceOracle struct {
	url     string
	client  *http.Client
	cache   RateCache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewHTTPPriceOracle(url string, cache RateCache, ttl time.Duration, logger *zap.Logger) *HTTPPriceOracle {
	return &HTTPPriceOracle{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
		ttl:     ttl,
		breaker: circuitbreaker.NewCircuitBreaker(3, time.Minute),
		logger:  logger,
	}
}

type priceResponse struct {
	Bitcoin struct {
		BRL json.Number `json:"brl"`
	} `json:"bitcoin"`
}

func (o *HTTPPriceOracle) BTCRate(ctx context.Context) (decimal.Decimal, error) {
	if o.cache != nil {
		if rate, ok := o.cache.GetRate(ctx, btcRateCacheKey); ok {
			return rate, nil
		}
	}

	var rate decimal.Decimal
	err := o.breaker.Execute(ctx, func() error {
		var ferr error
		rate, ferr = o.fetch(ctx)
		return ferr
	})
	if err != nil {
		return decimal.Zero, err
	}

	if o.cache != nil && o.ttl > 0 {
		if err := o.cache.SetRate(ctx, btcRateCacheKey, rate, o.ttl); err != nil {
			o.logger.Warn("rate cache write failed", zap.Error(err))
		}
	}
	return rate, nil
}

func (o *HTTPPriceOracle) fetch(ctx context.Context) (decimal.Decimal, error) {
	if o.url == "" {
		return decimal.Zero, errors.New("price oracle url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price request build: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price oracle status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var parsed priceResponse
	if err := dec.Decode(&parsed); err != nil {
		return decimal.Zero, fmt.Errorf("price response unmarshal: %w", err)
	}

	rate, err := decimal.NewFromString(parsed.Bitcoin.BRL.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("price response rate %q: %w", parsed.Bitcoin.BRL, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("price oracle returned non-positive rate %s", rate)
	}
	return rate, nil
}
