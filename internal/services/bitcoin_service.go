package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/navalha/internal/metrics"
	"github.com/example/navalha/internal/models"
)

// SatoshiPlaces is the number of decimal places in a BTC amount.
const SatoshiPlaces = 8

// BitcoinPayment is a quoted Bitcoin payment request.
type BitcoinPayment struct {
	Address    string
	BTCAmount  decimal.Decimal
	Rate       decimal.Decimal
	RateSource string
	URI        string
}

// BitcoinService quotes fiat amounts in BTC and builds BIP21 payment URIs.
type BitcoinService struct {
	oracle       PriceOracle
	addresses    AddressProvider
	fallbackRate decimal.Decimal
	logger       *zap.Logger
}

func NewBitcoinService(oracle PriceOracle, addresses AddressProvider, fallbackRate decimal.Decimal, logger *zap.Logger) *BitcoinService {
	return &BitcoinService{
		oracle:       oracle,
		addresses:    addresses,
		fallbackRate: fallbackRate,
		logger:       logger,
	}
}

// BuildPayment quotes amountFiat at the current rate. An oracle failure
// falls back to the configured static rate; only a missing address fails.
func (s *BitcoinService) BuildPayment(ctx context.Context, amountFiat decimal.Decimal, description string) (*BitcoinPayment, error) {
	if !amountFiat.IsPositive() {
		return nil, NewPaymentError(ErrorInvalidPaymentRequest, "amount must be positive", nil)
	}

	address, err := s.addresses.Address(ctx)
	if err != nil {
		return nil, err
	}

	rate, source := s.rate(ctx)
	btc := amountFiat.DivRound(rate, SatoshiPlaces+8).RoundCeil(SatoshiPlaces)

	return &BitcoinPayment{
		Address:    address,
		BTCAmount:  btc,
		Rate:       rate,
		RateSource: source,
		URI:        BuildBitcoinURI(address, btc, description),
	}, nil
}

func (s *BitcoinService) rate(ctx context.Context) (decimal.Decimal, string) {
	rate, err := s.oracle.BTCRate(ctx)
	if err == nil && rate.IsPositive() {
		return rate, models.RateSourceOracle
	}
	if err == nil {
		err = fmt.Errorf("non-positive rate %s", rate)
	}

	metrics.RecordOracleFallback()
	s.logger.Warn("price oracle unavailable, using fallback rate",
		zap.String("fallback_rate", s.fallbackRate.String()),
		zap.Error(NewPaymentError(ErrorOracleUnavailable, "", err)),
	)
	return s.fallbackRate, models.RateSourceFallback
}

// BuildBitcoinURI renders bitcoin:<address>?amount=<btc>&label=<label>.
func BuildBitcoinURI(address string, btcAmount decimal.Decimal, label string) string {
	uri := fmt.Sprintf("bitcoin:%s?amount=%s", address, btcAmount.StringFixed(SatoshiPlaces))
	if label != "" {
		uri += "&label=" + strings.ReplaceAll(url.QueryEscape(label), "+", "%20")
	}
	return uri
}

// StaticAddressProvider always hands out the same receiving address.
type StaticAddressProvider struct {
	address string
}

func NewStaticAddressProvider(address string) *StaticAddressProvider {
	return &StaticAddressProvider{address: strings.TrimSpace(address)}
}

func (p *StaticAddressProvider) Address(ctx context.Context) (string, error) {
	if p.address == "" {
		return "", NewPaymentError(ErrorAddressUnavailable, "no receiving address configured", nil)
	}
	return p.address, nil
}
