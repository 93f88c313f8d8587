package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EsploraLedger reads address balances from an Esplora-compatible explorer
// API (GET {base}/address/{address}).
type EsploraLedger struct {
	baseURL        string
	client         *http.Client
	includeMempool bool
}

func NewEsploraLedger(baseURL string, includeMempool bool) *EsploraLedger {
	return &EsploraLedger{
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         &http.Client{Timeout: 15 * time.Second},
		includeMempool: includeMempool,
	}
}

type esploraStats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	TxCount      int   `json:"tx_count"`
}

type esploraAddress struct {
	Address      string       `json:"address"`
	ChainStats   esploraStats `json:"chain_stats"`
	MempoolStats esploraStats `json:"mempool_stats"`
}

// ReceivedAt returns the cumulative BTC ever received at address.
func (l *EsploraLedger) ReceivedAt(ctx context.Context, address string) (decimal.Decimal, error) {
	if address == "" {
		return decimal.Zero, errors.New("ledger: empty address")
	}

	endpoint := l.baseURL + "/address/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger request build: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("ledger status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info esploraAddress
	if err := json.Unmarshal(body, &info); err != nil {
		return decimal.Zero, fmt.Errorf("ledger response unmarshal: %w", err)
	}

	sats := info.ChainStats.FundedTxoSum
	if l.includeMempool {
		sats += info.MempoolStats.FundedTxoSum
	}
	return decimal.New(sats, -SatoshiPlaces), nil
}
