package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POLL ORACLE - HTTP-polling Price Oracle Adapter with a fallback chain
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on feeds/chainlink.go's primary/CMC-fallback/Binance-last-resort
// source chain. Generalized from that file's always-on background poller
// into an on-demand Get that tries each source in order within the caller's
// ctx deadline, matching the recommended ~10s adapter-level timeout
// discipline for a single price fetch.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Source fetches a spot price for symbol from one upstream.
type Source func(ctx context.Context, symbol string) (decimal.Decimal, error)

// PollOracle tries a chain of Sources in order, returning the first success.
type PollOracle struct {
	sources []Source
}

// NewPollOracle builds a fallback-chain oracle. sources are tried in the
// given order on every Get call.
func NewPollOracle(sources ...Source) *PollOracle {
	return &PollOracle{sources: sources}
}

// Get implements Oracle.
func (p *PollOracle) Get(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	for i, src := range p.sources {
		price, err := src(ctx, symbol)
		if err != nil {
			log.Debug().Err(err).Int("source", i).Str("symbol", symbol).Msg("price source failed, trying next")
			continue
		}
		if price.IsZero() {
			continue
		}
		return price, true
	}
	return decimal.Zero, false
}

// HTTPJSONSource builds a Source that GETs urlFmt (with symbol substituted
// via fmt.Sprintf) and extracts a decimal price with extract.
func HTTPJSONSource(client *http.Client, urlFmt string, extract func(body []byte) (decimal.Decimal, error)) Source {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return func(ctx context.Context, symbol string) (decimal.Decimal, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(urlFmt, symbol), nil)
		if err != nil {
			return decimal.Zero, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return decimal.Zero, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return decimal.Zero, fmt.Errorf("price source returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return decimal.Zero, err
		}

		return extract(body)
	}
}

// cryptoCompareEnvelope is the shape of min-api.cryptocompare.com/data/price.
type cryptoCompareEnvelope struct {
	USD json.Number `json:"USD"`
}

// CryptoCompareExtract parses a cryptocompare-style {"USD": "..."} body.
func CryptoCompareExtract(body []byte) (decimal.Decimal, error) {
	var env cryptoCompareEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(env.USD.String())
}
