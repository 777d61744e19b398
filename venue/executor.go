package venue

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ON-CHAIN SWAP EXECUTOR - Swap Executor Adapter implementation
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on exec/client.go's Client: go-ethereum for key handling and
// address validation, a dry-run mode that fabricates a receipt without
// touching the venue, and a bounded retry loop around order submission
// (executeLive). Generalized here: retries only cover the submission
// round-trip before the venue has acknowledged receipt - once an order is
// acknowledged, a retry is never attempted, since Execute is documented
// non-idempotent and a second acknowledged submission would double-swap.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Config controls the on-chain executor's behavior.
type Config struct {
	BaseURL     string
	PrivateKey  string // hex, optional; dry-run if empty
	MaxRetries  int
	RetryDelay  time.Duration
	DryRun      bool
	HTTPTimeout time.Duration
}

// DefaultConfig returns sensible defaults for dry-run operation.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  2,
		RetryDelay:  100 * time.Millisecond,
		DryRun:      true,
		HTTPTimeout: 10 * time.Second,
	}
}

// OnChainExecutor implements Executor against a CLOB-style swap venue.
type OnChainExecutor struct {
	cfg        Config
	privateKey *ecdsa.PrivateKey
	address    string
	httpClient *http.Client
}

// NewOnChainExecutor constructs an executor from cfg. A malformed private
// key is an initialization error; an absent one forces dry-run.
func NewOnChainExecutor(cfg Config) (*OnChainExecutor, error) {
	e := &OnChainExecutor{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}

	if cfg.PrivateKey == "" {
		e.cfg.DryRun = true
		return e, nil
	}

	hexKey := strings.TrimPrefix(cfg.PrivateKey, "0x")
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	e.privateKey = pk
	e.address = crypto.PubkeyToAddress(pk.PublicKey).Hex()

	return e, nil
}

// Execute dispatches the reversing trade. price is the last observed price
// at the moment the exit condition fired, used only as the limit/market
// reference - the venue's fill price (in the returned Receipt) is what
// feeds the PnL computation.
func (e *OnChainExecutor) Execute(ctx context.Context, req ReversingRequest, price decimal.Decimal) (Receipt, bool) {
	if !common.IsHexAddress(req.SafeAddress) {
		log.Error().Str("safe_address", req.SafeAddress).Msg("swap rejected: malformed safe address")
		return Receipt{}, false
	}

	if e.cfg.DryRun {
		return e.simulate(req, price), true
	}

	receipt, err := e.submitWithRetry(ctx, req, price)
	if err != nil {
		log.Error().Err(err).Str("token", req.TokenSymbol).Str("side", string(req.Side)).Msg("swap execution failed")
		return Receipt{}, false
	}
	return receipt, true
}

func (e *OnChainExecutor) simulate(req ReversingRequest, price decimal.Decimal) Receipt {
	now := time.Now()
	return Receipt{
		TxHash:    fmt.Sprintf("0xDRY%d", now.UnixNano()),
		FillPrice: price,
		FilledAt:  now,
	}
}

type orderPayload struct {
	Safe     string `json:"safe"`
	Network  string `json:"network"`
	Token    string `json:"token"`
	Side     string `json:"side"`
	Amount   string `json:"amount"`
	PriceRef string `json:"priceRef"`
}

type orderResponse struct {
	TxHash    string          `json:"txHash"`
	FillPrice decimal.Decimal `json:"fillPrice"`
}

// submitWithRetry retries only submission failures that occur before the
// venue acknowledges the order (connection refused, timeout dialing, 5xx).
// Once a response body has been read, the order is considered decided and
// is never retried, successful or not.
func (e *OnChainExecutor) submitWithRetry(ctx context.Context, req ReversingRequest, price decimal.Decimal) (Receipt, error) {
	payload := orderPayload{
		Safe:     req.SafeAddress,
		Network:  req.NetworkKey,
		Token:    req.TokenSymbol,
		Side:     string(req.Side),
		Amount:   req.Amount.String(),
		PriceRef: price.String(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode order: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		receipt, retryable, err := e.attemptSubmit(ctx, body, price)
		if err == nil {
			return receipt, nil
		}

		lastErr = err
		if !retryable {
			return Receipt{}, err
		}

		log.Warn().Err(err).Int("attempt", attempt+1).Msg("swap submission failed, retrying")
		time.Sleep(e.cfg.RetryDelay * time.Duration(attempt+1))
	}

	return Receipt{}, fmt.Errorf("swap submission exhausted retries: %w", lastErr)
}

// attemptSubmit makes one submission attempt. retryable is true only for
// a failed dial (including a dial timeout) or a 5xx -
// a parseable 2xx/4xx response means the order was decided and must not be
// retried.
func (e *OnChainExecutor) attemptSubmit(ctx context.Context, body []byte, price decimal.Decimal) (Receipt, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/swap", strings.NewReader(string(body)))
	if err != nil {
		return Receipt{}, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		// Only a failure to connect is known to precede submission; any other
		// transport error (e.g. a timeout awaiting the response) leaves the
		// outcome unknown and is not retried.
		var opErr *net.OpError
		return Receipt{}, errors.As(err, &opErr) && opErr.Op == "dial", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Receipt{}, true, fmt.Errorf("swap venue returned status %d", resp.StatusCode)
	}

	var out orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Receipt{}, false, fmt.Errorf("decode swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.TxHash == "" {
		return Receipt{}, false, fmt.Errorf("swap rejected by venue, status %d", resp.StatusCode)
	}

	return Receipt{
		TxHash:    out.TxHash,
		FillPrice: out.FillPrice,
		FilledAt:  time.Now(),
	}, false, nil
}
