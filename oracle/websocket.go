package oracle

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ═══════════════════════════════════════════════════════════════════════════════
// WEBSOCKET ORACLE - live feed-backed Price Oracle Adapter
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on feeds/polymarket_ws.go's connectionLoop/readLoop/pingLoop
// reconnect-with-backoff pattern and its in-memory prices map. Generalized
// from a market+side keyed cache to a plain tokenSymbol key, and
// wrapped with golang.org/x/time/rate so repeated reconnect attempts
// during an unstable connection do not hammer the venue. No subscribe
// message is sent; the feed is expected to push ticks once connected.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// WebsocketOracle maintains a live price cache fed by a websocket venue
// stream, satisfying the Oracle interface.
type WebsocketOracle struct {
	mu sync.RWMutex

	url     string
	conn    *websocket.Conn
	running bool
	stopCh  chan struct{}

	prices map[string]decimal.Decimal

	limiter *rate.Limiter
	dial    func(url string) (*websocket.Conn, error)
}

// NewWebsocketOracle creates an oracle that subscribes to url for live
// price ticks. resubscribeRPS bounds how often the connection loop may dial
// the feed.
func NewWebsocketOracle(url string, resubscribeRPS float64) *WebsocketOracle {
	return &WebsocketOracle{
		url:     url,
		stopCh:  make(chan struct{}),
		prices:  make(map[string]decimal.Decimal),
		limiter: rate.NewLimiter(rate.Limit(resubscribeRPS), 1),
		dial: func(u string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.Dial(u, nil)
			return conn, err
		},
	}
}

// Start connects and begins processing ticks in the background.
func (o *WebsocketOracle) Start() {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	o.running = true
	o.mu.Unlock()

	go o.connectionLoop()
	log.Info().Str("url", o.url).Msg("📡 price oracle feed started")
}

// Stop tears down the connection and background goroutines.
func (o *WebsocketOracle) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return
	}
	o.running = false
	close(o.stopCh)
	if o.conn != nil {
		o.conn.Close()
	}
}

// Get implements Oracle by reading the in-memory cache; ctx is honored only
// insofar as a cancelled context returns not-ok immediately.
func (o *WebsocketOracle) Get(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	select {
	case <-ctx.Done():
		return decimal.Zero, false
	default:
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	price, ok := o.prices[symbol]
	if !ok || price.IsZero() {
		return decimal.Zero, false
	}
	return price, true
}

func (o *WebsocketOracle) connectionLoop() {
	for {
		select {
		case <-o.stopCh:
			return
		default:
		}

		if err := o.limiter.Wait(context.Background()); err != nil {
			return
		}

		if err := o.connect(); err != nil {
			log.Error().Err(err).Msg("price oracle connection failed, retrying")
			time.Sleep(reconnectDelay)
			continue
		}

		o.readLoop()
		time.Sleep(reconnectDelay)
	}
}

func (o *WebsocketOracle) connect() error {
	conn, err := o.dial(o.url)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.conn = conn
	o.mu.Unlock()

	log.Info().Msg("🔌 price oracle websocket connected")
	go o.pingLoop(conn)
	return nil
}

func (o *WebsocketOracle) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C:
			o.mu.RLock()
			current := o.conn
			o.mu.RUnlock()
			if current != conn {
				return
			}
			_ = conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

type priceTick struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

func (o *WebsocketOracle) readLoop() {
	for {
		select {
		case <-o.stopCh:
			return
		default:
		}

		o.mu.RLock()
		conn := o.conn
		o.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("price oracle read error")
			return
		}

		var tick priceTick
		if err := json.Unmarshal(message, &tick); err != nil {
			continue
		}
		if tick.Symbol == "" || tick.Price.IsZero() {
			continue
		}

		o.mu.Lock()
		o.prices[tick.Symbol] = tick.Price
		o.mu.Unlock()
	}
}
