package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/positioncore/store"
	"github.com/web3guy0/positioncore/types"
	"github.com/web3guy0/positioncore/venue"
)

// fakeOracle hands back a single mutable price, set by the test before each
// simulated tick. Real oracles are asynchronous caches; this fake collapses
// that to whatever the test last configured.
type fakeOracle struct {
	mu    sync.Mutex
	price decimal.Decimal
	ok    bool
}

func newFakeOracle(price decimal.Decimal) *fakeOracle {
	return &fakeOracle{price: price, ok: true}
}

func (f *fakeOracle) set(price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = price
}

func (f *fakeOracle) failNext() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ok = false
}

func (f *fakeOracle) Get(_ context.Context, _ string) (decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, f.ok
}

// fakeExecutor records every reversing request it receives and fills at the
// exit-triggering price unless overridden.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []venue.ReversingRequest
	ok    bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{ok: true}
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeExecutor) Execute(_ context.Context, req venue.ReversingRequest, price decimal.Decimal) (venue.Receipt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if !f.ok {
		return venue.Receipt{}, false
	}
	return venue.Receipt{TxHash: fmt.Sprintf("0xFAKE%d", len(f.calls)), FillPrice: price, FilledAt: time.Now()}, true
}

// fakeStore is an in-memory store.Store used in place of GormStore so
// monitor tests don't touch sqlite.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*types.MonitoredPosition
	nextID  int
	failIns bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*types.MonitoredPosition)}
}

func (s *fakeStore) Insert(p *types.MonitoredPosition) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIns {
		return "", fmt.Errorf("simulated insert failure")
	}
	s.nextID++
	id := fmt.Sprintf("id-%d", s.nextID)
	cp := p.Clone()
	cp.ID = id
	s.records[id] = cp
	return id, nil
}

// directInsert bypasses RegisterPosition entirely, simulating a record
// added to the store by an operator or a peer instance.
func (s *fakeStore) directInsert(p *types.MonitoredPosition) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("id-%d", s.nextID)
	cp := p.Clone()
	cp.ID = id
	s.records[id] = cp
	return id
}

func (s *fakeStore) ListActive() ([]*types.MonitoredPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.MonitoredPosition, 0)
	for _, r := range s.records {
		if r.Status == types.StatusActive {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateStatus(id string, status types.Status, exit *types.ExitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("position %s not found", id)
	}
	r.Status = status
	r.Exit = exit
	return nil
}

func (s *fakeStore) GetHistory(filter store.HistoryFilter) ([]*types.MonitoredPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.MonitoredPosition, 0)
	for _, r := range s.records {
		if r.Status == types.StatusActive {
			continue
		}
		if filter.TokenSymbol != "" && r.TokenSymbol != filter.TokenSymbol {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

// fakeClock is a manually-advanced time source for the deterministic
// max-exit-time test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	return Config{
		PriceTick:                time.Hour,
		SyncTick:                 time.Hour,
		PriceFetchTimeout:        time.Second,
		Epsilon:                  decimal.NewFromFloat(0.01),
		TrailingEnabledByDefault: true,
		StopGracePeriod:          time.Second,
	}
}

func buildRequest(side types.Side, entryPrice, entryAmount, tp1, tp2, sl decimal.Decimal, maxExitTime time.Time) types.RegisterRequest {
	return types.RegisterRequest{
		TradeID:     fmt.Sprintf("trade-%d", time.Now().UnixNano()),
		UserID:      "user-1",
		SafeAddress: "0x1111111111111111111111111111111111111111",
		NetworkKey:  "eth-mainnet",
		TokenSymbol: "ETH",
		Side:        side,
		EntryPrice:  entryPrice,
		EntryAmount: entryAmount,
		TP1:         tp1,
		TP2:         tp2,
		SL:          sl,
		MaxExitTime: maxExitTime,
	}
}
