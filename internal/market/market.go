/*

This file contains the share marketplace. Sellers list a fixed number of
shares of one pool at a per-share price; buyers fill whole orders. Listing
reserves shares logically (the seller keeps accruing rewards until the
fill); the actual share movement and payment execute atomically through the
ledger's funded transfer.

*/

package market

import (
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/enclave-network/nodepool/internal/bank"
	"github.com/enclave-network/nodepool/internal/clock"
	"github.com/enclave-network/nodepool/internal/events"
	"github.com/enclave-network/nodepool/internal/ledger"
	"github.com/enclave-network/nodepool/internal/logger"
	"github.com/enclave-network/nodepool/internal/types"
)

// feeDenominator is the basis-point scale for the marketplace fee.
const feeDenominator = 10_000

// Market is the order book for pool shares. A single mutex guards the book;
// order volume is small enough that finer locking buys nothing.
type Market struct {
	mu          sync.Mutex
	orders      map[types.OrderID]*types.SellOrder
	nextOrderID types.OrderID

	// activeByPool indexes only Active orders. Terminal orders stay in the
	// orders map for history but leave the index.
	activeByPool map[types.PoolID]map[types.OrderID]struct{}

	ledger       *ledger.Ledger
	bank         bank.TokenBank
	clock        clock.Clock
	sink         events.Sink
	priceDenom   string
	feeBps       uint64
	feeCollector types.HolderID

	logger zerolog.Logger
}

// Config holds the collaborators and parameters for creating a Market.
type Config struct {
	Ledger     *ledger.Ledger
	Bank       bank.TokenBank
	Clock      clock.Clock
	Sink       events.Sink
	PriceDenom string

	// FeeBps is the marketplace cut in basis points, taken from the buyer's
	// payment on top of the seller's proceeds being reduced by it. Zero
	// disables the fee.
	FeeBps       uint64
	FeeCollector types.HolderID
}

// New creates a Market with dependency injection.
func New(cfg Config) (*Market, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("market configuration validation failed: %w", err)
	}

	sink := cfg.Sink
	if sink == nil {
		sink = events.Nop{}
	}

	m := &Market{
		orders:       make(map[types.OrderID]*types.SellOrder),
		nextOrderID:  1,
		activeByPool: make(map[types.PoolID]map[types.OrderID]struct{}),
		ledger:       cfg.Ledger,
		bank:         cfg.Bank,
		clock:        cfg.Clock,
		sink:         sink,
		priceDenom:   cfg.PriceDenom,
		feeBps:       cfg.FeeBps,
		feeCollector: cfg.FeeCollector,
		logger:       logger.GetForComponent("market"),
	}

	m.logger.Info().
		Str("priceDenom", cfg.PriceDenom).
		Uint64("feeBps", cfg.FeeBps).
		Msg("Market created")

	return m, nil
}

func validateConfig(cfg Config) error {
	if cfg.Ledger == nil {
		return fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Bank == nil {
		return fmt.Errorf("token bank cannot be nil")
	}
	if cfg.Clock == nil {
		return fmt.Errorf("clock cannot be nil")
	}
	if cfg.PriceDenom == "" {
		return fmt.Errorf("price denom cannot be empty")
	}
	if cfg.FeeBps > feeDenominator {
		return fmt.Errorf("fee bps %d exceeds %d", cfg.FeeBps, feeDenominator)
	}
	if cfg.FeeBps > 0 && cfg.FeeCollector == "" {
		return fmt.Errorf("fee collector is required when fee bps is non-zero")
	}
	return nil
}

// CreateSellOrder lists shareCount shares of poolID at pricePerShare each.
// The seller must hold that many shares beyond what their other active
// orders already reserve. Listing does not move shares: the seller keeps
// voting and accruing on them until the order fills.
func (m *Market) CreateSellOrder(poolID types.PoolID, seller types.HolderID, shareCount uint64, pricePerShare sdkmath.Int) (types.OrderID, error) {
	if shareCount == 0 {
		return 0, fmt.Errorf("%w: share count must be positive", types.ErrInvalidAmount)
	}
	if pricePerShare.IsNil() || !pricePerShare.IsPositive() {
		return 0, fmt.Errorf("%w: price per share must be positive", types.ErrInvalidAmount)
	}

	pool, err := m.ledger.Pool(poolID)
	if err != nil {
		return 0, err
	}
	if pool.State == types.PoolDissolved {
		return 0, fmt.Errorf("%w: pool %d is dissolved, shares cannot be listed", types.ErrInvalidState, poolID)
	}

	held, err := m.ledger.Shares(poolID, seller)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	available := held - min(held, m.reservedLocked(poolID, seller))
	if shareCount > available {
		return 0, fmt.Errorf("%w: seller %s has %d unreserved shares in pool %d, wants to list %d",
			types.ErrInsufficientShares, seller, available, poolID, shareCount)
	}

	now := m.clock.Now()
	order := &types.SellOrder{
		OrderID:       m.nextOrderID,
		PoolID:        poolID,
		Seller:        seller,
		ShareCount:    shareCount,
		PricePerShare: pricePerShare,
		Status:        types.OrderActive,
		CreatedAt:     now,
	}
	m.nextOrderID++
	m.orders[order.OrderID] = order
	m.indexLocked(order)

	m.logger.Info().
		Uint64("orderID", uint64(order.OrderID)).
		Uint64("poolID", uint64(poolID)).
		Str("seller", string(seller)).
		Uint64("shares", shareCount).
		Str("pricePerShare", pricePerShare.String()).
		Msg("Sell order created")

	ev := events.New(events.OrderCreated, uint64(poolID), now)
	ev.Holder = string(seller)
	ev.Shares = shareCount
	ev.Amount = pricePerShare.String()
	ev.Token = m.priceDenom
	ev.OrderID = uint64(order.OrderID)
	m.sink.Emit(ev)

	return order.OrderID, nil
}

// CancelSellOrder withdraws an active order. Only the seller may cancel, and
// only while the order is still active.
func (m *Market) CancelSellOrder(orderID types.OrderID, caller types.HolderID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: order %d", types.ErrNotFound, orderID)
	}
	if order.Seller != caller {
		return fmt.Errorf("%w: only the seller may cancel order %d", types.ErrUnauthorized, orderID)
	}
	if order.Status != types.OrderActive {
		return fmt.Errorf("%w: order %d is %s, not active", types.ErrInvalidState, orderID, order.Status)
	}

	order.Status = types.OrderCancelled
	m.unindexLocked(order)

	m.logger.Info().
		Uint64("orderID", uint64(orderID)).
		Str("seller", string(caller)).
		Msg("Sell order cancelled")

	ev := events.New(events.OrderCancelled, uint64(order.PoolID), m.clock.Now())
	ev.Holder = string(caller)
	ev.Shares = order.ShareCount
	ev.OrderID = uint64(orderID)
	m.sink.Emit(ev)

	return nil
}

// BuyShares fills an active order completely. The buyer pays
// ShareCount * PricePerShare in the price denom; the marketplace fee, when
// configured, is carved out of the seller's proceeds. Payment and share
// movement happen atomically under the pool lock: if the buyer cannot pay,
// no shares move, and if the shares cannot move, no payment happens.
func (m *Market) BuyShares(orderID types.OrderID, buyer types.HolderID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: order %d", types.ErrNotFound, orderID)
	}
	if order.Status != types.OrderActive {
		return fmt.Errorf("%w: order %d is %s, not active", types.ErrInvalidState, orderID, order.Status)
	}
	if buyer == order.Seller {
		return fmt.Errorf("%w: seller %s cannot buy their own order %d", types.ErrInvalidState, buyer, orderID)
	}

	total := order.TotalPrice()
	fee := total.MulRaw(int64(m.feeBps)).QuoRaw(feeDenominator)
	proceeds := total.Sub(fee)

	pay := func() error {
		if err := m.bank.Transfer(buyer, order.Seller, m.priceDenom, proceeds); err != nil {
			return fmt.Errorf("buyer payment failed: %w", err)
		}
		if fee.IsPositive() {
			if err := m.bank.Transfer(buyer, m.feeCollector, m.priceDenom, fee); err != nil {
				// Unwind the seller leg so a failed fee leg leaves no
				// partial payment behind.
				if undoErr := m.bank.Transfer(order.Seller, buyer, m.priceDenom, proceeds); undoErr != nil {
					m.logger.Error().
						Err(undoErr).
						Uint64("orderID", uint64(orderID)).
						Msg("Failed to unwind seller payment after fee transfer failure")
				}
				return fmt.Errorf("fee transfer failed: %w", err)
			}
		}
		return nil
	}

	if err := m.ledger.TransferSharesFunded(order.PoolID, order.Seller, buyer, order.ShareCount, pay); err != nil {
		return fmt.Errorf("order %d fill failed: %w", orderID, err)
	}

	order.Status = types.OrderFilled
	m.unindexLocked(order)

	m.logger.Info().
		Uint64("orderID", uint64(orderID)).
		Uint64("poolID", uint64(order.PoolID)).
		Str("seller", string(order.Seller)).
		Str("buyer", string(buyer)).
		Uint64("shares", order.ShareCount).
		Str("total", total.String()).
		Str("fee", fee.String()).
		Msg("Sell order filled")

	ev := events.New(events.OrderFilled, uint64(order.PoolID), m.clock.Now())
	ev.Holder = string(buyer)
	ev.Counterparty = string(order.Seller)
	ev.Shares = order.ShareCount
	ev.Token = m.priceDenom
	ev.Amount = total.String()
	ev.OrderID = uint64(orderID)
	m.sink.Emit(ev)

	return nil
}

// Order returns a copy of one order, active or terminal.
func (m *Market) Order(orderID types.OrderID) (types.SellOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return types.SellOrder{}, fmt.Errorf("%w: order %d", types.ErrNotFound, orderID)
	}
	return *order, nil
}

// ActiveOrdersForPool returns copies of the pool's active orders, ordered by
// order id.
func (m *Market) ActiveOrdersForPool(poolID types.PoolID) []types.SellOrder {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.SellOrder, 0, len(m.activeByPool[poolID]))
	for id := range m.activeByPool[poolID] {
		out = append(out, *m.orders[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

// OrdersForSeller returns copies of the seller's active orders across all
// pools, ordered by order id.
func (m *Market) OrdersForSeller(seller types.HolderID) []types.SellOrder {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.SellOrder
	for _, ids := range m.activeByPool {
		for id := range ids {
			if order := m.orders[id]; order.Seller == seller {
				out = append(out, *order)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

// OrderHistoryForSeller returns copies of every order the seller has ever
// placed, active and terminal alike, ordered by order id.
func (m *Market) OrderHistoryForSeller(seller types.HolderID) []types.SellOrder {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.SellOrder
	for _, order := range m.orders {
		if order.Seller == seller {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

// PoolsWithOrders returns the ids of pools that have at least one active
// order, sorted ascending.
func (m *Market) PoolsWithOrders() []types.PoolID {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.PoolID, 0, len(m.activeByPool))
	for poolID, ids := range m.activeByPool {
		if len(ids) > 0 {
			out = append(out, poolID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ActiveOrderCount returns the number of active orders on one pool.
func (m *Market) ActiveOrderCount(poolID types.PoolID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activeByPool[poolID])
}

// AvailableToList returns how many of the seller's shares in the pool are
// not yet reserved by their own active orders.
func (m *Market) AvailableToList(poolID types.PoolID, seller types.HolderID) (uint64, error) {
	held, err := m.ledger.Shares(poolID, seller)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	reserved := m.reservedLocked(poolID, seller)
	if reserved >= held {
		return 0, nil
	}
	return held - reserved, nil
}

// reservedLocked sums the shares the seller's active orders on the pool
// already commit. Caller holds m.mu.
func (m *Market) reservedLocked(poolID types.PoolID, seller types.HolderID) uint64 {
	var reserved uint64
	for id := range m.activeByPool[poolID] {
		if order := m.orders[id]; order.Seller == seller {
			reserved += order.ShareCount
		}
	}
	return reserved
}

func (m *Market) indexLocked(order *types.SellOrder) {
	ids, ok := m.activeByPool[order.PoolID]
	if !ok {
		ids = make(map[types.OrderID]struct{})
		m.activeByPool[order.PoolID] = ids
	}
	ids[order.OrderID] = struct{}{}
}

func (m *Market) unindexLocked(order *types.SellOrder) {
	if ids, ok := m.activeByPool[order.PoolID]; ok {
		delete(ids, order.OrderID)
		if len(ids) == 0 {
			delete(m.activeByPool, order.PoolID)
		}
	}
}
