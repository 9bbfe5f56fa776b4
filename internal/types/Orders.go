/*

This file contains the marketplace order types. Sell orders reserve a
holder's shares without moving them; the shares keep accruing rewards for
the seller until the order fills.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// OrderID is the unique, monotonically assigned identifier of a sell order.
type OrderID uint64

// OrderStatus is the lifecycle state of a sell order. Active is the only
// non-terminal status.
type OrderStatus int

const (
	OrderActive OrderStatus = iota
	OrderCancelled
	OrderFilled
)

// String returns a human readable status name.
func (s OrderStatus) String() string {
	switch s {
	case OrderActive:
		return "Active"
	case OrderCancelled:
		return "Cancelled"
	case OrderFilled:
		return "Filled"
	default:
		return "Unknown"
	}
}

// SellOrder lists a fixed number of shares of one pool at a per-share price.
type SellOrder struct {
	OrderID       OrderID     `json:"order_id"`
	PoolID        PoolID      `json:"pool_id"`
	Seller        HolderID    `json:"seller"`
	ShareCount    uint64      `json:"share_count"`
	PricePerShare sdkmath.Int `json:"price_per_share"`
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TotalPrice returns ShareCount * PricePerShare.
func (o SellOrder) TotalPrice() sdkmath.Int {
	return o.PricePerShare.MulRaw(int64(o.ShareCount))
}
