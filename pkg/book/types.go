// Package book implements a single-instrument, in-process limit order book:
// price-time matching, all-or-none and immediate-or-cancel conditions, live
// order modification, and an aggregated top-of-book depth view.
package book

import "math"

// Price is an unsigned limit price. The distinguished value MarketOrderPrice
// (0) denotes a market order.
type Price uint64

// Quantity is an unsigned order size.
type Quantity uint64

// ChangeID is a monotonically increasing counter stamped on every depth
// level touched by a transaction. A Depth keeps one counter for both sides,
// not one per side, so the ids seen on a single side can skip values.
type ChangeID uint64

// TransID identifies all events and depth changes produced by one externally
// submitted command.
type TransID uint64

// OrderConditions is a bitfield over the condition flags a resting or
// inbound order may carry. Bits beyond AON and IOC are reserved and ignored
// by the engine.
type OrderConditions uint8

const (
	// AON requires the order to trade its full quantity in a single
	// transaction or not at all.
	AON OrderConditions = 1 << 0
	// IOC cancels any quantity left unfilled after the order's first
	// matching attempt, rather than resting it.
	IOC OrderConditions = 1 << 1
)

// MarketOrderPrice is the distinguished Price value meaning "market order".
const MarketOrderPrice Price = 0

// invalidLevelPrice marks a blank depth slot. It intentionally shares its
// numeric value with MarketOrderPrice and the ask-side market sort price,
// exactly as the source this engine is modeled on overloads zero for all
// three — blank slots are always positioned after every populated slot, so
// the overload never creates ambiguity in practice.
const invalidLevelPrice Price = 0

// marketBidSortPrice is the sort key a market buy order uses: larger than
// any finite bid, so it always sorts to the top of the bid side.
const marketBidSortPrice Price = Price(math.MaxUint64)

// marketAskSortPrice is the sort key a market sell order uses: smaller than
// any finite ask, so it always sorts to the top of the ask side.
const marketAskSortPrice Price = 0

// PriceUnchanged is a sentinel value outside the valid price range, passed
// to Replace to mean "leave the current price as-is".
const PriceUnchanged Price = Price(math.MaxUint64) - 1

// SizeUnchanged is a sentinel signed delta, passed to Replace to mean
// "leave the current quantity as-is".
const SizeUnchanged int64 = math.MinInt64
