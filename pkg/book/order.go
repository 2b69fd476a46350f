package book

// Order is the minimum capability the engine requires of an order handle.
// The engine never mutates an Order; it only reads from it and passes it
// back through listener callbacks. Callers are responsible for passing
// handles whose identity (== comparison on the interface value) is stable
// for the lifetime the order might rest in the book — typically a pointer
// type.
type Order interface {
	IsBuy() bool
	Price() Price
	OrderQty() Quantity
	Conditions() OrderConditions
}

func isAON(o Order) bool { return o.Conditions()&AON != 0 }
func isIOC(o Order) bool { return o.Conditions()&IOC != 0 }

// tracker is the per-order bookkeeping record the book owns: the handle
// plus how much of it has filled so far. Because the engine is not
// permitted to mutate the Order handle itself, a successful Replace is
// recorded here as an override rather than written back to the handle —
// t.effectiveOrderQty/effectivePrice, not order.OrderQty/Price, are
// authoritative for a tracker once one has been applied. The replace
// event tells the caller the new values so it can keep its own handle in
// sync if it needs to.
type tracker struct {
	order     Order
	filledQty Quantity

	hasQtyOverride   bool
	qtyOverride      Quantity
	hasPriceOverride bool
	priceOverride    Price
}

func newTracker(o Order) *tracker {
	return &tracker{order: o}
}

func (t *tracker) fill(qty Quantity) {
	t.filledQty += qty
}

func (t *tracker) effectiveOrderQty() Quantity {
	if t.hasQtyOverride {
		return t.qtyOverride
	}
	return t.order.OrderQty()
}

func (t *tracker) effectivePrice() Price {
	if t.hasPriceOverride {
		return t.priceOverride
	}
	return t.order.Price()
}

func (t *tracker) setOverride(newQty Quantity, newPrice Price) {
	t.hasQtyOverride = true
	t.qtyOverride = newQty
	t.hasPriceOverride = true
	t.priceOverride = newPrice
}

func (t *tracker) filled() bool {
	return t.filledQty >= t.effectiveOrderQty()
}

func (t *tracker) openQty() Quantity {
	original := t.effectiveOrderQty()
	if t.filledQty >= original {
		return 0
	}
	return original - t.filledQty
}

// liveSortPrice returns the key the tracker currently sorts by within its
// side: its effective limit price, or the side's market sentinel if it is
// a market order.
func (t *tracker) liveSortPrice() Price {
	return priceToSortPrice(t.order.IsBuy(), t.effectivePrice())
}

func priceToSortPrice(buy bool, p Price) Price {
	if p != MarketOrderPrice {
		return p
	}
	if buy {
		return marketBidSortPrice
	}
	return marketAskSortPrice
}
