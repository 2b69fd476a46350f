package book

// Depth is a fixed-size, two-sided, price-ordered aggregated view: the N
// best bid and N best ask price points, each with order count, aggregate
// open quantity, and a change id. It never allocates after construction
// and never grows past 2N levels, matching the source's fixed
// DepthLevel[SIZE*2] array — the top-N invariant is structural, not a
// property a dynamic container would have to maintain by convention.
type Depth struct {
	size   int
	levels []DepthLevel // [0,size) bids, [size,2*size) asks

	lastChange ChangeID

	// ignoreFillQty counters absorb the next close on a side whose order
	// was never visible in the depth window (e.g. an order that matched in
	// full at acceptance, before it was ever added) so that close does not
	// decrement a level that was never incremented.
	ignoreBidFillQty Quantity
	ignoreAskFillQty Quantity
}

// NewDepth constructs a Depth with N price levels visible per side. N must
// be at least 1.
func NewDepth(n int) *Depth {
	if n < 1 {
		panic(&InvariantError{Reason: "depth size must be at least one"})
	}
	d := &Depth{size: n, levels: make([]DepthLevel, n*2)}
	for i := range d.levels {
		d.levels[i].init(invalidLevelPrice)
	}
	return d
}

// Bids returns the N bid levels, best first. Slots past the populated
// prefix are blank (Populated() is false).
func (d *Depth) Bids() []DepthLevel { return d.levels[:d.size] }

// Asks returns the N ask levels, best first.
func (d *Depth) Asks() []DepthLevel { return d.levels[d.size : d.size*2] }

func (d *Depth) sideSlice(buy bool) []DepthLevel {
	if buy {
		return d.Bids()
	}
	return d.Asks()
}

// better reports whether price a is strictly closer to the top of the book
// than price b, for the given side.
func (d *Depth) better(buy bool, a, b Price) bool {
	if buy {
		return a > b
	}
	return a < b
}

// findLevel locates the level for price on the given side. If shouldCreate
// is true and no exact match exists, a level is created: in a blank slot,
// by insertion before a worse populated slot (shifting the tail down, and
// truncating the worst visible level off the window), or — if price is
// worse than every visible slot and there is no blank slot left — not at
// all (nil, meaning "outside the visible window, ignore").
func (d *Depth) findLevel(buy bool, price Price, shouldCreate bool) *DepthLevel {
	side := d.sideSlice(buy)
	for i := range side {
		lvl := &side[i]
		switch {
		case lvl.price == price:
			return lvl
		case shouldCreate && lvl.price == invalidLevelPrice:
			lvl.init(price)
			return lvl
		case shouldCreate && d.better(buy, price, lvl.price):
			d.insertLevelBefore(side, i, price)
			return &side[i]
		}
	}
	return nil
}

// insertLevelBefore shifts side[idx:last] down by one (discarding
// side[last]) and initializes side[idx] at price. Mirrors
// Depth::insert_level_before.
func (d *Depth) insertLevelBefore(side []DepthLevel, idx int, price Price) {
	d.lastChange++
	last := len(side) - 1
	for cur := last - 1; cur >= idx; cur-- {
		side[cur+1] = side[cur]
		if side[cur].price != invalidLevelPrice {
			side[cur+1].lastChange = d.lastChange
		}
	}
	side[idx].init(price)
}

// eraseLevel shifts side[idx+1:] up by one into side[idx:] and blanks the
// final slot. Mirrors Depth::erase_level.
func (d *Depth) eraseLevel(side []DepthLevel, idx int) {
	d.lastChange++
	last := len(side) - 1
	for cur := idx; cur < last; cur++ {
		if cur == idx || side[cur].price != invalidLevelPrice {
			side[cur] = side[cur+1]
			side[cur].lastChange = d.lastChange
		}
	}
	if side[last].price != invalidLevelPrice {
		side[last].init(invalidLevelPrice)
		side[last].lastChange = d.lastChange
	}
}

// AddOrder adds a resting order's quantity into its price level, creating
// or shifting levels as needed. Silently ignored if the price sorts worse
// than every visible level and no blank slot remains (§7 tier 2).
func (d *Depth) AddOrder(buy bool, price Price, qty Quantity) {
	before := d.lastChange
	lvl := d.findLevel(buy, price, true)
	if lvl == nil {
		return
	}
	if d.lastChange == before {
		d.lastChange++
	}
	lvl.addOrder(qty)
	lvl.lastChange = d.lastChange
}

// CloseOrder removes a filled or cancelled order's quantity from its price
// level. Returns true if doing so erased a previously visible level
// (order count reached zero). Silently ignored if the price is outside the
// visible window.
func (d *Depth) CloseOrder(buy bool, price Price, qty Quantity) bool {
	if applied := d.takeIgnoredFillQty(buy, qty); applied != qty {
		if applied == 0 {
			return false
		}
		qty = applied
	}
	lvl := d.findLevel(buy, price, false)
	if lvl == nil {
		return false
	}
	if lvl.closeOrder(qty) {
		side := d.sideSlice(buy)
		idx := levelIndex(side, lvl)
		d.eraseLevel(side, idx)
		return true
	}
	d.lastChange++
	lvl.lastChange = d.lastChange
	return false
}

// ChangeQty applies a signed delta to a resting order's level without
// changing its order count. Silently ignored if outside the visible
// window.
func (d *Depth) ChangeQty(buy bool, price Price, delta int64) {
	if delta == 0 {
		return
	}
	lvl := d.findLevel(buy, price, false)
	if lvl == nil {
		return
	}
	if delta > 0 {
		lvl.increaseQty(Quantity(delta))
	} else {
		lvl.decreaseQty(Quantity(-delta))
	}
	d.lastChange++
	lvl.lastChange = d.lastChange
}

// ReplaceOrder atomically closes oldQty at oldPrice and adds newQty at
// newPrice. When the price is unchanged this collapses to a single
// ChangeQty by the signed difference, so it stamps only one change rather
// than a close-then-add pair.
func (d *Depth) ReplaceOrder(buy bool, oldPrice, newPrice Price, oldQty, newQty Quantity) (erased bool) {
	if oldPrice == newPrice {
		d.ChangeQty(buy, oldPrice, int64(newQty)-int64(oldQty))
		return false
	}
	erased = d.CloseOrder(buy, oldPrice, oldQty)
	d.AddOrder(buy, newPrice, newQty)
	return erased
}

// NeedsRestoration is called right after an erase. It reports whether the
// slot before the worst visible one is populated (so the window was full
// and a hidden (N+1)-best price may now fit in the freed worst slot), and
// returns that slot's price: the side book is asked for the first price
// strictly worse than it. The depth tracker cannot answer this on its own;
// the side book owns the full price ladder (§4.2's "Restoration coupling").
func (d *Depth) NeedsRestoration(buy bool) (needsIt bool, restoreAfter Price) {
	side := d.sideSlice(buy)
	if d.size > 1 {
		restoreAfter = side[d.size-2].price
		return restoreAfter != invalidLevelPrice, restoreAfter
	}
	// Depth size 1 (BBO only): there is no earlier slot to read; restore
	// using the side's market sentinel so the side book scan starts from
	// the very top.
	if buy {
		return true, marketBidSortPrice
	}
	return true, marketAskSortPrice
}

// Restore populates the worst visible slot on one side with an aggregated
// level for price/qty/count — used after NeedsRestoration identifies a
// hidden price the side book can supply.
func (d *Depth) Restore(buy bool, price Price, orderCount uint32, qty Quantity) {
	side := d.sideSlice(buy)
	last := &side[d.size-1]
	d.lastChange++
	if price == invalidLevelPrice {
		last.init(invalidLevelPrice)
	} else {
		last.init(price)
		last.orderCount = orderCount
		last.aggregateQty = qty
	}
	last.lastChange = d.lastChange
}

// IgnoreFillQty records qty that a subsequent CloseOrder call on this side
// should skip attributing to any level, because the order it belonged to
// was filled in full before it was ever added to the depth (an
// immediately-and-fully-filled inbound order never occupied a visible
// level in the first place).
//
// The engine never calls this: it only ever calls AddOrder for an order
// once matching is finished and its remainder is known (engine.Submit),
// and only ever calls CloseOrder/ChangeQty against a resting order that
// went through that same AddOrder (engine.executeFill). An inbound order
// that fills in full is never added in the first place, so there is
// nothing for a stray Close to wrongly decrement — the race this guards
// against can't arise from this call order. Kept for the operation's
// documented contract and for a caller sequencing fills before knowing
// the remainder.
func (d *Depth) IgnoreFillQty(buy bool, qty Quantity) {
	if buy {
		d.ignoreBidFillQty += qty
	} else {
		d.ignoreAskFillQty += qty
	}
}

// takeIgnoredFillQty consumes up to qty from the side's running
// ignore-counter, returning how much of qty should still be applied to a
// real level.
func (d *Depth) takeIgnoredFillQty(buy bool, qty Quantity) Quantity {
	counter := &d.ignoreBidFillQty
	if !buy {
		counter = &d.ignoreAskFillQty
	}
	if *counter == 0 {
		return qty
	}
	if *counter >= qty {
		*counter -= qty
		return 0
	}
	remaining := qty - *counter
	*counter = 0
	return remaining
}

// LastChange returns the book-wide change id most recently assigned to any
// level (bid or ask).
func (d *Depth) LastChange() ChangeID { return d.lastChange }

func levelIndex(side []DepthLevel, lvl *DepthLevel) int {
	for i := range side {
		if &side[i] == lvl {
			return i
		}
	}
	panic(&InvariantError{Reason: "depth level pointer not found in its own side"})
}
