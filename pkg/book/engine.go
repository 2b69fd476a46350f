package book

// OrderBook is a single-instrument matching engine: two sideBooks for
// resting orders, a Depth for the published top-of-book view, and a
// Listener every command's structural changes drain into. It owns no
// goroutines and is not safe for concurrent use — callers serialize access
// per §5, the same contract the teacher's pkg/orderbook applies with a
// per-book mutex one layer up.
type OrderBook struct {
	bids  *sideBook
	asks  *sideBook
	depth *Depth

	identity map[Order]*tracker

	listener  Listener
	enableAON bool
	enableIOC bool

	queue     eventQueue
	nextTrans TransID
}

// NewOrderBook constructs an empty book with depthSize visible price levels
// per side. A nil listener is replaced with NopListener so the engine never
// has to nil-check it on the hot path.
func NewOrderBook(depthSize int, enableAON, enableIOC bool, listener Listener) *OrderBook {
	if listener == nil {
		listener = NopListener{}
	}
	return &OrderBook{
		bids:      newSideBook(true),
		asks:      newSideBook(false),
		depth:     NewDepth(depthSize),
		identity:  make(map[Order]*tracker),
		listener:  listener,
		enableAON: enableAON,
		enableIOC: enableIOC,
	}
}

func (b *OrderBook) sideFor(buy bool) *sideBook {
	if buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) isAON(o Order) bool { return b.enableAON && isAON(o) }
func (b *OrderBook) isIOC(o Order) bool { return b.enableIOC && isIOC(o) }

// Depth returns the book's aggregated top-of-book view. The returned
// pointer is owned by the book and mutates in place on every subsequent
// command; callers that need a stable snapshot must copy Bids()/Asks().
func (b *OrderBook) Depth() *Depth { return b.depth }

// BestBid and BestAsk report the top sort price on each side, and whether
// one exists at all.
func (b *OrderBook) BestBid() (Price, bool) {
	lvl := b.bids.best()
	if lvl == nil {
		return 0, false
	}
	return lvl.price, true
}

func (b *OrderBook) BestAsk() (Price, bool) {
	lvl := b.asks.best()
	if lvl == nil {
		return 0, false
	}
	return lvl.price, true
}

// topSnapshot captures what a BBO/depth-change comparison needs from
// before a command ran, so finish can decide which summary events to
// append after the command's structural work is done, per §4.3's ordering
// rule (structural events before summary events).
type topSnapshot struct {
	bidPresent, askPresent bool
	bidPrice, askPrice     Price
	change                 ChangeID
}

func (b *OrderBook) snapshotTop() topSnapshot {
	s := topSnapshot{change: b.depth.LastChange()}
	if lvl := b.bids.best(); lvl != nil {
		s.bidPresent = true
		s.bidPrice = lvl.price
	}
	if lvl := b.asks.best(); lvl != nil {
		s.askPresent = true
		s.askPrice = lvl.price
	}
	return s
}

// finish appends summary events (if before is non-nil and anything
// structural changed) and drains the queue into the listener. before is
// nil for commands that never touched the book (e.g. a reject on an
// unknown order).
func (b *OrderBook) finish(before *topSnapshot) {
	if before != nil {
		after := b.snapshotTop()
		if after.change != before.change {
			b.push(Event{Kind: EventDepthUpdate})
		}
		if after.bidPresent != before.bidPresent || after.askPresent != before.askPresent ||
			after.bidPrice != before.bidPrice || after.askPrice != before.askPrice {
			b.push(Event{Kind: EventBBOUpdate})
		}
	}
	b.nextTrans++
	b.queue.drain(b.dispatch)
}

// push queues e, stamping it with the transaction id of the command
// currently in progress (every event a single Submit/Cancel/Replace call
// produces, including its trailing depth/bbo summary events, shares one
// id — finish bumps nextTrans exactly once, after the command's last
// push).
func (b *OrderBook) push(e Event) {
	e.Trans = b.nextTrans
	b.queue.push(e)
}

func (b *OrderBook) dispatch(e Event) {
	switch e.Kind {
	case EventAccept:
		b.listener.OnAccept(e.Order, e.Trans)
	case EventReject:
		b.listener.OnReject(e.Order, e.Reason, e.Trans)
	case EventFill:
		b.listener.OnFill(e.Order, e.FillQty, e.FillPrice, e.FillCost, e.Trans)
	case EventCancel:
		b.listener.OnCancel(e.Order, e.Trans)
	case EventCancelReject:
		b.listener.OnCancelReject(e.Order, e.Reason, e.Trans)
	case EventReplace:
		b.listener.OnReplace(e.Order, e.NewQty, e.NewPrice, e.Trans)
	case EventReplaceReject:
		b.listener.OnReplaceReject(e.Order, e.Reason, e.Trans)
	case EventDepthUpdate:
		b.listener.OnDepthChange(b)
	case EventBBOUpdate:
		b.listener.OnBBOChange(b)
	}
}

// restoreAfterErase asks the depth tracker whether erasing a visible level
// exposed a hidden price, and if so pulls the aggregate for that price off
// the side book to fill the freed worst slot — the restoration coupling
// §4.2 assigns to the side book because the depth tracker has no view past
// its own window.
func (b *OrderBook) restoreAfterErase(buy bool) {
	needsIt, after := b.depth.NeedsRestoration(buy)
	if !needsIt {
		return
	}
	level := b.sideFor(buy).findAfter(after)
	// The level whose erasure triggered this call can still be in the side
	// book, holding only filled trackers the matching loop has yet to
	// remove; it is passed over.
	for level != nil && level.openQty() == 0 {
		level = b.sideFor(buy).findAfter(level.price)
	}
	if level == nil {
		return
	}
	b.depth.Restore(buy, level.price, uint32(level.len()), level.openQty())
}

func (b *OrderBook) identityRemove(o Order) { delete(b.identity, o) }

// crossesLevel reports whether an inbound order on the given side, with
// sort price inboundSort, can trade against a resting level on the
// opposite side. Two market orders meeting is never a cross (Open Question
// decision, DESIGN.md): price discovery has nothing to anchor a trade to
// when neither side names one.
func crossesLevel(buy, inboundMarket bool, inboundSort Price, level *priceLevel) bool {
	restingMarket := level.price == marketSentinelFor(!buy)
	if inboundMarket && restingMarket {
		return false
	}
	if buy {
		return inboundSort >= level.price
	}
	return inboundSort <= level.price
}

func marketSentinelFor(buy bool) Price {
	if buy {
		return marketBidSortPrice
	}
	return marketAskSortPrice
}

// executeFill records one match between inbound and resting for qty,
// at the resting order's price unless the resting order is itself a market
// order, in which case the inbound order's price anchors the trade (§4.1's
// execution-price rule). It updates both trackers, queues the paired fill
// events, and folds the resting side's depth level down by qty or, if
// resting is now fully filled, closes it and triggers restoration. It does
// not remove resting from its priceLevel/sideBook — callers do that with
// whichever mechanism fits how they are walking the book.
func (b *OrderBook) executeFill(inbound, resting *tracker, qty Quantity, inboundBuy bool) {
	execPrice := resting.effectivePrice()
	if execPrice == MarketOrderPrice {
		execPrice = inbound.effectivePrice()
	}
	cost := fillCost(qty, execPrice)

	inbound.fill(qty)
	resting.fill(qty)

	b.push(Event{Kind: EventFill, Order: inbound.order, FillQty: qty, FillPrice: execPrice, FillCost: cost})
	b.push(Event{Kind: EventFill, Order: resting.order, FillQty: qty, FillPrice: execPrice, FillCost: cost})

	restingBuy := !inboundBuy
	price := resting.liveSortPrice()
	if resting.filled() {
		erased := b.depth.CloseOrder(restingBuy, price, qty)
		b.identityRemove(resting.order)
		if erased {
			b.restoreAfterErase(restingBuy)
		}
	} else {
		b.depth.ChangeQty(restingBuy, price, -int64(qty))
	}
}

// candidateUsableQty reports how much of an all-or-none resting order can
// count toward an AON aggregation plan: its whole open quantity if that
// fits within what is still needed, zero otherwise (an AON order that
// cannot be filled whole cannot be filled at all). A non-AON order can
// always contribute up to remaining.
func candidateUsableQty(restAON bool, open, remaining Quantity) Quantity {
	if restAON {
		if open <= remaining {
			return open
		}
		return 0
	}
	if open <= remaining {
		return open
	}
	return remaining
}

type fillStep struct {
	t   *tracker
	qty Quantity
}

// planAON dry-runs an all-or-none inbound order against the opposite side,
// walking best-to-worst, without mutating anything. It returns ok=true and
// the sequence of (tracker, qty) steps that together sum to target if the
// side can currently supply target in aggregate, or ok=false if it cannot
// (in which case plan is meaningless and must not be executed).
func (b *OrderBook) planAON(opposite *sideBook, buy, inboundMarket bool, inboundSort Price, target Quantity) (bool, []fillStep) {
	var plan []fillStep
	var cum Quantity
	opposite.forEachBestToWorst(func(level *priceLevel) bool {
		if !crossesLevel(buy, inboundMarket, inboundSort, level) {
			return false
		}
		n := level.len()
		for i := 0; i < n; i++ {
			t := level.at(i)
			remaining := target - cum
			if remaining <= 0 {
				return false
			}
			usable := candidateUsableQty(b.isAON(t.order), t.openQty(), remaining)
			if usable == 0 {
				continue
			}
			plan = append(plan, fillStep{t: t, qty: usable})
			cum += usable
			if cum >= target {
				return false
			}
		}
		return true
	})
	return cum >= target, plan
}

// matchStreaming walks the opposite side best-to-worst, filling inbound
// against resting orders one at a time until inbound is exhausted or
// nothing left crosses. A resting AON order that cannot be filled whole is
// left in place and skipped rather than blocking the scan — matching
// continues past it, which can visit a worse price while a better-priced
// order sits unmatched; that is AON's documented cost, not a bug.
func (b *OrderBook) matchStreaming(inbound *tracker, opposite *sideBook, buy bool) {
	inboundMarket := inbound.effectivePrice() == MarketOrderPrice
	idx := 0
	for inbound.openQty() > 0 {
		if idx >= opposite.len() {
			return
		}
		level := opposite.levelAt(idx)
		if !crossesLevel(buy, inboundMarket, inbound.liveSortPrice(), level) {
			return
		}
		level.sweep(func(t *tracker) (removeIt, stop bool) {
			if inbound.openQty() == 0 {
				return false, true
			}
			if b.isAON(t.order) && t.openQty() > inbound.openQty() {
				return false, false
			}
			qty := t.openQty()
			if need := inbound.openQty(); qty > need {
				qty = need
			}
			b.executeFill(inbound, t, qty, buy)
			return t.filled(), inbound.openQty() == 0
		})
		if level.len() == 0 {
			opposite.removeLevelAt(idx)
			continue
		}
		idx++
	}
}

// runMatchingLoop matches t — carrying whatever quantity/price is
// currently effective for it — against the opposite side exactly as a
// freshly inbound order would: an AON order attempts a single
// full-quantity aggregation, everything else fills level by level. Submit
// calls this on a tracker not yet anywhere in the book; Replace calls it
// on a tracker it has just reinserted at a new sort price, per §4.1's
// "re-run the matching loop for this tracker as if newly inbound."
//
// Returns true if an AON+IOC order turned out unsatisfiable: per the
// IOC+AON Open Question decision (DESIGN.md) that is a cancel with zero
// fills, which the caller must emit — t is left exactly as it was, no
// fills committed.
func (b *OrderBook) runMatchingLoop(t *tracker, order Order, buy bool) (aonIOCUnsatisfiable bool) {
	opposite := b.sideFor(!buy)
	if b.isAON(order) {
		ok, plan := b.planAON(opposite, buy, t.effectivePrice() == MarketOrderPrice, t.liveSortPrice(), t.openQty())
		if !ok {
			return b.isIOC(order)
		}
		for _, step := range plan {
			b.executeFill(t, step.t, step.qty, buy)
			if step.t.filled() {
				opposite.removeTracker(step.t)
			}
		}
		return false
	}
	b.matchStreaming(t, opposite, buy)
	return false
}

// Submit accepts a new inbound order, attempts to match it against the
// opposite side, and rests whatever remains open — unless the order is
// IOC, in which case any unmatched remainder is dropped rather than
// resting. An AON order that is unsatisfiable now rests with zero fills,
// unless it is also IOC, in which case (per the IOC+AON Open Question
// decision) it is cancelled with zero fills rather than rejected.
func (b *OrderBook) Submit(order Order) {
	if order.OrderQty() == 0 {
		b.push(Event{Kind: EventReject, Order: order, Reason: ErrSizeMustBePositive.Error()})
		b.finish(nil)
		return
	}

	t := newTracker(order)
	buy := order.IsBuy()
	own := b.sideFor(buy)

	before := b.snapshotTop()
	b.push(Event{Kind: EventAccept, Order: order})

	if b.runMatchingLoop(t, order, buy) {
		b.push(Event{Kind: EventCancel, Order: order})
		b.finish(&before)
		return
	}

	if remaining := t.openQty(); remaining > 0 {
		if !b.isIOC(order) {
			own.insert(t)
			b.identity[order] = t
			b.depth.AddOrder(buy, t.liveSortPrice(), remaining)
		}
	}

	b.finish(&before)
}

// Cancel removes a resting order from the book. A Cancel for an order the
// book has no record of (already filled, already cancelled, or never
// submitted) is a CancelReject, never a Go error.
func (b *OrderBook) Cancel(order Order) {
	t, ok := b.identity[order]
	if !ok {
		b.push(Event{Kind: EventCancelReject, Order: order, Reason: ErrNotFound.Error()})
		b.finish(nil)
		return
	}

	before := b.snapshotTop()
	buy := order.IsBuy()
	price := t.liveSortPrice()
	open := t.openQty()

	b.sideFor(buy).removeTracker(t)
	b.identityRemove(order)
	erased := b.depth.CloseOrder(buy, price, open)
	if erased {
		b.restoreAfterErase(buy)
	}

	b.push(Event{Kind: EventCancel, Order: order})
	b.finish(&before)
}

// Replace changes a resting order's quantity and/or price in place.
// sizeDelta is added to the order's current effective quantity (SizeUnchanged
// leaves it alone); newPrice is the new absolute limit price (PriceUnchanged
// leaves it alone). A replace that would bring the total below what has
// already filled is a ReplaceReject; a replace that brings the total to
// exactly what has already filled leaves nothing open and implicitly
// cancels the order (replace, then cancel). Changing price loses the
// order's time priority at its (possibly new) price level and re-runs the
// matching loop for it as if it were newly inbound, so a replace can cross
// and fill; changing quantity alone does neither (Open Question decision,
// DESIGN.md).
func (b *OrderBook) Replace(order Order, sizeDelta int64, newPrice Price) {
	t, ok := b.identity[order]
	if !ok {
		b.push(Event{Kind: EventReplaceReject, Order: order, Reason: ErrNotFound.Error()})
		b.finish(nil)
		return
	}

	if sizeDelta == SizeUnchanged {
		sizeDelta = 0
	}
	newTotal := int64(t.effectiveOrderQty()) + sizeDelta
	if newTotal < int64(t.filledQty) {
		b.push(Event{Kind: EventReplaceReject, Order: order, Reason: ErrNotEnoughOpenQty.Error()})
		b.finish(nil)
		return
	}

	finalPrice := newPrice
	if finalPrice == PriceUnchanged {
		finalPrice = t.effectivePrice()
	}

	before := b.snapshotTop()
	buy := order.IsBuy()
	side := b.sideFor(buy)

	oldOpen := t.openQty()
	oldSortPrice := t.liveSortPrice()

	b.push(Event{Kind: EventReplace, Order: order, NewQty: Quantity(newTotal), NewPrice: finalPrice})

	cancelRemainder := func() {
		side.removeTracker(t)
		b.identityRemove(order)
		if erased := b.depth.CloseOrder(buy, oldSortPrice, oldOpen); erased {
			b.restoreAfterErase(buy)
		}
		b.push(Event{Kind: EventCancel, Order: order})
		b.finish(&before)
	}

	if newTotal == int64(t.filledQty) {
		// Replace-to-zero: nothing left open, implicitly cancels.
		cancelRemainder()
		return
	}

	newSortPrice := priceToSortPrice(buy, finalPrice)
	movedBucket := newSortPrice != oldSortPrice

	if movedBucket {
		side.removeTracker(t)
	}
	t.setOverride(Quantity(newTotal), finalPrice)

	if movedBucket {
		side.insert(t)
		if b.runMatchingLoop(t, order, buy) {
			// AON+IOC turned out unsatisfiable against the new price: cancel
			// with zero fills, same as a freshly inbound order would.
			cancelRemainder()
			return
		}
	}

	finalOpen := t.openQty()
	stillResting := finalOpen > 0 && !(movedBucket && b.isIOC(order))

	if !stillResting {
		if movedBucket {
			side.removeTracker(t)
		}
		b.identityRemove(order)
		if erased := b.depth.CloseOrder(buy, oldSortPrice, oldOpen); erased {
			b.restoreAfterErase(buy)
		}
		b.finish(&before)
		return
	}

	if erased := b.depth.ReplaceOrder(buy, oldSortPrice, newSortPrice, oldOpen, finalOpen); erased {
		b.restoreAfterErase(buy)
	}

	b.finish(&before)
}

// DebugString renders the ladder for manual inspection: asks worst to best,
// then bids best to worst, so the two best prices meet in the middle. Not
// used on any hot path.
func (b *OrderBook) DebugString() string {
	var out []byte
	out = append(out, "asks:\n"...)
	for i := b.asks.len() - 1; i >= 0; i-- {
		out = appendLevel(out, b.asks.levelAt(i))
	}
	out = append(out, "bids:\n"...)
	for i := 0; i < b.bids.len(); i++ {
		out = appendLevel(out, b.bids.levelAt(i))
	}
	return string(out)
}

func appendLevel(out []byte, l *priceLevel) []byte {
	out = append(out, "  "...)
	out = appendUint(out, uint64(l.price))
	out = append(out, " x "...)
	out = appendUint(out, uint64(l.openQty()))
	out = append(out, " ("...)
	out = appendUint(out, uint64(l.len()))
	out = append(out, " orders)\n"...)
	return out
}

func appendUint(out []byte, v uint64) []byte {
	if v == 0 {
		return append(out, '0')
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return append(out, buf[i:]...)
}
