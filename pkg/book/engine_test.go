package book

import (
	"fmt"
	"testing"
)

// testOrder is the book.Order implementation every test in this package
// uses. Tests compare by pointer identity, the same contract callers are
// expected to uphold.
type testOrder struct {
	id    string
	buy   bool
	price Price
	qty   Quantity
	cond  OrderConditions
}

func (o *testOrder) IsBuy() bool                 { return o.buy }
func (o *testOrder) Price() Price                { return o.price }
func (o *testOrder) OrderQty() Quantity          { return o.qty }
func (o *testOrder) Conditions() OrderConditions { return o.cond }

func newOrder(id string, buy bool, price Price, qty Quantity, cond OrderConditions) *testOrder {
	return &testOrder{id: id, buy: buy, price: price, qty: qty, cond: cond}
}

type fillRecord struct {
	orderID string
	qty     Quantity
	price   Price
}

// recordingListener captures every callback for assertions, embedding
// NopListener so tests only implement what they need to check.
type recordingListener struct {
	NopListener
	accepts        []string
	rejects        []string
	fills          []fillRecord
	cancels        []string
	cancelRejects  []string
	replaces       []string
	replaceRejects []string
	depthChanges   int
	bboChanges     int
}

func idOf(o Order) string { return o.(*testOrder).id }

func (l *recordingListener) OnAccept(o Order, trans TransID) { l.accepts = append(l.accepts, idOf(o)) }
func (l *recordingListener) OnReject(o Order, reason string, trans TransID) {
	l.rejects = append(l.rejects, idOf(o))
}
func (l *recordingListener) OnFill(o Order, qty Quantity, price Price, cost Decimal, trans TransID) {
	l.fills = append(l.fills, fillRecord{orderID: idOf(o), qty: qty, price: price})
}
func (l *recordingListener) OnCancel(o Order, trans TransID) { l.cancels = append(l.cancels, idOf(o)) }
func (l *recordingListener) OnCancelReject(o Order, reason string, trans TransID) {
	l.cancelRejects = append(l.cancelRejects, idOf(o))
}
func (l *recordingListener) OnReplace(o Order, newQty Quantity, newPrice Price, trans TransID) {
	l.replaces = append(l.replaces, idOf(o))
}
func (l *recordingListener) OnReplaceReject(o Order, reason string, trans TransID) {
	l.replaceRejects = append(l.replaceRejects, idOf(o))
}
func (l *recordingListener) OnDepthChange(*OrderBook) { l.depthChanges++ }
func (l *recordingListener) OnBBOChange(*OrderBook)   { l.bboChanges++ }

func (l *recordingListener) fillsFor(id string) []fillRecord {
	var out []fillRecord
	for _, f := range l.fills {
		if f.orderID == id {
			out = append(out, f)
		}
	}
	return out
}

func newTestBook(depth int, aon, ioc bool) (*OrderBook, *recordingListener) {
	l := &recordingListener{}
	return NewOrderBook(depth, aon, ioc, l), l
}

func TestSimpleMatch(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	sell := newOrder("S1", false, 99, 10, 0)
	buy := newOrder("B1", true, 100, 10, 0)

	ob.Submit(sell)
	ob.Submit(buy)

	if len(l.fills) != 2 {
		t.Fatalf("expected 2 fill events (one per side), got %d: %+v", len(l.fills), l.fills)
	}
	for _, f := range l.fills {
		if f.qty != 10 || f.price != 99 {
			t.Errorf("incorrect fill qty/price: %+v", f)
		}
	}
}

func TestNoMatchDueToPrice(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 100, 10, 0))
	ob.Submit(newOrder("B1", true, 98, 10, 0))

	if len(l.fills) != 0 {
		t.Fatalf("expected no fills, got %d", len(l.fills))
	}
	bid, hasBid := ob.BestBid()
	ask, hasAsk := ob.BestAsk()
	if !hasBid || bid != 98 || !hasAsk || ask != 100 {
		t.Errorf("expected both orders resting, got bid=%v(%v) ask=%v(%v)", bid, hasBid, ask, hasAsk)
	}
}

func TestPartialMatch(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 100, 5, 0))
	ob.Submit(newOrder("B1", true, 101, 10, 0))

	fills := l.fillsFor("B1")
	if len(fills) != 1 || fills[0].qty != 5 {
		t.Fatalf("expected one 5-qty fill against B1, got %+v", fills)
	}
	ask, hasAsk := ob.BestAsk()
	if hasAsk {
		t.Errorf("S1 should be fully filled and gone, got ask=%v", ask)
	}
	bid, hasBid := ob.BestBid()
	if !hasBid || bid != 101 {
		t.Errorf("B1's remaining 5 should rest at 101, got bid=%v hasBid=%v", bid, hasBid)
	}
}

func TestFIFOWithinLevel(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 100, 5, 0))
	ob.Submit(newOrder("S2", false, 100, 5, 0))
	ob.Submit(newOrder("B1", true, 100, 10, 0))

	if len(l.fillsFor("S1")) != 1 || len(l.fillsFor("S2")) != 1 {
		t.Fatalf("expected both resting orders to each get one fill, got fills=%+v", l.fills)
	}
	// S1 must appear before S2 in fill order (time priority).
	var s1Idx, s2Idx = -1, -1
	for i, f := range l.fills {
		if f.orderID == "S1" {
			s1Idx = i
		}
		if f.orderID == "S2" {
			s2Idx = i
		}
	}
	if s1Idx == -1 || s2Idx == -1 || s1Idx > s2Idx {
		t.Errorf("expected S1 filled before S2, fills=%+v", l.fills)
	}
}

func TestMultiLevelMatch(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 101, 5, 0))
	ob.Submit(newOrder("S2", false, 102, 5, 0))
	ob.Submit(newOrder("S3", false, 103, 5, 0))
	ob.Submit(newOrder("B1", true, 105, 15, 0))

	for _, id := range []string{"S1", "S2", "S3"} {
		if len(l.fillsFor(id)) != 1 {
			t.Errorf("expected %s fully filled, fills=%+v", id, l.fillsFor(id))
		}
	}
	if _, hasAsk := ob.BestAsk(); hasAsk {
		t.Errorf("expected ask side empty after sweeping all three levels")
	}
}

func TestExecutionPriceIsRestingPrice(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 99, 10, 0))
	ob.Submit(newOrder("B1", true, 105, 10, 0))

	for _, f := range l.fills {
		if f.price != 99 {
			t.Errorf("expected execution at resting price 99, got %d", f.price)
		}
	}
}

func TestMarketOrderTakesRestingLimitPrice(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 99, 10, 0))
	ob.Submit(newOrder("B1", true, MarketOrderPrice, 10, 0))

	for _, f := range l.fills {
		if f.price != 99 {
			t.Errorf("expected market buy to execute at resting limit price 99, got %d", f.price)
		}
	}
}

func TestRestingMarketOrderTakesInboundPrice(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, MarketOrderPrice, 10, 0))
	ob.Submit(newOrder("B1", true, 107, 10, 0))

	for _, f := range l.fills {
		if f.price != 107 {
			t.Errorf("expected resting market sell to execute at inbound's limit price 107, got %d", f.price)
		}
	}
}

func TestBothMarketNeverCross(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, MarketOrderPrice, 10, 0))
	ob.Submit(newOrder("B1", true, MarketOrderPrice, 10, 0))

	if len(l.fills) != 0 {
		t.Fatalf("two market orders meeting should not cross, got fills=%+v", l.fills)
	}
}

func TestIOCDropsUnfilledRemainder(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 100, 5, 0))
	ob.Submit(newOrder("B1", true, 100, 10, IOC))

	if len(l.fillsFor("B1")) != 1 {
		t.Fatalf("expected B1 to get its 5-qty fill, got %+v", l.fillsFor("B1"))
	}
	if _, hasBid := ob.BestBid(); hasBid {
		t.Errorf("IOC remainder must not rest")
	}
}

func TestAONRestingBlocksPartialFill(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 1252, 100, 0))
	ob.Submit(newOrder("S2", false, 1252, 400, AON))
	ob.Submit(newOrder("B1", true, 1252, 600, AON))

	if len(l.fills) != 0 {
		t.Fatalf("600 cannot be satisfied by 100 plain + 400 AON = 500, expected zero fills, got %+v", l.fills)
	}
	if _, hasBid := ob.BestBid(); !hasBid {
		t.Errorf("unsatisfiable AON without IOC should rest and wait")
	}
}

func TestAONSatisfiedAcrossOrders(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 1252, 100, 0))
	ob.Submit(newOrder("S2", false, 1252, 500, 0))
	ob.Submit(newOrder("B1", true, 1252, 600, AON))

	if len(l.fillsFor("B1")) != 2 {
		t.Fatalf("expected B1 filled against both resting orders, got %+v", l.fillsFor("B1"))
	}
	if _, hasAsk := ob.BestAsk(); hasAsk {
		t.Errorf("expected both resting orders fully consumed")
	}
}

func TestAONPlusIOCUnsatisfiableCancelsWithZeroFills(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 1252, 100, 0))
	ob.Submit(newOrder("B1", true, 1252, 600, AON|IOC))

	if len(l.fills) != 0 {
		t.Fatalf("expected zero fills, got %+v", l.fills)
	}
	if len(l.cancels) != 1 || l.cancels[0] != "B1" {
		t.Errorf("expected B1 cancelled (not rejected), got cancels=%v rejects=%v", l.cancels, l.rejects)
	}
	if _, hasBid := ob.BestBid(); hasBid {
		t.Errorf("AON+IOC must never rest")
	}
}

func TestCancelRestingOrder(t *testing.T) {
	ob, l := newTestBook(5, true, true)
	o := newOrder("B1", true, 100, 10, 0)
	ob.Submit(o)

	ob.Cancel(o)

	if len(l.cancels) != 1 {
		t.Fatalf("expected one cancel event, got %d", len(l.cancels))
	}
	if _, hasBid := ob.BestBid(); hasBid {
		t.Errorf("expected book empty after cancel")
	}
}

func TestCancelUnknownOrderIsRejected(t *testing.T) {
	ob, l := newTestBook(5, true, true)
	o := newOrder("ghost", true, 100, 10, 0)

	ob.Cancel(o)

	if len(l.cancelRejects) != 1 {
		t.Fatalf("expected cancel_reject for unknown order, got cancels=%v rejects=%v", l.cancels, l.cancelRejects)
	}
}

func TestReplaceQuantityPreservesTimePriority(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	s1 := newOrder("S1", false, 100, 5, 0)
	s2 := newOrder("S2", false, 100, 5, 0)
	ob.Submit(s1)
	ob.Submit(s2)

	ob.Replace(s1, 5, PriceUnchanged) // S1 grows to 10, same price

	ob.Submit(newOrder("B1", true, 100, 10, 0))

	if len(l.replaces) != 1 {
		t.Fatalf("expected one replace event, got %d", len(l.replaces))
	}
	fills := l.fillsFor("S1")
	if len(fills) != 1 || fills[0].qty != 10 {
		t.Fatalf("expected S1's full replaced 10 qty to fill first (priority kept), got %+v", fills)
	}
	if len(l.fillsFor("S2")) != 0 {
		t.Errorf("expected S2 untouched since S1 alone satisfied B1, got %+v", l.fillsFor("S2"))
	}
}

func TestReplacePriceChangeLosesTimePriority(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	s1 := newOrder("S1", false, 100, 5, 0)
	s2 := newOrder("S2", false, 100, 5, 0)
	ob.Submit(s1)
	ob.Submit(s2)

	ob.Replace(s1, SizeUnchanged, 100) // same price, but exercise explicit-unchanged path

	ob.Replace(s1, SizeUnchanged, 100) // no-op replace, still same price/qty

	// Now genuinely move S1's price away and back, so it loses priority
	// within the level and is reinserted behind S2 at 100.
	ob.Replace(s1, 0, 101)
	ob.Replace(s1, 0, 100)

	ob.Submit(newOrder("B1", true, 100, 5, 0))

	if len(l.fillsFor("S2")) != 1 {
		t.Fatalf("expected S2, now ahead of the re-priced S1 at 100, to fill first, got S1=%v S2=%v",
			l.fillsFor("S1"), l.fillsFor("S2"))
	}
	if len(l.fillsFor("S1")) != 0 {
		t.Errorf("expected S1 untouched, got %+v", l.fillsFor("S1"))
	}
}

func TestReplaceBelowFilledQtyIsRejected(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	s1 := newOrder("S1", false, 100, 10, 0)
	ob.Submit(s1)
	ob.Submit(newOrder("B1", true, 100, 4, 0)) // S1 partially filled, 6 open

	ob.Replace(s1, -8, PriceUnchanged) // would bring total to 2, below the 4 already filled

	if len(l.replaceRejects) != 1 {
		t.Fatalf("expected replace_reject, got replaces=%v rejects=%v", l.replaces, l.replaceRejects)
	}
}

func TestReplacePriceChangeCrossesAndFills(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ask := newOrder("S1", false, 1251, 100, 0)
	bid := newOrder("B1", true, 1250, 100, 0)
	ob.Submit(ask)
	ob.Submit(bid)

	ob.Replace(bid, SizeUnchanged, 1251) // now crosses the resting ask

	if len(l.replaces) != 1 {
		t.Fatalf("expected one replace event, got %d: %v", len(l.replaces), l.replaces)
	}

	bidFills := l.fillsFor("B1")
	askFills := l.fillsFor("S1")
	if len(bidFills) != 1 || bidFills[0].qty != 100 || bidFills[0].price != 1251 {
		t.Fatalf("expected B1 filled 100@1251, got %+v", bidFills)
	}
	if len(askFills) != 1 || askFills[0].qty != 100 || askFills[0].price != 1251 {
		t.Fatalf("expected S1 filled 100@1251, got %+v", askFills)
	}

	if _, ok := ob.BestBid(); ok {
		t.Errorf("expected no resting bid after the crossing replace")
	}
	if _, ok := ob.BestAsk(); ok {
		t.Errorf("expected no resting ask after the crossing replace")
	}
}

func TestReplaceToZeroEmitsCancel(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	s1 := newOrder("S1", false, 100, 10, 0)
	ob.Submit(s1)
	ob.Submit(newOrder("B1", true, 100, 4, 0)) // S1 partially filled, 6 open

	ob.Replace(s1, -6, PriceUnchanged) // brings total to exactly 4, the filled qty

	if len(l.replaceRejects) != 0 {
		t.Fatalf("expected no replace_reject, got %v", l.replaceRejects)
	}
	if len(l.replaces) != 1 {
		t.Fatalf("expected one replace event, got %d: %v", len(l.replaces), l.replaces)
	}
	if len(l.cancels) != 1 || l.cancels[0] != "S1" {
		t.Fatalf("expected S1 cancelled after the replace-to-zero, got %v", l.cancels)
	}

	ob.Cancel(s1)
	if len(l.cancelRejects) != 1 {
		t.Fatalf("expected S1 to already be gone from the book, got cancelRejects=%v", l.cancelRejects)
	}
}

func TestDepthAggregatesMultipleOrdersAtOneLevel(t *testing.T) {
	ob, _ := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 100, 5, 0))
	ob.Submit(newOrder("S2", false, 100, 7, 0))

	asks := ob.Depth().Asks()
	if !asks[0].Populated() || asks[0].Price() != 100 {
		t.Fatalf("expected a populated level at 100, got %+v", asks[0])
	}
	if asks[0].OrderCount() != 2 || asks[0].AggregateQty() != 12 {
		t.Errorf("expected count=2 qty=12, got count=%d qty=%d", asks[0].OrderCount(), asks[0].AggregateQty())
	}
}

func TestDepthRestoresHiddenLevelAfterErase(t *testing.T) {
	ob, _ := newTestBook(1, true, true) // BBO-only depth window

	ob.Submit(newOrder("S1", false, 100, 5, 0))
	ob.Submit(newOrder("S2", false, 101, 5, 0)) // hidden beyond the 1-level window

	asks := ob.Depth().Asks()
	if asks[0].Price() != 100 {
		t.Fatalf("expected visible level at 100, got %+v", asks[0])
	}

	ob.Submit(newOrder("B1", true, 100, 5, 0)) // fills and removes S1

	asks = ob.Depth().Asks()
	if !asks[0].Populated() || asks[0].Price() != 101 {
		t.Fatalf("expected S2 restored into the freed slot at 101, got %+v", asks[0])
	}
}

func TestBBOAndDepthChangeEventsFireOnStructuralChange(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("S1", false, 100, 5, 0))
	if l.bboChanges == 0 || l.depthChanges == 0 {
		t.Fatalf("expected both bbo and depth change events on first resting order, got bbo=%d depth=%d", l.bboChanges, l.depthChanges)
	}
}

func TestRejectNonPositiveQuantity(t *testing.T) {
	ob, l := newTestBook(5, true, true)

	ob.Submit(newOrder("B1", true, 100, 0, 0))

	if len(l.rejects) != 1 {
		t.Fatalf("expected reject for zero quantity, got %+v", l)
	}
	if len(l.accepts) != 0 {
		t.Errorf("a rejected order must not also be accepted")
	}
}

func TestAONDisabledByConfigIsTreatedAsPlainOrder(t *testing.T) {
	ob, l := newTestBook(5, false, true) // AON support off

	ob.Submit(newOrder("S1", false, 1252, 400, AON))
	ob.Submit(newOrder("B1", true, 1252, 100, 0))

	if len(l.fillsFor("S1")) != 1 {
		t.Fatalf("with AON disabled, S1's condition bit should be ignored and it should partially fill, got %+v", l.fillsFor("S1"))
	}
}

func BenchmarkSubmitAgainstDeepBook(b *testing.B) {
	ob, _ := newTestBook(5, true, true)
	for i := 0; i < 10_000; i++ {
		ob.Submit(newOrder(fmt.Sprintf("S-%d", i), false, Price(100+i%5), 10, 0))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ob.Submit(newOrder(fmt.Sprintf("B-%d", i), true, 101, 10, 0))
	}
}
