package book

import "testing"

// checkInvariants asserts the structural invariants a Depth must hold after
// any operation: populated slots form a contiguous prefix, prices are
// strictly ordered best-to-worst within that prefix, and every populated
// slot has a nonzero order count.
func (d *Depth) checkInvariants(t *testing.T, buy bool) {
	t.Helper()
	side := d.sideSlice(buy)
	seenBlank := false
	for i, lvl := range side {
		if !lvl.Populated() {
			seenBlank = true
			continue
		}
		if seenBlank {
			t.Fatalf("populated level at index %d after a blank slot", i)
		}
		if lvl.orderCount == 0 {
			t.Fatalf("level at index %d populated with zero order count", i)
		}
		if i > 0 && side[i-1].Populated() && !d.better(buy, side[i-1].price, lvl.price) {
			t.Fatalf("levels out of order at index %d: %d not better than %d", i, side[i-1].price, lvl.price)
		}
	}
}

func TestDepthAddOrderCreatesLevelInPriceOrder(t *testing.T) {
	d := NewDepth(3)

	d.AddOrder(true, 100, 10)
	d.AddOrder(true, 102, 5)
	d.AddOrder(true, 101, 7)

	bids := d.Bids()
	if bids[0].Price() != 102 || bids[1].Price() != 101 || bids[2].Price() != 100 {
		t.Fatalf("expected bids sorted best-first (102,101,100), got (%d,%d,%d)",
			bids[0].Price(), bids[1].Price(), bids[2].Price())
	}
	d.checkInvariants(t, true)
}

func TestDepthWindowDropsWorseThanCapacity(t *testing.T) {
	d := NewDepth(2)

	d.AddOrder(true, 100, 10)
	d.AddOrder(true, 99, 10)
	d.AddOrder(true, 98, 10) // worse than both visible slots, window is full

	bids := d.Bids()
	if bids[0].Price() != 100 || bids[1].Price() != 99 {
		t.Fatalf("expected window to stay (100,99), got (%d,%d)", bids[0].Price(), bids[1].Price())
	}

	d.AddOrder(true, 101, 10) // better than everything, should push 99 out
	bids = d.Bids()
	if bids[0].Price() != 101 || bids[1].Price() != 100 {
		t.Fatalf("expected window to become (101,100), got (%d,%d)", bids[0].Price(), bids[1].Price())
	}
	d.checkInvariants(t, true)
}

func TestDepthChangeIDAdvancesOnlyOnRealChange(t *testing.T) {
	d := NewDepth(3)
	d.AddOrder(true, 100, 10)
	after := d.LastChange()

	d.ChangeQty(true, 100, 0) // no-op delta, must not advance
	if d.LastChange() != after {
		t.Errorf("zero delta must not advance change id, before=%d after=%d", after, d.LastChange())
	}

	d.ChangeQty(true, 100, 5)
	if d.LastChange() == after {
		t.Errorf("real change must advance change id")
	}
}

func TestDepthCloseOrderErasesEmptyLevel(t *testing.T) {
	d := NewDepth(3)
	d.AddOrder(true, 100, 10)

	erased := d.CloseOrder(true, 100, 10)
	if !erased {
		t.Fatalf("closing the level's only order should report erased")
	}
	if d.Bids()[0].Populated() {
		t.Errorf("expected level blanked after erase")
	}
	d.checkInvariants(t, true)
}

func TestDepthCloseOrderPanicsOnInvariantViolation(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic closing more qty than the level holds")
		}
		if _, ok := r.(*InvariantError); !ok {
			t.Errorf("expected *InvariantError, got %T: %v", r, r)
		}
	}()

	d := NewDepth(3)
	d.AddOrder(true, 100, 10)
	d.CloseOrder(true, 100, 999)
}

func TestDepthReplaceOrderSamePriceCollapsesToChangeQty(t *testing.T) {
	d := NewDepth(3)
	d.AddOrder(true, 100, 10)
	before := d.LastChange()

	erased := d.ReplaceOrder(true, 100, 100, 10, 15)
	if erased {
		t.Fatalf("same-price replace must never erase")
	}
	if d.LastChange() != before+1 {
		t.Errorf("expected exactly one change id bump for a same-price replace, before=%d after=%d", before, d.LastChange())
	}
	if d.Bids()[0].AggregateQty() != 15 {
		t.Errorf("expected aggregate qty 15, got %d", d.Bids()[0].AggregateQty())
	}
	d.checkInvariants(t, true)
}
