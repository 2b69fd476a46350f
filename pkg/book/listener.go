package book

// Listener is the sink an OrderBook drains its event queue into after each
// command. All nine callbacks are invoked synchronously, in the order
// produced, from inside the call that triggered them (Submit, Cancel, or
// Replace). A Listener must not call back into the same book: the engine
// is not re-entrant (§5) — buffer any resulting commands externally and
// issue them after the originating call returns.
type Listener interface {
	OnAccept(order Order, trans TransID)
	OnReject(order Order, reason string, trans TransID)
	// OnFill is called twice per trade: once for the inbound order, once
	// for the resting order it crossed. Both calls share trans.
	OnFill(order Order, qty Quantity, price Price, cost Decimal, trans TransID)
	OnCancel(order Order, trans TransID)
	OnCancelReject(order Order, reason string, trans TransID)
	OnReplace(order Order, newQty Quantity, newPrice Price, trans TransID)
	OnReplaceReject(order Order, reason string, trans TransID)
	OnDepthChange(b *OrderBook)
	OnBBOChange(b *OrderBook)
}

// NopListener implements Listener with no-op methods, for callers that
// only want a subset of callbacks — embed it and override the rest.
type NopListener struct{}

func (NopListener) OnAccept(Order, TransID)                        {}
func (NopListener) OnReject(Order, string, TransID)                {}
func (NopListener) OnFill(Order, Quantity, Price, Decimal, TransID) {}
func (NopListener) OnCancel(Order, TransID)                        {}
func (NopListener) OnCancelReject(Order, string, TransID)          {}
func (NopListener) OnReplace(Order, Quantity, Price, TransID)      {}
func (NopListener) OnReplaceReject(Order, string, TransID)         {}
func (NopListener) OnDepthChange(*OrderBook)                       {}
func (NopListener) OnBBOChange(*OrderBook)                         {}
