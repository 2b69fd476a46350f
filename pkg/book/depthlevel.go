package book

// DepthLevel is one aggregated price point in a Depth snapshot: how many
// orders rest there, their summed open quantity, and the change id the
// level was last touched at.
type DepthLevel struct {
	price        Price
	orderCount   uint32
	aggregateQty Quantity
	lastChange   ChangeID
}

// Price returns the level's price, or the blank-slot sentinel if the level
// is not populated.
func (l *DepthLevel) Price() Price { return l.price }

// OrderCount returns the number of resting orders aggregated into the
// level.
func (l *DepthLevel) OrderCount() uint32 { return l.orderCount }

// AggregateQty returns the summed open quantity of every order aggregated
// into the level.
func (l *DepthLevel) AggregateQty() Quantity { return l.aggregateQty }

// LastChange returns the change id the level was last stamped with.
func (l *DepthLevel) LastChange() ChangeID { return l.lastChange }

// ChangedSince reports whether the level has been touched since a
// consumer's last-seen change id.
func (l *DepthLevel) ChangedSince(lastPublished ChangeID) bool {
	return l.lastChange > lastPublished
}

// Populated reports whether the level currently holds a real price point.
func (l *DepthLevel) Populated() bool {
	return l.price != invalidLevelPrice || l.orderCount != 0
}

func (l *DepthLevel) init(price Price) {
	l.price = price
	l.orderCount = 0
	l.aggregateQty = 0
}

func (l *DepthLevel) addOrder(qty Quantity) {
	l.orderCount++
	l.aggregateQty += qty
}

func (l *DepthLevel) increaseQty(qty Quantity) {
	l.aggregateQty += qty
}

func (l *DepthLevel) decreaseQty(qty Quantity) {
	if qty > l.aggregateQty {
		panic(&InvariantError{Reason: "depth level quantity would go negative"})
	}
	l.aggregateQty -= qty
}

// closeOrder removes one order's worth of qty from the level and returns
// true if the level is now empty (order count reached zero).
func (l *DepthLevel) closeOrder(qty Quantity) bool {
	if l.orderCount == 0 {
		panic(&InvariantError{Reason: "close_order on empty depth level"})
	}
	l.orderCount--
	l.decreaseQty(qty)
	return l.orderCount == 0
}
