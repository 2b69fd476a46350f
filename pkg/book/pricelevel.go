package book

import "github.com/gammazero/deque"

// priceLevel holds every resting tracker at one sort price, in strict
// time-priority (FIFO) order. Using gammazero/deque for the queue gives
// O(1) push-back / pop-front, the same role the teacher assigns it in
// orderBook.buyOrders/sellOrders (a map of price -> deque of orders).
type priceLevel struct {
	price  Price
	orders deque.Deque[*tracker]
}

func newPriceLevel(price Price) *priceLevel {
	return &priceLevel{price: price}
}

func (l *priceLevel) len() int { return l.orders.Len() }

func (l *priceLevel) pushBack(t *tracker) { l.orders.PushBack(t) }

// openQty sums the open quantity of every order resting at this level.
func (l *priceLevel) openQty() Quantity {
	var total Quantity
	n := l.orders.Len()
	for i := 0; i < n; i++ {
		total += l.orders.At(i).openQty()
	}
	return total
}

// at returns the tracker at queue position i (0 == front, most senior).
func (l *priceLevel) at(i int) *tracker { return l.orders.At(i) }

// removeTracker removes t by pointer identity, preserving the relative
// order of everything else. Implemented by draining into a temporary slice
// since deque does not support arbitrary removal; cancel/replace traffic is
// not hot enough at typical book depths to need more than this.
func (l *priceLevel) removeTracker(t *tracker) bool {
	n := l.orders.Len()
	for i := 0; i < n; i++ {
		if l.orders.At(i) == t {
			rest := make([]*tracker, 0, n-1)
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				rest = append(rest, l.orders.At(j))
			}
			l.orders.Clear()
			for _, o := range rest {
				l.orders.PushBack(o)
			}
			return true
		}
	}
	return false
}

// sweep visits trackers front to back, removing any for which fn's first
// return value is true, and stopping early if fn's second return value is
// true. Used by the matching loop to drain fills off the front of a level
// while leaving partially-filled and untouched orders in place.
func (l *priceLevel) sweep(fn func(t *tracker) (removeIt, stop bool)) {
	n := l.orders.Len()
	rest := make([]*tracker, 0, n)
	stopped := false
	for i := 0; i < n; i++ {
		t := l.orders.At(i)
		if stopped {
			rest = append(rest, t)
			continue
		}
		removeIt, stop := fn(t)
		if !removeIt {
			rest = append(rest, t)
		}
		if stop {
			stopped = true
		}
	}
	l.orders.Clear()
	for _, t := range rest {
		l.orders.PushBack(t)
	}
}
