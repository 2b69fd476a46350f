package book

import "sort"

// sideBook is an ordered ladder of priceLevels for one side of the book:
// bids sorted with the best (highest) price first, asks sorted with the
// best (lowest) price first. Ties within one price are FIFO, handled by
// priceLevel itself.
//
// The source this is modeled on keys a std::multimap by price; Go has no
// built-in ordered map, and a hand-rolled balanced tree is more machinery
// than a book of a few dozen to a few hundred resident price levels needs.
// A sorted slice with binary-search insert/lookup gives the same ordered
// traversal and O(log n) find at the cost of O(n) insert/erase shifting,
// which is the right trade for this engine's access pattern (matching and
// depth both only ever touch the best few levels).
type sideBook struct {
	buy    bool
	levels []*priceLevel
}

func newSideBook(buy bool) *sideBook {
	return &sideBook{buy: buy}
}

// better reports whether price a is strictly better (closer to the top of
// the book) than price b on this side.
func (s *sideBook) better(a, b Price) bool {
	if s.buy {
		return a > b
	}
	return a < b
}

func (s *sideBook) len() int { return len(s.levels) }

func (s *sideBook) best() *priceLevel {
	if len(s.levels) == 0 {
		return nil
	}
	return s.levels[0]
}

// indexOf returns the slice index at which a level with this price sits,
// or the index it would be inserted at (via found=false).
func (s *sideBook) indexOf(price Price) (idx int, found bool) {
	idx = sort.Search(len(s.levels), func(i int) bool {
		lp := s.levels[i].price
		if lp == price {
			return true
		}
		return !s.better(lp, price)
	})
	if idx < len(s.levels) && s.levels[idx].price == price {
		return idx, true
	}
	return idx, false
}

// levelAt returns the level at slice index i. Callers that mutate levels
// while walking (matching, which can erase a level mid-scan) must use this
// plus removeLevelAt rather than range over levels directly, since erasing
// during a range loop reads past shifted elements.
func (s *sideBook) levelAt(i int) *priceLevel { return s.levels[i] }

func (s *sideBook) find(price Price) *priceLevel {
	idx, found := s.indexOf(price)
	if !found {
		return nil
	}
	return s.levels[idx]
}

// findAfter returns the best-populated level whose price is strictly worse
// than price, or nil if there is none. Used by the depth tracker's
// restoration collaboration (§4.2/§4.3): after a visible level is erased,
// the engine asks the side book for the next-best hidden price.
func (s *sideBook) findAfter(price Price) *priceLevel {
	idx, found := s.indexOf(price)
	if found {
		idx++
	}
	if idx >= len(s.levels) {
		return nil
	}
	return s.levels[idx]
}

// insert adds t to the FIFO queue at its sort price, creating the price
// level if necessary.
func (s *sideBook) insert(t *tracker) {
	price := t.liveSortPrice()
	idx, found := s.indexOf(price)
	if found {
		s.levels[idx].pushBack(t)
		return
	}
	level := newPriceLevel(price)
	level.pushBack(t)
	s.levels = append(s.levels, nil)
	copy(s.levels[idx+1:], s.levels[idx:])
	s.levels[idx] = level
}

// removeLevelAt erases the level at slice index idx.
func (s *sideBook) removeLevelAt(idx int) {
	s.levels = append(s.levels[:idx], s.levels[idx+1:]...)
}

func (s *sideBook) dropIfEmpty(level *priceLevel) {
	if level.len() != 0 {
		return
	}
	idx, found := s.indexOf(level.price)
	if found {
		s.removeLevelAt(idx)
	}
}

// removeTracker removes t from the book. Its current liveSortPrice
// (accounting for any replace override) narrows the search to a single
// price level.
func (s *sideBook) removeTracker(t *tracker) bool {
	level := s.find(t.liveSortPrice())
	if level == nil {
		return false
	}
	ok := level.removeTracker(t)
	if ok {
		s.dropIfEmpty(level)
	}
	return ok
}

// forEachBestToWorst visits resting trackers level by level, best price
// first, FIFO within a level, until fn returns false.
func (s *sideBook) forEachBestToWorst(fn func(level *priceLevel) (keepGoing bool)) {
	for _, level := range s.levels {
		if !fn(level) {
			return
		}
	}
}
