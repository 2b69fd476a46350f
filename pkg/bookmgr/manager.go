package bookmgr

import (
	"sync"

	"github.com/joripage/matchbook/config"
	"github.com/joripage/matchbook/pkg/book"
)

// Manager owns one OrderBook per instrument symbol, created lazily from
// per-symbol config on first use. A sync.Map matches the teacher's
// OrderBookManager (pkg/orderbook/orderbook_manager.go): instrument count
// is not known up front and lookups vastly outnumber creations once a
// symbol has traded.
type Manager struct {
	cfg   *config.AppConfig
	books sync.Map // symbol string -> *book.OrderBook

	listenerFor func(symbol string, cfg *config.BookConfig) book.Listener
}

// NewManager constructs a Manager. listenerFor builds the Listener a
// symbol's book should drain events into (typically a market-data
// publisher, an application sink, or both fanned out through a small
// adapter); it may be nil, in which case every book gets book.NopListener.
func NewManager(cfg *config.AppConfig, listenerFor func(symbol string, cfg *config.BookConfig) book.Listener) *Manager {
	return &Manager{cfg: cfg, listenerFor: listenerFor}
}

// Book returns the OrderBook for symbol, creating it from cfg.Books[symbol]
// the first time it is requested. An unconfigured symbol gets a default
// BookConfig (depth 5, AON and IOC both enabled) rather than an error —
// a matching engine rejecting an instrument because no one wrote a YAML
// stanza for it is not a failure mode worth having.
func (m *Manager) Book(symbol string) *book.OrderBook {
	if val, ok := m.books.Load(symbol); ok {
		return val.(*book.OrderBook)
	}

	bc := m.cfg.Books[symbol]
	if bc == nil {
		bc = &config.BookConfig{DepthSize: 5, EnableAON: true, EnableIOC: true}
	}

	var listener book.Listener
	if m.listenerFor != nil {
		listener = m.listenerFor(symbol, bc)
	}

	ob := book.NewOrderBook(bc.DepthSize, bc.EnableAON, bc.EnableIOC, listener)
	actual, _ := m.books.LoadOrStore(symbol, ob)
	return actual.(*book.OrderBook)
}

// Symbols returns every symbol that currently has a book, in no particular
// order.
func (m *Manager) Symbols() []string {
	var out []string
	m.books.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	return out
}
