package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/joripage/matchbook/config"
	"github.com/joripage/matchbook/pkg/book"
	"github.com/joripage/matchbook/pkg/bookmgr"
	"github.com/joripage/matchbook/pkg/logging"
	"github.com/joripage/matchbook/pkg/marketdata"
)

// fixtureOrder is the concrete book.Order a replayed fixture command
// builds. Its identity (pointer equality, per book.Order's contract) is
// what Cancel/Replace commands in the same fixture key off of via id.
type fixtureOrder struct {
	id    string
	buy   bool
	price book.Price
	qty   book.Quantity
	cond  book.OrderConditions
}

func (o *fixtureOrder) IsBuy() bool                      { return o.buy }
func (o *fixtureOrder) Price() book.Price                { return o.price }
func (o *fixtureOrder) OrderQty() book.Quantity          { return o.qty }
func (o *fixtureOrder) Conditions() book.OrderConditions { return o.cond }

// fixtureCommand is one line of a replayed fixture: a submit, cancel, or
// replace against a single symbol's book.
type fixtureCommand struct {
	Op       string  `json:"op"`
	Symbol   string  `json:"symbol"`
	ID       string  `json:"id"`
	Buy      bool    `json:"buy"`
	Price    uint64  `json:"price"`
	Qty      uint64  `json:"qty"`
	AON      bool    `json:"aon"`
	IOC      bool    `json:"ioc"`
	QtyDelta int64   `json:"qty_delta"`
	NewPrice *uint64 `json:"new_price"`
}

// consoleListener logs every callback except OnDepthChange (left to the
// embedded NopListener) at Info/Debug, grounding observable
// behavior in structured logging rather than print statements.
type consoleListener struct {
	book.NopListener
	log *logging.Logger
}

func (l *consoleListener) OnAccept(o book.Order, trans book.TransID) {
	l.log.Info(context.Background(), "accept", zap.Bool("buy", o.IsBuy()), zap.Uint64("qty", uint64(o.OrderQty())), zap.Uint64("price", uint64(o.Price())), zap.Uint64("trans", uint64(trans)))
}

func (l *consoleListener) OnReject(o book.Order, reason string, trans book.TransID) {
	l.log.Info(context.Background(), "reject", zap.String("reason", reason), zap.Uint64("trans", uint64(trans)))
}

func (l *consoleListener) OnFill(o book.Order, qty book.Quantity, price book.Price, cost book.Decimal, trans book.TransID) {
	l.log.Info(context.Background(), "fill", zap.Bool("buy", o.IsBuy()), zap.Uint64("qty", uint64(qty)), zap.Uint64("price", uint64(price)), zap.String("cost", cost.String()), zap.Uint64("trans", uint64(trans)))
}

func (l *consoleListener) OnCancel(o book.Order, trans book.TransID) {
	l.log.Info(context.Background(), "cancel", zap.Bool("buy", o.IsBuy()), zap.Uint64("trans", uint64(trans)))
}

func (l *consoleListener) OnCancelReject(o book.Order, reason string, trans book.TransID) {
	l.log.Info(context.Background(), "cancel_reject", zap.String("reason", reason), zap.Uint64("trans", uint64(trans)))
}

func (l *consoleListener) OnReplace(o book.Order, newQty book.Quantity, newPrice book.Price, trans book.TransID) {
	l.log.Info(context.Background(), "replace", zap.Uint64("new_qty", uint64(newQty)), zap.Uint64("new_price", uint64(newPrice)), zap.Uint64("trans", uint64(trans)))
}

func (l *consoleListener) OnReplaceReject(o book.Order, reason string, trans book.TransID) {
	l.log.Info(context.Background(), "replace_reject", zap.String("reason", reason), zap.Uint64("trans", uint64(trans)))
}

func (l *consoleListener) OnBBOChange(b *book.OrderBook) {
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	l.log.Debug(context.Background(), "bbo", zap.Bool("has_bid", hasBid), zap.Uint64("bid", uint64(bid)), zap.Bool("has_ask", hasAsk), zap.Uint64("ask", uint64(ask)))
}

func main() {
	configPath := flag.String("config", "", "path to matchbookd config yaml")
	fixturePath := flag.String("fixture", "", "path to a JSON fixture of commands to replay and exit")
	flag.Parse()

	logger := logging.NewLogger(logging.INFO)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	var publishers []*marketdata.NATSPublisher
	mgr := bookmgr.NewManager(cfg, func(symbol string, bc *config.BookConfig) book.Listener {
		console := &consoleListener{log: logger}
		if cfg.NatsURL == "" || bc.MarketDataSubject == "" {
			return console
		}
		pub, err := marketdata.NewNATSPublisher(cfg.NatsURL, bc.MarketDataSubject, 0, 0, logger)
		if err != nil {
			logger.Warn(context.Background(), "market data publisher disabled", zap.String("symbol", symbol), zap.Error(err))
			return console
		}
		publishers = append(publishers, pub)
		return fanOutListener{console, pub}
	})

	if *fixturePath != "" {
		replayFixture(mgr, *fixturePath, logger)
		for _, p := range publishers {
			p.Close()
		}
		return
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("matchbookd started. Press Ctrl+C to exit.")
	<-sigs
	logger.Info(context.Background(), "shutting down", zap.Strings("symbols", mgr.Symbols()))
	for _, p := range publishers {
		p.Close()
	}
}

// fanOutListener drains every event to more than one Listener, in order,
// so a book can be watched by both a human-readable console sink and a
// market-data publisher at once.
type fanOutListener []book.Listener

func (f fanOutListener) OnAccept(o book.Order, trans book.TransID) {
	for _, l := range f {
		l.OnAccept(o, trans)
	}
}
func (f fanOutListener) OnReject(o book.Order, reason string, trans book.TransID) {
	for _, l := range f {
		l.OnReject(o, reason, trans)
	}
}
func (f fanOutListener) OnFill(o book.Order, qty book.Quantity, price book.Price, cost book.Decimal, trans book.TransID) {
	for _, l := range f {
		l.OnFill(o, qty, price, cost, trans)
	}
}
func (f fanOutListener) OnCancel(o book.Order, trans book.TransID) {
	for _, l := range f {
		l.OnCancel(o, trans)
	}
}
func (f fanOutListener) OnCancelReject(o book.Order, reason string, trans book.TransID) {
	for _, l := range f {
		l.OnCancelReject(o, reason, trans)
	}
}
func (f fanOutListener) OnReplace(o book.Order, newQty book.Quantity, newPrice book.Price, trans book.TransID) {
	for _, l := range f {
		l.OnReplace(o, newQty, newPrice, trans)
	}
}
func (f fanOutListener) OnReplaceReject(o book.Order, reason string, trans book.TransID) {
	for _, l := range f {
		l.OnReplaceReject(o, reason, trans)
	}
}
func (f fanOutListener) OnDepthChange(b *book.OrderBook) {
	for _, l := range f {
		l.OnDepthChange(b)
	}
}
func (f fanOutListener) OnBBOChange(b *book.OrderBook) {
	for _, l := range f {
		l.OnBBOChange(b)
	}
}

// withInvariantRecovery runs fn, catching a *book.InvariantError panic and
// logging it at Fatal (which exits the process) instead of letting a
// corrupted book crash with a bare stack trace. Any other panic propagates
// unchanged — an invariant violation is the only panic this engine raises
// deliberately.
func withInvariantRecovery(logger *logging.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if ierr, ok := r.(*book.InvariantError); ok {
				logger.Fatal(context.Background(), "book invariant violated", zap.String("book", ierr.Book), zap.String("reason", ierr.Reason))
				return
			}
			panic(r)
		}
	}()
	fn()
}

func replayFixture(mgr *bookmgr.Manager, path string, logger *logging.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read fixture: %v\n", err)
		os.Exit(1)
	}

	var cmds []fixtureCommand
	if err := json.Unmarshal(data, &cmds); err != nil {
		fmt.Fprintf(os.Stderr, "parse fixture: %v\n", err)
		os.Exit(1)
	}

	orders := make(map[string]*fixtureOrder)
	for _, c := range cmds {
		ob := mgr.Book(c.Symbol)
		switch c.Op {
		case "submit":
			var cond book.OrderConditions
			if c.AON {
				cond |= book.AON
			}
			if c.IOC {
				cond |= book.IOC
			}
			o := &fixtureOrder{id: c.ID, buy: c.Buy, price: book.Price(c.Price), qty: book.Quantity(c.Qty), cond: cond}
			orders[c.ID] = o
			withInvariantRecovery(logger, func() { ob.Submit(o) })
		case "cancel":
			o, ok := orders[c.ID]
			if !ok {
				logger.Warn(context.Background(), "cancel of unknown fixture id", zap.String("id", c.ID))
				continue
			}
			withInvariantRecovery(logger, func() { ob.Cancel(o) })
		case "replace":
			o, ok := orders[c.ID]
			if !ok {
				logger.Warn(context.Background(), "replace of unknown fixture id", zap.String("id", c.ID))
				continue
			}
			newPrice := book.PriceUnchanged
			if c.NewPrice != nil {
				newPrice = book.Price(*c.NewPrice)
			}
			withInvariantRecovery(logger, func() { ob.Replace(o, c.QtyDelta, newPrice) })
		default:
			logger.Warn(context.Background(), "unknown fixture op", zap.String("op", c.Op))
		}
	}

	for _, symbol := range mgr.Symbols() {
		fmt.Printf("--- %s ---\n%s", symbol, mgr.Book(symbol).DebugString())
	}
}
