package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/joripage/matchbook/pkg/book"
	"github.com/joripage/matchbook/pkg/logging"
)

// event is the JSON envelope published for every dissemination-worthy book
// event: fills, depth-window snapshots and top-of-book changes.
// Accept/cancel/replace traffic is
// not disseminated — those are acknowledgements to the submitter, not
// market data.
type event struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Kind      string    `json:"kind"`
	Trans     uint64    `json:"trans,omitempty"`
	Buy       bool      `json:"buy,omitempty"`
	Qty       uint64    `json:"qty,omitempty"`
	Price     uint64    `json:"price,omitempty"`
	Cost      string    `json:"cost,omitempty"`
	BidPrice  uint64    `json:"bid_price,omitempty"`
	BidQty    uint64    `json:"bid_qty,omitempty"`
	AskPrice  uint64    `json:"ask_price,omitempty"`
	AskQty    uint64    `json:"ask_qty,omitempty"`
	Bids      []level   `json:"bids,omitempty"`
	Asks      []level   `json:"asks,omitempty"`
	Published time.Time `json:"published"`
}

// level is one aggregated price point in a published depth snapshot.
type level struct {
	Price uint64 `json:"price"`
	Qty   uint64 `json:"qty"`
}

func levelsOf(rows []book.DepthLevel) []level {
	out := make([]level, 0, len(rows))
	for _, r := range rows {
		if !r.Populated() {
			break
		}
		out = append(out, level{Price: uint64(r.Price()), Qty: uint64(r.AggregateQty())})
	}
	return out
}

// NATSPublisher disseminates fill, depth and BBO events over NATS, implementing
// book.Listener so it can be attached to an OrderBook directly alongside
// (or in place of) an application listener. Publishing runs on a bounded
// pool of goroutines fed by a queue channel: a book's matching loop must
// never block on network I/O, so a full queue drops the event and logs a
// warning rather than applying backpressure to the caller.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	logger  *logging.Logger

	queue chan event
	done  chan struct{}
}

// NewNATSPublisher dials url with exponential backoff (network partitions
// at startup are routine, not fatal) and starts workers workers draining
// the publish queue of size queueSize.
func NewNATSPublisher(url, subject string, workers, queueSize int, logger *logging.Logger) (*NATSPublisher, error) {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 4096
	}

	var nc *nats.Conn
	boff := backoff.NewExponentialBackOff()
	err := backoff.Retry(func() error {
		var err error
		nc, err = nats.Connect(url)
		if err != nil {
			logger.Warn(context.Background(), "nats connect failed, retrying", zap.Error(err))
		}
		return err
	}, boff)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	p := &NATSPublisher{
		nc:      nc,
		subject: subject,
		logger:  logger,
		queue:   make(chan event, queueSize),
		done:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p, nil
}

func (p *NATSPublisher) worker() {
	for {
		select {
		case e, ok := <-p.queue:
			if !ok {
				return
			}
			p.publish(e)
		case <-p.done:
			return
		}
	}
}

func (p *NATSPublisher) publish(e event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.logger.Warn(context.Background(), "marshal market data event failed", zap.Error(err))
		return
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		p.logger.Warn(context.Background(), "publish market data event failed", zap.Error(err))
	}
}

// enqueue is non-blocking: a full queue means the consumer side is falling
// behind the book, and market data is not worth slowing matching down for.
func (p *NATSPublisher) enqueue(e event) {
	e.ID = uuid.New().String()
	e.Subject = p.subject
	select {
	case p.queue <- e:
	default:
		p.logger.Warn(context.Background(), "market data queue full, dropping event", zap.String("kind", e.Kind))
	}
}

// Close stops the worker pool and closes the NATS connection without
// draining it. In-flight queued events are discarded.
func (p *NATSPublisher) Close() {
	close(p.done)
	p.nc.Close()
}

func (*NATSPublisher) OnAccept(book.Order, book.TransID)                            {}
func (*NATSPublisher) OnReject(book.Order, string, book.TransID)                    {}
func (*NATSPublisher) OnCancel(book.Order, book.TransID)                            {}
func (*NATSPublisher) OnCancelReject(book.Order, string, book.TransID)              {}
func (*NATSPublisher) OnReplace(book.Order, book.Quantity, book.Price, book.TransID) {}
func (*NATSPublisher) OnReplaceReject(book.Order, string, book.TransID)             {}

func (p *NATSPublisher) OnFill(o book.Order, qty book.Quantity, price book.Price, cost book.Decimal, trans book.TransID) {
	p.enqueue(event{
		Kind:  "fill",
		Trans: uint64(trans),
		Buy:   o.IsBuy(),
		Qty:   uint64(qty),
		Price: uint64(price),
		Cost:  cost.String(),
	})
}

func (p *NATSPublisher) OnBBOChange(b *book.OrderBook) {
	e := event{Kind: "bbo"}
	if price, ok := b.BestBid(); ok {
		e.BidPrice = uint64(price)
		if lvl := b.Depth().Bids()[0]; lvl.Populated() {
			e.BidQty = uint64(lvl.AggregateQty())
		}
	}
	if price, ok := b.BestAsk(); ok {
		e.AskPrice = uint64(price)
		if lvl := b.Depth().Asks()[0]; lvl.Populated() {
			e.AskQty = uint64(lvl.AggregateQty())
		}
	}
	p.enqueue(e)
}

// OnDepthChange republishes the full visible depth window on either side,
// not just the top level OnBBOChange carries, so a downstream consumer can
// reconstruct the book's depth view without querying it directly.
func (p *NATSPublisher) OnDepthChange(b *book.OrderBook) {
	p.enqueue(event{
		Kind: "depth",
		Bids: levelsOf(b.Depth().Bids()),
		Asks: levelsOf(b.Depth().Asks()),
	})
}
