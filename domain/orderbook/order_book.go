package orderbook

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation addresses a price level or
// order id that is not in the book.
var ErrNotFound = errors.New("orderbook: not found")

// Book is one side of a trade pair's order book. Best price for the buy
// side is the maximum key, for the sell side the minimum. Single-writer
// and deterministic; the owning pair serializes access.
type Book struct {
	side Side
	tree *RBTree
}

func NewBook(side Side) *Book {
	return &Book{side: side, tree: NewRBTree()}
}

func (b *Book) Side() Side { return b.side }

// Size returns the number of live price levels.
func (b *Book) Size() int { return b.tree.Size() }

// AddOrder enqueues o at the tail of the level at price, creating the
// level if absent.
func (b *Book) AddOrder(price int64, o *Order) {
	b.tree.UpsertLevel(price).Enqueue(o)
}

// RemoveOrder unlinks the order with the given id from the level at price,
// dropping the level when it becomes empty. Used by explicit cancels.
func (b *Book) RemoveOrder(price int64, id string) (*Order, error) {
	lvl := b.tree.FindLevel(price)
	if lvl == nil {
		return nil, fmt.Errorf("%w: price %d", ErrNotFound, price)
	}
	o := lvl.Find(id)
	if o == nil {
		return nil, fmt.Errorf("%w: order %s at price %d", ErrNotFound, id, price)
	}
	lvl.Unlink(o)
	if lvl.Empty() {
		b.tree.DeleteLevel(price)
	}
	return o, nil
}

// RemoveFirstOrder pops the head of the level at price, dropping the level
// when it becomes empty. Used after a fill consumes the head order.
func (b *Book) RemoveFirstOrder(price int64) (*Order, error) {
	lvl := b.tree.FindLevel(price)
	if lvl == nil {
		return nil, fmt.Errorf("%w: price %d", ErrNotFound, price)
	}
	o := lvl.PopHead()
	if lvl.Empty() {
		b.tree.DeleteLevel(price)
	}
	return o, nil
}

// BestPrice returns the top-of-book price, 0 when the book is empty.
func (b *Book) BestPrice() int64 {
	lvl := b.bestLevel()
	if lvl == nil {
		return 0
	}
	return lvl.Price
}

// BestLevel exposes the top level for matching. Nil when empty.
func (b *Book) BestLevel() *PriceLevel {
	return b.bestLevel()
}

// TopOfBook returns the best price and the order id at the head of that
// level's queue. (0, "") when the book is empty.
func (b *Book) TopOfBook() (int64, string) {
	lvl := b.bestLevel()
	if lvl == nil {
		return 0, ""
	}
	return lvl.Price, lvl.Head().ID
}

// Exists reports whether price is a live level in the book.
func (b *Book) Exists(price int64) bool {
	return b.tree.FindLevel(price) != nil
}

// Walk visits every level from best to worst until fn returns false.
func (b *Book) Walk(fn func(*PriceLevel) bool) {
	if b.side == Buy {
		b.tree.ForEachDescending(fn)
		return
	}
	b.tree.ForEachAscending(fn)
}

// Level returns the price level at price, nil if absent.
func (b *Book) Level(price int64) *PriceLevel {
	return b.tree.FindLevel(price)
}

// LevelQty returns the aggregate remaining quantity resting at price.
func (b *Book) LevelQty(price int64) (int64, error) {
	lvl := b.tree.FindLevel(price)
	if lvl == nil {
		return 0, fmt.Errorf("%w: price %d", ErrNotFound, price)
	}
	return lvl.TotalQty, nil
}

// GetHead returns the order id at the head of the level at price.
func (b *Book) GetHead(price int64) (string, error) {
	lvl := b.tree.FindLevel(price)
	if lvl == nil {
		return "", fmt.Errorf("%w: price %d", ErrNotFound, price)
	}
	return lvl.Head().ID, nil
}

// NextPrice walks prices from best to worst. A current of 0 yields the
// best price; the walk ends with 0.
func (b *Book) NextPrice(current int64) int64 {
	var lvl *PriceLevel
	if current == 0 {
		lvl = b.bestLevel()
	} else if b.side == Buy {
		lvl = b.tree.Predecessor(current)
	} else {
		lvl = b.tree.Successor(current)
	}
	if lvl == nil {
		return 0
	}
	return lvl.Price
}

// NextOrder walks the FIFO queue at price. It returns the order id behind
// afterID, "" at the end of the queue.
func (b *Book) NextOrder(price int64, afterID string) (string, error) {
	lvl := b.tree.FindLevel(price)
	if lvl == nil {
		return "", fmt.Errorf("%w: price %d", ErrNotFound, price)
	}
	o := lvl.Find(afterID)
	if o == nil {
		return "", fmt.Errorf("%w: order %s at price %d", ErrNotFound, afterID, price)
	}
	if o.next == nil {
		return "", nil
	}
	return o.next.ID, nil
}

// BookPage is one bounded page of aggregate book state. NextPrice == 0
// means the walk is complete; a non-empty NextOrder resumes mid-level.
type BookPage struct {
	Prices     []int64
	Quantities []int64
	NextPrice  int64
	NextOrder  string
}

func zeroPage() BookPage {
	return BookPage{Prices: []int64{0}, Quantities: []int64{0}}
}

// GetNBook returns up to maxPrices (price, aggregate quantity) entries
// starting at the resume cursor, scanning at most maxOrders orders per
// level per call. resumePrice 0 starts at the top of the book. A zero
// single-entry page is returned when maxPrices is 0 or resumePrice is not
// a live price; bounded queries never fail.
func (b *Book) GetNBook(maxPrices, maxOrders int, resumePrice int64, resumeOrder string) BookPage {
	if maxPrices <= 0 || maxOrders <= 0 {
		return zeroPage()
	}

	price := resumePrice
	if price == 0 {
		price = b.BestPrice()
		if price == 0 {
			return zeroPage()
		}
	} else if !b.Exists(price) {
		return zeroPage()
	}

	page := BookPage{
		Prices:     make([]int64, 0, maxPrices),
		Quantities: make([]int64, 0, maxPrices),
	}

	cursor := resumeOrder
	for price != 0 && len(page.Prices) < maxPrices {
		lvl := b.tree.FindLevel(price)
		if lvl == nil {
			break
		}

		start := lvl.Head()
		if cursor != "" {
			start = lvl.Find(cursor)
			if start == nil {
				return zeroPage()
			}
		}

		var sum int64
		scanned := 0
		o := start
		for o != nil && scanned < maxOrders {
			sum += o.Remaining()
			scanned++
			o = o.next
		}
		page.Prices = append(page.Prices, price)
		page.Quantities = append(page.Quantities, sum)

		if o != nil {
			// Level not exhausted; resume inside it next call.
			page.NextPrice = price
			page.NextOrder = o.ID
			return page
		}
		price = b.NextPrice(price)
		cursor = ""
	}

	page.NextPrice = price
	return page
}

// IsNotCrossedBook reports whether the two sides of a pair do not cross:
// true unless both books are non-empty and best ask < best bid.
func IsNotCrossedBook(sellBook, buyBook *Book) bool {
	bestAsk := sellBook.BestPrice()
	bestBid := buyBook.BestPrice()
	if bestAsk == 0 || bestBid == 0 {
		return true
	}
	return bestAsk >= bestBid
}

func (b *Book) bestLevel() *PriceLevel {
	if b.side == Buy {
		return b.tree.MaxLevel()
	}
	return b.tree.MinLevel()
}
