package orderbook

// PriceLevel is a FIFO queue of resting orders at a single price.
// TotalQty tracks the sum of the queued orders' remaining quantities.
type PriceLevel struct {
	Price int64

	head *Order
	tail *Order

	TotalQty int64
	Count    int
}

func (lvl *PriceLevel) Enqueue(o *Order) {
	if lvl.tail != nil {
		lvl.tail.next = o
		o.prev = lvl.tail
	} else {
		lvl.head = o
	}
	lvl.tail = o
	lvl.TotalQty += o.Remaining()
	lvl.Count++
}

// PopHead removes and returns the oldest order, nil when the level is empty.
func (lvl *PriceLevel) PopHead() *Order {
	o := lvl.head
	if o == nil {
		return nil
	}
	lvl.head = o.next
	if lvl.head != nil {
		lvl.head.prev = nil
	} else {
		lvl.tail = nil
	}
	o.next, o.prev = nil, nil
	lvl.TotalQty -= o.Remaining()
	lvl.Count--
	return o
}

// Unlink removes o from anywhere in the queue. The caller must guarantee
// o is actually linked into this level.
func (lvl *PriceLevel) Unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		lvl.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		lvl.tail = o.prev
	}
	o.next, o.prev = nil, nil
	lvl.TotalQty -= o.Remaining()
	lvl.Count--
}

// Reduce lowers the aggregate after a partial fill of a queued order.
func (lvl *PriceLevel) Reduce(qty int64) {
	lvl.TotalQty -= qty
}

func (lvl *PriceLevel) Empty() bool {
	return lvl.head == nil
}

func (lvl *PriceLevel) Head() *Order {
	return lvl.head
}

// Find walks the queue for the order with the given id, nil if absent.
func (lvl *PriceLevel) Find(id string) *Order {
	for o := lvl.head; o != nil; o = o.next {
		if o.ID == id {
			return o
		}
	}
	return nil
}
