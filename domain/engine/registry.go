package engine

import "odin/domain/orderbook"

// Registry owns the order records of one pair. Books only hold links into
// these records, never copies.
type Registry struct {
	orders map[string]*orderbook.Order
}

func NewRegistry() *Registry {
	return &Registry{orders: make(map[string]*orderbook.Order)}
}

func (r *Registry) Get(id string) *orderbook.Order {
	return r.orders[id]
}

func (r *Registry) Has(id string) bool {
	_, ok := r.orders[id]
	return ok
}

func (r *Registry) Add(o *orderbook.Order) {
	r.orders[o.ID] = o
}

func (r *Registry) Remove(id string) {
	delete(r.orders, id)
}

func (r *Registry) Len() int {
	return len(r.orders)
}
