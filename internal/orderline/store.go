package orderline

import (
	"fmt"
	"sync"

	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
)

// Store keeps the orders being edited in memory.
type Store struct {
	mu     sync.RWMutex
	orders map[int64]*Order
	nextID int64
}

func NewStore() *Store {
	return &Store{orders: map[int64]*Order{}}
}

// Create registers a new empty order.
func (s *Store) Create(pricelistID int64) *Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	order := NewOrder(s.nextID, pricelistID)
	s.orders[order.id] = order
	return order
}

func (s *Store) Get(id int64) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %d not found", id))
	}
	return order, nil
}
