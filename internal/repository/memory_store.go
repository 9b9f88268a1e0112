package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/bus-seat-booking/internal/model"
)

// MemoryStore is an in-process transactional store with the same
// semantics as SQLStore.  A transaction takes the store-wide lock, works
// on a private copy of the state and swaps it in only when the callback
// succeeds, so an aborted transaction leaves nothing behind.  It backs the
// service when APP_STORE=memory and is the store used by the unit tests.
type MemoryStore struct {
	mu        sync.RWMutex
	state     memoryState
	nowFn     func() time.Time
	conflicts int
}

type memoryState struct {
	routes       map[uint64]model.Route
	orders       map[uint64]model.Order
	tickets      map[uint64]model.Ticket
	nextOrderID  uint64
	nextTicketID uint64
}

func (s memoryState) clone() memoryState {
	cp := memoryState{
		routes:       make(map[uint64]model.Route, len(s.routes)),
		orders:       make(map[uint64]model.Order, len(s.orders)),
		tickets:      make(map[uint64]model.Ticket, len(s.tickets)),
		nextOrderID:  s.nextOrderID,
		nextTicketID: s.nextTicketID,
	}
	for k, v := range s.routes {
		cp.routes[k] = v
	}
	for k, v := range s.orders {
		cp.orders[k] = v
	}
	for k, v := range s.tickets {
		cp.tickets[k] = v
	}
	return cp
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memoryState{
			routes:       map[uint64]model.Route{},
			orders:       map[uint64]model.Order{},
			tickets:      map[uint64]model.Ticket{},
			nextOrderID:  1,
			nextTicketID: 1,
		},
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// InjectConflicts makes the next n transactions fail with
// ErrTransientConflict after their callback has run.  Their writes are
// discarded, as a deadlocked MySQL transaction's would be.
func (s *MemoryStore) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

// PutRoute inserts or replaces a route.
func (s *MemoryStore) PutRoute(r model.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.routes[r.ID] = r
}

// PutOrder inserts an order, assigning an ID when o.ID is zero, and
// returns the stored row.
func (s *MemoryStore) PutOrder(o model.Order) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.state.nextOrderID
	}
	if o.ID >= s.state.nextOrderID {
		s.state.nextOrderID = o.ID + 1
	}
	now := s.nowFn()
	o.CreatedAt, o.UpdatedAt = now, now
	s.state.orders[o.ID] = o
	return o
}

// PutTicket inserts a ticket, assigning an ID when t.ID is zero, and
// returns the stored row.  It does not check seat uniqueness.
func (s *MemoryStore) PutTicket(t model.Ticket) model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.state.nextTicketID
	}
	if t.ID >= s.state.nextTicketID {
		s.state.nextTicketID = t.ID + 1
	}
	now := s.nowFn()
	t.CreatedAt, t.UpdatedAt = now, now
	s.state.tickets[t.ID] = t
	return t
}

// RouteTickets returns every ticket on the route ordered by ID.
func (s *MemoryStore) RouteTickets(routeID uint64) []model.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Ticket, 0)
	for _, t := range s.state.tickets {
		if t.RouteID == routeID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WithinTx runs fn against a private copy of the state and publishes the
// copy only when fn returns nil.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memoryTx{state: s.state.clone(), now: s.nowFn()}
	if err := fn(tx); err != nil {
		return err
	}
	if s.conflicts > 0 {
		s.conflicts--
		return ErrTransientConflict
	}
	s.state = tx.state
	return nil
}

// FindOrder returns a committed order.
func (s *MemoryStore) FindOrder(_ context.Context, id uint64) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return o, nil
}

// FindTicket returns a committed ticket.
func (s *MemoryStore) FindTicket(_ context.Context, id uint64) (model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.tickets[id]
	if !ok {
		return model.Ticket{}, ErrNotFound
	}
	return t, nil
}

// FindRoute returns a committed route.
func (s *MemoryStore) FindRoute(_ context.Context, id uint64) (model.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.routes[id]
	if !ok {
		return model.Route{}, ErrNotFound
	}
	return r, nil
}

// OccupiedSeats returns the committed held seats of the route.
func (s *MemoryStore) OccupiedSeats(_ context.Context, routeID uint64) ([]uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.occupied(routeID), nil
}

// ListOrderTickets returns every committed ticket of the order.
func (s *MemoryStore) ListOrderTickets(_ context.Context, orderID uint64) ([]model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.orderTickets(orderID), nil
}

func (s memoryState) occupied(routeID uint64) []uint32 {
	seats := make([]uint32, 0)
	for _, t := range s.tickets {
		if t.RouteID == routeID && t.Status == model.TicketPaid {
			seats = append(seats, t.SeatNo)
		}
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i] < seats[j] })
	return seats
}

func (s memoryState) orderTickets(orderID uint64) []model.Ticket {
	out := make([]model.Ticket, 0)
	for _, t := range s.tickets {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeatNo != out[j].SeatNo {
			return out[i].SeatNo < out[j].SeatNo
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// holder mirrors the (route_id, active_seat) unique index.
func (s memoryState) holder(routeID uint64, seatNo uint32) (uint64, bool) {
	for _, t := range s.tickets {
		if t.RouteID == routeID && t.SeatNo == seatNo && t.Status == model.TicketPaid {
			return t.ID, true
		}
	}
	return 0, false
}

type memoryTx struct {
	state memoryState
	now   time.Time
}

func (t *memoryTx) LockRoute(_ context.Context, routeID uint64) (model.Route, error) {
	r, ok := t.state.routes[routeID]
	if !ok {
		return model.Route{}, ErrNotFound
	}
	return r, nil
}

func (t *memoryTx) LockOrder(_ context.Context, orderID uint64) (model.Order, error) {
	o, ok := t.state.orders[orderID]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return o, nil
}

func (t *memoryTx) LockTicket(_ context.Context, ticketID uint64) (model.Ticket, error) {
	tk, ok := t.state.tickets[ticketID]
	if !ok {
		return model.Ticket{}, ErrNotFound
	}
	return tk, nil
}

func (t *memoryTx) OccupiedSeats(_ context.Context, routeID uint64) ([]uint32, error) {
	return t.state.occupied(routeID), nil
}

func (t *memoryTx) SeatHolder(_ context.Context, routeID uint64, seatNo uint32) (uint64, bool, error) {
	id, ok := t.state.holder(routeID, seatNo)
	return id, ok, nil
}

func (t *memoryTx) CreateTickets(_ context.Context, routeID, orderID uint64, seats []uint32) ([]model.Ticket, error) {
	out := make([]model.Ticket, 0, len(seats))
	for _, seat := range seats {
		if _, taken := t.state.holder(routeID, seat); taken {
			return nil, ErrTransientConflict
		}
		tk := model.Ticket{
			ID:        t.state.nextTicketID,
			RouteID:   routeID,
			OrderID:   orderID,
			SeatNo:    seat,
			Status:    model.TicketPaid,
			CreatedAt: t.now,
			UpdatedAt: t.now,
		}
		t.state.nextTicketID++
		t.state.tickets[tk.ID] = tk
		out = append(out, tk)
	}
	return out, nil
}

func (t *memoryTx) MarkOrderPaid(_ context.Context, orderID uint64, paymentRef string) (bool, error) {
	o, ok := t.state.orders[orderID]
	if !ok || o.Status != model.OrderCreated {
		return false, nil
	}
	o.Status = model.OrderPaid
	if paymentRef != "" {
		ref := paymentRef
		o.PaymentRef = &ref
	}
	o.UpdatedAt = t.now
	t.state.orders[orderID] = o
	return true, nil
}

func (t *memoryTx) UpdateTicket(_ context.Context, ticketID uint64, seatNo uint32, status string) error {
	tk, ok := t.state.tickets[ticketID]
	if !ok {
		return ErrNotFound
	}
	if status == model.TicketPaid {
		if holder, taken := t.state.holder(tk.RouteID, seatNo); taken && holder != ticketID {
			return ErrTransientConflict
		}
	}
	tk.SeatNo = seatNo
	tk.Status = status
	tk.UpdatedAt = t.now
	t.state.tickets[ticketID] = tk
	return nil
}
