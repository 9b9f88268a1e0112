package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/bus-seat-booking/internal/model"
)

// Tx is the unit of work a store hands to booking operations.  Every
// method runs inside one transaction; nothing written through a Tx is
// visible to other callers until the surrounding WithinTx returns nil.
type Tx interface {
	// LockRoute loads the route and serializes the caller against every
	// other transaction that locks the same route.
	LockRoute(ctx context.Context, routeID uint64) (model.Route, error)
	// LockOrder loads the order under an exclusive lock.
	LockOrder(ctx context.Context, orderID uint64) (model.Order, error)
	// LockTicket loads the ticket under an exclusive lock.
	LockTicket(ctx context.Context, ticketID uint64) (model.Ticket, error)
	// OccupiedSeats returns the ascending seat numbers held by paid tickets.
	OccupiedSeats(ctx context.Context, routeID uint64) ([]uint32, error)
	// SeatHolder returns the paid ticket holding seatNo, if any.
	SeatHolder(ctx context.Context, routeID uint64, seatNo uint32) (uint64, bool, error)
	// CreateTickets inserts one paid ticket per seat for the order.
	CreateTickets(ctx context.Context, routeID, orderID uint64, seats []uint32) ([]model.Ticket, error)
	// MarkOrderPaid is a compare-and-swap from created to paid.  A
	// non-empty paymentRef is stored on the order.
	MarkOrderPaid(ctx context.Context, orderID uint64, paymentRef string) (bool, error)
	// UpdateTicket rewrites the seat number and status of a ticket.
	UpdateTicket(ctx context.Context, ticketID uint64, seatNo uint32, status string) error
}

// SQLStore runs booking transactions against MySQL using the route,
// order and ticket repositories.  Transactions use READ COMMITTED so that
// reads taken after the route lock observe every earlier committed write
// on that route.
type SQLStore struct {
	db      *sql.DB
	Routes  *RouteRepo
	Orders  *OrderRepo
	Tickets *TicketRepo
}

// NewSQLStore wires the repositories around one database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:      db,
		Routes:  NewRouteRepo(db),
		Orders:  NewOrderRepo(db),
		Tickets: NewTicketRepo(db),
	}
}

// DB exposes the underlying handle for health checks.
func (s *SQLStore) DB() *sql.DB { return s.db }

// WithinTx begins a transaction, runs fn and commits when fn returns nil.
// Any error from fn, or from the commit itself, rolls the transaction back
// so no partial ticket rows or status flips become visible.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{tx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// FindOrder returns the order without locking it.
func (s *SQLStore) FindOrder(ctx context.Context, id uint64) (model.Order, error) {
	return s.Orders.GetByID(ctx, id)
}

// FindTicket returns the ticket without locking it.
func (s *SQLStore) FindTicket(ctx context.Context, id uint64) (model.Ticket, error) {
	return s.Tickets.GetByID(ctx, id)
}

// FindRoute returns the route without locking it.
func (s *SQLStore) FindRoute(ctx context.Context, id uint64) (model.Route, error) {
	return s.Routes.GetByID(ctx, id)
}

// OccupiedSeats returns a point-in-time view of the route's held seats.
func (s *SQLStore) OccupiedSeats(ctx context.Context, routeID uint64) ([]uint32, error) {
	return s.Tickets.OccupiedSeats(ctx, routeID)
}

// ListOrderTickets returns every ticket created for the order.
func (s *SQLStore) ListOrderTickets(ctx context.Context, orderID uint64) ([]model.Ticket, error) {
	return s.Tickets.ListByOrder(ctx, orderID)
}

type sqlTx struct {
	tx    *sql.Tx
	store *SQLStore
}

func (t *sqlTx) LockRoute(ctx context.Context, routeID uint64) (model.Route, error) {
	return t.store.Routes.LockTx(ctx, t.tx, routeID)
}

func (t *sqlTx) LockOrder(ctx context.Context, orderID uint64) (model.Order, error) {
	return t.store.Orders.LockTx(ctx, t.tx, orderID)
}

func (t *sqlTx) LockTicket(ctx context.Context, ticketID uint64) (model.Ticket, error) {
	return t.store.Tickets.LockTx(ctx, t.tx, ticketID)
}

func (t *sqlTx) OccupiedSeats(ctx context.Context, routeID uint64) ([]uint32, error) {
	return t.store.Tickets.OccupiedSeatsTx(ctx, t.tx, routeID)
}

func (t *sqlTx) SeatHolder(ctx context.Context, routeID uint64, seatNo uint32) (uint64, bool, error) {
	return t.store.Tickets.HolderTx(ctx, t.tx, routeID, seatNo)
}

func (t *sqlTx) CreateTickets(ctx context.Context, routeID, orderID uint64, seats []uint32) ([]model.Ticket, error) {
	return t.store.Tickets.CreateBulkTx(ctx, t.tx, routeID, orderID, seats)
}

func (t *sqlTx) MarkOrderPaid(ctx context.Context, orderID uint64, paymentRef string) (bool, error) {
	return t.store.Orders.MarkPaidTx(ctx, t.tx, orderID, paymentRef)
}

func (t *sqlTx) UpdateTicket(ctx context.Context, ticketID uint64, seatNo uint32, status string) error {
	return t.store.Tickets.UpdateTx(ctx, t.tx, ticketID, seatNo, status)
}
