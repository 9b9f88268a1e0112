package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/bus-seat-booking/internal/model"
)

// TicketRepo provides access to the tickets table.  Tickets are never
// deleted: cancellation flips status to cancelled and releases the seat.
// The schema backs the one-paid-ticket-per-seat rule with a unique index
// on (route_id, active_seat), where active_seat is a generated column that
// is NULL for cancelled tickets.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const ticketColumns = `id, route_id, order_id, seat_no, status, created_at, updated_at`

func scanTickets(rows *sql.Rows) ([]model.Ticket, error) {
	defer rows.Close()
	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.RouteID, &t.OrderID, &t.SeatNo, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func occupiedSeats(ctx context.Context, q querier, routeID uint64) ([]uint32, error) {
	const sel = `SELECT seat_no FROM tickets WHERE route_id = ? AND status = ? ORDER BY seat_no`
	rows, err := q.QueryContext(ctx, sel, routeID, model.TicketPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]uint32, 0)
	for rows.Next() {
		var s uint32
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

func listByOrder(ctx context.Context, q querier, orderID uint64) ([]model.Ticket, error) {
	const sel = `SELECT ` + ticketColumns + ` FROM tickets WHERE order_id = ? ORDER BY seat_no, id`
	rows, err := q.QueryContext(ctx, sel, orderID)
	if err != nil {
		return nil, err
	}
	return scanTickets(rows)
}

// GetByID returns the ticket with the given ID or ErrNotFound.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	var t model.Ticket
	err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.RouteID, &t.OrderID, &t.SeatNo, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Ticket{}, ErrNotFound
		}
		return model.Ticket{}, err
	}
	return t, nil
}

// LockTx loads the ticket with an exclusive row lock held until the
// transaction ends.
func (r *TicketRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ? FOR UPDATE`
	var t model.Ticket
	err := tx.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.RouteID, &t.OrderID, &t.SeatNo, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Ticket{}, ErrNotFound
		}
		return model.Ticket{}, err
	}
	return t, nil
}

// OccupiedSeats returns, in ascending order, the seat numbers held by paid
// tickets on the route.  Outside a transaction the result may be stale by
// the time it is used; allocation must call OccupiedSeatsTx instead.
func (r *TicketRepo) OccupiedSeats(ctx context.Context, routeID uint64) ([]uint32, error) {
	return occupiedSeats(ctx, r.db, routeID)
}

// OccupiedSeatsTx is OccupiedSeats evaluated inside the caller's
// transaction, after the route lock has been taken.
func (r *TicketRepo) OccupiedSeatsTx(ctx context.Context, tx *sql.Tx, routeID uint64) ([]uint32, error) {
	return occupiedSeats(ctx, tx, routeID)
}

// HolderTx returns the ID of the paid ticket holding seatNo on the route.
// The boolean is false when the seat is free.
func (r *TicketRepo) HolderTx(ctx context.Context, tx *sql.Tx, routeID uint64, seatNo uint32) (uint64, bool, error) {
	const q = `SELECT id FROM tickets WHERE route_id = ? AND seat_no = ? AND status = ? LIMIT 1`
	var id uint64
	err := tx.QueryRowContext(ctx, q, routeID, seatNo, model.TicketPaid).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// ListByOrder returns every ticket created for the order, paid or
// cancelled, ordered by seat number.
func (r *TicketRepo) ListByOrder(ctx context.Context, orderID uint64) ([]model.Ticket, error) {
	return listByOrder(ctx, r.db, orderID)
}

// CreateBulkTx inserts one paid ticket per seat for the order in a single
// statement and returns the stored rows with their generated IDs.  A
// duplicate-key error from the active-seat index means a concurrent writer
// slipped past the route lock and is reported by IsConflict.
func (r *TicketRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, routeID, orderID uint64, seats []uint32) ([]model.Ticket, error) {
	if len(seats) == 0 {
		return []model.Ticket{}, nil
	}
	query := `INSERT INTO tickets (route_id, order_id, seat_no, status) VALUES `
	args := make([]interface{}, 0, len(seats)*4)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, routeID, orderID, s, model.TicketPaid)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	// Auto-increment values are not guaranteed consecutive, so read the
	// rows back instead of deriving IDs from LastInsertId.
	return listByOrder(ctx, tx, orderID)
}

// UpdateTx sets the seat number and status of an existing ticket.  The
// caller holds the row lock from LockTx, so the row is known to exist.
func (r *TicketRepo) UpdateTx(ctx context.Context, tx *sql.Tx, id uint64, seatNo uint32, status string) error {
	const q = `UPDATE tickets SET seat_no = ?, status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, seatNo, status, id)
	return err
}
