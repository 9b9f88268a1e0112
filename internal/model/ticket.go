package model

import "time"

// Ticket status values.  Tickets flip between these two states and are
// never deleted.
const (
    TicketPaid      = "paid"
    TicketCancelled = "cancelled"
)

// Ticket is one seat assignment on a route, created by finalizing an
// order.  For a given route at most one paid ticket may hold a seat
// number at any time.
//
// Fields:
//  ID        – primary key identifier.
//  RouteID   – departure the seat belongs to.
//  OrderID   – order that produced the ticket.
//  SeatNo    – seat number in 1..route capacity.
//  Status    – paid or cancelled.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Ticket struct {
    ID        uint64    // tickets.id
    RouteID   uint64    // tickets.route_id
    OrderID   uint64    // tickets.order_id
    SeatNo    uint32    // tickets.seat_no
    Status    string    // tickets.status
    CreatedAt time.Time // tickets.created_at
    UpdatedAt time.Time // tickets.updated_at
}

// Active reports whether the ticket currently holds its seat.
func (t Ticket) Active() bool { return t.Status == TicketPaid }
