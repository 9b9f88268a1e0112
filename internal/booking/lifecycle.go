package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bus-seat-booking/internal/model"
	"github.com/iliyamo/bus-seat-booking/internal/queue"
	"github.com/iliyamo/bus-seat-booking/internal/repository"
)

// ReactivateResult reports where a reactivated ticket landed.
type ReactivateResult struct {
	TicketID uint64 `json:"ticket_id"`
	SeatNo   uint32 `json:"seat_no"`
	// Moved is true when the original seat had been claimed and the
	// ticket was reassigned to the lowest free seat.
	Moved bool `json:"moved"`
}

// ticketChange describes a committed lifecycle mutation.
type ticketChange struct {
	ticket   model.Ticket
	fromSeat uint32
	changed  bool
}

// mutateTicket locks the ticket's route and then the ticket, and runs fn
// on the locked row.  fn returns the change it made, if any.
func (s *Service) mutateTicket(ctx context.Context, ticketID uint64, action string,
	fn func(tx repository.Tx, route model.Route, t model.Ticket) (ticketChange, error)) (ticketChange, error) {

	peek, err := s.store.FindTicket(ctx, ticketID)
	if err != nil {
		return ticketChange{}, err
	}
	fields := logrus.Fields{"ticket_id": ticketID, "route_id": peek.RouteID, "action": action}

	var change ticketChange
	err = s.withRetry(ctx, fields, func() error {
		change = ticketChange{}
		return s.store.WithinTx(ctx, func(tx repository.Tx) error {
			route, err := tx.LockRoute(ctx, peek.RouteID)
			if err != nil {
				return err
			}
			t, err := tx.LockTicket(ctx, ticketID)
			if err != nil {
				return err
			}
			change, err = fn(tx, route, t)
			return err
		})
	})
	if err != nil {
		return ticketChange{}, err
	}
	if !change.changed {
		s.log.WithFields(fields).Debug("ticket unchanged")
		return change, nil
	}

	s.log.WithFields(fields).WithFields(logrus.Fields{
		"from_seat": change.fromSeat,
		"seat":      change.ticket.SeatNo,
		"status":    change.ticket.Status,
	}).Info("ticket updated")

	evt := queue.TicketChangedEvent{
		EventID:   uuid.NewString(),
		TicketID:  change.ticket.ID,
		RouteID:   change.ticket.RouteID,
		OrderID:   change.ticket.OrderID,
		Action:    action,
		FromSeat:  change.fromSeat,
		ToSeat:    change.ticket.SeatNo,
		Status:    change.ticket.Status,
		ChangedAt: s.now().Format(time.RFC3339),
	}
	s.afterCommit(ctx, change.ticket.RouteID, func(ctx context.Context) error {
		return s.publisher.PublishTicketChanged(ctx, evt)
	})
	return change, nil
}

// Cancel releases a paid ticket's seat back into the route's pool.
// Cancelling a cancelled ticket is a no-op.
func (s *Service) Cancel(ctx context.Context, ticketID uint64) error {
	_, err := s.mutateTicket(ctx, ticketID, queue.ActionCancel,
		func(tx repository.Tx, _ model.Route, t model.Ticket) (ticketChange, error) {
			if t.Status == model.TicketCancelled {
				return ticketChange{ticket: t}, nil
			}
			if err := tx.UpdateTicket(ctx, t.ID, t.SeatNo, model.TicketCancelled); err != nil {
				return ticketChange{}, err
			}
			from := t.SeatNo
			t.Status = model.TicketCancelled
			return ticketChange{ticket: t, fromSeat: from, changed: true}, nil
		})
	return err
}

// Reactivate restores a cancelled ticket to paid.  The ticket keeps its
// original seat when that seat is still free; otherwise it takes the
// lowest free seat on the route.  ErrNoSeatsAvailable is returned when
// the route is full.  Reactivating a paid ticket returns its current seat.
func (s *Service) Reactivate(ctx context.Context, ticketID uint64) (ReactivateResult, error) {
	change, err := s.mutateTicket(ctx, ticketID, queue.ActionReactivate,
		func(tx repository.Tx, route model.Route, t model.Ticket) (ticketChange, error) {
			if t.Status == model.TicketPaid {
				return ticketChange{ticket: t}, nil
			}
			seat := t.SeatNo
			_, taken, err := tx.SeatHolder(ctx, route.ID, seat)
			if err != nil {
				return ticketChange{}, err
			}
			if taken || !route.ValidSeat(seat) {
				lowest, ok, err := seatPool{tx: tx, route: route}.lowest(ctx)
				if err != nil {
					return ticketChange{}, err
				}
				if !ok {
					return ticketChange{}, repository.ErrNoSeatsAvailable
				}
				seat = lowest
			}
			if err := tx.UpdateTicket(ctx, t.ID, seat, model.TicketPaid); err != nil {
				return ticketChange{}, err
			}
			from := t.SeatNo
			t.SeatNo, t.Status = seat, model.TicketPaid
			return ticketChange{ticket: t, fromSeat: from, changed: true}, nil
		})
	if err != nil {
		return ReactivateResult{}, err
	}
	return ReactivateResult{
		TicketID: change.ticket.ID,
		SeatNo:   change.ticket.SeatNo,
		Moved:    change.changed && change.fromSeat != change.ticket.SeatNo,
	}, nil
}

// ChangeSeat moves a paid ticket to newSeatNo on the same route.  The
// ticket must be paid (ErrInvalidState), the seat must be within the
// route's capacity (ErrInvalidSeat) and no other paid ticket may hold it
// (ErrSeatTaken).  Moving a ticket to the seat it already holds is a
// no-op.
func (s *Service) ChangeSeat(ctx context.Context, ticketID uint64, newSeatNo uint32) error {
	_, err := s.mutateTicket(ctx, ticketID, queue.ActionChangeSeat,
		func(tx repository.Tx, route model.Route, t model.Ticket) (ticketChange, error) {
			if t.Status != model.TicketPaid {
				return ticketChange{}, repository.ErrInvalidState
			}
			if !route.ValidSeat(newSeatNo) {
				return ticketChange{}, repository.ErrInvalidSeat
			}
			if t.SeatNo == newSeatNo {
				return ticketChange{ticket: t}, nil
			}
			holder, taken, err := tx.SeatHolder(ctx, route.ID, newSeatNo)
			if err != nil {
				return ticketChange{}, err
			}
			if taken && holder != t.ID {
				return ticketChange{}, repository.ErrSeatTaken
			}
			if err := tx.UpdateTicket(ctx, t.ID, newSeatNo, model.TicketPaid); err != nil {
				return ticketChange{}, err
			}
			from := t.SeatNo
			t.SeatNo = newSeatNo
			return ticketChange{ticket: t, fromSeat: from, changed: true}, nil
		})
	return err
}
