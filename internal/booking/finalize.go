package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bus-seat-booking/internal/model"
	"github.com/iliyamo/bus-seat-booking/internal/queue"
	"github.com/iliyamo/bus-seat-booking/internal/repository"
)

// Finalization triggers, recorded on logs and events.
const (
	TriggerDirect  = "direct"
	TriggerWebhook = "webhook"
)

// errAlreadyFinalized aborts an allocation whose order left the created
// state while the transaction was waiting for its locks.
var errAlreadyFinalized = errors.New("order already finalized")

// FinalizeResult is the outcome of Finalize.
//
// Fields:
//   - OrderID, RouteID: the order and its route.
//   - SeatNumbers: seats newly allocated by this call, ascending.  Empty
//     (never nil) when the order had already left the created state.
type FinalizeResult struct {
	OrderID     uint64   `json:"order_id"`
	RouteID     uint64   `json:"route_id"`
	SeatNumbers []uint32 `json:"seat_numbers"`
}

// FinalizeOption adjusts a single Finalize call.
type FinalizeOption func(*finalizeOptions)

type finalizeOptions struct {
	paymentRef string
}

// WithPaymentRef stores the provider's payment reference on the order when
// this call performs the allocation.
func WithPaymentRef(ref string) FinalizeOption {
	return func(o *finalizeOptions) { o.paymentRef = ref }
}

// Finalize converts a created order into paid tickets.  The lowest
// order.Quantity free seats of the route are drawn, one paid ticket is
// created per seat and the order flips to paid, all in one transaction.
//
// Finalize may be called any number of times, concurrently, from any
// trigger.  Exactly one call performs the allocation; every other call
// returns an empty SeatNumbers and a nil error.  An order that is paid or
// cancelled is likewise a silent no-op.  ErrInsufficientCapacity is
// returned, with nothing written, when fewer seats remain than requested.
func (s *Service) Finalize(ctx context.Context, orderID uint64, trigger string, opts ...FinalizeOption) (FinalizeResult, error) {
	var fo finalizeOptions
	for _, opt := range opts {
		opt(&fo)
	}
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return FinalizeResult{}, err
	}
	res := FinalizeResult{OrderID: orderID, RouteID: order.RouteID, SeatNumbers: []uint32{}}
	fields := logrus.Fields{"order_id": orderID, "route_id": order.RouteID, "trigger": trigger}
	if order.Status != model.OrderCreated {
		s.log.WithFields(fields).WithField("status", order.Status).Debug("finalize: order not in created state")
		return res, nil
	}

	var tickets []model.Ticket
	err = s.withRetry(ctx, fields, func() error {
		tickets = nil
		return s.store.WithinTx(ctx, func(tx repository.Tx) error {
			route, err := tx.LockRoute(ctx, order.RouteID)
			if err != nil {
				return err
			}
			locked, err := tx.LockOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if locked.Status != model.OrderCreated {
				return errAlreadyFinalized
			}
			free, err := seatPool{tx: tx, route: route}.available(ctx)
			if err != nil {
				return err
			}
			if uint32(len(free)) < locked.Quantity {
				return repository.ErrInsufficientCapacity
			}
			seats := append([]uint32(nil), free[:locked.Quantity]...)
			created, err := tx.CreateTickets(ctx, route.ID, orderID, seats)
			if err != nil {
				return err
			}
			ok, err := tx.MarkOrderPaid(ctx, orderID, fo.paymentRef)
			if err != nil {
				return err
			}
			if !ok {
				return errAlreadyFinalized
			}
			tickets = created
			return nil
		})
	})
	switch {
	case errors.Is(err, errAlreadyFinalized):
		s.log.WithFields(fields).Debug("finalize: lost race to another trigger")
		return res, nil
	case errors.Is(err, repository.ErrInsufficientCapacity):
		s.log.WithFields(fields).WithField("quantity", order.Quantity).Info("finalize: insufficient capacity")
		return FinalizeResult{}, err
	case err != nil:
		return FinalizeResult{}, err
	}

	for _, t := range tickets {
		res.SeatNumbers = append(res.SeatNumbers, t.SeatNo)
	}
	s.log.WithFields(fields).WithField("seats", res.SeatNumbers).Info("order finalized")

	evt := queue.OrderFinalizedEvent{
		EventID:     uuid.NewString(),
		OrderID:     orderID,
		RouteID:     order.RouteID,
		UserID:      order.UserID,
		Trigger:     trigger,
		Seats:       res.SeatNumbers,
		FinalizedAt: s.now().Format(time.RFC3339),
	}
	s.afterCommit(ctx, order.RouteID, func(ctx context.Context) error {
		return s.publisher.PublishOrderFinalized(ctx, evt)
	})
	return res, nil
}

// OrderStatus is the pollable view of an order.
type OrderStatus struct {
	OrderID     uint64   `json:"order_id"`
	RouteID     uint64   `json:"route_id"`
	UserID      uint64   `json:"-"`
	Status      string   `json:"status"`
	Quantity    uint32   `json:"quantity"`
	SeatNumbers []uint32 `json:"seat_numbers"`
}

// Status reports an order's state and the seats its paid tickets hold.
// It never allocates; clients waiting for a webhook poll it instead of
// re-triggering finalization.
func (s *Service) Status(ctx context.Context, orderID uint64) (OrderStatus, error) {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return OrderStatus{}, err
	}
	st := OrderStatus{
		OrderID:     order.ID,
		RouteID:     order.RouteID,
		UserID:      order.UserID,
		Status:      order.Status,
		Quantity:    order.Quantity,
		SeatNumbers: []uint32{},
	}
	if order.Status == model.OrderCreated {
		return st, nil
	}
	tickets, err := s.store.ListOrderTickets(ctx, orderID)
	if err != nil {
		return OrderStatus{}, err
	}
	for _, t := range tickets {
		if t.Active() {
			st.SeatNumbers = append(st.SeatNumbers, t.SeatNo)
		}
	}
	return st, nil
}
