// Package booking implements seat allocation and the ticket lifecycle for
// bus departures.  Every mutating operation runs in one store transaction
// that locks the route row first, so all changes to a route's seat pool
// are serialized while different routes proceed in parallel.
package booking

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bus-seat-booking/internal/model"
	"github.com/iliyamo/bus-seat-booking/internal/queue"
	"github.com/iliyamo/bus-seat-booking/internal/repository"
)

// Store is the transactional storage the service runs against.  It is
// satisfied by repository.SQLStore and repository.MemoryStore.
type Store interface {
	WithinTx(ctx context.Context, fn func(repository.Tx) error) error
	FindOrder(ctx context.Context, id uint64) (model.Order, error)
	FindTicket(ctx context.Context, id uint64) (model.Ticket, error)
	FindRoute(ctx context.Context, id uint64) (model.Route, error)
	OccupiedSeats(ctx context.Context, routeID uint64) ([]uint32, error)
	ListOrderTickets(ctx context.Context, orderID uint64) ([]model.Ticket, error)
}

// EventPublisher receives committed booking events.  Publishing happens
// after commit and its failures never undo the change.
type EventPublisher interface {
	PublishOrderFinalized(ctx context.Context, evt queue.OrderFinalizedEvent) error
	PublishTicketChanged(ctx context.Context, evt queue.TicketChangedEvent) error
}

// SeatMapCache holds display copies of route seat maps.
type SeatMapCache interface {
	Get(ctx context.Context, routeID uint64) (model.SeatMap, bool)
	// Version is read before a map is computed; Set drops the map when
	// the route was invalidated since.
	Version(ctx context.Context, routeID uint64) (uint64, bool)
	Set(ctx context.Context, m model.SeatMap, version uint64)
	Invalidate(ctx context.Context, routeID uint64)
}

// Options tunes the service.  Zero values select the defaults.
type Options struct {
	// MaxRetries is how many times a transaction that lost a write
	// conflict is re-run before ErrTransientConflict is returned.
	MaxRetries int
	// RetryBackoff is the base delay between attempts; attempt n waits
	// n*RetryBackoff.
	RetryBackoff time.Duration
	Publisher    EventPublisher
	SeatMaps     SeatMapCache
	// SideEffectTimeout bounds cache invalidation and event publishing
	// after a commit.
	SideEffectTimeout time.Duration
	Logger            *logrus.Logger
	// Now is used for event timestamps.
	Now func() time.Time
}

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 20 * time.Millisecond
	defaultSideEffects  = 5 * time.Second
)

// Service is the booking core.  It is safe for concurrent use.
type Service struct {
	store      Store
	publisher  EventPublisher
	seatMaps   SeatMapCache
	log        *logrus.Logger
	maxRetries int
	backoff    time.Duration
	sideEffect time.Duration
	now        func() time.Time
}

// NewService builds a Service around store.
func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:      store,
		publisher:  opts.Publisher,
		seatMaps:   opts.SeatMaps,
		log:        opts.Logger,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		sideEffect: opts.SideEffectTimeout,
		now:        opts.Now,
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	if s.seatMaps == nil {
		s.seatMaps = noopSeatMaps{}
	}
	if s.log == nil {
		s.log = logrus.New()
	}
	if s.maxRetries <= 0 {
		s.maxRetries = defaultMaxRetries
	}
	if s.backoff <= 0 {
		s.backoff = defaultRetryBackoff
	}
	if s.sideEffect <= 0 {
		s.sideEffect = defaultSideEffects
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// afterCommit runs best-effort side effects for a committed change on
// routeID.  The caller's context may already be cancelled; the change is
// durable so the side effects still run, bounded by the side-effect timeout.
func (s *Service) afterCommit(ctx context.Context, routeID uint64, publish func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffect)
	defer cancel()
	s.seatMaps.Invalidate(ctx, routeID)
	if publish == nil {
		return
	}
	if err := publish(ctx); err != nil {
		s.log.WithError(err).WithField("route_id", routeID).Warn("publish booking event failed")
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderFinalized(context.Context, queue.OrderFinalizedEvent) error {
	return nil
}

func (noopPublisher) PublishTicketChanged(context.Context, queue.TicketChangedEvent) error {
	return nil
}

type noopSeatMaps struct{}

func (noopSeatMaps) Get(context.Context, uint64) (model.SeatMap, bool) { return model.SeatMap{}, false }
func (noopSeatMaps) Version(context.Context, uint64) (uint64, bool)     { return 0, false }
func (noopSeatMaps) Set(context.Context, model.SeatMap, uint64)         {}
func (noopSeatMaps) Invalidate(context.Context, uint64)                 {}
