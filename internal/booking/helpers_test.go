package booking

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bus-seat-booking/internal/model"
	"github.com/iliyamo/bus-seat-booking/internal/queue"
	"github.com/iliyamo/bus-seat-booking/internal/repository"
)

type recordingPublisher struct {
	mu        sync.Mutex
	finalized []queue.OrderFinalizedEvent
	changed   []queue.TicketChangedEvent
}

func (p *recordingPublisher) PublishOrderFinalized(_ context.Context, evt queue.OrderFinalizedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finalized = append(p.finalized, evt)
	return nil
}

func (p *recordingPublisher) PublishTicketChanged(_ context.Context, evt queue.TicketChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, evt)
	return nil
}

type recordingSeatMaps struct {
	mu          sync.Mutex
	maps        map[uint64]model.SeatMap
	versions    map[uint64]uint64
	invalidated []uint64
	// onVersion runs after Version returns, before the map is computed.
	onVersion func()
}

func (c *recordingSeatMaps) Get(_ context.Context, routeID uint64) (model.SeatMap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.maps[routeID]
	return m, ok
}

func (c *recordingSeatMaps) Version(_ context.Context, routeID uint64) (uint64, bool) {
	c.mu.Lock()
	v := c.versions[routeID]
	hook := c.onVersion
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return v, true
}

func (c *recordingSeatMaps) Set(_ context.Context, m model.SeatMap, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[m.RouteID] != version {
		return
	}
	if c.maps == nil {
		c.maps = map[uint64]model.SeatMap{}
	}
	c.maps[m.RouteID] = m
}

func (c *recordingSeatMaps) Invalidate(_ context.Context, routeID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions == nil {
		c.versions = map[uint64]uint64{}
	}
	c.versions[routeID]++
	delete(c.maps, routeID)
	c.invalidated = append(c.invalidated, routeID)
}

type fixture struct {
	store     *repository.MemoryStore
	svc       *Service
	publisher *recordingPublisher
	seatMaps  *recordingSeatMaps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	f := &fixture{
		store:     repository.NewMemoryStore(),
		publisher: &recordingPublisher{},
		seatMaps:  &recordingSeatMaps{},
	}
	f.svc = NewService(f.store, Options{
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		Publisher:    f.publisher,
		SeatMaps:     f.seatMaps,
		Logger:       logger,
	})
	return f
}

func (f *fixture) route(id uint64, capacity uint32) {
	f.store.PutRoute(model.Route{ID: id, Capacity: capacity, DepartsAt: time.Now().Add(24 * time.Hour), Status: model.RouteActive})
}

func (f *fixture) order(routeID uint64, qty uint32) model.Order {
	return f.store.PutOrder(model.Order{RouteID: routeID, UserID: 7, Quantity: qty, Status: model.OrderCreated})
}

func (f *fixture) paidTicket(routeID uint64, seat uint32) model.Ticket {
	return f.store.PutTicket(model.Ticket{RouteID: routeID, OrderID: 999, SeatNo: seat, Status: model.TicketPaid})
}

// assertUnique fails when two paid tickets on the route share a seat.
func (f *fixture) assertUnique(t *testing.T, routeID uint64) {
	t.Helper()
	seen := map[uint32]uint64{}
	for _, tk := range f.store.RouteTickets(routeID) {
		if tk.Status != model.TicketPaid {
			continue
		}
		if other, dup := seen[tk.SeatNo]; dup {
			t.Fatalf("seat %d held by tickets %d and %d", tk.SeatNo, other, tk.ID)
		}
		seen[tk.SeatNo] = tk.ID
	}
}

func equalSeats(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
