package booking

import (
	"context"

	"github.com/iliyamo/bus-seat-booking/internal/model"
	"github.com/iliyamo/bus-seat-booking/internal/repository"
)

// AvailableSeats returns, in ascending order, the seat numbers in
// 1..capacity that do not appear in occupied.  occupied need not be
// sorted and may contain numbers outside the range.
func AvailableSeats(capacity uint32, occupied []uint32) []uint32 {
	taken := make(map[uint32]struct{}, len(occupied))
	for _, s := range occupied {
		taken[s] = struct{}{}
	}
	free := make([]uint32, 0, int(capacity))
	for s := uint32(1); s <= capacity; s++ {
		if _, ok := taken[s]; !ok {
			free = append(free, s)
		}
	}
	return free
}

// IsSeatAvailable reports whether seatNo is absent from occupied.
func IsSeatAvailable(occupied []uint32, seatNo uint32) bool {
	for _, s := range occupied {
		if s == seatNo {
			return false
		}
	}
	return true
}

// seatPool evaluates the pool of one route inside a transaction that
// already holds the route lock.
type seatPool struct {
	tx    repository.Tx
	route model.Route
}

func (p seatPool) available(ctx context.Context) ([]uint32, error) {
	occupied, err := p.tx.OccupiedSeats(ctx, p.route.ID)
	if err != nil {
		return nil, err
	}
	return AvailableSeats(p.route.Capacity, occupied), nil
}

// lowest returns the lowest free seat, or false when the pool is empty.
func (p seatPool) lowest(ctx context.Context) (uint32, bool, error) {
	free, err := p.available(ctx)
	if err != nil {
		return 0, false, err
	}
	if len(free) == 0 {
		return 0, false, nil
	}
	return free[0], true, nil
}

// AvailableSeats returns the route's free seats in ascending order.  The
// pool is computed under the route lock so the answer reflects every
// committed allocation and lifecycle change.
func (s *Service) AvailableSeats(ctx context.Context, routeID uint64) ([]uint32, error) {
	var free []uint32
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		route, err := tx.LockRoute(ctx, routeID)
		if err != nil {
			return err
		}
		free, err = seatPool{tx: tx, route: route}.available(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return free, nil
}

// IsSeatAvailable reports whether no paid ticket on the route holds
// seatNo.  Seats outside 1..capacity yield ErrInvalidSeat.
func (s *Service) IsSeatAvailable(ctx context.Context, routeID uint64, seatNo uint32) (bool, error) {
	var free bool
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		route, err := tx.LockRoute(ctx, routeID)
		if err != nil {
			return err
		}
		if !route.ValidSeat(seatNo) {
			return repository.ErrInvalidSeat
		}
		_, held, err := tx.SeatHolder(ctx, routeID, seatNo)
		free = !held
		return err
	})
	return free, err
}

// SeatMap returns a display view of the route's seat pool.  Views are
// served from the cache when present; the cache is invalidated after
// every committed mutation on the route and never feeds allocation.
func (s *Service) SeatMap(ctx context.Context, routeID uint64) (model.SeatMap, error) {
	if m, ok := s.seatMaps.Get(ctx, routeID); ok {
		return m, nil
	}
	version, cacheable := s.seatMaps.Version(ctx, routeID)
	route, err := s.store.FindRoute(ctx, routeID)
	if err != nil {
		return model.SeatMap{}, err
	}
	occupied, err := s.store.OccupiedSeats(ctx, routeID)
	if err != nil {
		return model.SeatMap{}, err
	}
	m := model.SeatMap{
		RouteID:   routeID,
		Capacity:  route.Capacity,
		Occupied:  occupied,
		Available: AvailableSeats(route.Capacity, occupied),
	}
	if cacheable {
		s.seatMaps.Set(ctx, m, version)
	}
	return m, nil
}
