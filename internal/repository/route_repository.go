package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/bus-seat-booking/internal/model"
)

// RouteRepo reads departures owned by the catalog subsystem.  The booking
// core never writes routes; it only locks the row so that every seat
// mutation on one departure is serialized.
type RouteRepo struct {
	db *sql.DB
}

// NewRouteRepo returns a RouteRepo bound to the given database.
func NewRouteRepo(db *sql.DB) *RouteRepo { return &RouteRepo{db: db} }

const routeColumns = `id, capacity, departs_at, status`

func scanRoute(row *sql.Row) (model.Route, error) {
	var r model.Route
	if err := row.Scan(&r.ID, &r.Capacity, &r.DepartsAt, &r.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Route{}, ErrNotFound
		}
		return model.Route{}, err
	}
	return r, nil
}

// GetByID returns the route with the given ID or ErrNotFound.
func (r *RouteRepo) GetByID(ctx context.Context, id uint64) (model.Route, error) {
	const q = `SELECT ` + routeColumns + ` FROM routes WHERE id = ?`
	return scanRoute(r.db.QueryRowContext(ctx, q, id))
}

// LockTx loads the route and takes an exclusive row lock on it for the
// rest of the transaction.  All mutating booking operations take this
// lock first, which keeps the lock order route → order/ticket.
func (r *RouteRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Route, error) {
	const q = `SELECT ` + routeColumns + ` FROM routes WHERE id = ? FOR UPDATE`
	return scanRoute(tx.QueryRowContext(ctx, q, id))
}
