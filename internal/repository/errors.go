// Package repository defines the error values shared by the booking core,
// its stores and the HTTP layer, together with the MySQL repositories and
// the transactional stores built on top of them.  Higher layers match
// these sentinels with errors.Is to decide user-visible responses.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when an order, ticket or route does not exist.
// Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrInsufficientCapacity is returned by finalization when fewer seats
// remain on the route than the order requests.  No tickets are created.
var ErrInsufficientCapacity = errors.New("insufficient capacity")

// ErrSeatTaken is returned by a seat change when another paid ticket on
// the same route already holds the requested seat.
var ErrSeatTaken = errors.New("seat taken")

// ErrInvalidSeat is returned when a seat number lies outside 1..capacity.
var ErrInvalidSeat = errors.New("invalid seat")

// ErrNoSeatsAvailable is returned by reactivation when the original seat
// is taken and the route has no free seat to fall back to.
var ErrNoSeatsAvailable = errors.New("no seats available")

// ErrInvalidState is returned when a lifecycle operation targets a ticket
// in the wrong status, e.g. changing the seat of a cancelled ticket.
var ErrInvalidState = errors.New("invalid state")

// ErrTransientConflict signals write contention that survived the
// service's bounded retries.  Callers may retry the whole request.
var ErrTransientConflict = errors.New("transient conflict")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers should translate this into 403.
var ErrForbidden = errors.New("forbidden")

// MySQL server error numbers treated as retryable contention.
const (
    mysqlDuplicateEntry   = 1062
    mysqlLockWaitTimeout  = 1205
    mysqlDeadlockDetected = 1213
)

// IsConflict reports whether err is a concurrent-write conflict that is
// safe to retry: an explicit ErrTransientConflict, an InnoDB deadlock or
// lock wait timeout, or a duplicate entry on the active-seat unique index.
func IsConflict(err error) bool {
    if err == nil {
        return false
    }
    if errors.Is(err, ErrTransientConflict) {
        return true
    }
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        switch me.Number {
        case mysqlDuplicateEntry, mysqlLockWaitTimeout, mysqlDeadlockDetected:
            return true
        }
    }
    return false
}
