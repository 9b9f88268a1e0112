package model

import "time"

// Route status values.  Only ACTIVE routes are expected to receive new
// orders; the catalog subsystem owns transitions between them.
const (
    RouteActive    = "active"
    RouteCancelled = "cancelled"
)

// Route represents a single scheduled bus departure.  Its seat numbering
// space is 1..Capacity.  The catalog subsystem owns route rows; the
// booking core only reads them and locks the row to serialize seat
// mutations on the departure.
//
// Fields:
//  ID        – primary key identifier.
//  Capacity  – number of seats on the departure (immutable once tickets exist).
//  DepartsAt – scheduled departure time (UTC).
//  Status    – catalog status (active, cancelled, ...).
type Route struct {
    ID        uint64    // routes.id
    Capacity  uint32    // routes.capacity
    DepartsAt time.Time // routes.departs_at
    Status    string    // routes.status
}

// ValidSeat reports whether seatNo falls inside the route's numbering space.
func (r Route) ValidSeat(seatNo uint32) bool {
    return seatNo >= 1 && seatNo <= r.Capacity
}
