package model

// SeatMap is a point-in-time view of a route's seat pool, derived from
// paid tickets.  It is for display only; allocation recomputes the pool
// inside its own transaction.
type SeatMap struct {
    RouteID   uint64   `json:"route_id"`
    Capacity  uint32   `json:"capacity"`
    Occupied  []uint32 `json:"occupied"`
    Available []uint32 `json:"available"`
}
