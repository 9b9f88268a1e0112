package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/bus-seat-booking/internal/repository"
)

// errorStatus maps core errors to an HTTP status and a stable code.
func errorStatus(err error) (int, string) {
    switch {
    case errors.Is(err, repository.ErrNotFound):
        return http.StatusNotFound, "not_found"
    case errors.Is(err, repository.ErrForbidden):
        return http.StatusForbidden, "forbidden"
    case errors.Is(err, repository.ErrInsufficientCapacity):
        return http.StatusConflict, "insufficient_capacity"
    case errors.Is(err, repository.ErrSeatTaken):
        return http.StatusConflict, "seat_taken"
    case errors.Is(err, repository.ErrNoSeatsAvailable):
        return http.StatusConflict, "no_seats_available"
    case errors.Is(err, repository.ErrInvalidSeat):
        return http.StatusUnprocessableEntity, "invalid_seat"
    case errors.Is(err, repository.ErrInvalidState):
        return http.StatusUnprocessableEntity, "invalid_state"
    case errors.Is(err, repository.ErrTransientConflict):
        return http.StatusServiceUnavailable, "transient_conflict"
    default:
        return http.StatusInternalServerError, "internal"
    }
}

// fail writes err as {"error": code, "message": ...}.  Internal errors
// are not echoed to the client.
func fail(c echo.Context, err error) error {
    status, code := errorStatus(err)
    msg := err.Error()
    if status == http.StatusInternalServerError {
        msg = "internal error"
    }
    if status == http.StatusServiceUnavailable {
        c.Response().Header().Set("Retry-After", "1")
    }
    return c.JSON(status, echo.Map{"error": code, "message": msg})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": msg})
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}
