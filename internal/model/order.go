package model

import "time"

// Order status values.  An order moves created → paid at most once.
const (
    OrderCreated   = "created"
    OrderPaid      = "paid"
    OrderCancelled = "cancelled"
)

// Order is a customer's purchase intent for Quantity seats on one route.
// The created → paid transition is the only trigger for ticket creation.
//
// Fields:
//  ID         – primary key identifier.
//  RouteID    – departure the seats are bought on.
//  UserID     – customer who placed the order.
//  Quantity   – number of seats requested (1..route capacity).
//  Status     – created, paid or cancelled.
//  PaymentRef – external payment reference recorded by the webhook (nullable).
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Order struct {
    ID         uint64    // orders.id
    RouteID    uint64    // orders.route_id
    UserID     uint64    // orders.user_id
    Quantity   uint32    // orders.quantity
    Status     string    // orders.status
    PaymentRef *string   // orders.payment_ref (nullable)
    CreatedAt  time.Time // orders.created_at
    UpdatedAt  time.Time // orders.updated_at
}
