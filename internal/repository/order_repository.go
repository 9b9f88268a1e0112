package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/bus-seat-booking/internal/model"
)

// OrderRepo provides access to the orders table.  Orders are created by
// the checkout flow outside this service; the booking core reads them and
// performs the single created → paid transition.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, route_id, user_id, quantity, status, payment_ref, created_at, updated_at`

func scanOrder(row *sql.Row) (model.Order, error) {
	var (
		o          model.Order
		paymentRef sql.NullString
	)
	err := row.Scan(&o.ID, &o.RouteID, &o.UserID, &o.Quantity, &o.Status, &paymentRef, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, ErrNotFound
		}
		return model.Order{}, err
	}
	if paymentRef.Valid {
		ref := paymentRef.String
		o.PaymentRef = &ref
	}
	return o, nil
}

// GetByID returns the order with the given ID or ErrNotFound.  The read
// takes no lock; callers use it for the cheap "already finalized" check
// and must re-check under LockTx before writing.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	return scanOrder(r.db.QueryRowContext(ctx, q, id))
}

// LockTx loads the order with an exclusive row lock held until the
// transaction ends.
func (r *OrderRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE id = ? FOR UPDATE`
	return scanOrder(tx.QueryRowContext(ctx, q, id))
}

// MarkPaidTx flips the order from created to paid, recording paymentRef
// when it is non-empty.  The status predicate
// makes it a compare-and-swap: it reports false when another transaction
// already moved the order out of created, in which case the caller must
// roll back its own writes.
func (r *OrderRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64, paymentRef string) (bool, error) {
	const q = `UPDATE orders SET status = ?, payment_ref = COALESCE(NULLIF(?, ''), payment_ref), updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.OrderPaid, paymentRef, id, model.OrderCreated)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
