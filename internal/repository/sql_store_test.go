package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/bus-seat-booking/internal/model"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var ticketCols = []string{"id", "route_id", "order_id", "seat_no", "status", "created_at", "updated_at"}

func TestSQLStoreFinalizeFlow(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM routes WHERE id = ? FOR UPDATE")).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "capacity", "departs_at", "status"}).AddRow(3, 4, now, "active"))
	mock.ExpectQuery(q("FROM orders WHERE id = ? FOR UPDATE")).WithArgs(uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "route_id", "user_id", "quantity", "status", "payment_ref", "created_at", "updated_at"}).
			AddRow(8, 3, 1, 2, "created", nil, now, now))
	mock.ExpectQuery(q("SELECT seat_no FROM tickets WHERE route_id = ? AND status = ?")).WithArgs(uint64(3), model.TicketPaid).
		WillReturnRows(sqlmock.NewRows([]string{"seat_no"}).AddRow(1))
	mock.ExpectExec(q("INSERT INTO tickets (route_id, order_id, seat_no, status) VALUES (?, ?, ?, ?),(?, ?, ?, ?)")).
		WithArgs(uint64(3), uint64(8), uint32(2), model.TicketPaid, uint64(3), uint64(8), uint32(3), model.TicketPaid).
		WillReturnResult(sqlmock.NewResult(10, 2))
	mock.ExpectQuery(q("FROM tickets WHERE order_id = ? ORDER BY seat_no, id")).WithArgs(uint64(8)).
		WillReturnRows(sqlmock.NewRows(ticketCols).
			AddRow(10, 3, 8, 2, "paid", now, now).
			AddRow(12, 3, 8, 3, "paid", now, now))
	mock.ExpectExec(q("UPDATE orders SET status = ?, payment_ref = COALESCE(NULLIF(?, ''), payment_ref)")).
		WithArgs(model.OrderPaid, "pay_77", uint64(8), model.OrderCreated).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var created []model.Ticket
	err := s.WithinTx(ctx, func(tx Tx) error {
		route, err := tx.LockRoute(ctx, 3)
		if err != nil {
			return err
		}
		if _, err := tx.LockOrder(ctx, 8); err != nil {
			return err
		}
		occ, err := tx.OccupiedSeats(ctx, route.ID)
		if err != nil {
			return err
		}
		if len(occ) != 1 || occ[0] != 1 {
			return fmt.Errorf("occupied = %v", occ)
		}
		created, err = tx.CreateTickets(ctx, 3, 8, []uint32{2, 3})
		if err != nil {
			return err
		}
		ok, err := tx.MarkOrderPaid(ctx, 8, "pay_77")
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("cas failed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	if len(created) != 2 || created[1].ID != 12 || created[1].SeatNo != 3 {
		t.Fatalf("created = %+v", created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSQLStoreRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE orders SET status = ?")).WithArgs(model.OrderPaid, "", uint64(8), model.OrderCreated).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	errLost := errors.New("lost race")
	err := s.WithinTx(ctx, func(tx Tx) error {
		ok, err := tx.MarkOrderPaid(ctx, 8, "")
		if err != nil {
			return err
		}
		if ok {
			t.Fatal("CAS succeeded with zero rows affected")
		}
		return errLost
	})
	if !errors.Is(err, errLost) {
		t.Fatalf("err = %v, want errLost", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSQLStoreNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	mock.ExpectQuery(q("FROM orders WHERE id = ?")).WithArgs(uint64(1)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q("FROM tickets WHERE id = ?")).WithArgs(uint64(2)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q("FROM routes WHERE id = ?")).WithArgs(uint64(3)).WillReturnError(sql.ErrNoRows)

	if _, err := s.FindOrder(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindOrder err = %v", err)
	}
	if _, err := s.FindTicket(ctx, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindTicket err = %v", err)
	}
	if _, err := s.FindRoute(ctx, 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindRoute err = %v", err)
	}
}

func TestSQLStoreSeatHolderAndUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM tickets WHERE route_id = ? AND seat_no = ? AND status = ?")).
		WithArgs(uint64(3), uint32(2), model.TicketPaid).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(44))
	mock.ExpectQuery(q("SELECT id FROM tickets WHERE route_id = ? AND seat_no = ? AND status = ?")).
		WithArgs(uint64(3), uint32(4), model.TicketPaid).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(q("UPDATE tickets SET seat_no = ?, status = ?")).WithArgs(uint32(4), model.TicketPaid, uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithinTx(ctx, func(tx Tx) error {
		id, held, err := tx.SeatHolder(ctx, 3, 2)
		if err != nil || !held || id != 44 {
			return fmt.Errorf("holder(2) = %d, %v, %v", id, held, err)
		}
		if _, held, err = tx.SeatHolder(ctx, 3, 4); err != nil || held {
			return fmt.Errorf("holder(4) = %v, %v", held, err)
		}
		return tx.UpdateTicket(ctx, 9, 4, model.TicketPaid)
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrTransientConflict, true},
		{fmt.Errorf("wrapped: %w", ErrTransientConflict), true},
		{&mysql.MySQLError{Number: 1213}, true},
		{&mysql.MySQLError{Number: 1205}, true},
		{fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062}), true},
		{&mysql.MySQLError{Number: 1146}, false},
		{ErrSeatTaken, false},
	}
	for _, tt := range tests {
		if got := IsConflict(tt.err); got != tt.want {
			t.Errorf("IsConflict(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
