package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/bus-seat-booking/internal/model"
)

func TestUserRepo(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectExec(q("INSERT INTO users (email, password_hash, role) VALUES (?,?,?)")).
		WithArgs("desk@example.com", sqlmock.AnyArg(), model.RoleStaff).
		WillReturnResult(sqlmock.NewResult(5, 1))
	id, err := r.Create(ctx, "  Desk@Example.com ", "pw", model.RoleStaff, 4)
	if err != nil || id != 5 {
		t.Fatalf("Create = %d, %v; want 5, nil", id, err)
	}

	mock.ExpectExec(q("INSERT INTO users")).WillReturnError(&mysql.MySQLError{Number: 1062})
	if _, err := r.Create(ctx, "desk@example.com", "pw", model.RoleStaff, 4); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("duplicate err = %v, want ErrEmailExists", err)
	}

	cols := []string{"id", "email", "password_hash", "role", "created_at"}
	mock.ExpectQuery(q("FROM users WHERE email=?")).WithArgs("desk@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(5, "desk@example.com", "h", model.RoleStaff, time.Now()))
	u, err := r.GetByEmail(ctx, "DESK@example.com")
	if err != nil || u.ID != 5 || u.Role != model.RoleStaff {
		t.Fatalf("GetByEmail = %+v, %v", u, err)
	}

	mock.ExpectQuery(q("FROM users WHERE id=?")).WithArgs(uint64(9)).WillReturnError(sql.ErrNoRows)
	if _, err := r.GetByID(ctx, 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryUsers(t *testing.T) {
	m := NewMemoryUsers()
	ctx := context.Background()
	id, err := m.Create(ctx, "A@b.com", "pw", model.RoleCustomer, 4)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Create(ctx, "a@b.com", "pw", model.RoleCustomer, 4); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("duplicate err = %v", err)
	}
	u, err := m.GetByEmail(ctx, "a@B.com")
	if err != nil || u.ID != id {
		t.Fatalf("GetByEmail = %+v, %v", u, err)
	}
	if _, err := m.GetByID(ctx, id+1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID err = %v", err)
	}
}
