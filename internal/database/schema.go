package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the booking tables.  tickets.active_seat is NULL for
// cancelled tickets, so the unique key admits one paid ticket per seat
// and any number of cancelled ones.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role ENUM('CUSTOMER','STAFF') NOT NULL DEFAULT 'CUSTOMER',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS routes (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		capacity INT UNSIGNED NOT NULL,
		departs_at DATETIME NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'active',
		CHECK (capacity > 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		route_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		quantity INT UNSIGNED NOT NULL,
		status ENUM('created','paid','cancelled') NOT NULL DEFAULT 'created',
		payment_ref VARCHAR(128) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_orders_route (route_id),
		KEY idx_orders_user (user_id),
		CONSTRAINT fk_orders_route FOREIGN KEY (route_id) REFERENCES routes(id),
		CHECK (quantity > 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		route_id BIGINT UNSIGNED NOT NULL,
		order_id BIGINT UNSIGNED NOT NULL,
		seat_no INT UNSIGNED NOT NULL,
		status ENUM('paid','cancelled') NOT NULL DEFAULT 'paid',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		active_seat INT UNSIGNED AS (IF(status = 'paid', seat_no, NULL)) STORED,
		UNIQUE KEY uq_tickets_route_active_seat (route_id, active_seat),
		KEY idx_tickets_order (order_id),
		KEY idx_tickets_route_status (route_id, status),
		CONSTRAINT fk_tickets_route FOREIGN KEY (route_id) REFERENCES routes(id),
		CONSTRAINT fk_tickets_order FOREIGN KEY (order_id) REFERENCES orders(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.  Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
