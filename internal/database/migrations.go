package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// migrations creates the schema.  Every statement is idempotent so the
// list can run at each start.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role ENUM('ADMIN','USER') NOT NULL DEFAULT 'USER',
		full_name VARCHAR(120) NOT NULL DEFAULT '',
		phone_number VARCHAR(20) NOT NULL DEFAULT '',
		vehicle_number VARCHAR(20) NOT NULL DEFAULT '',
		address VARCHAR(255) NOT NULL DEFAULT '',
		age INT NOT NULL DEFAULT 0,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME(6) NOT NULL,
		revoked_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_refresh_token_hash (token_hash),
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS parking_lots (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		address VARCHAR(255) NOT NULL,
		pincode VARCHAR(12) NOT NULL,
		price_cents BIGINT NOT NULL,
		capacity INT NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_lot_address (address, pincode),
		CHECK (price_cents >= 0),
		CHECK (capacity >= 0)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS parking_spots (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		lot_id BIGINT UNSIGNED NOT NULL,
		status CHAR(1) NOT NULL DEFAULT 'A',
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY idx_spots_lot_status (lot_id, status),
		CONSTRAINT fk_spot_lot FOREIGN KEY (lot_id) REFERENCES parking_lots(id) ON DELETE CASCADE,
		CHECK (status IN ('A','O'))
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		spot_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		vehicle_number VARCHAR(20) NOT NULL,
		parked_at DATETIME(6) NOT NULL,
		left_at DATETIME(6) NULL,
		cost_cents BIGINT NULL,
		KEY idx_res_user_parked (user_id, parked_at),
		KEY idx_res_spot_open (spot_id, left_at),
		CONSTRAINT fk_res_spot FOREIGN KEY (spot_id) REFERENCES parking_spots(id) ON DELETE CASCADE,
		CONSTRAINT fk_res_user FOREIGN KEY (user_id) REFERENCES users(id),
		CHECK (cost_cents IS NULL OR cost_cents >= 0)
	) ENGINE=InnoDB`,
}

// RunMigrations applies the schema statements in order and stops at the
// first failure.
func RunMigrations(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Error("migration failed", zap.Int("index", i), zap.Error(err))
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	log.Info("migrations completed", zap.Int("count", len(migrations)))
	return nil
}
