package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the application tables if they do not exist yet.
// Statements are ordered so foreign key targets exist first.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(191) NOT NULL,
		email VARCHAR(191) NOT NULL UNIQUE,
		password_hash VARCHAR(191) NOT NULL,
		role ENUM('ADMIN','LIBRARIAN','READER') NOT NULL DEFAULT 'READER',
		phone VARCHAR(32) NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS titles (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		author VARCHAR(191) NOT NULL,
		genre VARCHAR(100) NOT NULL DEFAULT '',
		language VARCHAR(50) NOT NULL DEFAULT '',
		published_year INT NOT NULL DEFAULT 0,
		description TEXT NULL,
		location VARCHAR(100) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS copies (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title_id BIGINT UNSIGNED NOT NULL,
		status TINYINT UNSIGNED NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_copies_title_status (title_id, status),
		CONSTRAINT fk_copies_title FOREIGN KEY (title_id) REFERENCES titles(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS borrowings (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reader_id BIGINT UNSIGNED NOT NULL,
		copy_id BIGINT UNSIGNED NOT NULL,
		title_id BIGINT UNSIGNED NOT NULL,
		borrow_date DATETIME NOT NULL,
		due_date DATETIME NOT NULL,
		return_date DATETIME NULL,
		INDEX idx_borrowings_reader (reader_id, return_date),
		INDEX idx_borrowings_copy (copy_id, return_date),
		INDEX idx_borrowings_title (title_id),
		CONSTRAINT fk_borrowings_reader FOREIGN KEY (reader_id) REFERENCES users(id),
		CONSTRAINT fk_borrowings_copy FOREIGN KEY (copy_id) REFERENCES copies(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reader_id BIGINT UNSIGNED NOT NULL,
		title_id BIGINT UNSIGNED NOT NULL,
		copy_id BIGINT UNSIGNED NULL,
		status ENUM('PENDING','CLAIMED') NOT NULL DEFAULT 'PENDING',
		expires_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_reservations_title_status (title_id, status, created_at),
		INDEX idx_reservations_expiry (status, expires_at),
		CONSTRAINT fk_reservations_reader FOREIGN KEY (reader_id) REFERENCES users(id),
		CONSTRAINT fk_reservations_title FOREIGN KEY (title_id) REFERENCES titles(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS fines (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		borrowing_id BIGINT UNSIGNED NOT NULL UNIQUE,
		amount BIGINT NOT NULL,
		fine_date DATETIME NOT NULL,
		CONSTRAINT fk_fines_borrowing FOREIGN KEY (borrowing_id) REFERENCES borrowings(id)
	) ENGINE=InnoDB`,
}
