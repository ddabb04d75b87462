package sqlite

import "database/sql"

func RunMigrations(db *sql.DB) error {
	stmts := []string{

		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS transactions (
			ref TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			amount TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			customer_name TEXT NOT NULL DEFAULT '',
			receipt_code TEXT NOT NULL DEFAULT '',
			mpesa_id TEXT NOT NULL DEFAULT '',
			till_number TEXT NOT NULL DEFAULT '',
			sale_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_mpesa_id ON transactions (mpesa_id);`,

		`CREATE TABLE IF NOT EXISTS outbox_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			payload BLOB NOT NULL,
			published INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
