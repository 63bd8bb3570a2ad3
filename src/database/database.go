package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) the sqlite database at databasePath, ensures the
// schema exists and applies column migrations. The returned handle is shared
// by all components; sqlite's transaction isolation serializes concurrent
// ingestions targeting the same fund.
func InitDB(databasePath string, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}

	log.Info("Checking database migrations", "databasePath", databasePath)
	migrateDocumentsTable(db, log)
	migrateEmbeddingsTable(db, log)

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS funds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		gp_name TEXT NOT NULL,
		vintage_year INTEGER,
		fund_type TEXT NOT NULL DEFAULT 'Private Equity',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fund_id INTEGER,
		file_name TEXT,
		status TEXT DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(fund_id) REFERENCES funds(id)
	);

	CREATE TABLE IF NOT EXISTS capital_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fund_id INTEGER NOT NULL,
		call_date TEXT NOT NULL,
		call_type TEXT,
		amount REAL NOT NULL,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(fund_id) REFERENCES funds(id)
	);

	CREATE TABLE IF NOT EXISTS distributions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fund_id INTEGER NOT NULL,
		distribution_date TEXT NOT NULL,
		distribution_type TEXT,
		amount REAL NOT NULL,
		is_recallable BOOLEAN DEFAULT FALSE,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(fund_id) REFERENCES funds(id)
	);

	CREATE TABLE IF NOT EXISTS adjustments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fund_id INTEGER NOT NULL,
		adjustment_date TEXT NOT NULL,
		adjustment_type TEXT,
		amount REAL NOT NULL,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(fund_id) REFERENCES funds(id)
	);

	CREATE TABLE IF NOT EXISTS document_embeddings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER,
		fund_id INTEGER,
		content TEXT NOT NULL,
		embedding TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_capital_calls_fund ON capital_calls(fund_id);
	CREATE INDEX IF NOT EXISTS idx_distributions_fund ON distributions(fund_id);
	CREATE INDEX IF NOT EXISTS idx_adjustments_fund ON adjustments(fund_id);
	CREATE INDEX IF NOT EXISTS idx_document_embeddings_fund ON document_embeddings(fund_id);
	`

	if _, err = db.Exec(createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	log.Info("Database tables ensured/created.")
	return db, nil
}

// migrateDocumentsTable adds the status column to documents tables created
// before ingestion outcomes were recorded.
func migrateDocumentsTable(db *sql.DB, log *slog.Logger) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='documents'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Info("'documents' table does not exist, no migration needed as table will be created.")
			return
		}
		log.Error("Error checking for 'documents' table", "error", err)
		return
	}

	columnExists, err := tableColumns(db, "documents")
	if err != nil {
		log.Error("Error querying table schema for 'documents'", "error", err)
		return
	}

	if _, ok := columnExists["status"]; !ok {
		if _, err := db.Exec("ALTER TABLE documents ADD COLUMN status TEXT DEFAULT 'pending'"); err != nil {
			log.Error("Error adding 'status' column to 'documents' table", "error", err)
		} else {
			log.Info("Added 'status' column to 'documents' table")
		}
	}
}

// migrateEmbeddingsTable adds the fund_id column so retrieval can filter by
// fund; rows from before the migration keep a NULL fund and match no filter.
func migrateEmbeddingsTable(db *sql.DB, log *slog.Logger) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='document_embeddings'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Info("'document_embeddings' table does not exist, no migration needed as table will be created.")
			return
		}
		log.Error("Error checking for 'document_embeddings' table", "error", err)
		return
	}

	columnExists, err := tableColumns(db, "document_embeddings")
	if err != nil {
		log.Error("Error querying table schema for 'document_embeddings'", "error", err)
		return
	}

	if _, ok := columnExists["fund_id"]; !ok {
		if _, err := db.Exec("ALTER TABLE document_embeddings ADD COLUMN fund_id INTEGER"); err != nil {
			log.Error("Error adding 'fund_id' column to 'document_embeddings' table", "error", err)
		} else {
			log.Info("Added 'fund_id' column to 'document_embeddings' table")
		}
	}
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columnExists[name] = true
	}
	return columnExists, rows.Err()
}
