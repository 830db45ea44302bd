package budget

import (
	"database/sql"
	"fmt"

	"github.com/Zhanna110/worldsmith-v3/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

// Ledger persists daily token usage in SQLite so the circuit breaker survives
// process restarts. One row per UTC day.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the budget ledger at the given path.
func OpenLedger(path string) (*Ledger, error) {
	if path == "" {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED, "ledger path cannot be empty")
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.STORE_FAILED, "failed to open budget ledger", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, types.WrapError(types.STORE_FAILED, "failed to ping budget ledger", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS budget_usage (
			day TEXT PRIMARY KEY,
			tokens INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, types.WrapError(types.STORE_FAILED, "failed to initialize budget ledger schema", err)
	}

	return &Ledger{db: db}, nil
}

// Load returns the persisted token count for the given UTC day, or 0 if the
// day has no row yet.
func (l *Ledger) Load(day string) (int64, error) {
	var tokens int64
	err := l.db.QueryRow("SELECT tokens FROM budget_usage WHERE day = ?", day).Scan(&tokens)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, types.WrapError(types.STORE_FAILED, "failed to load budget usage", err)
	}
	return tokens, nil
}

// Save upserts the token count for the given UTC day.
func (l *Ledger) Save(day string, tokens int64) error {
	_, err := l.db.Exec(`
		INSERT INTO budget_usage (day, tokens, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(day) DO UPDATE SET tokens = excluded.tokens, updated_at = CURRENT_TIMESTAMP
	`, day, tokens)
	if err != nil {
		return types.WrapError(types.STORE_FAILED, "failed to save budget usage", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}
