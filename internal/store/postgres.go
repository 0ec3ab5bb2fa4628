package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/seenimoa/cryptoverlay/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS price_history (
	id          BIGSERIAL PRIMARY KEY,
	pass_id     TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	price       DOUBLE PRECISION,
	change_pct  DOUBLE PRECISION,
	premium_pct DOUBLE PRECISION,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS price_history_symbol_time ON price_history (symbol, recorded_at DESC);
`

const insertQuote = `
	INSERT INTO price_history (pass_id, symbol, price, change_pct, premium_pct, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

const selectRecent = `
	SELECT pass_id, symbol, price, change_pct, premium_pct, recorded_at
	FROM price_history
	WHERE symbol = $1
	ORDER BY recorded_at DESC
	LIMIT $2
`

// Record is one stored quote.
type Record struct {
	PassID     string    `db:"pass_id"     json:"pass_id"`
	Symbol     string    `db:"symbol"      json:"symbol"`
	Price      *float64  `db:"price"       json:"price"`
	ChangePct  *float64  `db:"change_pct"  json:"change_pct"`
	PremiumPct *float64  `db:"premium_pct" json:"premium_pct"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// Postgres appends every quote of every update to price_history.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres opens and pings the database at dsn.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgresWithDB wraps an open database handle.
func NewPostgresWithDB(db *sql.DB) *Postgres {
	return &Postgres{db: sqlx.NewDb(db, "postgres")}
}

// Name implements Sink.
func (p *Postgres) Name() string { return "postgres" }

// InitSchema creates the history table if it does not exist.
func (p *Postgres) InitSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Save inserts one row per quote in a single transaction. Absent values are
// stored as NULL.
func (p *Postgres) Save(ctx context.Context, u models.Update) error {
	quotes := u.Ordered()
	if len(quotes) == 0 {
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	at := u.CompletedAt.UTC()
	for _, q := range quotes {
		if _, err := tx.ExecContext(ctx, insertQuote, u.PassID, q.Symbol, q.Price, q.ChangePct, q.PremiumPct, at); err != nil {
			return fmt.Errorf("insert %s: %w", q.Symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit records for symbol, newest first.
func (p *Postgres) Recent(ctx context.Context, symbol string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []Record
	if err := p.db.SelectContext(ctx, &out, selectRecent, symbol, limit); err != nil {
		return nil, fmt.Errorf("recent %s: %w", symbol, err)
	}
	return out, nil
}

// Close closes the database handle.
func (p *Postgres) Close() error { return p.db.Close() }
