package audit

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/pilotdev/pilotd/pkg/sqlitemigrate"
)

//go:embed migrations
var migrationsFS embed.FS

// DefaultRetentionDays is spec.md §3's default purge window.
const DefaultRetentionDays = 7

// Ledger is the decisions ledger: store/recent/stats/cleanup/close, backed
// by a single-table sqlite database. Migrations run once at Open and are
// embedded into the binary the same way the teacher embeds its postgres
// migrations (pkg/database/client.go), just through sqlitemigrate instead
// of golang-migrate's postgres driver — see sqlitemigrate's package
// comment for why.
type Ledger struct {
	db *stdsql.DB
}

// Open opens (creating if absent) the sqlite database at path, runs pending
// migrations, and returns a ready Ledger.
func Open(path string) (*Ledger, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=synchronous(normal)", path)
	db, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open decisions database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one *sql.DB

	if err := sqlitemigrate.Up(db, migrationsFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run decisions migrations: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Store appends one decision. Writes are synchronous-normal per spec.md
// §4.4; callers on the hot permission path should fire this off in a
// goroutine so a slow disk never blocks the permission response.
func (l *Ledger) Store(ctx context.Context, d Decision) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO decisions (id, command, classification, timestamp, user_decision, reasoning, confidence, response_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Command, d.Classification, d.Timestamp.UTC().Format(time.RFC3339Nano),
		d.UserDecision, d.Reasoning, d.Confidence, d.ResponseTimeMs,
	)
	if err != nil {
		return fmt.Errorf("store decision %s: %w", d.ID, err)
	}
	return nil
}

// Recent returns the most recent decisions, newest first, paginated by
// limit/offset.
func (l *Ledger) Recent(ctx context.Context, limit, offset int) ([]Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, command, classification, timestamp, user_decision, reasoning, confidence, response_time_ms
		FROM decisions
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query recent decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var ts string
		if err := rows.Scan(&d.ID, &d.Command, &d.Classification, &ts, &d.UserDecision, &d.Reasoning, &d.Confidence, &d.ResponseTimeMs); err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse decision timestamp %q: %w", ts, err)
		}
		d.Timestamp = parsed
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent decisions: %w", err)
	}
	return out, nil
}

// Stats aggregates counts per classification and per user decision.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByClassification: make(map[string]int64),
		ByUserDecision:   make(map[string]int64),
	}

	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&stats.Total); err != nil {
		return Stats{}, fmt.Errorf("count decisions: %w", err)
	}

	if err := scanCounts(ctx, l.db, `SELECT classification, COUNT(*) FROM decisions GROUP BY classification`, stats.ByClassification); err != nil {
		return Stats{}, fmt.Errorf("group by classification: %w", err)
	}
	if err := scanCounts(ctx, l.db, `SELECT user_decision, COUNT(*) FROM decisions GROUP BY user_decision`, stats.ByUserDecision); err != nil {
		return Stats{}, fmt.Errorf("group by user_decision: %w", err)
	}

	return stats, nil
}

func scanCounts(ctx context.Context, db *stdsql.DB, query string, into map[string]int64) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

// CleanupOlderThan purges decisions older than the retention window and
// returns how many rows were removed. Called once on daemon start and
// available on demand (spec.md §3: "purged on daemon start and on demand").
func (l *Ledger) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Format(time.RFC3339Nano)

	res, err := l.db.ExecContext(ctx, `DELETE FROM decisions WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge decisions older than %d days: %w", days, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read purge row count: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close decisions database: %w", err)
	}
	return nil
}
