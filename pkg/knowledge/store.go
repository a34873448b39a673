package knowledge

import (
	stdctx "context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/google/uuid"
	"github.com/pilotdev/pilotd/pkg/sqlitemigrate"
)

//go:embed migrations
var migrationsFS embed.FS

// DefaultRetentionDays bounds how long knowledge items are kept absent an
// explicit cleanup(older_than_days) call.
const DefaultRetentionDays = 90

// Store is the per-repository knowledge store: store/store_batch/search/
// get_project_knowledge/cleanup/stats, backed by a single-table sqlite
// database plus the brute-force cosine-similarity search embed.go
// computes in process (spec.md §4.9).
type Store struct {
	db *stdsql.DB
}

// Open opens (creating if absent) the knowledge database at path and
// runs pending migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=synchronous(normal)", path)
	db, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open knowledge database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := sqlitemigrate.Up(db, migrationsFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run knowledge migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Store persists one item request and returns its generated id.
func (s *Store) Store(ctx stdctx.Context, req ItemRequest) (string, error) {
	ids, err := s.StoreBatch(ctx, []ItemRequest{req})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// StoreBatch persists multiple item requests, each embedded
// independently, and returns their generated ids in order.
func (s *Store) StoreBatch(ctx stdctx.Context, reqs []ItemRequest) ([]string, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin store_batch: %w", err)
	}

	ids := make([]string, 0, len(reqs))
	now := time.Now().UTC()
	for _, req := range reqs {
		id := uuid.NewString()
		vec := Embed(req.Text)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO items (id, vector, text, knowledge_type, project_id, session_id, agent, timestamp, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, encodeVector(vec), req.Text, req.KnowledgeType, req.ProjectID, req.SessionID, req.Agent,
			now.Format(time.RFC3339Nano), req.Metadata,
		)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("insert knowledge item: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit store_batch: %w", err)
	}
	return ids, nil
}

// Search embeds query, ranks every item passing filters by cosine
// similarity, and returns results with score >= threshold, newest first
// within tied scores, capped at limit (spec.md §4.9).
func (s *Store) Search(ctx stdctx.Context, query string, limit int, threshold float32, filters SearchFilters) ([]SearchResult, error) {
	items, err := s.filteredItems(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	queryVec := Embed(query)

	results := make([]SearchResult, 0, len(items))
	for _, item := range items {
		score := CosineSimilarity(queryVec, item.Vector)
		if score >= threshold {
			results = append(results, SearchResult{Item: item, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Item.Timestamp.After(results[j].Item.Timestamp)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetProjectKnowledge returns up to limit items for projectID, optionally
// filtered by knowledgeType, newest first.
func (s *Store) GetProjectKnowledge(ctx stdctx.Context, projectID, knowledgeType string, limit int) ([]Item, error) {
	filters := SearchFilters{ProjectID: projectID, KnowledgeType: knowledgeType}
	items, err := s.filteredItems(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("get_project_knowledge: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) filteredItems(ctx stdctx.Context, filters SearchFilters) ([]Item, error) {
	query := `SELECT id, vector, text, knowledge_type, project_id, session_id, agent, timestamp, metadata FROM items WHERE 1=1`
	var args []any
	if filters.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filters.ProjectID)
	}
	if filters.KnowledgeType != "" {
		query += ` AND knowledge_type = ?`
		args = append(args, filters.KnowledgeType)
	}
	if filters.Agent != "" {
		query += ` AND agent = ?`
		args = append(args, filters.Agent)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var vecBlob []byte
		var ts string
		var sessionID, agent, metadata stdsql.NullString
		if err := rows.Scan(&item.ID, &vecBlob, &item.Text, &item.KnowledgeType, &item.ProjectID,
			&sessionID, &agent, &ts, &metadata); err != nil {
			return nil, err
		}
		item.Vector = decodeVector(vecBlob)
		item.SessionID = sessionID.String
		item.Agent = agent.String
		item.Metadata = metadata.String
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse item timestamp %q: %w", ts, err)
		}
		item.Timestamp = parsed
		items = append(items, item)
	}
	return items, rows.Err()
}

// Cleanup purges items older than the retention window and returns how
// many were removed.
func (s *Store) Cleanup(ctx stdctx.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = DefaultRetentionDays
	}
	cutoff := time.Now().UTC().Add(-time.Duration(olderThanDays) * 24 * time.Hour).Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup knowledge items: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates counts per knowledge_type and per project_id.
func (s *Store) Stats(ctx stdctx.Context) (Stats, error) {
	stats := Stats{ByType: make(map[string]int64), ByProject: make(map[string]int64)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&stats.TotalItems); err != nil {
		return Stats{}, fmt.Errorf("count items: %w", err)
	}
	if err := scanGroupCounts(ctx, s.db, `SELECT knowledge_type, COUNT(*) FROM items GROUP BY knowledge_type`, stats.ByType); err != nil {
		return Stats{}, err
	}
	if err := scanGroupCounts(ctx, s.db, `SELECT project_id, COUNT(*) FROM items GROUP BY project_id`, stats.ByProject); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func scanGroupCounts(ctx stdctx.Context, db *stdsql.DB, query string, into map[string]int64) error {
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

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
