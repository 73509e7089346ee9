package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"propdraft/internal/assembly"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT,
			section_count INTEGER,
			instruction_count INTEGER,
			draft_count INTEGER,
			payload JSON NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS examples (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			client_type TEXT,
			domain TEXT,
			contract_vehicle TEXT,
			complexity_tier TEXT,
			tags JSON
		);`,
		`CREATE TABLE IF NOT EXISTS example_sections (
			example_id TEXT NOT NULL,
			section_key TEXT NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY (example_id, section_key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_project ON snapshots(project_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_example_sections_key ON example_sections(section_key);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- SnapshotStore Implementation ---

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, projectID string, snap assembly.DocumentSnapshot) (assembly.SaveReceipt, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return assembly.SaveReceipt{}, fmt.Errorf("encode snapshot: %w", err)
	}

	instructions, drafts := 0, 0
	for _, sec := range snap.Sections {
		if sec.Instruction != nil {
			instructions++
		}
		if sec.HTML != "" {
			drafts++
		}
	}

	receipt := assembly.SaveReceipt{ID: uuid.NewString(), SavedAt: s.now().UTC()}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, project_id, title, section_count, instruction_count, draft_count, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, receipt.ID, projectID, snap.Title, len(snap.Sections), instructions, drafts, payload, receipt.SavedAt.UnixNano())
	if err != nil {
		return assembly.SaveReceipt{}, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return receipt, nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, projectID string) (assembly.DocumentSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload FROM snapshots WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, projectID)
	return scanSnapshot(row, projectID, "latest")
}

func (s *SQLiteStore) LoadVersion(ctx context.Context, projectID, id string) (assembly.DocumentSnapshot, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM snapshots WHERE project_id = ? AND id = ?", projectID, id)
	return scanSnapshot(row, projectID, id)
}

func scanSnapshot(row *sql.Row, projectID, which string) (assembly.DocumentSnapshot, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return assembly.DocumentSnapshot{}, fmt.Errorf("project %q version %s: %w", projectID, which, assembly.ErrNotFound)
		}
		return assembly.DocumentSnapshot{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	var snap assembly.DocumentSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return assembly.DocumentSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) ListVersions(ctx context.Context, projectID string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, section_count, instruction_count, draft_count, created_at
		FROM snapshots WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		var title sql.NullString
		var created int64
		if err := rows.Scan(&v.ID, &title, &v.Sections, &v.Instructions, &v.Drafts, &created); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		v.Title = title.String
		v.SavedAt = time.Unix(0, created).UTC()
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- ExampleStore Implementation ---

func (s *SQLiteStore) UpsertExample(ctx context.Context, ex assembly.Example) (string, error) {
	if strings.TrimSpace(ex.ID) == "" {
		ex.ID = uuid.NewString()
	}
	tags, err := json.Marshal(ex.Tags)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO examples (id, title, client_type, domain, contract_vehicle, complexity_tier, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			client_type=excluded.client_type,
			domain=excluded.domain,
			contract_vehicle=excluded.contract_vehicle,
			complexity_tier=excluded.complexity_tier,
			tags=excluded.tags
	`, ex.ID, ex.Title, ex.ClientType, ex.Domain, ex.ContractVehicle, ex.ComplexityTier, tags)
	if err != nil {
		return "", fmt.Errorf("failed to save example: %w", err)
	}
	return ex.ID, nil
}

func (s *SQLiteStore) PutExampleSection(ctx context.Context, exampleID, sectionKey, text string) error {
	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM examples WHERE id = ?", exampleID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("example %q: %w", exampleID, assembly.ErrNotFound)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO example_sections (example_id, section_key, text) VALUES (?, ?, ?)
		ON CONFLICT(example_id, section_key) DO UPDATE SET text=excluded.text
	`, exampleID, sectionKey, text)
	return err
}

func (s *SQLiteStore) ListExamples(ctx context.Context) ([]assembly.Example, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, client_type, domain, contract_vehicle, complexity_tier, tags
		FROM examples ORDER BY title, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query examples: %w", err)
	}
	defer rows.Close()

	var out []assembly.Example
	for rows.Next() {
		var ex assembly.Example
		var clientType, domain, vehicle, tier sql.NullString
		var tags []byte
		if err := rows.Scan(&ex.ID, &ex.Title, &clientType, &domain, &vehicle, &tier, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan example: %w", err)
		}
		ex.ClientType, ex.Domain, ex.ContractVehicle, ex.ComplexityTier = clientType.String, domain.String, vehicle.String, tier.String
		if len(tags) > 0 {
			_ = json.Unmarshal(tags, &ex.Tags)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteExample(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM example_sections WHERE example_id = ?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM examples WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("example %q: %w", id, assembly.ErrNotFound)
	}
	return tx.Commit()
}

// ExamplePassages returns up to limit passages for sectionKey. Unknown ids
// are skipped; an empty ids list searches every example.
func (s *SQLiteStore) ExamplePassages(ctx context.Context, sectionKey string, exampleIDs []string, limit int) ([]assembly.ExamplePassage, error) {
	if limit <= 0 {
		limit = 8
	}
	query := "SELECT example_id, section_key, text FROM example_sections WHERE section_key = ?"
	args := []any{sectionKey}
	if len(exampleIDs) > 0 {
		query += " AND example_id IN (?" + strings.Repeat(", ?", len(exampleIDs)-1) + ")"
		for _, id := range exampleIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY example_id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query example passages: %w", err)
	}
	defer rows.Close()

	var out []assembly.ExamplePassage
	for rows.Next() {
		var p assembly.ExamplePassage
		if err := rows.Scan(&p.ExampleID, &p.SectionKey, &p.Text); err != nil {
			return nil, fmt.Errorf("failed to scan example passage: %w", err)
		}
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
