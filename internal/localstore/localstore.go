// Package localstore keeps reading positions, bookmarks and quotes for
// offline reading in a SQLite file under the rentshelf home.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackzampolin/rentshelf/internal/library"
	"github.com/jackzampolin/rentshelf/internal/reader"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store is a SQLite-backed reader.PositionStore and reader.AnnotationStore.
// Refs are whatever the session opened, usually an absolute file path.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ reader.PositionStore   = (*Store)(nil)
	_ reader.AnnotationStore = (*Store)(nil)
)

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			ref TEXT PRIMARY KEY,
			page INTEGER NOT NULL,
			scroll_offset REAL NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS annotations (
			id INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			ref TEXT NOT NULL,
			page INTEGER NOT NULL,
			text TEXT NOT NULL,
			sel_start INTEGER,
			sel_end INTEGER,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_annotations_ref ON annotations(ref, kind, id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// FetchLastPosition implements reader.PositionStore. It returns nil when no
// position was saved for ref.
func (s *Store) FetchLastPosition(ctx context.Context, ref string) (*reader.Position, error) {
	var pos reader.Position
	err := s.db.QueryRowContext(ctx,
		`SELECT page, scroll_offset FROM positions WHERE ref = ?`, ref,
	).Scan(&pos.Page, &pos.ScrollOffset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// SaveLastPosition implements reader.PositionStore.
func (s *Store) SaveLastPosition(ctx context.Context, ref string, pos reader.Position) error {
	if pos.Page < 1 || pos.ScrollOffset < 0 || math.IsNaN(pos.ScrollOffset) || math.IsInf(pos.ScrollOffset, 0) {
		return fmt.Errorf("%w: page %d offset %v", library.ErrInvalidPosition, pos.Page, pos.ScrollOffset)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO positions (ref, page, scroll_offset, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(ref) DO UPDATE SET
			page = excluded.page,
			scroll_offset = excluded.scroll_offset,
			updated_at = excluded.updated_at`,
		ref, pos.Page, pos.ScrollOffset, s.now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// SaveBookmark implements reader.AnnotationStore.
func (s *Store) SaveBookmark(ctx context.Context, ref string, a reader.Annotation) error {
	return s.add(ctx, library.KindBookmark, ref, a)
}

// SaveQuote implements reader.AnnotationStore.
func (s *Store) SaveQuote(ctx context.Context, ref string, a reader.Annotation) error {
	return s.add(ctx, library.KindQuote, ref, a)
}

func (s *Store) add(ctx context.Context, kind library.Kind, ref string, a reader.Annotation) error {
	a.Text = strings.TrimSpace(a.Text)
	if a.Text == "" || a.Page < 1 {
		return fmt.Errorf("%w: page %d text %q", library.ErrInvalidAnnotation, a.Page, a.Text)
	}
	var start, end sql.NullInt64
	if a.Selection != nil {
		if !a.Selection.Valid() {
			return fmt.Errorf("%w: selection %d-%d", library.ErrInvalidAnnotation, a.Selection.Start, a.Selection.End)
		}
		start = sql.NullInt64{Int64: int64(a.Selection.Start), Valid: true}
		end = sql.NullInt64{Int64: int64(a.Selection.End), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO annotations (kind, ref, page, text, sel_start, sel_end, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(kind), ref, a.Page, a.Text, start, end, s.now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Annotations lists the bookmarks or quotes saved for ref, oldest first.
func (s *Store) Annotations(ctx context.Context, kind library.Kind, ref string) ([]reader.Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page, text, sel_start, sel_end FROM annotations
		 WHERE ref = ? AND kind = ? ORDER BY id`,
		ref, string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reader.Annotation
	for rows.Next() {
		var (
			a          reader.Annotation
			start, end sql.NullInt64
		)
		if err := rows.Scan(&a.Page, &a.Text, &start, &end); err != nil {
			return nil, err
		}
		if start.Valid && end.Valid {
			a.Selection = &reader.SelectionRange{Start: int(start.Int64), End: int(end.Int64)}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAnnotation removes the index-th entry of the list Annotations returns.
func (s *Store) DeleteAnnotation(ctx context.Context, kind library.Kind, ref string, index int) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", library.ErrIndexOutOfRange, index)
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM annotations WHERE ref = ? AND kind = ? ORDER BY id LIMIT 1 OFFSET ?`,
		ref, string(kind), index,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", library.ErrIndexOutOfRange, index)
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id)
	return err
}
