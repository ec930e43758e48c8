/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package sqlite provides a SQLite-backed document store for character
// sheets and table ledgers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/Seednode/tencandles/ledger"
	"github.com/Seednode/tencandles/sheet"
	"github.com/Seednode/tencandles/storage/sqlite/migrations"
)

var errNotConfigured = errors.New("storage is not configured")

// Store persists characters, items and ledgers in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// Read-modify-write updates run in transactions; one connection keeps
	// them from contending for the write lock.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errNotConfigured
	}
	return nil
}

const characterColumns = `id, table_id, owner_id, name, hope_enabled,
	last_roll_pool_size, last_roll_failures, last_roll_bonus, last_roll_rerolled, last_roll_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner) (sheet.Character, error) {
	var (
		c                  sheet.Character
		hope               int
		pool, fails, bonus sql.NullInt64
		rerolled           int
		rolledAt           sql.NullInt64
		createdAt          int64
		updatedAt          int64
	)

	if err := row.Scan(&c.ID, &c.TableID, &c.OwnerID, &c.Name, &hope,
		&pool, &fails, &bonus, &rerolled, &rolledAt,
		&createdAt, &updatedAt); err != nil {
		return sheet.Character{}, err
	}

	c.HopeEnabled = hope != 0
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)

	if pool.Valid {
		c.LastRoll = &sheet.RollRecord{
			PoolSize:        int(pool.Int64),
			FailureCount:    int(fails.Int64),
			BonusDieApplied: bonus.Int64 != 0,
			Rerolled:        rerolled != 0,
			Timestamp:       fromMillis(rolledAt.Int64),
		}
	}

	return c, nil
}

func rollColumns(rec *sheet.RollRecord) (pool, fails, bonus sql.NullInt64, rerolled int, at sql.NullInt64) {
	if rec == nil {
		return
	}

	b := int64(0)
	if rec.BonusDieApplied {
		b = 1
	}

	return sql.NullInt64{Int64: int64(rec.PoolSize), Valid: true},
		sql.NullInt64{Int64: int64(rec.FailureCount), Valid: true},
		sql.NullInt64{Int64: b, Valid: true},
		boolInt(rec.Rerolled),
		sql.NullInt64{Int64: toMillis(rec.Timestamp), Valid: true}
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func (s *Store) CreateCharacter(ctx context.Context, c sheet.Character) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("character id is required")
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	pool, fails, bonus, rerolled, at := rollColumns(c.LastRoll)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO characters (`+characterColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TableID, c.OwnerID, c.Name, boolInt(c.HopeEnabled),
		pool, fails, bonus, rerolled, at,
		toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sheet.ErrAlreadyExists
		}
		return fmt.Errorf("create character: %w", err)
	}

	return nil
}

func (s *Store) GetCharacter(ctx context.Context, id string) (sheet.Character, error) {
	if err := s.ready(ctx); err != nil {
		return sheet.Character{}, err
	}

	c, err := scanCharacter(s.db.QueryRowContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sheet.Character{}, sheet.ErrNotFound
		}
		return sheet.Character{}, fmt.Errorf("get character: %w", err)
	}

	return c, nil
}

func (s *Store) ListCharacters(ctx context.Context, tableID string) ([]sheet.Character, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE table_id = ? ORDER BY created_at, id`, tableID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	out := make([]sheet.Character, 0)
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}

	return out, nil
}

func (s *Store) UpdateCharacter(ctx context.Context, id string, fn func(*sheet.Character) error) (sheet.Character, error) {
	if err := s.ready(ctx); err != nil {
		return sheet.Character{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sheet.Character{}, fmt.Errorf("begin update character: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := scanCharacter(tx.QueryRowContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sheet.Character{}, sheet.ErrNotFound
		}
		return sheet.Character{}, fmt.Errorf("get character: %w", err)
	}

	next := c
	if c.LastRoll != nil {
		rec := *c.LastRoll
		next.LastRoll = &rec
	}
	if err := fn(&next); err != nil {
		return c, err
	}
	next.ID = c.ID
	next.TableID = c.TableID
	next.UpdatedAt = s.now().UTC()
	pool, fails, bonus, rerolled, at := rollColumns(next.LastRoll)

	if _, err := tx.ExecContext(ctx,
		`UPDATE characters SET owner_id = ?, name = ?, hope_enabled = ?,
		   last_roll_pool_size = ?, last_roll_failures = ?, last_roll_bonus = ?, last_roll_rerolled = ?, last_roll_at = ?,
		   updated_at = ?
		 WHERE id = ?`,
		next.OwnerID, next.Name, boolInt(next.HopeEnabled),
		pool, fails, bonus, rerolled, at,
		toMillis(next.UpdatedAt),
		id,
	); err != nil {
		return c, fmt.Errorf("update character: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return c, fmt.Errorf("commit character: %w", err)
	}

	return next, nil
}

const itemColumns = `id, character_id, category, name, description, quantity, weight, created_at`

func scanItem(row rowScanner) (sheet.Item, error) {
	var (
		it        sheet.Item
		category  string
		createdAt int64
	)

	if err := row.Scan(&it.ID, &it.CharacterID, &category, &it.Name, &it.Description,
		&it.Quantity, &it.Weight, &createdAt); err != nil {
		return sheet.Item{}, err
	}
	it.Category = sheet.Category(category)
	it.CreatedAt = fromMillis(createdAt)

	return it, nil
}

func (s *Store) CreateItem(ctx context.Context, it sheet.Item) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(it.ID) == "" {
		return fmt.Errorf("item id is required")
	}

	var found int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM characters WHERE id = ?`, it.CharacterID).Scan(&found)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return sheet.ErrNotFound
	case err != nil:
		return fmt.Errorf("find character: %w", err)
	}

	if it.CreatedAt.IsZero() {
		it.CreatedAt = s.now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.CharacterID, string(it.Category), it.Name, it.Description,
		it.Quantity, it.Weight, toMillis(it.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sheet.ErrAlreadyExists
		}
		return fmt.Errorf("create item: %w", err)
	}

	return nil
}

func (s *Store) GetItem(ctx context.Context, id string) (sheet.Item, error) {
	if err := s.ready(ctx); err != nil {
		return sheet.Item{}, err
	}

	it, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sheet.Item{}, sheet.ErrNotFound
		}
		return sheet.Item{}, fmt.Errorf("get item: %w", err)
	}

	return it, nil
}

func (s *Store) ListItems(ctx context.Context, characterID string) ([]sheet.Item, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE character_id = ? ORDER BY seq`, characterID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []sheet.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	return out, nil
}

func (s *Store) UpdateItem(ctx context.Context, id string, fn func(*sheet.Item) error) (sheet.Item, error) {
	if err := s.ready(ctx); err != nil {
		return sheet.Item{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sheet.Item{}, fmt.Errorf("begin update item: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	it, err := scanItem(tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sheet.Item{}, sheet.ErrNotFound
		}
		return sheet.Item{}, fmt.Errorf("get item: %w", err)
	}

	next := it
	if err := fn(&next); err != nil {
		return it, err
	}
	next.ID = it.ID
	next.CharacterID = it.CharacterID
	next.Category = it.Category

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, quantity = ?, weight = ? WHERE id = ?`,
		next.Name, next.Description, next.Quantity, next.Weight, id,
	); err != nil {
		return it, fmt.Errorf("update item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return it, fmt.Errorf("commit item: %w", err)
	}

	return next, nil
}

func (s *Store) DeleteItem(ctx context.Context, characterID, itemID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND character_id = ?`, itemID, characterID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n == 0 {
		return sheet.ErrNotFound
	}

	return nil
}

// LoadLedger implements ledger.Store.
func (s *Store) LoadLedger(ctx context.Context, tableID string) (ledger.Ledger, bool, error) {
	if err := s.ready(ctx); err != nil {
		return ledger.Ledger{}, false, err
	}

	var l ledger.Ledger
	err := s.db.QueryRowContext(ctx,
		`SELECT total, penalty, capacity FROM ledgers WHERE table_id = ?`, tableID,
	).Scan(&l.Total, &l.Penalty, &l.Capacity)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ledger.Ledger{}, false, nil
	case err != nil:
		return ledger.Ledger{}, false, fmt.Errorf("load ledger: %w", err)
	}

	return l, true, nil
}

// SaveLedger implements ledger.Store.
func (s *Store) SaveLedger(ctx context.Context, tableID string, l ledger.Ledger) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO ledgers (table_id, total, penalty, capacity, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (table_id) DO UPDATE SET
		   total = excluded.total,
		   penalty = excluded.penalty,
		   capacity = excluded.capacity,
		   updated_at = excluded.updated_at`,
		tableID, l.Total, l.Penalty, l.Capacity, toMillis(s.now()),
	); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}

	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
