// Package store persists deals and their rankings in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dealscout/dealscout/models"
)

// Store is the SQLite-backed deal repository. Writes are serialized with a
// mutex; SQLite handles concurrent reads under WAL.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("deal store opened", "path", path)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS deals (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			restaurant          TEXT NOT NULL,
			item_name           TEXT NOT NULL,
			price               REAL NOT NULL,
			description         TEXT NOT NULL DEFAULT '',
			portion_size        TEXT NOT NULL DEFAULT '',
			deal_type           TEXT NOT NULL DEFAULT '',
			source_url          TEXT NOT NULL DEFAULT '',
			calories            INTEGER,
			protein_grams       REAL,
			value_score         REAL,
			satiety_score       REAL,
			price_per_calorie   REAL,
			nutrition_estimated INTEGER NOT NULL DEFAULT 0,
			created_at          INTEGER NOT NULL,
			updated_at          INTEGER NOT NULL,
			last_ranked_at      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_restaurant ON deals(restaurant)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_value ON deals(value_score)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_deals_identity ON deals(restaurant, item_name, source_url)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

const dealColumns = `id, restaurant, item_name, price, description, portion_size,
	deal_type, source_url, calories, protein_grams, value_score, satiety_score,
	price_per_calorie, nutrition_estimated, created_at, updated_at, last_ranked_at`

// Create inserts a deal and fills in its ID and timestamps. A deal with the
// same (restaurant, item_name, source_url) identity updates the existing
// row's price and descriptive fields instead of duplicating it.
func (s *Store) Create(ctx context.Context, deal *models.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	// RETURNING instead of LastInsertId: the upsert branch does not touch
	// last_insert_rowid.
	row := s.db.QueryRowContext(ctx, `INSERT INTO deals
		(restaurant, item_name, price, description, portion_size, deal_type,
		 source_url, calories, protein_grams, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(restaurant, item_name, source_url) DO UPDATE SET
			price = excluded.price,
			description = excluded.description,
			portion_size = excluded.portion_size,
			deal_type = excluded.deal_type,
			calories = excluded.calories,
			protein_grams = excluded.protein_grams,
			updated_at = excluded.updated_at
		RETURNING id, created_at`,
		deal.Restaurant, deal.ItemName, deal.Price, deal.Description,
		deal.PortionSize, deal.DealType, deal.SourceURL,
		deal.Calories, deal.ProteinGrams, now, now,
	)
	if err := row.Scan(&deal.ID, &deal.CreatedAt); err != nil {
		return fmt.Errorf("insert deal: %w", err)
	}
	deal.UpdatedAt = now
	return nil
}

// Get returns one deal by ID, or a NOT_FOUND error.
func (s *Store) Get(ctx context.Context, id int64) (*models.Deal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = ?`, id)
	deal, err := scanDeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewScrapeError(models.ErrCodeNotFound,
			fmt.Sprintf("deal %d not found", id), nil)
	}
	return deal, err
}

// List returns deals newest first, optionally filtered by restaurant and
// capped at limit when limit is positive.
func (s *Store) List(ctx context.Context, restaurant string, limit int) ([]models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals`
	args := []any{}
	if restaurant != "" {
		query += ` WHERE restaurant = ?`
		args = append(args, restaurant)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryDeals(ctx, query, args...)
}

// Update overwrites a deal's editable fields and clears its ranking, since
// a changed price or item invalidates the previous score.
func (s *Store) Update(ctx context.Context, deal *models.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx, `UPDATE deals SET
		restaurant = ?, item_name = ?, price = ?, description = ?,
		portion_size = ?, deal_type = ?, source_url = ?,
		calories = ?, protein_grams = ?,
		value_score = NULL, satiety_score = NULL, price_per_calorie = NULL,
		nutrition_estimated = 0, last_ranked_at = NULL,
		updated_at = ?
		WHERE id = ?`,
		deal.Restaurant, deal.ItemName, deal.Price, deal.Description,
		deal.PortionSize, deal.DealType, deal.SourceURL,
		deal.Calories, deal.ProteinGrams, now, deal.ID,
	)
	if err != nil {
		return fmt.Errorf("update deal %d: %w", deal.ID, err)
	}
	return requireRow(result, deal.ID)
}

// Delete removes a deal, or returns NOT_FOUND.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM deals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete deal %d: %w", id, err)
	}
	return requireRow(result, id)
}

// SaveRanking stores a scoring outcome on a deal.
func (s *Store) SaveRanking(ctx context.Context, id int64, res models.ScoreResult, estimated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx, `UPDATE deals SET
		calories = ?, protein_grams = ?,
		value_score = ?, satiety_score = ?, price_per_calorie = ?,
		nutrition_estimated = ?, last_ranked_at = ?, updated_at = ?
		WHERE id = ?`,
		res.Calories, res.ProteinGrams,
		res.ValueScore, res.SatietyScore, res.PricePerCalorie,
		estimated, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("save ranking for deal %d: %w", id, err)
	}
	return requireRow(result, id)
}

// Top returns the highest-value ranked deals, optionally filtered by
// restaurant.
func (s *Store) Top(ctx context.Context, restaurant string, limit int) ([]models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE value_score IS NOT NULL`
	args := []any{}
	if restaurant != "" {
		query += ` AND restaurant = ?`
		args = append(args, restaurant)
	}
	query += ` ORDER BY value_score DESC, id ASC LIMIT ?`
	args = append(args, limit)
	return s.queryDeals(ctx, query, args...)
}

// Rankable returns deals eligible for a rank-all run: unranked deals, or
// every deal when force is set. Oldest first so backlog drains fairly.
func (s *Store) Rankable(ctx context.Context, force bool) ([]models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals`
	if !force {
		query += ` WHERE value_score IS NULL`
	}
	query += ` ORDER BY id ASC`
	return s.queryDeals(ctx, query)
}

// Stale returns ranked deals whose last ranking is older than maxAge.
func (s *Store) Stale(ctx context.Context, maxAge time.Duration, limit int) ([]models.Deal, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	return s.queryDeals(ctx, `SELECT `+dealColumns+` FROM deals
		WHERE last_ranked_at IS NOT NULL AND last_ranked_at < ?
		ORDER BY last_ranked_at ASC LIMIT ?`, cutoff, limit)
}

// Count returns the total number of deals.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deals`).Scan(&count)
	return count, err
}

// Categories returns the distinct non-empty deal types (menu categories).
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT deal_type FROM deals WHERE deal_type != '' ORDER BY deal_type ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Restaurants returns the distinct restaurant names with at least one deal.
func (s *Store) Restaurants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT restaurant FROM deals ORDER BY restaurant ASC`)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	slog.Info("closing deal store")
	return s.db.Close()
}

func (s *Store) queryDeals(ctx context.Context, query string, args ...any) ([]models.Deal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deals: %w", err)
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *deal)
	}
	return deals, rows.Err()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDeal(row scanner) (*models.Deal, error) {
	var deal models.Deal
	err := row.Scan(
		&deal.ID, &deal.Restaurant, &deal.ItemName, &deal.Price,
		&deal.Description, &deal.PortionSize, &deal.DealType, &deal.SourceURL,
		&deal.Calories, &deal.ProteinGrams,
		&deal.ValueScore, &deal.SatietyScore, &deal.PricePerCal,
		&deal.NutritionByAI, &deal.CreatedAt, &deal.UpdatedAt, &deal.LastRankedAt,
	)
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func requireRow(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.NewScrapeError(models.ErrCodeNotFound,
			fmt.Sprintf("deal %d not found", id), nil)
	}
	return nil
}
