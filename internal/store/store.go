package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shopper-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

type productRow struct {
	ID            int64     `db:"id"`
	Name          string    `db:"name"`
	Brand         string    `db:"brand"`
	Slug          string    `db:"slug"`
	Price         int64     `db:"price"`
	ImageURL      string    `db:"image_url"`
	Gender        string    `db:"gender"`
	Concentration string    `db:"concentration"`
	NotesTop      string    `db:"notes_top"`
	NotesMiddle   string    `db:"notes_middle"`
	NotesBase     string    `db:"notes_base"`
	IsTrending    bool      `db:"is_trending"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r productRow) toProduct() models.Product {
	return models.Product{
		ID:            r.ID,
		Name:          r.Name,
		Brand:         r.Brand,
		Slug:          r.Slug,
		Price:         r.Price,
		ImageURL:      r.ImageURL,
		Gender:        r.Gender,
		Concentration: r.Concentration,
		ScentNotes: models.ScentNotes{
			Top:    splitNotes(r.NotesTop),
			Middle: splitNotes(r.NotesMiddle),
			Base:   splitNotes(r.NotesBase),
		},
		IsTrending: r.IsTrending,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt,
	}
}

// SearchByScentKeywords retrieves active products whose scent-note text
// contains any of the keywords, trending first, newest first below that.
func (s *Store) SearchByScentKeywords(ctx context.Context, keywords []string, limit int) ([]models.Product, error) {
	if len(keywords) == 0 {
		return s.TrendingActive(ctx, limit)
	}

	conds := make([]string, 0, len(keywords))
	args := make([]interface{}, 0, len(keywords)+1)
	for _, kw := range keywords {
		args = append(args, "%"+kw+"%")
		conds = append(conds, fmt.Sprintf(
			"(notes_top || ' ' || notes_middle || ' ' || notes_base) ILIKE $%d", len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT * FROM products
		WHERE is_active = TRUE AND (%s)
		ORDER BY is_trending DESC, created_at DESC
		LIMIT $%d`, strings.Join(conds, " OR "), len(args))

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scent keyword search failed: %w", err)
	}

	return rowsToProducts(rows), nil
}

// TrendingActive retrieves active products ordered trending-first.
func (s *Store) TrendingActive(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []productRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM products
		WHERE is_active = TRUE
		ORDER BY is_trending DESC, created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("trending query failed: %w", err)
	}
	return rowsToProducts(rows), nil
}

// SetTrending replaces the set of trending-flagged products in one
// transaction.
func (s *Store) SetTrending(ctx context.Context, productIDs []int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE products SET is_trending = FALSE WHERE is_trending = TRUE"); err != nil {
		return fmt.Errorf("failed to reset trending flags: %w", err)
	}

	if len(productIDs) > 0 {
		query, args, err := sqlx.In("UPDATE products SET is_trending = TRUE WHERE id IN (?)", productIDs)
		if err != nil {
			return err
		}
		query = s.db.Rebind(query)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to set trending flags: %w", err)
		}
	}

	return tx.Commit()
}

func rowsToProducts(rows []productRow) []models.Product {
	products := make([]models.Product, len(rows))
	for i, r := range rows {
		products[i] = r.toProduct()
	}
	return products
}

func joinNotes(notes []string) string {
	return strings.Join(notes, ",")
}

func splitNotes(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
