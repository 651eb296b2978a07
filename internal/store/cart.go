package store

import (
	"context"
	"fmt"
	"time"

	"shopper-service/internal/models"
)

type cartItemRow struct {
	UserID      int64     `db:"user_id"`
	ProductID   int64     `db:"product_id"`
	DisplaySlug string    `db:"display_slug"`
	Name        string    `db:"name"`
	Brand       string    `db:"brand"`
	UnitPrice   int64     `db:"unit_price"`
	Quantity    int       `db:"quantity"`
	ImageURL    string    `db:"image_url"`
	Size        string    `db:"size"`
	NotesTop    string    `db:"notes_top"`
	NotesMiddle string    `db:"notes_middle"`
	NotesBase   string    `db:"notes_base"`
	AddedAt     time.Time `db:"added_at"`
}

func (r cartItemRow) toLine() models.CartLine {
	return models.CartLine{
		ProductID:   r.ProductID,
		DisplaySlug: r.DisplaySlug,
		Name:        r.Name,
		Brand:       r.Brand,
		UnitPrice:   r.UnitPrice,
		Quantity:    r.Quantity,
		ImageURL:    r.ImageURL,
		Size:        r.Size,
		ScentNotes: models.ScentNotes{
			Top:    splitNotes(r.NotesTop),
			Middle: splitNotes(r.NotesMiddle),
			Base:   splitNotes(r.NotesBase),
		},
	}
}

const insertCartItem = `
	INSERT INTO cart_items
		(user_id, product_id, display_slug, name, brand, unit_price, quantity,
		 image_url, size, notes_top, notes_middle, notes_base)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// FetchCartLines retrieves the account cart for a user, in add order.
func (s *Store) FetchCartLines(ctx context.Context, userID int64) ([]models.CartLine, error) {
	var rows []cartItemRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM cart_items WHERE user_id = $1 ORDER BY added_at, product_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart for user %d: %w", userID, err)
	}

	lines := make([]models.CartLine, len(rows))
	for i, r := range rows {
		lines[i] = r.toLine()
	}
	return lines, nil
}

// ReplaceCartLines overwrites the account cart with the given full snapshot.
func (s *Store) ReplaceCartLines(ctx context.Context, userID int64, lines []models.CartLine) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to clear cart for user %d: %w", userID, err)
	}

	for _, l := range lines {
		_, err := tx.ExecContext(ctx, insertCartItem,
			userID, l.ProductID, l.DisplaySlug, l.Name, l.Brand, l.UnitPrice, l.Quantity,
			l.ImageURL, l.Size, joinNotes(l.ScentNotes.Top), joinNotes(l.ScentNotes.Middle),
			joinNotes(l.ScentNotes.Base))
		if err != nil {
			return fmt.Errorf("failed to insert cart item %d: %w", l.ProductID, err)
		}
	}

	return tx.Commit()
}

// MergeCartLines folds guest lines into the account cart and returns the
// merged authoritative list. Quantities for shared products are summed; the
// account line's display snapshot wins on conflict.
func (s *Store) MergeCartLines(ctx context.Context, userID int64, guestLines []models.CartLine) ([]models.CartLine, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, l := range guestLines {
		_, err := tx.ExecContext(ctx, insertCartItem+`
			ON CONFLICT (user_id, product_id)
			DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
			userID, l.ProductID, l.DisplaySlug, l.Name, l.Brand, l.UnitPrice, l.Quantity,
			l.ImageURL, l.Size, joinNotes(l.ScentNotes.Top), joinNotes(l.ScentNotes.Middle),
			joinNotes(l.ScentNotes.Base))
		if err != nil {
			return nil, fmt.Errorf("failed to merge cart item %d: %w", l.ProductID, err)
		}
	}

	var rows []cartItemRow
	err = tx.SelectContext(ctx, &rows,
		"SELECT * FROM cart_items WHERE user_id = $1 ORDER BY added_at, product_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read merged cart for user %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	lines := make([]models.CartLine, len(rows))
	for i, r := range rows {
		lines[i] = r.toLine()
	}
	return lines, nil
}

// AccountCart adapts the store to the cart engine's ServerCart interface for
// one user.
type AccountCart struct {
	store  *Store
	userID int64
}

// NewAccountCart binds the store-backed account cart to a user
func (s *Store) NewAccountCart(userID int64) *AccountCart {
	return &AccountCart{store: s, userID: userID}
}

// Fetch retrieves the account cart lines.
func (a *AccountCart) Fetch(ctx context.Context) ([]models.CartLine, error) {
	return a.store.FetchCartLines(ctx, a.userID)
}

// Sync overwrites the account cart with the full line list.
func (a *AccountCart) Sync(ctx context.Context, lines []models.CartLine) error {
	return a.store.ReplaceCartLines(ctx, a.userID, lines)
}

// Merge folds guest lines into the account cart.
func (a *AccountCart) Merge(ctx context.Context, guestLines []models.CartLine) ([]models.CartLine, error) {
	return a.store.MergeCartLines(ctx, a.userID, guestLines)
}
