package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrProductNotTracked = errors.New("product is not tracked")

// TrackedProduct is a product a user watches for price changes.
type TrackedProduct struct {
	ID             uuid.UUID       `db:"id"`
	UserID         uuid.UUID       `db:"user_id"`
	Title          string          `db:"title"`
	URL            string          `db:"url"`
	Site           string          `db:"site"`
	CurrentPrice   sql.NullFloat64 `db:"current_price"`
	PreviousPrice  sql.NullFloat64 `db:"previous_price"`
	PriceThreshold sql.NullFloat64 `db:"price_threshold"`
	Rating         string          `db:"rating"`
	LastChecked    sql.NullTime    `db:"last_checked"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// Track inserts a tracked product or refreshes the existing row for the
// same user and URL. The row id is returned either way.
func (db *DB) Track(ctx context.Context, p *TrackedProduct) (uuid.UUID, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	query := `
		INSERT INTO tracked_products
			(id, user_id, title, url, site, current_price, price_threshold, rating, last_checked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id, url) DO UPDATE SET
			title = EXCLUDED.title,
			previous_price = tracked_products.current_price,
			current_price = EXCLUDED.current_price,
			price_threshold = COALESCE(EXCLUDED.price_threshold, tracked_products.price_threshold),
			rating = EXCLUDED.rating,
			last_checked = NOW(),
			updated_at = NOW()
		RETURNING id`

	var id uuid.UUID
	err := db.pool.QueryRow(ctx, query,
		p.ID, p.UserID, p.Title, p.URL, p.Site,
		p.CurrentPrice, p.PriceThreshold, p.Rating,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to track product: %w", err)
	}
	return id, nil
}

// UpdatePrice records a fresh price observation, rotating the current
// price into previous_price.
func (db *DB) UpdatePrice(ctx context.Context, id uuid.UUID, price sql.NullFloat64, rating string) error {
	query := `
		UPDATE tracked_products SET
			previous_price = current_price,
			current_price = $2,
			rating = $3,
			last_checked = NOW(),
			updated_at = NOW()
		WHERE id = $1`

	tag, err := db.pool.Exec(ctx, query, id, price, rating)
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotTracked
	}
	return nil
}

// ListByUser returns the user's tracked products, newest first.
func (db *DB) ListByUser(ctx context.Context, userID uuid.UUID) ([]TrackedProduct, error) {
	query := `
		SELECT id, user_id, title, url, site, current_price, previous_price,
		       price_threshold, rating, last_checked, created_at, updated_at
		FROM tracked_products
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// ListAll returns every tracked product across all users.
func (db *DB) ListAll(ctx context.Context) ([]TrackedProduct, error) {
	query := `
		SELECT id, user_id, title, url, site, current_price, previous_price,
		       price_threshold, rating, last_checked, created_at, updated_at
		FROM tracked_products
		ORDER BY last_checked ASC NULLS FIRST`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// Untrack removes a tracked product owned by the given user.
func (db *DB) Untrack(ctx context.Context, userID, productID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM tracked_products WHERE id = $1 AND user_id = $2`,
		productID, userID)
	if err != nil {
		return fmt.Errorf("failed to untrack product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotTracked
	}
	return nil
}

func scanProducts(rows pgx.Rows) ([]TrackedProduct, error) {
	var products []TrackedProduct
	for rows.Next() {
		var p TrackedProduct
		err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.URL, &p.Site,
			&p.CurrentPrice, &p.PreviousPrice, &p.PriceThreshold,
			&p.Rating, &p.LastChecked, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return products, nil
}
