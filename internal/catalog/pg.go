package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"skincare-backend/internal/skin"
)

// PGStore implements Store using Postgres.
type PGStore struct {
	DB *sql.DB
}

const productColumns = `id, name, brand, category, price, currency, comedogenic_rating,
       key_ingredients, skin_concerns, product_url, image_url`

func (s *PGStore) Entries(ctx context.Context) ([]skin.CatalogEntry, error) {
	query := `SELECT ` + productColumns + `
FROM products
ORDER BY id`
	return s.query(ctx, query)
}

func (s *PGStore) Search(ctx context.Context, f Filter) ([]skin.CatalogEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, string(f.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if concern := strings.TrimSpace(f.Concern); concern != "" {
		args = append(args, "%"+concern+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(key_ingredients::text ILIKE $%d OR skin_concerns::text ILIKE $%d)", n, n))
	}
	query := `SELECT ` + productColumns + `
FROM products`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.limit())
	query += fmt.Sprintf("\nORDER BY id\nLIMIT $%d", len(args))
	return s.query(ctx, query, args...)
}

func (s *PGStore) query(ctx context.Context, query string, args ...any) ([]skin.CatalogEntry, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []skin.CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanEntry(rows *sql.Rows) (skin.CatalogEntry, error) {
	var (
		e           skin.CatalogEntry
		category    string
		rating      sql.NullInt64
		ingredients []byte
		concerns    []byte
		productURL  sql.NullString
		imageURL    sql.NullString
	)
	if err := rows.Scan(
		&e.ID,
		&e.Name,
		&e.Brand,
		&category,
		&e.Price,
		&e.Currency,
		&rating,
		&ingredients,
		&concerns,
		&productURL,
		&imageURL,
	); err != nil {
		return skin.CatalogEntry{}, err
	}
	e.Category = skin.Category(category)
	if rating.Valid {
		v := int(rating.Int64)
		e.ComedogenicRating = &v
	}
	if len(ingredients) > 0 {
		if err := json.Unmarshal(ingredients, &e.Ingredients); err != nil {
			return skin.CatalogEntry{}, fmt.Errorf("product %d key_ingredients: %w", e.ID, err)
		}
	}
	if len(concerns) > 0 {
		if err := json.Unmarshal(concerns, &e.ConcernTags); err != nil {
			return skin.CatalogEntry{}, fmt.Errorf("product %d skin_concerns: %w", e.ID, err)
		}
	}
	e.ProductURL = productURL.String
	e.ImageURL = imageURL.String
	return e, nil
}

// Replace deletes every product and inserts entries in one transaction.
func (s *PGStore) Replace(ctx context.Context, entries []skin.CatalogEntry) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return err
	}
	const insert = `
INSERT INTO products (
	name, brand, category, price, currency, comedogenic_rating,
	key_ingredients, skin_concerns, product_url, image_url
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, e := range entries {
		ingredients, err := marshalJSONB(e.Ingredients)
		if err != nil {
			return err
		}
		concerns, err := marshalJSONB(e.ConcernTags)
		if err != nil {
			return err
		}
		var rating any
		if e.ComedogenicRating != nil {
			rating = *e.ComedogenicRating
		}
		if _, err := tx.ExecContext(ctx, insert,
			e.Name,
			e.Brand,
			string(e.Category),
			e.Price,
			e.Currency,
			rating,
			ingredients,
			concerns,
			nullIfEmpty(e.ProductURL),
			nullIfEmpty(e.ImageURL),
		); err != nil {
			return fmt.Errorf("insert product %q: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

func marshalJSONB(value any) (any, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

var _ Store = (*PGStore)(nil)
