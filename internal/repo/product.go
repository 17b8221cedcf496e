package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopflow-backend/internal/entities"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// ProductRepo is the inventory ledger. Stock is the one resource touched by
// concurrent orders, so reserve is a single conditional UPDATE: the
// availability check and the decrement happen in one statement and stock can
// never go below zero.
type ProductRepo struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

func NewProductRepo(db *sqlx.DB) *ProductRepo {
	return &ProductRepo{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *ProductRepo) GetProductByID(ctx context.Context, productID string) (entities.Product, error) {
	query, args := r.qb.Select("product_id", "name", "image", "price", "stock").
		From("products").
		Where(sq.Eq{"product_id": productID}).
		MustSql()

	var product productRow
	err := getContext(ctx, r.db, &product, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Product{}, entities.ErrProductNotFound
	}
	if err != nil {
		return entities.Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return productToEntity(product), nil
}

// ReserveStock decrements stock by quantity if enough is available.
// Returns ErrInsufficientStock when the guarded UPDATE misses an existing
// product, ErrProductNotFound when the product does not exist.
func (r *ProductRepo) ReserveStock(ctx context.Context, productID string, quantity int) error {
	query, args := r.qb.Update("products").
		Set("stock", sq.Expr("stock - ?", quantity)).
		Where(sq.Eq{"product_id": productID}).
		Where(sq.GtOrEq{"stock": quantity}).
		MustSql()

	res, err := execContext(ctx, r.db, query, args...)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.GetProductByID(ctx, productID); errors.Is(err, entities.ErrProductNotFound) {
		return entities.ErrProductNotFound
	} else if err != nil {
		return err
	}
	return entities.ErrInsufficientStock
}

// ReleaseStock returns previously reserved units. Releases always succeed
// for existing products; there is no upper bound on stock.
func (r *ProductRepo) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	query, args := r.qb.Update("products").
		Set("stock", sq.Expr("stock + ?", quantity)).
		Where(sq.Eq{"product_id": productID}).
		MustSql()

	res, err := execContext(ctx, r.db, query, args...)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return entities.ErrProductNotFound
	}
	return nil
}
