package repo

import (
	"context"
	"database/sql"

	"shopflow-backend/pkg/trm"

	"github.com/jmoiron/sqlx"
)

// Helpers below route queries through the transaction bound to the context,
// if any, so repos take part in service-level transactions transparently.

func execContext(ctx context.Context, db *sqlx.DB, query string, args ...any) (sql.Result, error) {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func getContext(ctx context.Context, db *sqlx.DB, dest any, query string, args ...any) error {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return db.GetContext(ctx, dest, query, args...)
}

func selectContext(ctx context.Context, db *sqlx.DB, dest any, query string, args ...any) error {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return db.SelectContext(ctx, dest, query, args...)
}
