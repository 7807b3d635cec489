package pipeline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/idealinvestse/shoppi-shop-finder/models"
)

const insertProductSQL = `INSERT INTO products
	(shop_name, product_name, price, stock, discovered_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (shop_name, product_name) DO NOTHING`

// PostgresWriter sinks the catalog into a single products table. Inserts are
// batched and idempotent on (shop_name, product_name).
type PostgresWriter struct {
	pool *pgxpool.Pool
	ctx  context.Context
}

// NewPostgresWriter connects a pool to dsn. With viaBouncer set, the simple
// protocol is used so PgBouncer transaction pooling works.
func NewPostgresWriter(ctx context.Context, dsn string, maxConns int, viaBouncer bool) (*PostgresWriter, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	if viaBouncer {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresWriter{pool: pool, ctx: ctx}, nil
}

// Write inserts products in one batch round-trip.
func (pw *PostgresWriter) Write(products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(insertProductSQL, productRowArgs(p)...)
	}

	results := pw.pool.SendBatch(pw.ctx, batch)
	defer results.Close()
	for range products {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert product batch: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (pw *PostgresWriter) Close() error {
	pw.pool.Close()
	return nil
}

// Validate pings the database.
func (pw *PostgresWriter) Validate() error {
	if err := pw.pool.Ping(pw.ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// productRowArgs maps a product onto the insert placeholders.
func productRowArgs(p *models.Product) []any {
	return []any{p.ShopName, p.ProductName, p.Price, p.Stock, p.DiscoveredAt}
}
