// Package postgres implements gateway.Gateway on the remote PostgreSQL order
// store using pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/possync/internal/gateway"
	"github.com/roach88/possync/internal/invoice"
)

//go:embed schema.sql
var schemaSQL string

const (
	codeUniqueViolation = "23505"

	constraintOrdersPkey    = "orders_pkey"
	constraintInvoiceUnique = "orders_invoice_number_key"
)

// Gateway talks to the remote order store through a connection pool.
type Gateway struct {
	pool *pgxpool.Pool
	flow *gateway.PaymentFlow
}

var (
	_ gateway.Gateway        = (*Gateway)(nil)
	_ gateway.Pinger         = (*Gateway)(nil)
	_ gateway.PaymentBackend = (*Gateway)(nil)
	_ invoice.Source         = (*Gateway)(nil)
)

type options struct {
	allocOpts []invoice.Option
	policy    gateway.RetryPolicy
}

// Option configures a Gateway.
type Option func(*options)

// WithAllocatorOptions passes options to the invoice allocator.
func WithAllocatorOptions(opts ...invoice.Option) Option {
	return func(o *options) { o.allocOpts = append(o.allocOpts, opts...) }
}

// WithRetryPolicy sets the apply-payment retry budget.
func WithRetryPolicy(p gateway.RetryPolicy) Option {
	return func(o *options) { o.policy = p }
}

// Connect opens a pool on dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Gateway, error) {
	g, err := Open(ctx, dsn, opts...)
	if err != nil {
		return nil, err
	}
	if err := g.Ping(ctx); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// Open creates a pool on dsn without connecting, so a terminal can start
// while the remote store is down.
func Open(ctx context.Context, dsn string, opts ...Option) (*Gateway, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return New(pool, opts...), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) *Gateway {
	o := options{policy: gateway.DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(&o)
	}
	g := &Gateway{pool: pool}
	g.flow = gateway.NewPaymentFlow(g, invoice.NewAllocator(g, o.allocOpts...), o.policy)
	return g
}

// Close releases the pool.
func (g *Gateway) Close() {
	if g != nil && g.pool != nil {
		g.pool.Close()
	}
}

// Ping reports whether the store is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.pool.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Migrate creates the schema if it does not exist.
func (g *Gateway) Migrate(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, schemaSQL); err != nil {
		return classify("migrate", err)
	}
	return nil
}

// classify maps driver errors onto the gateway taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, gateway.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == codeUniqueViolation {
			switch pgErr.ConstraintName {
			case constraintInvoiceUnique:
				return fmt.Errorf("%s: %w", op, gateway.ErrInvoiceConflict)
			case constraintOrdersPkey:
				return fmt.Errorf("%s: %w", op, gateway.ErrDuplicateOrder)
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %w", op, gateway.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
