package service

import (
	"context"
	"time"

	"spot_bot/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const pgSchema = `CREATE TABLE IF NOT EXISTS stop_loss_state (
	key        TEXT PRIMARY KEY,
	stop_loss  NUMERIC NOT NULL CHECK (stop_loss >= 0),
	updated_at TIMESTAMPTZ NOT NULL
)`

// Postgres keeps one row per key; the upsert is a single statement inside a
// transaction, so readers see either the old or the new value.
type Postgres struct {
	tx  db.TxManager
	key string
}

func NewPostgres(tx db.TxManager, key string) *Postgres {
	return &Postgres{tx: tx, key: key}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	return p.tx.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, pgSchema)
		return err
	})
}

func (p *Postgres) Load(ctx context.Context) (decimal.Decimal, error) {
	var raw string
	err := p.tx.RunRepeatableRead(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		return tx.QueryRow(ctxTx,
			`SELECT stop_loss::text FROM stop_loss_state WHERE key = $1`, p.key,
		).Scan(&raw)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, corrupt("no stop-loss row for key %q", p.key)
	}
	if err != nil {
		return decimal.Zero, corrupt("select stop-loss: %v", err)
	}
	return parseStopLoss(raw)
}

func (p *Postgres) Save(ctx context.Context, stopLoss decimal.Decimal) error {
	if err := checkWritable(stopLoss); err != nil {
		return err
	}
	err := p.tx.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO stop_loss_state (key, stop_loss, updated_at) VALUES ($1, $2::numeric, $3)
			 ON CONFLICT (key) DO UPDATE SET stop_loss = EXCLUDED.stop_loss, updated_at = EXCLUDED.updated_at`,
			p.key, stopLoss.String(), time.Now().UTC(),
		)
		return err
	})
	if err != nil {
		return writeFailed("upsert stop-loss: %v", err)
	}
	return nil
}

func (p *Postgres) Init(ctx context.Context) (bool, error) {
	if err := p.Migrate(ctx); err != nil {
		return false, writeFailed("migrate: %v", err)
	}
	var inserted bool
	err := p.tx.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		tag, err := tx.Exec(ctxTx,
			`INSERT INTO stop_loss_state (key, stop_loss, updated_at) VALUES ($1, 0, $2)
			 ON CONFLICT (key) DO NOTHING`,
			p.key, time.Now().UTC(),
		)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, writeFailed("init stop-loss row: %v", err)
	}
	return inserted, nil
}

func (p *Postgres) Close() error {
	if c, ok := p.tx.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}
