package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vharuk/ticketd/internal/domain"
)

type PurchaseRepo struct {
	pool  *pgxpool.Pool
	store *Store
	db    DB
}

func (r *PurchaseRepo) With(db DB) *PurchaseRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PurchaseRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *PurchaseRepo) LoadAll(ctx context.Context) ([]domain.Purchase, error) {
	const op = "postgres.PurchaseRepo.LoadAll"

	rows, err := r.handle().Query(ctx,
		`SELECT id, ts, event_id, event_name, quantity, breakdown, total, cancelled, cancelled_at
		 FROM purchases
		 ORDER BY id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		var (
			p         domain.Purchase
			breakdown []byte
		)
		if err := rows.Scan(
			&p.ID, &p.Timestamp, &p.EventID, &p.EventName,
			&p.Quantity, &breakdown, &p.Total, &p.Cancelled, &p.CancelledAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		if err := json.Unmarshal(breakdown, &p.Breakdown); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		purchases = append(purchases, p)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return purchases, nil
}

// SaveAll replaces the whole ledger in one serializable transaction, keeping
// the same whole-array contract as the JSON-file store. The ledger is small
// and single-writer; the simple replace beats a diffing upsert here.
func (r *PurchaseRepo) SaveAll(ctx context.Context, purchases []domain.Purchase) error {
	const op = "postgres.PurchaseRepo.SaveAll"

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		if _, err := tx.Exec(ctx, `DELETE FROM purchases`); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, p := range purchases {
			breakdown, err := json.Marshal(p.Breakdown)
			if err != nil {
				return err
			}
			batch.Queue(
				`INSERT INTO purchases(id, ts, event_id, event_name, quantity, breakdown, total, cancelled, cancelled_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				p.ID, p.Timestamp, p.EventID, p.EventName,
				p.Quantity, breakdown, p.Total, p.Cancelled, p.CancelledAt,
			)
		}

		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
