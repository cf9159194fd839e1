package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vharuk/ticketd/internal/domain"
	"github.com/vharuk/ticketd/internal/repository"
)

type EventRepo struct {
	pool  *pgxpool.Pool
	store *Store
	db    DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *EventRepo) List(ctx context.Context) ([]domain.Event, error) {
	const op = "postgres.EventRepo.List"

	rows, err := r.handle().Query(ctx,
		`SELECT id, name, tiers
		 FROM events
		 ORDER BY id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e     domain.Event
			tiers []byte
		)
		if err := rows.Scan(&e.ID, &e.Name, &tiers); err != nil {
			return nil, wrapDBErr(op, err)
		}
		if err := json.Unmarshal(tiers, &e.Tiers); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return events, nil
}

func (r *EventRepo) FindByID(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgres.EventRepo.FindByID"

	return r.findOne(ctx, op,
		`SELECT id, name, tiers FROM events WHERE id = $1`, id)
}

func (r *EventRepo) FindByName(ctx context.Context, name string) (*domain.Event, error) {
	const op = "postgres.EventRepo.FindByName"

	return r.findOne(ctx, op,
		`SELECT id, name, tiers FROM events WHERE lower(trim(name)) = lower(trim($1))`, name)
}

func (r *EventRepo) findOne(ctx context.Context, op, sql string, arg any) (*domain.Event, error) {
	var (
		e     domain.Event
		tiers []byte
	)

	if err := r.handle().QueryRow(ctx, sql, arg).Scan(&e.ID, &e.Name, &tiers); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if err := json.Unmarshal(tiers, &e.Tiers); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &e, nil
}

func (r *EventRepo) Save(ctx context.Context, event *domain.Event) error {
	const op = "postgres.EventRepo.Save"

	tiers, err := json.Marshal(event.Tiers)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := r.handle().Exec(ctx,
		`INSERT INTO events(id, name, tiers)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, tiers = EXCLUDED.tiers`,
		event.ID, event.Name, tiers,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *EventRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgres.EventRepo.Delete"

	tag, err := r.handle().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}
