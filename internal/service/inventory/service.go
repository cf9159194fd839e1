package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vharuk/ticketd/internal/domain"
	redisx "github.com/vharuk/ticketd/internal/redis"
	"github.com/vharuk/ticketd/internal/repository"
	redisrepo "github.com/vharuk/ticketd/internal/repository/redis"
	"github.com/vharuk/ticketd/internal/uow"
)

type Config struct {
	EventListTTL    time.Duration
	AvailabilityTTL time.Duration
}

// Service owns the price tier ledger: stock additions, administrative tier
// management and event catalog maintenance. Allocation consumes the tiers it
// maintains; see the purchases service for the purchase flow.
type Service struct {
	catalog repository.EventCatalog
	cache   *redisrepo.Cache
	pubsub  *redisx.StockPubSub
	uow     *uow.UoW
	logger  *slog.Logger
	cfg     Config
}

func New(
	catalog repository.EventCatalog,
	cache *redisrepo.Cache,
	pubsub *redisx.StockPubSub,
	u *uow.UoW,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.EventListTTL <= 0 {
		cfg.EventListTTL = 15 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	return &Service{
		catalog: catalog,
		cache:   cache,
		pubsub:  pubsub,
		uow:     u,
		logger:  logger,
		cfg:     cfg,
	}
}

// ResolveEvent implements the two-step event resolution policy shared by the
// purchase and cancellation flows: lookup by numeric id first, falling back
// to a case-insensitive exact name match. The fallback exists because some
// callers address events by name.
func ResolveEvent(ctx context.Context, catalog repository.EventCatalog, ref string) (*domain.Event, error) {
	ref = strings.TrimSpace(ref)

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		ev, err := catalog.FindByID(ctx, id)
		if err == nil {
			return ev, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	ev, err := catalog.FindByName(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	return ev, nil
}

// List returns all events with their tiers, read through the cache when one
// is configured.
func (s *Service) List(ctx context.Context) ([]domain.Event, error) {
	const op = "service.inventory.List"

	if s.cache == nil {
		events, err := s.catalog.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return events, nil
	}

	events, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisx.KeyEventList(),
		s.cfg.EventListTTL,
		func(ctx context.Context) ([]domain.Event, error) {
			return s.catalog.List(ctx)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return events, nil
}

// Availability returns the total remaining stock across all tiers of an
// event, read through the cache when one is configured.
func (s *Service) Availability(ctx context.Context, ref string) (int64, error) {
	const op = "service.inventory.Availability"

	ev, err := ResolveEvent(ctx, s.catalog, ref)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache == nil {
		return domain.TotalStock(ev.Tiers), nil
	}

	total, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisx.KeyEventAvailability(ev.ID),
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) (int64, error) {
			fresh, err := s.catalog.FindByID(ctx, ev.ID)
			if err != nil {
				return 0, err
			}
			return domain.TotalStock(fresh.Tiers), nil
		},
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return total, nil
}

// AddStock merges amount into the tier of the named event matching price,
// inserting the tier when absent and creating the event on first add. New
// event ids are assigned max+1 under the catalog scope.
//
// Returns:
//   - *domain.Event: the event after the addition.
//   - error: *ValidationError for a malformed name, price or amount.
func (s *Service) AddStock(ctx context.Context, name string, price decimal.Decimal, amount int64) (*domain.Event, error) {
	const op = "service.inventory.AddStock"

	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}

	if price.IsNegative() {
		return nil, &ValidationError{Field: "price", Reason: "must be non-negative"}
	}

	if amount < 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be non-negative"}
	}

	existing, err := s.catalog.FindByName(ctx, name)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var out *domain.Event

	if existing == nil {
		// Creation assigns the next id, so it holds the catalog scope.
		err = s.uow.Do(ctx, []string{uow.ScopeEvents}, func(ctx context.Context, after func(uow.AfterCommit)) error {
			// Re-check under the lock; the name may have appeared meanwhile.
			if ev, err := s.catalog.FindByName(ctx, name); err == nil {
				out = ev
				out.Tiers = domain.AddStock(out.Tiers, price, amount)
				return s.saveAndNotify(ctx, out, after)
			} else if !errors.Is(err, repository.ErrNotFound) {
				return err
			}

			events, err := s.catalog.List(ctx)
			if err != nil {
				return err
			}

			var maxID int64
			for _, ev := range events {
				if ev.ID > maxID {
					maxID = ev.ID
				}
			}

			out = &domain.Event{
				ID:    maxID + 1,
				Name:  strings.TrimSpace(name),
				Tiers: []domain.PriceTier{{Price: price, Stock: amount}},
			}

			return s.saveAndNotify(ctx, out, after)
		})
	} else {
		err = s.uow.Do(ctx, []string{uow.EventScope(existing.ID)}, func(ctx context.Context, after func(uow.AfterCommit)) error {
			ev, err := s.catalog.FindByID(ctx, existing.ID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrEventNotFound
				}
				return err
			}

			ev.Tiers = domain.AddStock(ev.Tiers, price, amount)
			out = ev

			return s.saveAndNotify(ctx, ev, after)
		})
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// UpdateEvent renames an event and/or changes its tiers. When tiers is
// non-nil it is an administrative full replacement: entries are normalized
// (negative stock clamped to zero, duplicate prices merged, sorted
// ascending) and the change is allowed to break stock conservation, which is
// why it is logged loudly. Otherwise, when price and amount are given, they
// are merged like AddStock.
func (s *Service) UpdateEvent(
	ctx context.Context,
	id int64,
	name string,
	tiers []domain.PriceTier,
	price *decimal.Decimal,
	amount *int64,
) (*domain.Event, error) {
	const op = "service.inventory.UpdateEvent"

	if id <= 0 {
		return nil, &ValidationError{Field: "id", Reason: "required"}
	}

	var out *domain.Event

	err := s.uow.Do(ctx, []string{uow.EventScope(id)}, func(ctx context.Context, after func(uow.AfterCommit)) error {
		ev, err := s.catalog.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		if trimmed := strings.TrimSpace(name); trimmed != "" {
			ev.Name = trimmed
		}

		switch {
		case tiers != nil:
			ev.Tiers = domain.NormalizeTiers(tiers)
			s.logger.Warn("administrative tier replacement, conservation not enforced",
				"event_id", ev.ID, "tiers", len(ev.Tiers))
		case price != nil && amount != nil:
			ev.Tiers = domain.AddStock(ev.Tiers, *price, *amount)
		}

		out = ev

		return s.saveAndNotify(ctx, ev, after)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// DeleteEvent removes an event from the catalog. Purchases referencing it
// survive; cancellation reconciles by recreating tiers as needed.
func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	const op = "service.inventory.DeleteEvent"

	if id <= 0 {
		return &ValidationError{Field: "id", Reason: "required"}
	}

	err := s.uow.Do(ctx, []string{uow.ScopeEvents, uow.EventScope(id)}, func(ctx context.Context, after func(uow.AfterCommit)) error {
		if err := s.catalog.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		if s.cache != nil {
			after(func(ctx context.Context) {
				_ = s.cache.InvalidateEvent(ctx, id)
			})
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) saveAndNotify(ctx context.Context, ev *domain.Event, after func(uow.AfterCommit)) error {
	if err := s.catalog.Save(ctx, ev); err != nil {
		return err
	}

	eventID := ev.ID
	after(func(ctx context.Context) {
		if s.cache != nil {
			_ = s.cache.InvalidateEvent(ctx, eventID)
		}
		if s.pubsub != nil {
			_ = s.pubsub.PublishStockChanged(ctx, eventID)
		}
	})

	return nil
}
