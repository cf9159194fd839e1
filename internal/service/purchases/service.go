package purchases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vharuk/ticketd/internal/domain"
	redisx "github.com/vharuk/ticketd/internal/redis"
	"github.com/vharuk/ticketd/internal/repository"
	redisrepo "github.com/vharuk/ticketd/internal/repository/redis"
	"github.com/vharuk/ticketd/internal/service/inventory"
	"github.com/vharuk/ticketd/internal/uow"
)

// Service owns the purchase ledger and the purchase/cancellation flows. A
// purchase allocates stock from the event's tiers and appends a reversible
// record; cancellation restores exactly what was taken.
type Service struct {
	catalog repository.EventCatalog
	store   repository.PurchaseStore
	cache   *redisrepo.Cache
	pubsub  *redisx.StockPubSub
	limiter *redisrepo.SlidingWindowLimiter
	uow     *uow.UoW
	logger  *slog.Logger
	now     func() time.Time
}

func New(
	catalog repository.EventCatalog,
	store repository.PurchaseStore,
	cache *redisrepo.Cache,
	pubsub *redisx.StockPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	u *uow.UoW,
	logger *slog.Logger,
) *Service {
	return &Service{
		catalog: catalog,
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		uow:     u,
		logger:  logger,
		now:     time.Now,
	}
}

// Purchase allocates quantity tickets from the event addressed by ref (id,
// or name as a fallback) and appends the purchase record. Allocation and
// record creation form one unit of work under the event's scope and the
// ledger scope, so no two purchases against the same event interleave and
// ledger ids stay strictly monotonic.
//
// Returns:
//   - *domain.Purchase: the recorded purchase with its breakdown and total.
//   - error: *inventory.ValidationError for a non-positive quantity.
//   - error: inventory.ErrEventNotFound if ref resolves to nothing.
//   - error: *domain.InsufficientStockError when the dry run comes up short;
//     no tier is mutated in that case.
//   - error: ErrRateLimited when the caller exceeded the purchase window.
func (s *Service) Purchase(ctx context.Context, ref string, quantity int64, rlKey string) (*domain.Purchase, error) {
	const op = "service.purchases.Purchase"

	if strings.TrimSpace(ref) == "" {
		return nil, &inventory.ValidationError{Field: "eventId", Reason: "required"}
	}

	if quantity < 1 {
		return nil, &inventory.ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w: retry in %s", op, ErrRateLimited, retry)
		}
	}

	resolved, err := inventory.ResolveEvent(ctx, s.catalog, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var record *domain.Purchase

	err = s.uow.Do(ctx,
		[]string{uow.EventScope(resolved.ID), uow.ScopePurchases},
		func(ctx context.Context, after func(uow.AfterCommit)) error {
			ev, err := s.catalog.FindByID(ctx, resolved.ID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return inventory.ErrEventNotFound
				}
				return err
			}

			originalTiers := domain.CloneTiers(ev.Tiers)

			breakdown, updated, err := domain.Allocate(ev.Tiers, quantity)
			if err != nil {
				return err
			}

			ev.Tiers = updated
			if err := s.catalog.Save(ctx, ev); err != nil {
				return fmt.Errorf("%w: %w", ErrPersistence, err)
			}

			rec, err := s.record(ctx, ev, quantity, breakdown)
			if err != nil {
				// The stock decrement is already durable; undo it so the
				// failed purchase leaves nothing behind.
				ev.Tiers = originalTiers
				if rbErr := s.catalog.Save(ctx, ev); rbErr != nil {
					s.logger.Error("stock rollback failed after ledger write error",
						"event_id", ev.ID, "error", rbErr)
				}
				return fmt.Errorf("%w: %w", ErrPersistence, err)
			}

			record = rec

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
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return record, nil
}

// record appends a purchase to the ledger. Ids are assigned max+1 (1 when
// the ledger is empty) and stay strictly monotonic even when earlier records
// are edited or removed elsewhere, because removal never reuses ids within
// one ledger generation and assignment always scans the full array.
func (s *Service) record(
	ctx context.Context,
	ev *domain.Event,
	quantity int64,
	breakdown []domain.BreakdownLine,
) (*domain.Purchase, error) {
	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	var maxID int64
	for _, p := range all {
		if p.ID > maxID {
			maxID = p.ID
		}
	}

	rec := domain.Purchase{
		ID:        maxID + 1,
		Timestamp: s.now().UnixMilli(),
		EventID:   ev.ID,
		EventName: ev.Name,
		Quantity:  quantity,
		Breakdown: breakdown,
		Total:     domain.BreakdownTotal(breakdown),
	}

	all = append(all, rec)

	if err := s.store.SaveAll(ctx, all); err != nil {
		return nil, err
	}

	return &rec, nil
}

// Filter narrows a purchase query. Zero values mean "no constraint".
type Filter struct {
	Text      string // substring of event name or purchase id, case-insensitive
	EventName string // exact event name, case-insensitive
	From      int64  // inclusive lower bound, epoch ms
	To        int64  // inclusive upper bound, epoch ms
}

// Query returns purchases matching the filter, newest first. Pure read-side
// projection; nothing is mutated.
func (s *Service) Query(ctx context.Context, f Filter) ([]domain.Purchase, error) {
	const op = "service.purchases.Query"

	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	text := strings.ToLower(strings.TrimSpace(f.Text))
	eventName := strings.ToLower(strings.TrimSpace(f.EventName))

	out := make([]domain.Purchase, 0, len(all))
	for _, p := range all {
		if text != "" {
			inName := strings.Contains(strings.ToLower(p.EventName), text)
			inID := strings.Contains(strconv.FormatInt(p.ID, 10), text)
			if !inName && !inID {
				continue
			}
		}

		if eventName != "" && strings.ToLower(p.EventName) != eventName {
			continue
		}

		if f.From != 0 && p.Timestamp < f.From {
			continue
		}

		if f.To != 0 && p.Timestamp > f.To {
			continue
		}

		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

// relockAttempts bounds how often Cancel re-acquires locks when event
// resolution changes between the unlocked peek and the locked re-read.
const relockAttempts = 3

// Cancel reverses a purchase: restores the consumed stock to the originating
// event's tiers and marks the record cancelled. A second cancellation of the
// same purchase is an error, not a no-op, so a caller cannot accidentally
// double-restock. Restoration and the record update commit together; if the
// ledger write fails the tier restoration is rolled back.
//
// The event scope to lock comes from resolving the record outside the locks,
// not from the record's snapshotted event id: when the original event was
// deleted and its name reused, restoration targets the successor event, so
// that is the tier list the lock must cover. Resolution is verified again
// under the locks; if it moved in between, Cancel releases and retries with
// the fresh scope.
//
// Returns:
//   - error: ErrPurchaseNotFound for an unknown id.
//   - error: ErrAlreadyCancelled when the record is already cancelled.
func (s *Service) Cancel(ctx context.Context, purchaseID int64) error {
	const op = "service.purchases.Cancel"

	if purchaseID <= 0 {
		return &inventory.ValidationError{Field: "id", Reason: "required"}
	}

	for attempt := 0; attempt < relockAttempts; attempt++ {
		peek, err := s.findByID(ctx, purchaseID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		target := peek.EventID
		if ev, resolveErr := s.resolveForCancel(ctx, peek); resolveErr == nil {
			target = ev.ID
		} else if !errors.Is(resolveErr, inventory.ErrEventNotFound) {
			return fmt.Errorf("%s: %w", op, resolveErr)
		}

		done, err := s.cancelLocked(ctx, purchaseID, target)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if done {
			return nil
		}
	}

	return fmt.Errorf("%s: event resolution kept changing for purchase %d", op, purchaseID)
}

// cancelLocked performs the cancellation under the ledger scope and the scope
// of eventID, the event resolution chose before locking. It reports done =
// false, without touching any state, when resolution under the locks lands on
// a different event than the one locked.
func (s *Service) cancelLocked(ctx context.Context, purchaseID, eventID int64) (bool, error) {
	done := true

	scopes := []string{uow.ScopePurchases, uow.EventScope(eventID)}

	err := s.uow.Do(ctx, scopes, func(ctx context.Context, after func(uow.AfterCommit)) error {
		all, err := s.store.LoadAll(ctx)
		if err != nil {
			return err
		}

		idx := -1
		for i := range all {
			if all[i].ID == purchaseID {
				idx = i
				break
			}
		}

		if idx == -1 {
			return ErrPurchaseNotFound
		}

		if all[idx].Cancelled {
			return ErrAlreadyCancelled
		}

		// Mirror the purchase flow's resolution policy: by id, then by the
		// snapshotted name. The event may have been deleted since purchase;
		// in that case there is nothing to restore into and the record is
		// still cancelled.
		ev, resolveErr := s.resolveForCancel(ctx, &all[idx])

		if resolveErr == nil && ev.ID != eventID {
			// Resolution moved between the peek and lock acquisition. The
			// held event scope does not cover the tier list about to change;
			// back out and relock on the fresh id.
			done = false
			return nil
		}

		var originalTiers []domain.PriceTier
		if resolveErr == nil {
			originalTiers = domain.CloneTiers(ev.Tiers)
			ev.Tiers = domain.RestoreBreakdown(ev.Tiers, all[idx].Breakdown)
			if err := s.catalog.Save(ctx, ev); err != nil {
				return fmt.Errorf("%w: %w", ErrPersistence, err)
			}
		} else if !errors.Is(resolveErr, inventory.ErrEventNotFound) {
			return resolveErr
		} else {
			s.logger.Warn("cancelling purchase for deleted event, stock not restored",
				"purchase_id", purchaseID, "event_name", all[idx].EventName)
		}

		all[idx].Cancelled = true
		all[idx].CancelledAt = s.now().UnixMilli()

		if err := s.store.SaveAll(ctx, all); err != nil {
			if resolveErr == nil {
				ev.Tiers = originalTiers
				if rbErr := s.catalog.Save(ctx, ev); rbErr != nil {
					s.logger.Error("tier rollback failed after ledger write error",
						"event_id", ev.ID, "error", rbErr)
				}
			}
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}

		if resolveErr == nil {
			restoredID := ev.ID
			after(func(ctx context.Context) {
				if s.cache != nil {
					_ = s.cache.InvalidateEvent(ctx, restoredID)
				}
				if s.pubsub != nil {
					_ = s.pubsub.PublishStockChanged(ctx, restoredID)
				}
			})
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return done, nil
}

func (s *Service) findByID(ctx context.Context, id int64) (*domain.Purchase, error) {
	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}

	return nil, ErrPurchaseNotFound
}

func (s *Service) resolveForCancel(ctx context.Context, p *domain.Purchase) (*domain.Event, error) {
	ev, err := s.catalog.FindByID(ctx, p.EventID)
	if err == nil {
		return ev, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	return inventory.ResolveEvent(ctx, s.catalog, p.EventName)
}
