package purchases

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vharuk/ticketd/internal/domain"
	"github.com/vharuk/ticketd/internal/repository"
	"github.com/vharuk/ticketd/internal/repository/jsonfile"
	"github.com/vharuk/ticketd/internal/service/inventory"
	"github.com/vharuk/ticketd/internal/uow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, repository.EventCatalog, repository.PurchaseStore) {
	t.Helper()

	store, err := jsonfile.NewStore(t.TempDir())
	require.NoError(t, err)

	catalog := store.Events()
	purchaseStore := store.Purchases()

	svc := New(catalog, purchaseStore, nil, nil, nil, uow.New(), testLogger())

	return svc, catalog, purchaseStore
}

func seedEvent(t *testing.T, catalog repository.EventCatalog, id int64, name string, tiers ...domain.PriceTier) {
	t.Helper()
	require.NoError(t, catalog.Save(context.Background(), &domain.Event{ID: id, Name: name, Tiers: tiers}))
}

func tier(price string, stock int64) domain.PriceTier {
	return domain.PriceTier{Price: decimal.RequireFromString(price), Stock: stock}
}

func TestPurchase_AllocatesCheapestFirst(t *testing.T) {
	svc, catalog, _ := newTestService(t)
	ctx := context.Background()

	seedEvent(t, catalog, 1, "Jazz Night", tier("5", 2), tier("10", 3), tier("20", 5))

	rec, err := svc.Purchase(ctx, "1", 4, "")
	require.NoError(t, err)

	require.Len(t, rec.Breakdown, 2)
	assert.True(t, rec.Breakdown[0].Price.Equal(decimal.RequireFromString("5")))
	assert.EqualValues(t, 2, rec.Breakdown[0].Count)
	assert.True(t, rec.Breakdown[1].Price.Equal(decimal.RequireFromString("10")))
	assert.EqualValues(t, 2, rec.Breakdown[1].Count)
	assert.True(t, rec.Total.Equal(decimal.RequireFromString("30")))

	ev, err := catalog.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, ev.Tiers[0].Stock)
	assert.EqualValues(t, 1, ev.Tiers[1].Stock)
	assert.EqualValues(t, 5, ev.Tiers[2].Stock)
}

func TestPurchase_ByNameFallback(t *testing.T) {
	svc, catalog, _ := newTestService(t)

	seedEvent(t, catalog, 1, "Jazz Night", tier("10", 5))

	rec, err := svc.Purchase(context.Background(), "jazz night", 1, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.EventID)
	assert.Equal(t, "Jazz Night", rec.EventName)
}

func TestPurchase_InsufficientStockTakesNothing(t *testing.T) {
	svc, catalog, store := newTestService(t)
	ctx := context.Background()

	seedEvent(t, catalog, 1, "Jazz Night", tier("5", 2), tier("10", 1))

	_, err := svc.Purchase(ctx, "1", 4, "")

	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.EqualValues(t, 3, ise.Available)

	ev, err := catalog.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, domain.TotalStock(ev.Tiers))

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "failed purchase must not reach the ledger")
}

func TestPurchase_UnknownEvent(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Purchase(context.Background(), "nope", 1, "")
	assert.ErrorIs(t, err, inventory.ErrEventNotFound)
}

func TestPurchase_InvalidQuantity(t *testing.T) {
	svc, catalog, _ := newTestService(t)
	seedEvent(t, catalog, 1, "Jazz Night", tier("10", 5))

	_, err := svc.Purchase(context.Background(), "1", 0, "")
	assert.True(t, inventory.IsValidation(err))

	_, err = svc.Purchase(context.Background(), "1", -3, "")
	assert.True(t, inventory.IsValidation(err))
}

func TestPurchase_IDsAreMaxPlusOne(t *testing.T) {
	svc, catalog, store := newTestService(t)
	ctx := context.Background()

	seedEvent(t, catalog, 1, "Jazz Night", tier("10", 100))

	first, err := svc.Purchase(ctx, "1", 1, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.ID)

	second, err := svc.Purchase(ctx, "1", 1, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.ID)

	// Dropping the highest record and purchasing again reuses its id; the
	// assignment scans the surviving records.
	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SaveAll(ctx, all[:1]))

	third, err := svc.Purchase(ctx, "1", 1, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, third.ID)
}

// failingPurchaseStore delegates reads and fails every write.
type failingPurchaseStore struct {
	inner repository.PurchaseStore
}

func (f *failingPurchaseStore) LoadAll(ctx context.Context) ([]domain.Purchase, error) {
	return f.inner.LoadAll(ctx)
}

func (f *failingPurchaseStore) SaveAll(ctx context.Context, purchases []domain.Purchase) error {
	return errors.New("disk full")
}

func TestPurchase_LedgerWriteFailureRollsBackStock(t *testing.T) {
	store, err := jsonfile.NewStore(t.TempDir())
	require.NoError(t, err)

	catalog := store.Events()
	failing := &failingPurchaseStore{inner: store.Purchases()}
	svc := New(catalog, failing, nil, nil, nil, uow.New(), testLogger())
	ctx := context.Background()

	seedEvent(t, catalog, 1, "Jazz Night", tier("10", 5))

	_, err = svc.Purchase(ctx, "1", 2, "")
	require.ErrorIs(t, err, ErrPersistence)

	ev, err := catalog.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 5, domain.TotalStock(ev.Tiers), "stock decrement must be undone")
}

func TestCancel_RestoresStock(t *testing.T) {
	svc, catalog, store := newTestService(t)
	ctx := context.Background()

	seedEvent(t, catalog, 1, "Jazz Night", tier("5", 2), tier("10", 3))

	rec, err := svc.Purchase(ctx, "1", 4, "")
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, rec.ID))

	ev, err := catalog.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ev.Tiers[0].Stock)
	assert.EqualValues(t, 3, ev.Tiers[1].Stock)

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Cancelled)
	assert.NotZero(t, all[0].CancelledAt)
}

func TestCancel_SecondCancelRejected(t *testing.T) {
	svc, catalog, _ := newTestService(t)
	ctx := context.Background()

	seedEvent(t, catalog, 1, "Jazz Night", tier("10", 5))

	rec, err := svc.Purchase(ctx, "1", 2, "")
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, rec.ID))
	err = svc.Cancel(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	// The rejected second cancel must not double-restore.
	ev, err := catalog.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 5, domain.TotalStock(ev.Tiers))
}

func TestCancel_RecreatesDeletedTier(t *testing.T) {
	svc, catalog, _ := newTestService(t)
	ctx := context.Background()

	seedEvent(t, catalog, 1, "Jazz Night", tier("5", 2), tier("10", 3))

	rec, err := svc.Purchase(ctx, "1", 2, "")
	require.NoError(t, err)

	// An admin replaces the tier list while the purchase is outstanding.
	ev, err := catalog.FindByID(ctx, 1)
	require.NoError(t, err)
	ev.Tiers = []domain.PriceTier{tier("10", 3)}
	require.NoError(t, catalog.Save(ctx, ev))

	require.NoError(t, svc.Cancel(ctx, rec.ID))

	ev, err = catalog.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ev.Tiers, 2)
	assert.True(t, ev.Tiers[0].Price.Equal(decimal.RequireFromString("5")))
	assert.EqualValues(t, 2, ev.Tiers[0].Stock, "missing tier recreated with restored stock")
}

func TestCancel_RestoresIntoRecreatedEventWithSameName(t *testing.T) {
	svc, catalog, store := newTestService(t)
	ctx := context.Background()

	seedEvent(t, catalog, 1, "Jazz Night", tier("10", 5))

	rec, err := svc.Purchase(ctx, "1", 2, "")
	require.NoError(t, err)

	// The event is deleted and its name reused under a new id.
	require.NoError(t, catalog.Delete(ctx, 1))
	seedEvent(t, catalog, 5, "Jazz Night", tier("20", 1))

	require.NoError(t, svc.Cancel(ctx, rec.ID))

	// Restoration lands on the successor event.
	successor, err := catalog.FindByID(ctx, 5)
	require.NoError(t, err)
	require.Len(t, successor.Tiers, 2)
	assert.True(t, successor.Tiers[0].Price.Equal(decimal.RequireFromString("10")))
	assert.EqualValues(t, 2, successor.Tiers[0].Stock)
	assert.EqualValues(t, 1, successor.Tiers[1].Stock)

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.True(t, all[0].Cancelled)
}

// renamedCatalog serves a stale successor event on the first name lookup and
// the real one afterwards, so the scope chosen before locking goes stale.
type renamedCatalog struct {
	inner       repository.EventCatalog
	nameLookups int
	stale       *domain.Event
}

func (c *renamedCatalog) List(ctx context.Context) ([]domain.Event, error) {
	return c.inner.List(ctx)
}

func (c *renamedCatalog) FindByID(ctx context.Context, id int64) (*domain.Event, error) {
	return c.inner.FindByID(ctx, id)
}

func (c *renamedCatalog) FindByName(ctx context.Context, name string) (*domain.Event, error) {
	c.nameLookups++
	if c.nameLookups == 1 {
		return c.stale, nil
	}
	return c.inner.FindByName(ctx, name)
}

func (c *renamedCatalog) Save(ctx context.Context, event *domain.Event) error {
	return c.inner.Save(ctx, event)
}

func (c *renamedCatalog) Delete(ctx context.Context, id int64) error {
	return c.inner.Delete(ctx, id)
}

func TestCancel_RelocksWhenResolutionMoves(t *testing.T) {
	fileStore, err := jsonfile.NewStore(t.TempDir())
	require.NoError(t, err)

	catalog := &renamedCatalog{
		inner: fileStore.Events(),
		stale: &domain.Event{ID: 5, Name: "Jazz Night"},
	}
	svc := New(catalog, fileStore.Purchases(), nil, nil, nil, uow.New(), testLogger())
	ctx := context.Background()

	seedEvent(t, fileStore.Events(), 1, "Jazz Night", tier("10", 5))

	rec, err := svc.Purchase(ctx, "1", 2, "")
	require.NoError(t, err)

	// Delete-and-recreate: the record's event id is dead, the name now
	// belongs to event 6. The catalog reports the stale event 5 on the
	// pre-lock resolution only.
	require.NoError(t, fileStore.Events().Delete(ctx, 1))
	seedEvent(t, fileStore.Events(), 6, "Jazz Night", tier("20", 1))

	require.NoError(t, svc.Cancel(ctx, rec.ID))

	// The locked re-check saw the move from 5 to 6 and retried.
	assert.GreaterOrEqual(t, catalog.nameLookups, 3)

	restored, err := fileStore.Events().FindByID(ctx, 6)
	require.NoError(t, err)
	require.Len(t, restored.Tiers, 2)
	assert.EqualValues(t, 2, restored.Tiers[0].Stock, "restoration written to the event that was actually locked")
}

func TestCancel_DeletedEventStillCancelsRecord(t *testing.T) {
	svc, catalog, store := newTestService(t)
	ctx := context.Background()

	seedEvent(t, catalog, 1, "Jazz Night", tier("10", 5))

	rec, err := svc.Purchase(ctx, "1", 2, "")
	require.NoError(t, err)

	require.NoError(t, catalog.Delete(ctx, 1))

	require.NoError(t, svc.Cancel(ctx, rec.ID))

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.True(t, all[0].Cancelled)
}

func TestCancel_UnknownPurchase(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Cancel(context.Background(), 99)
	assert.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestQuery_FiltersAndOrders(t *testing.T) {
	svc, catalog, _ := newTestService(t)
	ctx := context.Background()

	seedEvent(t, catalog, 1, "Jazz Night", tier("10", 100))
	seedEvent(t, catalog, 2, "Rock Gala", tier("20", 100))

	base := time.UnixMilli(1700000000000)
	ts := base
	svc.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}

	_, err := svc.Purchase(ctx, "1", 1, "")
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, "2", 1, "")
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, "1", 2, "")
	require.NoError(t, err)

	all, err := svc.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.EqualValues(t, 3, all[0].ID, "newest first")
	assert.EqualValues(t, 1, all[2].ID)

	jazz, err := svc.Query(ctx, Filter{EventName: "jazz night"})
	require.NoError(t, err)
	assert.Len(t, jazz, 2)

	byText, err := svc.Query(ctx, Filter{Text: "rock"})
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, "Rock Gala", byText[0].EventName)

	byID, err := svc.Query(ctx, Filter{Text: "3"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.EqualValues(t, 3, byID[0].ID)

	ranged, err := svc.Query(ctx, Filter{
		From: base.Add(2 * time.Second).UnixMilli(),
		To:   base.Add(2 * time.Second).UnixMilli(),
	})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.EqualValues(t, 2, ranged[0].ID)
}

func TestPurchase_ConservationAcrossFlows(t *testing.T) {
	svc, catalog, _ := newTestService(t)
	ctx := context.Background()

	seedEvent(t, catalog, 1, "Jazz Night", tier("5", 10), tier("10", 10))

	r1, err := svc.Purchase(ctx, "1", 7, "")
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, "1", 4, "")
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, r1.ID))

	ev, err := catalog.FindByID(ctx, 1)
	require.NoError(t, err)

	// initial 20 = remaining + 4 still sold
	assert.EqualValues(t, 16, domain.TotalStock(ev.Tiers))
}
