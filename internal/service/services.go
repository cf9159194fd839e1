package service

import (
	"log/slog"

	redisx "github.com/vharuk/ticketd/internal/redis"
	"github.com/vharuk/ticketd/internal/repository"
	redisrepo "github.com/vharuk/ticketd/internal/repository/redis"
	"github.com/vharuk/ticketd/internal/service/inventory"
	"github.com/vharuk/ticketd/internal/service/purchases"
	"github.com/vharuk/ticketd/internal/service/users"
	"github.com/vharuk/ticketd/internal/uow"
)

type Services struct {
	Inventory *inventory.Service
	Purchases *purchases.Service
	Users     *users.Service
}

type Config struct {
	Inventory  inventory.Config
	BcryptCost int
}

// NewServices wires the service layer over the injected stores. The cache,
// pubsub and limiter are optional and may be nil. All services share one
// unit of work so scope locks compose across flows.
func NewServices(
	catalog repository.EventCatalog,
	purchaseStore repository.PurchaseStore,
	userDir repository.UserDirectory,
	cache *redisrepo.Cache,
	pubsub *redisx.StockPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
) *Services {
	u := uow.New()

	return &Services{
		Inventory: inventory.New(catalog, cache, pubsub, u, logger, cfg.Inventory),
		Purchases: purchases.New(catalog, purchaseStore, cache, pubsub, limiter, u, logger),
		Users:     users.New(userDir, u, cfg.BcryptCost),
	}
}
