package handlers

import (
	"tillpoint/internal/cart"
	"tillpoint/internal/config"
	"tillpoint/internal/promo"
	"tillpoint/internal/queue"
	"tillpoint/internal/sales"
	"tillpoint/internal/syncer"
)

type Deps struct {
	CartHandler   *CartHandler
	SaleHandler   *SaleHandler
	SyncHandler   *SyncHandler
	PriceHandler  *PriceHandler
	StatusHandler *StatusHandler
}

func NewDeps(cfg config.Config, engine *cart.Engine, q *queue.Service, driver *syncer.Driver, saleSvc *sales.Service, promos *promo.Cache) *Deps {
	return &Deps{
		CartHandler:   &CartHandler{Engine: engine},
		SaleHandler:   &SaleHandler{Sales: saleSvc},
		SyncHandler:   &SyncHandler{Queue: q, Driver: driver},
		PriceHandler:  &PriceHandler{Promos: promos},
		StatusHandler: &StatusHandler{Queue: q, Driver: driver, StoreID: cfg.StoreID},
	}
}
