package main

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tillpoint/internal/cart"
	"tillpoint/internal/config"
	"tillpoint/internal/http/handlers"
	applog "tillpoint/internal/log"
	"tillpoint/internal/metrics"
	"tillpoint/internal/promo"
	"tillpoint/internal/queue"
	"tillpoint/internal/sales"
	"tillpoint/internal/store"
	"tillpoint/internal/syncer"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
		}
	}

	// Durable store with in-memory fallback; degraded, not fatal.
	st, durable := store.OpenWithFallback(cfg.DBPath)
	if !durable {
		log.Printf("[warn] durable store unavailable, queued sales will not survive a restart")
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	mets := metrics.NewCollector(reg)

	// Promotion cache + effective pricing
	fetcher := promo.NewHTTPFetcher(cfg.PromoBatchURL, cfg.CSRFTokenURL, cfg.StoreID,
		cfg.HTTPTimeout, cfg.CSRFTTL, nil)
	promos := promo.NewCache(fetcher, cfg.PromoTTL, cfg.PromoDebounce, cfg.HTTPTimeout, nil)

	// Cart engine restores any in-progress sale from the snapshot.
	engine := cart.NewEngine(st, promos, cfg.TaxRate, cfg.TaxIncluded, cfg.RedeemValue)

	// Offline queue + sync driver
	q := queue.NewService(st, mets, cfg.EscalateAfter)
	transport := syncer.NewHTTPTransport(cfg.HTTPTimeout)
	driver := syncer.NewDriver(st, transport, mets, syncer.Options{
		BackoffBase:   cfg.BackoffBase,
		BackoffCap:    cfg.BackoffCap,
		EscalateAfter: cfg.EscalateAfter,
	})
	q.SetDrainFunc(driver.Wake)

	saleSvc := &sales.Service{
		Engine:    engine,
		Queue:     q,
		Driver:    driver,
		Transport: transport,
		Store:     st,
		Metrics:   mets,
		SalesURL:  cfg.SalesURL,
		StoreName: "Tillpoint",
		StoreID:   cfg.StoreID,
		CashierID: cfg.CashierID,
	}
	driver.OnConfirm = saleSvc.ConfirmHook

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Run(ctx)
	go syncer.NewMonitor(driver, cfg.HealthURL, cfg.ProbeInterval, cfg.HTTPTimeout).Run(ctx)

	// Templates & app
	engineHTML := html.New("./web/templates", ".html")

	app := fiber.New(fiber.Config{
		Views: engineHTML,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		},
	})
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))

	// ---------- Routes ----------
	deps := handlers.NewDeps(cfg, engine, q, driver, saleSvc, promos)

	app.Get("/", deps.StatusHandler.Page)

	app.Get("/cart", deps.CartHandler.View)
	app.Post("/cart/items", deps.CartHandler.Add)
	app.Patch("/cart/items/:id", deps.CartHandler.UpdateQuantity)
	app.Delete("/cart/items/:id", deps.CartHandler.Remove)
	app.Post("/cart/clear", deps.CartHandler.Clear)
	app.Post("/cart/payment", deps.CartHandler.SetPayment)
	app.Post("/cart/tax", deps.CartHandler.SetTax)
	app.Post("/cart/redeem", deps.CartHandler.SetRedemption)

	app.Post("/sales", deps.SaleHandler.Submit)
	app.Get("/sales/recent", deps.SaleHandler.Recent)
	app.Get("/receipts/:key", deps.SaleHandler.Receipt)

	app.Post("/sync", deps.SyncHandler.SyncNow)
	app.Get("/sync/status", deps.SyncHandler.Status)

	app.Get("/price", deps.PriceHandler.Check)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{"error": "not found"})
	})

	log.Fatal(app.Listen(":" + cfg.Port))
}
