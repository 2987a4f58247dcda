package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port   string
	DBPath string

	// Upstream store server.
	SalesURL      string
	PromoBatchURL string
	CSRFTokenURL  string
	HealthURL     string

	StoreID   string
	CashierID string

	// Pricing defaults; the engine can be reconfigured at runtime.
	TaxRate     decimal.Decimal
	TaxIncluded bool
	RedeemValue decimal.Decimal // currency value of one loyalty point

	// Cache and sync-retry tuning.
	PromoTTL      time.Duration
	PromoDebounce time.Duration
	CSRFTTL       time.Duration
	HTTPTimeout   time.Duration
	ProbeInterval time.Duration
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	EscalateAfter int

	LogFile string
}

func Load() Config {
	cfg := Config{
		Port:          getenv("PORT", "8081"),
		DBPath:        getenv("DB_PATH", "tillpoint.db"),
		SalesURL:      getenv("SALES_URL", "http://localhost:8080/api/sales"),
		PromoBatchURL: getenv("PROMO_BATCH_URL", "http://localhost:8080/api/promotions/batch-check"),
		CSRFTokenURL:  getenv("CSRF_TOKEN_URL", "http://localhost:8080/api/csrf-token"),
		HealthURL:     getenv("HEALTH_URL", "http://localhost:8080/healthz"),
		StoreID:       getenv("STORE_ID", "store-1"),
		CashierID:     getenv("CASHIER_ID", "cashier-1"),
		TaxRate:       getdec("TAX_RATE", "0.085"),
		TaxIncluded:   getenv("TAX_INCLUDED", "") == "1",
		RedeemValue:   getdec("REDEEM_VALUE", "0.01"),
		PromoTTL:      getdur("PROMO_TTL", 60*time.Second),
		PromoDebounce: getdur("PROMO_DEBOUNCE", 100*time.Millisecond),
		CSRFTTL:       getdur("CSRF_TTL", 5*time.Minute),
		HTTPTimeout:   getdur("HTTP_TIMEOUT", 5*time.Second),
		ProbeInterval: getdur("PROBE_INTERVAL", 15*time.Second),
		BackoffBase:   getdur("BACKOFF_BASE", 5*time.Second),
		BackoffCap:    getdur("BACKOFF_CAP", 10*time.Minute),
		EscalateAfter: getint("ESCALATE_AFTER", 5),
		LogFile:       getenv("LOG_FILE", "./tillpoint.log"),
	}
	log.Printf("[config] PORT=%s DB_PATH=%s SALES_URL=%s STORE_ID=%s TAX_RATE=%s TAX_INCLUDED=%v",
		cfg.Port, cfg.DBPath, cfg.SalesURL, cfg.StoreID, cfg.TaxRate, cfg.TaxIncluded)
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getdec(key, def string) decimal.Decimal {
	v := getenv(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		log.Printf("[config] bad decimal for %s=%q, using %s", key, v, def)
		d, _ = decimal.NewFromString(def)
	}
	return d
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] bad duration for %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
