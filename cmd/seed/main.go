// Command seed populates the database with demo products and alerts so a
// locally running scheduler has something to update.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/pricepulse/internal/adapters/fetch"
	"github.com/okian/pricepulse/internal/adapters/repository"
	"github.com/okian/pricepulse/internal/config"
	"github.com/okian/pricepulse/internal/domain/model"
	"github.com/okian/pricepulse/pkg/logger"
)

const defaultTimeout = 30 * time.Second

type demoProduct struct {
	name        string
	url         string
	alertEmail  string
	alertTarget string
}

var demoProducts = []demoProduct{
	{
		name:        "Sony WH-1000XM5 Wireless Headphones",
		url:         "https://www.amazon.in/dp/B09XS7JWHH",
		alertEmail:  "demo@example.com",
		alertTarget: "24990",
	},
	{
		name:        "Logitech MX Master 3S Mouse",
		url:         "https://www.amazon.in/dp/B0B11B8BMS",
		alertEmail:  "demo@example.com",
		alertTarget: "7995",
	},
	{
		name: "Samsung Galaxy M35 5G",
		url:  "https://www.flipkart.com/samsung-galaxy-m35-5g/p/itm1234567890",
	},
}

func main() {
	var (
		dsn     = flag.String("dsn", "", "Postgres DSN (default: PULSE_POSTGRES_DSN)")
		email   = flag.String("email", "", "Override the alert destination email")
		timeout = flag.Duration("timeout", defaultTimeout, "Overall timeout")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get().Named("seed")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *dsn == "" {
		cfg, err := config.Load(ctx)
		if err != nil {
			log.Error(ctx, "loading config failed", logger.Error(err))
			os.Exit(1)
		}
		*dsn = cfg.PostgresDSN
	}
	if *dsn == "" {
		log.Error(ctx, "no postgres dsn; set -dsn or PULSE_POSTGRES_DSN")
		os.Exit(1)
	}

	store, err := repository.NewPostgresStore(ctx, *dsn)
	if err != nil {
		log.Error(ctx, "connecting to postgres failed", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Error(ctx, "migrating schema failed", logger.Error(err))
		os.Exit(1)
	}

	created := 0
	for _, d := range demoProducts {
		p := model.TrackedProduct{
			Name:     d.name,
			URL:      d.url,
			Platform: fetch.PlatformForURL(d.url),
			Currency: "INR",
		}
		if err := store.CreateProduct(ctx, &p); err != nil {
			if errors.Is(err, repository.ErrDuplicateURL) {
				log.Info(ctx, "product already seeded", logger.String("url", d.url))
				continue
			}
			log.Error(ctx, "creating product failed", logger.String("url", d.url), logger.Error(err))
			os.Exit(1)
		}
		created++
		log.Info(ctx, "product created",
			logger.Stringer("id", p.ID),
			logger.String("name", p.Name),
			logger.String("platform", p.Platform),
		)

		if d.alertEmail == "" {
			continue
		}
		target, err := decimal.NewFromString(d.alertTarget)
		if err != nil {
			log.Error(ctx, "bad alert target", logger.String("target", d.alertTarget), logger.Error(err))
			os.Exit(1)
		}
		destination := d.alertEmail
		if *email != "" {
			destination = *email
		}
		a := model.PriceAlert{
			ProductID:   p.ID,
			Email:       destination,
			TargetPrice: target,
		}
		if err := store.CreateAlert(ctx, &a); err != nil {
			log.Error(ctx, "creating alert failed", logger.Error(err))
			os.Exit(1)
		}
		log.Info(ctx, "alert created",
			logger.Stringer("id", a.ID),
			logger.String("target", target.String()),
		)
	}

	log.Info(ctx, "seeding finished", logger.Int("products_created", created))
}
