package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bus-seat-booking/internal/booking"
	"github.com/iliyamo/bus-seat-booking/internal/cache"
	"github.com/iliyamo/bus-seat-booking/internal/config"
	"github.com/iliyamo/bus-seat-booking/internal/database"
	"github.com/iliyamo/bus-seat-booking/internal/handler"
	"github.com/iliyamo/bus-seat-booking/internal/middleware"
	"github.com/iliyamo/bus-seat-booking/internal/model"
	"github.com/iliyamo/bus-seat-booking/internal/queue"
	"github.com/iliyamo/bus-seat-booking/internal/repository"
	"github.com/iliyamo/bus-seat-booking/internal/router"
)

func main() {
	cfg := config.Load()
	log := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store  booking.Store
		users  handler.Users
		health handler.Health
	)
	switch cfg.Store {
	case "memory":
		mem, memUsers := seedMemory(ctx, cfg, log)
		store, users = mem, memUsers
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.WithError(err).Fatal("database connection failed")
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("database migration failed")
		}
		userRepo := repository.NewUserRepo(db)
		ensureStaff(ctx, cfg, userRepo, log)
		store, users = repository.NewSQLStore(db), userRepo
		health.Ping = db.PingContext
	}

	rdb := config.LoadRedisConfig().NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable: using process-local caches, rate limiting off")
	} else {
		defer rdb.Close()
	}
	seatMaps := cache.NewSeatMaps(rdb, cfg.Booking.SeatMapTTL, "seatmap", log)
	dedupe := cache.NewDeduper(rdb, cfg.Booking.WebhookDedupeTTL, "webhook")
	go sweep(ctx, time.Minute, seatMaps, dedupe)

	opts := booking.Options{
		MaxRetries:   cfg.Booking.MaxRetries,
		RetryBackoff: cfg.Booking.RetryBackoff,
		SeatMaps:     seatMaps,
		Logger:       log,
	}
	if cfg.RabbitURL != "" {
		publisher := queue.NewPublisher(cfg.RabbitURL, log)
		go publisher.Run(ctx)
		opts.Publisher = publisher
		consumer := queue.NewAuditConsumer(cfg.RabbitURL, cfg.AuditLogDir, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("audit consumer stopped")
			}
		}()
	}
	svc := booking.NewService(store, opts)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestLogger(log))

	router.Register(e, router.Handlers{
		Health:  health,
		Auth:    handler.NewAuthHandler(users, cfg.JWTSecret, cfg.AccessTTLMin),
		Orders:  handler.NewOrderHandler(svc, log),
		Webhook: handler.NewWebhookHandler(svc, dedupe, cfg.WebhookSecret, log),
		Tickets: handler.NewTicketAdminHandler(svc, log),
	}, router.Limits{
		API:     middleware.NewTokenBucket(config.LoadRateLimitConfig("api"), rdb, log),
		Webhook: middleware.NewTokenBucket(config.LoadRateLimitConfig("webhook"), rdb, log),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.Store}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}

type sweeper interface{ Sweep() }

func sweep(ctx context.Context, every time.Duration, caches ...sweeper) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, c := range caches {
				c.Sweep()
			}
		}
	}
}

type userCreator interface {
	Create(ctx context.Context, email, password, role string, cost int) (uint64, error)
}

// ensureStaff creates the bootstrap staff account named by STAFF_EMAIL and
// STAFF_PASSWORD when both are set.
func ensureStaff(ctx context.Context, cfg config.Config, users userCreator, log *logrus.Logger) {
	email, pass := os.Getenv("STAFF_EMAIL"), os.Getenv("STAFF_PASSWORD")
	if email == "" || pass == "" {
		return
	}
	_, err := users.Create(ctx, email, pass, model.RoleStaff, cfg.BcryptCost)
	switch {
	case err == nil:
		log.WithField("email", email).Info("staff account created")
	case errors.Is(err, repository.ErrEmailExists):
	default:
		log.WithError(err).Warn("staff account bootstrap failed")
	}
}

// seedMemory prepares an in-process store for local runs: one route of
// 40 seats departing tomorrow, a customer with one created order of two
// seats, and the bootstrap staff account.
func seedMemory(ctx context.Context, cfg config.Config, log *logrus.Logger) (*repository.MemoryStore, *repository.MemoryUsers) {
	store := repository.NewMemoryStore()
	users := repository.NewMemoryUsers()
	ensureStaff(ctx, cfg, users, log)

	store.PutRoute(model.Route{ID: 1, Capacity: 40, DepartsAt: time.Now().UTC().Add(24 * time.Hour), Status: model.RouteActive})
	if email, pass := os.Getenv("CUSTOMER_EMAIL"), os.Getenv("CUSTOMER_PASSWORD"); email != "" && pass != "" {
		id, err := users.Create(ctx, email, pass, model.RoleCustomer, cfg.BcryptCost)
		if err != nil {
			log.WithError(err).Warn("customer seed failed")
		} else {
			o := store.PutOrder(model.Order{RouteID: 1, UserID: id, Quantity: 2, Status: model.OrderCreated})
			log.WithFields(logrus.Fields{"order_id": o.ID, "user_id": id}).Info("seeded demo order")
		}
	}
	return store, users
}
