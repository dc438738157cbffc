// Command laundrysync runs the laundry order sync engine behind its host API:
// a cache-first order list backed by a local database, status polling with
// ready notifications, session inactivity timeout and bulk status updates
// against the remote order service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-laundry-sync/internal/config"
	httpapi "github.com/tbourn/go-laundry-sync/internal/http"
	"github.com/tbourn/go-laundry-sync/internal/http/handlers"
	"github.com/tbourn/go-laundry-sync/internal/notify"
	"github.com/tbourn/go-laundry-sync/internal/observability"
	"github.com/tbourn/go-laundry-sync/internal/remote"
	"github.com/tbourn/go-laundry-sync/internal/repo"
	"github.com/tbourn/go-laundry-sync/internal/services"
	"github.com/tbourn/go-laundry-sync/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version string

const (
	shutdownTimeout = 15 * time.Second
	purgeEvery      = time.Hour
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log.Logger = sysutil.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ver := sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION"), observability.DefaultVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.Cache.Driver, cfg.Cache.DSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Cache.Driver).Msg("open cache database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate cache schema")
	}

	client, err := remote.New(remote.Config{
		BaseURL:   cfg.Remote.BaseURL,
		Timeout:   cfg.Remote.Timeout,
		RPS:       cfg.Remote.RPS,
		Burst:     cfg.Remote.Burst,
		UserAgent: "laundry-sync/" + ver,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("remote client")
	}

	// Notifications go to the UI outbox and the log, plus the broker when configured.
	outbox := notify.NewOutbox(cfg.Notify.OutboxSize)
	sinks := notify.Multi{outbox, notify.LogSink{}}
	var broker *notify.AMQPSink
	if cfg.Notify.AMQPURL != "" {
		broker, err = notify.DialAMQP(cfg.Notify.AMQPURL, cfg.Notify.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("amqp")
		}
		sinks = append(sinks, broker)
	}

	store := repo.NewOrderStore(db)
	submissions := repo.NewSubmissionStore(db)
	submissions.TTL = cfg.SubmissionTTL

	cache := services.NewOrderCacheRepository(client, store)
	cache.RefreshTimeout = cfg.Remote.Timeout

	orders := services.NewOrderService(client, cache, store)
	orders.Submissions = submissions

	poller := services.NewStatusPoller(client, sinks)
	poller.Local = store
	poller.Interval = cfg.PollInterval

	session := services.NewSessionMonitor(cfg.SessionTimeout, cfg.SessionCheckInterval)
	session.OnExpire = func(at time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		poller.StopAll()
		if err := cache.ClearAll(ctx); err != nil {
			log.Error().Err(err).Msg("clear cache on session expiry")
		}
		_ = sinks.Deliver(ctx, notify.SessionExpired(at))
	}

	bulk := services.NewBulkStatusCoordinator(client)
	bulk.OnComplete = func(out services.BulkOutcome) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, o := range out.Updated {
			if o.OwnerID == "" {
				continue
			}
			if err := cache.Upsert(ctx, o.OwnerID, o); err != nil {
				log.Debug().Err(err).Str("order_number", o.Number).Msg("mirror bulk update")
			}
		}
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, handlers.Deps{
		Cache:   cache,
		Stats:   store,
		Orders:  orders,
		Bulk:    bulk,
		Poller:  poller,
		Session: session,
		Inbox:   outbox,
	}, httpapi.SubmissionLookup(db), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeSubmissions(ctx, submissions)

	go func() {
		log.Info().Str("port", cfg.Port).Str("version", ver).Str("cache", cfg.Cache.Driver).Msg("laundry sync listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	session.Close()
	if err := poller.Close(sctx); err != nil {
		log.Error().Err(err).Msg("poller shutdown")
	}
	if err := cache.Close(sctx); err != nil {
		log.Error().Err(err).Msg("cache refresh drain")
	}
	if broker != nil {
		if err := broker.Close(); err != nil {
			log.Error().Err(err).Msg("amqp close")
		}
	}
	closeDB(db)
	if err := shutdownOTel(sctx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
}

// purgeSubmissions drops expired submission keys until ctx is done.
func purgeSubmissions(ctx context.Context, s *repo.SubmissionStore) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Purge(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("purge submission keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired submission keys removed")
			}
		}
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
