package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kashf99/park-booking/internal/config"
	"github.com/kashf99/park-booking/internal/database"
	"github.com/kashf99/park-booking/internal/database/migrations"
	"github.com/kashf99/park-booking/internal/handler"
	"github.com/kashf99/park-booking/internal/logger"
	"github.com/kashf99/park-booking/internal/middleware"
	"github.com/kashf99/park-booking/internal/queue"
	"github.com/kashf99/park-booking/internal/repository"
	"github.com/kashf99/park-booking/internal/router"
	"github.com/kashf99/park-booking/internal/service"
	"github.com/kashf99/park-booking/internal/storage"
)

// stores groups the three repositories the services need, whichever
// backend provides them.
type stores struct {
	attractions service.AttractionStore
	bookings    service.BookingStore
	users       service.UserStore
	db          *sql.DB
}

func main() {
	cfg := config.Load() // Load environment config
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "park-booking-api",
		Development: cfg.IsDevelopment(),
	})
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}
	if st.db != nil {
		defer st.db.Close()
	}

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		// Redis only backs rate limiting and caching
		log.Warn("redis unavailable, running without rate limiting and cache", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var objects storage.ObjectStore
	if cfg.ObjectStore.Endpoint == "" {
		log.Warn("OBJECT_STORE_ENDPOINT not set, keeping images and QR codes in memory")
		objects = storage.NewMemoryStore("")
	} else {
		objects, err = storage.NewMinioStore(ctx, cfg.ObjectStore)
		if err != nil {
			log.Fatal("open object store", zap.Error(err))
		}
	}

	var publisher service.Publisher = queue.LogPublisher{Log: log}
	if cfg.RabbitMQURL != "" {
		p := queue.NewPublisher(cfg.RabbitMQURL, log)
		defer p.Close()
		publisher = p
	}
	dispatcher := service.NewDispatcher(publisher, cfg.NotifyBuffer, log)
	dispatcher.Start()

	codec, err := service.NewCredentialCodec(cfg.QRSecret)
	if err != nil {
		log.Fatal("credential codec", zap.Error(err))
	}
	clock := time.Now
	lifecycle := service.NewLifecycle(st.bookings, clock, cfg.ParkTZ, log)
	ledger := service.NewLedger(st.bookings)
	bookings := service.NewBookingService(service.BookingServiceDeps{
		Attractions: st.attractions,
		Ledger:      ledger,
		Lifecycle:   lifecycle,
		Codec:       codec,
		Objects:     objects,
		Renderer:    service.NewNotificationRenderer(cfg.AlertEmail, clock),
		Notifier:    dispatcher,
		Log:         log,
	})
	validator := service.NewValidator(st.bookings, codec, clock, cfg.ParkTZ, log)
	visitors := service.NewVisitorLookup(st.bookings)
	catalog := service.NewCatalog(st.attractions, ledger, objects, cfg.ParkTZ, log)

	if err := handler.SeedAdmin(ctx, cfg, st.users, log); err != nil {
		log.Fatal("seed admin", zap.Error(err))
	}

	worker := service.NewExpiryWorker(st.bookings, lifecycle, clock, &service.ExpiryWorkerConfig{
		ScanInterval: cfg.ExpiryScanInterval,
		BatchSize:    cfg.ExpiryBatchSize,
	}, log)
	worker.Start(ctx)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(log))

	limits, onCatalogChange := buildLimits(rdb, log)
	router.RegisterRoutes(e) // Register application routes
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, st.users, log), cfg.JWTSecret, limits)
	router.RegisterAttractions(e, handler.NewAttractionHandler(catalog, onCatalogChange, log), cfg.JWTSecret, limits)
	router.RegisterBookings(e, handler.NewBookingHandler(bookings, validator, visitors, log), cfg.JWTSecret, limits)
	router.RegisterAdmin(e, &handler.StatsHandler{Worker: worker, Dispatcher: dispatcher}, cfg.JWTSecret)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	worker.Stop()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("notification drain incomplete", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (stores, error) {
	if cfg.Store == "memory" {
		log.Warn("APP_STORE=memory, data is lost on restart")
		m := repository.NewMemoryStore()
		return stores{attractions: m.Attractions(), bookings: m.Bookings(), users: m.Users()}, nil
	}
	db, err := database.Open(database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return stores{}, err
	}
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.Migrate(mctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	return stores{
		attractions: repository.NewAttractionRepo(db),
		bookings:    repository.NewBookingRepo(db),
		users:       repository.NewUserRepo(db),
		db:          db,
	}, nil
}

// buildLimits wires the Redis backed middlewares.  With rdb == nil every
// middleware is a pass-through.
func buildLimits(rdb *redis.Client, log *zap.Logger) (router.Limits, func(ctx context.Context)) {
	rl := config.LoadRateLimitConfig()
	booking := rl
	booking.Capacity = rl.BookingCapacity
	booking.Prefix = rl.Prefix + ":booking"

	cacheCfg := config.LoadCacheConfig()
	limits := router.Limits{
		API:     middleware.NewTokenBucket(rl, rdb, log),
		Booking: middleware.NewTokenBucket(booking, rdb, log),
		Cache:   middleware.NewRedisCache(cacheCfg, rdb),
	}
	onChange := func(ctx context.Context) {
		if err := middleware.InvalidateCache(ctx, cacheCfg, rdb); err != nil {
			log.Warn("catalog cache invalidation failed", zap.Error(err))
		}
	}
	return limits, onChange
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				log.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})
}
