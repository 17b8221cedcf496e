package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "shopflow-backend/docs"
	"shopflow-backend/internal/app"
	"shopflow-backend/internal/config"
	"shopflow-backend/internal/events"
	"shopflow-backend/internal/handler"
	"shopflow-backend/internal/middleware"
	"shopflow-backend/internal/postgres"
	"shopflow-backend/internal/repo"
	"shopflow-backend/internal/service"
	"shopflow-backend/pkg/cache"
	"shopflow-backend/pkg/trm"

	"github.com/joho/godotenv"
)

// @title           ShopFlow Order API
// @version         1.0
// @description     Storefront order lifecycle service
func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	logger.Info("postgres connected")

	orderRepo := repo.NewOrderRepo(db)
	productRepo := repo.NewProductRepo(db)
	userRepo := repo.NewUserRepo(db)
	txManager := trm.NewManager(db)
	orderCache := cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)
	publisher := events.NewPublisher(conf.Kafka)

	orderService := service.NewOrderService(logger, txManager, orderRepo, productRepo, orderCache, publisher)

	httpHandler := handler.NewHTTPHandler(logger, orderService)
	handler.RegisterMetrics()

	authMw := middleware.Auth(logger, conf.JWT.Secret, userRepo)

	app := app.New(logger, conf, authMw)
	app.SetHTTPHandlers(httpHandler)
	app.SetClosers(publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	orderCache.StartJanitor(ctx)
	app.Start(ctx)
	<-ctx.Done()
	app.Stop()
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}
