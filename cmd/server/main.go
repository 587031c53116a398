package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/client/internal/client"
	"github.com/anonto42/nano-midea/client/internal/gateway"
	"github.com/anonto42/nano-midea/client/internal/repositories"
	"github.com/anonto42/nano-midea/client/internal/router"
	"github.com/anonto42/nano-midea/client/pkg/config"
	"github.com/anonto42/nano-midea/client/pkg/firebase"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	// Load configuration
	config.LoadEnv()
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		glog.Exit("JWT_SECRET environment variable not set")
	}

	// Initialize backend connections
	db, err := config.InitDB(cfg)
	if err != nil {
		glog.Exitf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.StorageBucket)
	if err != nil {
		glog.Exitf("Failed to initialize Firebase: %v", err)
	}

	sessions := repositories.NewRedisSessionRepository(db.Redis, cfg.JWTSecret, cfg.SessionTTL)
	accounts := repositories.NewPostgresAccountRepository(db.Postgres, sessions)
	if err := accounts.Migrate(); err != nil {
		glog.Exitf("Failed to migrate accounts: %v", err)
	}
	documents := repositories.NewMongoDocumentRepository(db.Mongo.Database(cfg.MongoDatabase))
	if err := documents.EnsureIndexes(ctx); err != nil {
		glog.Exitf("Failed to create document indexes: %v", err)
	}
	files := repositories.NewFirebaseFileRepository(firebaseApp.Bucket, cfg.PreviewBaseURL)

	registry := client.NewRegistry(func() *gateway.Client {
		return gateway.New(accounts, documents, files, gateway.Options{
			Timeout:       cfg.RequestTimeout,
			AvatarBaseURL: cfg.AvatarBaseURL,
		})
	}, cfg.SessionIdleTimeout)
	defer registry.Close()
	go registry.Run(ctx, cfg.SessionIdleTimeout/2)

	e := echo.New()
	e.HideBanner = true

	config.SetupMiddleware(e, cfg)
	router.SetupRoutes(e, registry)

	go func() {
		glog.Infof("Listening on :%s (%s)", cfg.Port, cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("Shutdown: %v", err)
	}
}
