package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ngalkin/session_auth/internal/config"
	"github.com/ngalkin/session_auth/internal/events"
	"github.com/ngalkin/session_auth/internal/httpserver"
	"github.com/ngalkin/session_auth/internal/limiter"
	"github.com/ngalkin/session_auth/internal/middleware"
	"github.com/ngalkin/session_auth/internal/repo"
	"github.com/ngalkin/session_auth/internal/service"
	"github.com/ngalkin/session_auth/pkg/logging"
	loggingmw "github.com/ngalkin/session_auth/pkg/middleware/logging"
	"github.com/ngalkin/session_auth/pkg/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	db, err := cfg.InitDB()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	store := &repo.GormRepo{DB: db}

	var lim *limiter.Limiter
	if cfg.RedisAddr != "" {
		lim = limiter.New(
			redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}),
			cfg.LoginMaxAttempts,
			cfg.LoginWindow,
		)
	}

	var publisher *events.Publisher
	if cfg.KafkaAddress != "" {
		publisher = events.NewPublisher(strings.Split(cfg.KafkaAddress, ","), cfg.AuditTopic)
		if cfg.ESURL != "" {
			ix, err := events.NewAuditIndexer(cfg.ESURL, cfg.ESUser, cfg.ESPassword, cfg.AuditIndex)
			if err != nil {
				log.Fatalf("audit indexer: %v", err)
			}
			publisher = publisher.WithIndexer(ix)
		}
		defer publisher.Close()
	}

	accessCodec := tokens.NewCodec(cfg.AccessSecret, cfg.AccessTTL)
	refreshCodec := tokens.NewCodec(cfg.RefreshSecret, cfg.RefreshTTL)

	svc := &service.AuthService{
		Repo:    store,
		Access:  accessCodec,
		Refresh: &service.RefreshManager{Repo: store, Codec: refreshCodec},
		Events:  publisher,
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc, Limiter: lim},
		AccessAuth:  middleware.NewAccessAuth(accessCodec),
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepExpired(sweepCtx, store, logger)

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
}

// sweepExpired lazily reaps refresh rows whose expiry has passed. Every
// validation re-checks expiry, so this only keeps the table small.
func sweepExpired(ctx context.Context, store *repo.GormRepo, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpiredRefreshTokens(ctx, time.Now())
			if err != nil {
				logger.Error("refresh sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("refresh sweep", "deleted", n)
			}
		}
	}
}
