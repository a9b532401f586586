// Package server initializes and runs the auth server: database and
// migrations, token/session/user services, the gRPC and HTTP endpoints, and
// the background sweeper.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/todovault/todovault/internal/common"
	"github.com/todovault/todovault/internal/logging"
	"github.com/todovault/todovault/internal/server/config"
	gs "github.com/todovault/todovault/internal/server/grpc"
	"github.com/todovault/todovault/internal/server/httpapi"
	"github.com/todovault/todovault/internal/server/repositories/repomanager"
	"github.com/todovault/todovault/internal/server/services"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	tokenService   *services.TokenService
	sessionService *services.SessionService
	userService    *services.UserService
	keyService     *services.KeyService
	repomanager    repomanager.RepositoryManager
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	// Signing secrets left unset get a random per-process value. Tokens
	// survive only until restart, which is fine for local runs but a
	// warning condition anywhere else.
	if cfg.SecretKey == "" {
		s, err := common.MakeRandHexString(32)
		if err != nil {
			return nil, fmt.Errorf("secret generation error: %w", err)
		}
		cfg.SecretKey = s
		logger.Warn(ctx, "access token secret not configured, generated an ephemeral one")
	}
	if cfg.RefreshSecretKey == "" {
		s, err := common.MakeRandHexString(32)
		if err != nil {
			return nil, fmt.Errorf("secret generation error: %w", err)
		}
		cfg.RefreshSecretKey = s
		logger.Warn(ctx, "refresh token secret not configured, generated an ephemeral one")
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	ts := services.NewTokenService(db, rm, cfg)
	ss := services.NewSessionService(db, rm, cfg)
	us := services.NewUserService(db, rm, ts, ss)
	ks := services.NewKeyService(db, rm)

	if _, err := ks.EnsureKey(ctx); err != nil {
		return nil, fmt.Errorf("key registry init error: %w", err)
	}

	return &App{
		config:         cfg,
		logger:         logger,
		db:             db,
		tokenService:   ts,
		sessionService: ss,
		userService:    us,
		keyService:     ks,
		repomanager:    rm,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.tokenService)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger,
		app.userService, app.tokenService, app.sessionService, app.repomanager.Keys(app.db))

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// startSweeper periodically marks expired tokens revoked and deletes
// expired sessions. Both sweeps are idempotent and safe to run while
// verification traffic is in flight.
func (app *App) startSweeper(ctx context.Context) {
	logger := app.logger.With("module", "sweeper")

	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Stopping sweeper...")
			return
		case <-ticker.C:
			tokens, err := app.tokenService.CleanupExpiredTokens(ctx)
			if err != nil {
				logger.Error(ctx, "token sweep failed", "error", err)
			}
			sessions, err := app.sessionService.CleanupExpiredSessions(ctx)
			if err != nil {
				logger.Error(ctx, "session sweep failed", "error", err)
			}
			logger.Info(ctx, "sweep finished", "tokens", tokens, "sessions", sessions)
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startSweeper(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err)
	}
}
