// Package httpapi exposes the auth subsystem over HTTP: account endpoints,
// token refresh, session management and the published JWKS.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/todovault/todovault/internal/logging"
	"github.com/todovault/todovault/internal/server/auth"
	"github.com/todovault/todovault/internal/server/models"
	"github.com/todovault/todovault/internal/server/services"
)

// userOps, tokenOps and sessionOps are the slices of the service layer the
// transport needs; the concrete services satisfy them.
type userOps interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password, userAgent, ipAddress string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken, userAgent, ipAddress string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) (int64, error)
}

type tokenOps interface {
	VerifyToken(ctx context.Context, raw string, kind auth.Kind) (*auth.Claims, error)
	ListUserTokens(ctx context.Context, userID string) ([]models.TokenRecord, error)
}

type sessionOps interface {
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	RevokeSession(ctx context.Context, sessionID string) (bool, error)
}

type HTTPServer struct {
	address  string
	logger   logging.Logger
	users    userOps
	tokens   tokenOps
	sessions sessionOps
	keys     keySource
}

func NewHTTPServer(a string, l logging.Logger, us *services.UserService, ts *services.TokenService, ss *services.SessionService, keys keySource) *HTTPServer {
	return &HTTPServer{
		address:  a,
		logger:   l.With("module", "http_server"),
		users:    us,
		tokens:   ts,
		sessions: ss,
		keys:     keys,
	}
}

func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
