package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/todovault/todovault/internal/common"
	"github.com/todovault/todovault/internal/server/auth"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// UserIDFromContext returns the authenticated user id injected by the
// interceptor, or "" when the call was unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// accessTokenInterceptor authenticates every unary call except health
// checks. Any failure, whatever its cause, surfaces as Unauthenticated with
// the same generic message so callers cannot probe token state.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if strings.HasPrefix(info.FullMethod, "/grpc.health.") {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AuthorizationHeaderName)
		if len(values) > 0 {
			accessToken = strings.TrimPrefix(values[0], common.BearerPrefix)
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, common.GenericAuthFailure)
	}

	claims, err := s.tokens.VerifyToken(ctx, accessToken, auth.KindAccess)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, common.GenericAuthFailure)
	}
	userID, err := claims.ResolveSubject()
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, common.GenericAuthFailure)
	}

	ctx = context.WithValue(ctx, userIDKey, userID)

	return handler(ctx, req)
}
