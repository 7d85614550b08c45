package interceptors

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/authctx"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/rbac"
)

// Authenticator runs the shared verification chain over a transport-neutral request.
type Authenticator interface {
	Authenticate(ctx context.Context, req client.Request, ip string) (context.Context, *authctx.Principal, error)
}

// AuthUnary returns a unary server interceptor that authenticates the caller from gRPC
// metadata and stores the principal, client type and current tenant in context.
// publicMethods is the set of full method names that do not require a token (e.g. grpc.health.v1 Check);
// they still get an authenticated context when a valid token is sent.
func AuthUnary(auth Authenticator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		authed, _, err := auth.Authenticate(ctx, RequestFromMetadata(ctx, info.FullMethod), ClientIP(ctx))
		if err != nil {
			if publicMethods[info.FullMethod] {
				return handler(authed, req)
			}
			zap.L().Debug("grpc: authentication failed", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, rbac.Status(err)
		}
		return handler(authed, req)
	}
}

// RequestFromMetadata maps incoming gRPC metadata onto a client.Request. The full method
// stands in for the path and :authority for the host.
func RequestFromMetadata(ctx context.Context, fullMethod string) client.Request {
	req := client.Request{Path: fullMethod, Header: http.Header{}}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return req
	}
	for k, vals := range md {
		if k == ":authority" {
			if len(vals) > 0 {
				req.Host = vals[0]
			}
			continue
		}
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	return req
}
