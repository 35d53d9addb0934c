package security

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/oshokin/catpoint/internal/logger"
	pb "github.com/oshokin/catpoint/internal/pb/v1"
)

// UnaryActorInterceptor logs every call with the caller identity from metadata
// and passes a context whose logger carries it.
func UnaryActorInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	ctx = withActor(ctx, info.FullMethod)

	logger.Debug(ctx, "Call received")

	return handler(ctx, req)
}

// StreamActorInterceptor is the streaming counterpart of UnaryActorInterceptor.
func StreamActorInterceptor(
	srv any,
	stream grpc.ServerStream,
	info *grpc.StreamServerInfo,
	handler grpc.StreamHandler,
) error {
	ctx := withActor(stream.Context(), info.FullMethod)

	logger.Debug(ctx, "Stream opened")

	return handler(srv, &actorStream{ServerStream: stream, ctx: ctx})
}

// ActorFromContext returns the caller hostname and username sent as metadata.
func ActorFromContext(ctx context.Context) (hostname, username string) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ""
	}

	return firstValue(md, pb.MetadataHostname), firstValue(md, pb.MetadataUsername)
}

// actorStream overrides the stream context.
type actorStream struct {
	grpc.ServerStream

	// ctx carries the actor-aware logger.
	ctx context.Context //nolint:containedctx // Required to override ServerStream.Context.
}

// Context returns the wrapped context.
func (s *actorStream) Context() context.Context {
	return s.ctx
}

// withActor adds the method and actor to the context logger.
func withActor(ctx context.Context, method string) context.Context {
	hostname, username := ActorFromContext(ctx)

	return logger.WithKV(ctx, "method", method, "actor_host", hostname, "actor_user", username)
}

func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}

	return ""
}
