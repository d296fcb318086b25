package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/oriys/tower/internal/domain"
	"github.com/oriys/tower/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// loggingInterceptor logs all gRPC requests
func loggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()

	resp, err := handler(ctx, req)

	duration := time.Since(start)
	if err != nil {
		logging.Op().Error("gRPC request failed",
			"method", info.FullMethod,
			"duration", duration,
			"error", err,
		)
	} else {
		logging.Op().Debug("gRPC request completed",
			"method", info.FullMethod,
			"duration", duration,
		)
	}

	return resp, err
}

// errorHandlingInterceptor converts errors to gRPC status codes
func errorHandlingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}
	if _, ok := status.FromError(err); ok {
		return nil, err
	}
	return nil, status.Error(codeFor(err), err.Error())
}

// codeFor maps an invocation fault onto a gRPC code.
func codeFor(err error) codes.Code {
	switch domain.KindOf(err) {
	case domain.KindMissingParameter, domain.KindInvalidParameter,
		domain.KindUnsupportedMethod, domain.KindUnsupportedContentType:
		return codes.InvalidArgument
	case domain.KindReflection:
		return codes.NotFound
	case domain.KindCredential:
		return codes.Unauthenticated
	case domain.KindTransport:
		return codes.Unavailable
	case domain.KindSerialization:
		return codes.DataLoss
	}
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}
