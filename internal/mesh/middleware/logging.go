package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
)

// DefaultSlowThreshold flags calls slower than this in completion
// records.
const DefaultSlowThreshold = time.Second

// Logging emits start and completion records for every call, with
// sensitive metadata redacted. It is purely observational: a failure
// inside the log sink never changes the call outcome.
type Logging struct {
	logger        observability.Logger
	redactor      *observability.Redactor
	logRequests   bool
	logResponses  bool
	slowThreshold time.Duration
}

// LoggingOption is a functional option for the logging interceptor.
type LoggingOption func(*Logging)

// WithRequestLogging toggles start records with the redacted metadata
// snapshot.
func WithRequestLogging(enabled bool) LoggingOption {
	return func(l *Logging) {
		l.logRequests = enabled
	}
}

// WithResponseLogging toggles completion records for successful calls.
// Failures and slow calls are always recorded.
func WithResponseLogging(enabled bool) LoggingOption {
	return func(l *Logging) {
		l.logResponses = enabled
	}
}

// WithSlowThreshold sets the duration beyond which a call is flagged
// slow. Zero disables the flag.
func WithSlowThreshold(d time.Duration) LoggingOption {
	return func(l *Logging) {
		l.slowThreshold = d
	}
}

// WithLoggingRedactor overrides the metadata redactor.
func WithLoggingRedactor(r *observability.Redactor) LoggingOption {
	return func(l *Logging) {
		if r != nil {
			l.redactor = r
		}
	}
}

// NewLogging creates the logging interceptor. A nil logger discards
// all records.
func NewLogging(logger observability.Logger, opts ...LoggingOption) *Logging {
	if logger == nil {
		logger = observability.NopLogger()
	}

	l := &Logging{
		logger:        logger,
		redactor:      observability.NewRedactor(),
		logResponses:  true,
		slowThreshold: DefaultSlowThreshold,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// UnaryServerInterceptor logs inbound calls.
func (l *Logging) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		requestID := serverRequestID(ctx)

		if l.logRequests {
			md, _ := metadata.FromIncomingContext(ctx)
			l.start(requestID, info.FullMethod, md)
		}

		resp, err := handler(ctx, req)

		l.finish(requestID, info.FullMethod, time.Since(start), err)

		return resp, err
	}
}

// UnaryClientInterceptor logs outbound calls.
func (l *Logging) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		start := time.Now()
		requestID := clientRequestID(ctx)

		if l.logRequests {
			md, _ := metadata.FromOutgoingContext(ctx)
			l.start(requestID, method, md)
		}

		err := invoker(ctx, method, req, reply, cc, opts...)

		l.finish(requestID, method, time.Since(start), err)

		return err
	}
}

// start emits the call-started record.
func (l *Logging) start(requestID, fullMethod string, md metadata.MD) {
	contain(func() {
		l.logger.Info("call started",
			observability.String("request_id", requestID),
			observability.String("method", fullMethod),
			observability.Any("metadata", l.redactor.RedactMetadata(md)),
		)
	})
}

// finish emits the completion record. Failures log at Error and slow
// calls at Warn regardless of the response logging toggle.
func (l *Logging) finish(requestID, fullMethod string, elapsed time.Duration, callErr error) {
	contain(func() {
		st, _ := status.FromError(callErr)
		slow := l.slowThreshold > 0 && elapsed >= l.slowThreshold

		fields := []observability.Field{
			observability.String("request_id", requestID),
			observability.String("method", fullMethod),
			observability.Duration("duration", elapsed),
			observability.String("code", st.Code().String()),
		}
		if slow {
			fields = append(fields, observability.Bool("slow", true))
		}

		switch {
		case callErr != nil:
			fields = append(fields, observability.Error(callErr))
			l.logger.Error("call failed", fields...)
		case slow:
			l.logger.Warn("call completed", fields...)
		case l.logResponses:
			l.logger.Info("call completed", fields...)
		}
	})
}

// contain runs an observation and swallows any panic it raises.
// Logging and metrics must never change a call's outcome.
func contain(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}
