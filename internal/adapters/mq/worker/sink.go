package worker

import (
	"context"

	"github.com/okian/quorum/internal/domain/model"
	"github.com/okian/quorum/pkg/logger"
)

// Sink receives dispatched events. Handle is called from worker goroutines;
// with a single worker events arrive in publish order.
type Sink interface {
	Name() string
	Handle(ctx context.Context, e model.Event) error
}

// LogSink writes every event to the log.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a sink logging through l.
func NewLogSink(l logger.Logger) *LogSink {
	return &LogSink{log: l}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Handle implements Sink.
func (s *LogSink) Handle(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam
	fields := []logger.Field{
		logger.String("event_id", e.ID),
		logger.String("kind", string(e.Kind)),
	}
	if e.RequestID != 0 {
		fields = append(fields, logger.Uint64("request_id", uint64(e.RequestID)))
	}
	if e.ProviderID != "" {
		fields = append(fields, logger.String("provider", string(e.ProviderID)))
	}
	switch e.Kind {
	case model.KindSubmissionRecorded, model.KindRequestFinalized:
		fields = append(fields, logger.Int64("value", int64(e.Value)))
	case model.KindProviderAuthorizationChange:
		fields = append(fields, logger.Bool("authorized", e.Authorized))
	}
	s.log.Info(ctx, "oracle event", fields...)
	return nil
}
