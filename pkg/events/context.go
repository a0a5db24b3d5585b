package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

type ctxKey int

const (
	ctxKeySinks ctxKey = iota
)

// WithSinks attaches sinks to the context so code below the chat service can
// publish without being handed a sink explicitly.
func WithSinks(ctx context.Context, sinks ...Sink) context.Context {
	if len(sinks) == 0 {
		return ctx
	}
	combined := append([]Sink{}, SinksFromContext(ctx)...)
	combined = append(combined, sinks...)
	return context.WithValue(ctx, ctxKeySinks, combined)
}

// WithoutSinks detaches every sink from ctx, for side requests whose output
// is not part of the chat stream.
func WithoutSinks(ctx context.Context) context.Context {
	if SinksFromContext(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKeySinks, []Sink(nil))
}

func SinksFromContext(ctx context.Context) []Sink {
	if sinks, ok := ctx.Value(ctxKeySinks).([]Sink); ok {
		return sinks
	}
	return nil
}

// PublishToContext publishes event to every sink attached to ctx. Sink errors
// are logged and otherwise ignored.
func PublishToContext(ctx context.Context, event Event) {
	for _, sink := range SinksFromContext(ctx) {
		if err := sink.PublishEvent(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type)).Str("chat_id", event.ChatID).Msg("Failed to publish event")
		}
	}
}
