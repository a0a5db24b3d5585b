package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 64

// TopicForChat is the topic all events of one chat are published on.
func TopicForChat(chatID string) string {
	return "chat." + chatID
}

// Router fans chat events out to stream subscribers over an in-process
// watermill pub/sub. Events published while nobody subscribes are dropped.
type Router struct {
	logger watermill.LoggerAdapter
	pubSub *gochannel.GoChannel
}

type RouterOption func(*Router)

func WithLogger(logger watermill.LoggerAdapter) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

func NewRouter(options ...RouterOption) *Router {
	ret := &Router{
		logger: NewWatermillLogger(log.Logger),
	}
	for _, o := range options {
		o(ret)
	}
	// Blocking until ack keeps deltas ordered per subscriber.
	ret.pubSub = gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	return ret
}

// SinkForChat returns a Sink publishing to the chat's topic.
func (r *Router) SinkForChat(chatID string) Sink {
	return NewWatermillSink(r.pubSub, TopicForChat(chatID))
}

// Subscribe streams the events of a chat until ctx is cancelled or the router
// is closed. The returned channel is closed afterwards. A subscriber that lets
// its buffer fill up is dropped: its channel is closed and publishers never
// wait on it.
func (r *Router) Subscribe(ctx context.Context, chatID string) (<-chan Event, error) {
	subCtx, cancel := context.WithCancel(ctx)
	msgs, err := r.pubSub.Subscribe(subCtx, TopicForChat(chatID))
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "subscribe to chat %s", chatID)
	}
	out := make(chan Event, subscriberBuffer)
	go func() {
		defer cancel()
		defer close(out)
		for msg := range msgs {
			var e Event
			err := json.Unmarshal(msg.Payload, &e)
			msg.Ack()
			if err != nil {
				log.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable chat event")
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			default:
				log.Warn().Str("chat_id", chatID).Int("buffer", subscriberBuffer).
					Msg("Chat stream subscriber is not reading, ending subscription")
				return
			}
		}
	}()
	return out, nil
}

func (r *Router) Close() error {
	log.Debug().Msg("Closing event router")
	if err := r.pubSub.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close pubsub")
		return err
	}
	return nil
}

// WatermillSink publishes events as JSON messages on a single topic.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{publisher: publisher, topic: topic}
}

func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := w.publisher.Publish(w.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}
	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type)).Msg("Published event to watermill")
	return nil
}

var _ Sink = (*WatermillSink)(nil)
