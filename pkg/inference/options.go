package inference

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/events"
	"github.com/go-go-golems/colloquy/pkg/security"
)

// Option is a functional option for configuring an engine.
type Option func(*Config) error

// Config holds the engine settings that are not part of a single request.
type Config struct {
	APIKey  string
	BaseURL string
	// Policy is applied to BaseURL when the engine is built.
	Policy     security.OutboundPolicy
	HTTPClient *http.Client
	// EventSinks receive every event, in addition to the sinks found in the
	// request context.
	EventSinks []events.Sink
}

// NewConfig creates a configuration pointing at the default provider.
func NewConfig() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		EventSinks: make([]events.Sink, 0),
	}
}

func WithAPIKey(key string) Option {
	return func(c *Config) error {
		c.APIKey = key
		return nil
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Config) error {
		if baseURL == "" {
			return errors.New("base url cannot be empty")
		}
		c.BaseURL = baseURL
		return nil
	}
}

func WithPolicy(policy security.OutboundPolicy) Option {
	return func(c *Config) error {
		c.Policy = policy
		return nil
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) error {
		c.HTTPClient = client
		return nil
	}
}

// WithSink adds an event sink. Multiple sinks can be added.
func WithSink(sink events.Sink) Option {
	return func(c *Config) error {
		if sink == nil {
			return errors.New("sink cannot be nil")
		}
		c.EventSinks = append(c.EventSinks, sink)
		return nil
	}
}

// ApplyOptions applies a set of options to a configuration.
func ApplyOptions(config *Config, options ...Option) error {
	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) publish(ctx context.Context, event events.Event) {
	for _, sink := range c.EventSinks {
		if err := sink.PublishEvent(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("Failed to publish event to sink")
		}
	}
	events.PublishToContext(ctx, event)
}
