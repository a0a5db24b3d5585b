// Package settings is the explicit configuration of a colloquy process. It is
// decoded once from viper (config file, COLLOQUY_* environment, flags) and
// passed down to the components that need it.
package settings

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/go-go-golems/colloquy/pkg/inference"
	"github.com/go-go-golems/colloquy/pkg/security"
	"github.com/go-go-golems/colloquy/pkg/store"
	"github.com/go-go-golems/colloquy/pkg/tools/imagegen"
)

const EnvPrefix = "colloquy"

type ServerSettings struct {
	Addr string `mapstructure:"addr"`
	// IdentityHeader carries the caller's user id, set by the identity
	// provider in front of the server.
	IdentityHeader  string        `mapstructure:"identity-header"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

type DatabaseSettings struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ProviderSettings struct {
	APIKey  string `mapstructure:"api-key"`
	BaseURL string `mapstructure:"base-url"`
	// AllowInsecure permits plain HTTP and local addresses for the provider
	// and upload endpoints, for local model servers.
	AllowInsecure bool `mapstructure:"allow-insecure"`
}

type ImageSettings struct {
	APIKey        string `mapstructure:"api-key"`
	BaseURL       string `mapstructure:"base-url"`
	Model         string `mapstructure:"model"`
	ImgurClientID string `mapstructure:"imgur-client-id"`
	ImgurEndpoint string `mapstructure:"imgur-endpoint"`
}

type ChatSettings struct {
	MaxSteps     int    `mapstructure:"max-steps"`
	SystemPrompt string `mapstructure:"system-prompt"`
	// Models maps chat model ids to provider model names.
	Models map[string]string `mapstructure:"models"`
}

type Settings struct {
	Server   ServerSettings   `mapstructure:"server"`
	Database DatabaseSettings `mapstructure:"database"`
	Provider ProviderSettings `mapstructure:"provider"`
	Image    ImageSettings    `mapstructure:"image"`
	Chat     ChatSettings     `mapstructure:"chat"`
}

// SetDefaults registers defaults and environment bindings on v. The provider
// keys also honor the conventional GROQ_API_KEY, OPENAI_API_KEY and
// IMGUR_CLIENT_ID variables.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.identity-header", "X-User-ID")
	v.SetDefault("server.shutdown-timeout", 10*time.Second)
	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", "file:colloquy.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	v.SetDefault("provider.base-url", inference.DefaultBaseURL)
	v.SetDefault("provider.allow-insecure", false)
	v.SetDefault("image.base-url", "https://api.openai.com/v1")
	v.SetDefault("image.model", "dall-e-3")
	v.SetDefault("image.imgur-endpoint", imagegen.DefaultImgurEndpoint)
	v.SetDefault("chat.max-steps", inference.DefaultMaxSteps)
	v.SetDefault("chat.system-prompt", DefaultSystemPrompt)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("provider.api-key", "COLLOQUY_PROVIDER_API_KEY", "GROQ_API_KEY")
	_ = v.BindEnv("image.api-key", "COLLOQUY_IMAGE_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("image.imgur-client-id", "COLLOQUY_IMAGE_IMGUR_CLIENT_ID", "IMGUR_CLIENT_ID")
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	switch s.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return errors.Errorf("unsupported database driver %q", s.Database.Driver)
	}
	if s.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if s.Server.IdentityHeader == "" {
		return errors.New("identity header cannot be empty")
	}
	if s.Chat.MaxSteps <= 0 {
		return errors.Errorf("max steps must be positive, got %d", s.Chat.MaxSteps)
	}
	policy := s.OutboundPolicy()
	if err := policy.Validate(s.Provider.BaseURL); err != nil {
		return errors.Wrap(err, "provider base url")
	}
	return nil
}

// OutboundPolicy is the policy applied to every endpoint the server calls.
func (s *Settings) OutboundPolicy() security.OutboundPolicy {
	if s.Provider.AllowInsecure {
		return security.DevelopmentPolicy()
	}
	return security.OutboundPolicy{}
}

const DefaultSystemPrompt = `You are a friendly assistant! Keep your responses concise and helpful.
{{- if .ToolNames }}
You can use these tools: {{ .ToolNames | join ", " }}.
{{- end }}
Today is {{ .Now | date "Monday, January 2, 2006" }}.`
