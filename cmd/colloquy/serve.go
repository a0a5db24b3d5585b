package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/colloquy/pkg/chat"
	"github.com/go-go-golems/colloquy/pkg/events"
	"github.com/go-go-golems/colloquy/pkg/inference"
	"github.com/go-go-golems/colloquy/pkg/models"
	"github.com/go-go-golems/colloquy/pkg/server"
	"github.com/go-go-golems/colloquy/pkg/settings"
	"github.com/go-go-golems/colloquy/pkg/store"
	"github.com/go-go-golems/colloquy/pkg/tools"
	"github.com/go-go-golems/colloquy/pkg/tools/imagegen"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (default :3000)")
	cmd.Flags().String("identity-header", "", "Header carrying the authenticated user id")
	cmd.Flags().String("provider-base-url", "", "OpenAI-compatible provider base URL")
	cmd.Flags().Bool("allow-insecure", false, "Allow plain HTTP and local provider endpoints")
	cmd.Flags().Int("max-steps", 0, "Maximum model steps per message")
	cmd.Flags().Bool("debug-routes", false, "Run gin in debug mode")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := settings.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if debug, _ := cmd.Flags().GetBool("debug-routes"); !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, s.Database.Driver, s.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}()

	policy := s.OutboundPolicy()
	engine, err := inference.NewOpenAIEngine(
		inference.WithAPIKey(s.Provider.APIKey),
		inference.WithBaseURL(s.Provider.BaseURL),
		inference.WithPolicy(policy),
	)
	if err != nil {
		return err
	}

	toolRegistry, err := buildTools(s)
	if err != nil {
		return err
	}
	toolNames := []string{}
	for _, d := range toolRegistry.List() {
		toolNames = append(toolNames, d.Name)
	}

	registry := models.NewRegistry(s.Chat.Models)
	titleModel, ok := registry.Get(models.TitleModel)
	if !ok {
		titleModel = registry.Resolve(models.DefaultChatModel)
	}

	loop := inference.NewLoop(engine, toolRegistry, inference.WithMaxSteps(s.Chat.MaxSteps))
	svc, err := chat.NewService(st, registry, loop,
		chat.WithSystemPrompt(s.Chat.SystemPrompt),
		chat.WithToolNames(toolNames...),
		chat.WithTitler(chat.EngineTitler{Engine: engine, Model: titleModel}),
	)
	if err != nil {
		return err
	}

	router := events.NewRouter(events.WithLogger(events.NewWatermillLogger(log.Logger)))
	defer func() {
		_ = router.Close()
	}()

	srv := server.New(svc, router, server.WithIdentityHeader(s.Server.IdentityHeader))
	log.Info().
		Str("db_driver", s.Database.Driver).
		Strs("tools", toolNames).
		Int("max_steps", s.Chat.MaxSteps).
		Msg("Chat service ready")
	return srv.Serve(ctx, s.Server.Addr, s.Server.ShutdownTimeout)
}

// buildTools registers the tools the model may call. Image generation needs
// both an image API key and an Imgur client id and is skipped otherwise.
func buildTools(s *settings.Settings) (*tools.Registry, error) {
	registry, err := tools.NewRegistry()
	if err != nil {
		return nil, err
	}
	if s.Image.APIKey == "" || s.Image.ImgurClientID == "" {
		log.Warn().Msg("Image generation disabled, image api key or imgur client id missing")
		return registry, nil
	}

	policy := s.OutboundPolicy()
	if err := policy.Validate(s.Image.BaseURL); err != nil {
		return nil, errors.Wrap(err, "image base url")
	}
	cfg := go_openai.DefaultConfig(s.Image.APIKey)
	cfg.BaseURL = s.Image.BaseURL
	model := imagegen.NewOpenAIModel(go_openai.NewClientWithConfig(cfg), s.Image.Model)

	uploader, err := imagegen.NewImgurUploader(s.Image.ImgurClientID, policy, imagegen.WithEndpoint(s.Image.ImgurEndpoint))
	if err != nil {
		return nil, err
	}
	def, err := imagegen.NewGenerator(model, uploader).Tool()
	if err != nil {
		return nil, err
	}
	if err := registry.Register(def); err != nil {
		return nil, err
	}
	return registry, nil
}
