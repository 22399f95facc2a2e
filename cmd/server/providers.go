package main

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/iyunix/go-bluebox/internal/config"
	"github.com/iyunix/go-bluebox/internal/gateway"
	"github.com/iyunix/go-bluebox/internal/handlers"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/repository/user"
	"github.com/iyunix/go-bluebox/internal/services/ai"
	"github.com/iyunix/go-bluebox/internal/services/user_services"
	"github.com/iyunix/go-bluebox/internal/session"
	"github.com/iyunix/go-bluebox/internal/store"
	"github.com/iyunix/go-bluebox/internal/workspace"
)

// Application aggregates all services and handlers
type Application struct {
	Config           *config.Config
	Logger           logger.Logger
	AuthService      *user_services.AuthService
	Workspaces       *workspace.Registry
	InferenceHandler *handlers.InferenceHandler
	SessionHandler   *handlers.SessionHandler
	AuthHandler      *handlers.AuthHandler
	LogHandler       *handlers.LogHandler
}

func ProvideStore(db *gorm.DB, log logger.Logger) *store.Store {
	return store.New(db, log)
}

func ProvideAIConfig(cfg *config.Config) *ai.Config {
	aiConfig := ai.DefaultConfig()
	aiConfig.APIKey = cfg.OpenAIAPIKey
	aiConfig.BaseURL = cfg.OpenAIBaseURL
	aiConfig.Model = cfg.ChatModel
	aiConfig.Temperature = cfg.Temperature
	aiConfig.Timeout = cfg.StreamTimeout
	return aiConfig
}

func ProvideChatStreamer(aiConfig *ai.Config) (ai.ChatStreamer, error) {
	if err := aiConfig.Validate(); err != nil {
		return nil, ai.NewConfigError(err.Error())
	}
	return ai.NewOpenAIProvider(aiConfig), nil
}

func ProvideGateway(cfg *config.Config, log logger.Logger) gateway.Gateway {
	return gateway.NewHTTPGateway(cfg.InferenceURL, &http.Client{}, log)
}

func ProvideSessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		SystemPrompt:  cfg.SystemPrompt,
		StreamTimeout: cfg.StreamTimeout,
	}
}

func ProvideRegistry(cfg *config.Config, conversations store.ConversationStore, gw gateway.Gateway, sessionConfig session.Config, log logger.Logger) (*workspace.Registry, error) {
	return workspace.NewRegistry(cfg.SessionCacheSize, conversations, gw, sessionConfig, log)
}

func ProvideAuthService(repo user.UserRepository, cfg *config.Config, log logger.Logger) *user_services.AuthService {
	return user_services.NewAuthService(repo, cfg.JWTSecretKey, log)
}

func ProvideInferenceHandler(streamer ai.ChatStreamer, cfg *config.Config, log logger.Logger) *handlers.InferenceHandler {
	return handlers.NewInferenceHandler(streamer, cfg.SystemPrompt, log)
}

func ProvideAuthHandler(auth *user_services.AuthService, workspaces handlers.Workspaces, cfg *config.Config, log logger.Logger) *handlers.AuthHandler {
	return handlers.NewAuthHandler(auth, workspaces, cfg.IsProduction(), log)
}
