//go:build wireinject
// +build wireinject

// File: cmd/server/wire.go
package main

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/iyunix/go-bluebox/internal/config"
	"github.com/iyunix/go-bluebox/internal/handlers"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/repository/user"
	"github.com/iyunix/go-bluebox/internal/store"
	"github.com/iyunix/go-bluebox/internal/workspace"
)

func InitializeApplication(cfg *config.Config, log logger.Logger, db *gorm.DB) (*Application, error) {
	wire.Build(
		// Persistence
		ProvideStore,
		wire.Bind(new(store.ConversationStore), new(*store.Store)),
		user.NewGormUserRepository,

		// Inference
		ProvideAIConfig,
		ProvideChatStreamer,
		ProvideGateway,

		// Sessions
		ProvideSessionConfig,
		ProvideRegistry,
		wire.Bind(new(handlers.Workspaces), new(*workspace.Registry)),

		// Identity
		ProvideAuthService,

		// Handlers
		ProvideInferenceHandler,
		ProvideAuthHandler,
		handlers.NewSessionHandler,
		handlers.NewLogHandler,

		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil
}
