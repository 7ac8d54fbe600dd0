//go:build wireinject
// +build wireinject

package main

import (
	"civicconnect_backend/internal/app"
	"civicconnect_backend/internal/auth"
	"civicconnect_backend/internal/config"
	"civicconnect_backend/internal/filestorage"
	"civicconnect_backend/internal/issue"
	"civicconnect_backend/internal/middleware"
	"civicconnect_backend/internal/notification"
	"civicconnect_backend/internal/platform/database"
	platformes "civicconnect_backend/internal/platform/elasticsearch"
	"civicconnect_backend/internal/platform/logger"
	platformredis "civicconnect_backend/internal/platform/redis"
	"civicconnect_backend/internal/shared"
	"civicconnect_backend/internal/user"

	"github.com/google/wire"
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		// Platform Layer
		logger.New,
		database.NewGORM,
		platformes.NewClient,
		platformredis.NewClient,
		filestorage.NewFileStorageService,
		wire.Bind(new(issue.PhotoStorage), new(*filestorage.FileStorageService)),

		// Users and the access gate
		user.NewGORMRepository,
		user.NewService,
		wire.Bind(new(user.Service), new(*user.ServiceImplementation)),
		wire.Bind(new(middleware.IdentityLoader), new(*user.ServiceImplementation)),
		wire.Bind(new(notification.UserFinder), new(user.Repository)),
		wire.Bind(new(issue.UserDirectory), new(user.Repository)),
		auth.NewJWTService,
		wire.Bind(new(shared.TokenService), new(*auth.JWTService)),
		auth.NewInMemoryBlocklistService,
		wire.Bind(new(auth.TokenBlocklistService), new(*auth.InMemoryBlocklistService)),
		wire.Bind(new(middleware.Blocklist), new(*auth.InMemoryBlocklistService)),
		middleware.NewAuthenticator,
		auth.NewHandler,
		user.NewHandler,

		// Notifications
		notification.NewGORMRepository,
		notification.NewChannels,
		notification.NewService,
		wire.Bind(new(notification.Service), new(*notification.ServiceImplementation)),
		wire.Bind(new(issue.Notifier), new(*notification.ServiceImplementation)),
		notification.NewHandler,

		// Issues
		issue.NewGORMRepository,
		issue.NewSearchIndex,
		issue.NotifyPolicyFromConfig,
		issue.NewService,
		wire.Bind(new(issue.Service), new(*issue.ServiceImplementation)),
		issue.NewHandler,

		// Application Layer
		app.NewServer,
	)
	return nil, nil, nil
}
