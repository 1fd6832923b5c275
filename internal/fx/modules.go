package fx

import (
	"tetrio-stats/internal/api"
	"tetrio-stats/internal/archive"
	"tetrio-stats/internal/config"
	"tetrio-stats/internal/database"
	"tetrio-stats/internal/logger"
	"tetrio-stats/internal/repository"
	"tetrio-stats/internal/server"
	"tetrio-stats/internal/service"

	"go.uber.org/fx"
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewSnapshotRepository),
	fx.Provide(repository.NewGameRepository),
	fx.Provide(repository.NewMatchRepository),
	// api client
	fx.Provide(api.NewTetrioClient),
	fx.Provide(api.NewTranslator),
	// svc
	fx.Provide(service.NewPlayerService),
	fx.Provide(service.NewRecordsService),
	fx.Provide(service.NewMatchService),
	fx.Provide(service.NewGlobalService),
	fx.Provide(archive.NewReplayer),
	// server
	fx.Provide(server.NewServer),
)
