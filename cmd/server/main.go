package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"tetrio-stats/internal/archive"
	"tetrio-stats/internal/config"
	"tetrio-stats/internal/constants"
	fxmodules "tetrio-stats/internal/fx"
	"tetrio-stats/internal/middleware"
	"tetrio-stats/internal/server"
	"tetrio-stats/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	srv *server.Server,
	replayer *archive.Replayer,
	globalSvc *service.GlobalService,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := middleware.RequestID(logger)(c.Handler(srv.Routes()))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler,
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.GlobalSweepCron, func() {
		if _, err := globalSvc.CaptureLive(context.Background()); err != nil {
			logger.Error().Err(err).Msg("scheduled global sweep failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.GlobalSweepCron).Msg("invalid global sweep schedule")
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Catch up on archived sweeps before serving; the day gate
			// makes this safe to repeat on every start.
			if _, err := replayer.Replay(ctx); err != nil {
				return err
			}

			sched.Start()

			go func() {
				logger.Info().Str("addr", httpSrv.Addr).Msg("server starting")
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			<-sched.Stop().Done()

			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
