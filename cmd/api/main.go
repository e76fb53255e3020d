package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"trackfeed/internal/adapters/gateway"
	server "trackfeed/internal/adapters/http_server"
	"trackfeed/internal/adapters/observability"
	redisad "trackfeed/internal/adapters/redis"
	"trackfeed/internal/app"
	"trackfeed/internal/shared"
	mysqlrepo "trackfeed/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// snapshot db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("snapshot database connection ok")

	// deps
	snaps := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.RedisPrefix)

	gw, err := gateway.New(cfg.GatewayBase, cfg.GatewayKey, cfg.GatewayRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gateway client")
	}

	descriptors := app.NewDescriptorService(gw, cache, int(cfg.CacheTTL.Seconds()))
	resolver := app.NewResolver(gw, gw, gw, gw, descriptors, cache, snaps, cfg.FacetTimeout)
	feed := app.NewFeedService(gw, resolver, snaps, cfg.Workers, cfg.StubTimeout)
	reactions := app.NewReactionController(gw, cache, int(cfg.MarkTTL.Seconds()), cfg.ToggleTimeout)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Feed: feed, Reactions: reactions})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
