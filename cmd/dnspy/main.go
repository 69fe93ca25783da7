// Command dnspy starts the UDP DNS proxy. Grounded on
// original_source/Server.py's main(): load an optional dotenv file,
// resolve configuration, start the server, and shut down cleanly on
// signal.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirdaaee/dnspy/internal/config"
	"github.com/amirdaaee/dnspy/internal/logging"
	"github.com/amirdaaee/dnspy/internal/pipeline"
	"github.com/amirdaaee/dnspy/internal/registry"
	"github.com/amirdaaee/dnspy/internal/server"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	// Registers every built-in filter class via init().
	_ "github.com/amirdaaee/dnspy/internal/plugins/authoritative"
	_ "github.com/amirdaaee/dnspy/internal/plugins/example"
	_ "github.com/amirdaaee/dnspy/internal/plugins/probe"
	_ "github.com/amirdaaee/dnspy/internal/plugins/querylog"
)

func main() {
	os.Exit(run())
}

func run() int {
	envFile := pflag.String("env-file", "", "path to env file for configuration")
	pflag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			logrus.WithError(err).Error("failed to load env file")
			return 1
		}
	}

	if err := logging.Configure(envOrDefault("DNSPY__LOG_LEVEL", "info")); err != nil {
		logrus.WithError(err).Warn("invalid log level, defaulting to info")
	}
	log := logging.NewWithPlugin("main")

	settings, err := config.Load(config.EnvironMap(os.Environ()), registry.Schemas(), log)
	if err != nil {
		log.WithError(err).Error("configuration error")
		return 1
	}

	settingsJSON, _ := json.Marshal(settings)
	log.Infof("configuration: %s", settingsJSON)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	filters, err := registry.Build(ctx, settings)
	if err != nil {
		log.WithError(err).Error("plugin initialization error")
		return 1
	}

	if err := config.WriteSnapshot(settings); err != nil {
		log.WithError(err).Warn("failed to write runtime snapshot")
	}
	defer func() {
		if err := config.RemoveSnapshot(); err != nil {
			log.WithError(err).Warn("failed to remove runtime snapshot")
		}
	}()

	engine := pipeline.New(filters, settings.UpstreamAddr())
	srv := server.New(settings.LocalAddr(), engine)

	log.Infof("listening on %s, forwarding to %s", settings.LocalAddr(), settings.UpstreamAddr())
	if err := srv.Serve(ctx); err != nil {
		log.WithError(err).Error("server error")
		return 1
	}

	log.Info("server shutdown")
	return 0
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
