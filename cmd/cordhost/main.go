// cmd/cordhost/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/keshon/cordhost/internal/app"
	"github.com/keshon/cordhost/internal/config"
	"github.com/keshon/cordhost/internal/discord"
	"github.com/keshon/cordhost/internal/logging"
	"github.com/keshon/cordhost/internal/metrics"
	"github.com/keshon/cordhost/pkg/retrylimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logFile, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Pretty: cfg.LogPretty})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logFile.Close()

	log.Info().Msg("Starting cordhost...")

	if err := cfg.RequireToken(); err != nil {
		log.Fatal().Err(err).Send()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dg, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		log.Fatal().Err(err).Send()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	limiter := retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
	host, err := app.New(cfg, app.Deps{
		Platform:   discord.NewTicketPlatform(dg, limiter),
		Roles:      discord.NewRoleProvider(dg),
		Registerer: reg,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to assemble components")
	}
	defer host.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	bot := discord.NewBot(dg, host.Dispatcher, discord.Options{
		Blacklist:    cfg.BlacklistedGuilds,
		EventTimeout: cfg.EventTimeout,
		Limiter:      limiter,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx, dg); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("Shutting down...")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Discord bot error")
		}
		cancel()
	}

	log.Info().Msg("cordhost exited cleanly")
}
