package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/znxtech/mechbot/bot"
	"github.com/znxtech/mechbot/command"
	"github.com/znxtech/mechbot/httputil"
	"github.com/znxtech/mechbot/repost"
	"github.com/znxtech/mechbot/save"
	"github.com/znxtech/mechbot/store"
	"github.com/znxtech/mechbot/twitch"
	"github.com/znxtech/mechbot/twitchirc"
)

func main() {
	// Local development reads secrets from a .env file, a missing file is
	// fine.
	_ = godotenv.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	log.Logger = logger

	app := &cli.Command{
		Name:        "mechbot",
		Description: "Twitch chat bot with commands, ranks and repost detection",
		Usage:       "Run the mechbot chat bot",
		Commands: []*cli.Command{
			versionCMD,
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "client-id",
				Usage:   "Twitch OAuth Client-ID",
				Sources: cli.EnvVars("TWITCH_CLIENT_ID"),
			},
			&cli.StringFlag{
				Name:    "client-secret",
				Usage:   "Twitch OAuth client secret, used for Helix app tokens",
				Sources: cli.EnvVars("TWITCH_CLIENT_SECRET"),
			},
			&cli.StringFlag{
				Name:    "bot-nick",
				Usage:   "Login name of the bot account",
				Sources: cli.EnvVars("TWITCH_BOT_NICK"),
			},
			&cli.StringFlag{
				Name:    "bot-oauth",
				Usage:   "IRC OAuth token of the bot account",
				Sources: cli.EnvVars("TWITCH_BOT_OAUTH"),
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path of the SQLite database file",
				Value: "mechbot.db",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path of the settings file, defaults to the user config directory",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Listen address of the Prometheus metrics server, empty disables it",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			for _, required := range []string{"client-id", "client-secret", "bot-nick", "bot-oauth"} {
				if cmd.String(required) == "" {
					return fmt.Errorf("missing required flag %s", required)
				}
			}

			return run(ctx, logger, cmd)
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatal().Err(err).Msg("mechbot exited with error")
	}
}

func run(ctx context.Context, logger zerolog.Logger, cmd *cli.Command) error {
	settings, err := loadSettings(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("error while loading settings: %w", err)
	}

	db, err := store.Open(cmd.String("db"))
	if err != nil {
		return fmt.Errorf("error while opening database: %w", err)
	}
	defer db.Close()

	st := store.New(logger, db)
	if err := st.Prepare(ctx); err != nil {
		return fmt.Errorf("error while preparing database: %w", err)
	}

	httpClient := &http.Client{
		Transport: httputil.NewLoggingRoundTrip(nil, logger, Version),
	}

	api, err := twitch.NewAPI(logger, cmd.String("client-id"),
		twitch.WithClientSecret(cmd.String("client-secret")),
		twitch.WithHTTPClient(httpClient),
	)
	if err != nil {
		return fmt.Errorf("error while creating api client: %w", err)
	}

	registry := command.NewRegistry(logger,
		bot.StoreRankSource{Users: st},
		bot.StoreChannelFlags{Channels: st},
		bot.HelixLiveSource{API: api},
		command.WithPrefix(settings.CommandPrefix),
	)
	defer registry.Close()

	sender := bot.NewSender(logger, st, api)

	repostCache := repost.NewCache(logger, st, sender,
		repost.WithExcludedDomains(settings.Repost.ExcludeDomains),
	)
	defer repostCache.Stop()

	// The bot never reacts to itself or to other known bots.
	knownBots := append(settings.NormalizedKnownBots(), strings.ToLower(cmd.String("bot-nick")))

	handler := bot.New(ctx, logger, st, registry, repostCache, knownBots)

	conn := twitchirc.NewConn(
		twitchirc.Credentials{Nick: cmd.String("bot-nick"), OAuth: cmd.String("bot-oauth")},
		bot.StoreChannelSource{Channels: st},
		handler,
		logger,
	)
	sender.SetConn(conn)

	bot.RegisterBuiltins(registry, bot.Builtins{
		Logger:   logger,
		Store:    st,
		Resolver: api,
		Conn:     conn,
		Sender:   sender,
	})

	if addr := cmd.String("metrics-addr"); addr != "" {
		runMetricsServer(ctx, logger, addr)
	}

	go conn.Run()

	logger.Info().Str("nick", cmd.String("bot-nick")).Msg("mechbot running")

	<-ctx.Done()

	logger.Info().Msg("shutting down")
	conn.Close()
	handler.Wait()

	return nil
}

func loadSettings(path string) (save.Settings, error) {
	if path == "" {
		return save.SettingsFromDisk()
	}

	return save.SettingsFromFile(afero.NewOsFs(), path)
}

func runMetricsServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info().Msg("shutting down metrics server")
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("error while shutting down metrics server")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("running metrics server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("error while running metrics server")
			os.Exit(1)
		}
	}()
}
