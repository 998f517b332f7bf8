package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"balance-game-service/internal/app"
	"balance-game-service/internal/catalog"
	"balance-game-service/internal/config"
	"balance-game-service/internal/infra/hybrid"
	"balance-game-service/internal/infra/memory"
	infrapostgres "balance-game-service/internal/infra/postgres"
	infraredis "balance-game-service/internal/infra/redis"
	"balance-game-service/internal/logging"
	transport "balance-game-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the balance game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// loadConfig reads .env, the YAML file and BALANCE_* overrides, and installs
// the configured logger as the slog default.
func loadConfig(path string) (config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// stores is the persistence wiring chosen from config.
type stores struct {
	sessions app.SessionRepository
	sets     app.QuestionSetRepository
	votes    app.VoteRepository
	close    func()
}

// buildStores picks Redis or memory as the local store and, when Postgres is
// configured, puts the hybrid remote-first decorators in front of it.
func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	var closers []func()
	s := stores{}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable at startup", "addr", cfg.Redis.Addr, "err", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		s.sessions = infraredis.NewSessionStore(client, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
		s.sets = infraredis.NewQuestionSetStore(client)
		s.votes = infraredis.NewVoteStore(client)
		logger.Info("local store: redis", "addr", cfg.Redis.Addr)
	} else {
		s.sessions = memory.NewSessionStore()
		s.sets = memory.NewQuestionSetStore()
		s.votes = memory.NewVoteStore()
		logger.Info("local store: memory")
	}

	if cfg.Postgres.URL != "" {
		pool, err := connectPostgres(ctx, cfg.Postgres)
		if err != nil {
			return s, err
		}
		closers = append(closers, pool.Close)
		s.sets = hybrid.NewQuestionSetStore(infrapostgres.NewQuestionSetStore(pool), s.sets, logger)
		s.votes = hybrid.NewVoteStore(infrapostgres.NewVoteStore(pool), s.votes, logger)
		logger.Info("remote store: postgres")
	}

	s.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return s, nil
}

func connectPostgres(ctx context.Context, pc config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(pc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	timeout := config.TTLDuration(pc.Timeout, 3*time.Second)
	poolCfg.ConnConfig.ConnectTimeout = timeout
	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(timeout.Milliseconds(), 10)
	return pgxpool.ConnectConfig(ctx, poolCfg)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg.Postgres.URL, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	cat, err := catalog.Load()
	if err != nil {
		return err
	}

	st, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	sets := memory.NewQuestionSetCache(st.sets, config.TTLDuration(cfg.Cache.TTL, time.Minute))
	tallies := app.NewTallyService(st.votes, logger)
	games := app.NewGameService(cat, sets, st.sessions, tallies, logger, app.GameConfig{
		CategoryQuestionCount: cfg.Game.CategoryQuestionCount,
		DefaultWorldCupRounds: cfg.Game.DefaultWorldCupRounds,
	})
	setService := app.NewQuestionSetService(sets, logger)

	api := transport.NewAPI(games, setService, tallies, cat, logger)
	wsHandler := transport.NewWSHandler(games, tallies, logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(api, wsHandler, cfg.Server.AllowedOrigins, logger),
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		logger.Info("starting balance game service", "port", finalPort, "questions", len(cat.All()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
