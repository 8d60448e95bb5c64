package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/meghanavb/cardclash/internal/challenge"
	"github.com/meghanavb/cardclash/internal/channel"
	"github.com/meghanavb/cardclash/internal/config"
	"github.com/meghanavb/cardclash/internal/db/repository"
	"github.com/meghanavb/cardclash/internal/deck"
	"github.com/meghanavb/cardclash/internal/logging"
	"github.com/meghanavb/cardclash/internal/metrics"
	"github.com/meghanavb/cardclash/internal/server"
	ws "github.com/meghanavb/cardclash/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
}

// New bootstraps configs, logger, Postgres, Redis and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	deckRepo := repository.NewDeckRepository(pool)

	clock := clockwork.NewRealClock()
	m := metrics.New(prometheus.DefaultRegisterer)
	sessionChannel := channel.NewRedisChannel(redisClient, cfg.Challenge.PresenceTTL, logger)
	deckCache := deck.NewRuntimeCache(redisClient, cfg.Challenge.DeckCacheTTL)
	wsHub := ws.NewHub(logger)

	lobby := challenge.NewLobby(sessionRepo, deckRepo, deckCache, sessionChannel, clock, m, challenge.LobbyOptions{
		CardDuration: cfg.Challenge.CardDuration,
		DeckSize:     cfg.Challenge.DeckSize,
		OptionCount:  cfg.Challenge.OptionCount,
		MinPlayers:   cfg.Challenge.MinPlayers,
	}, logger)

	recorder := challenge.NewRecorder(sessionRepo, answerRepo, sessionChannel, clock, m, cfg.Challenge.CardDuration, logger)
	aggregator := challenge.NewAggregator(sessionRepo, answerRepo, logger)

	wsHandler := challenge.NewHandler(lobby, recorder, aggregator, sessionRepo, wsHub, sessionChannel, clock, m, challenge.HandlerOptions{
		CardDuration: cfg.Challenge.CardDuration,
		TickInterval: cfg.Challenge.TickInterval,
	}, logger)
	httpHandler := challenge.NewHTTPHandler(lobby, aggregator, deckCache, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, wsHandler.HandleWebSocket, httpHandler.Handle)

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   apiServer,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
