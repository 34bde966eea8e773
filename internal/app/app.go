package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"example.com/guessroom/internal/auth"
	"example.com/guessroom/internal/config"
	"example.com/guessroom/internal/game"
	"example.com/guessroom/internal/httpapi"
	"example.com/guessroom/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool
	rdb *redis.Client

	rooms    *game.Registry
	recorder *store.Recorder
	weekly   *store.WeeklyCounter

	srv *http.Server
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	// --- Postgres ---
	dbpool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})

	// Quick connectivity checks (fail fast).
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		dbpool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping (%s db=%d): %w", cfg.Redis.Addr, cfg.Redis.DB, err)
	}

	// --- Stats sink ---
	outcomes := store.NewOutcomeStore(dbpool)
	weekly := store.NewWeeklyCounter(rdb, cfg.Redis.WeeklyKey)
	recorder := store.NewRecorder(outcomes, weekly, cfg.Stats.QueueSize, log.With("component", "stats"))

	// --- Game ---
	rooms := game.NewRegistry(game.RegistryConfig{
		MaxRooms:  cfg.Rooms.Max,
		IdleTTL:   cfg.Rooms.IdleTTL,
		InboxSize: cfg.Rooms.InboxSize,
	}, recorder, log)

	authSvc := auth.NewService([]byte(cfg.Auth.Secret), cfg.Auth.TicketTTL)
	gameSrv := game.NewServer(game.Config{
		SendBuffer: cfg.WS.SendBuffer,
		MsgRate:    cfg.WS.MsgRate,
		MsgBurst:   cfg.WS.MsgBurst,
	}, rooms, authSvc, log)

	tickets := &httpapi.TicketHandler{Auth: authSvc}
	stats := &httpapi.StatsHandler{Weekly: weekly, Outcomes: outcomes}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	gameSrv.RegisterRoutes(mux)
	mux.HandleFunc("/api/ticket", tickets.Issue)
	mux.HandleFunc("/api/stats/weekly", stats.WeeklyTop)
	mux.HandleFunc("/api/stats/character/{id}", stats.Character)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:      cfg,
		log:      log,
		db:       dbpool,
		rdb:      rdb,
		rooms:    rooms,
		recorder: recorder,
		weekly:   weekly,
		srv:      srv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr, "max_rooms", a.cfg.Rooms.Max)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error { return a.rooms.RunSweeper(gctx, a.cfg.Rooms.SweepInterval) })
	g.Go(func() error { return a.recorder.Run(gctx) })
	g.Go(func() error { return a.weekly.RunWeeklyReset(gctx, time.Minute, a.log) })

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		a.rooms.Shutdown()
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

func (a *App) Close(ctx context.Context) error {
	// best-effort
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	return nil
}
