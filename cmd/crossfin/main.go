package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/crossfin/crossfin/internal/aggregate"
	"github.com/crossfin/crossfin/internal/bytecache"
	"github.com/crossfin/crossfin/internal/config"
	"github.com/crossfin/crossfin/internal/decision"
	"github.com/crossfin/crossfin/internal/httpapi"
	"github.com/crossfin/crossfin/internal/market"
	"github.com/crossfin/crossfin/internal/netx"
	"github.com/crossfin/crossfin/internal/registry"
	"github.com/crossfin/crossfin/internal/routing"
	"github.com/crossfin/crossfin/internal/sched"
	"github.com/crossfin/crossfin/internal/store"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("CROSSFIN_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	root := &cobra.Command{
		Use:   "crossfin",
		Short: "Market-data gateway for AI agents",
		Long:  "CrossFin aggregates Korean and global crypto markets, scores arbitrage opportunities, and plans cross-border bridge-coin routes.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config overlay")

	root.AddCommand(serveCmd(), snapshotCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			app, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go app.snapshots.Run(ctx)
			if cfg.GuardianEnabled {
				go sched.NewGuardian(app.agg).Run(ctx)
			}

			errCh := make(chan error, 1)
			go func() { errCh <- app.server.Start() }()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return app.server.Shutdown(shutdownCtx)
		},
	}
}

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Write one premium snapshot batch and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			app, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.close()
			return app.snapshots.WriteOnce(cmd.Context())
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the built-in service catalog and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			app, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.close()
			return app.registry.Seed(cmd.Context())
		},
	}
}

// app holds the wired object graph.
type app struct {
	db        *sqlx.DB
	agg       *aggregate.Service
	registry  *registry.Registry
	snapshots *sched.SnapshotWriter
	server    *httpapi.Server
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	snapshotRepo := store.NewSnapshotRepo(db)
	serviceRepo := store.NewServiceRepo(db)
	callRepo := store.NewCallRepo(db)

	client := netx.NewClient()
	data := market.NewData(market.Options{
		Client:       client,
		Snapshots:    snapshotRepo,
		Persisted:    bytecache.New(cfg.RedisAddr),
		RPCEndpoints: cfg.RPCEndpoints,
		USDCContract: cfg.USDCContract,
		Receiver:     cfg.PaymentReceiver,
	})

	trend := decision.NewTrendService(snapshotRepo)
	agg := aggregate.NewService(data, trend, snapshotRepo)
	engine := routing.NewEngine(data, trend)
	reg := registry.New(serviceRepo, client)
	writer := sched.NewSnapshotWriter(agg, snapshotRepo, cfg.SnapshotInterval)

	handlers := httpapi.NewHandlers(agg, engine, snapshotRepo, reg, callRepo, writer.WriteOnce)
	server := httpapi.NewServer(*cfg, handlers)

	if err := reg.Seed(ctx); err != nil {
		log.Warn().Err(err).Msg("registry seed failed, continuing")
	}

	return &app{
		db:        db,
		agg:       agg,
		registry:  reg,
		snapshots: writer,
		server:    server,
	}, nil
}
