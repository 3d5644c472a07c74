// Package server parses server command flags and starts the ledger service.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/louisbranch/coffers/internal/platform/config"
	"github.com/louisbranch/coffers/internal/platform/otel"

	ledgerhttp "github.com/louisbranch/coffers/internal/ledger/api/http"
	"github.com/louisbranch/coffers/internal/ledger/app"
	"github.com/louisbranch/coffers/internal/ledger/storage"
	"github.com/louisbranch/coffers/internal/ledger/storage/memory"
	"github.com/louisbranch/coffers/internal/ledger/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// Config holds server command configuration.
type Config struct {
	Port   int    `env:"COFFERS_PORT" envDefault:"8080"`
	Addr   string `env:"COFFERS_ADDR"`
	DBPath string `env:"COFFERS_DB_PATH" envDefault:"coffers.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (\"memory\" for in-memory storage)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// OpenStore opens the storage backend named by the config. The literal path
// "memory" selects the in-memory store, anything else is a SQLite file.
func OpenStore(cfg Config) (storage.Store, error) {
	if cfg.DBPath == "memory" {
		return memory.New(), nil
	}
	return sqlite.Open(cfg.DBPath)
}

// Run starts the ledger HTTP service and blocks until ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	shutdownOtel, err := otel.Setup(ctx, "coffers")
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			log.Printf("shutdown telemetry: %v", err)
		}
	}()

	store, err := OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	service := app.New(store, app.WithViewStore(store))
	if err := service.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild read model: %w", err)
	}

	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Port)
	}
	srv := &http.Server{
		Addr:        addr,
		Handler:     ledgerhttp.NewHandler(service),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return <-errCh
}
