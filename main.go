package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mbolis/surveyer/app"
	"github.com/mbolis/surveyer/config"
	"github.com/mbolis/surveyer/database"
	"github.com/mbolis/surveyer/log"
	"github.com/mbolis/surveyer/routes"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config: ", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	storage, err := database.Open(cfg.StorageUrl, cfg.SessionTTL)
	if err != nil {
		log.Fatal("main.storage.open: ", err)
	}
	purgeStale(storage, cfg.SessionTTL)

	app := app.New(cfg, storage)
	handler := routes.Wire(app)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Timeout + 10*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Listening on " + cfg.Url())
	if err := runServer(ctx, srv, storage); err != nil {
		log.Fatal("main.server: ", err)
	}
}

// purgeStale drops SQLite rows older than the session ttl; redis expires its
// own keys.
func purgeStale(storage database.Storage, ttl time.Duration) {
	store, ok := storage.(*database.SQLiteStore)
	if !ok {
		return
	}
	n, err := store.PurgeBefore(context.Background(), time.Now().Add(-ttl))
	if err != nil {
		log.Warn("main.storage.purge: ", err)
		return
	}
	if n > 0 {
		log.Infof("main.storage.purge: removed %d stale items", n)
	}
}

func runServer(ctx context.Context, srv *http.Server, storage database.Storage) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		storage.Close()
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		result = multierror.Append(result, err)
	}
	if err := storage.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
