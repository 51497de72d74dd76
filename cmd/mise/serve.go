package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/korjavin/mise/pkg/storage"
)

// serveMetrics exposes handler on addr until ctx is done. An empty addr
// disables the endpoint.
func serveMetrics(ctx context.Context, addr string, handler http.Handler) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Serving metrics on %s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// collectGarbage runs the store GC loop until ctx is done
func collectGarbage(ctx context.Context, store *storage.Store) error {
	if cfg.Storage.GCInterval > 0 {
		store.RunGCLoop(ctx, cfg.Storage.GCInterval)
	}
	return nil
}

// quiet maps a cancelled context to a clean exit
func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
