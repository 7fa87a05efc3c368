// ABOUTME: HTTP server mode mounting every transport surface
// ABOUTME: Shuts down gracefully when the process context ends

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mauromedda/tandem/internal/log"
	"github.com/mauromedda/tandem/pkg/transport"
)

const shutdownGrace = 5 * time.Second

func runServe(ctx context.Context, factory transport.Factory, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/v1/stream", transport.SSEHandler(factory))
	mux.Handle("/v1/generate", transport.JSONHandler(factory))
	mux.Handle("/v1/text", transport.TextHandler(factory))
	mux.Handle("/v1/ws", transport.WSHandler(factory))

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("listening on %s", addr)

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
