package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/youruser/cardvault/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := api.NewRouter(newService(st), logger, api.Options{
		DefaultScope:  cfg.Collection.DefaultScope,
		SheetMaxCards: cfg.Collection.SheetMaxCards,
		SheetWorkers:  cfg.Collection.SheetWorkers,
		ImageHosts:    cfg.Collection.SheetImageHosts,
	})
	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: r}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", "http://localhost:"+cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
			zap.String("default_scope", cfg.Collection.DefaultScope))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
