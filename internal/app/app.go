package app

import (
	"context"
	"errors"
	"net/http"

	"gitlab.com/nevasik7/alerting/logger"

	"traderboard/internal/service"
)

type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

type App struct {
	log     logger.Logger
	svc     *service.Service
	httpSrv HTTPServer
}

func New(log logger.Logger, svc *service.Service, httpSrv HTTPServer) *App {
	return &App{log: log, svc: svc, httpSrv: httpSrv}
}

func (a *App) Start() error {
	a.log.Debug("App started begin...")

	if err := a.svc.Start(); err != nil {
		return err
	}

	go func() {
		if err := a.httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("Start HTTP server is error=%v", err)
		}
	}()

	a.log.Info("App started")
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Debug("App stopped begin...")

	if err := a.httpSrv.Shutdown(ctx); err != nil {
		return err
	}

	if err := a.svc.Stop(); err != nil && !errors.Is(err, service.ErrNotStarted) {
		return err
	}

	a.log.Info("App stopped")
	return nil
}
