package http

import (
	"context"
	"net/http"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	"traderboard/internal/api/http/mw"
	"traderboard/internal/config"
	"traderboard/internal/security"
)

type Server struct {
	log logger.Logger
	srv *http.Server
}

type ServerDeps struct {
	Log      logger.Logger
	Cfg      *config.Config
	Handler  *Handler
	Verifier *security.RS256Verifier // nil when JWT is disabled
}

func NewServer(d *ServerDeps) *Server {
	logMW := mw.NewLogging(d.Log)

	var corsMW *mw.CORSMiddleware
	if d.Cfg.API.HTTP.CORS.Enabled {
		corsMW = mw.NewCORS(&d.Cfg.API.HTTP.CORS)
	}

	var jwtMW *mw.JWTMiddleware
	if d.Verifier != nil {
		jwtMW = mw.NewJWT(d.Verifier)
	}

	router := BuildRouter(d.Handler, logMW, corsMW, jwtMW)

	httpCfg := d.Cfg.API.HTTP
	addr := httpCfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  orDefault(httpCfg.ReadTimeout, 10*time.Second),
		WriteTimeout: orDefault(httpCfg.WriteTimeout, 15*time.Second),
		IdleTimeout:  orDefault(httpCfg.IdleTimeout, time.Minute),
	}

	return &Server{log: d.Log, srv: srv}
}

func (s *Server) Start() error {
	s.log.Infof("HTTP server listening on %s", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
