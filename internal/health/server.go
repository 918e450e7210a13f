// Package health serves the process liveness endpoint.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Server answers liveness probes. Sessions, when set, reports the number of
// live guild sessions.
type Server struct {
	addr     string
	router   *gin.Engine
	sessions func() int
	log      *zap.Logger
}

func New(addr string, sessions func() int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:     addr,
		router:   gin.New(),
		sessions: sessions,
		log:      log.Named("health"),
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, version.AppName+" is running!")
	})
	s.router.GET("/healthz", s.healthz)
}

func (s *Server) healthz(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if s.sessions != nil {
		resp["sessions"] = s.sessions()
	}
	c.JSON(http.StatusOK, resp)
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		s.log.Info("Shutting down health server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("Health server shutdown failed", zap.Error(err))
		}
	}()

	s.log.Info("Health server listening", zap.String("addr", s.addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
