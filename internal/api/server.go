// Package api serves the front desk over local HTTP: JSON routes under /api,
// a server-sent event stream, prometheus metrics and a health check.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/frontdesk/internal/frontdesk"
	"github.com/zulandar/frontdesk/internal/logging"
	"go.uber.org/zap"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Service *frontdesk.Service
	Port    int
	Log     *zap.Logger
	Out     io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Service == nil {
		return fmt.Errorf("api: service is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8765
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", opts.Port),
		Handler:           NewRouter(opts.Service, opts.Log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Front desk API listening on http://127.0.0.1:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc *frontdesk.Service, log *zap.Logger) *gin.Engine {
	log = logging.OrNop(log)
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	registerRoutes(router, svc)
	return router
}

// requestLogger logs one line per request at debug level, or warn for 5xx.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request failed", append(fields, zap.Strings("errors", c.Errors.Errors()))...)
			return
		}
		log.Debug("request", fields...)
	}
}
