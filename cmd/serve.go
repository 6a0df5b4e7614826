package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/censusgeo/internal/match"
	"github.com/sells-group/censusgeo/internal/tiger"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP resolution API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(requestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/layers", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, env.Areas.LayerNames())
		})

		r.Get("/resolve", func(w http.ResponseWriter, req *http.Request) {
			handleResolve(env, w, req)
		})

		r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, statusResult{
				Service: env.Client.BaseURL(),
				Breaker: env.Client.BreakerState().String(),
				Layers:  len(env.Areas.LayerNames()),
				Stats:   env.Client.StatsSnapshot(),
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		drained := make(chan struct{})
		go func() {
			defer close(drained)
			drainOnCancel(ctx, srv, 10*time.Second)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		<-drained

		return nil
	},
}

// drainOnCancel shuts the server down once ctx is canceled, on a fresh
// timeout context so in-flight requests can finish draining.
func drainOnCancel(ctx context.Context, srv *http.Server, timeout time.Duration) {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

func handleResolve(env *appEnv, w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	layer := q.Get("layer")
	if layer == "" {
		layer = "States"
	}

	areaReq := tiger.AreaRequest{Name: q.Get("name"), GEOID: q.Get("geoid")}
	area, err := env.Areas.Area(req.Context(), layer, areaReq)
	if err != nil {
		status := http.StatusInternalServerError
		var noMatch *match.NoMatchError
		var ambiguous *match.AmbiguousMatchError
		switch {
		case errors.As(err, &noMatch):
			status = http.StatusNotFound
		case errors.As(err, &ambiguous):
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	name, err := area.Name(req.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	attrs, _ := area.Attributes(req.Context())
	writeJSON(w, http.StatusOK, areaResult{
		Name:       name,
		GEOID:      area.GEOID(),
		Layer:      area.LayerName(),
		Attributes: attrs,
	})
}

// requestID tags every request with a UUID for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		zap.L().Debug("request",
			zap.String("id", id),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
		)
		next.ServeHTTP(w, req)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
