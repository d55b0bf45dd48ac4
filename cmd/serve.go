package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/planwise/planner-cli/internal/fingerprint"
	"github.com/planwise/planner-cli/internal/model"
	"github.com/planwise/planner-cli/internal/narrative"
	"github.com/planwise/planner-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownGracefully(srv, 10*time.Second)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownGracefully drains in-flight requests under a fresh timeout. The
// signal context that triggered the shutdown is already cancelled, so it
// cannot serve as the drain deadline.
func shutdownGracefully(srv *http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/fingerprint", handleFingerprint)
		r.Post("/scenario/parse", handleScenarioParse(env))
		r.Post("/narrative", handleNarrative(env))
		r.Post("/validate", handleValidate(env))
		r.Get("/requests", handleListRequests(env))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleFingerprint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input model.ProjectionInput `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Input == nil {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	key, err := fingerprint.CacheKey(req.Input)
	if err != nil {
		var serr *fingerprint.SerializationError
		if errors.As(err, &serr) {
			writeError(w, http.StatusUnprocessableEntity, serr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"fingerprint": key})
}

func handleScenarioParse(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		// Failures are part of the response envelope, always 200.
		resp := env.Parser.Parse(r.Context(), req.Query)
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleNarrative(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input model.ProjectionInput `json:"input"`
			Query string                `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Input == nil {
			writeError(w, http.StatusBadRequest, "input is required")
			return
		}

		result, err := env.Narrative.Generate(r.Context(), req.Input, req.Query)
		if err != nil {
			var perr *narrative.ScenarioParseError
			if errors.As(err, &perr) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
					"reason": string(perr.Reason),
					"error":  perr.Message,
				})
				return
			}
			zap.L().Error("narrative request failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleValidate(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text     string          `json:"text"`
			Sections []model.Section `json:"sections"`
			Required []string        `json:"required"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if len(req.Sections) > 0 {
			result, err := env.Validator.ValidateSections(req.Sections, req.Required)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, result)
			return
		}

		writeJSON(w, http.StatusOK, env.Validator.ValidateText(req.Text))
	}
}

func handleListRequests(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		records, err := env.Store.ListRecords(r.Context(), store.RecordFilter{
			Outcome:     model.NarrativeOutcome(r.URL.Query().Get("outcome")),
			Fingerprint: r.URL.Query().Get("fingerprint"),
			Limit:       limit,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if records == nil {
			records = []model.NarrativeRecord{}
		}

		writeJSON(w, http.StatusOK, records)
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
