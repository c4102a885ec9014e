package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/brandmerge-cli/internal/engine"
	"github.com/sells-group/brandmerge-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proposal review API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		srv := newAPIServer(env.Engine)
		r.Get("/health", srv.health)
		r.Post("/analyze", srv.analyze)
		r.Get("/proposals", srv.listProposals)
		r.Get("/proposals/{id}", srv.getProposal)
		r.Post("/proposals/{id}/approve", srv.approveProposal)
		r.Post("/proposals/{id}/reject", srv.rejectProposal)
		r.Post("/feedback", srv.feedback)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			httpSrv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type apiServer struct {
	engine *engine.Engine
}

func newAPIServer(eng *engine.Engine) *apiServer {
	return &apiServer{engine: eng}
}

func (s *apiServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) analyze(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Analyze(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) listProposals(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Analyze(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Proposals)
}

func (s *apiServer) getProposal(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Proposal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *apiServer) approveProposal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Force bool `json:"force"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, eris.Wrap(err, "invalid request body"))
			return
		}
	}

	result, err := s.engine.Approve(r.Context(), chi.URLParam(r, "id"), req.Force)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	if !result.Success {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) rejectProposal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, eris.Wrap(err, "invalid request body"))
			return
		}
	}

	if err := s.engine.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (s *apiServer) feedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Members             []string `json:"members"`
		Canonical           string   `json:"canonical"`
		Action              string   `json:"action"`
		PredictedConfidence float64  `json:"predicted_confidence"`
		Reason              string   `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "invalid request body"))
		return
	}

	action := model.FeedbackAction(req.Action)
	switch action {
	case model.FeedbackApproved, model.FeedbackRejected, model.FeedbackModified:
	default:
		writeError(w, http.StatusBadRequest, eris.Errorf("invalid action: %s", req.Action))
		return
	}
	if len(req.Members) < 2 || req.Canonical == "" {
		writeError(w, http.StatusBadRequest, eris.New("members (at least two) and canonical are required"))
		return
	}

	if err := s.engine.RecordFeedback(r.Context(), req.Members, req.Canonical, action, req.PredictedConfidence, req.Reason); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
