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
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/credit"
	"github.com/sells-group/leadfinder/internal/enrich"
	"github.com/sells-group/leadfinder/internal/inference"
	"github.com/sells-group/leadfinder/internal/leadfinder"
	"github.com/sells-group/leadfinder/internal/leadio"
	"github.com/sells-group/leadfinder/internal/model"
	"github.com/sells-group/leadfinder/internal/monitoring"
	"github.com/sells-group/leadfinder/internal/telemetry"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Orchestrator, env.Breakers),
				monitoring.NewAlerter(cfg.Monitoring.WebhookURL),
				time.Duration(cfg.Monitoring.CheckIntervalSecs)*time.Second,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Orchestrator, env.Ledger, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// api serves the HTTP surface over an orchestrator and ledger.
type api struct {
	orch   *enrich.Orchestrator
	ledger *credit.Ledger
}

// buildRouter wires routes and CORS.
func buildRouter(orch *enrich.Orchestrator, ledger *credit.Ledger, origins []string) http.Handler {
	a := &api{orch: orch, ledger: ledger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", a.handleHealth)
	r.Mount("/metrics", telemetry.Handler())

	r.Post("/enrich", a.handleEnrich)
	r.Post("/enrich/estimate", a.handleEstimate)
	r.Post("/emails/find", a.handleFindEmail)
	r.Post("/emails/validate", a.handleValidateEmails)
	r.Get("/usage", a.handleUsage)
	r.Get("/credits/{user}", a.handleBalance)
	r.Post("/credits/{user}", a.handleAddCredits)
	return r
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := a.orch.ServicesStatus(r.Context())
	status := "ok"
	for _, s := range services {
		if !s.OK {
			status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": status, "services": services})
}

type enrichRequest struct {
	Leads   []model.Lead      `json:"leads"`
	Query   *leadfinder.Query `json:"query,omitempty"`
	Options *enrich.Options   `json:"options,omitempty"`
	UserID  string            `json:"user_id"`
}

func (a *api) handleEnrich(w http.ResponseWriter, r *http.Request) {
	format := leadio.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		var err error
		if format, err = leadio.ParseFormat(f); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var req enrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Leads) == 0 && req.Query == nil {
		respondError(w, http.StatusBadRequest, "leads or query is required")
		return
	}

	opts := enrich.DefaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	opts.UserID = req.UserID

	var (
		res *model.EnrichmentResult
		err error
	)
	if len(req.Leads) > 0 {
		res, err = a.orch.Enrich(r.Context(), req.Leads, opts)
	} else {
		res, err = a.orch.SearchAndEnrich(r.Context(), *req.Query, opts)
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	if format != leadio.FormatJSON {
		w.Header().Set("Content-Type", leadio.ContentType(format))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=leads.%s", format))
		if err := leadio.Export(w, format, res.Leads); err != nil {
			zap.L().Error("api: export leads", zap.Error(err))
		}
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type estimateRequest struct {
	LeadCount int             `json:"lead_count"`
	Options   *enrich.Options `json:"options,omitempty"`
}

func (a *api) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LeadCount < 0 {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	opts := enrich.DefaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	respondJSON(w, http.StatusOK, a.orch.EstimateCost(req.LeadCount, opts))
}

type findEmailRequest struct {
	Domain      string `json:"domain"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name"`
	UserID      string `json:"user_id"`
}

func (a *api) handleFindEmail(w http.ResponseWriter, r *http.Request) {
	var req findEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Domain == "" {
		respondError(w, http.StatusBadRequest, "domain is required")
		return
	}

	found, err := a.orch.FindEmail(r.Context(), req.UserID, inference.Request{
		Domain:      req.Domain,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	if found == nil {
		respondError(w, http.StatusNotFound, "no address found")
		return
	}
	respondJSON(w, http.StatusOK, found)
}

type validateRequest struct {
	Emails []string `json:"emails"`
	UserID string   `json:"user_id"`
}

func (a *api) handleValidateEmails(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Emails) == 0 || len(req.Emails) > enrich.MaxBulkValidation {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("emails must hold 1 to %d addresses", enrich.MaxBulkValidation))
		return
	}

	res, err := a.orch.ValidateEmails(r.Context(), req.UserID, req.Emails)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": res})
}

func (a *api) handleUsage(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"providers": a.orch.Usage(r.Context())})
}

func (a *api) handleBalance(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	bal, err := a.ledger.GetBalance(r.Context(), user)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": user, "balance": bal})
}

func (a *api) handleAddCredits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	res, err := a.ledger.Add(r.Context(), chi.URLParam(r, "user"), req.Amount)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondErr maps domain errors to status codes.
func respondErr(w http.ResponseWriter, err error) {
	var unavailable *model.ProviderUnavailableError
	switch {
	case errors.Is(err, model.ErrInsufficientCredits):
		respondError(w, http.StatusPaymentRequired, model.ErrInsufficientCredits.Error())
	case errors.Is(err, model.ErrInvalidDomain):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		zap.L().Error("api: request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
