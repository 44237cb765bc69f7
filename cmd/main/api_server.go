package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CTAG07/gentpl/pkg/codegen"
	"github.com/CTAG07/gentpl/pkg/ledger"
	"github.com/spf13/cobra"
)

// maxPreviewBytes bounds the request body of render and preview calls.
const maxPreviewBytes = 1 << 20

// PreviewAPI serves template listing, rendering and ledger statistics.
type PreviewAPI struct {
	engine *codegen.Engine
	ledger *ledger.Ledger // nil when the ledger is disabled
	logger *slog.Logger
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// RenderRequest is the body of /api/templates/render.
type RenderRequest struct {
	Template string                    `json:"template"`
	Vars     map[string]any            `json:"vars"`
	Context  map[string]map[string]any `json:"context"`
}

// PreviewRequest is the body of /api/templates/preview. Text is compiled
// as a template named Name; its imports resolve from the source directory.
type PreviewRequest struct {
	Name    string                    `json:"name"`
	Text    string                    `json:"text"`
	Vars    map[string]any            `json:"vars"`
	Context map[string]map[string]any `json:"context"`
}

// RenderResponse carries the outcome of a render or preview.
type RenderResponse struct {
	Template   string `json:"template"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`
	Path       string `json:"path,omitempty"`
	Text       string `json:"text"`
}

func NewPreviewAPI(engine *codegen.Engine, l *ledger.Ledger, logger *slog.Logger) *PreviewAPI {
	return &PreviewAPI{engine: engine, ledger: l, logger: logger}
}

// RegisterRoutes sets up the routing for all API endpoints.
func (p *PreviewAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/templates", p.handleList)
	mux.HandleFunc("/api/templates/render", p.handleRender)
	mux.HandleFunc("/api/templates/preview", p.handlePreview)
	mux.HandleFunc("/api/templates/refresh", p.handleRefresh)
	mux.HandleFunc("/api/stats", p.handleStats)
	mux.HandleFunc("/api/server/version", p.handleVersion)
}

// handleList returns the ids of all templates below the source directory.
func (p *PreviewAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ids, err := p.engine.TemplateIDs()
	if err != nil {
		p.logger.Error("Failed to list templates", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list templates: %v", err))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondWithJSON(w, http.StatusOK, ids)
}

// handleRender renders a template from the source directory without writing it.
func (p *PreviewAPI) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req RenderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPreviewBytes)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if req.Template == "" {
		respondWithError(w, http.StatusBadRequest, "Missing template")
		return
	}

	set := codegen.VarSet{Vars: req.Vars, Context: req.Context}
	res, err := p.engine.Render(r.Context(), req.Template, set.Bind(req.Template, time.Now()))
	if err != nil {
		p.respondWithRenderError(w, req.Template, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toRenderResponse(res))
}

// handlePreview renders template text sent in the request.
func (p *PreviewAPI) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req PreviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPreviewBytes)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if req.Name == "" {
		req.Name = "preview"
	}

	set := codegen.VarSet{Vars: req.Vars, Context: req.Context}
	res, err := p.engine.RenderText(r.Context(), req.Name, req.Text, set.Bind(req.Name, time.Now()))
	if err != nil {
		p.respondWithRenderError(w, req.Name, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toRenderResponse(res))
}

// handleRefresh drops the compiled template cache.
func (p *PreviewAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	p.engine.Refresh()
	p.logger.Info("Templates refreshed via API")
	w.WriteHeader(http.StatusNoContent)
}

func (p *PreviewAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if p.ledger == nil {
		respondWithError(w, http.StatusNotFound, "Ledger is disabled")
		return
	}
	stats, err := p.ledger.GetStats(r.Context())
	if err != nil {
		p.logger.Error("Failed to get ledger stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get stats")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// handleVersion returns the application's build information.
func (p *PreviewAPI) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})
}

// respondWithRenderError maps engine errors to status codes: template faults
// are the client's, everything else is ours.
func (p *PreviewAPI) respondWithRenderError(w http.ResponseWriter, name string, err error) {
	var compileErr *codegen.CompileError
	switch {
	case errors.Is(err, codegen.ErrTemplateNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &compileErr),
		errors.Is(err, codegen.ErrOutsideRoot),
		errors.Is(err, codegen.ErrUnresolvedPlaceholder),
		errors.Is(err, codegen.ErrAssertionFailed),
		errors.Is(err, codegen.ErrBlockNotFound),
		errors.Is(err, codegen.ErrNothingToRemove):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		p.logger.Error("Render failed", "template", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Render failed: %v", err))
	}
}

func toRenderResponse(res codegen.Result) RenderResponse {
	return RenderResponse{
		Template:   res.Template,
		Skipped:    res.Outcome == codegen.OutcomeSkipped,
		SkipReason: res.SkipReason,
		Path:       res.Path,
		Text:       res.Text(),
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}

func newServeCmd(appFn func() *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the template preview API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			if cmd.Flags().Changed("addr") {
				a.config.Server.ApiAddr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address of the API")
	return cmd
}

// serve runs the API until ctx is cancelled, then shuts it down gracefully.
func (a *app) serve(ctx context.Context) error {
	var l *ledger.Ledger
	if a.config.Ledger.Enabled {
		var closeLedger func()
		var err error
		if l, closeLedger, err = a.openLedger(); err != nil {
			return err
		}
		defer closeLedger()
	}

	mux := http.NewServeMux()
	NewPreviewAPI(a.newEngine(), l, a.logger).RegisterRoutes(mux)
	srv := &http.Server{
		Addr:              a.config.Server.ApiAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting preview API", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("preview API failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Stopping preview API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Preview API shutdown failed", "error", err)
	}
	a.logger.Info("Preview API stopped.")
	return nil
}
