// Package httphandler exposes the transfer workflow as a JSON API.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/repomover/internal/application"
	"github.com/ericfisherdev/repomover/internal/domain/model"
	"github.com/ericfisherdev/repomover/internal/domain/port/driven"
)

// maxBodyBytes caps request bodies. Every request body is a small JSON object.
const maxBodyBytes = 1 << 20

// destinationWait bounds how long PUT /destination?wait=true blocks for the
// resolver to settle.
const destinationWait = 10 * time.Second

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	workflow *application.WorkflowService
	health   *application.HealthService
	logger   *slog.Logger
}

// NewHandler creates a new Handler with the required dependencies.
func NewHandler(
	workflow *application.WorkflowService,
	health *application.HealthService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		workflow: workflow,
		health:   health,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all API routes registered and
// middleware applied. Routes use Go 1.22+ enhanced patterns with method
// matching.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.GetHealth)
	mux.HandleFunc("GET /api/v1/state", h.GetState)

	mux.HandleFunc("POST /api/v1/auth", h.Login)
	mux.HandleFunc("DELETE /api/v1/auth", h.Logout)

	mux.HandleFunc("GET /api/v1/repositories", h.ListRepositories)
	mux.HandleFunc("POST /api/v1/repositories/refresh", h.RefreshRepositories)
	mux.HandleFunc("GET /api/v1/organizations", h.ListOrganizations)
	mux.HandleFunc("GET /api/v1/accounts/{name}", h.LookupAccount)

	mux.HandleFunc("PUT /api/v1/selection", h.SetSelection)
	mux.HandleFunc("POST /api/v1/selection/toggle", h.ToggleSelection)
	mux.HandleFunc("POST /api/v1/selection/all", h.SelectAll)

	mux.HandleFunc("PUT /api/v1/destination", h.SetDestination)
	mux.HandleFunc("POST /api/v1/step", h.MoveTo)

	mux.HandleFunc("POST /api/v1/transfer", h.StartTransfer)
	mux.HandleFunc("GET /api/v1/transfers", h.ListTransfers)
	mux.HandleFunc("GET /api/v1/transfers/{batch}", h.GetTransferBatch)

	mux.HandleFunc("POST /api/v1/reset", h.Reset)

	// Apply middleware: recovery first (innermost), then body limit, then
	// logging (outermost).
	var handler http.Handler = mux
	handler = recoveryMiddleware(logger)(handler)
	handler = bodyLimitMiddleware(maxBodyBytes)(handler)
	handler = loggingMiddleware(logger)(handler)

	return handler
}

// GetHealth handles GET /api/v1/health. A down database answers 503.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	summary := h.health.Check(r.Context())

	status := http.StatusOK
	if summary.Status == application.HealthDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, toHealthResponse(summary))
}

// GetState handles GET /api/v1/state.
func (h *Handler) GetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toStateResponse(h.workflow.State()))
}

// Login handles POST /api/v1/auth. The token is validated against GitHub
// before anything is stored.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if _, err := h.workflow.Authenticate(r.Context(), req.Token); err != nil {
		h.writeServiceError(w, "login", err)
		return
	}

	writeJSON(w, http.StatusOK, toStateResponse(h.workflow.State()))
}

// Logout handles DELETE /api/v1/auth.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.Logout(r.Context()); err != nil {
		h.writeServiceError(w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRepositories handles GET /api/v1/repositories with optional q,
// visibility, and owner query parameters.
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q.Get("q"), q.Get("visibility"), q.Get("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toRepositoryResponses(h.workflow.Repositories(filter), h.viewer()))
}

// RefreshRepositories handles POST /api/v1/repositories/refresh.
func (h *Handler) RefreshRepositories(w http.ResponseWriter, r *http.Request) {
	h.workflow.FetchOrganizations(r.Context())
	if err := h.workflow.FetchRepositories(r.Context()); err != nil {
		h.writeServiceError(w, "refresh repositories", err)
		return
	}

	writeJSON(w, http.StatusOK, toRepositoryResponses(h.workflow.Repositories(model.RepositoryFilter{}), h.viewer()))
}

// ListOrganizations handles GET /api/v1/organizations?q=, ranking the loaded
// memberships against the query.
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs := h.workflow.SearchOrganizations(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, toIdentityResponses(orgs))
}

// LookupAccount handles GET /api/v1/accounts/{name}. It resolves immediately
// and answers 404 for an unknown account.
func (h *Handler) LookupAccount(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	identity, err := h.workflow.ValidateDestination(r.Context(), name)
	if err != nil {
		h.writeServiceError(w, "lookup account", err)
		return
	}
	if identity == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	writeJSON(w, http.StatusOK, toIdentityResponse(*identity))
}

// SetSelection handles PUT /api/v1/selection.
func (h *Handler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.workflow.SetSelection(req.Repositories); err != nil {
		h.writeServiceError(w, "set selection", err)
		return
	}

	writeJSON(w, http.StatusOK, toStateResponse(h.workflow.State()))
}

// ToggleSelection handles POST /api/v1/selection/toggle.
func (h *Handler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Repository) == "" {
		writeError(w, http.StatusBadRequest, "repository is required")
		return
	}

	selected, err := h.workflow.ToggleRepository(req.Repository)
	if err != nil {
		h.writeServiceError(w, "toggle selection", err)
		return
	}

	writeJSON(w, http.StatusOK, ToggleResponse{
		Repository: strings.TrimSpace(req.Repository),
		Selected:   selected,
		Selection:  h.selection(),
	})
}

// SelectAll handles POST /api/v1/selection/all. Repeating the request with
// the same filter deselects the matching repositories.
func (h *Handler) SelectAll(w http.ResponseWriter, r *http.Request) {
	var req SelectAllRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	filter, err := parseFilter(req.Query, req.Visibility, req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.workflow.SelectAll(filter)
	if err != nil {
		h.writeServiceError(w, "select all", err)
		return
	}

	writeJSON(w, http.StatusOK, SelectAllResponse{
		Count:     count,
		Selection: h.selection(),
	})
}

// SetDestination handles PUT /api/v1/destination. Validation runs after the
// debounce window; pass ?wait=true to block until it settles.
func (h *Handler) SetDestination(w http.ResponseWriter, r *http.Request) {
	var req DestinationRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.workflow.SetDestination(r.Context(), req.Name, req.IsOrganization); err != nil {
		h.writeServiceError(w, "set destination", err)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		writeJSON(w, http.StatusAccepted, toStateResponse(h.workflow.State()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), destinationWait)
	defer cancel()

	st, err := h.workflow.WaitDestination(ctx)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, "destination validation did not settle")
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(st))
}

// MoveTo handles POST /api/v1/step.
func (h *Handler) MoveTo(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	step, ok := model.ParseStep(strings.ToLower(strings.TrimSpace(req.Step)))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown step "+strconv.Quote(req.Step))
		return
	}

	if err := h.workflow.MoveTo(r.Context(), step); err != nil {
		h.writeServiceError(w, "move step", err)
		return
	}

	writeJSON(w, http.StatusOK, toStateResponse(h.workflow.State()))
}

// StartTransfer handles POST /api/v1/transfer. The batch runs in the
// background; progress is visible through GET /api/v1/state.
func (h *Handler) StartTransfer(w http.ResponseWriter, r *http.Request) {
	batchID, err := h.workflow.StartTransfer(r.Context())
	if err != nil {
		h.writeServiceError(w, "start transfer", err)
		return
	}

	writeJSON(w, http.StatusAccepted, TransferResponse{BatchID: batchID})
}

// ListTransfers handles GET /api/v1/transfers?limit=N.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.workflow.RecentTransfers(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "list transfers", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransferRecordResponses(records))
}

// GetTransferBatch handles GET /api/v1/transfers/{batch}.
func (h *Handler) GetTransferBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("batch")

	records, err := h.workflow.TransferHistory(r.Context(), batchID)
	if err != nil {
		h.writeServiceError(w, "get transfer batch", err)
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "transfer batch not found")
		return
	}

	writeJSON(w, http.StatusOK, toTransferRecordResponses(records))
}

// Reset handles POST /api/v1/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.Reset(r.Context()); err != nil {
		h.writeServiceError(w, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(h.workflow.State()))
}

// decodeBody decodes the JSON request body into v, writing a 400 on failure.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps domain errors to HTTP status codes. Anything
// unrecognized is logged and reported as a 500 without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var transportErr *model.TransportError

	switch {
	case errors.Is(err, model.ErrAuthenticationFailed):
		writeError(w, http.StatusUnauthorized, model.ErrAuthenticationFailed.Error())
	case errors.Is(err, model.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, model.ErrTransferInProgress), errors.Is(err, model.ErrInvalidStep):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrEmptySelection), errors.Is(err, model.ErrDestinationUnresolved):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &transportErr):
		h.logger.Warn("github request failed", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// viewer returns the authenticated login, or "" when logged out.
func (h *Handler) viewer() string {
	if id := h.workflow.State().Identity; id != nil {
		return id.Login
	}
	return ""
}

// selection returns the current selection, never nil.
func (h *Handler) selection() []string {
	if refs := h.workflow.State().Selection; refs != nil {
		return refs
	}
	return []string{}
}

// parseFilter builds a repository filter from raw query values. Empty
// visibility and owner mean "all".
func parseFilter(query, visibility, owner string) (model.RepositoryFilter, error) {
	f := model.RepositoryFilter{
		Query:      strings.TrimSpace(query),
		Visibility: model.VisibilityAll,
		Owner:      model.OwnerFilterAll,
	}

	switch v := model.Visibility(strings.ToLower(visibility)); v {
	case "", model.VisibilityAll:
	case model.VisibilityPublic, model.VisibilityPrivate:
		f.Visibility = v
	default:
		return f, errors.New("visibility must be one of all, public, private")
	}

	switch o := model.OwnerFilter(strings.ToLower(owner)); o {
	case "", model.OwnerFilterAll:
	case model.OwnerFilterPersonal, model.OwnerFilterOrganization:
		f.Owner = o
	default:
		return f, errors.New("owner must be one of all, personal, organization")
	}

	return f, nil
}
