package httphandler

import (
	"encoding/json"
	"html"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/repomover/internal/application"
	"github.com/ericfisherdev/repomover/internal/domain/model"
)

// descriptionPolicy strips every tag from user-authored repository
// descriptions before they leave the API.
var descriptionPolicy = bluemonday.StrictPolicy()

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// IdentityResponse is the JSON representation of a GitHub account.
type IdentityResponse struct {
	Login          string `json:"login"`
	ID             int64  `json:"id"`
	Type           string `json:"type"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	IsOrganization bool   `json:"is_organization"`
}

// RepositoryResponse is the JSON representation of a repository in the inventory.
type RepositoryResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	FullName     string `json:"full_name"`
	Description  string `json:"description"`
	Private      bool   `json:"private"`
	Owner        string `json:"owner"`
	OwnerType    string `json:"owner_type"`
	URL          string `json:"url"`
	UpdatedAt    string `json:"updated_at"`
	Stars        int    `json:"stars"`
	Forks        int    `json:"forks"`
	Language     string `json:"language,omitempty"`
	SelectionKey string `json:"selection_key"`
}

// DestinationResponse is the destination input and its validation state.
type DestinationResponse struct {
	Input          string            `json:"input"`
	IsOrganization bool              `json:"is_organization"`
	Status         string            `json:"status"`
	Resolved       *IdentityResponse `json:"resolved"`
}

// OutcomeResponse is the result of one attempted transfer.
type OutcomeResponse struct {
	Repository string `json:"repository"`
	Success    bool   `json:"success"`
	NewURL     string `json:"new_url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TransferItemResponse is one repository's progress through a batch.
type TransferItemResponse struct {
	Repository string           `json:"repository"`
	State      string           `json:"state"`
	Outcome    *OutcomeResponse `json:"outcome"`
}

// SummaryResponse tallies a batch.
type SummaryResponse struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// StateResponse is the JSON representation of the workflow read model.
type StateResponse struct {
	Step          string                 `json:"step"`
	Identity      *IdentityResponse      `json:"identity"`
	Repositories  int                    `json:"repository_count"`
	Organizations []IdentityResponse     `json:"organizations"`
	Selection     []string               `json:"selection"`
	Destination   DestinationResponse    `json:"destination"`
	Items         []TransferItemResponse `json:"items"`
	Outcomes      []OutcomeResponse      `json:"outcomes"`
	Summary       SummaryResponse        `json:"summary"`
	BatchID       string                 `json:"batch_id,omitempty"`
	Transferring  bool                   `json:"transferring"`
	Loading       bool                   `json:"loading"`
	Error         string                 `json:"error,omitempty"`
}

// TransferRecordResponse is a persisted audit entry.
type TransferRecordResponse struct {
	BatchID     string `json:"batch_id"`
	Repository  string `json:"repository"`
	NewOwner    string `json:"new_owner"`
	Success     bool   `json:"success"`
	NewURL      string `json:"new_url,omitempty"`
	Error       string `json:"error,omitempty"`
	AttemptedAt string `json:"attempted_at"`
}

// HealthCheckResponse is a single probe result.
type HealthCheckResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status        string                `json:"status"`
	Authenticated bool                  `json:"authenticated"`
	Checks        []HealthCheckResponse `json:"checks"`
	Time          string                `json:"time"`
}

// AuthRequest is the JSON body for the login endpoint.
type AuthRequest struct {
	Token string `json:"token"`
}

// SelectionRequest is the JSON body for replacing the selection.
type SelectionRequest struct {
	Repositories []string `json:"repositories"`
}

// ToggleRequest is the JSON body for toggling one repository.
type ToggleRequest struct {
	Repository string `json:"repository"`
}

// ToggleResponse reports the repository's selection state after a toggle.
type ToggleResponse struct {
	Repository string   `json:"repository"`
	Selected   bool     `json:"selected"`
	Selection  []string `json:"selection"`
}

// SelectAllRequest is the JSON body for the select-all endpoint. It carries
// the same filter as the repository listing.
type SelectAllRequest struct {
	Query      string `json:"query"`
	Visibility string `json:"visibility"`
	Owner      string `json:"owner"`
}

// SelectAllResponse reports the selection after a select-all toggle.
type SelectAllResponse struct {
	Count     int      `json:"count"`
	Selection []string `json:"selection"`
}

// DestinationRequest is the JSON body for setting the destination.
type DestinationRequest struct {
	Name           string `json:"name"`
	IsOrganization bool   `json:"is_organization"`
}

// StepRequest is the JSON body for a step transition.
type StepRequest struct {
	Step string `json:"step"`
}

// TransferResponse is returned when a batch starts.
type TransferResponse struct {
	BatchID string `json:"batch_id"`
}

// toIdentityResponse converts a domain Identity to its JSON representation.
func toIdentityResponse(id model.Identity) IdentityResponse {
	return IdentityResponse{
		Login:          id.Login,
		ID:             id.ID,
		Type:           string(id.Kind),
		Name:           id.DisplayName,
		Email:          id.Email,
		IsOrganization: id.IsOrganization(),
	}
}

func toIdentityResponsePtr(id *model.Identity) *IdentityResponse {
	if id == nil {
		return nil
	}
	resp := toIdentityResponse(*id)
	return &resp
}

func toIdentityResponses(ids []model.Identity) []IdentityResponse {
	out := make([]IdentityResponse, 0, len(ids))
	for _, id := range ids {
		out = append(out, toIdentityResponse(id))
	}
	return out
}

// toRepositoryResponse converts a domain Repository to its JSON representation.
// viewer decides whether the selection key is the bare name or owner/name.
func toRepositoryResponse(repo model.Repository, viewer string) RepositoryResponse {
	return RepositoryResponse{
		ID:           repo.ID,
		Name:         repo.Name,
		FullName:     repo.FullName,
		Description:  sanitizeDescription(repo.Description),
		Private:      repo.IsPrivate,
		Owner:        repo.Owner.Login,
		OwnerType:    string(repo.Owner.Kind),
		URL:          repo.URL,
		UpdatedAt:    formatTime(repo.UpdatedAt),
		Stars:        repo.StarCount,
		Forks:        repo.ForkCount,
		Language:     repo.Language,
		SelectionKey: repo.SelectionKey(viewer),
	}
}

func toRepositoryResponses(repos []model.Repository, viewer string) []RepositoryResponse {
	out := make([]RepositoryResponse, 0, len(repos))
	for _, r := range repos {
		out = append(out, toRepositoryResponse(r, viewer))
	}
	return out
}

func toOutcomeResponse(o model.TransferOutcome) OutcomeResponse {
	return OutcomeResponse{
		Repository: o.Repository,
		Success:    o.Success,
		NewURL:     o.NewURL,
		Error:      o.ErrorMessage,
	}
}

// toStateResponse converts the workflow read model to its JSON representation.
// Collections are always non-nil so clients never see null arrays.
func toStateResponse(st model.WorkflowState) StateResponse {
	items := make([]TransferItemResponse, 0, len(st.Items))
	for _, it := range st.Items {
		item := TransferItemResponse{Repository: it.Repository, State: string(it.State)}
		if it.Outcome != nil {
			o := toOutcomeResponse(*it.Outcome)
			item.Outcome = &o
		}
		items = append(items, item)
	}

	outcomes := make([]OutcomeResponse, 0, len(st.Outcomes))
	for _, o := range st.Outcomes {
		outcomes = append(outcomes, toOutcomeResponse(o))
	}

	selection := st.Selection
	if selection == nil {
		selection = []string{}
	}

	return StateResponse{
		Step:          string(st.Step),
		Identity:      toIdentityResponsePtr(st.Identity),
		Repositories:  len(st.Repositories),
		Organizations: toIdentityResponses(st.Organizations),
		Selection:     selection,
		Destination: DestinationResponse{
			Input:          st.Destination.RawInput,
			IsOrganization: st.Destination.IsOrganization,
			Status:         string(st.DestinationStatus),
			Resolved:       toIdentityResponsePtr(st.Destination.Resolved),
		},
		Items:    items,
		Outcomes: outcomes,
		Summary: SummaryResponse{
			Total:     st.Summary.Total,
			Succeeded: st.Summary.Succeeded,
			Failed:    st.Summary.Failed,
		},
		BatchID:      st.BatchID,
		Transferring: st.Transferring,
		Loading:      st.Loading,
		Error:        st.Error,
	}
}

func toTransferRecordResponse(rec model.TransferRecord) TransferRecordResponse {
	return TransferRecordResponse{
		BatchID:     rec.BatchID,
		Repository:  rec.Repository,
		NewOwner:    rec.NewOwner,
		Success:     rec.Success,
		NewURL:      rec.NewURL,
		Error:       rec.ErrorMessage,
		AttemptedAt: formatTime(rec.AttemptedAt),
	}
}

func toTransferRecordResponses(records []model.TransferRecord) []TransferRecordResponse {
	out := make([]TransferRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toTransferRecordResponse(rec))
	}
	return out
}

func toHealthResponse(s application.HealthSummary) HealthResponse {
	checks := make([]HealthCheckResponse, 0, len(s.Checks))
	for _, c := range s.Checks {
		checks = append(checks, HealthCheckResponse{Name: c.Name, Status: string(c.Status), Error: c.Error})
	}
	return HealthResponse{
		Status:        string(s.Status),
		Authenticated: s.Authenticated,
		Checks:        checks,
		Time:          time.Now().UTC().Format(time.RFC3339),
	}
}

// sanitizeDescription decodes entities first so escaped markup is stripped
// like literal markup. The result is HTML-escaped text and is never decoded
// again.
func sanitizeDescription(s string) string {
	if s == "" {
		return ""
	}
	return descriptionPolicy.Sanitize(html.UnescapeString(s))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
