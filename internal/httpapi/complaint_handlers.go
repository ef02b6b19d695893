package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/auth"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/complaint"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

type submitComplaintRequest struct {
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Category        string         `json:"category"`
	Sector          string         `json:"sector"`
	CommuneID       string         `json:"commune_id"`
	EstablishmentID string         `json:"establishment_id"`
	Location        *complaint.Geo `json:"location"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type assignRequest struct {
	AuthorityID string `json:"authority_id"`
}

func (a *API) handleComplaintsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitComplaint(w, r)
	case http.MethodGet:
		a.listComplaints(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleComplaintResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/reclamations/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	id, action, hasAction := strings.Cut(path, "/")
	if id == "" || strings.Contains(action, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if !hasAction {
		switch r.Method {
		case http.MethodGet:
			a.getComplaint(w, r, id)
		case http.MethodPatch:
			a.editComplaint(w, r, id)
		case http.MethodDelete:
			a.withdrawComplaint(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
		return
	}

	if action == "audit" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.complaintTrail(w, r, id)
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	switch action {
	case "accept":
		a.acceptComplaint(w, r, id)
	case "reject":
		a.rejectComplaint(w, r, id)
	case "assign":
		a.assignComplaint(w, r, id)
	case "resolve":
		a.resolveComplaint(w, r, id)
	case "archive":
		a.archiveComplaint(w, r, id)
	case "unarchive":
		a.unarchiveComplaint(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) submitComplaint(w http.ResponseWriter, r *http.Request) {
	var req submitComplaintRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.service.Submit(r.Context(), actorFrom(r), complaint.SubmitRequest{
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Sector:          req.Sector,
		CommuneID:       req.CommuneID,
		EstablishmentID: req.EstablishmentID,
		Location:        req.Location,
	})
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/reclamations/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) listComplaints(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.service.List(r.Context(), actorFrom(r), filters)
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getComplaint(w http.ResponseWriter, r *http.Request, id string) {
	c, err := a.service.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// editComplaint decodes the PATCH body as raw fields so the service can tell
// a harmless typo apart from a smuggled lifecycle field.
func (a *API) editComplaint(w http.ResponseWriter, r *http.Request, id string) {
	var fields map[string]json.RawMessage
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.service.EditContent(r.Context(), actorFrom(r), id, fields)
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) withdrawComplaint(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.service.Withdraw(r.Context(), actorFrom(r), id); err != nil {
		handleComplaintError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) acceptComplaint(w http.ResponseWriter, r *http.Request, id string) {
	c, err := a.service.Accept(r.Context(), actorFrom(r), id)
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) rejectComplaint(w http.ResponseWriter, r *http.Request, id string) {
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	c, err := a.service.Reject(r.Context(), actorFrom(r), id, req.Reason)
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) assignComplaint(w http.ResponseWriter, r *http.Request, id string) {
	var req assignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.service.Assign(r.Context(), actorFrom(r), id, req.AuthorityID)
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) resolveComplaint(w http.ResponseWriter, r *http.Request, id string) {
	c, err := a.service.Resolve(r.Context(), actorFrom(r), id)
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) archiveComplaint(w http.ResponseWriter, r *http.Request, id string) {
	c, err := a.service.Archive(r.Context(), actorFrom(r), id)
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) unarchiveComplaint(w http.ResponseWriter, r *http.Request, id string) {
	c, err := a.service.Unarchive(r.Context(), actorFrom(r), id)
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) complaintTrail(w http.ResponseWriter, r *http.Request, id string) {
	trail, err := a.service.Trail(r.Context(), actorFrom(r), id)
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": trail})
}

func parseFilters(r *http.Request) (complaint.Filters, error) {
	q := r.URL.Query()
	var f complaint.Filters
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := complaint.ParseStatus(raw)
		if !ok {
			return complaint.Filters{}, errors.New("status must be pending, accepted or rejected")
		}
		f.Status = &status
	}
	f.Category = strings.TrimSpace(strings.ToLower(q.Get("category")))
	f.CommuneID = strings.TrimSpace(q.Get("commune_id"))
	f.IncludeArchived = q.Get("include_archived") == "true"
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			return complaint.Filters{}, errors.New("limit must be between 1 and 500")
		}
		f.Limit = limit
	}
	return f, nil
}

func actorFrom(r *http.Request) perm.Actor {
	actor, _ := auth.ActorFromContext(r.Context())
	return actor
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleComplaintError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, complaint.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, complaint.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, complaint.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, complaint.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "reclamation not found")
	case errors.Is(err, complaint.ErrInvalidTransition), errors.Is(err, complaint.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
