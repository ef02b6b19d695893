package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/audit"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

type overrideItem struct {
	Code   string `json:"code"`
	Effect string `json:"effect"`
}

type setOverridesRequest struct {
	Overrides []overrideItem `json:"overrides"`
}

func (a *API) handleActorResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/actors/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" || rest != "overrides" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	a.setActorOverrides(w, r, id)
}

// setActorOverrides replaces the permission override set of one actor.
// Requires permissions.manage, held only by super admins by default.
func (a *API) setActorOverrides(w http.ResponseWriter, r *http.Request, actorID string) {
	if a.overrides == nil {
		writeError(w, r, http.StatusNotImplemented, "override administration is not configured")
		return
	}
	actor := actorFrom(r)
	if actor.Anonymous() {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if !a.resolver.Has(r.Context(), actor, perm.PermPermissionsManage) {
		_ = audit.LogSecurityEvent(r.Context(), "permissions.manage_denied", map[string]any{
			"actor_id": actor.ID,
			"target":   actorID,
		})
		writeError(w, r, http.StatusForbidden, "permissions.manage required")
		return
	}

	var req setOverridesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	catalog := a.resolver.Catalog()
	overrides := make([]perm.Override, 0, len(req.Overrides))
	seen := make(map[string]struct{}, len(req.Overrides))
	for _, item := range req.Overrides {
		code := strings.TrimSpace(item.Code)
		if !catalog.Known(code) {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown permission code %q", item.Code))
			return
		}
		effect, ok := perm.ParseEffect(item.Effect)
		if !ok {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("effect must be grant or revoke, got %q", item.Effect))
			return
		}
		if _, dup := seen[code]; dup {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("duplicate override for code %q", code))
			return
		}
		seen[code] = struct{}{}
		overrides = append(overrides, perm.Override{ActorID: actorID, Code: code, Effect: effect})
	}

	if err := a.overrides.SetOverrides(r.Context(), actorID, overrides); err != nil {
		if errors.Is(err, perm.ErrUnknownActor) {
			writeError(w, r, http.StatusNotFound, "actor not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "permissions.overrides_set", map[string]any{
		"actor_id": actor.ID,
		"target":   actorID,
		"count":    len(overrides),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"actor_id":  actorID,
		"overrides": req.Overrides,
	})
}

// handleRecentAudit exposes the newest audit entries across all complaints to
// supervisory roles.
func (a *API) handleRecentAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = v
	}
	entries, err := a.service.RecentAudit(r.Context(), actorFrom(r), limit)
	if err != nil {
		handleComplaintError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}
