package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/auth"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/complaint"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

var (
	citizenActor    = perm.Actor{ID: "usr-cit-1", Role: perm.RoleCitizen}
	otherCitizen    = perm.Actor{ID: "usr-cit-2", Role: perm.RoleCitizen}
	delegationActor = perm.Actor{ID: "dlg-1", Role: perm.RoleDelegation, Sector: "EQUIPEMENT"}
	authorityActor  = perm.Actor{ID: "aut-1", Role: perm.RoleAutoriteLocale}
	superAdminActor = perm.Actor{ID: "sup-1", Role: perm.RoleSuperAdmin}
)

type fakeOverrideAdmin struct {
	lastActorID string
	lastSet     []perm.Override
	err         error
}

func (f *fakeOverrideAdmin) SetOverrides(_ context.Context, actorID string, overrides []perm.Override) error {
	if f.err != nil {
		return f.err
	}
	f.lastActorID = actorID
	f.lastSet = overrides
	return nil
}

type fixture struct {
	handler   http.Handler
	store     *complaint.InMemory
	overrides *fakeOverrideAdmin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("MEDACTION_AUTH_SECRET", "httpapi-test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	store := complaint.NewInMemory()
	resolver := perm.NewResolver(perm.NewCatalog(), nil)
	svc, err := complaint.NewService(store, resolver)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	overrides := &fakeOverrideAdmin{}
	api := New(svc, resolver, ReadyProbe{}, "test",
		WithOverrideAdmin(overrides),
		WithIdentityStore(staticIdentities(t)),
	)
	return &fixture{handler: api.Handler(), store: store, overrides: overrides}
}

type identityMap map[string]auth.Identity

func (m identityMap) FindByEmail(_ context.Context, email string) (auth.Identity, error) {
	id, ok := m[email]
	if !ok {
		return auth.Identity{}, auth.ErrNotFound
	}
	return id, nil
}

func (m identityMap) Find(_ context.Context, id string) (auth.Identity, error) {
	for _, v := range m {
		if v.ID == id {
			return v, nil
		}
	}
	return auth.Identity{}, auth.ErrNotFound
}

func staticIdentities(t *testing.T) identityMap {
	t.Helper()
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return identityMap{
		"amina@example.org": {
			ID:           citizenActor.ID,
			Email:        "amina@example.org",
			FullName:     "Amina B.",
			PasswordHash: hash,
			Role:         perm.RoleCitizen,
			Status:       auth.StatusActive,
		},
	}
}

func bearerFor(t *testing.T, actor perm.Actor) string {
	t.Helper()
	token, err := auth.GenerateToken(actor, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return "Bearer " + token
}

func (f *fixture) do(t *testing.T, method, path, body string, actor *perm.Actor) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		req.Header.Set("Authorization", bearerFor(t, *actor))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

const submitBody = `{
	"title": "Lampadaire cassé",
	"description": "Le lampadaire de la rue principale ne fonctionne plus.",
	"category": "infrastructure",
	"sector": "EQUIPEMENT",
	"commune_id": "com-1"
}`

func (f *fixture) submit(t *testing.T, actor perm.Actor) complaint.Complaint {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/reclamations", submitBody, &actor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: status %d body %s", rec.Code, rec.Body.String())
	}
	var c complaint.Complaint
	decodeBody(t, rec, &c)
	return c
}

func TestHealthEndpointsArePublic(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		rec := f.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rec.Code)
		}
	}
	if rec := f.do(t, http.MethodGet, "/v1/reclamations", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated list: status %d, want 401", rec.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected generated X-Request-Id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	out := httptest.NewRecorder()
	f.handler.ServeHTTP(out, req)
	if got := out.Header().Get("X-Request-Id"); got != "req-42" {
		t.Errorf("X-Request-Id = %q, want req-42", got)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/auth/login",
		`{"email":"amina@example.org","password":"correct horse"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
		Actor struct {
			ID string `json:"id"`
		} `json:"actor"`
	}
	decodeBody(t, rec, &resp)
	if resp.Actor.ID != citizenActor.ID {
		t.Fatalf("actor = %+v", resp.Actor)
	}
	claims, err := auth.ParseAndValidate(resp.Token)
	if err != nil {
		t.Fatalf("returned token does not validate: %v", err)
	}
	if claims.Subject != citizenActor.ID {
		t.Fatalf("subject = %q", claims.Subject)
	}

	rec = f.do(t, http.MethodPost, "/v1/auth/login",
		`{"email":"amina@example.org","password":"wrong"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d", rec.Code)
	}
}

func TestComplaintLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	c := f.submit(t, citizenActor)
	if c.Status != complaint.StatusPending {
		t.Fatalf("status = %s", c.Status)
	}

	rec := f.do(t, http.MethodPost, "/v1/reclamations/"+c.ID+"/accept", "", &delegationActor)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: status %d body %s", rec.Code, rec.Body.String())
	}

	// Triage is exactly-once.
	rec = f.do(t, http.MethodPost, "/v1/reclamations/"+c.ID+"/accept", "", &delegationActor)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second accept: status %d, want 409", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/v1/reclamations/"+c.ID+"/assign",
		`{"authority_id":"aut-1"}`, &delegationActor)
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/v1/reclamations/"+c.ID+"/resolve", "", &authorityActor)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: status %d body %s", rec.Code, rec.Body.String())
	}
	var resolved complaint.Complaint
	decodeBody(t, rec, &resolved)
	if resolved.ResolvedAt == nil {
		t.Fatal("resolved_at missing")
	}

	// Owner edit after triage is a permission failure.
	rec = f.do(t, http.MethodPatch, "/v1/reclamations/"+c.ID,
		`{"title":"Nouveau titre"}`, &citizenActor)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("edit after triage: status %d, want 403", rec.Code)
	}

	// The audit trail covers every step.
	rec = f.do(t, http.MethodGet, "/v1/reclamations/"+c.ID+"/audit", "", &citizenActor)
	if rec.Code != http.StatusOK {
		t.Fatalf("trail: status %d", rec.Code)
	}
	var trail struct {
		Items []struct {
			Action string `json:"action"`
		} `json:"items"`
	}
	decodeBody(t, rec, &trail)
	if len(trail.Items) != 4 {
		t.Fatalf("trail = %+v", trail.Items)
	}
}

func TestEditContentSmugglingIsForbidden(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, citizenActor)

	rec := f.do(t, http.MethodPatch, "/v1/reclamations/"+c.ID,
		`{"title":"Titre anodin","status":"accepted"}`, &citizenActor)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("smuggled status: status %d body %s", rec.Code, rec.Body.String())
	}

	// Legitimate edit still passes.
	rec = f.do(t, http.MethodPatch, "/v1/reclamations/"+c.ID,
		`{"title":"Titre corrigé"}`, &citizenActor)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: status %d body %s", rec.Code, rec.Body.String())
	}
	var edited complaint.Complaint
	decodeBody(t, rec, &edited)
	if edited.Title != "Titre corrigé" || edited.Status != complaint.StatusPending {
		t.Fatalf("edited = %+v", edited)
	}
}

func TestVisibilityOverHTTP(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, citizenActor)

	// Another citizen reads 404, not 403: existence must not leak.
	rec := f.do(t, http.MethodGet, "/v1/reclamations/"+c.ID, "", &otherCitizen)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-citizen get: status %d, want 404", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/reclamations", "", &citizenActor)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var list struct {
		Items []complaint.Complaint `json:"items"`
	}
	decodeBody(t, rec, &list)
	if len(list.Items) != 1 || list.Items[0].ID != c.ID {
		t.Fatalf("items = %+v", list.Items)
	}
}

func TestWithdrawOverHTTP(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, citizenActor)

	rec := f.do(t, http.MethodDelete, "/v1/reclamations/"+c.ID, "", &citizenActor)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("withdraw: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/v1/reclamations/"+c.ID, "", &citizenActor)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after withdraw: status %d", rec.Code)
	}
}

func TestSetOverridesEndpoint(t *testing.T) {
	f := newFixture(t)

	body := `{"overrides":[{"code":"reclamations.validate","effect":"grant"}]}`

	// permissions.manage is required.
	rec := f.do(t, http.MethodPut, "/v1/actors/usr-cit-1/overrides", body, &citizenActor)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("citizen set overrides: status %d, want 403", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/v1/actors/usr-cit-1/overrides", body, &superAdminActor)
	if rec.Code != http.StatusOK {
		t.Fatalf("super admin set overrides: status %d body %s", rec.Code, rec.Body.String())
	}
	if f.overrides.lastActorID != "usr-cit-1" || len(f.overrides.lastSet) != 1 {
		t.Fatalf("recorded = %q %+v", f.overrides.lastActorID, f.overrides.lastSet)
	}
	if f.overrides.lastSet[0].Code != perm.PermReclamationsValidate || f.overrides.lastSet[0].Effect != perm.EffectGrant {
		t.Fatalf("override = %+v", f.overrides.lastSet[0])
	}

	rec = f.do(t, http.MethodPut, "/v1/actors/usr-cit-1/overrides",
		`{"overrides":[{"code":"reclamations.frobnicate","effect":"grant"}]}`, &superAdminActor)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown code: status %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/v1/actors/usr-cit-1/overrides",
		`{"overrides":[{"code":"reclamations.validate","effect":"maybe"}]}`, &superAdminActor)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad effect: status %d, want 400", rec.Code)
	}
}

func TestRecentAuditEndpoint(t *testing.T) {
	f := newFixture(t)
	f.submit(t, citizenActor)

	rec := f.do(t, http.MethodGet, "/v1/audit", "", &citizenActor)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("citizen recent audit: status %d, want 403", rec.Code)
	}

	admin := perm.Actor{ID: "adm-1", Role: perm.RoleAdmin}
	rec = f.do(t, http.MethodGet, "/v1/audit?limit=10", "", &admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin recent audit: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Items []struct {
			Action string `json:"action"`
		} `json:"items"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Items) != 1 {
		t.Fatalf("items = %+v", resp.Items)
	}
}

func TestRouteEdges(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, citizenActor)

	rec := f.do(t, http.MethodPost, "/v1/reclamations/"+c.ID+"/promote", "", &delegationActor)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown action: status %d, want 404", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/v1/reclamations/"+c.ID, "{}", &citizenActor)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT resource: status %d, want 405", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/reclamations/", "", &citizenActor)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("bare resource path: status %d, want 404", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec2 := httptest.NewRecorder()
	f.handler.ServeHTTP(rec2, req)
	if got := rec2.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
}
