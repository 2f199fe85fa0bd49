// Package contract validates API requests and responses against the OpenAPI document.
package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/go-chi/chi/v5"

	"github.com/splitledger/splitledger/internal/auth"
	"github.com/splitledger/splitledger/internal/handler"
	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/service"
	"github.com/splitledger/splitledger/internal/testutil"
	"github.com/splitledger/splitledger/internal/testutil/memstore"
)

const testUserHeader = "X-Test-User"

// specPath returns the OpenAPI document location, overridable with OPENAPI_SPEC_PATH.
func specPath() string {
	if p := os.Getenv("OPENAPI_SPEC_PATH"); p != "" {
		return p
	}
	wd, _ := os.Getwd()
	return filepath.Join(wd, "..", "..", "docs", "api", "openapi.yaml")
}

// loadSpec loads and validates the OpenAPI document.
func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	spec, err := loader.LoadFromFile(specPath())
	if err != nil {
		t.Fatalf("Failed to load OpenAPI spec: %v", err)
	}
	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}
	return spec
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type stubTickets struct{}

func (stubTickets) Issue(userID string) (string, time.Time, error) {
	return "ticket-" + userID, time.Now().Add(time.Minute).UTC(), nil
}

// newAPIRouter wires the documented surface over an in-memory store.
// Authentication is replaced by a header naming the acting user.
func newAPIRouter(store *memstore.Store) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store, nil, metrics.NewNoop(), service.Options{Logger: logger, Activity: store})

	health := handler.NewHealthHandler(handler.Dependency{Name: "postgres", Checker: okPinger{}})
	groups := handler.NewGroupHandler(svc.Groups, logger)
	expenses := handler.NewExpenseHandler(svc.Expenses, svc.Balances, logger)
	notifications := handler.NewNotificationHandler(svc.Notifications, stubTickets{}, logger)
	activity := handler.NewActivityHandler(svc.Activity, logger)
	h := handler.New()

	r := chi.NewRouter()
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if id := r.Header.Get(testUserHeader); id != "" {
					r = r.WithContext(auth.ContextWithAuth(r.Context(), &model.AuthContext{UserID: id}))
				}
				next.ServeHTTP(w, r)
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", groups.List)
			r.Post("/", groups.Create)
			r.Route("/{groupID}", func(r chi.Router) {
				r.Get("/", groups.Get)
				r.Delete("/", groups.Delete)
				r.Post("/respond", groups.Respond)
				r.Post("/members", groups.AddMember)
				r.Delete("/members/{memberID}", groups.RemoveMember)
				r.Get("/expenses", expenses.List)
				r.Post("/expenses", expenses.Add)
				r.Put("/expenses/{expenseID}", expenses.Edit)
				r.Delete("/expenses/{expenseID}", expenses.Delete)
				r.Get("/balance", expenses.Balance)
				r.Get("/settlements", expenses.Settlements)
				r.Get("/activity", activity.List)
			})
		})
		r.Get("/notifications", notifications.List)
		r.Post("/realtime/ticket", notifications.Ticket)
	})
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	return r
}

type contractEnv struct {
	server *httptest.Server
	router routers.Router
	store  *memstore.Store
	alice  *model.User
	bob    *model.User
	carol  *model.User
}

func newContractEnv(t *testing.T) *contractEnv {
	t.Helper()

	env := &contractEnv{
		store: memstore.New(),
		alice: testutil.NewTestUser(t, "alice"),
		bob:   testutil.NewTestUser(t, "bob"),
		carol: testutil.NewTestUser(t, "carol"),
	}
	for _, u := range []*model.User{env.alice, env.bob, env.carol} {
		env.store.AddUser(u)
	}

	env.server = httptest.NewServer(newAPIRouter(env.store))
	t.Cleanup(env.server.Close)

	spec := loadSpec(t)
	spec.Servers = openapi3.Servers{{URL: env.server.URL}}
	router, err := gorillamux.NewRouter(spec)
	if err != nil {
		t.Fatalf("Failed to create router from spec: %v", err)
	}
	env.router = router
	return env
}

var validationOptions = &openapi3filter.Options{
	AuthenticationFunc:    openapi3filter.NoopAuthenticationFunc,
	IncludeResponseStatus: true,
}

// call sends a request as user and validates the response against the document.
// Well-formed requests are validated too; deliberately invalid ones skip that step.
func (env *contractEnv) call(t *testing.T, user *model.User, method, path string, body any, validRequest bool) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, env.server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set(testUserHeader, user.ID)
		req.Header.Set("Authorization", "Bearer test")
	}

	route, pathParams, err := env.router.FindRoute(req)
	if err != nil {
		t.Fatalf("%s %s is not documented: %v", method, path, err)
	}
	requestInput := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options:    validationOptions,
	}
	if validRequest {
		if err := openapi3filter.ValidateRequest(context.Background(), requestInput); err != nil {
			t.Fatalf("%s %s request does not match the document: %v", method, path, err)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	err = openapi3filter.ValidateResponse(context.Background(), &openapi3filter.ResponseValidationInput{
		RequestValidationInput: requestInput,
		Status:                 resp.StatusCode,
		Header:                 resp.Header,
		Body:                   io.NopCloser(bytes.NewReader(raw)),
		Options:                validationOptions,
	})
	if err != nil {
		t.Errorf("%s %s -> %d does not match the document: %v\nbody: %s", method, path, resp.StatusCode, err, raw)
	}
	return resp.StatusCode, raw
}

// data decodes the envelope payload into out.
func data(t *testing.T, raw []byte, out any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, raw)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, raw)
	}
}

func expectStatus(t *testing.T, got, want int, what string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: expected %d, got %d", what, want, got)
	}
}

// TestOpenAPISpecValid ensures the document loads and validates.
func TestOpenAPISpecValid(t *testing.T) {
	spec := loadSpec(t)
	if spec.Info.Title == "" || spec.Info.Version == "" {
		t.Error("spec info must carry a title and version")
	}
}

// TestRoutesDocumented compares the router with the documented paths in both directions.
func TestRoutesDocumented(t *testing.T) {
	spec := loadSpec(t)

	documented := map[string]bool{}
	for path, item := range spec.Paths.Map() {
		for method := range item.Operations() {
			documented[method+" "+path] = true
		}
	}

	served := map[string]bool{}
	err := chi.Walk(newAPIRouter(memstore.New()), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route != "/" {
			route = strings.TrimSuffix(route, "/")
		}
		served[method+" "+route] = true
		return nil
	})
	if err != nil {
		t.Fatalf("walk router: %v", err)
	}

	var missing, stale []string
	for key := range served {
		if !documented[key] {
			missing = append(missing, key)
		}
	}
	for key := range documented {
		if !served[key] {
			stale = append(stale, key)
		}
	}
	sort.Strings(missing)
	sort.Strings(stale)
	if len(missing) > 0 {
		t.Errorf("routes missing from the document: %v", missing)
	}
	if len(stale) > 0 {
		t.Errorf("documented routes not served: %v", stale)
	}
}

// TestHealthResponses validates the unauthenticated probes.
func TestHealthResponses(t *testing.T) {
	env := newContractEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		status, _ := env.call(t, nil, http.MethodGet, path, nil, true)
		expectStatus(t, status, http.StatusOK, path)
	}
}

// TestLedgerWorkflow drives every documented operation through its success path.
func TestLedgerWorkflow(t *testing.T) {
	env := newContractEnv(t)

	status, raw := env.call(t, env.alice, http.MethodPost, "/api/v1/groups", map[string]any{
		"name":    "Ski week",
		"members": []string{env.bob.Email, env.carol.Email},
	}, true)
	expectStatus(t, status, http.StatusCreated, "create group")
	var group struct {
		ID string `json:"id"`
	}
	data(t, raw, &group)
	base := "/api/v1/groups/" + group.ID

	for _, invitee := range []struct {
		user   *model.User
		answer model.MemberStatus
	}{
		{env.bob, model.MemberAccepted},
		{env.carol, model.MemberRejected},
	} {
		status, raw = env.call(t, invitee.user, http.MethodGet, "/api/v1/notifications", nil, true)
		expectStatus(t, status, http.StatusOK, "notifications")
		var notes []struct {
			ID string `json:"id"`
		}
		data(t, raw, &notes)
		if len(notes) != 1 {
			t.Fatalf("expected one invite, got %d", len(notes))
		}
		status, _ = env.call(t, invitee.user, http.MethodPost, base+"/respond", map[string]string{
			"notification_id": notes[0].ID,
			"status":          string(invitee.answer),
		}, true)
		expectStatus(t, status, http.StatusOK, "respond")
	}

	status, raw = env.call(t, env.alice, http.MethodPost, base+"/expenses", map[string]any{
		"description": "Lift passes",
		"amount":      "240.00",
		"paid_by":     env.alice.ID,
		"date":        time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC).Format(time.RFC3339),
		"split_among": []map[string]string{
			{"user_id": env.alice.ID, "share": "120.00"},
			{"user_id": env.bob.ID, "share": "120.00"},
		},
	}, true)
	expectStatus(t, status, http.StatusCreated, "add expense")
	var expense struct {
		ID string `json:"id"`
	}
	data(t, raw, &expense)

	status, _ = env.call(t, env.bob, http.MethodPut, base+"/expenses/"+expense.ID, map[string]string{
		"description": "Lift passes and rentals",
		"amount":      "300",
	}, true)
	expectStatus(t, status, http.StatusOK, "edit expense")

	now := time.Now()
	month := "?month=" + strconv.Itoa(int(now.Month())) + "&year=" + strconv.Itoa(now.Year())
	for _, path := range []string{
		base,
		base + "/expenses",
		base + "/expenses" + month,
		base + "/balance",
		base + "/balance" + month,
		base + "/settlements",
		base + "/activity",
		base + "/activity?limit=3",
		"/api/v1/groups",
	} {
		status, _ = env.call(t, env.bob, http.MethodGet, path, nil, true)
		expectStatus(t, status, http.StatusOK, "GET "+path)
	}

	status, _ = env.call(t, env.bob, http.MethodPost, "/api/v1/realtime/ticket", nil, true)
	expectStatus(t, status, http.StatusCreated, "ticket")

	status, _ = env.call(t, env.alice, http.MethodPost, base+"/members", map[string]string{"email": env.carol.Email}, true)
	expectStatus(t, status, http.StatusConflict, "re-invite rejected member")

	status, _ = env.call(t, env.alice, http.MethodDelete, base+"/members/"+env.carol.ID, nil, true)
	expectStatus(t, status, http.StatusOK, "remove member")

	status, _ = env.call(t, env.alice, http.MethodPost, base+"/members", map[string]string{"email": env.carol.Email}, true)
	expectStatus(t, status, http.StatusCreated, "invite member")

	status, _ = env.call(t, env.alice, http.MethodDelete, base+"/expenses/"+expense.ID, nil, true)
	expectStatus(t, status, http.StatusOK, "delete expense")

	status, _ = env.call(t, env.alice, http.MethodDelete, base, nil, true)
	expectStatus(t, status, http.StatusOK, "delete group")
}

// TestErrorResponses validates the error envelope for each documented failure status.
func TestErrorResponses(t *testing.T) {
	env := newContractEnv(t)

	status, raw := env.call(t, env.alice, http.MethodPost, "/api/v1/groups", map[string]any{
		"name":    "Flat",
		"members": []string{env.bob.Email},
	}, true)
	expectStatus(t, status, http.StatusCreated, "create group")
	var group struct {
		ID string `json:"id"`
	}
	data(t, raw, &group)
	base := "/api/v1/groups/" + group.ID

	cases := []struct {
		name         string
		user         *model.User
		method       string
		path         string
		body         any
		validRequest bool
		want         int
	}{
		{"unauthenticated", nil, http.MethodGet, "/api/v1/groups", nil, false, http.StatusUnauthorized},
		{"unknown group", env.alice, http.MethodGet, "/api/v1/groups/missing", nil, true, http.StatusNotFound},
		{"outsider", env.carol, http.MethodGet, base + "/balance", nil, true, http.StatusForbidden},
		{"non-creator delete", env.bob, http.MethodDelete, base, nil, true, http.StatusForbidden},
		{"remove creator", env.alice, http.MethodDelete, base + "/members/" + env.alice.ID, nil, true, http.StatusBadRequest},
		{"duplicate invite", env.alice, http.MethodPost, base + "/members", map[string]string{"email": env.bob.Email}, true, http.StatusConflict},
		{"unknown invitee", env.alice, http.MethodPost, base + "/members", map[string]string{"email": "nobody@example.test"}, true, http.StatusNotFound},
		{"month without year", env.alice, http.MethodGet, base + "/expenses?month=4", nil, true, http.StatusBadRequest},
		{"non-positive amount", env.alice, http.MethodPost, base + "/expenses", map[string]any{
			"description": "Rent", "amount": "0", "paid_by": env.alice.ID,
		}, true, http.StatusBadRequest},
		{"pending member writes", env.bob, http.MethodPost, base + "/expenses", map[string]any{
			"description": "Rent", "amount": "10", "paid_by": env.bob.ID,
		}, true, http.StatusForbidden},
		{"bad limit", env.alice, http.MethodGet, base + "/activity?limit=0", nil, false, http.StatusBadRequest},
		{"unknown answer", env.bob, http.MethodPost, base + "/respond", map[string]string{
			"notification_id": "x", "status": "maybe",
		}, true, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, raw := env.call(t, tc.user, tc.method, tc.path, tc.body, tc.validRequest)
			if status != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, status, raw)
			}
		})
	}
}
