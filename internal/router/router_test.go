package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/realtime"
	"venue_ops_backend/internal/services"
	"venue_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.ConfigureJWT("router-test-secret", time.Hour)
}

// Embedded nil interfaces panic if a route reaches a method the test did not stub.

type stubPermissions struct {
	services.PermissionService
	grants map[int64][]string
}

func (s stubPermissions) HasPermission(_ context.Context, userID int64, permission string) (bool, error) {
	for _, p := range s.grants[userID] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

type stubDeliveries struct {
	services.DeliveryService
	accepted []int64
	created  []string
	err      error
}

func (s *stubDeliveries) CreateDelivery(_ context.Context, actor models.Principal, req services.CreateDeliveryRequest) (*models.StockDelivery, error) {
	s.created = append(s.created, req.Supplier)
	return &models.StockDelivery{ID: 9, Supplier: req.Supplier, Status: models.DeliveryPending, ReceivedBy: &actor.UserID}, nil
}

func (s *stubDeliveries) AcceptDelivery(_ context.Context, actor models.Principal, id int64, req services.AcceptDeliveryRequest) (*models.StockDelivery, error) {
	s.accepted = append(s.accepted, id)
	if s.err != nil {
		return nil, s.err
	}
	return &models.StockDelivery{ID: id, Status: models.DeliveryAccepted, Supplier: "Acme Spirits"}, nil
}

func (s *stubDeliveries) RejectDelivery(_ context.Context, _ models.Principal, _ int64, req services.RejectDeliveryRequest) (*models.StockDelivery, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", services.ErrValidation)
	}
	return nil, errors.New("connection reset")
}

type stubStock struct {
	services.StockService
}

func (stubStock) GetItem(_ context.Context, id int64) (*models.StockItem, error) {
	if id == 1 {
		return &models.StockItem{ID: 1, Name: "Vodka", Unit: "bottle"}, nil
	}
	return nil, services.ErrStockItemNotFound
}

type stubNotifications struct {
	services.NotificationService
	marked int
}

func (s *stubNotifications) MarkAllRead(_ context.Context, actor models.Principal) (int64, error) {
	s.marked++
	return 3, nil
}

type stubTemplates struct {
	services.TemplateService
	created []string
}

func (s *stubTemplates) List(context.Context) ([]models.TaskTemplate, error) {
	return []models.TaskTemplate{{ID: 1, Name: "Close bar", Category: "bar", Priority: "high"}}, nil
}

func (s *stubTemplates) Create(_ context.Context, _ models.Principal, req services.TemplateRequest) (*models.TaskTemplate, error) {
	s.created = append(s.created, req.Name)
	return &models.TaskTemplate{ID: 2, Name: req.Name, Category: req.Category, Priority: req.Priority}, nil
}

type stubReports struct {
	services.ReportService
	last services.SummaryReportRequest
}

func (s *stubReports) SummaryReport(_ context.Context, actor models.Principal, req services.SummaryReportRequest) (*models.SummaryReport, error) {
	if actor.Role != models.RoleManager && actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: management access required", services.ErrForbidden)
	}
	s.last = req
	return &models.SummaryReport{Stats: models.TaskBreakdown{Total: 4, Completed: 1}}, nil
}

type apiEnvelope struct {
	Error utils.APIError `json:"error"`
}

func newTestEngine(t *testing.T) (*gin.Engine, *stubDeliveries) {
	engine, deliveries, _ := newTestEngineWithInbox(t)
	return engine, deliveries
}

// User 1 carries the bar_staff baseline, user 2 can only view stock.
func newTestEngineWithInbox(t *testing.T) (*gin.Engine, *stubDeliveries, *stubNotifications) {
	t.Helper()
	deliveries := &stubDeliveries{}
	inbox := &stubNotifications{}
	svc := Services{
		Permissions: stubPermissions{grants: map[int64][]string{
			1: {models.PermViewStock, models.PermAcceptDeliveries},
			2: {models.PermViewStock},
		}},
		Deliveries:    deliveries,
		Stock:         stubStock{},
		Notifications: inbox,
		Templates:     &stubTemplates{},
		Reports:       &stubReports{},
	}
	engine := gin.New()
	Register(engine, svc, realtime.NewLocalBroadcaster())
	return engine, deliveries, inbox
}

func call(t *testing.T, engine *gin.Engine, method, path string, userID int64, role, body string) (*httptest.ResponseRecorder, apiEnvelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != 0 {
		tok, err := utils.GenerateAccessToken(userID, "user", role, "")
		if err != nil {
			t.Fatalf("GenerateAccessToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var env apiEnvelope
	if w.Code >= 400 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("error body %q: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func TestAcceptDeliveryRoute(t *testing.T) {
	engine, deliveries := newTestEngine(t)

	w, _ := call(t, engine, http.MethodPost, "/api/v1/stock/deliveries/5/accept", 1, models.RoleManager, `{"items":[]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("accept status = %d body %s", w.Code, w.Body.String())
	}

	deliveries.err = services.ErrDeliveryAlreadyProcessed
	w, env := call(t, engine, http.MethodPost, "/api/v1/stock/deliveries/5/accept", 1, models.RoleManager, "")
	if w.Code != http.StatusConflict || env.Error.Code != utils.ErrCodeConflict {
		t.Fatalf("second accept = %d %+v", w.Code, env.Error)
	}

	w, env = call(t, engine, http.MethodPost, "/api/v1/stock/deliveries/5/accept", 2, models.RoleAdmin, "")
	if w.Code != http.StatusForbidden || env.Error.Code != utils.ErrCodeForbidden {
		t.Fatalf("ungranted accept = %d %+v", w.Code, env.Error)
	}
	if len(deliveries.accepted) != 2 {
		t.Fatalf("service reached %d times, want 2", len(deliveries.accepted))
	}
}

func TestCreateDeliveryNeedsIntakePermission(t *testing.T) {
	engine, deliveries := newTestEngine(t)
	body := `{"delivery_date":"2024-06-15","supplier":"Acme Spirits","items":[{"stock_item_id":1,"quantity":12}]}`

	w, _ := call(t, engine, http.MethodPost, "/api/v1/stock/deliveries", 1, models.RoleBarStaff, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("bar staff create = %d body %s", w.Code, w.Body.String())
	}
	var created models.StockDelivery
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.Status != models.DeliveryPending {
		t.Fatalf("created = %+v, %v", created, err)
	}

	w, env := call(t, engine, http.MethodPost, "/api/v1/stock/deliveries", 2, models.RoleManager, body)
	if w.Code != http.StatusForbidden || env.Error.Code != utils.ErrCodeForbidden {
		t.Fatalf("view-only create = %d %+v", w.Code, env.Error)
	}
	if len(deliveries.created) != 1 || deliveries.created[0] != "Acme Spirits" {
		t.Fatalf("service reached with %v", deliveries.created)
	}
}

func TestMarkAllReadVerbs(t *testing.T) {
	engine, _, inbox := newTestEngineWithInbox(t)
	for _, method := range []string{http.MethodPost, http.MethodPatch} {
		w, _ := call(t, engine, method, "/api/v1/notifications/read-all", 2, models.RoleCleaner, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s read-all = %d body %s", method, w.Code, w.Body.String())
		}
	}
	if inbox.marked != 2 {
		t.Fatalf("MarkAllRead called %d times, want 2", inbox.marked)
	}
}

func TestErrorMapping(t *testing.T) {
	engine, _ := newTestEngine(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   int64
		body   string
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/api/v1/stock/items/1", 0, "", http.StatusUnauthorized, utils.ErrCodeUnauthorized},
		{"found", http.MethodGet, "/api/v1/stock/items/1", 2, "", http.StatusOK, ""},
		{"missing item", http.MethodGet, "/api/v1/stock/items/9", 2, "", http.StatusNotFound, utils.ErrCodeNotFound},
		{"bad id", http.MethodGet, "/api/v1/stock/items/abc", 2, "", http.StatusBadRequest, utils.ErrCodeBadRequest},
		{"malformed json", http.MethodPost, "/api/v1/stock/deliveries/5/reject", 1, "{", http.StatusBadRequest, utils.ErrCodeValidationFailed},
		{"validation", http.MethodPost, "/api/v1/stock/deliveries/5/reject", 1, `{"reason":" "}`, http.StatusBadRequest, utils.ErrCodeValidationFailed},
		{"unexpected", http.MethodPost, "/api/v1/stock/deliveries/5/reject", 1, `{"reason":"damaged"}`, http.StatusInternalServerError, utils.ErrCodeInternalServerError},
		{"role gate", http.MethodPost, "/api/v1/users", 2, `{}`, http.StatusForbidden, utils.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := call(t, engine, tt.method, tt.path, tt.user, models.RoleCleaner, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			if env.Error.Code != tt.code {
				t.Fatalf("code = %q, want %q", env.Error.Code, tt.code)
			}
		})
	}
}

func TestUnexpectedErrorsHideDetails(t *testing.T) {
	engine, _ := newTestEngine(t)
	w, env := call(t, engine, http.MethodPost, "/api/v1/stock/deliveries/5/reject", 1, models.RoleManager, `{"reason":"damaged"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "connection reset") || env.Error.Message != "Failed to reject delivery." {
		t.Fatalf("body leaks internals: %s", w.Body.String())
	}
}

func TestTemplateRoutes(t *testing.T) {
	engine, _ := newTestEngine(t)
	body := `{"name":"Open bar","category":"bar","priority":"medium"}`

	if w, _ := call(t, engine, http.MethodGet, "/api/v1/templates", 2, models.RoleCleaner, ""); w.Code != http.StatusOK {
		t.Fatalf("staff list = %d", w.Code)
	}
	w, env := call(t, engine, http.MethodPost, "/api/v1/templates", 2, models.RoleCleaner, body)
	if w.Code != http.StatusForbidden || env.Error.Code != utils.ErrCodeForbidden {
		t.Fatalf("staff create = %d %+v", w.Code, env.Error)
	}
	if w, _ := call(t, engine, http.MethodPost, "/api/v1/templates", 2, models.RoleManager, body); w.Code != http.StatusCreated {
		t.Fatalf("manager create = %d body %s", w.Code, w.Body.String())
	}
}

func TestSummaryReportFormats(t *testing.T) {
	engine, _ := newTestEngine(t)

	w, _ := call(t, engine, http.MethodPost, "/api/v1/reports/summary", 2, models.RoleManager, `{"include_user_stats":true}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total":4`) {
		t.Fatalf("json summary = %d %s", w.Code, w.Body.String())
	}

	w, _ = call(t, engine, http.MethodPost, "/api/v1/reports/summary?format=xlsx", 2, models.RoleAdmin, "")
	if w.Code != http.StatusOK {
		t.Fatalf("xlsx summary = %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/vnd.openxmlformats") {
		t.Fatalf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "summary-report-") || !strings.HasSuffix(cd, `.xlsx"`) {
		t.Fatalf("content disposition = %q", cd)
	}
	// xlsx files are zip archives
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("body is not a workbook")
	}

	w, env := call(t, engine, http.MethodPost, "/api/v1/reports/summary", 2, models.RoleBarStaff, "")
	if w.Code != http.StatusForbidden || env.Error.Code != utils.ErrCodeForbidden {
		t.Fatalf("staff summary = %d %+v", w.Code, env.Error)
	}
}
