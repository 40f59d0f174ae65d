package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SAP-F-2025/vrp-import-service/internal/errors"
	"github.com/SAP-F-2025/vrp-import-service/internal/mapping"
	"github.com/SAP-F-2025/vrp-import-service/internal/models"
	"github.com/SAP-F-2025/vrp-import-service/internal/repositories"
	"github.com/SAP-F-2025/vrp-import-service/internal/services"
	"github.com/SAP-F-2025/vrp-import-service/internal/utils"
	"github.com/SAP-F-2025/vrp-import-service/internal/wizard"
)

// MockImportService is a mock implementation of services.ImportService
type MockImportService struct {
	mock.Mock
}

func (m *MockImportService) view(args mock.Arguments) (*services.SessionView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SessionView), args.Error(1)
}

func (m *MockImportService) StartSession(ctx context.Context, owner string, req *services.StartImportRequest, fileName string, file io.Reader) (*services.SessionView, error) {
	content, _ := io.ReadAll(file)
	return m.view(m.Called(ctx, owner, req, fileName, string(content)))
}

func (m *MockImportService) GetSession(ctx context.Context, id, owner string) (*services.SessionView, error) {
	return m.view(m.Called(ctx, id, owner))
}

func (m *MockImportService) Transition(ctx context.Context, id, owner string, req *services.TransitionRequest) (*services.SessionView, error) {
	return m.view(m.Called(ctx, id, owner, req))
}

func (m *MockImportService) Undo(ctx context.Context, id, owner string) (*services.SessionView, error) {
	return m.view(m.Called(ctx, id, owner))
}

func (m *MockImportService) Abort(ctx context.Context, id, owner string) (*services.SessionView, error) {
	return m.view(m.Called(ctx, id, owner))
}

func (m *MockImportService) ListSessions(ctx context.Context, filters repositories.ImportSessionFilters) ([]*models.ImportSession, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.ImportSession), args.Get(1).(int64), args.Error(2)
}

func (m *MockImportService) UpdateMapping(ctx context.Context, id, owner string, req *services.UpdateMappingRequest) (*services.SessionView, error) {
	return m.view(m.Called(ctx, id, owner, req))
}

func (m *MockImportService) AutoMap(ctx context.Context, id, owner string) (*services.SessionView, error) {
	return m.view(m.Called(ctx, id, owner))
}

func (m *MockImportService) Suggestions(ctx context.Context, id, owner, column string) ([]mapping.Suggestion, error) {
	args := m.Called(ctx, id, owner, column)
	return args.Get(0).([]mapping.Suggestion), args.Error(1)
}

func (m *MockImportService) ResolveDuplicate(ctx context.Context, id, owner string, req *services.ResolveDuplicateRequest) (*services.SessionView, error) {
	return m.view(m.Called(ctx, id, owner, req))
}

func (m *MockImportService) AcceptDuplicateSuggestions(ctx context.Context, id, owner string) (*services.SessionView, error) {
	return m.view(m.Called(ctx, id, owner))
}

func (m *MockImportService) ResolveLocation(ctx context.Context, id, owner string, req *services.ResolveLocationRequest) (*services.SessionView, error) {
	return m.view(m.Called(ctx, id, owner, req))
}

func (m *MockImportService) AutoResolveLocations(ctx context.Context, id, owner string) (*services.SessionView, error) {
	return m.view(m.Called(ctx, id, owner))
}

func (m *MockImportService) Execute(ctx context.Context, id, owner string) (*services.SessionView, error) {
	return m.view(m.Called(ctx, id, owner))
}

func (m *MockImportService) GetReport(ctx context.Context, id, owner string) (*services.ImportReport, error) {
	args := m.Called(ctx, id, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ImportReport), args.Error(1)
}

func (m *MockImportService) GenerateTemplate(ctx context.Context, table string) ([]byte, error) {
	args := m.Called(ctx, table)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func newTestRouter(svc services.ImportService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	router := gin.New()
	NewHandlerManager(svc, 1<<20, logger).SetupRoutes(router)
	return router
}

func doRequest(router *gin.Engine, method, path, owner string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestImportHandler_StartImport(t *testing.T) {
	svc := &MockImportService{}
	router := newTestRouter(svc)

	svc.On("StartSession", mock.Anything, "user-1",
		mock.MatchedBy(func(req *services.StartImportRequest) bool {
			return req.TableType == "jobs" && req.Delimiter == ";"
		}),
		"jobs.csv", "description;address\nStop A;Main St\n",
	).Return(&services.SessionView{ID: "sess-1", Step: wizard.StepPreview}, nil)

	body, contentType := multipartUpload(t, map[string]string{"table_type": "jobs", "delimiter": ";"}, "jobs.csv", "description;address\nStop A;Main St\n")
	w := doRequest(router, http.MethodPost, "/api/v1/imports", "user-1", body, contentType)

	require.Equal(t, http.StatusCreated, w.Code)
	var view services.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "sess-1", view.ID)
	assert.Equal(t, wizard.StepPreview, view.Step)
	assert.NotEmpty(t, w.Header().Get(utils.RequestIDHeader))
	svc.AssertExpectations(t)

	t.Run("anonymous", func(t *testing.T) {
		body, contentType := multipartUpload(t, map[string]string{"table_type": "jobs"}, "jobs.csv", "a\n1\n")
		w := doRequest(router, http.MethodPost, "/api/v1/imports", "", body, contentType)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		body, contentType := multipartUpload(t, map[string]string{"table_type": "jobs"}, "", "")
		w := doRequest(router, http.MethodPost, "/api/v1/imports", "user-1", body, contentType)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestImportHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", services.ErrSessionNotFound, http.StatusNotFound},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"conflict", services.ErrSessionActive, http.StatusConflict},
		{"locked", wizard.ErrLocked, http.StatusConflict},
		{"blocked", &wizard.BlockingError{Step: wizard.StepValidation, Reason: "rows have validation errors", Rows: []int{2}}, http.StatusUnprocessableEntity},
		{"validation", apperrors.ValidationErrors{{Field: "step", Message: "is required"}}, http.StatusBadRequest},
		{"unknown column", mapping.ErrUnknownColumn, http.StatusBadRequest},
		{"too large", apperrors.NewParseError(apperrors.ReasonTooLarge, "file exceeds the limit", nil), http.StatusRequestEntityTooLarge},
		{"unsupported", apperrors.NewParseError(apperrors.ReasonUnsupportedFormat, "unsupported file type", nil), http.StatusUnsupportedMediaType},
		{"no rows", apperrors.NewParseError(apperrors.ReasonNoRows, "file is empty", nil), http.StatusBadRequest},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockImportService{}
			router := newTestRouter(svc)
			svc.On("GetSession", mock.Anything, "sess-1", "user-1").Return(nil, tt.err)

			w := doRequest(router, http.MethodGet, "/api/v1/imports/sess-1", "user-1", nil, "")
			assert.Equal(t, tt.status, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestImportHandler_BlockedDetails(t *testing.T) {
	svc := &MockImportService{}
	router := newTestRouter(svc)
	svc.On("Transition", mock.Anything, "sess-1", "user-1", &services.TransitionRequest{Step: "importing"}).
		Return(nil, &wizard.BlockingError{Step: wizard.StepLocations, Reason: "duplicates are unresolved", Rows: []int{1, 4}})

	w := doRequest(router, http.MethodPost, "/api/v1/imports/sess-1/transition", "user-1",
		strings.NewReader(`{"step":"importing"}`), "application/json")

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp struct {
		Details struct {
			Reason string `json:"reason"`
			Rows   []int  `json:"rows"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "duplicates are unresolved", resp.Details.Reason)
	assert.Equal(t, []int{1, 4}, resp.Details.Rows)
}

func TestImportHandler_WizardRoutes(t *testing.T) {
	svc := &MockImportService{}
	router := newTestRouter(svc)
	view := &services.SessionView{ID: "sess-1"}

	svc.On("UpdateMapping", mock.Anything, "sess-1", "user-1", &services.UpdateMappingRequest{SourceColumn: "addr", TargetField: "address"}).Return(view, nil)
	svc.On("AutoMap", mock.Anything, "sess-1", "user-1").Return(view, nil)
	svc.On("Suggestions", mock.Anything, "sess-1", "user-1", "addr").Return([]mapping.Suggestion{{Field: "address", Score: 0.9}}, nil)
	svc.On("ResolveDuplicate", mock.Anything, "sess-1", "user-1", &services.ResolveDuplicateRequest{Row: 0, Resolution: "skip"}).Return(view, nil)
	svc.On("AcceptDuplicateSuggestions", mock.Anything, "sess-1", "user-1").Return(view, nil)
	svc.On("ResolveLocation", mock.Anything, "sess-1", "user-1", &services.ResolveLocationRequest{Row: 3, Resolution: "use_existing", LocationID: "loc-1"}).Return(view, nil)
	svc.On("AutoResolveLocations", mock.Anything, "sess-1", "user-1").Return(view, nil)
	svc.On("Undo", mock.Anything, "sess-1", "user-1").Return(view, nil)
	svc.On("Abort", mock.Anything, "sess-1", "user-1").Return(view, nil)
	svc.On("GetReport", mock.Anything, "sess-1", "user-1").Return(&services.ImportReport{SessionID: "sess-1"}, nil)

	requests := []struct {
		method, path, body string
	}{
		{http.MethodPut, "/api/v1/imports/sess-1/mappings", `{"source_column":"addr","target_field":"address"}`},
		{http.MethodPost, "/api/v1/imports/sess-1/mappings/auto", ""},
		{http.MethodGet, "/api/v1/imports/sess-1/mappings/suggestions?column=addr", ""},
		{http.MethodPost, "/api/v1/imports/sess-1/duplicates/resolve", `{"row":0,"resolution":"skip"}`},
		{http.MethodPost, "/api/v1/imports/sess-1/duplicates/accept", ""},
		{http.MethodPost, "/api/v1/imports/sess-1/locations/resolve", `{"row":3,"resolution":"use_existing","location_id":"loc-1"}`},
		{http.MethodPost, "/api/v1/imports/sess-1/locations/auto", ""},
		{http.MethodPost, "/api/v1/imports/sess-1/undo", ""},
		{http.MethodPost, "/api/v1/imports/sess-1/abort", ""},
		{http.MethodGet, "/api/v1/imports/sess-1/report", ""},
	}

	for _, r := range requests {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			var body io.Reader
			contentType := ""
			if r.body != "" {
				body = strings.NewReader(r.body)
				contentType = "application/json"
			}
			w := doRequest(router, r.method, r.path, "user-1", body, contentType)
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		})
	}
	svc.AssertExpectations(t)

	w := doRequest(router, http.MethodPut, "/api/v1/imports/sess-1/mappings", "user-1", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/imports/sess-1/mappings/suggestions", "user-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandler_Execute(t *testing.T) {
	svc := &MockImportService{}
	router := newTestRouter(svc)
	svc.On("Execute", mock.Anything, "sess-1", "user-1").Return(&services.SessionView{ID: "sess-1", Step: wizard.StepImporting}, nil)

	w := doRequest(router, http.MethodPost, "/api/v1/imports/sess-1/execute", "user-1", nil, "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	svc.AssertExpectations(t)
}

func TestImportHandler_ListImports(t *testing.T) {
	svc := &MockImportService{}
	router := newTestRouter(svc)
	svc.On("ListSessions", mock.Anything, mock.MatchedBy(func(f repositories.ImportSessionFilters) bool {
		return f.Owner == "user-1" && f.TableType == "jobs" && f.Status != nil &&
			*f.Status == models.ImportCompleted && f.Limit == 5 && f.DateFrom != nil
	})).Return([]*models.ImportSession{{ID: "sess-1"}}, int64(1), nil)

	w := doRequest(router, http.MethodGet, "/api/v1/imports?table_type=Jobs&status=completed&limit=5&date_from=2025-01-01T00:00:00Z", "user-1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	assert.Equal(t, 5, resp.Limit)

	w = doRequest(router, http.MethodGet, "/api/v1/imports?date_to=yesterday", "user-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandler_DownloadTemplate(t *testing.T) {
	svc := &MockImportService{}
	router := newTestRouter(svc)
	svc.On("GenerateTemplate", mock.Anything, "vehicles").Return([]byte("xlsx-bytes"), nil)
	svc.On("GenerateTemplate", mock.Anything, "boats").Return(nil, apperrors.NewValidationError("table_type", "unknown table type", "boats"))

	w := doRequest(router, http.MethodGet, "/api/v1/templates/vehicles", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "vehicles_template.xlsx")
	assert.Equal(t, "xlsx-bytes", w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/v1/templates/boats", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&MockImportService{})
	w := doRequest(router, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vrp-import-service")
}
