package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ml-governance-service/internal/core/domain"
	"ml-governance-service/internal/core/services"
	"ml-governance-service/internal/testutil"
)

// setupRouter wires the full handler over real services with in-memory
// fakes, so these tests exercise the whole request -> service -> port path.
func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	reportRepo := new(testutil.MockQualityReportRepo)
	reportRepo.On("GetByDataset", mock.Anything, mock.Anything).Return(nil, domain.ErrReportNotFound)
	reportRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	quarantine := new(testutil.MockQuarantineStore)
	quarantine.On("IsQuarantined", mock.Anything, mock.Anything).Return(false, nil)
	quarantine.On("Quarantine", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	quarantine.On("Clear", mock.Anything, mock.Anything).Return(nil)

	driftRepo := new(testutil.MockDriftRepo)
	driftRepo.On("SaveReference", mock.Anything, mock.Anything).Return(nil)
	driftRepo.On("SaveResults", mock.Anything, mock.Anything).Return(nil)
	driftRepo.On("GetReference", mock.Anything, mock.Anything).Return(nil, domain.ErrNoReference)
	driftRepo.On("ListResults", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	qualitySvc := services.NewQualityService(services.QualityConfig{RequiredColumns: []string{"mmse"}})
	gateSvc := services.NewPHIGateService(services.DefaultGateConfig(), quarantine)
	validationSvc := services.NewValidationService(gateSvc, qualitySvc, reportRepo)
	driftSvc := services.NewDriftService(services.DefaultDriftConfig(), nil, driftRepo)
	registrySvc := services.NewRegistryService(testutil.NewFakeRegistryRepo())
	governanceSvc := services.NewGovernanceService(services.DefaultGovernanceConfig(),
		driftSvc, registrySvc, testutil.NewFakeRetrainingRepo(), testutil.NewFakeRecordCounter(), nil)

	h := New(validationSvc, driftSvc, registrySvc, governanceSvc)
	r := gin.New()
	api := r.Group("/api/v1/governance")
	h.RegisterRoutes(api)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func validateBody(datasetID string, strict bool, notes string) map[string]interface{} {
	rows := make([]map[string]interface{}, 6)
	for i := range rows {
		rows[i] = map[string]interface{}{
			"patient_id": fmt.Sprintf("p%02d", i),
			"visit_date": fmt.Sprintf("2024-0%d-01", i+1),
			"mmse":       24.0,
			"age":        74.0,
			"sex":        "F",
			"zip":        "94117",
			"race":       "white",
			"notes":      notes,
		}
	}
	return map[string]interface{}{
		"dataset_id": datasetID,
		"source":     "feature-store",
		"columns":    []string{"patient_id", "visit_date", "mmse", "age", "sex", "zip", "race", "notes"},
		"rows":       rows,
		"strict":     strict,
	}
}

func TestContract_ValidateDataset(t *testing.T) {
	r := setupRouter()

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/governance/datasets/validate",
		validateBody("6a0f1d6e-7a56-4f0a-9d3c-0e2b5a3b9c01", true, "stable condition"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, true, resp["passed"])
	assert.Equal(t, false, resp["quarantined"])
	assert.NotEmpty(t, resp["grade"])
	_, hasScore := resp["score"].(float64)
	assert.True(t, hasScore)
	completeness, ok := resp["completeness"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.0, completeness["mmse"])
}

func TestContract_ValidateDatasetPHIQuarantine(t *testing.T) {
	r := setupRouter()

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/governance/datasets/validate",
		validateBody("6a0f1d6e-7a56-4f0a-9d3c-0e2b5a3b9c02", true, "follow up with john@example.com"))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	assert.NotEmpty(t, resp["error"])
	report, ok := resp["report"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, report["quarantined"])
	assert.Equal(t, "phi_gate", report["failed_check"])
	// findings report column and kind only, never the matched value
	assert.NotContains(t, w.Body.String(), "john@example.com")
}

func TestContract_ValidateDatasetBadBody(t *testing.T) {
	r := setupRouter()

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/governance/datasets/validate",
		map[string]interface{}{"rows": []map[string]interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContract_RegistryLifecycle(t *testing.T) {
	r := setupRouter()

	w, created := doJSON(t, r, http.MethodPost, "/api/v1/governance/models", map[string]interface{}{
		"model_name":   "cognition",
		"artifact_ref": "s3://models/cognition/1",
		"metrics":      map[string]float64{"roc_auc": 0.82, "accuracy": 0.9},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(1), created["version"])
	assert.Equal(t, "registered", created["status"])
	id := created["id"].(string)

	// registered -> production is illegal
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/governance/versions/"+id+"/promote",
		map[string]string{"target": "production"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/governance/versions/"+id+"/promote",
		map[string]string{"target": "staging"})
	require.Equal(t, http.StatusOK, w.Code)
	w, promoted := doJSON(t, r, http.MethodPost, "/api/v1/governance/versions/"+id+"/promote",
		map[string]string{"target": "production"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "production", promoted["status"])
	assert.NotEmpty(t, promoted["deployed_at"])

	w, prod := doJSON(t, r, http.MethodGet, "/api/v1/governance/models/cognition/production", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, prod["id"])

	// nothing before the first deployment to roll back to
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/governance/models/cognition/rollback", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// second version, then roll back to the first
	w, second := doJSON(t, r, http.MethodPost, "/api/v1/governance/models", map[string]interface{}{
		"model_name":   "cognition",
		"artifact_ref": "s3://models/cognition/2",
		"metrics":      map[string]float64{"roc_auc": 0.88},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	secondID := second["id"].(string)
	doJSON(t, r, http.MethodPost, "/api/v1/governance/versions/"+secondID+"/promote", map[string]string{"target": "staging"})
	doJSON(t, r, http.MethodPost, "/api/v1/governance/versions/"+secondID+"/promote", map[string]string{"target": "production"})

	w, restored := doJSON(t, r, http.MethodPost, "/api/v1/governance/models/cognition/rollback", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, id, restored["id"])
	assert.Equal(t, "production", restored["status"])

	w, list := doJSON(t, r, http.MethodGet, "/api/v1/governance/models/cognition/versions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), list["total"])

	w, diff := doJSON(t, r, http.MethodGet,
		"/api/v1/governance/versions/compare?ids="+id+","+secondID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	deltas, ok := diff["deltas"].([]interface{})
	require.True(t, ok)
	assert.Len(t, deltas, 6)
}

func TestContract_DriftEndpoints(t *testing.T) {
	r := setupRouter()

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/governance/inference-logs", map[string]interface{}{
		"model_name": "cognition",
		"rows":       []map[string]interface{}{{"mmse": 24.0}, {"mmse": 25.0}},
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	// no captured reference yet
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/governance/models/cognition/drift/detect", map[string]interface{}{
		"model_name": "cognition",
		"rows":       []map[string]interface{}{{"mmse": 24.0}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/governance/models/cognition/drift/should-retrain", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["should_retrain"])
}

func TestContract_GovernanceCycle(t *testing.T) {
	r := setupRouter()

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/governance/models/imaging/retrain",
		map[string]string{"reason": "manual"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, resp["triggered"])
	decision := resp["decision"].(map[string]interface{})
	assert.Equal(t, "manual", decision["reason"])

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/governance/models/imaging/training-started", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, jobs := doJSON(t, r, http.MethodGet, "/api/v1/governance/models/imaging/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := jobs["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "training", items[0].(map[string]interface{})["stage"])

	// first candidate promotes unconditionally
	w, candidate := doJSON(t, r, http.MethodPost, "/api/v1/governance/models/imaging/candidate", map[string]interface{}{
		"artifact_ref": "s3://models/imaging/1",
		"metrics":      map[string]float64{"roc_auc": 0.75},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, candidate["promoted"])
	version := candidate["candidate"].(map[string]interface{})
	assert.Equal(t, "production", version["status"])

	w, decisions := doJSON(t, r, http.MethodGet, "/api/v1/governance/models/imaging/decisions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decisionItems := decisions["items"].([]interface{})
	require.Len(t, decisionItems, 1)
	assert.Equal(t, "candidate promoted", decisionItems[0].(map[string]interface{})["outcome"])

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/governance/models/imaging/records",
		map[string]int64{"count": 250})
	assert.Equal(t, http.StatusAccepted, w.Code)
}
